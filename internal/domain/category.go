package domain

import "fmt"

// Category names one of the fixed sequences of the activity log.
type Category string

const (
	CategoryNetwork  Category = "network"
	CategoryProtocol Category = "protocol"
	CategoryConsole  Category = "console"
)

// Categories returns the closed set of categories in display order.
func Categories() []Category {
	return []Category{CategoryNetwork, CategoryProtocol, CategoryConsole}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryNetwork, CategoryProtocol, CategoryConsole:
		return true
	default:
		return false
	}
}

// ParseCategory converts a wire name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("category %q: %w", s, ErrUnknownCategory)
	}
	return c, nil
}
