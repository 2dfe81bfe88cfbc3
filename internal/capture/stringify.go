// Package capture turns raw producer observations into activity events:
// console argument stringification, protocol (GraphQL) detection, and body
// inspection.
package capture

import (
	"encoding/json"

	"github.com/valyala/fastjson"
)

// Unstringifiable replaces a console argument that cannot be rendered.
const Unstringifiable = "[Unable to stringify]"

// Stringify renders one console argument. Strings are returned unquoted, an
// absent argument becomes "undefined", and any other JSON value is compacted.
// Invalid JSON yields Unstringifiable rather than an error.
func Stringify(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "undefined"
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(raw)
	if err != nil {
		return Unstringifiable
	}

	switch v.Type() {
	case fastjson.TypeString:
		s, err := v.StringBytes()
		if err != nil {
			return Unstringifiable
		}
		return string(s)
	case fastjson.TypeNull:
		return "null"
	default:
		return v.String()
	}
}

// StringifyAll renders every argument in order.
func StringifyAll(args []json.RawMessage) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = Stringify(a)
	}
	return out
}
