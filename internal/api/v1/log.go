package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/actrec/internal/domain"
)

type GetLogOutput struct {
	Body *domain.ActivityLog
}

type LogSummary struct {
	Counts          map[domain.Category]int `json:"counts"`
	Total           int                     `json:"total"`
	RetentionWindow string                  `json:"retentionWindow"`
}

type GetLogSummaryOutput struct {
	Body *LogSummary
}

type GetCategoryInput struct {
	Category string `path:"category" doc:"Activity category: network, protocol or console"`
}

type GetCategoryOutput struct {
	Body any
}

func RegisterLogRoutes(api huma.API, store ActivityStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-log",
		Method:      http.MethodGet,
		Path:        "/log",
		Summary:     "Get the full activity log",
		Tags:        []string{"Log"},
	}, func(_ context.Context, _ *struct{}) (*GetLogOutput, error) {
		return &GetLogOutput{Body: store.Snapshot()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-log-summary",
		Method:      http.MethodGet,
		Path:        "/log/summary",
		Summary:     "Count retained events per category",
		Tags:        []string{"Log"},
	}, func(_ context.Context, _ *struct{}) (*GetLogSummaryOutput, error) {
		counts := store.Counts()
		total := 0
		for _, n := range counts {
			total += n
		}
		return &GetLogSummaryOutput{Body: &LogSummary{
			Counts:          counts,
			Total:           total,
			RetentionWindow: store.RetentionWindow().String(),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-log-category",
		Method:      http.MethodGet,
		Path:        "/log/{category}",
		Summary:     "Get one category of the activity log",
		Tags:        []string{"Log"},
	}, func(_ context.Context, input *GetCategoryInput) (*GetCategoryOutput, error) {
		c, err := domain.ParseCategory(input.Category)
		if err != nil {
			return nil, huma.Error404NotFound("unknown category " + input.Category)
		}

		events, err := store.Category(c)
		if errors.Is(err, domain.ErrUnknownCategory) {
			return nil, huma.Error404NotFound("unknown category " + input.Category)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read category", err)
		}

		return &GetCategoryOutput{Body: events}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "clear-log",
		Method:        http.MethodDelete,
		Path:          "/log",
		Summary:       "Clear every category of the activity log",
		Tags:          []string{"Log"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		store.Clear(ctx)
		return nil, nil
	})
}
