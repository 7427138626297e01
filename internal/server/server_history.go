package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/runnerr0/tabcycle/internal/app"
	"github.com/runnerr0/tabcycle/internal/history"
)

func registerHistoryHandlers(api huma.API, svc Service) {
	type historyOutput struct {
		Body struct {
			Entries []history.TabRecord `json:"entries"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-history", Method: http.MethodGet, Path: "/api/v1/history", Summary: "List the tab history, most recent first", Tags: []string{"History"}},
		func(ctx context.Context, input *struct{}) (*historyOutput, error) {
			records, err := svc.History(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &historyOutput{}
			out.Body.Entries = records
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-history", Method: http.MethodDelete, Path: "/api/v1/history", Summary: "Clear the tab history", Tags: []string{"History"}},
		func(ctx context.Context, input *struct{}) (*messageOutput, error) {
			if err := svc.ClearHistory(ctx); err != nil {
				return nil, mapErr(err)
			}
			return message("cleared"), nil
		})

	type cleanupOutput struct {
		Body app.CleanupResult
	}
	huma.Register(api, huma.Operation{OperationID: "cleanup-history", Method: http.MethodPost, Path: "/api/v1/history/cleanup", Summary: "Drop history entries for closed tabs", Tags: []string{"History"}},
		func(ctx context.Context, input *struct{}) (*cleanupOutput, error) {
			res, err := svc.Cleanup(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &cleanupOutput{Body: res}, nil
		})

	type discoverOutput struct {
		Body struct {
			Added int `json:"added"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "discover-history", Method: http.MethodPost, Path: "/api/v1/history/discover", Summary: "Add open tabs missing from history", Tags: []string{"History"}},
		func(ctx context.Context, input *struct{}) (*discoverOutput, error) {
			added, err := svc.Discover(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &discoverOutput{}
			out.Body.Added = added
			return out, nil
		})
}
