package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/runnerr0/tabcycle/internal/app"
)

func registerMiscHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*messageOutput, error) {
			return message("ok"), nil
		})

	type statusOutput struct {
		Body *app.Status
	}
	huma.Register(api, huma.Operation{OperationID: "status", Method: http.MethodGet, Path: "/api/v1/status", Summary: "History and registry summary", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			st, err := svc.Status(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: st}, nil
		})

	type instancesOutput struct {
		Body struct {
			Instances []app.InstanceView `json:"instances"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-instances", Method: http.MethodGet, Path: "/api/v1/instances", Summary: "List registered page instances", Tags: []string{"Instances"}},
		func(ctx context.Context, input *struct{}) (*instancesOutput, error) {
			list, err := svc.Instances(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &instancesOutput{}
			out.Body.Instances = list
			if out.Body.Instances == nil {
				out.Body.Instances = []app.InstanceView{}
			}
			return out, nil
		})

	type checkInput struct {
		URL string `query:"url" required:"true"`
	}
	type checkOutput struct {
		Body struct {
			URL      string `json:"url"`
			Excluded bool   `json:"excluded"`
			Pattern  string `json:"pattern,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "check-url", Method: http.MethodGet, Path: "/api/v1/exclusions/check", Summary: "Check a url against the exclusion rules", Tags: []string{"Exclusions"}},
		func(ctx context.Context, input *checkInput) (*checkOutput, error) {
			out := &checkOutput{}
			out.Body.URL = input.URL
			out.Body.Pattern, out.Body.Excluded = svc.CheckURL(input.URL)
			return out, nil
		})

	type switchInput struct {
		Body struct {
			Title string `json:"title"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "switch-by-title", Method: http.MethodPost, Path: "/api/v1/switch", Summary: "Switch to a tab by title", Tags: []string{"Debug"}},
		func(ctx context.Context, input *switchInput) (*messageOutput, error) {
			if err := svc.SwitchToTitle(ctx, input.Body.Title); err != nil {
				return nil, mapErr(err)
			}
			return message("issued"), nil
		})
}
