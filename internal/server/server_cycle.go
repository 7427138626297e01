package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/runnerr0/tabcycle/internal/cycle"
)

type sessionOutput struct {
	Body cycle.SessionView
}

func viewOf(c *cycle.Controller) *sessionOutput {
	return &sessionOutput{Body: c.View()}
}

func registerCycleHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "get-cycle", Method: http.MethodGet, Path: "/api/v1/instances/{instance}/cycle", Summary: "Get the preview state", Tags: []string{"Cycle"}},
		func(ctx context.Context, input *instanceInput) (*sessionOutput, error) {
			return viewOf(svc.Controller(input.Instance)), nil
		})

	type openInput struct {
		Instance string `path:"instance" doc:"Page instance id"`
		Reverse  bool   `query:"reverse" doc:"Start on the oldest entry instead of the previous one"`
	}
	huma.Register(api, huma.Operation{OperationID: "open-cycle", Method: http.MethodPost, Path: "/api/v1/instances/{instance}/cycle/open", Summary: "Open the preview", Tags: []string{"Cycle"}},
		func(ctx context.Context, input *openInput) (*sessionOutput, error) {
			c := svc.Controller(input.Instance)
			if _, err := c.Open(ctx, input.Reverse); err != nil {
				return nil, mapErr(err)
			}
			return viewOf(c), nil
		})

	type advanceInput struct {
		Instance  string `path:"instance" doc:"Page instance id"`
		Direction string `query:"direction" enum:"forward,backward" default:"forward"`
	}
	huma.Register(api, huma.Operation{OperationID: "advance-cycle", Method: http.MethodPost, Path: "/api/v1/instances/{instance}/cycle/advance", Summary: "Move the preview selection", Tags: []string{"Cycle"}},
		func(ctx context.Context, input *advanceInput) (*sessionOutput, error) {
			dir := cycle.Forward
			if input.Direction == "backward" {
				dir = cycle.Backward
			}
			c := svc.Controller(input.Instance)
			if _, err := c.Advance(dir); err != nil {
				return nil, mapErr(err)
			}
			return viewOf(c), nil
		})

	type selectInput struct {
		Instance string `path:"instance" doc:"Page instance id"`
		Body     struct {
			Index int `json:"index"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "select-cycle", Method: http.MethodPost, Path: "/api/v1/instances/{instance}/cycle/select", Summary: "Select a preview entry", Tags: []string{"Cycle"}},
		func(ctx context.Context, input *selectInput) (*sessionOutput, error) {
			c := svc.Controller(input.Instance)
			if err := c.SelectAt(input.Body.Index); err != nil {
				return nil, mapErr(err)
			}
			return viewOf(c), nil
		})

	huma.Register(api, huma.Operation{OperationID: "confirm-cycle", Method: http.MethodPost, Path: "/api/v1/instances/{instance}/cycle/confirm", Summary: "Confirm the selection and switch to it", Tags: []string{"Cycle"}},
		func(ctx context.Context, input *instanceInput) (*recordOutput, error) {
			rec, err := svc.Controller(input.Instance).Confirm(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &recordOutput{}
			out.Body.Record = rec
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "cancel-cycle", Method: http.MethodPost, Path: "/api/v1/instances/{instance}/cycle/cancel", Summary: "Close an open preview", Tags: []string{"Cycle"}},
		func(ctx context.Context, input *instanceInput) (*stateOutput, error) {
			out := &stateOutput{}
			out.Body.State = svc.Controller(input.Instance).Cancel().String()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "hard-cancel-cycle", Method: http.MethodPost, Path: "/api/v1/instances/{instance}/cycle/hard-cancel", Summary: "Close the preview, including one still opening", Tags: []string{"Cycle"}},
		func(ctx context.Context, input *instanceInput) (*stateOutput, error) {
			out := &stateOutput{}
			out.Body.State = svc.Controller(input.Instance).HardCancel().String()
			return out, nil
		})
}
