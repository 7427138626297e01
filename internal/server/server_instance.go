package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/runnerr0/tabcycle/internal/cycle"
	"github.com/runnerr0/tabcycle/internal/history"
)

type instanceInput struct {
	Instance string `path:"instance" doc:"Page instance id"`
}

type reportInput struct {
	Instance string `path:"instance" doc:"Page instance id"`
	Body     struct {
		URL       string    `json:"url"`
		Title     string    `json:"title,omitempty"`
		Index     *int      `json:"index,omitempty" doc:"Tab position hint, omitted when unknown"`
		Timestamp time.Time `json:"timestamp,omitempty"`
	}
}

type recordOutput struct {
	Body struct {
		Record *history.TabRecord `json:"record"`
	}
}

type stateOutput struct {
	Body struct {
		State string `json:"state"`
	}
}

func registerInstanceHandlers(api huma.API, svc Service) {
	type reportOutput struct {
		Body struct {
			Recorded bool `json:"recorded"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "report", Method: http.MethodPost, Path: "/api/v1/instances/{instance}/report", Summary: "Report the page shown by an instance", Tags: []string{"Instances"}},
		func(ctx context.Context, input *reportInput) (*reportOutput, error) {
			r := cycle.SelfReport{
				URL:          input.Body.URL,
				Title:        input.Body.Title,
				PositionHint: history.NoPosition,
				Timestamp:    input.Body.Timestamp,
			}
			if input.Body.Index != nil {
				r.PositionHint = *input.Body.Index
			}
			recorded, err := svc.Controller(input.Instance).Report(ctx, r)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &reportOutput{}
			out.Body.Recorded = recorded
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "switch-previous", Method: http.MethodPost, Path: "/api/v1/instances/{instance}/previous", Summary: "Switch to the previously used tab", Tags: []string{"Instances"}},
		func(ctx context.Context, input *instanceInput) (*recordOutput, error) {
			rec, err := svc.Controller(input.Instance).SwitchPrevious(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &recordOutput{}
			out.Body.Record = rec
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "withdraw-instance", Method: http.MethodDelete, Path: "/api/v1/instances/{instance}", Summary: "Remove a closed page instance from the registry", Tags: []string{"Instances"}},
		func(ctx context.Context, input *instanceInput) (*messageOutput, error) {
			if err := svc.Withdraw(ctx, input.Instance); err != nil {
				return nil, mapErr(err)
			}
			return message("withdrawn"), nil
		})

	type eventInput struct {
		Instance string `path:"instance" doc:"Page instance id"`
		Body     cycle.Event
	}
	huma.Register(api, huma.Operation{OperationID: "post-event", Method: http.MethodPost, Path: "/api/v1/instances/{instance}/events", Summary: "Feed a raw input event", Tags: []string{"Instances"}},
		func(ctx context.Context, input *eventInput) (*stateOutput, error) {
			st, err := svc.Controller(input.Instance).Handle(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &stateOutput{}
			out.Body.State = st.String()
			return out, nil
		})
}
