// Package server is the local HTTP daemon page instances talk to.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/runnerr0/tabcycle/internal/activation"
	"github.com/runnerr0/tabcycle/internal/app"
	"github.com/runnerr0/tabcycle/internal/cycle"
	"github.com/runnerr0/tabcycle/internal/history"
)

type Service interface {
	Controller(instanceID string) *cycle.Controller
	History(ctx context.Context) ([]history.TabRecord, error)
	ClearHistory(ctx context.Context) error
	Cleanup(ctx context.Context) (app.CleanupResult, error)
	Discover(ctx context.Context) (int, error)
	Instances(ctx context.Context) ([]app.InstanceView, error)
	Withdraw(ctx context.Context, instanceID string) error
	CheckURL(url string) (string, bool)
	SwitchToTitle(ctx context.Context, title string) error
	Status(ctx context.Context) (*app.Status, error)
}

// New returns the daemon's router.
func New(svc Service, version string) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("tabcycle", version)
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	registerInstanceHandlers(api, svc)
	registerCycleHandlers(api, svc)
	registerHistoryHandlers(api, svc)
	registerMiscHandlers(api, svc)

	return router
}

type messageOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func message(status string) *messageOutput {
	out := &messageOutput{}
	out.Body.Status = status
	return out
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, history.ErrNothingToSwitch),
		errors.Is(err, app.ErrUnknownInstance):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, cycle.ErrNotOpen):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, cycle.ErrIndexOutOfRange),
		errors.Is(err, cycle.ErrUnknownEvent),
		errors.Is(err, activation.ErrEmptyToken):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, app.ErrRegistryUnavailable):
		return huma.Error502BadGateway(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
