package cycle

import (
	"context"
	"sort"

	"github.com/runnerr0/tabcycle/internal/history"
)

// Registry answers which page instances are open and what each last reported.
// A nil record means the instance is known but its report is unavailable.
type Registry interface {
	Live(ctx context.Context) (map[string]*history.TabRecord, error)
}

// Publisher records an instance's own self-report in the registry.
type Publisher interface {
	Publish(ctx context.Context, instanceID string, rec history.TabRecord) error
}

// LiveURLs collects the urls of every available report.
func LiveURLs(live map[string]*history.TabRecord) map[string]struct{} {
	urls := make(map[string]struct{}, len(live))
	for _, rec := range live {
		if rec != nil && rec.URL != "" {
			urls[rec.URL] = struct{}{}
		}
	}
	return urls
}

// LiveRecords returns the available reports ordered by instance id.
func LiveRecords(live map[string]*history.TabRecord) []history.TabRecord {
	ids := make([]string, 0, len(live))
	for id, rec := range live {
		if rec != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]history.TabRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *live[id])
	}
	return out
}
