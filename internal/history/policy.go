package history

// ReconcilePolicy guards reconciliation against untrustworthy registry reads.
type ReconcilePolicy struct {
	// MinLiveURLs and MinHistoryLen together: a live set smaller than
	// MinLiveURLs is ignored once history holds more than MinHistoryLen entries.
	MinLiveURLs   int `json:"min_live_urls"`
	MinHistoryLen int `json:"min_history_len"`

	// MaxRemovalRatio is the largest fraction of history a single pass may drop.
	MaxRemovalRatio float64 `json:"max_removal_ratio"`
}

// DefaultReconcilePolicy returns the stock thresholds.
func DefaultReconcilePolicy() ReconcilePolicy {
	return ReconcilePolicy{
		MinLiveURLs:     2,
		MinHistoryLen:   3,
		MaxRemovalRatio: 0.70,
	}
}

// Skip reasons reported by Reconcile.
const (
	SkipNone         = ""
	SkipTooFewLive   = "too few live urls"
	SkipMassRemoval  = "removal ratio exceeded"
	SkipEmptyHistory = "empty history"
)

// ReconcileResult describes one reconciliation pass.
type ReconcileResult struct {
	History []TabRecord
	Removed int
	Skipped string
}

// reconcile filters history to live urls subject to the policy. Survivors
// keep their relative order.
func reconcile(history []TabRecord, live map[string]struct{}, p ReconcilePolicy) ReconcileResult {
	if len(history) == 0 {
		return ReconcileResult{History: Clone(history), Skipped: SkipEmptyHistory}
	}

	if len(live) < p.MinLiveURLs && len(history) > p.MinHistoryLen {
		return ReconcileResult{History: Clone(history), Skipped: SkipTooFewLive}
	}

	kept := make([]TabRecord, 0, len(history))
	for _, r := range history {
		if _, ok := live[r.URL]; ok {
			r.Closed = ClosedNo
			kept = append(kept, r)
		}
	}

	removed := len(history) - len(kept)
	if removed > 0 && float64(removed)/float64(len(history)) > p.MaxRemovalRatio {
		return ReconcileResult{History: Clone(history), Skipped: SkipMassRemoval}
	}

	return ReconcileResult{History: kept, Removed: removed}
}
