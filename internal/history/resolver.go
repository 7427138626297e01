package history

// ResolvePrevious picks the page a "switch to previous" gesture should focus.
// Records with a known position win over unknown ones regardless of order;
// among each class the most recent wins. It reports false when history holds
// fewer than two distinct urls.
func ResolvePrevious(history []TabRecord, currentURL string) (TabRecord, bool) {
	if len(URLSet(history)) < 2 {
		return TabRecord{}, false
	}

	for _, r := range history {
		if r.URL != currentURL && r.HasPosition() {
			return r, true
		}
	}

	for _, r := range history {
		if r.URL != currentURL {
			return r, true
		}
	}

	return TabRecord{}, false
}

// SwitchOrder is the canonical post-switch ordering:
// resolved, then current, then everything else in prior order.
// A current record with an empty url is left out.
func SwitchOrder(history []TabRecord, resolved, current TabRecord) []TabRecord {
	out := make([]TabRecord, 0, len(history)+2)
	out = append(out, resolved)
	if current.URL != "" && current.URL != resolved.URL {
		out = append(out, current)
	}
	for _, r := range history {
		if r.URL == resolved.URL || (current.URL != "" && r.URL == current.URL) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Promote moves selected to the front and keeps the remainder in order.
func Promote(history []TabRecord, selected TabRecord) []TabRecord {
	out := make([]TabRecord, 0, len(history)+1)
	out = append(out, selected)
	for _, r := range history {
		if r.URL != selected.URL {
			out = append(out, r)
		}
	}
	return out
}
