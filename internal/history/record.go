package history

import (
	"encoding/json"
	"fmt"
	"time"
)

// NoPosition marks a record whose ordinal in the host's native tab order is unknown.
const NoPosition = -1

// Closed is a tri-state soft-delete marker. It encodes as JSON null, false or true.
type Closed int8

const (
	ClosedUnknown Closed = iota // never checked against the live registry
	ClosedNo                    // seen live at the last reconciliation
	ClosedYes                   // presumed gone; an activation for it failed
)

func (c Closed) String() string {
	switch c {
	case ClosedNo:
		return "open"
	case ClosedYes:
		return "closed"
	default:
		return "unknown"
	}
}

func (c Closed) MarshalJSON() ([]byte, error) {
	switch c {
	case ClosedNo:
		return []byte("false"), nil
	case ClosedYes:
		return []byte("true"), nil
	default:
		return []byte("null"), nil
	}
}

func (c *Closed) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*c = ClosedUnknown
	case "false":
		*c = ClosedNo
	case "true":
		*c = ClosedYes
	default:
		return fmt.Errorf("invalid closed marker %s", data)
	}
	return nil
}

// TabRecord is one known page. URL is the identity key within a history.
type TabRecord struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	PositionHint int       `json:"index"`
	LastAccessed time.Time `json:"lastAccessed"`
	Closed       Closed    `json:"closed"`
}

// HasPosition reports whether the host supplied a usable ordinal.
func (r TabRecord) HasPosition() bool {
	return r.PositionHint >= 0
}

// UnmarshalJSON defaults a missing index to NoPosition rather than 0.
func (r *TabRecord) UnmarshalJSON(data []byte) error {
	type plain TabRecord
	p := plain{PositionHint: NoPosition}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = TabRecord(p)
	return nil
}

// Clone returns a copy of records that shares no backing array.
func Clone(records []TabRecord) []TabRecord {
	if records == nil {
		return []TabRecord{}
	}
	out := make([]TabRecord, len(records))
	copy(out, records)
	return out
}

// IndexOf returns the position of url in records, or -1.
func IndexOf(records []TabRecord, url string) int {
	for i, r := range records {
		if r.URL == url {
			return i
		}
	}
	return -1
}

// URLSet collects the urls of the given records.
func URLSet(records []TabRecord) map[string]struct{} {
	set := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.URL != "" {
			set[r.URL] = struct{}{}
		}
	}
	return set
}
