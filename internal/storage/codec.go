package storage

import (
	"encoding/json"
	"fmt"

	"github.com/runnerr0/tabcycle/internal/history"
)

func encodeHistory(records []history.TabRecord) (string, error) {
	if records == nil {
		records = []history.TabRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}
	return string(data), nil
}

// decodeHistory treats an empty value as an empty history.
func decodeHistory(raw string) ([]history.TabRecord, error) {
	if raw == "" {
		return []history.TabRecord{}, nil
	}
	var records []history.TabRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if records == nil {
		records = []history.TabRecord{}
	}
	return records, nil
}

func encodeRecord(rec history.TabRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return string(data), nil
}

func decodeRecord(raw string) (history.TabRecord, error) {
	var rec history.TabRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return history.TabRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
