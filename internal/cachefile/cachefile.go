// Package cachefile is a file-backed, TTL'd snapshot cache shared by the
// quota providers. One JSON file per provider; the capture timestamp lives
// inside the snapshot itself so the file stays a flat object.
//
// Concurrent invocations may race on the same file. That is accepted: the
// last writer wins and readers treat anything unreadable as a miss.
package cachefile

import (
	"encoding/json"
	"os"
	"time"
)

// Snapshot is anything that knows when it was captured.
type Snapshot interface {
	CapturedAt() time.Time
}

// Load reads path into v and reports whether the snapshot is usable: the
// file must exist, parse, and be younger than ttl at instant now. Every
// failure mode is a miss, never an error — stale entries are left in place
// and overwritten by the next successful fetch.
func Load(path string, ttl time.Duration, now time.Time, v Snapshot) bool {
	if path == "" {
		return false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false
	}
	return now.Sub(v.CapturedAt()) < ttl
}

// Store marshals v to path, replacing whatever was there. Callers treat the
// returned error as advisory; a failed write only means the next invocation
// fetches again.
func Store(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
