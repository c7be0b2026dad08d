package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// MarshalSessionRecord serializes a SessionRecord to JSON bytes.
func MarshalSessionRecord(s *SessionRecord) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot marshal nil SessionRecord")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SessionRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalSessionRecord deserializes a SessionRecord from JSON bytes.
func UnmarshalSessionRecord(data []byte) (*SessionRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var s SessionRecord
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to SessionRecord: %w", err)
	}

	return &s, nil
}

// CopySessionRecord returns a deep copy so callers cannot mutate stored
// state.
func CopySessionRecord(s *SessionRecord) *SessionRecord {
	if s == nil {
		return nil
	}
	out := *s
	out.SessionSecret = append([]byte(nil), s.SessionSecret...)
	out.Info.SessionKey = append([]byte(nil), s.Info.SessionKey...)
	return &out
}

// SortSessions orders records by ID.
func SortSessions(sessions []*SessionRecord) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
}

// ActiveSessions returns the unexpired sessions of username, the one
// expiring last first.
func ActiveSessions(store ISessionStore, username string, now time.Time) ([]*SessionRecord, error) {
	all, err := store.ListSessions()
	if err != nil {
		return nil, err
	}
	active := make([]*SessionRecord, 0, len(all))
	for _, s := range all {
		if s.Username == username && !s.IsExpired(now) {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[j].Info.ExpireAt.Before(active[i].Info.ExpireAt)
	})
	return active, nil
}

// PruneExpired deletes every session expired at now and returns how many
// were removed.
func PruneExpired(store ISessionStore, now time.Time) (int, error) {
	all, err := store.ListSessions()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range all {
		if !s.IsExpired(now) {
			continue
		}
		if err := store.DeleteSession(s.ID); err != nil {
			return removed, fmt.Errorf("failed to delete session %s: %w", s.ID, err)
		}
		removed++
	}
	return removed, nil
}
