package persistence

// ISessionStore persists session keys so a wallet can keep signing with a
// delegated key across restarts. All implementations must be thread-safe.
type ISessionStore interface {
	// SaveSession stores a session under its ID, overwriting any previous
	// record with the same ID.
	SaveSession(session *SessionRecord) error

	// LoadSession returns nil if the session doesn't exist, error only on
	// storage failure.
	LoadSession(id string) (*SessionRecord, error)

	// ListSessions returns every stored session sorted by ID. Returns an
	// empty slice if none exist.
	ListSessions() ([]*SessionRecord, error)

	// DeleteSession is idempotent.
	DeleteSession(id string) error

	// Close is idempotent. After Close all other operations return errors.
	Close() error

	// HealthCheck returns nil if the store is operational.
	HealthCheck() error
}
