package research

import "context"

// SessionStore persists session snapshots. Implementations live under
// research/store; the orchestrator treats persistence as best effort and
// never fails a run over a store error.
type SessionStore interface {
	// Save writes or replaces the snapshot for session.ID.
	Save(ctx context.Context, session *Session) error
	// Load returns the stored snapshot, or errors.ErrSessionNotFound.
	Load(ctx context.Context, id string) (*Session, error)
	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
	// Delete removes a stored session. Missing sessions are not an error.
	Delete(ctx context.Context, id string) error
}
