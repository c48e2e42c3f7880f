package autoconfig

import (
	"time"

	"github.com/tarqd/ldactl/internal/envstore"
)

// ChangeKind identifies what kind of hook invocation, if any, a Change
// should produce.
type ChangeKind string

const (
	KindInsert      ChangeKind = "insert"
	KindUpdate      ChangeKind = "update"
	KindDelete      ChangeKind = "delete"
	KindInitialized ChangeKind = "initialized"
	KindKeyExpired  ChangeKind = "key_expired"
)

// EnvChange is a single environment-affecting event the supervisor applies
// to the store and, in most cases, dispatches a hook for.
type EnvChange struct {
	Kind ChangeKind
	// Env is the environment's current (post-change) value. For Kind ==
	// KindDelete it is the last-known value before removal.
	Env envstore.Environment
}

// FilterChange mirrors EnvChange for the filter population. Filter changes
// are applied to the store and materialized, but never trigger a hook.
type FilterChange struct {
	Kind   ChangeKind
	Filter envstore.Filter
}

// ServerError represents a non-transport error reported by the stream
// (e.g. an HTTP status on the initial response).
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// RetryHint is observed from a "retry:" frame. It carries a server-directed
// override for the supervisor's next backoff delay.
type RetryHint struct {
	Delay time.Duration
}
