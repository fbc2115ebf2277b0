// Package errclass defines the stable error classes surfaced to operators.
package errclass

import "fmt"

// Error is a stable, machine-readable error class.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so that errors.Is works against the bare class values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrNameInvalid   = &Error{Code: "E_NAME_INVALID"}
	ErrConfigInvalid = &Error{Code: "E_CONFIG_INVALID"}

	// ErrTransport means the status store could not be reached or answered
	// with something that is not a status response.
	ErrTransport = &Error{Code: "E_TRANSPORT"}
	// ErrStoreRejected means the store answered but reported success=false.
	ErrStoreRejected = &Error{Code: "E_STORE_REJECTED"}

	ErrLockConflict = &Error{Code: "E_LOCK_CONFLICT"}
	ErrLockStale    = &Error{Code: "E_LOCK_STALE"}
	ErrLockNotHeld  = &Error{Code: "E_LOCK_NOT_HELD"}

	ErrDataSync           = &Error{Code: "E_DATA_SYNC"}
	ErrDiscoveryTimeout   = &Error{Code: "E_DISCOVERY_TIMEOUT"}
	ErrProcessNotFound    = &Error{Code: "E_PROCESS_NOT_FOUND"}
	ErrWorldOnline        = &Error{Code: "E_WORLD_ONLINE"}
	ErrNotHosted          = &Error{Code: "E_NOT_HOSTED"}
	ErrAddressPending     = &Error{Code: "E_ADDRESS_PENDING"}
	ErrAlreadyRunning     = &Error{Code: "E_ALREADY_RUNNING"}
	ErrJournalChainBroken = &Error{Code: "E_JOURNAL_CHAIN_BROKEN"}
	ErrInternal           = &Error{Code: "E_INTERNAL"}
)

// All returns every defined class, in declaration order.
func All() []*Error {
	return []*Error{
		ErrNameInvalid,
		ErrConfigInvalid,
		ErrTransport,
		ErrStoreRejected,
		ErrLockConflict,
		ErrLockStale,
		ErrLockNotHeld,
		ErrDataSync,
		ErrDiscoveryTimeout,
		ErrProcessNotFound,
		ErrWorldOnline,
		ErrNotHosted,
		ErrAddressPending,
		ErrAlreadyRunning,
		ErrJournalChainBroken,
		ErrInternal,
	}
}
