package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrPhoneAlreadyExists is returned when an attempt to register a new
	// user fails because a user with the same phone number already exists.
	ErrPhoneAlreadyExists = errors.New("phone already exists")

	// ErrNoUserWasFound is returned when a query expected to match at least
	// one user record produces an empty result set.
	ErrNoUserWasFound = errors.New("no user was found")

	// ErrSessionAlreadyActive is returned when a start-logging request finds
	// an active session for the same (user, chat) pair. Exactly one of any
	// set of concurrent starters receives the new row; the rest get this.
	ErrSessionAlreadyActive = errors.New("logging session already active")

	// ErrSessionNotFound is returned when a logging-session id does not
	// exist or belongs to a different user.
	ErrSessionNotFound = errors.New("logging session not found")

	// ErrListenerAlreadyExists is returned when a listener for the same
	// (user, source chat) pair already exists, active or not.
	ErrListenerAlreadyExists = errors.New("listener already exists")

	// ErrListenerNotFound is returned when a listener id does not exist or
	// belongs to a different user.
	ErrListenerNotFound = errors.New("listener not found")

	// ErrElaborationExists is returned when an elaboration name is already
	// taken within the listener.
	ErrElaborationExists = errors.New("elaboration name already exists")

	// ErrElaborationNotFound is returned when an elaboration id does not
	// exist under the given listener.
	ErrElaborationNotFound = errors.New("elaboration not found")

	// ErrRedirectExists is returned when a second redirect elaboration is
	// inserted for a listener that already has one.
	ErrRedirectExists = errors.New("listener already has a redirect")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain
// logic can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommittingTransaction is returned when committing an open
	// transaction fails. The transaction is considered rolled back.
	ErrCommittingTransaction = errors.New("failed to commit transaction")

	// ErrScanningRow is returned when scanning column values from a single
	// result row into a destination struct fails.
	ErrScanningRow = errors.New("failed to scan row")

	// ErrScanningRows is returned when scanning column values during
	// multi-row iteration fails, typically mid-result-set.
	ErrScanningRows = errors.New("failed to scan rows")
)
