package txlock

import "errors"

// Sentinel errors for the taxonomy in spec.md §7. Callers discriminate with
// errors.Is rather than string matching.
var (
	// ErrNotEnabled is returned by ProcessRequest and ProcessVote when the
	// engine has been administratively disabled (Config.Enable == false).
	ErrNotEnabled = errors.New("txlock: engine not enabled")

	// ErrStructuralInvalid covers malformed requests/votes: bad signature,
	// fee too low, malformed outputs. Reject, do not retain.
	ErrStructuralInvalid = errors.New("txlock: structurally invalid")

	// ErrTemporalNotReady covers inputs too young or a UTXO temporarily
	// unresolvable. The caller may retry later once orphan evidence piles up.
	ErrTemporalNotReady = errors.New("txlock: not yet ready")

	// ErrConflictCompleted is returned when a request tries to spend an
	// outpoint some other transaction has already locked.
	ErrConflictCompleted = errors.New("txlock: outpoint already locked by another tx")

	// ErrDoubleLock is surfaced (not returned to the original caller — it
	// is an operator-visible condition) when resolveConflicts discovers two
	// already-locked candidates spending the same outpoint.
	ErrDoubleLock = errors.New("txlock: double lock detected, both candidates dropped")

	// ErrDoSThrottled is returned by ProcessVote (and the vote is not
	// relayed) when an orphan vote is dropped as spam.
	ErrDoSThrottled = errors.New("txlock: orphan vote throttled")

	// ErrUnknownCommitteeMember is returned when a vote references a
	// committee member this node has not yet seen; the caller
	// should query the originating peer for that member's registration.
	ErrUnknownCommitteeMember = errors.New("txlock: unknown committee member")

	// ErrAlreadyLocked is returned by tryFinalize when the candidate's tx
	// is already present in lockedOutpoints.
	ErrAlreadyLocked = errors.New("txlock: already locked")

	// ErrMempoolConflict is returned by resolveConflicts when some other
	// mempool tx currently spends one of the candidate's inputs.
	ErrMempoolConflict = errors.New("txlock: conflicting tx in mempool")

	// ErrUTXOSpent is returned by resolveConflicts when an input was
	// consumed on-chain by a conflicting transaction while votes were
	// still in flight.
	ErrUTXOSpent = errors.New("txlock: input no longer unspent")
)
