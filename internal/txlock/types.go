// Package txlock implements the transaction-locking consensus engine: a
// committee-voted quorum mechanism that gives a transaction rapid,
// probabilistic finality before it is mined.
package txlock

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TxHash identifies a transaction.
type TxHash = chainhash.Hash

// Outpoint is a specific output of a prior transaction being spent.
type Outpoint struct {
	Hash  TxHash
	Index uint32
}

func NewOutpoint(hash TxHash, index uint32) Outpoint {
	return Outpoint{Hash: hash, Index: index}
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash.String(), o.Index)
}

// CommitteeId names one committee member by the collateral outpoint it
// controls — the reference system's "outpoint as identity" convention.
type CommitteeId struct {
	Collateral wire.OutPoint
}

func (c CommitteeId) String() string {
	return fmt.Sprintf("%s:%d", c.Collateral.Hash.String(), c.Collateral.Index)
}

// VoteHash is the identity hash of a Vote, computed over (txHash, outpoint,
// committeeId) only. The signature is deliberately excluded so two signed
// votes over the same triple collide and only the first is stored — see
// Open Question 3 in DESIGN.md.
type VoteHash [32]byte

// Vote is a signed statement by one committee member that one outpoint of
// one transaction should be locked.
type Vote struct {
	TxHash         TxHash
	Outpoint       Outpoint
	CommitteeId    CommitteeId
	Signature      []byte
	TimeCreated    time.Time
	ConfirmedHeight int64 // -1 until seen in a block
}

// Hash computes the vote's identity hash, excluding the signature.
func (v Vote) Hash() VoteHash {
	var buf []byte
	buf = append(buf, v.TxHash[:]...)
	buf = append(buf, []byte(v.Outpoint.String())...)
	buf = append(buf, []byte(v.CommitteeId.String())...)
	return VoteHash(chainhash.HashB(buf))
}

// IsExpired reports whether this vote is older than maxSeconds, matching
// CTxLockVote::IsExpired in the reference implementation (used for orphan
// vote eviction, not for confirmed votes attached to a candidate).
func (v Vote) IsExpired(now time.Time, maxSeconds time.Duration) bool {
	return now.Sub(v.TimeCreated) > maxSeconds
}

// OutpointLock is the set of votes received for a single (tx, outpoint)
// pair, tracking readiness toward quorum.
type OutpointLock struct {
	Outpoint Outpoint
	Votes    map[CommitteeId]Vote
}

func NewOutpointLock(o Outpoint) *OutpointLock {
	return &OutpointLock{Outpoint: o, Votes: make(map[CommitteeId]Vote)}
}

// HasVoted reports whether the given committee member already voted on this
// outpoint lock.
func (l *OutpointLock) HasVoted(id CommitteeId) bool {
	_, ok := l.Votes[id]
	return ok
}

// AddVote inserts a vote, keyed by committee member. At most one vote per
// member is retained; a repeat insertion from the same member replaces the
// earlier vote without changing the count.
func (l *OutpointLock) AddVote(v Vote) {
	l.Votes[v.CommitteeId] = v
}

// Count returns the number of distinct committee votes held.
func (l *OutpointLock) Count() int {
	return len(l.Votes)
}

// IsReady reports whether this outpoint lock has reached quorum.
func (l *OutpointLock) IsReady(signaturesRequired int) bool {
	return len(l.Votes) >= signaturesRequired
}

// LockRequest is a full candidate transaction plus the time it was first
// seen by this node. Treated as an immutable value once constructed.
type LockRequest struct {
	Tx          *wire.MsgTx
	TimeCreated time.Time
}

// Hash returns the transaction hash of the request.
func (r LockRequest) Hash() TxHash {
	return r.Tx.TxHash()
}

// IsTimedOut reports whether this request has exceeded the collection
// window without reaching quorum (CTxLockRequest analog: IsTimedOut).
func (r LockRequest) IsTimedOut(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.TimeCreated) > timeout
}

// GetMaxSignatures returns |inputs| * SIGNATURES_TOTAL, the theoretical
// upper bound on votes a fully-voted request could receive.
func (r LockRequest) GetMaxSignatures(signaturesTotal int) int {
	return len(r.Tx.TxIn) * signaturesTotal
}

// LockCandidate is the aggregate state for one lock request: the request
// itself, an OutpointLock per spent input, and the confirmation height.
type LockCandidate struct {
	Request         LockRequest
	OutpointLocks   map[Outpoint]*OutpointLock
	ConfirmedHeight int64 // -1 unconfirmed, 0 expired-by-conflict, >0 confirmed height
}

// NewLockCandidate builds a candidate with one empty OutpointLock per input
// of req, in the reverse of the input vector (matching the reference
// implementation's iteration order — semantically irrelevant, see
// spec.md §4.4 / §9).
func NewLockCandidate(req LockRequest) *LockCandidate {
	c := &LockCandidate{
		Request:         req,
		OutpointLocks:   make(map[Outpoint]*OutpointLock, len(req.Tx.TxIn)),
		ConfirmedHeight: -1,
	}
	for i := len(req.Tx.TxIn) - 1; i >= 0; i-- {
		in := req.Tx.TxIn[i]
		op := NewOutpoint(in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index)
		c.OutpointLocks[op] = NewOutpointLock(op)
	}
	return c
}

// TxHash returns the candidate's transaction hash.
func (c *LockCandidate) TxHash() TxHash {
	return c.Request.Hash()
}

// AllReady reports whether every outpoint lock of the candidate has reached
// quorum.
func (c *LockCandidate) AllReady(signaturesRequired int) bool {
	for _, l := range c.OutpointLocks {
		if !l.IsReady(signaturesRequired) {
			return false
		}
	}
	return true
}

// MinSignatures returns the minimum vote count across the candidate's
// outpoint locks — the reference system's GetTransactionLockSignatures /
// IsInstantSendReadyToLock readiness metric (see SPEC_FULL.md §9).
func (c *LockCandidate) MinSignatures() int {
	min := -1
	for _, l := range c.OutpointLocks {
		n := l.Count()
		if min == -1 || n < min {
			min = n
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

// HasVoted reports whether the given member already voted on any outpoint
// lock owned by this candidate.
func (c *LockCandidate) HasVoted(id CommitteeId) bool {
	for _, l := range c.OutpointLocks {
		if l.HasVoted(id) {
			return true
		}
	}
	return false
}

// IsTimedOut reports whether the underlying request has timed out.
func (c *LockCandidate) IsTimedOut(now time.Time, timeout time.Duration) bool {
	return c.Request.IsTimedOut(now, timeout)
}
