package txlock

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
)

// Engine owns all candidates, votes, orphan votes, and reverse indexes, and
// orchestrates accept/vote/finalize/expire and conflict resolution. It
// exposes one logical critical section (spec.md §5): every public method
// acquires mu on entry and releases it before returning. Chain and committee
// lookups made during validation and finalization are synchronous calls made
// while it is held. Relay/notification side effects are collected while the
// lock is held and fired from detached goroutines only after it is released.
type Engine struct {
	mu sync.Mutex

	cfg       Config
	chain     ChainView
	committee Committee
	signer    Signer
	relay     Relayer
	notifier  Notifier
	audit     AuditSink

	candidates             map[TxHash]*LockCandidate
	votesByHash            map[VoteHash]Vote
	orphanVotes            map[VoteHash]Vote
	lockedOutpoints        map[Outpoint]TxHash
	votedOutpoints         map[Outpoint]map[TxHash]struct{}
	acceptedRequests       map[TxHash]LockRequest
	rejectedRequests       map[TxHash]LockRequest
	orphanVoterTimestamps  map[CommitteeId]time.Time
	currentTip             int64
	completedLocks         int64
}

// NewEngine constructs an engine with empty state. Tests instantiate their
// own engine rather than relying on a process-wide singleton.
func NewEngine(cfg Config, chain ChainView, committee Committee, signer Signer, relay Relayer) *Engine {
	return &Engine{
		cfg:                   cfg,
		chain:                 chain,
		committee:             committee,
		signer:                signer,
		relay:                 relay,
		candidates:            make(map[TxHash]*LockCandidate),
		votesByHash:           make(map[VoteHash]Vote),
		orphanVotes:           make(map[VoteHash]Vote),
		lockedOutpoints:       make(map[Outpoint]TxHash),
		votedOutpoints:        make(map[Outpoint]map[TxHash]struct{}),
		acceptedRequests:      make(map[TxHash]LockRequest),
		rejectedRequests:      make(map[TxHash]LockRequest),
		orphanVoterTimestamps: make(map[CommitteeId]time.Time),
		currentTip:            -1,
	}
}

// Notifier is implemented by relay.Notifier: the operator-configured
// instantsendnotify hook, invoked once per completed lock (spec.md §5/§9).
type Notifier interface {
	Notify(TxHash)
}

// SetNotifier attaches the operator-notify hook. Optional; a nil notifier
// leaves lock completion silent apart from the Relayer callbacks.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

// AuditSink persists durable records of lock completions and double-lock
// conflicts outside the engine's in-memory state (spec.md §9, implemented by
// auditlog.Store). Optional; a nil sink simply skips recording.
type AuditSink interface {
	RecordCompletion(ctx context.Context, txid string, signatures, numInputs int) error
	RecordConflict(ctx context.Context, txidA, txidB, outpoint string) error
}

// SetAuditSink attaches the durable audit log. Optional; a nil sink leaves
// lock completions/conflicts unrecorded apart from the Relayer callbacks.
func (e *Engine) SetAuditSink(a AuditSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audit = a
}

// postUnlockTask is a side effect queued while mu is held and executed, in a
// detached goroutine, only after it has been released.
type postUnlockTask func()

func (e *Engine) fire(tasks []postUnlockTask) {
	for _, t := range tasks {
		t := t
		go t()
	}
}

// ProcessRequest is the public entry point for an inbound lock request
// (spec.md §4.3). It is idempotent: a duplicate request for a TxHash already
// tracked returns success without changes.
func (e *Engine) ProcessRequest(req LockRequest) (bool, error) {
	if !e.cfg.Enable {
		return false, ErrNotEnabled
	}
	e.mu.Lock()
	ok, tasks, err := e.processRequestLocked(req)
	e.mu.Unlock()
	e.fire(tasks)
	return ok, err
}

func (e *Engine) processRequestLocked(req LockRequest) (bool, []postUnlockTask, error) {
	var tasks []postUnlockTask
	txHash := req.Hash()

	if _, exists := e.candidates[txHash]; exists {
		return true, tasks, nil
	}

	// 1. Complete-lock conflict check.
	for _, in := range req.Tx.TxIn {
		op := NewOutpoint(in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index)
		if owner, locked := e.lockedOutpoints[op]; locked && owner != txHash {
			return false, tasks, fmt.Errorf("%w: %s", ErrConflictCompleted, op)
		}
	}

	// 2. Competing-request notice (warning only, does not reject).
	for _, in := range req.Tx.TxIn {
		op := NewOutpoint(in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index)
		if set, ok := e.votedOutpoints[op]; ok && len(set) > 0 {
			log.Printf("[txlock] competing request for outpoint %s alongside %d existing candidate(s)", op, len(set))
		}
	}

	// 3. Create candidate.
	requireUnspent := !e.hasEnoughOrphanVotes(req)
	if _, err := validate(e.chain, e.cfg, req, requireUnspent); err != nil {
		e.rejectedRequests[txHash] = req
		return false, tasks, err
	}
	cand := NewLockCandidate(req)
	e.candidates[txHash] = cand
	e.acceptedRequests[txHash] = req

	// 4. Attempt to vote as a committee member (no-op if we are not one).
	if err := e.vote(cand); err != nil {
		log.Printf("[txlock] local voting aborted for %s: %v", txHash, err)
	}

	// 5. Replay orphan votes whose tx is now this candidate.
	e.replayOrphanVotes(cand)

	// 6. Try-finalize: orphan replay may already have produced a quorum.
	finalizeTasks, finalizeErr := e.tryFinalize(cand)
	tasks = append(tasks, finalizeTasks...)
	if finalizeErr != nil {
		log.Printf("[txlock] finalize check for %s: %v", txHash, finalizeErr)
	}

	tasks = append(tasks, func() { e.relay.RelayTransaction(req.Tx) })
	return true, tasks, nil
}

// hasEnoughOrphanVotes reports whether every input of req already has at
// least SIGNATURES_REQUIRED orphan votes waiting for it — the condition
// under which requireUnspent is relaxed (spec.md §4.1, §4.3) and under
// which an orphan-triggered processRequest replay is attempted (§4.6).
func (e *Engine) hasEnoughOrphanVotes(req LockRequest) bool {
	txHash := req.Hash()
	for _, in := range req.Tx.TxIn {
		op := NewOutpoint(in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index)
		count := 0
		for _, v := range e.orphanVotes {
			if v.TxHash == txHash && v.Outpoint == op {
				count++
			}
		}
		if count < e.cfg.SignaturesRequired {
			return false
		}
	}
	return len(req.Tx.TxIn) > 0
}

// vote runs the local committee member's signing loop over a candidate's
// outpoints (spec.md §4.5). It aborts the whole loop — without advancing to
// further outpoints — the moment a producing height cannot be resolved,
// since the UTXO view is then considered temporarily incoherent.
func (e *Engine) vote(c *LockCandidate) error {
	self, isMember := e.committee.Self()
	if !isMember {
		return nil
	}

	for op, lock := range c.OutpointLocks {
		height, err := e.resolveOutpointHeight(op)
		if err != nil {
			return fmt.Errorf("cannot resolve height for %s: %w", op, err)
		}

		voteHeight := height + 4
		rank, err := e.committee.Rank(self, voteHeight, e.cfg.MinProtocolVersion)
		if err != nil {
			return fmt.Errorf("rank lookup failed for %s: %w", op, err)
		}
		if rank < 0 || rank >= e.cfg.SignaturesTotal {
			continue
		}

		if e.memberVotedOnOutpoint(self, op) {
			continue
		}
		if lock.HasVoted(self) {
			continue
		}

		sig, err := e.signer.Sign(self, c.TxHash(), op)
		if err != nil {
			return fmt.Errorf("signing failed for %s: %w", op, err)
		}
		verified, err := e.signer.Verify(self, c.TxHash(), op, sig)
		if err != nil || !verified {
			return fmt.Errorf("self-verification failed for %s: %w", op, err)
		}

		v := Vote{
			TxHash:          c.TxHash(),
			Outpoint:        op,
			CommitteeId:     self,
			Signature:       sig,
			TimeCreated:     time.Now(),
			ConfirmedHeight: -1,
		}
		e.votesByHash[v.Hash()] = v
		lock.AddVote(v)
		e.markVotedOutpoint(op, v.TxHash)
	}
	return nil
}

// memberVotedOnOutpoint reports whether id has ever voted for op, across
// every candidate that has touched it — a member may vote for a given
// outpoint at most once, ever (spec.md §4.5).
func (e *Engine) memberVotedOnOutpoint(id CommitteeId, op Outpoint) bool {
	for txh := range e.votedOutpoints[op] {
		cand, ok := e.candidates[txh]
		if !ok {
			continue
		}
		if lock, ok := cand.OutpointLocks[op]; ok && lock.HasVoted(id) {
			return true
		}
	}
	return false
}

func (e *Engine) markVotedOutpoint(op Outpoint, txHash TxHash) {
	set, ok := e.votedOutpoints[op]
	if !ok {
		set = make(map[TxHash]struct{})
		e.votedOutpoints[op] = set
	}
	set[txHash] = struct{}{}
}

// resolveOutpointHeight resolves the producing height of an outpoint,
// falling back from the live UTXO set to the historical transaction lookup.
func (e *Engine) resolveOutpointHeight(op Outpoint) (int64, error) {
	if h, err := e.chain.UtxoHeight(op); err == nil && h >= 0 {
		return h, nil
	}
	_, blockHash, found, err := e.chain.Transaction(op.Hash)
	if err != nil || !found {
		return -1, fmt.Errorf("producing transaction for %s not found", op)
	}
	var zero TxHash
	if blockHash == zero {
		return -1, fmt.Errorf("producing transaction for %s is unconfirmed", op)
	}
	return e.chain.BlockHeight(blockHash)
}

// replayOrphanVotes attaches any stashed orphan vote whose tx hash matches c
// to the candidate, removing it from orphanVotes (invariant 5, spec.md §8).
func (e *Engine) replayOrphanVotes(c *LockCandidate) {
	txHash := c.TxHash()
	for vh, v := range e.orphanVotes {
		if v.TxHash != txHash {
			continue
		}
		lock, ok := c.OutpointLocks[v.Outpoint]
		if !ok {
			delete(e.orphanVotes, vh)
			continue
		}
		lock.AddVote(v)
		e.votesByHash[vh] = v
		e.markVotedOutpoint(v.Outpoint, txHash)
		delete(e.orphanVotes, vh)
	}
}

// ProcessVote is the public entry point for an inbound vote (spec.md §4.6).
func (e *Engine) ProcessVote(peer string, v Vote) (bool, error) {
	if !e.cfg.Enable {
		return false, ErrNotEnabled
	}
	e.mu.Lock()
	ok, tasks, err := e.processVoteLocked(peer, v)
	e.mu.Unlock()
	e.fire(tasks)
	return ok, err
}

func (e *Engine) processVoteLocked(peer string, v Vote) (bool, []postUnlockTask, error) {
	var tasks []postUnlockTask

	if err := e.validateVote(peer, v); err != nil {
		return false, tasks, err
	}

	cand, exists := e.candidates[v.TxHash]
	if !exists {
		return e.processOrphanVoteLocked(v)
	}

	// A vote whose identity hash is already stored is a duplicate: the first
	// copy is kept, and nothing is attached or relayed again.
	if _, known := e.votesByHash[v.Hash()]; known {
		return true, tasks, nil
	}

	// Double-sign slashing check: has this member already signed a
	// *different* tx for the same outpoint?
	for txh := range e.votedOutpoints[v.Outpoint] {
		if txh == v.TxHash {
			continue
		}
		other, ok := e.candidates[txh]
		if !ok {
			continue
		}
		if lock, ok := other.OutpointLocks[v.Outpoint]; ok && lock.HasVoted(v.CommitteeId) {
			return false, tasks, fmt.Errorf("%w: member %s already voted for %s on outpoint %s", ErrStructuralInvalid, v.CommitteeId, txh, v.Outpoint)
		}
	}

	lock, ok := cand.OutpointLocks[v.Outpoint]
	if !ok {
		return false, tasks, fmt.Errorf("%w: outpoint %s is not an input of %s", ErrStructuralInvalid, v.Outpoint, v.TxHash)
	}

	e.markVotedOutpoint(v.Outpoint, v.TxHash)
	lock.AddVote(v)
	e.votesByHash[v.Hash()] = v

	finalizeTasks, finalizeErr := e.tryFinalize(cand)
	tasks = append(tasks, finalizeTasks...)
	if finalizeErr != nil {
		log.Printf("[txlock] finalize check for %s: %v", v.TxHash, finalizeErr)
	}
	vh := v.Hash()
	tasks = append(tasks, func() { e.relay.RelayInv(vh) })
	return true, tasks, nil
}

// processOrphanVoteLocked handles a vote whose transaction has no candidate
// yet (spec.md §4.6 point 2). The DoS throttle applies to every orphan vote
// that is not already stored and does not trigger a request replay, whether
// or not its request has arrived yet — matching
// CInstantSend::ProcessTxLockVote, where the rate check runs regardless of
// mapLockRequestAccepted/Rejected membership (SPEC_FULL.md §9).
func (e *Engine) processOrphanVoteLocked(v Vote) (bool, []postUnlockTask, error) {
	var tasks []postUnlockTask
	vh := v.Hash()

	if _, known := e.votesByHash[vh]; known {
		return true, tasks, nil
	}
	if _, known := e.orphanVotes[vh]; !known {
		e.orphanVotes[vh] = v

		req, accepted := e.acceptedRequests[v.TxHash]
		if !accepted {
			req, accepted = e.rejectedRequests[v.TxHash]
		}
		if accepted && e.hasEnoughOrphanVotes(req) {
			_, moreTasks, err := e.processRequestLocked(req)
			return err == nil, append(tasks, moreTasks...), err
		}
	}

	// DoS throttle: drop spam from a member whose prior timestamp is still
	// in the future and above the running average of all current entries.
	now := time.Now()
	avg := e.averageOrphanVoteTime()
	if prior, ok := e.orphanVoterTimestamps[v.CommitteeId]; ok {
		if prior.After(now) && prior.After(avg) {
			return false, tasks, ErrDoSThrottled
		}
	}
	e.orphanVoterTimestamps[v.CommitteeId] = now.Add(e.cfg.OrphanVoteSeconds)
	return true, tasks, nil
}

// averageOrphanVoteTime reproduces GetAverageGhostnodeOrphanVoteTime from
// original_source/src/ghostnode/instantx.cpp: the mean of all current
// orphan-voter expiry timestamps.
func (e *Engine) averageOrphanVoteTime() time.Time {
	if len(e.orphanVoterTimestamps) == 0 {
		return time.Time{}
	}
	var total int64
	for _, t := range e.orphanVoterTimestamps {
		total += t.Unix()
	}
	mean := total / int64(len(e.orphanVoterTimestamps))
	return time.Unix(mean, 0)
}

// validateVote runs spec.md §4.2's checks.
func (e *Engine) validateVote(peer string, v Vote) error {
	if !e.committee.Has(v.CommitteeId) {
		e.committee.AskFor(peer, v.CommitteeId)
		return fmt.Errorf("%w: %s", ErrUnknownCommitteeMember, v.CommitteeId)
	}

	height, err := e.resolveOutpointHeight(v.Outpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTemporalNotReady, err)
	}

	selectionHeight := height + 4
	rank, err := e.committee.Rank(v.CommitteeId, selectionHeight, e.cfg.MinProtocolVersion)
	if err != nil || rank < 0 || rank >= e.cfg.SignaturesTotal {
		return fmt.Errorf("%w: %s not ranked in top %d at height %d", ErrStructuralInvalid, v.CommitteeId, e.cfg.SignaturesTotal, selectionHeight)
	}

	ok, err := e.signer.Verify(v.CommitteeId, v.TxHash, v.Outpoint, v.Signature)
	if err != nil || !ok {
		return fmt.Errorf("%w: signature verification failed", ErrStructuralInvalid)
	}
	return nil
}

// tryFinalize runs conflict resolution and, on success, commits the
// candidate's outpoints into the locked set (spec.md §4.7). Returns the
// post-unlock relay tasks produced, if any, plus the reject reason when
// finalization did not happen — not propagated to ProcessRequest/ProcessVote's
// own return value, since a finalize miss on one candidate does not make the
// caller's own request/vote invalid; logged at the call site instead.
func (e *Engine) tryFinalize(c *LockCandidate) ([]postUnlockTask, error) {
	if !c.AllReady(e.cfg.SignaturesRequired) {
		return nil, nil
	}
	if e.isFullyLocked(c.TxHash()) {
		return nil, ErrAlreadyLocked
	}
	return e.resolveConflicts(c, e.cfg.KeepLockBlocks)
}

func (e *Engine) isFullyLocked(txHash TxHash) bool {
	for _, owner := range e.lockedOutpoints {
		if owner == txHash {
			return true
		}
	}
	return false
}

// resolveConflicts implements spec.md §4.7's conflict-resolution policy.
func (e *Engine) resolveConflicts(c *LockCandidate, maxBlocks int64) ([]postUnlockTask, error) {
	txHash := c.TxHash()

	for op := range c.OutpointLocks {
		if owner, locked := e.lockedOutpoints[op]; locked && owner != txHash {
			return e.handleDoubleLock(c, owner, op)
		}
	}
	for op := range c.OutpointLocks {
		if spender, found, err := e.chain.MempoolSpender(op); err == nil && found && spender != txHash {
			return nil, fmt.Errorf("%w: %s spent by %s", ErrMempoolConflict, op, spender)
		}
	}

	if _, blockHash, found, err := e.chain.Transaction(txHash); err == nil && found {
		var zero TxHash
		if blockHash != zero {
			return e.commit(c), nil
		}
	}

	for op := range c.OutpointLocks {
		h, err := e.chain.UtxoHeight(op)
		if err != nil || h < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUTXOSpent, op)
		}
	}

	return e.commit(c), nil
}

// handleDoubleLock marks both conflicting candidates expired and evicts
// them, per spec.md §4.7: "this can only occur if a majority of the
// committee for that outpoint was malicious."
func (e *Engine) handleDoubleLock(c *LockCandidate, otherHash TxHash, op Outpoint) ([]postUnlockTask, error) {
	c.ConfirmedHeight = 0
	delete(e.acceptedRequests, c.TxHash())

	other, hasOther := e.candidates[otherHash]
	if hasOther {
		other.ConfirmedHeight = 0
		delete(e.acceptedRequests, otherHash)
	}

	e.evictExpiredLocked()

	// Eviction clears rejectedRequests for the evicted candidates, so both
	// requests are recorded as rejected after it.
	e.rejectedRequests[c.TxHash()] = c.Request
	if hasOther {
		e.rejectedRequests[otherHash] = other.Request
	}

	log.Printf("[txlock] DOUBLE LOCK detected on outpoint %s between %s and %s — both candidates dropped", op, c.TxHash(), otherHash)
	txHash, other := c.TxHash(), otherHash
	audit := e.audit
	tasks := []postUnlockTask{func() {
		e.relay.RelayDoubleLock(txHash, other, op)
		if audit != nil {
			if err := audit.RecordConflict(context.Background(), txHash.String(), other.String(), op.String()); err != nil {
				log.Printf("[txlock] audit RecordConflict failed for %s/%s: %v", txHash, other, err)
			}
		}
	}}
	return tasks, fmt.Errorf("%w: %s vs %s on outpoint %s", ErrDoubleLock, txHash, other, op)
}

// commit inserts every input outpoint into lockedOutpoints.
func (e *Engine) commit(c *LockCandidate) []postUnlockTask {
	txHash := c.TxHash()
	for op := range c.OutpointLocks {
		e.lockedOutpoints[op] = txHash
	}
	e.completedLocks++
	notifier := e.notifier
	audit := e.audit
	signatures := c.MinSignatures()
	numInputs := len(c.Request.Tx.TxIn)
	return []postUnlockTask{func() {
		e.relay.RelayLockCompleted(txHash)
		if notifier != nil {
			notifier.Notify(txHash)
		}
		if audit != nil {
			if err := audit.RecordCompletion(context.Background(), txHash.String(), signatures, numInputs); err != nil {
				log.Printf("[txlock] audit RecordCompletion failed for %s: %v", txHash, err)
			}
		}
	}}
}

// CheckAndRemove evicts expired candidates, votes, and orphan-voter DoS
// timestamps, driven by tip updates (spec.md §4.8).
func (e *Engine) CheckAndRemove() {
	e.mu.Lock()
	e.evictExpiredLocked()
	e.mu.Unlock()
}

func (e *Engine) evictExpiredLocked() {
	now := time.Now()

	for txHash, cand := range e.candidates {
		expiredByHeight := cand.ConfirmedHeight != -1 && (e.currentTip-cand.ConfirmedHeight) > e.cfg.KeepLockBlocks
		expiredByConflict := cand.ConfirmedHeight == 0
		if !expiredByHeight && !expiredByConflict {
			continue
		}
		for op, owner := range e.lockedOutpoints {
			if owner == txHash {
				delete(e.lockedOutpoints, op)
			}
		}
		for op := range cand.OutpointLocks {
			if set, ok := e.votedOutpoints[op]; ok {
				delete(set, txHash)
				if len(set) == 0 {
					delete(e.votedOutpoints, op)
				}
			}
			for vh, v := range e.votesByHash {
				if v.TxHash == txHash && v.Outpoint == op {
					delete(e.votesByHash, vh)
				}
			}
		}
		delete(e.candidates, txHash)
		delete(e.acceptedRequests, txHash)
		delete(e.rejectedRequests, txHash)
	}

	for vh, v := range e.orphanVotes {
		if v.IsExpired(now, e.cfg.OrphanVoteSeconds) {
			delete(e.orphanVotes, vh)
		}
	}

	for id, expiry := range e.orphanVoterTimestamps {
		if expiry.Before(now) {
			delete(e.orphanVoterTimestamps, id)
		}
	}
}

// SyncTransaction records a transaction's confirmation state, observed in a
// new block, a reorg, or a disconnection moving it back to mempool
// (spec.md §4.9). blockHeight is -1 for unconfirmed/conflicted. Coinbase
// transactions are ignored.
func (e *Engine) SyncTransaction(tx *wire.MsgTx, blockHeight int64) {
	if isCoinbase(tx) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	txHash := tx.TxHash()
	if cand, ok := e.candidates[txHash]; ok {
		cand.ConfirmedHeight = blockHeight
	}
	for vh, v := range e.votesByHash {
		if v.TxHash == txHash {
			v.ConfirmedHeight = blockHeight
			e.votesByHash[vh] = v
		}
	}
}

func isCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prev := tx.TxIn[0].PreviousOutPoint
	return prev.Index == math.MaxUint32 && prev.Hash == (wire.OutPoint{}).Hash
}

// UpdatedBlockTip records the new chain tip and drives expiry, matching the
// original implementation's wiring of UpdatedBlockTip to CheckAndRemove
// (SPEC_FULL.md §9).
func (e *Engine) UpdatedBlockTip(height int64) {
	e.mu.Lock()
	e.currentTip = height
	e.evictExpiredLocked()
	e.mu.Unlock()
}

// AlreadyHave reports whether hash is a known request (accepted, rejected,
// or an active candidate) — spec.md §6's alreadyHave, supplemented from
// CInstantSend::AlreadyHave (SPEC_FULL.md §9).
func (e *Engine) AlreadyHave(hash TxHash) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.candidates[hash]; ok {
		return true
	}
	if _, ok := e.acceptedRequests[hash]; ok {
		return true
	}
	_, ok := e.rejectedRequests[hash]
	return ok
}

// AlreadyHaveVote reports whether a vote (live or orphaned) with this hash
// has already been seen.
func (e *Engine) AlreadyHaveVote(vh VoteHash) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.votesByHash[vh]; ok {
		return true
	}
	_, ok := e.orphanVotes[vh]
	return ok
}

// GetTxLockRequest returns the stored request by value (Open Question 1,
// DESIGN.md).
func (e *Engine) GetTxLockRequest(hash TxHash) (LockRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cand, ok := e.candidates[hash]; ok {
		return cand.Request, true
	}
	req, ok := e.acceptedRequests[hash]
	return req, ok
}

// GetTxLockVote returns a stored vote by its identity hash.
func (e *Engine) GetTxLockVote(vh VoteHash) (Vote, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.votesByHash[vh]
	return v, ok
}

// IsReadyToLock reports whether every outpoint of the candidate has
// reached quorum.
func (e *Engine) IsReadyToLock(hash TxHash) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cand, ok := e.candidates[hash]
	return ok && cand.AllReady(e.cfg.SignaturesRequired)
}

// IsLocked reports whether hash has committed at least one outpoint into
// lockedOutpoints.
func (e *Engine) IsLocked(hash TxHash) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isFullyLocked(hash)
}

// SignaturesCount returns the candidate's minimum per-outpoint vote count,
// or a negative status if the tx is unknown (spec.md §6).
func (e *Engine) SignaturesCount(hash TxHash) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cand, ok := e.candidates[hash]
	if !ok {
		return -1
	}
	return cand.MinSignatures()
}

// Relay re-broadcasts a known lock request's transaction.
func (e *Engine) Relay(hash TxHash) {
	e.mu.Lock()
	req, ok := e.acceptedRequests[hash]
	e.mu.Unlock()
	if !ok {
		return
	}
	e.relay.RelayTransaction(req.Tx)
}
