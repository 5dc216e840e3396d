package txlock

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
)

// The vote hash must exclude the signature: two votes differing only in
// signature bytes collide on the same VoteHash (see DESIGN.md Open Question
// 3), so that only the first-seen signature for a given (tx, outpoint,
// member) triple is retained.
func TestVote_HashExcludesSignature(t *testing.T) {
	txHash := testHash("vote-hash-tx")
	op := Outpoint{Hash: testHash("vote-hash-op"), Index: 2}
	id := testCommitteeId("vote-hash-member")

	v1 := Vote{TxHash: txHash, Outpoint: op, CommitteeId: id, Signature: []byte("sig-one")}
	v2 := Vote{TxHash: txHash, Outpoint: op, CommitteeId: id, Signature: []byte("sig-two-longer")}

	if v1.Hash() != v2.Hash() {
		t.Fatalf("expected identical VoteHash regardless of signature bytes")
	}
}

// Changing any of the three hashed fields must change the vote hash.
func TestVote_HashDependsOnIdentityFields(t *testing.T) {
	base := Vote{
		TxHash:      testHash("base-tx"),
		Outpoint:    Outpoint{Hash: testHash("base-op"), Index: 0},
		CommitteeId: testCommitteeId("base-member"),
	}

	variants := []Vote{
		base,
		{TxHash: testHash("other-tx"), Outpoint: base.Outpoint, CommitteeId: base.CommitteeId},
		{TxHash: base.TxHash, Outpoint: Outpoint{Hash: testHash("other-op"), Index: 0}, CommitteeId: base.CommitteeId},
		{TxHash: base.TxHash, Outpoint: base.Outpoint, CommitteeId: testCommitteeId("other-member")},
	}

	seen := make(map[VoteHash]bool)
	for i, v := range variants {
		h := v.Hash()
		if seen[h] && i != 0 {
			t.Fatalf("variant %d collided with an earlier hash unexpectedly", i)
		}
		seen[h] = true
	}
	if len(seen) != len(variants) {
		t.Fatalf("expected %d distinct hashes, got %d", len(variants), len(seen))
	}
}

func TestVote_IsExpired(t *testing.T) {
	now := time.Now()
	v := Vote{TimeCreated: now.Add(-11 * time.Minute)}
	if !v.IsExpired(now, 10*time.Minute) {
		t.Fatalf("expected vote created 11m ago to be expired under a 10m window")
	}
	fresh := Vote{TimeCreated: now.Add(-1 * time.Minute)}
	if fresh.IsExpired(now, 10*time.Minute) {
		t.Fatalf("did not expect a 1m-old vote to be expired under a 10m window")
	}
}

// NewLockCandidate builds one OutpointLock per distinct input, regardless of
// iteration order.
func TestNewLockCandidate_OneOutpointLockPerInput(t *testing.T) {
	op1 := Outpoint{Hash: testHash("cand-in-1"), Index: 0}
	op2 := Outpoint{Hash: testHash("cand-in-2"), Index: 1}
	tx := buildTx([]Outpoint{op1, op2}, []int64{500000})
	req := LockRequest{Tx: tx, TimeCreated: time.Now()}

	c := NewLockCandidate(req)
	if len(c.OutpointLocks) != 2 {
		t.Fatalf("expected 2 outpoint locks, got %d", len(c.OutpointLocks))
	}
	if _, ok := c.OutpointLocks[op1]; !ok {
		t.Fatalf("missing outpoint lock for %s", op1)
	}
	if _, ok := c.OutpointLocks[op2]; !ok {
		t.Fatalf("missing outpoint lock for %s", op2)
	}
	if c.ConfirmedHeight != -1 {
		t.Fatalf("expected new candidate to start unconfirmed (-1), got %d", c.ConfirmedHeight)
	}
}

func TestLockCandidate_AllReadyAndMinSignatures(t *testing.T) {
	op1 := Outpoint{Hash: testHash("ready-in-1"), Index: 0}
	op2 := Outpoint{Hash: testHash("ready-in-2"), Index: 0}
	tx := buildTx([]Outpoint{op1, op2}, []int64{500000})
	c := NewLockCandidate(LockRequest{Tx: tx, TimeCreated: time.Now()})

	required := 3
	if c.AllReady(required) {
		t.Fatalf("fresh candidate with no votes must not be ready")
	}
	if c.MinSignatures() != 0 {
		t.Fatalf("expected MinSignatures = 0 for a fresh candidate, got %d", c.MinSignatures())
	}

	for i := 0; i < required; i++ {
		c.OutpointLocks[op1].AddVote(Vote{CommitteeId: testCommitteeId(rankSeed(i))})
	}
	if c.AllReady(required) {
		t.Fatalf("candidate must not be ready while op2 has zero votes")
	}
	if c.MinSignatures() != 0 {
		t.Fatalf("expected MinSignatures = 0 while op2 is unvoted, got %d", c.MinSignatures())
	}

	for i := 0; i < required; i++ {
		c.OutpointLocks[op2].AddVote(Vote{CommitteeId: testCommitteeId(rankSeed(i + 100))})
	}
	if !c.AllReady(required) {
		t.Fatalf("expected candidate to be ready once both outpoint locks hit quorum")
	}
	if c.MinSignatures() != required {
		t.Fatalf("expected MinSignatures = %d, got %d", required, c.MinSignatures())
	}
}

func TestLockCandidate_HasVoted(t *testing.T) {
	op := Outpoint{Hash: testHash("hasvoted-in"), Index: 0}
	tx := buildTx([]Outpoint{op}, []int64{500000})
	c := NewLockCandidate(LockRequest{Tx: tx, TimeCreated: time.Now()})

	member := testCommitteeId("hasvoted-member")
	if c.HasVoted(member) {
		t.Fatalf("unvoted member should report HasVoted = false")
	}
	c.OutpointLocks[op].AddVote(Vote{CommitteeId: member})
	if !c.HasVoted(member) {
		t.Fatalf("expected HasVoted = true after AddVote")
	}
}

func TestLockCandidate_IsTimedOut(t *testing.T) {
	now := time.Now()
	c := NewLockCandidate(LockRequest{
		Tx:          buildTx([]Outpoint{{Hash: testHash("timeout-in"), Index: 0}}, []int64{500000}),
		TimeCreated: now.Add(-90 * time.Second),
	})
	if !c.IsTimedOut(now, 60*time.Second) {
		t.Fatalf("expected candidate created 90s ago to be timed out under a 60s window")
	}
}

func TestOutpointLock_AddVoteIsIdempotentPerMember(t *testing.T) {
	op := Outpoint{Hash: testHash("idempotent-op"), Index: 0}
	l := NewOutpointLock(op)
	member := testCommitteeId("idempotent-member")

	l.AddVote(Vote{CommitteeId: member, Signature: []byte("first")})
	l.AddVote(Vote{CommitteeId: member, Signature: []byte("second")})

	if l.Count() != 1 {
		t.Fatalf("expected a repeat vote from the same member to not grow the count, got %d", l.Count())
	}
	if string(l.Votes[member].Signature) != "second" {
		t.Fatalf("expected the later vote to overwrite the earlier one")
	}
}

func TestCommitteeId_String(t *testing.T) {
	h := testHash("committee-string")
	id := CommitteeId{Collateral: wire.OutPoint{Hash: h, Index: 3}}
	want := h.String() + ":3"
	if id.String() != want {
		t.Fatalf("expected %q, got %q", want, id.String())
	}
}
