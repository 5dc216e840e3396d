package txlock

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// fakeChain is a minimal in-memory ChainView double. Tests populate only the
// lookups their scenario needs; anything else returns "not found".
type fakeChain struct {
	height   int64
	utxos    map[Outpoint]struct{ value, height int64 }
	txs      map[TxHash]struct {
		tx        *wire.MsgTx
		blockHash TxHash
	}
	blockHts map[TxHash]int64
	spenders map[Outpoint]TxHash
	notFinal map[TxHash]bool
}

func newFakeChain(height int64) *fakeChain {
	return &fakeChain{
		height: height,
		utxos:  make(map[Outpoint]struct{ value, height int64 }),
		txs: make(map[TxHash]struct {
			tx        *wire.MsgTx
			blockHash TxHash
		}),
		blockHts: make(map[TxHash]int64),
		spenders: make(map[Outpoint]TxHash),
		notFinal: make(map[TxHash]bool),
	}
}

func (c *fakeChain) addUTXO(o Outpoint, value, height int64) {
	c.utxos[o] = struct{ value, height int64 }{value, height}
}

func (c *fakeChain) addConfirmedTx(tx *wire.MsgTx, blockHash TxHash, blockHeight int64) {
	c.txs[tx.TxHash()] = struct {
		tx        *wire.MsgTx
		blockHash TxHash
	}{tx, blockHash}
	c.blockHts[blockHash] = blockHeight
}

func (c *fakeChain) UtxoHeight(o Outpoint) (int64, error) {
	u, ok := c.utxos[o]
	if !ok {
		return -1, fmt.Errorf("fakeChain: %s not a live utxo", o)
	}
	return u.height, nil
}

func (c *fakeChain) UtxoCoin(o Outpoint) (int64, int64, error) {
	u, ok := c.utxos[o]
	if !ok {
		return 0, 0, fmt.Errorf("fakeChain: %s not a live utxo", o)
	}
	return u.value, u.height, nil
}

func (c *fakeChain) Transaction(hash TxHash) (*wire.MsgTx, TxHash, bool, error) {
	info, ok := c.txs[hash]
	if !ok {
		var zero TxHash
		return nil, zero, false, nil
	}
	return info.tx, info.blockHash, true, nil
}

func (c *fakeChain) Height() (int64, error) { return c.height, nil }

func (c *fakeChain) CheckFinal(tx *wire.MsgTx) (bool, error) {
	return !c.notFinal[tx.TxHash()], nil
}

func (c *fakeChain) MempoolSpender(o Outpoint) (TxHash, bool, error) {
	var zero TxHash
	spender, ok := c.spenders[o]
	if !ok {
		return zero, false, nil
	}
	return spender, true, nil
}

func (c *fakeChain) BlockHeight(blockHash TxHash) (int64, error) {
	h, ok := c.blockHts[blockHash]
	if !ok {
		return -1, fmt.Errorf("fakeChain: unknown block")
	}
	return h, nil
}

// fakeCommittee is a Committee double with a fixed rank per member,
// independent of height — sufficient for every scenario in spec.md §8,
// none of which depends on rank varying by height.
type fakeCommittee struct {
	mu      sync.Mutex
	members map[CommitteeId]bool
	ranks   map[CommitteeId]int
	self    CommitteeId
	hasSelf bool
	asked   []CommitteeId
}

func newFakeCommittee() *fakeCommittee {
	return &fakeCommittee{members: make(map[CommitteeId]bool), ranks: make(map[CommitteeId]int)}
}

func (f *fakeCommittee) register(id CommitteeId, rank int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[id] = true
	f.ranks[id] = rank
}

func (f *fakeCommittee) setSelf(id CommitteeId) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.self = id
	f.hasSelf = true
}

func (f *fakeCommittee) Has(id CommitteeId) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[id]
}

func (f *fakeCommittee) Rank(id CommitteeId, atHeight int64, minProtocolVersion uint32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ranks[id]
	if !ok {
		return -1, nil
	}
	return r, nil
}

func (f *fakeCommittee) Info(id CommitteeId) bool { return f.Has(id) }

func (f *fakeCommittee) AskFor(peer string, id CommitteeId) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, id)
}

func (f *fakeCommittee) Self() (CommitteeId, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.self, f.hasSelf
}

// fakeSigner ties a "signature" deterministically to (id, txHash, outpoint)
// so tests can forge arbitrary valid votes without real elliptic-curve math.
type fakeSigner struct{}

func (fakeSigner) Sign(id CommitteeId, txHash TxHash, outpoint Outpoint) ([]byte, error) {
	return []byte(fmt.Sprintf("%s|%s|%s", id, txHash, outpoint)), nil
}

func (fakeSigner) Verify(id CommitteeId, txHash TxHash, outpoint Outpoint, sig []byte) (bool, error) {
	expect := fmt.Sprintf("%s|%s|%s", id, txHash, outpoint)
	return string(sig) == expect, nil
}

// fakeRelay records every relayed event for assertion.
type fakeRelay struct {
	mu          sync.Mutex
	invs        []VoteHash
	txs         []*wire.MsgTx
	completed   []TxHash
	doubleLocks []struct {
		a, b TxHash
		op   Outpoint
	}
}

func newFakeRelay() *fakeRelay { return &fakeRelay{} }

func (r *fakeRelay) RelayInv(vh VoteHash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invs = append(r.invs, vh)
}

func (r *fakeRelay) RelayTransaction(tx *wire.MsgTx) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, tx)
}

func (r *fakeRelay) RelayLockCompleted(txHash TxHash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, txHash)
}

func (r *fakeRelay) RelayDoubleLock(a, b TxHash, op Outpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doubleLocks = append(r.doubleLocks, struct {
		a, b TxHash
		op   Outpoint
	}{a, b, op})
}

// --- construction helpers -------------------------------------------------

func testHash(seed string) TxHash {
	return chainhash.HashH([]byte(seed))
}

func testCommitteeId(seed string) CommitteeId {
	return CommitteeId{Collateral: wire.OutPoint{Hash: testHash(seed), Index: 0}}
}

// p2pkhScript returns a standard pay-to-pubkey-hash script, recognized by
// isAcceptableOutputScript.
func p2pkhScript() []byte {
	script := make([]byte, 0, 25)
	script = append(script, 0x76, 0xa9, 0x14)
	script = append(script, make([]byte, 20)...)
	script = append(script, 0x88, 0xac)
	return script
}

// buildTx constructs a transaction spending the given outpoints and paying
// the given output values, using a standard P2PKH output script throughout.
func buildTx(inputs []Outpoint, outputValues []int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, o := range inputs {
		tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: o.Hash, Index: o.Index}, nil, nil))
	}
	for _, v := range outputValues {
		tx.AddTxOut(wire.NewTxOut(v, p2pkhScript()))
	}
	return tx
}

// voteFor signs a valid vote for (txHash, op) on behalf of id using the
// fakeSigner convention.
func voteFor(id CommitteeId, txHash TxHash, op Outpoint) Vote {
	sig, _ := fakeSigner{}.Sign(id, txHash, op)
	return Vote{
		TxHash:          txHash,
		Outpoint:        op,
		CommitteeId:     id,
		Signature:       sig,
		ConfirmedHeight: -1,
	}
}
