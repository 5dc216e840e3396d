package txlock

import (
	"time"

	"github.com/btcsuite/btcd/wire"
)

// ChainView is the narrow read-only view of the host chain state the engine
// consumes. Implemented by internal/chainwatch.Adapter.
type ChainView interface {
	// UtxoHeight returns the height the outpoint's producing transaction was
	// confirmed at, or -1 if the outpoint is not found in the live UTXO set.
	UtxoHeight(o Outpoint) (int64, error)

	// UtxoCoin returns the value and producing height of a live UTXO.
	UtxoCoin(o Outpoint) (value int64, height int64, err error)

	// Transaction looks up a transaction by hash, confirmed or not. blockHash
	// is the zero hash when the transaction is unconfirmed.
	Transaction(hash TxHash) (tx *wire.MsgTx, blockHash TxHash, found bool, err error)

	// Height returns the current chain tip height.
	Height() (int64, error)

	// CheckFinal reports whether tx is final according to the chain's
	// finality rule (lock-time vs. height / current time).
	CheckFinal(tx *wire.MsgTx) (bool, error)

	// MempoolSpender returns the hash of the mempool transaction currently
	// spending o, if any.
	MempoolSpender(o Outpoint) (TxHash, bool, error)

	// BlockHeight resolves the height of a block by hash, used for the
	// historical-lookup fallback when an outpoint has already left the
	// live UTXO set.
	BlockHeight(blockHash TxHash) (int64, error)
}

// Committee is the deterministically ranked set of service-node operators
// eligible to vote for a given outpoint at a given height.
type Committee interface {
	// Has reports whether id is a known, registered committee member.
	Has(id CommitteeId) bool

	// Rank returns the member's rank (0 = highest) among all known members
	// at the given height, or -1 if unranked / below the eligible set.
	Rank(id CommitteeId, atHeight int64, minProtocolVersion uint32) (int, error)

	// Info reports whether the host keeps information about a member; used
	// only for diagnostics here.
	Info(id CommitteeId) (ok bool)

	// AskFor requests that peer announce the registration of an unknown
	// committee member. Best-effort; failures are not surfaced.
	AskFor(peer string, id CommitteeId)

	// Self returns the identity of this node if it is itself a committee
	// member, and whether it is one at all.
	Self() (CommitteeId, bool)
}

// Signer signs and verifies the canonical vote message on behalf of a
// committee member.
type Signer interface {
	Sign(id CommitteeId, txHash TxHash, outpoint Outpoint) ([]byte, error)
	Verify(id CommitteeId, txHash TxHash, outpoint Outpoint, sig []byte) (bool, error)
}

// Relayer propagates accepted votes, requests, and lock events to the rest
// of the network. Relay is best-effort; there are no retries at this layer.
type Relayer interface {
	RelayInv(voteHash VoteHash)
	RelayTransaction(tx *wire.MsgTx)
	RelayLockCompleted(txHash TxHash)
	RelayDoubleLock(a, b TxHash, outpoint Outpoint)
}

// Config holds the deployment parameters named in spec.md §6.
type Config struct {
	SignaturesTotal       int
	SignaturesRequired    int
	ConfirmationsRequired int64
	MinFee                int64 // satoshis
	WarnManyInputs        int
	TimeoutSeconds        time.Duration
	OrphanVoteSeconds     time.Duration
	KeepLockBlocks        int64
	MinProtocolVersion    uint32

	// Enable mirrors the "enable" flag of spec.md §6 (default on).
	Enable bool

	// InstantSendNotify is an external command template; "%s" is
	// substituted with the locked tx's hex hash. Empty disables it.
	InstantSendNotify string

	// Depth is the user-surface depth at which a locked tx is considered
	// final by callers outside the engine (purely advisory — the engine
	// itself does not use it).
	Depth int
}

// DefaultConfig returns the reference deployment parameters.
func DefaultConfig() Config {
	return Config{
		SignaturesTotal:       10,
		SignaturesRequired:    6,
		ConfirmationsRequired: 1,
		MinFee:                10000,
		WarnManyInputs:        4,
		TimeoutSeconds:        60 * time.Second,
		OrphanVoteSeconds:     10 * time.Minute,
		KeepLockBlocks:        24,
		MinProtocolVersion:    70213,
		Enable:                true,
		Depth:                 5,
	}
}
