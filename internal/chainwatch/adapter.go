// Package chainwatch adapts a btcd/Bitcoin-Core-compatible RPC node into
// the txlock.ChainView contract, and drives tip/transaction observation
// into the engine's SyncTransaction/UpdatedBlockTip/CheckAndRemove calls.
package chainwatch

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/rawblock/txlock-engine/internal/txlock"
)

// Adapter implements txlock.ChainView over an RPC connection to a full
// node. Trimmed and retargeted from the teacher's internal/bitcoin.Client:
// wallet management, fee estimation, and UTXO-set scanning are dropped (no
// SPEC_FULL component needs them); the read-only lookups the engine
// consumes are kept.
type Adapter struct {
	RPC *rpcclient.Client
}

// NewAdapter wraps an already-connected rpcclient.Client.
func NewAdapter(client *rpcclient.Client) *Adapter {
	return &Adapter{RPC: client}
}

// Height returns the current chain tip height.
func (a *Adapter) Height() (int64, error) {
	h, err := a.RPC.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("chainwatch: GetBlockCount: %w", err)
	}
	return h, nil
}

// UtxoHeight returns the producing height of a live UTXO, or -1 if it is
// not currently unspent.
func (a *Adapter) UtxoHeight(o txlock.Outpoint) (int64, error) {
	result, err := a.RPC.GetTxOut(&o.Hash, o.Index, true)
	if err != nil {
		return -1, fmt.Errorf("chainwatch: GetTxOut %s: %w", o, err)
	}
	if result == nil {
		return -1, nil
	}
	tip, err := a.Height()
	if err != nil {
		return -1, err
	}
	return tip - result.Confirmations + 1, nil
}

// UtxoCoin returns the value (satoshis) and producing height of a live
// UTXO.
func (a *Adapter) UtxoCoin(o txlock.Outpoint) (int64, int64, error) {
	result, err := a.RPC.GetTxOut(&o.Hash, o.Index, true)
	if err != nil {
		return 0, 0, fmt.Errorf("chainwatch: GetTxOut %s: %w", o, err)
	}
	if result == nil {
		return 0, 0, fmt.Errorf("chainwatch: %s is not a live UTXO", o)
	}
	amt, err := btcutil.NewAmount(result.Value)
	if err != nil {
		return 0, 0, fmt.Errorf("chainwatch: bad amount for %s: %w", o, err)
	}
	tip, err := a.Height()
	if err != nil {
		return 0, 0, err
	}
	return int64(amt), tip - result.Confirmations + 1, nil
}

// Transaction looks up a transaction, confirmed or not.
func (a *Adapter) Transaction(hash txlock.TxHash) (*wire.MsgTx, txlock.TxHash, bool, error) {
	var zero txlock.TxHash
	raw, err := a.RPC.GetRawTransactionVerbose(&hash)
	if err != nil {
		return nil, zero, false, nil
	}

	rawBytes, err := hex.DecodeString(raw.Hex)
	if err != nil {
		return nil, zero, false, fmt.Errorf("chainwatch: bad tx hex for %s: %w", hash, err)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(rawBytes)); err != nil {
		return nil, zero, false, fmt.Errorf("chainwatch: deserialize %s: %w", hash, err)
	}

	var blockHash txlock.TxHash
	if raw.BlockHash != "" {
		h, err := chainhash.NewHashFromStr(raw.BlockHash)
		if err != nil {
			return nil, zero, false, fmt.Errorf("chainwatch: bad block hash for %s: %w", hash, err)
		}
		blockHash = *h
	}
	return tx, blockHash, true, nil
}

// BlockHeight resolves the height of a block by hash.
func (a *Adapter) BlockHeight(blockHash txlock.TxHash) (int64, error) {
	verbose, err := a.RPC.GetBlockVerbose(&blockHash)
	if err != nil {
		return -1, fmt.Errorf("chainwatch: GetBlockVerbose %s: %w", blockHash, err)
	}
	return verbose.Height, nil
}

// CheckFinal reports whether tx is final against the current tip, applying
// the standard Bitcoin finality rule: a zero locktime, or every input
// carrying the final sequence number, or the locktime threshold (height vs.
// wall time) is already satisfied.
func (a *Adapter) CheckFinal(tx *wire.MsgTx) (bool, error) {
	if tx.LockTime == 0 {
		return true, nil
	}

	height, err := a.Height()
	if err != nil {
		return false, err
	}

	var comparator int64
	if int64(tx.LockTime) < txscript.LockTimeThreshold {
		comparator = height + 1
	} else {
		comparator = time.Now().Unix()
	}
	if int64(tx.LockTime) < comparator {
		return true, nil
	}

	for _, in := range tx.TxIn {
		if in.Sequence != wire.MaxTxInSequenceNum {
			return false, nil
		}
	}
	return true, nil
}

// MempoolSpender scans the mempool for a transaction currently spending o.
// O(mempool size), matching the cost profile of the teacher's own
// mempool poller (internal/mempool/poller.go), which already accepted this
// trade-off for a single full-mempool pass per tick.
func (a *Adapter) MempoolSpender(o txlock.Outpoint) (txlock.TxHash, bool, error) {
	var zero txlock.TxHash
	txids, err := a.RPC.GetRawMempool()
	if err != nil {
		return zero, false, fmt.Errorf("chainwatch: GetRawMempool: %w", err)
	}
	for _, txid := range txids {
		raw, err := a.RPC.GetRawTransaction(txid)
		if err != nil {
			continue
		}
		tx := raw.MsgTx()
		for _, in := range tx.TxIn {
			if in.PreviousOutPoint.Hash == o.Hash && in.PreviousOutPoint.Index == o.Index {
				h := tx.TxHash()
				if h == o.Hash {
					continue
				}
				return h, true, nil
			}
		}
	}
	return zero, false, nil
}
