// Package models holds the wire-format-adjacent JSON view of a Bitcoin
// transaction used by the HTTP API — the transport-facing
// shape callers outside the engine see, as distinct from the engine's own
// wire.MsgTx/txlock.LockRequest representation.
package models

import "github.com/btcsuite/btcd/wire"

// TxIn represents a transaction input.
type TxIn struct {
	Txid     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Sequence uint32 `json:"sequence"`
}

// TxOut represents a transaction output.
type TxOut struct {
	Value        int64  `json:"value"` // satoshis
	ScriptPubKey string `json:"scriptPubKey"`
}

// Transaction is the JSON-friendly view of a parsed transaction.
type Transaction struct {
	Txid     string  `json:"txid"`
	Inputs   []TxIn  `json:"inputs"`
	Outputs  []TxOut `json:"outputs"`
	LockTime uint32  `json:"locktime"`
	Version  int32   `json:"version"`
}

// FromWireTx converts a btcd wire.MsgTx into the API's transport shape.
func FromWireTx(tx *wire.MsgTx) Transaction {
	t := Transaction{
		Txid:     tx.TxHash().String(),
		Inputs:   make([]TxIn, len(tx.TxIn)),
		Outputs:  make([]TxOut, len(tx.TxOut)),
		LockTime: tx.LockTime,
		Version:  tx.Version,
	}
	for i, in := range tx.TxIn {
		t.Inputs[i] = TxIn{
			Txid:     in.PreviousOutPoint.Hash.String(),
			Vout:     in.PreviousOutPoint.Index,
			Sequence: in.Sequence,
		}
	}
	for i, out := range tx.TxOut {
		t.Outputs[i] = TxOut{
			Value:        out.Value,
			ScriptPubKey: hexEncode(out.PkScript),
		}
	}
	return t
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0x0f]
	}
	return string(out)
}
