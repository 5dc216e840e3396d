package txlock

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/wire"
)

// S1: a transaction with no outputs is structurally invalid regardless of
// anything else about it.
func TestValidate_NoOutputs(t *testing.T) {
	chain := newFakeChain(100)
	cfg := DefaultConfig()

	tx := wire.NewMsgTx(wire.TxVersion)
	op := Outpoint{Hash: testHash("no-outputs"), Index: 0}
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: op.Hash, Index: op.Index}, nil, nil))
	chain.addUTXO(op, 1_000_000, 50)

	req := LockRequest{Tx: tx}
	_, err := validate(chain, cfg, req, true)
	if !errors.Is(err, ErrStructuralInvalid) {
		t.Fatalf("expected ErrStructuralInvalid, got %v", err)
	}
}

// S2: a transaction that is not yet final (per CheckFinal) is rejected.
func TestValidate_NotFinal(t *testing.T) {
	chain := newFakeChain(100)
	cfg := DefaultConfig()

	op := Outpoint{Hash: testHash("not-final"), Index: 0}
	chain.addUTXO(op, 1_000_000, 50)
	tx := buildTx([]Outpoint{op}, []int64{900000})
	chain.notFinal[tx.TxHash()] = true

	req := LockRequest{Tx: tx}
	_, err := validate(chain, cfg, req, true)
	if !errors.Is(err, ErrStructuralInvalid) {
		t.Fatalf("expected ErrStructuralInvalid for non-final tx, got %v", err)
	}
}

// S3: an output script that is neither a standard payment script nor a
// data-carrier script is rejected.
func TestValidate_BadOutputScript(t *testing.T) {
	chain := newFakeChain(100)
	cfg := DefaultConfig()

	op := Outpoint{Hash: testHash("bad-script"), Index: 0}
	chain.addUTXO(op, 1_000_000, 50)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: op.Hash, Index: op.Index}, nil, nil))
	// Three no-ops in a row: not a push-only data carrier, not a recognized
	// payment template, classifies as txscript.NonStandardTy.
	tx.AddTxOut(wire.NewTxOut(900000, []byte{0x61, 0x61, 0x61}))

	req := LockRequest{Tx: tx}
	_, err := validate(chain, cfg, req, true)
	if !errors.Is(err, ErrStructuralInvalid) {
		t.Fatalf("expected ErrStructuralInvalid for bad output script, got %v", err)
	}
}

// S4: when requireUnspent is true, an outpoint absent from the live UTXO
// set is rejected even if its producing transaction is known and confirmed.
func TestValidate_RequireUnspentRejectsMissingUTXO(t *testing.T) {
	chain := newFakeChain(100)
	cfg := DefaultConfig()

	producer := buildTx([]Outpoint{{Hash: testHash("spent-grandparent"), Index: 0}}, []int64{1_000_000})
	chain.addConfirmedTx(producer, testHash("block-spent"), 50)

	op := Outpoint{Hash: producer.TxHash(), Index: 0}
	tx := buildTx([]Outpoint{op}, []int64{900000})

	req := LockRequest{Tx: tx}
	_, err := validate(chain, cfg, req, true)
	if !errors.Is(err, ErrTemporalNotReady) {
		t.Fatalf("expected ErrTemporalNotReady when utxo missing and requireUnspent, got %v", err)
	}
}

// S5: when requireUnspent is relaxed (orphan-vote replay path), a spent
// outpoint whose producing transaction is confirmed is still accepted.
func TestValidate_RelaxedUnspentAcceptsConfirmedProducer(t *testing.T) {
	chain := newFakeChain(100)
	cfg := DefaultConfig()

	producer := buildTx([]Outpoint{{Hash: testHash("grandparent"), Index: 0}}, []int64{2_000_000})
	blockHash := testHash("block-50")
	chain.addConfirmedTx(producer, blockHash, 50)

	op := Outpoint{Hash: producer.TxHash(), Index: 0}
	tx := buildTx([]Outpoint{op}, []int64{1_900_000})

	req := LockRequest{Tx: tx}
	if _, err := validate(chain, cfg, req, false); err != nil {
		t.Fatalf("expected relaxed validation to accept confirmed producer, got %v", err)
	}
}

// S6: a fee below max(MIN_FEE, inputs*MIN_FEE) is rejected.
func TestValidate_FeeTooLow(t *testing.T) {
	chain := newFakeChain(100)
	cfg := DefaultConfig()

	op := Outpoint{Hash: testHash("low-fee"), Index: 0}
	chain.addUTXO(op, 1_000_000, 50)
	// Output value leaves only 1 satoshi of fee, far below cfg.MinFee.
	tx := buildTx([]Outpoint{op}, []int64{999999})

	req := LockRequest{Tx: tx}
	_, err := validate(chain, cfg, req, true)
	if !errors.Is(err, ErrStructuralInvalid) {
		t.Fatalf("expected ErrStructuralInvalid for too-low fee, got %v", err)
	}
}

// S7: a transaction with more inputs than WarnManyInputs sets the
// ManyInputsWarning flag but is otherwise accepted.
func TestValidate_ManyInputsWarning(t *testing.T) {
	chain := newFakeChain(100)
	cfg := DefaultConfig()

	var ops []Outpoint
	for i := 0; i < cfg.WarnManyInputs+1; i++ {
		op := Outpoint{Hash: testHash("many-inputs"), Index: uint32(i)}
		chain.addUTXO(op, 1_000_000, 50)
		ops = append(ops, op)
	}
	tx := buildTx(ops, []int64{int64(len(ops))*1_000_000 - cfg.MinFee*int64(len(ops)) - 1})

	req := LockRequest{Tx: tx}
	res, err := validate(chain, cfg, req, true)
	if err != nil {
		t.Fatalf("expected valid tx with many inputs, got %v", err)
	}
	if !res.ManyInputsWarning {
		t.Fatalf("expected ManyInputsWarning to be set for %d inputs", len(ops))
	}
}

// Confirms the boundary: exactly WarnManyInputs inputs does not warn.
func TestValidate_InputsAtThresholdNoWarning(t *testing.T) {
	chain := newFakeChain(100)
	cfg := DefaultConfig()

	var ops []Outpoint
	for i := 0; i < cfg.WarnManyInputs; i++ {
		op := Outpoint{Hash: testHash("at-threshold"), Index: uint32(i)}
		chain.addUTXO(op, 1_000_000, 50)
		ops = append(ops, op)
	}
	tx := buildTx(ops, []int64{int64(len(ops))*1_000_000 - cfg.MinFee*int64(len(ops)) - 1})

	req := LockRequest{Tx: tx}
	res, err := validate(chain, cfg, req, true)
	if err != nil {
		t.Fatalf("expected valid tx at input threshold, got %v", err)
	}
	if res.ManyInputsWarning {
		t.Fatalf("did not expect ManyInputsWarning at exactly the threshold")
	}
}
