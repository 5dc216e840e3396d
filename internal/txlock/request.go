package txlock

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// ValidationResult carries the outcome of validate plus any non-fatal
// warning the caller should log (spec.md §4.1 point 6).
type ValidationResult struct {
	ManyInputsWarning bool
	TotalIn           int64
	TotalOut          int64
}

// minFee computes max(MIN_FEE, |inputs| * MIN_FEE) as spec.md §4.1 requires.
func minFee(cfg Config, numInputs int) int64 {
	perInput := int64(numInputs) * cfg.MinFee
	if perInput > cfg.MinFee {
		return perInput
	}
	return cfg.MinFee
}

// isAcceptableOutputScript reports whether a script is either a normal
// payment script or provably unspendable (a data-carrier / OP_RETURN
// output) — spec.md §4.1 point 3.
func isAcceptableOutputScript(script []byte) bool {
	class := txscript.GetScriptClass(script)
	switch class {
	case txscript.NullDataTy,
		txscript.PubKeyHashTy,
		txscript.PubKeyTy,
		txscript.ScriptHashTy,
		txscript.WitnessV0PubKeyHashTy,
		txscript.WitnessV0ScriptHashTy,
		txscript.MultiSigTy:
		return true
	default:
		return false
	}
}

// validate runs the structural, temporal, and economic checks of
// spec.md §4.1 against a candidate transaction. requireUnspent is relaxed
// by the engine only when re-processing a request after enough orphan
// votes have accumulated for it (spec.md §4.3/§4.4).
func validate(view ChainView, cfg Config, req LockRequest, requireUnspent bool) (ValidationResult, error) {
	var res ValidationResult

	tx := req.Tx
	if len(tx.TxOut) < 1 {
		return res, fmt.Errorf("%w: transaction has no outputs", ErrStructuralInvalid)
	}

	final, err := view.CheckFinal(tx)
	if err != nil {
		return res, fmt.Errorf("txlock: finality check failed: %w", err)
	}
	if !final {
		return res, fmt.Errorf("%w: transaction is not final", ErrStructuralInvalid)
	}

	for _, out := range tx.TxOut {
		if !isAcceptableOutputScript(out.PkScript) {
			return res, fmt.Errorf("%w: non-standard, non-data-carrier output script", ErrStructuralInvalid)
		}
		res.TotalOut += out.Value
	}

	currentHeight, err := view.Height()
	if err != nil {
		return res, fmt.Errorf("txlock: chain height unavailable: %w", err)
	}

	for _, in := range tx.TxIn {
		op := NewOutpoint(in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index)

		var producingHeight int64
		var value int64

		height, herr := view.UtxoHeight(op)
		if herr == nil && height >= 0 {
			v, h, cerr := view.UtxoCoin(op)
			if cerr != nil {
				return res, fmt.Errorf("txlock: utxo coin lookup failed for %s: %w", op, cerr)
			}
			value, producingHeight = v, h
		} else {
			if requireUnspent {
				return res, fmt.Errorf("%w: outpoint %s not found in live UTXO set", ErrTemporalNotReady, op)
			}

			ptx, blockHash, found, terr := view.Transaction(op.Hash)
			if terr != nil || !found {
				return res, fmt.Errorf("%w: producing transaction for %s not found", ErrTemporalNotReady, op)
			}
			var zero TxHash
			if blockHash == zero {
				return res, fmt.Errorf("%w: producing transaction for %s is unconfirmed", ErrTemporalNotReady, op)
			}
			if int(op.Index) >= len(ptx.TxOut) {
				return res, fmt.Errorf("%w: output index %d out of range for %s", ErrStructuralInvalid, op.Index, op.Hash)
			}
			bh, berr := view.BlockHeight(blockHash)
			if berr != nil {
				return res, fmt.Errorf("txlock: block height lookup failed: %w", berr)
			}
			producingHeight = bh
			value = ptx.TxOut[op.Index].Value
		}

		age := currentHeight - producingHeight + 1
		if age < cfg.ConfirmationsRequired-1 {
			return res, fmt.Errorf("%w: outpoint %s has only %d confirmations", ErrTemporalNotReady, op, age)
		}

		res.TotalIn += value
	}

	if res.TotalIn-res.TotalOut < minFee(cfg, len(tx.TxIn)) {
		return res, fmt.Errorf("%w: fee %d below minimum %d", ErrStructuralInvalid, res.TotalIn-res.TotalOut, minFee(cfg, len(tx.TxIn)))
	}

	if len(tx.TxIn) > cfg.WarnManyInputs {
		res.ManyInputsWarning = true
	}

	return res, nil
}
