/*
Package walletsigner is the boundary to the user's BTC wallet.

The orchestrator only sees the Signer/BatchSigner interfaces; a browser
extension, a hardware device or the local schnorr signer below all fit
behind them.
*/
package walletsigner

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// LocalSigner signs taproot key-spend inputs with one private key.
// It stands in for a real wallet in tests and the demo daemon.
type LocalSigner struct {
	privKey *btcec.PrivateKey
}

func NewLocalSigner(privKey []byte) (*LocalSigner, error) {
	if len(privKey) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(privKey))
	}
	sk, _ := btcec.PrivKeyFromBytes(privKey)
	return &LocalSigner{privKey: sk}, nil
}

func NewRandomLocalSigner() (*LocalSigner, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &LocalSigner{privKey: sk}, nil
}

// XOnlyPubkey returns the taproot output key (no script path), hex.
func (ls *LocalSigner) XOnlyPubkey() string {
	outputKey := txscript.ComputeTaprootKeyNoScript(ls.privKey.PubKey())
	return hex.EncodeToString(schnorr.SerializePubKey(outputKey))
}

func (ls *LocalSigner) SignPsbt(ctx context.Context, psbtHex string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := hex.DecodeString(psbtHex)
	if err != nil {
		return "", fmt.Errorf("psbt is not valid hex: %v", err)
	}
	ptx, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return "", fmt.Errorf("failed to parse psbt: %v", err)
	}

	// every input must carry its witness utxo, the sighash covers all prevouts
	prevouts := make(map[wire.OutPoint]*wire.TxOut, len(ptx.Inputs))
	for i, input := range ptx.Inputs {
		if input.WitnessUtxo == nil {
			return "", fmt.Errorf("input %d has no witness utxo", i)
		}
		prevouts[ptx.UnsignedTx.TxIn[i].PreviousOutPoint] = input.WitnessUtxo
	}
	prevoutFetcher := txscript.NewMultiPrevOutFetcher(prevouts)
	sigHashes := txscript.NewTxSigHashes(ptx.UnsignedTx, prevoutFetcher)

	tweaked := txscript.TweakTaprootPrivKey(*ls.privKey, nil)
	for i := range ptx.Inputs {
		if len(ptx.Inputs[i].TaprootKeySpendSig) > 0 {
			continue // already signed
		}
		preimage, err := txscript.CalcTaprootSignatureHash(
			sigHashes, txscript.SigHashDefault, ptx.UnsignedTx, i, prevoutFetcher)
		if err != nil {
			return "", err
		}
		sig, err := schnorr.Sign(tweaked, preimage)
		if err != nil {
			return "", err
		}
		ptx.Inputs[i].TaprootKeySpendSig = sig.Serialize()
	}

	var buf bytes.Buffer
	if err := ptx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// BatchLocalSigner adds the batch capability: all PSBTs signed in one
// interaction, order preserved.
type BatchLocalSigner struct {
	LocalSigner
}

func NewBatchLocalSigner(inner *LocalSigner) *BatchLocalSigner {
	return &BatchLocalSigner{LocalSigner: *inner}
}

func (bs *BatchLocalSigner) SignPsbtBatch(ctx context.Context, psbtHexes []string) ([]string, error) {
	signed := make([]string, 0, len(psbtHexes))
	for _, p := range psbtHexes {
		s, err := bs.SignPsbt(ctx, p)
		if err != nil {
			return nil, err
		}
		signed = append(signed, s)
	}
	return signed, nil
}
