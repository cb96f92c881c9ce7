package walletsigner

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// BuildKeySpendPsbtHex assembles a minimal one-input taproot key-spend
// PSBT paying to the signer's output key. Simulated providers hand
// these out as unsigned claim transactions.
func BuildKeySpendPsbtHex(signerXOnlyPubkeyHex string, amountSats int64) (string, error) {
	keyBytes, err := hex.DecodeString(signerXOnlyPubkeyHex)
	if err != nil || len(keyBytes) != 32 {
		return "", fmt.Errorf("signer pubkey must be 32 bytes of hex")
	}

	// OP_1 <32-byte output key>
	pkScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).AddData(keyBytes).Script()
	if err != nil {
		return "", err
	}

	unsigned := wire.NewMsgTx(2)
	prevHash := chainhash.DoubleHashH(keyBytes)
	unsigned.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	unsigned.AddTxOut(wire.NewTxOut(amountSats, pkScript))

	ptx, err := psbt.NewFromUnsignedTx(unsigned)
	if err != nil {
		return "", err
	}
	ptx.Inputs[0].WitnessUtxo = wire.NewTxOut(amountSats, pkScript)

	var buf bytes.Buffer
	if err := ptx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// ExtractKeySpendSignatureHex pulls the key-spend signature off input
// 0 of a signed PSBT. This is what gets submitted to the provider.
func ExtractKeySpendSignatureHex(signedPsbtHex string) (string, error) {
	raw, err := hex.DecodeString(signedPsbtHex)
	if err != nil {
		return "", fmt.Errorf("psbt is not valid hex: %v", err)
	}
	ptx, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return "", err
	}
	if len(ptx.Inputs) == 0 || len(ptx.Inputs[0].TaprootKeySpendSig) == 0 {
		return "", fmt.Errorf("psbt carries no key-spend signature")
	}
	if _, err := schnorr.ParseSignature(ptx.Inputs[0].TaprootKeySpendSig); err != nil {
		return "", fmt.Errorf("malformed key-spend signature: %v", err)
	}
	return hex.EncodeToString(ptx.Inputs[0].TaprootKeySpendSig), nil
}
