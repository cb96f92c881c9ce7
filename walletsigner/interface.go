package walletsigner

import (
	"context"
	"errors"
)

var (
	ErrNotConnected = errors.New("wallet is not connected")
	ErrRejected     = errors.New("wallet rejected the signing request")
)

// Signer is the minimal wallet capability: sign one PSBT.
type Signer interface {
	// SignPsbt signs the PSBT (hex) and returns the signed PSBT hex.
	SignPsbt(ctx context.Context, psbtHex string) (string, error)

	// XOnlyPubkey returns the wallet's x-only BTC public key, hex.
	XOnlyPubkey() string
}

// BatchSigner is the optional capability of signing several PSBTs in
// one wallet interaction.
type BatchSigner interface {
	Signer
	SignPsbtBatch(ctx context.Context, psbtHexes []string) ([]string, error)
}

// BatchCapable detects the batch capability explicitly. Never infer it
// from errors: a wallet that fails a batch call is not the same as a
// wallet that lacks the method.
func BatchCapable(s Signer) (BatchSigner, bool) {
	b, ok := s.(BatchSigner)
	return b, ok
}
