package walletsigner

import "context"

// RejectingSigner declines every request, standing in for a user
// hitting "cancel" in the wallet prompt.
type RejectingSigner struct {
	Pubkey string
}

func (r *RejectingSigner) SignPsbt(_ context.Context, _ string) (string, error) {
	return "", ErrRejected
}

func (r *RejectingSigner) XOnlyPubkey() string { return r.Pubkey }

// DisconnectedSigner fails like a wallet that was never connected.
type DisconnectedSigner struct{}

func (d *DisconnectedSigner) SignPsbt(_ context.Context, _ string) (string, error) {
	return "", ErrNotConnected
}

func (d *DisconnectedSigner) XOnlyPubkey() string { return "" }
