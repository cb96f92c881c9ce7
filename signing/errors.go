package signing

import (
	"fmt"

	"github.com/bitlend-io/vault-go/common"
)

// ValidationError marks malformed or missing ceremony inputs. Fatal,
// never retried, raised before any wallet interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid ceremony input %s: %s", e.Field, e.Reason)
}

// NotFoundError marks an unknown provider or missing roster snapshot.
type NotFoundError struct {
	What string // "vault provider", "roster snapshot"
	Id   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Id)
}

// WalletError surfaces a wallet failure together with the claimer the
// ceremony was signing for when it happened. Never retried
// automatically: a user's decline is an answer, not a glitch.
type WalletError struct {
	ClaimerPubkey string // empty for batch failures covering all claimers
	Err           error
}

func (e *WalletError) Error() string {
	if e.ClaimerPubkey == "" {
		return fmt.Sprintf("wallet signing failed: %v", e.Err)
	}
	return fmt.Sprintf("wallet signing failed for claimer %s: %v",
		common.Shorten(e.ClaimerPubkey, 6), e.Err)
}

func (e *WalletError) Unwrap() error { return e.Err }
