package providerrpc

import (
	"encoding/json"
	"fmt"
)

// Vault provider RPC methods.
const (
	MethodGetClaimerTransactions  = "getClaimerTransactions"
	MethodSubmitClaimerSignatures = "submitClaimerSignatures"
)

// jsonRpcRequest is the JSON-RPC 2.0 envelope. Params are positional:
// the single argument object is wrapped as a one-element array.
type jsonRpcRequest struct {
	JsonRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	Id      uint64        `json:"id"`
}

type jsonRpcResponse struct {
	JsonRpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRpcError   `json:"error,omitempty"`
	Id      uint64          `json:"id"`
}

type jsonRpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RpcError is any failure talking to the vault provider. Transport
// failures (network, timeout, retryable HTTP statuses) are marked
// Retryable; JSON-RPC application errors never are.
type RpcError struct {
	Method    string
	Code      int    // JSON-RPC error code, or 0 for transport failures
	Message   string
	Retryable bool
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("provider rpc %s failed: code=%d %s", e.Method, e.Code, e.Message)
}

// WireClaimerTransactions is one claimer's unsigned PSBT pair on the
// wire.
type WireClaimerTransactions struct {
	ClaimerPubkey         string `json:"claimer_pubkey"`
	PayoutOptimisticTxHex string `json:"payout_optimistic_tx"`
	PayoutTxHex           string `json:"payout_tx"`
}

// GetClaimerTransactionsParams asks the provider for the unsigned
// claim transactions of one peg-in.
type GetClaimerTransactionsParams struct {
	PeginId         string `json:"pegin_id"`
	DepositorPubkey string `json:"depositor_pubkey"`
}

type GetClaimerTransactionsResult struct {
	ClaimerTransactions []WireClaimerTransactions `json:"claimer_transactions"`
}

// WireClaimerSignatures is one claimer's signature pair on the wire,
// keyed by the claimer's x-only pubkey in the enclosing map.
type WireClaimerSignatures struct {
	PayoutOptimisticSignature string `json:"payout_optimistic_signature"`
	PayoutSignature           string `json:"payout_signature"`
}

// SubmitClaimerSignaturesParams carries every claimer's signatures in
// one call. The provider accepts all of them or rejects the call;
// there is no partial submission.
type SubmitClaimerSignaturesParams struct {
	PeginId         string                           `json:"pegin_id"`
	DepositorPubkey string                           `json:"depositor_pubkey"`
	Signatures      map[string]WireClaimerSignatures `json:"signatures"`
}

type SubmitClaimerSignaturesResult struct {
	Accepted bool `json:"accepted"`
}
