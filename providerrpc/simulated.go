package providerrpc

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"
)

// SimulatedProvider is an in-process vault provider speaking the same
// JSON-RPC surface as a real one. Tests and the demo daemon mount it
// on an httptest server or a plain listener.
type SimulatedProvider struct {
	mu           sync.Mutex
	transactions map[string][]WireClaimerTransactions // by pegin id
	submissions  map[string]map[string]WireClaimerSignatures
	failNext     int // force transport failures for retry tests
}

func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{
		transactions: make(map[string][]WireClaimerTransactions),
		submissions:  make(map[string]map[string]WireClaimerSignatures),
	}
}

// PrepareTransactions seeds the unsigned claim transactions for a
// peg-in.
func (p *SimulatedProvider) PrepareTransactions(peginId string, txs []WireClaimerTransactions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transactions[peginId] = txs
}

// Submissions returns the signatures accepted for a peg-in, or nil.
func (p *SimulatedProvider) Submissions(peginId string) map[string]WireClaimerSignatures {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submissions[peginId]
}

// FailNext makes the next n requests answer HTTP 503.
func (p *SimulatedProvider) FailNext(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = n
}

// SetupRouter mounts the JSON-RPC handler.
func (p *SimulatedProvider) SetupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.POST("/", p.handle)
	return router
}

func (p *SimulatedProvider) handle(c *gin.Context) {
	p.mu.Lock()
	if p.failNext > 0 {
		p.failNext--
		p.mu.Unlock()
		c.Status(http.StatusServiceUnavailable)
		return
	}
	p.mu.Unlock()

	var req jsonRpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, jsonRpcResponse{
			JsonRpc: "2.0",
			Error:   &jsonRpcError{Code: -32700, Message: "parse error"},
		})
		return
	}

	if len(req.Params) != 1 {
		p.reply(c, req.Id, nil, &jsonRpcError{Code: -32602, Message: "params must be a one-element array"})
		return
	}
	rawParams, err := json.Marshal(req.Params[0])
	if err != nil {
		p.reply(c, req.Id, nil, &jsonRpcError{Code: -32602, Message: "invalid params"})
		return
	}

	switch req.Method {
	case MethodGetClaimerTransactions:
		var params GetClaimerTransactionsParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			p.reply(c, req.Id, nil, &jsonRpcError{Code: -32602, Message: "invalid params"})
			return
		}
		p.mu.Lock()
		txs, ok := p.transactions[params.PeginId]
		p.mu.Unlock()
		if !ok {
			p.reply(c, req.Id, nil, &jsonRpcError{Code: -32001, Message: "unknown pegin"})
			return
		}
		p.reply(c, req.Id, GetClaimerTransactionsResult{ClaimerTransactions: txs}, nil)

	case MethodSubmitClaimerSignatures:
		var params SubmitClaimerSignaturesParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			p.reply(c, req.Id, nil, &jsonRpcError{Code: -32602, Message: "invalid params"})
			return
		}
		p.mu.Lock()
		expected, ok := p.transactions[params.PeginId]
		p.mu.Unlock()
		if !ok {
			p.reply(c, req.Id, nil, &jsonRpcError{Code: -32001, Message: "unknown pegin"})
			return
		}
		// all-or-nothing: every prepared claimer must be covered
		for _, tx := range expected {
			sigs, ok := params.Signatures[tx.ClaimerPubkey]
			if !ok || sigs.PayoutOptimisticSignature == "" || sigs.PayoutSignature == "" {
				p.reply(c, req.Id, nil, &jsonRpcError{Code: -32002, Message: "incomplete signature set"})
				return
			}
		}
		p.mu.Lock()
		p.submissions[params.PeginId] = params.Signatures
		p.mu.Unlock()
		logger.WithField("peginId", params.PeginId).Debug("simulated provider accepted signatures")
		p.reply(c, req.Id, SubmitClaimerSignaturesResult{Accepted: true}, nil)

	default:
		p.reply(c, req.Id, nil, &jsonRpcError{Code: -32601, Message: "method not found"})
	}
}

func (p *SimulatedProvider) reply(c *gin.Context, id uint64, result interface{}, rpcErr *jsonRpcError) {
	resp := jsonRpcResponse{JsonRpc: "2.0", Id: id, Error: rpcErr}
	if rpcErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = &jsonRpcError{Code: -32603, Message: "internal error"}
		} else {
			resp.Result = raw
		}
	}
	c.JSON(http.StatusOK, resp)
}
