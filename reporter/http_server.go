// This is a http type of reporter.
// It fetches the merged activity view and per-pegin lifecycle state
// and publishes them on http routes.

package reporter

import (
	"net/http"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/bitlend-io/vault-go/chainview"
	"github.com/bitlend-io/vault-go/lifecycle"
	"github.com/bitlend-io/vault-go/pegin"
	"github.com/bitlend-io/vault-go/pendingstore"
)

const (
	ROUTE_HEALTH   = "/health"
	ROUTE_ACTIVITY = "/activity"
	ROUTE_PEGIN    = "/pegin"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	account ethcommon.Address
	reader  pegin.ChainReader
	store   *pendingstore.Store
	monitor *chainview.Monitor
}

func NewHttpReporter(serverIP string, serverPort string, account ethcommon.Address, reader pegin.ChainReader, store *pendingstore.Store, monitor *chainview.Monitor) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		account:    account,
		reader:     reader,
		store:      store,
		monitor:    monitor,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Define routes & handlers
	router.GET(ROUTE_HEALTH, Health)
	router.GET(ROUTE_ACTIVITY, h.Activity)
	router.GET(ROUTE_PEGIN, h.Pegin)

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Publish the last merged activity snapshot. The monitor refreshes it
// on its own schedule; a missing snapshot triggers one scan so the
// first caller after startup does not see a stale empty list.
func (h *HttpReporter) Activity(c *gin.Context) {
	entries := h.monitor.LastActivity()
	if len(entries) == 0 {
		var err error
		entries, err = h.monitor.Scan(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if entries == nil {
		entries = []pendingstore.ActivityEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// Fetch one peg-in by id, merge its on-chain status with the local
// record, and publish the resolved display state.
func (h *HttpReporter) Pegin(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be provided"})
		return
	}

	req, err := h.reader.PeginById(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No pegin found"})
		return
	}

	var localStatus *lifecycle.LocalStorageStatus
	record, err := h.store.Get(h.account, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record != nil {
		localStatus = &record.LocalStatus
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":              req.Id,
		"amount_sats":     req.AmountSats,
		"contract_status": req.ContractStatus.String(),
		"display_state":   lifecycle.ResolveState(req.ContractStatus, localStatus),
	}})
}
