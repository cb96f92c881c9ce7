package reporter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitlend-io/vault-go/chainview"
	"github.com/bitlend-io/vault-go/common"
	"github.com/bitlend-io/vault-go/lifecycle"
	"github.com/bitlend-io/vault-go/pegin"
	"github.com/bitlend-io/vault-go/pendingstore"
)

var reporterAccount = ethcommon.HexToAddress("0x2222222222222222222222222222222222222222")

func newTestReporter(t *testing.T) (*HttpReporter, *pegin.SimulatedChainReader, *pendingstore.Store) {
	gin.SetMode(gin.TestMode)

	reader := pegin.NewSimulatedChainReader()
	store := pendingstore.NewStore(pendingstore.NewMemoryBackend())
	monitor := chainview.NewMonitor(reporterAccount, reader, store, nil)
	return NewHttpReporter("127.0.0.1", "0", reporterAccount, reader, store, monitor), reader, store
}

func doGet(t *testing.T, router *gin.Engine, path string) (int, map[string]interface{}) {
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthRoute(t *testing.T) {
	reporter, _, _ := newTestReporter(t)
	code, body := doGet(t, reporter.SetupRouter(), ROUTE_HEALTH)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestActivityRoute(t *testing.T) {
	reporter, reader, _ := newTestReporter(t)

	id := common.RandPeginId()
	require.NoError(t, reader.AddPegin(pegin.PeginRequest{
		Id:             id,
		Depositor:      reporterAccount,
		AmountSats:     42_000,
		ContractStatus: lifecycle.StatusVerified,
	}))

	code, body := doGet(t, reporter.SetupRouter(), ROUTE_ACTIVITY)
	require.Equal(t, http.StatusOK, code)

	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 1)
	entry := data[0].(map[string]interface{})
	assert.Equal(t, common.MustNormalizePeginId(id), entry["id"])
	assert.Equal(t, string(lifecycle.DisplayVerified), entry["display_state"])
}

func TestPeginRouteMergesLocalStatus(t *testing.T) {
	reporter, reader, store := newTestReporter(t)

	id := common.RandPeginId()
	require.NoError(t, reader.AddPegin(pegin.PeginRequest{
		Id:             id,
		Depositor:      reporterAccount,
		AmountSats:     10_000,
		ContractStatus: lifecycle.StatusVerified,
	}))
	require.NoError(t, store.Upsert(reporterAccount, pendingstore.PendingOperationRecord{
		Id:          id,
		LocalStatus: lifecycle.LocalStatusPayoutSigned,
	}))

	code, body := doGet(t, reporter.SetupRouter(), ROUTE_PEGIN+"?id="+id)
	require.Equal(t, http.StatusOK, code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "verified", data["contract_status"])
	assert.Equal(t, string(lifecycle.DisplayProcessing), data["display_state"])
}

func TestPeginRouteErrors(t *testing.T) {
	reporter, _, _ := newTestReporter(t)
	router := reporter.SetupRouter()

	code, _ := doGet(t, router, ROUTE_PEGIN)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doGet(t, router, ROUTE_PEGIN+"?id="+common.RandPeginId())
	assert.Equal(t, http.StatusNotFound, code)
}
