package chainview

import (
	"context"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitlend-io/vault-go/common"
	"github.com/bitlend-io/vault-go/lifecycle"
	"github.com/bitlend-io/vault-go/pegin"
	"github.com/bitlend-io/vault-go/pendingstore"
)

var testAccount = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

func newTestMonitor(t *testing.T) (*Monitor, *pegin.SimulatedChainReader, *pendingstore.Store) {
	reader := pegin.NewSimulatedChainReader()
	store := pendingstore.NewStore(pendingstore.NewMemoryBackend())
	monitor := NewMonitor(testAccount, reader, store, &Config{
		ShortInterval: 10 * time.Millisecond,
		LongInterval:  time.Hour,
	})
	return monitor, reader, store
}

func TestScanMergesChainAndLocal(t *testing.T) {
	monitor, reader, store := newTestMonitor(t)

	confirmedId := common.RandPeginId()
	require.NoError(t, reader.AddPegin(pegin.PeginRequest{
		Id:             confirmedId,
		Depositor:      testAccount,
		AmountSats:     30_000,
		ContractStatus: lifecycle.StatusVerified,
	}))

	pendingId := common.RandPeginId()
	require.NoError(t, store.Upsert(testAccount, pendingstore.PendingOperationRecord{
		Id:          pendingId,
		LocalStatus: lifecycle.LocalStatusPending,
	}))

	entries, err := monitor.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byId := make(map[string]pendingstore.ActivityEntry)
	for _, e := range entries {
		byId[e.Id] = e
	}
	assert.Equal(t, lifecycle.DisplayVerified, byId[common.MustNormalizePeginId(confirmedId)].DisplayState)
	assert.Equal(t, lifecycle.DisplayPending, byId[common.MustNormalizePeginId(pendingId)].DisplayState)
}

func TestScanGarbageCollectsOvertakenRecords(t *testing.T) {
	monitor, reader, store := newTestMonitor(t)

	id := common.RandPeginId()
	require.NoError(t, store.Upsert(testAccount, pendingstore.PendingOperationRecord{
		Id:          id,
		LocalStatus: lifecycle.LocalStatusPayoutSigned,
	}))
	require.NoError(t, reader.AddPegin(pegin.PeginRequest{
		Id:             id,
		Depositor:      testAccount,
		ContractStatus: lifecycle.StatusActive,
	}))

	_, err := monitor.Scan(context.Background())
	require.NoError(t, err)

	records, err := store.List(testAccount)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNextIntervalShortWhileProcessing(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	processing := []pendingstore.ActivityEntry{
		{DisplayState: lifecycle.DisplayPending},
		{DisplayState: lifecycle.DisplayProcessing},
	}
	assert.Equal(t, 10*time.Millisecond, monitor.nextInterval(processing))

	settled := []pendingstore.ActivityEntry{
		{DisplayState: lifecycle.DisplayActive},
	}
	assert.Equal(t, time.Hour, monitor.nextInterval(settled))
	assert.Equal(t, time.Hour, monitor.nextInterval(nil))
}

func TestObserversNotifiedOnScan(t *testing.T) {
	monitor, reader, _ := newTestMonitor(t)

	id := common.RandPeginId()
	require.NoError(t, reader.AddPegin(pegin.PeginRequest{
		Id:             id,
		Depositor:      testAccount,
		ContractStatus: lifecycle.StatusPending,
	}))

	var got []pendingstore.ActivityEntry
	monitor.Subscribe(func(entries []pendingstore.ActivityEntry) { got = entries })

	_, err := monitor.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, common.MustNormalizePeginId(id), got[0].Id)
}

func TestStartStopsOnCancel(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Start(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on cancel")
	}
}
