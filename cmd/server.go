// Server = chain view + pending store + roster registry + signing plumbing
// + http reporter. All components are configured via environment variables
// (strings!).

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/bitlend-io/vault-go/chainview"
	"github.com/bitlend-io/vault-go/common"
	"github.com/bitlend-io/vault-go/lifecycle"
	"github.com/bitlend-io/vault-go/pegin"
	"github.com/bitlend-io/vault-go/pendingstore"
	"github.com/bitlend-io/vault-go/providerrpc"
	"github.com/bitlend-io/vault-go/reporter"
	"github.com/bitlend-io/vault-go/roster"
	"github.com/bitlend-io/vault-go/signing"
	"github.com/bitlend-io/vault-go/walletsigner"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	// chain monitor config
	defaultMonitorShortInterval = 5 * time.Second
	defaultMonitorLongInterval  = 2 * time.Minute

	// grace period for the embedded http servers to come up
	httpStartupDelay = 1 * time.Second

	// demo roster snapshot version
	demoRosterVersion = 1

	demoPeginAmountSats = 100_000
)

// DemoProviderAddr identifies the embedded demo vault provider.
var DemoProviderAddr = ethcommon.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type VaultServerConfig struct {
	// account side
	Account       string // depositor EVM address the daemon watches
	WalletPrivKey string // 32-byte hex, drives the local taproot signer

	// state side
	DbFilePath string // db file path

	// chain side
	ChainReader pegin.ChainReader // injected; the demo daemon uses the simulated reader

	// monitor cadence (seconds, 0 = package defaults)
	MonitorShortSecs int64
	MonitorLongSecs  int64

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080

	// Embedded demo vault provider. Empty port disables it.
	ProviderHttpIp   string
	ProviderHttpPort string
}

// VaultServer holds the objects that consists of the vault daemon.
type VaultServer struct {
	Account ethcommon.Address

	MyDb       *sql.DB
	MyBackend  *pendingstore.SQLiteBackend
	MyStore    *pendingstore.Store
	MyRegistry *roster.SQLiteRegistry
	MySigner   walletsigner.Signer
	MyReader   pegin.ChainReader
	MyMonitor  *chainview.Monitor
	MyReporter *reporter.HttpReporter
	MyProvider *providerrpc.SimulatedProvider // nil unless the demo provider is enabled

	// DemoPeginId is the redeemable peg-in seeded alongside the demo
	// provider. Empty when the demo provider is disabled.
	DemoPeginId string

	signingCfg *signing.Config
}

// NewVaultServer creates a new vault daemon.
// ctx is used for parental context to cancel the operation of the daemon.
// wg is used to wait for the goroutines inside the server (monitor) to finish.
func NewVaultServer(vsc *VaultServerConfig, ctx context.Context, wg *sync.WaitGroup) (*VaultServer, error) {
	if !ethcommon.IsHexAddress(vsc.Account) {
		return nil, fmt.Errorf("invalid account address: %s", vsc.Account)
	}
	account := ethcommon.HexToAddress(vsc.Account)

	if vsc.ChainReader == nil {
		return nil, fmt.Errorf("chain reader is required")
	}

	// 1) Open the shared sqlite db.
	sqldb, err := sql.Open("sqlite3", vsc.DbFilePath)
	if err != nil {
		logger.Fatalf("failed to open db file: %v", err)
		return nil, err
	}

	// 2) Pending operation store over a sqlite backend.
	backend, err := pendingstore.NewSQLiteBackend(sqldb)
	if err != nil {
		logger.Fatalf("failed to create pending store backend: %v", err)
		return nil, err
	}
	store := pendingstore.NewStore(backend)

	// 3) Roster registry on the same db.
	registry, err := roster.NewSQLiteRegistry(sqldb)
	if err != nil {
		logger.Fatalf("failed to create roster registry: %v", err)
		return nil, err
	}

	// 4) Local taproot wallet signer.
	signer, err := SetupLocalSigner(vsc.WalletPrivKey)
	if err != nil {
		logger.Fatalf("cannot create wallet from private key: %v", err)
		return nil, err
	}
	logger.WithField("pubkey", signer.XOnlyPubkey()).Info("wallet signer ready")

	// 5) Chain monitor over the reader + store.
	monitorCfg := &chainview.Config{
		ShortInterval: defaultMonitorShortInterval,
		LongInterval:  defaultMonitorLongInterval,
	}
	if vsc.MonitorShortSecs > 0 {
		monitorCfg.ShortInterval = time.Duration(vsc.MonitorShortSecs) * time.Second
	}
	if vsc.MonitorLongSecs > 0 {
		monitorCfg.LongInterval = time.Duration(vsc.MonitorLongSecs) * time.Second
	}
	monitor := chainview.NewMonitor(account, vsc.ChainReader, store, monitorCfg)

	// Important: Turn on the monitor loop!
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := monitor.Start(ctx); err != nil && err != context.Canceled {
			logger.Fatalf("monitor stopped: %v", err)
		}
	}()
	// Don't forget to call wg.Wait() in the main routine.

	// 6) Optional embedded demo vault provider, fully seeded: a
	// registered provider, a roster snapshot and a redeemable peg-in,
	// so SignPayouts works out of the box against the demo daemon.
	var provider *providerrpc.SimulatedProvider
	var demoPeginId string
	if vsc.ProviderHttpPort != "" {
		provider = providerrpc.NewSimulatedProvider()
		providerRouter := provider.SetupRouter()
		listenAddr := vsc.ProviderHttpIp + ":" + vsc.ProviderHttpPort
		go func() {
			if err := providerRouter.Run(listenAddr); err != nil {
				logger.Fatalf("demo provider stopped: %v", err)
			}
		}()

		demoPeginId, err = seedDemoData(vsc, account, signer, registry, provider)
		if err != nil {
			logger.Fatalf("failed to seed demo provider: %v", err)
			return nil, err
		}
		logger.WithFields(logger.Fields{
			"addr":  listenAddr,
			"pegin": common.Shorten(demoPeginId, 6),
		}).Info("embedded demo provider started")
	}

	// 7) Setup a http server to report status.
	httpServer := reporter.NewHttpReporter(
		vsc.HttpIp,
		vsc.HttpPort,
		account,
		vsc.ChainReader,
		store,
		monitor,
	)
	// Turn on the http server
	go httpServer.Run()

	// Give the embedded http servers some time to start
	time.Sleep(httpStartupDelay)

	return &VaultServer{
		Account:     account,
		MyDb:        sqldb,
		MyBackend:   backend,
		MyStore:     store,
		MyRegistry:  registry,
		MySigner:    signer,
		MyReader:    vsc.ChainReader,
		MyMonitor:   monitor,
		MyReporter:  httpServer,
		MyProvider:  provider,
		DemoPeginId: demoPeginId,
		signingCfg: &signing.Config{
			Registry: registry,
			Store:    store,
			OnProgress: func(p signing.Progress) {
				logger.WithFields(logger.Fields{
					"completed": p.CompletedSteps,
					"total":     p.TotalSteps,
					"claimer":   p.ClaimerIndex,
					"step":      p.StepKind,
				}).Info("signing progress")
			},
		},
	}, nil
}

// SignPayouts runs one full signing ceremony for a peg-in redemption:
// roster resolution, context preparation, wallet signing and submission.
// A local pending record is created first so the status advance after
// acceptance has something to land on.
func (vs *VaultServer) SignPayouts(ctx context.Context, peginId string, providerAddr ethcommon.Address, lockedVersion uint64) error {
	ceremony, err := signing.NewCeremony(vs.signingCfg, vs.Account, peginId)
	if err != nil {
		return err
	}

	record, err := vs.MyStore.Get(vs.Account, peginId)
	if err != nil {
		return err
	}
	if record == nil {
		var amount uint64
		if req, err := vs.MyReader.PeginById(ctx, peginId); err == nil && req != nil {
			amount = req.AmountSats
		}
		if err := vs.MyStore.Upsert(vs.Account, pendingstore.PendingOperationRecord{
			Id:          peginId,
			LocalStatus: lifecycle.LocalStatusPending,
			AmountSats:  amount,
			ProviderIds: []string{providerAddr.Hex()},
		}); err != nil {
			return err
		}
	}

	return ceremony.Run(ctx, providerAddr, lockedVersion, vs.MySigner.XOnlyPubkey(), vs.MySigner)
}

// Create, then start the vault daemon and wait.
// Press Ctrl-C to kill the server.
func StartVaultServerAndWait(vsc *VaultServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Launch a new goroutine to handle the signal
	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	_, err := NewVaultServer(vsc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create vault server: %v", err)
		return
	}

	// wait for all routines to finish
	wg.Wait()
}

// seedDemoData fills the registry, the demo provider and the simulated
// chain with one redeemable peg-in owned by the daemon's account. The
// claim transactions are key-spend PSBTs locked to the daemon's own
// wallet key, so the full ceremony can run against them.
func seedDemoData(vsc *VaultServerConfig, account ethcommon.Address, signer walletsigner.Signer, registry *roster.SQLiteRegistry, provider *providerrpc.SimulatedProvider) (string, error) {
	// the provider listens on the bind ip; dial loopback when it binds
	// the wildcard address
	dialIp := vsc.ProviderHttpIp
	if dialIp == "" || dialIp == "0.0.0.0" {
		dialIp = "127.0.0.1"
	}
	rpcUrl := "http://" + dialIp + ":" + vsc.ProviderHttpPort

	err := registry.RegisterProvider(roster.VaultProvider{
		Address:   DemoProviderAddr,
		BtcPubkey: strings.Repeat("01", 32),
		RpcUrl:    rpcUrl,
	})
	if err != nil {
		return "", err
	}
	keepers := []roster.VaultKeeper{
		{Address: ethcommon.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee01"), BtcPubkey: strings.Repeat("02", 32)},
	}
	challengers := []roster.UniversalChallenger{
		{Address: ethcommon.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee02"), BtcPubkey: strings.Repeat("03", 32)},
	}
	if err := registry.PutRosterSnapshot(DemoProviderAddr, demoRosterVersion, keepers, challengers); err != nil {
		return "", err
	}

	optimisticHex, err := walletsigner.BuildKeySpendPsbtHex(signer.XOnlyPubkey(), demoPeginAmountSats)
	if err != nil {
		return "", err
	}
	payoutHex, err := walletsigner.BuildKeySpendPsbtHex(signer.XOnlyPubkey(), demoPeginAmountSats-1_000)
	if err != nil {
		return "", err
	}

	demoPeginId := "0x" + strings.Repeat("da", 32)
	provider.PrepareTransactions(demoPeginId, []providerrpc.WireClaimerTransactions{
		{
			ClaimerPubkey:         signer.XOnlyPubkey(),
			PayoutOptimisticTxHex: optimisticHex,
			PayoutTxHex:           payoutHex,
		},
	})

	if sim, ok := vsc.ChainReader.(*pegin.SimulatedChainReader); ok {
		err := sim.AddPegin(pegin.PeginRequest{
			Id:              demoPeginId,
			Depositor:       account,
			AmountSats:      demoPeginAmountSats,
			VaultProviderId: DemoProviderAddr,
			ContractStatus:  lifecycle.StatusVerified,
		})
		if err != nil {
			return "", err
		}
	}

	return demoPeginId, nil
}
