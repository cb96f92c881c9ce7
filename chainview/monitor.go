/*
Package chainview polls confirmed peg-in state for one account,
reconciles the local pending-operation cache against it, and publishes
the merged activity list to observers.

The polling interval is adaptive: short while any tracked peg-in shows
a Processing-equivalent display state (the user is waiting on the
chain), long otherwise to bound RPC load.
*/
package chainview

import (
	"context"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/bitlend-io/vault-go/lifecycle"
	"github.com/bitlend-io/vault-go/pegin"
	"github.com/bitlend-io/vault-go/pendingstore"
)

const (
	DefaultShortInterval = 5 * time.Second
	DefaultLongInterval  = 2 * time.Minute
)

type Config struct {
	ShortInterval time.Duration
	LongInterval  time.Duration
}

// ActivityObserver receives every fresh activity snapshot.
type ActivityObserver func(entries []pendingstore.ActivityEntry)

type Monitor struct {
	account ethcommon.Address
	reader  pegin.ChainReader
	store   *pendingstore.Store
	short   time.Duration
	long    time.Duration

	mu        sync.Mutex
	observers []ActivityObserver
	last      []pendingstore.ActivityEntry
}

func NewMonitor(account ethcommon.Address, reader pegin.ChainReader, store *pendingstore.Store, cfg *Config) *Monitor {
	m := &Monitor{
		account: account,
		reader:  reader,
		store:   store,
		short:   DefaultShortInterval,
		long:    DefaultLongInterval,
	}
	if cfg != nil {
		if cfg.ShortInterval > 0 {
			m.short = cfg.ShortInterval
		}
		if cfg.LongInterval > 0 {
			m.long = cfg.LongInterval
		}
	}
	return m
}

// Subscribe registers an observer. Register before Start.
func (m *Monitor) Subscribe(obs ActivityObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// LastActivity returns the most recent snapshot.
func (m *Monitor) LastActivity() []pendingstore.ActivityEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pendingstore.ActivityEntry, len(m.last))
	copy(out, m.last)
	return out
}

// Scan runs a single reconcile-and-merge round and notifies observers.
func (m *Monitor) Scan(ctx context.Context) ([]pendingstore.ActivityEntry, error) {
	confirmed, err := m.reader.ConfirmedPegins(ctx, m.account)
	if err != nil {
		return nil, err
	}

	if _, err := m.store.Reconcile(m.account, confirmed); err != nil {
		return nil, err
	}

	entries, err := m.store.Activity(m.account, confirmed, nil)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.last = entries
	observers := make([]ActivityObserver, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, obs := range observers {
		obs(entries)
	}
	return entries, nil
}

// nextInterval picks the polling delay from the current snapshot.
func (m *Monitor) nextInterval(entries []pendingstore.ActivityEntry) time.Duration {
	for _, e := range entries {
		if e.DisplayState == lifecycle.DisplayProcessing {
			return m.short
		}
	}
	return m.long
}

// Start polls until the context is cancelled. Scan errors are logged
// and retried on the next tick; a slow provider never wedges the loop.
func (m *Monitor) Start(ctx context.Context) error {
	logger.WithField("account", m.account.Hex()).Info("starting chain view monitor")
	defer logger.WithField("account", m.account.Hex()).Info("stopping chain view monitor")

	interval := m.short
	timer := time.NewTimer(0) // first scan immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			entries, err := m.Scan(ctx)
			if err != nil {
				logger.WithFields(logger.Fields{
					"account": m.account.Hex(),
					"err":     err,
				}).Warn("chain view scan failed")
			} else {
				interval = m.nextInterval(entries)
			}
			timer.Reset(interval)
		}
	}
}
