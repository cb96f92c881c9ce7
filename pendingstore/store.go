/*
Package pendingstore is the per-account durable cache of in-flight
peg-in operations the chain has not observed yet.

Records are optimistic: they exist so the UI can show "Processing"
during the gap between a client action (e.g. payout signing) and the
chain reflecting it. Reconciliation against confirmed chain state
decides when a record has become redundant.
*/
package pendingstore

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/bitlend-io/vault-go/common"
	"github.com/bitlend-io/vault-go/lifecycle"
	"github.com/bitlend-io/vault-go/pegin"
)

// RetentionWindow is the fixed age past which a local record is
// discarded even if the chain never observed it.
const RetentionWindow = 24 * time.Hour

// ErrStorageCorruption marks an unparseable backend payload. It never
// escapes the store: corruption is logged, the entry cleared, and the
// account treated as having no pending operations.
var ErrStorageCorruption = errors.New("pending operation payload corrupted")

// Store serializes mutations per account: a single logical writer per
// account, cross-account operations fully independent.
type Store struct {
	backend Backend

	mu       sync.Mutex // guards accounts
	accounts map[ethcommon.Address]*sync.Mutex

	now func() time.Time // injectable clock for tests
}

func NewStore(backend Backend) *Store {
	return &Store{
		backend:  backend,
		accounts: make(map[ethcommon.Address]*sync.Mutex),
		now:      time.Now,
	}
}

func (s *Store) accountLock(account ethcommon.Address) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account]; !ok {
		s.accounts[account] = &sync.Mutex{}
	}
	return s.accounts[account]
}

// load reads and decodes the account's records. A corrupted payload is
// logged, cleared and treated as empty state.
func (s *Store) load(account ethcommon.Address) ([]PendingOperationRecord, error) {
	payload, ok, err := s.backend.Load(account)
	if err != nil {
		return nil, err
	}
	if !ok || len(payload) == 0 {
		return nil, nil
	}

	var records []PendingOperationRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		logger.WithFields(logger.Fields{
			"account": account.Hex(),
			"err":     err,
		}).Warn("pending operation cache corrupted, resetting to empty")
		if clearErr := s.backend.Clear(account); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}
	return records, nil
}

func (s *Store) save(account ethcommon.Address, records []PendingOperationRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.backend.Save(account, payload)
}

// Upsert inserts or replaces the record with the same normalized id.
// CreatedAt is set on first insert only; a replace keeps the original.
func (s *Store) Upsert(account ethcommon.Address, record PendingOperationRecord) error {
	id, err := common.NormalizePeginId(record.Id)
	if err != nil {
		return err
	}
	record.Id = id

	lock := s.accountLock(account)
	lock.Lock()
	defer lock.Unlock()

	records, err := s.load(account)
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].Id == id {
			record.CreatedAt = records[i].CreatedAt
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = s.now()
		}
		records = append(records, record)
	}

	return s.save(account, records)
}

// UpdateStatus advances the local status of a record, optionally
// attaching the broadcast BTC transaction hash. No-op if id is absent.
func (s *Store) UpdateStatus(account ethcommon.Address, id string, status lifecycle.LocalStorageStatus, btcTxHash string) error {
	cid, err := common.NormalizePeginId(id)
	if err != nil {
		return err
	}

	lock := s.accountLock(account)
	lock.Lock()
	defer lock.Unlock()

	records, err := s.load(account)
	if err != nil {
		return err
	}

	for i := range records {
		if records[i].Id == cid {
			records[i].LocalStatus = status
			if btcTxHash != "" {
				records[i].BtcTxHash = btcTxHash
			}
			return s.save(account, records)
		}
	}
	return nil
}

// Get returns the record for the id, or nil.
func (s *Store) Get(account ethcommon.Address, id string) (*PendingOperationRecord, error) {
	cid, err := common.NormalizePeginId(id)
	if err != nil {
		return nil, err
	}

	lock := s.accountLock(account)
	lock.Lock()
	defer lock.Unlock()

	records, err := s.load(account)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Id == cid {
			r := records[i]
			return &r, nil
		}
	}
	return nil, nil
}

// List returns all records of the account.
func (s *Store) List(account ethcommon.Address) ([]PendingOperationRecord, error) {
	lock := s.accountLock(account)
	lock.Lock()
	defer lock.Unlock()
	return s.load(account)
}

// Reconcile garbage-collects local records against confirmed chain
// state and persists the surviving set, which it returns.
//
// A record survives iff it is younger than the retention window AND the
// chain has not made it redundant. No confirmed entry for an id always
// means keep: never garbage-collect unconfirmed optimism.
func (s *Store) Reconcile(account ethcommon.Address, confirmed []pegin.ConfirmedPegin) ([]PendingOperationRecord, error) {
	confirmedById := make(map[string]pegin.ConfirmedPegin, len(confirmed))
	for _, c := range confirmed {
		if cid, err := common.NormalizePeginId(c.Id); err == nil {
			c.Id = cid
			confirmedById[cid] = c
		}
	}

	lock := s.accountLock(account)
	lock.Lock()
	defer lock.Unlock()

	records, err := s.load(account)
	if err != nil {
		return nil, err
	}

	now := s.now()
	kept := records[:0]
	for _, r := range records {
		if now.Sub(r.CreatedAt) > RetentionWindow {
			logger.WithFields(logger.Fields{
				"account": account.Hex(),
				"id":      common.Shorten(r.Id, 6),
			}).Debug("pending operation expired, dropping")
			continue
		}
		if c, ok := confirmedById[r.Id]; ok {
			if lifecycle.ShouldRemoveFromLocalStorage(c.ContractStatus, r.LocalStatus) {
				logger.WithFields(logger.Fields{
					"account":        account.Hex(),
					"id":             common.Shorten(r.Id, 6),
					"contractStatus": c.ContractStatus.String(),
					"localStatus":    r.LocalStatus,
				}).Debug("chain overtook pending operation, dropping")
				continue
			}
		}
		kept = append(kept, r)
	}

	if len(kept) != len(records) {
		if err := s.save(account, kept); err != nil {
			return nil, err
		}
	}

	out := make([]PendingOperationRecord, len(kept))
	copy(out, kept)
	return out, nil
}

// Activity merges confirmed chain records with local pending records
// into the unified display list. A confirmed entry always wins over a
// pending one with the same id (the local record still contributes its
// status to the display-state resolution). Sorted newest first by
// max(createdAt, confirmedTimestamp).
func (s *Store) Activity(account ethcommon.Address, confirmed []pegin.ConfirmedPegin, amounts map[string]uint64) ([]ActivityEntry, error) {
	lock := s.accountLock(account)
	lock.Lock()
	records, err := s.load(account)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	localById := make(map[string]PendingOperationRecord, len(records))
	for _, r := range records {
		localById[r.Id] = r
	}

	var entries []ActivityEntry
	seen := make(map[string]bool)

	for _, c := range confirmed {
		cid, err := common.NormalizePeginId(c.Id)
		if err != nil {
			continue
		}
		var localStatus *lifecycle.LocalStorageStatus
		ts := c.Timestamp
		amount := amounts[cid]
		if r, ok := localById[cid]; ok {
			ls := r.LocalStatus
			localStatus = &ls
			if r.CreatedAt.After(ts) {
				ts = r.CreatedAt
			}
			if amount == 0 {
				amount = r.AmountSats
			}
		}
		entries = append(entries, ActivityEntry{
			Id:           cid,
			AmountSats:   amount,
			DisplayState: lifecycle.ResolveState(c.ContractStatus, localStatus),
			Confirmed:    true,
			Timestamp:    ts,
			LocalStatus:  localStatus,
		})
		seen[cid] = true
	}

	// synthesize display-only entries for operations not yet on-chain
	for _, r := range records {
		if seen[r.Id] {
			continue
		}
		ls := r.LocalStatus
		entries = append(entries, ActivityEntry{
			Id:           r.Id,
			AmountSats:   r.AmountSats,
			DisplayState: lifecycle.ResolveState(lifecycle.StatusPending, &ls),
			Confirmed:    false,
			Timestamp:    r.CreatedAt,
			LocalStatus:  &ls,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}
