package pegin

import (
	"context"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/bitlend-io/vault-go/common"
	"github.com/bitlend-io/vault-go/lifecycle"
)

// SimulatedChainReader is an in-memory ChainReader for tests and the
// demo daemon. Statuses are advanced by hand via SetStatus.
type SimulatedChainReader struct {
	mu      sync.RWMutex
	pegins  map[string]*PeginRequest     // by canonical id
	confirm map[string]ConfirmedPegin    // by canonical id
	owners  map[string]ethcommon.Address // pegin id -> depositor

	now func() time.Time // injectable clock for tests
}

func NewSimulatedChainReader() *SimulatedChainReader {
	return &SimulatedChainReader{
		pegins:  make(map[string]*PeginRequest),
		confirm: make(map[string]ConfirmedPegin),
		owners:  make(map[string]ethcommon.Address),
		now:     time.Now,
	}
}

// AddPegin registers a peg-in as observed on-chain. The confirmed view
// is stamped with the current time, like a block timestamp.
func (s *SimulatedChainReader) AddPegin(p PeginRequest) error {
	id, err := common.NormalizePeginId(p.Id)
	if err != nil {
		return err
	}
	p.Id = id

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.pegins[id] = &cp
	s.owners[id] = p.Depositor
	s.confirm[id] = ConfirmedPegin{
		Id:             id,
		ContractStatus: p.ContractStatus,
		Timestamp:      s.now(),
	}
	return nil
}

// SetStatus advances the on-chain status of an existing peg-in and
// restamps its confirmed timestamp.
func (s *SimulatedChainReader) SetStatus(id string, status lifecycle.ContractStatus) error {
	cid, err := common.NormalizePeginId(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pegins[cid]; ok {
		p.ContractStatus = status
	}
	c := s.confirm[cid]
	c.Id = cid
	c.ContractStatus = status
	c.Timestamp = s.now()
	s.confirm[cid] = c
	return nil
}

func (s *SimulatedChainReader) ConfirmedPegins(_ context.Context, depositor ethcommon.Address) ([]ConfirmedPegin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ConfirmedPegin
	for id, owner := range s.owners {
		if owner == depositor {
			out = append(out, s.confirm[id])
		}
	}
	return out, nil
}

func (s *SimulatedChainReader) PeginById(_ context.Context, id string) (*PeginRequest, error) {
	cid, err := common.NormalizePeginId(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pegins[cid]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}
