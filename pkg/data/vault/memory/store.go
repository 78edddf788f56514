package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/spacenexus/spacetoken-server/pkg/data/vault"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
)

// store holds sealed records keyed by public key.
type store struct {
	cipher *vault.Cipher

	mu      sync.Mutex
	records map[string]*vault.Record
	last    uint64
}

// New returns an in-memory vault. Private keys are held sealed, as in the
// postgres store.
func New(cipher *vault.Cipher) vault.Store {
	return &store{
		cipher:  cipher,
		records: make(map[string]*vault.Record),
	}
}

func (s *store) reset() {
	s.mu.Lock()
	s.records = make(map[string]*vault.Record)
	s.last = 0
	s.mu.Unlock()
}

func (s *store) Count(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return uint64(len(s.records)), nil
}

func (s *store) Save(_ context.Context, record *vault.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[record.PublicKey]; ok {
		existing.State = record.State

		record.Id = existing.Id
		record.Role = existing.Role
		record.CreatedAt = existing.CreatedAt
		return nil
	}

	sealed, err := s.cipher.SealRecord(record)
	if err != nil {
		return err
	}

	s.last++
	record.Id = s.last
	sealed.Id = s.last
	s.records[record.PublicKey] = sealed
	return nil
}

func (s *store) Get(_ context.Context, pubkey string) (*vault.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, ok := s.records[pubkey]
	if !ok {
		return nil, vault.ErrKeyNotFound
	}
	return s.cipher.OpenRecord(sealed)
}

func (s *store) GetAllByRole(_ context.Context, role vault.Role, opts ...query.Option) ([]*vault.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*vault.Record
	for _, record := range s.records {
		if record.Role == role && req.IsPastCursor(record.Id) {
			matched = append(matched, record)
		}
	}
	if len(matched) == 0 {
		return nil, vault.ErrKeyNotFound
	}

	slices.SortFunc(matched, func(a, b *vault.Record) int {
		switch {
		case a.Id == b.Id:
			return 0
		case req.InOrder(a.Id, b.Id):
			return -1
		default:
			return 1
		}
	})
	if uint64(len(matched)) > req.Limit {
		matched = matched[:req.Limit]
	}

	res := make([]*vault.Record, len(matched))
	for i, sealed := range matched {
		if res[i], err = s.cipher.OpenRecord(sealed); err != nil {
			return nil, err
		}
	}
	return res, nil
}
