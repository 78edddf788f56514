package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spacenexus/spacetoken-server/pkg/data/event"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*event.Record
}

// New returns a new in memory event.Store
func New() event.Store {
	return &store{}
}

// Save implements event.Store.Save
func (s *store) Save(_ context.Context, data *event.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findByEventId(data.EventId); item != nil {
		return event.ErrEventExists
	}

	s.last++
	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	s.records = append(s.records, data.Clone())

	return nil
}

// Get implements event.Store.Get
func (s *store) Get(_ context.Context, id string) (*event.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByEventId(id)
	if item == nil {
		return nil, event.ErrEventNotFound
	}

	return item.Clone(), nil
}

// GetAllByToken implements event.Store.GetAllByToken
func (s *store) GetAllByToken(_ context.Context, token string, opts ...query.Option) ([]*event.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var items []*event.Record
	for _, item := range s.records {
		if item.Token != token {
			continue
		}

		if !req.FilterBy.Matches(uint64(item.EventType)) {
			continue
		}

		if !req.IsPastCursor(item.Id) {
			continue
		}

		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return req.InOrder(items[i].Id, items[j].Id)
	})

	if uint64(len(items)) > req.Limit {
		items = items[:req.Limit]
	}

	if len(items) == 0 {
		return nil, event.ErrEventNotFound
	}

	res := make([]*event.Record, len(items))
	for i, item := range items {
		res[i] = item.Clone()
	}
	return res, nil
}

func (s *store) findByEventId(id string) *event.Record {
	for _, item := range s.records {
		if item.EventId == id {
			return item
		}
	}
	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = 0
	s.records = nil
}
