package tests

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacenexus/spacetoken-server/pkg/data/event"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
	"github.com/spacenexus/spacetoken-server/pkg/pointer"
)

func RunTests(t *testing.T, s event.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s event.Store){
		testRoundTrip,
		testDuplicateEventId,
		testGetAllByToken,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s event.Store) {
	t.Run("testRoundTrip", func(t *testing.T) {
		ctx := context.Background()

		expected := &event.Record{
			EventId:     event.NewEventId(),
			EventType:   event.TokensMinted,
			Token:       "token",
			Mint:        "mint",
			Authority:   "authority",
			Destination: pointer.String("destination"),
			Amount:      pointer.Uint64(math.MaxUint64),
			CreatedAt:   time.Now(),
		}

		_, err := s.Get(ctx, expected.EventId)
		assert.Equal(t, event.ErrEventNotFound, err)

		cloned := expected.Clone()
		require.NoError(t, s.Save(ctx, expected))
		assert.EqualValues(t, 1, expected.Id)

		actual, err := s.Get(ctx, expected.EventId)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)
		assert.Nil(t, actual.Name)
		assert.Nil(t, actual.NewAuthority)

		transfer := &event.Record{
			EventId:      event.NewEventId(),
			EventType:    event.AuthorityTransferred,
			Token:        "token",
			Mint:         "mint",
			Authority:    "authority",
			NewAuthority: pointer.String("new_authority"),
			CreatedAt:    time.Now(),
		}
		cloned = transfer.Clone()
		require.NoError(t, s.Save(ctx, transfer))

		actual, err = s.Get(ctx, transfer.EventId)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)
		assert.Nil(t, actual.Amount)
		assert.Nil(t, actual.Destination)
	})
}

func testDuplicateEventId(t *testing.T, s event.Store) {
	t.Run("testDuplicateEventId", func(t *testing.T) {
		ctx := context.Background()

		record := &event.Record{
			EventId:   event.NewEventId(),
			EventType: event.MetadataUpdated,
			Token:     "token",
			Mint:      "mint",
			Authority: "authority",
			Symbol:    pointer.String("SPACE"),
		}
		require.NoError(t, s.Save(ctx, record))

		duplicate := record.Clone()
		duplicate.Id = 0
		duplicate.Symbol = pointer.String("OTHER")
		assert.Equal(t, event.ErrEventExists, s.Save(ctx, duplicate))

		actual, err := s.Get(ctx, record.EventId)
		require.NoError(t, err)
		assert.Equal(t, "SPACE", *actual.Symbol)

		invalid := &event.Record{EventId: event.NewEventId()}
		assert.Error(t, s.Save(ctx, invalid))
	})
}

func testGetAllByToken(t *testing.T, s event.Store) {
	t.Run("testGetAllByToken", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByToken(ctx, "token")
		assert.Equal(t, event.ErrEventNotFound, err)

		var expected []*event.Record
		for i := 0; i < 10; i++ {
			record := &event.Record{
				EventId:     event.NewEventId(),
				EventType:   event.TokensMinted,
				Token:       "token",
				Mint:        "mint",
				Authority:   "authority",
				Destination: pointer.String("destination"),
				Amount:      pointer.Uint64(uint64(i)),
			}
			if i%2 == 0 {
				record.EventType = event.MetadataUpdated
				record.Destination = nil
				record.Amount = nil
				record.Uri = pointer.String("https://example.com/space.json")
			}
			require.NoError(t, s.Save(ctx, record))
			expected = append(expected, record)
		}

		other := &event.Record{
			EventId:   event.NewEventId(),
			EventType: event.TokenInitialized,
			Token:     "other",
			Mint:      "other_mint",
			Authority: "authority",
		}
		require.NoError(t, s.Save(ctx, other))

		actual, err := s.GetAllByToken(ctx, "token")
		require.NoError(t, err)
		require.Len(t, actual, 10)
		for i, record := range actual {
			assert.Equal(t, expected[i].EventId, record.EventId)
		}

		actual, err = s.GetAllByToken(ctx, "token", query.WithDirection(query.Descending), query.WithLimit(3))
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assert.Equal(t, expected[9].EventId, actual[0].EventId)
		assert.Equal(t, expected[8].EventId, actual[1].EventId)
		assert.Equal(t, expected[7].EventId, actual[2].EventId)

		actual, err = s.GetAllByToken(
			ctx,
			"token",
			query.WithDirection(query.Descending),
			query.WithCursor(query.ToCursor(expected[7].Id)),
			query.WithLimit(3),
		)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assert.Equal(t, expected[6].EventId, actual[0].EventId)

		actual, err = s.GetAllByToken(ctx, "token", query.WithFilter(query.NewFilter(uint64(event.TokensMinted))))
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for _, record := range actual {
			assert.Equal(t, event.TokensMinted, record.EventType)
			require.NotNil(t, record.Amount)
		}

		_, err = s.GetAllByToken(ctx, "token", query.WithFilter(query.NewFilter(uint64(event.AuthorityTransferred))))
		assert.Equal(t, event.ErrEventNotFound, err)

		actual, err = s.GetAllByToken(ctx, "other")
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assert.Equal(t, other.EventId, actual[0].EventId)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *event.Record) {
	assert.Equal(t, obj1.EventId, obj2.EventId)
	assert.Equal(t, obj1.EventType, obj2.EventType)
	assert.Equal(t, obj1.Token, obj2.Token)
	assert.Equal(t, obj1.Mint, obj2.Mint)
	assert.Equal(t, obj1.Authority, obj2.Authority)
	assert.EqualValues(t, obj1.Destination, obj2.Destination)
	assert.EqualValues(t, obj1.Amount, obj2.Amount)
	assert.EqualValues(t, obj1.Name, obj2.Name)
	assert.EqualValues(t, obj1.Symbol, obj2.Symbol)
	assert.EqualValues(t, obj1.Uri, obj2.Uri)
	assert.EqualValues(t, obj1.NewAuthority, obj2.NewAuthority)
	assert.Equal(t, obj1.CreatedAt.Unix(), obj2.CreatedAt.Unix())
}
