package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tablebook/src/models"
	"tablebook/src/types"

	"github.com/go-redis/redismock/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) GetEvent(ctx context.Context, eventID uint) (*models.Event, error) {
	args := m.Called(ctx, eventID)
	if e, ok := args.Get(0).(*models.Event); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCachedEventsMiss(t *testing.T) {
	ctx := context.Background()
	rdb, rmock := redismock.NewClientMock()
	inner := new(mockEvents)
	log := zerolog.Nop()
	cache := NewCachedEvents(inner, rdb, time.Minute, &log)

	event := &models.Event{ID: 4, Name: "Gala", Venue: "Hall A"}
	b, _ := json.Marshal(event)
	inner.On("GetEvent", ctx, uint(4)).Return(event, nil).Once()
	rmock.ExpectGet("events:4").RedisNil()
	rmock.ExpectSet("events:4", b, time.Minute).SetVal("OK")

	got, err := cache.GetEvent(ctx, 4)
	assert.NoError(t, err)
	assert.Equal(t, "Gala", got.Name)
	inner.AssertExpectations(t)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestCachedEventsHit(t *testing.T) {
	ctx := context.Background()
	rdb, rmock := redismock.NewClientMock()
	inner := new(mockEvents)
	log := zerolog.Nop()
	cache := NewCachedEvents(inner, rdb, time.Minute, &log)

	b, _ := json.Marshal(&models.Event{ID: 4, Name: "Gala"})
	rmock.ExpectGet("events:4").SetVal(string(b))

	got, err := cache.GetEvent(ctx, 4)
	assert.NoError(t, err)
	assert.Equal(t, uint(4), got.ID)
	inner.AssertNotCalled(t, "GetEvent", mock.Anything, mock.Anything)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestCachedEventsRedisDown(t *testing.T) {
	ctx := context.Background()
	rdb, rmock := redismock.NewClientMock()
	inner := new(mockEvents)
	log := zerolog.Nop()
	cache := NewCachedEvents(inner, rdb, time.Minute, &log)

	inner.On("GetEvent", ctx, uint(9)).Return(nil, types.ErrNotFound)
	rmock.ExpectGet("events:9").SetErr(errors.New("connection refused"))

	_, err := cache.GetEvent(ctx, 9)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, rmock.ExpectationsWereMet())
}
