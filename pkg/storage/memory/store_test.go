package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/nsyszr/smsrelay/pkg/model"
	"github.com/nsyszr/smsrelay/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore().(*store)

	first := &model.Message{MessageID: "m-1", Direction: model.DirectionOut, Status: model.StatusQueued, Body: "hello"}
	require.NoError(t, s.Messages().Upsert(ctx, first))

	second := &model.Message{MessageID: "m-1", Direction: model.DirectionOut, Status: model.StatusDeviceAck, EndpointRef: "conn-b"}
	require.NoError(t, s.Messages().Upsert(ctx, second))

	assert.Equal(t, 1, s.messages.count())
	assert.Equal(t, first.ID, second.ID)

	got, err := s.Messages().FindByMessageID(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeviceAck, got.Status)
	assert.Equal(t, "conn-b", got.EndpointRef)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
}

func TestMessageStore_UpsertWithoutMessageIDAlwaysInserts(t *testing.T) {
	ctx := context.Background()
	s := NewStore().(*store)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Messages().Upsert(ctx, &model.Message{Direction: model.DirectionIn, Status: model.StatusReceived}))
	}

	assert.Equal(t, 3, s.messages.count())
}

func TestMessageStore_ConcurrentUpsertsSameMessageID(t *testing.T) {
	ctx := context.Background()
	s := NewStore().(*store)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Messages().Upsert(ctx, &model.Message{MessageID: "dup", Status: model.Status(fmt.Sprintf("s%d", i))})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.messages.count())
}

func TestMessageStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	n, err := s.Messages().UpdateStatus(ctx, "unknown", "delivered", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, s.Messages().Upsert(ctx, &model.Message{MessageID: "m-2", Status: model.StatusDeviceAck}))
	n, err = s.Messages().UpdateStatus(ctx, "m-2", "failed", "carrier rejected")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Messages().FindByMessageID(ctx, "m-2")
	require.NoError(t, err)
	assert.Equal(t, model.Status("failed"), got.Status)
	assert.Equal(t, "carrier rejected", got.Error)
}

func TestMessageStore_FindByMessageIDNotFound(t *testing.T) {
	_, err := NewStore().Messages().FindByMessageID(context.Background(), "nope")
	assert.Equal(t, storage.ErrNotFound, err)
}

func TestStatusEventStore_AppendWithoutParent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	e := &model.StatusEvent{MessageID: "orphan", Status: "delivered", Raw: []byte(`{"messageId":"orphan"}`)}
	require.NoError(t, s.StatusEvents().Append(ctx, e))
	assert.NotZero(t, e.ID)

	events, err := s.StatusEvents().FindByMessageID(ctx, "orphan")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"messageId":"orphan"}`, string(events[0].Raw))
}

func TestTokenStore_Rotation(t *testing.T) {
	ctx := context.Background()
	s := NewStore().Tokens()

	cur, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Empty(t, cur)

	require.NoError(t, s.Set(ctx, "a"))
	require.NoError(t, s.Set(ctx, "b"))
	cur, err = s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", cur)
}

func TestCallLogStore_Create(t *testing.T) {
	m := &model.CallLog{FromAddress: "+15550001111"}
	require.NoError(t, NewStore().CallLogs().Create(context.Background(), m))
	assert.Equal(t, int64(1), m.ID)
	assert.Nil(t, m.StartedAt)
}
