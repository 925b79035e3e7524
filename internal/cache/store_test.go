package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(10)
	require.NoError(t, err)
	return l
}

func TestStore_RedisRoundTripAndTTL(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewStore(rdb, newLocal(t))
	ctx := context.Background()

	require.NoError(t, s.SetJSON(ctx, CommentKey(7), payload{ID: 7, Text: "hi"}, CommentTTL))
	assert.True(t, mr.Exists("comment:7"))
	assert.Equal(t, CommentTTL, mr.TTL("comment:7"))

	var got payload
	found, err := s.GetJSON(ctx, CommentKey(7), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hi", got.Text)

	mr.FastForward(CommentTTL + time.Second)
	found, err = s.GetJSON(ctx, CommentKey(7), &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_FallsBackToLocalWhenRedisDown(t *testing.T) {
	mr, rdb := newRedis(t)
	local := newLocal(t)
	s := NewStore(rdb, local)
	ctx := context.Background()

	mr.Close()

	require.NoError(t, s.SetJSON(ctx, CommentKey(1), payload{ID: 1}, time.Minute))
	assert.Equal(t, 1, local.Len())

	var got payload
	found, err := s.GetJSON(ctx, CommentKey(1), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint(1), got.ID)
}

func TestStore_DeleteRemovesFromBothBackends(t *testing.T) {
	mr, rdb := newRedis(t)
	local := newLocal(t)
	s := NewStore(rdb, local)
	ctx := context.Background()

	local.Set(CommentKey(3), []byte(`{"id":3}`), time.Minute)
	require.NoError(t, s.SetJSON(ctx, CommentKey(3), payload{ID: 3}, time.Minute))

	require.NoError(t, s.Delete(ctx, CommentKey(3)))
	assert.False(t, mr.Exists("comment:3"))
	_, ok := local.Get(CommentKey(3))
	assert.False(t, ok)
}

func TestAside(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewStore(rdb, nil)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			*dest = payload{ID: 9, Text: "from db"}
			return nil
		}
	}

	var first payload
	res, err := Aside(ctx, s, CommentKey(9), &first, time.Minute, fetch(&first))
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.NoError(t, res.WriteErr)

	var second payload
	res, err = Aside(ctx, s, CommentKey(9), &second, time.Minute, fetch(&second))
	require.NoError(t, err)
	assert.True(t, res.Hit)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	boom := errors.New("db down")
	var missing payload
	_, err = Aside(ctx, s, CommentKey(10), &missing, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(CommentKey(10)))
}

func TestAside_RedisDownStillReads(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewStore(rdb, nil)
	mr.Close()

	var got payload
	res, err := Aside(context.Background(), s, CommentKey(3), &got, time.Minute, func() error {
		got = payload{ID: 3}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, payload{ID: 3}, got)
	assert.False(t, res.Hit)
	assert.Error(t, res.ReadErr)
	assert.Error(t, res.WriteErr)
}

func TestStore_NoBackends(t *testing.T) {
	s := NewStore(nil, nil)
	ctx := context.Background()

	assert.NoError(t, s.SetJSON(ctx, "k", payload{ID: 1}, time.Minute))
	var got payload
	found, err := s.GetJSON(ctx, "k", &got)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, s.Delete(ctx, "k"))
}

func TestLocal_Expiry(t *testing.T) {
	l := newLocal(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Set("a", []byte("1"), time.Minute)
	_, ok := l.Get("a")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = l.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, l.Len())
}

func TestConnect_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Connect(mr.Addr())
	require.NoError(t, err)
	_ = rdb.Close()

	rdb, err = Connect("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	_ = rdb.Close()

	_, err = Connect("redis://%zz")
	assert.Error(t, err)
}
