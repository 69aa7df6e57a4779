package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postureguard/internal/config"
	"postureguard/internal/model"
)

func snap(id string, updated time.Time, overall float64) model.SessionSnapshot {
	return model.SessionSnapshot{
		SessionID: id,
		UpdatedAt: updated,
		Score:     &model.PostureScore{Overall: overall, Level: model.QualityFor(overall)},
	}
}

func TestStoreKeepsLatestPerSession(t *testing.T) {
	s := NewStore(10)
	now := time.Now().UTC()
	s.Update(snap("a", now, 50))
	s.Update(snap("a", now.Add(time.Second), 80))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 80.0, got.Score.Overall)
	assert.Len(t, s.GetAll(), 1)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStoreEvictsStalest(t *testing.T) {
	s := NewStore(2)
	now := time.Now().UTC()
	s.Update(snap("old", now.Add(-time.Hour), 10))
	s.Update(snap("mid", now.Add(-time.Minute), 20))
	s.Update(snap("new", now, 30))

	_, ok := s.Get("old")
	assert.False(t, ok, "stalest entry should be evicted")
	_, ok = s.Get("new")
	assert.True(t, ok)
	assert.Len(t, s.GetAll(), 2)
}

func TestStoreDeleteAndClear(t *testing.T) {
	s := NewStore(10)
	s.Update(snap("a", time.Now().UTC(), 10))
	s.Delete("a")
	_, ok := s.Get("a")
	assert.False(t, ok)

	s.Update(snap("b", time.Now().UTC(), 10))
	s.Clear()
	assert.Empty(t, s.GetAll())
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	pub := NewRedisPublisher(config.RedisConfig{
		Addr:      mr.Addr(),
		KeyPrefix: "postureguard:session:",
		TTL:       time.Minute,
	})
	defer pub.Close()

	ctx := context.Background()
	require.NoError(t, pub.Ping(ctx))

	in := snap("desk-1", time.Now().UTC(), 77)
	require.NoError(t, pub.Publish(ctx, in))

	raw, err := mr.Get("postureguard:session:desk-1")
	require.NoError(t, err)
	var out model.SessionSnapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	assert.Equal(t, "desk-1", out.SessionID)
	assert.Equal(t, 77.0, out.Score.Overall)
	assert.Greater(t, mr.TTL("postureguard:session:desk-1"), time.Duration(0))

	assert.NoError(t, pub.Publish(ctx, model.SessionSnapshot{}), "empty session id is a no-op")
}
