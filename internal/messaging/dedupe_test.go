package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDedupe(t *testing.T, retention time.Duration) (*Dedupe, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDedupe(client, retention), mr
}

func TestMarkProcessedFirstDelivery(t *testing.T) {
	d, _ := newTestDedupe(t, time.Hour)
	ctx := context.Background()

	first, err := d.MarkProcessed(ctx, "whatsapp", "msg-1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = d.MarkProcessed(ctx, "whatsapp", "msg-1")
	require.NoError(t, err)
	assert.False(t, first, "retry of the same event id must be flagged")
}

func TestMarkProcessedScopesByProvider(t *testing.T) {
	d, _ := newTestDedupe(t, time.Hour)
	ctx := context.Background()

	first, err := d.MarkProcessed(ctx, "whatsapp", "msg-1")
	require.NoError(t, err)
	require.True(t, first)

	first, err = d.MarkProcessed(ctx, "telegram", "msg-1")
	require.NoError(t, err)
	assert.True(t, first, "same event id under another provider is distinct")
}

func TestMarkProcessedExpiresAfterRetention(t *testing.T) {
	d, mr := newTestDedupe(t, time.Minute)
	ctx := context.Background()

	first, err := d.MarkProcessed(ctx, "whatsapp", "msg-1")
	require.NoError(t, err)
	require.True(t, first)

	mr.FastForward(2 * time.Minute)

	first, err = d.MarkProcessed(ctx, "whatsapp", "msg-1")
	require.NoError(t, err)
	assert.True(t, first, "entries past the retention window are forgotten")
}
