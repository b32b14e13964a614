package idempotency

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// backendContract exercises the Backend contract shared by every
// implementation.
func backendContract(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := b.Get(ctx, "Classify", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	ok := &Record{Activity: "Classify", Key: "classify:T-1", Fingerprint: "fp-1", Result: json.RawMessage(`{"intent":"reset-password"}`), CreatedAt: at}
	stored, inserted, err := b.PutIfAbsent(ctx, ok)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, ok.Fingerprint, stored.Fingerprint)

	dup := &Record{Activity: "Classify", Key: "classify:T-1", Fingerprint: "fp-2", Result: json.RawMessage(`{}`), CreatedAt: at}
	stored, inserted, err = b.PutIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, Fingerprint("fp-1"), stored.Fingerprint)
	assert.JSONEq(t, `{"intent":"reset-password"}`, string(stored.Result))

	failed := &Record{
		Activity:    "UpdateStatus",
		Key:         "status-resolved:T-1",
		Fingerprint: "fp-3",
		Err:         &ticket.OperationError{Kind: ticket.KindUpdateError, Message: "rejected"},
		CreatedAt:   at,
	}
	_, inserted, err = b.PutIfAbsent(ctx, failed)
	require.NoError(t, err)
	require.True(t, inserted)

	got, err := b.Get(ctx, "UpdateStatus", "status-resolved:T-1")
	require.NoError(t, err)
	require.NotNil(t, got.Err)
	assert.Equal(t, ticket.KindUpdateError, got.Err.Kind)
	assert.Equal(t, "rejected", got.Err.Message)
	assert.True(t, got.CreatedAt.Equal(at))

	_, outErr := got.Outcome()
	assert.True(t, ticket.IsKind(outErr, ticket.KindUpdateError))
}

func TestMemoryBackend(t *testing.T) {
	b := NewMemoryBackend()
	backendContract(t, b)
	assert.Equal(t, 2, b.Len())
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idempotency.db")
	b, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	backendContract(t, b)
}

func TestSQLiteBackend_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "idempotency.db")

	b, err := OpenSQLite(path)
	require.NoError(t, err)
	gate, err := NewGate(b)
	require.NoError(t, err)

	calls := 0
	compute := func(ctx context.Context) (json.RawMessage, error) {
		calls++
		return json.RawMessage(`"sent"`), nil
	}
	_, err = gate.RecordOrFetch(ctx, "Notify", "notify-alerts:T-1", "fp", compute)
	require.NoError(t, err)
	require.NoError(t, gate.Close())

	b, err = OpenSQLite(path)
	require.NoError(t, err)
	gate, err = NewGate(b)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gate.Close() })

	out, err := gate.RecordOrFetch(ctx, "Notify", "notify-alerts:T-1", "fp", compute)
	require.NoError(t, err)
	assert.JSONEq(t, `"sent"`, string(out))
	assert.Equal(t, 1, calls)
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("TICKETD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TICKETD_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	b, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.pool.Exec(ctx, "DELETE FROM idempotency_records")
	require.NoError(t, err)

	backendContract(t, b)
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("TICKETD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TICKETD_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	b := NewRedisBackend(client, time.Minute)
	require.NoError(t, b.Ping(ctx))

	keys, err := client.Keys(ctx, redisKeyPrefix+"*").Result()
	require.NoError(t, err)
	if len(keys) > 0 {
		require.NoError(t, client.Del(ctx, keys...).Err())
	}

	backendContract(t, b)
}
