package nest

import (
	"context"
	"path/filepath"
	"testing"

	"fairytales/internal/config"
	"fairytales/internal/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickChoice(t *testing.T) {
	choices := []string{"Пойти в пещеру", "Позвать друзей"}

	got, ok := pickChoice("2", choices)
	assert.True(t, ok)
	assert.Equal(t, "Позвать друзей", got)

	_, ok = pickChoice("3", choices)
	assert.False(t, ok)
	_, ok = pickChoice("0", choices)
	assert.False(t, ok)
	_, ok = pickChoice("x", choices)
	assert.False(t, ok)

	got, ok = pickChoice("Спрятаться под мостом", choices)
	assert.True(t, ok)
	assert.Equal(t, "Спрятаться под мостом", got)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	store, client, err := openStore(ctx, config.Usage{Store: "memory"})
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.IsType(t, &usage.MemoryStore{}, store)

	store, _, err = openStore(ctx, config.Usage{Store: "File", File: filepath.Join(t.TempDir(), "usage.json")})
	require.NoError(t, err)
	assert.IsType(t, &usage.FileStore{}, store)

	_, _, err = openStore(ctx, config.Usage{Store: "etcd"})
	assert.Error(t, err)
}

func TestDenialMessage(t *testing.T) {
	msg := denialMessage(&usage.DeniedError{Reason: usage.ReasonDailyLimitReached, Limit: 7})
	assert.Contains(t, msg, "7")

	msg = denialMessage(&usage.DeniedError{Reason: usage.ReasonSubscriptionRequired})
	assert.Contains(t, msg, "subscription")
}
