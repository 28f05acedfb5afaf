package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildlens/buildlens/internal/core/domain"
)

func TestUsageStore_AppendAndListSince(t *testing.T) {
	store := NewUsageStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, domain.UsageRecord{Timestamp: base, Operation: "a"}))
	require.NoError(t, store.Append(ctx, domain.UsageRecord{Timestamp: base.Add(48 * time.Hour), Operation: "b"}))

	all, err := store.List(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	recent, err := store.List(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].Operation)
}

func TestDeliveryStore_FirstDeliveryWins(t *testing.T) {
	store := NewDeliveryStore()
	ctx := context.Background()

	first, err := store.MarkDelivered(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkDelivered(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestDeliveryStore_ClearDelivered(t *testing.T) {
	store := NewDeliveryStore()
	ctx := context.Background()

	first, err := store.MarkDelivered(ctx, "evt-2")
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, store.ClearDelivered(ctx, "evt-2"))

	again, err := store.MarkDelivered(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestDeliveryStore_EmptyID(t *testing.T) {
	_, err := NewDeliveryStore().MarkDelivered(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
