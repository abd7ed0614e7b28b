package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEventRepository_MarkStatus 测试更新事件状态后不再出现在待处理列表
func TestEventRepository_MarkStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewEventRepository(db)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.Save(ctx, &model.EventModel{
		ID:         "evt-1",
		Type:       "badge_counts_changed",
		ResourceID: "pr-001",
		Data:       []byte(`{"request_id":"pr-001"}`),
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.EventStatusPending, pending[0].Status)

	require.NoError(t, repo.MarkStatus(ctx, "evt-1", model.EventStatusSuccess, 1, ""))

	pending, err = repo.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	byResource, err := repo.FindByResource(ctx, "pr-001")
	require.NoError(t, err)
	require.Len(t, byResource, 1)
	assert.Equal(t, 1, byResource[0].RetryCount)
}
