package services

import (
	"testing"
	"time"

	"holewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierForTotal(t *testing.T) {
	tests := []struct {
		total int
		want  models.Tier
	}{
		{-500, models.TierBase},
		{-1, models.TierBase},
		{0, models.TierBase},
		{99, models.TierBase},
		{100, models.TierTrusted},
		{199, models.TierTrusted},
		{200, models.TierExpert},
		{5000, models.TierExpert},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierForTotal(tt.total), "total %d", tt.total)
	}
}

func TestWeightFor(t *testing.T) {
	assert.Equal(t, 1.0, WeightFor(models.TierBase))
	assert.Equal(t, 1.5, WeightFor(models.TierTrusted))
	assert.Equal(t, 2.0, WeightFor(models.TierExpert))
	assert.Equal(t, 1.0, WeightFor("unknown"))
}

func TestRecordPointsUpdatesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser(t)

	tier, err := env.svc.Ledger.TierOf(env.ctx, nil, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierBase, tier, "users without a snapshot are base")

	require.NoError(t, env.svc.Ledger.RecordPoints(env.ctx, nil, Award{UserID: user.ID, Amount: 150, Category: "seed"}))
	tier, err = env.svc.Ledger.TierOf(env.ctx, nil, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierTrusted, tier)

	require.NoError(t, env.svc.Ledger.RecordPoints(env.ctx, nil, Award{UserID: user.ID, Amount: 60, Category: "seed"}))
	var snapshot models.ReputationSnapshot
	require.NoError(t, env.db.Where("user_id = ?", user.ID).Take(&snapshot).Error)
	assert.Equal(t, 210, snapshot.Total)
	assert.Equal(t, models.TierExpert, snapshot.Tier)

	// 负分强制 base
	require.NoError(t, env.svc.Ledger.RecordPoints(env.ctx, nil, Award{UserID: user.ID, Amount: -300, Category: CategoryFalseReport}))
	require.NoError(t, env.db.Where("user_id = ?", user.ID).Take(&snapshot).Error)
	assert.Equal(t, -90, snapshot.Total)
	assert.Equal(t, models.TierBase, snapshot.Tier)

	var entries int64
	require.NoError(t, env.db.Model(&models.PointsTransaction{}).Where("user_id = ?", user.ID).Count(&entries).Error)
	assert.EqualValues(t, 3, entries)
}

func TestRebuildRestoresSnapshot(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUserWithPoints(t, 40)
	require.NoError(t, env.svc.Ledger.RecordPoints(env.ctx, nil, Award{UserID: user.ID, Amount: 70, Category: "seed"}))

	// 快照被意外改坏
	require.NoError(t, env.db.Model(&models.ReputationSnapshot{}).
		Where("user_id = ?", user.ID).
		Updates(map[string]any{"total": 999, "tier": models.TierExpert}).Error)

	snapshot, err := env.svc.Ledger.Rebuild(env.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 110, snapshot.Total)
	assert.Equal(t, models.TierTrusted, snapshot.Tier)
	assert.Equal(t, 110, env.total(t, user.ID))

	other := env.newUserWithPoints(t, 5)
	require.NoError(t, env.db.Model(&models.ReputationSnapshot{}).Where("user_id = ?", other.ID).Update("total", 0).Error)
	n, err := env.svc.Ledger.RebuildAll(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 5, env.total(t, other.ID))
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUserWithPoints(t, 120)

	summary, err := env.svc.Ledger.Summary(env.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, summary.Total)
	assert.Equal(t, models.TierTrusted, summary.Tier)
	assert.Equal(t, 1.5, summary.Weight)
	assert.Equal(t, models.TierExpert, summary.NextTier)
	assert.Equal(t, 80, summary.PointsToNext)
	assert.Len(t, summary.Recent, 1)

	_, err = env.svc.Ledger.Summary(env.ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	low := env.newUserWithPoints(t, 10)
	high := env.newUserWithPoints(t, 250)
	mid := env.newUserWithPoints(t, 120)

	board, err := env.svc.Ledger.Leaderboard(env.ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, high.ID, board[0].UserID)
	assert.Equal(t, models.TierExpert, board[0].Tier)
	assert.Equal(t, mid.ID, board[1].UserID)
	assert.Equal(t, low.ID, board[2].UserID)
	assert.Equal(t, 3, board[2].Rank)

	// 绕过账本直接改库，一分钟内仍走缓存
	require.NoError(t, env.db.Model(&models.ReputationSnapshot{}).
		Where("user_id = ?", mid.ID).UpdateColumn("total", 900).Error)
	board, err = env.svc.Ledger.Leaderboard(env.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, high.ID, board[0].UserID)

	env.clock.Advance(2 * time.Minute)
	board, err = env.svc.Ledger.Leaderboard(env.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, mid.ID, board[0].UserID)
}

func TestLeaderboardRefreshesAfterPoints(t *testing.T) {
	env := newTestEnv(t)
	low := env.newUserWithPoints(t, 10)
	high := env.newUserWithPoints(t, 250)

	board, err := env.svc.Ledger.Leaderboard(env.ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, high.ID, board[0].UserID)

	require.NoError(t, env.svc.Ledger.RecordPoints(env.ctx, nil, Award{UserID: low.ID, Amount: 500, Category: "seed"}))
	board, err = env.svc.Ledger.Leaderboard(env.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, low.ID, board[0].UserID)
}

func TestLeaderboardRefreshesAfterConsensusAward(t *testing.T) {
	env := newTestEnv(t)
	leader := env.newUserWithPoints(t, 15)
	author := env.newUser(t)
	report := env.submit(t, author)

	board, err := env.svc.Ledger.Leaderboard(env.ctx, 1)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, leader.ID, board[0].UserID)

	// 作者 +10 创建 +10 验证通过 = 20，超过 15
	env.activate(t, report)
	board, err = env.svc.Ledger.Leaderboard(env.ctx, 1)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, author.ID, board[0].UserID)
}
