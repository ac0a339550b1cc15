package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionToggle(t *testing.T) {
	env := newTestEnv(t)
	report := env.submit(t, env.newUser(t))
	user := env.newUser(t)

	subscribed, err := env.svc.Subscriptions.Toggle(env.ctx, user.ID, report.ID)
	require.NoError(t, err)
	assert.True(t, subscribed)

	subscribed, err = env.svc.Subscriptions.Toggle(env.ctx, user.ID, report.ID)
	require.NoError(t, err)
	assert.False(t, subscribed)

	ok, err := env.svc.Subscriptions.IsSubscribed(env.ctx, user.ID, report.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.svc.Subscriptions.Toggle(env.ctx, user.ID, 31337)
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	author := env.newUser(t)
	report := env.submit(t, author)

	// 作者提交时已自动关注
	require.NoError(t, env.svc.Subscriptions.Subscribe(env.ctx, env.db, author.ID, report.ID))

	var count int64
	require.NoError(t, env.db.Table("subscriptions").Where("user_id = ?", author.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
