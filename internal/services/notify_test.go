package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"holewatch/internal/config"
	"holewatch/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (f *failingNotifier) Deliver(context.Context, []uint, ParticipantNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("push gateway unavailable")
}

func newTestDispatcher(env *testEnv, queueSize int, notifiers ...Notifier) *Dispatcher {
	return NewDispatcher(env.db, config.Notifications{QueueSize: queueSize, Concurrency: 4},
		zap.NewNop(), NewMetrics(prometheus.NewRegistry()), notifiers...)
}

func inboxOf(t *testing.T, env *testEnv, userID uint) []models.Notification {
	t.Helper()
	list, err := env.svc.Inbox.List(env.ctx, userID)
	require.NoError(t, err)
	return list
}

// participantsFixture 作者、一个验证者、一个评论者、一个关注者和触发者
func participantsFixture(t *testing.T, env *testEnv) (report *models.Report, author, voter, commenter, follower, trigger *models.User) {
	t.Helper()
	author = env.newUser(t)
	voter = env.newUser(t)
	commenter = env.newUser(t)
	follower = env.newUser(t)
	trigger = env.newUser(t)

	report = env.submit(t, author)
	_, err := env.svc.Reports.CastValidationVote(env.ctx, report.ID, voter.ID, true)
	require.NoError(t, err)
	_, err = env.svc.Comments.Add(env.ctx, report.ID, commenter.ID, "Sigue ahí")
	require.NoError(t, err)
	_, err = env.svc.Subscriptions.Toggle(env.ctx, follower.ID, report.ID)
	require.NoError(t, err)
	_, err = env.svc.Comments.Add(env.ctx, report.ID, trigger.ID, "Lo vi hoy")
	require.NoError(t, err)
	return
}

func TestDispatchNotifiesParticipantsExceptTrigger(t *testing.T) {
	env := newTestEnv(t)
	report, author, voter, commenter, follower, trigger := participantsFixture(t, env)

	d := newTestDispatcher(env, 10, NewInAppNotifier(env.db, env.clock.Now))
	d.dispatch(env.ctx, ParticipantNotice{
		ReportID:      report.ID,
		ExcludeUserID: trigger.ID,
		ActorID:       &trigger.ID,
		Type:          models.NotificationTypeReopened,
		Title:         "Report reopened",
	})

	for _, u := range []*models.User{author, voter, commenter, follower} {
		list := inboxOf(t, env, u.ID)
		require.Len(t, list, 1, "user %s", u.Username)
		assert.Equal(t, models.NotificationTypeReopened, list[0].Type)
		require.NotNil(t, list[0].ReportID)
		assert.Equal(t, report.ID, *list[0].ReportID)
	}
	assert.Empty(t, inboxOf(t, env, trigger.ID))
}

func TestDispatchFollowersOnly(t *testing.T) {
	env := newTestEnv(t)
	report, author, voter, commenter, follower, _ := participantsFixture(t, env)

	d := newTestDispatcher(env, 10, NewInAppNotifier(env.db, env.clock.Now))
	d.dispatch(env.ctx, ParticipantNotice{
		ReportID:      report.ID,
		Type:          models.NotificationTypeTransition,
		Title:         "Report verified",
		FollowersOnly: true,
	})

	assert.Len(t, inboxOf(t, env, author.ID), 1)
	assert.Len(t, inboxOf(t, env, follower.ID), 1)
	assert.Empty(t, inboxOf(t, env, voter.ID))
	assert.Empty(t, inboxOf(t, env, commenter.ID))
}

func TestDispatchSurvivesFailingNotifier(t *testing.T) {
	env := newTestEnv(t)
	report, author, _, _, _, _ := participantsFixture(t, env)

	failing := &failingNotifier{}
	d := newTestDispatcher(env, 10, failing, NewInAppNotifier(env.db, env.clock.Now))
	d.dispatch(env.ctx, ParticipantNotice{ReportID: report.ID, Type: models.NotificationTypeSystem, Title: "hi"})

	assert.Equal(t, 1, failing.calls)
	assert.Len(t, inboxOf(t, env, author.ID), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.Notifications.WithLabelValues("failed")))
}

func TestNotifyDropsWhenQueueFull(t *testing.T) {
	env := newTestEnv(t)
	d := newTestDispatcher(env, 1)

	d.NotifyParticipants(env.ctx, ParticipantNotice{ReportID: 1})
	d.NotifyParticipants(env.ctx, ParticipantNotice{ReportID: 2})

	assert.Len(t, d.queue, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.Notifications.WithLabelValues("dropped")))
}

func TestStopDrainsQueue(t *testing.T) {
	env := newTestEnv(t)
	report, author, _, _, _, _ := participantsFixture(t, env)

	d := newTestDispatcher(env, 10, NewInAppNotifier(env.db, env.clock.Now), NewLogNotifier(zap.NewNop()))
	d.Start(context.Background())
	d.NotifyParticipants(env.ctx, ParticipantNotice{ReportID: report.ID, Type: models.NotificationTypeSystem, Title: "one"})
	d.NotifyParticipants(env.ctx, ParticipantNotice{ReportID: report.ID, Type: models.NotificationTypeSystem, Title: "two"})
	d.Stop()

	assert.Len(t, inboxOf(t, env, author.ID), 2)

	// 停止后不再接收
	d.NotifyParticipants(env.ctx, ParticipantNotice{ReportID: report.ID})
	assert.Empty(t, d.queue)
}
