package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"holewatch/internal/config"
	"holewatch/internal/db"
	"holewatch/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Medellín
const (
	baseLat = 6.2442
	baseLon = -75.5812
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []ParticipantNotice
}

func (r *recordingNotifier) NotifyParticipants(_ context.Context, notice ParticipantNotice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *recordingNotifier) ofType(t models.NotificationType) []ParticipantNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ParticipantNotice
	for _, n := range r.notices {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	cfg      *config.Config
	svc      *Services
	clock    *fakeClock
	notifier *recordingNotifier
	ctx      context.Context

	users int
	spots int
}

func newTestEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()
	conn, err := db.Open(config.Database{Driver: "sqlite", DSN: ":memory:"}, false, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	cfg := config.Default()
	for _, opt := range opts {
		opt(cfg)
	}

	clock := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	metrics := NewMetrics(prometheus.NewRegistry())
	return &testEnv{
		db:       conn,
		cfg:      cfg,
		svc:      New(conn, cfg, notifier, zap.NewNop(), metrics, clock.Now),
		clock:    clock,
		notifier: notifier,
		ctx:      context.Background(),
	}
}

func (e *testEnv) newUser(t *testing.T) *models.User {
	t.Helper()
	e.users++
	user, err := e.svc.Users.Create(e.ctx, fmt.Sprintf("user%d", e.users), fmt.Sprintf("user%d@example.com", e.users), false)
	require.NoError(t, err)
	return user
}

// newUserWithPoints 创建用户并直接记入积分，用来得到指定等级
func (e *testEnv) newUserWithPoints(t *testing.T, points int) *models.User {
	t.Helper()
	user := e.newUser(t)
	if points != 0 {
		require.NoError(t, e.svc.Ledger.RecordPoints(e.ctx, nil, Award{
			UserID:   user.ID,
			Amount:   points,
			Category: "seed",
		}))
	}
	return user
}

func (e *testEnv) newUsers(t *testing.T, n int) []*models.User {
	t.Helper()
	users := make([]*models.User, 0, n)
	for range n {
		users = append(users, e.newUser(t))
	}
	return users
}

// nextSpot 每次返回一个相距约 1 km 的位置，避免触发重新打开
func (e *testEnv) nextSpot() (float64, float64) {
	e.spots++
	return baseLat + float64(e.spots)*0.01, baseLon
}

func (e *testEnv) submit(t *testing.T, author *models.User) *models.Report {
	t.Helper()
	lat, lon := e.nextSpot()
	report, reopened, err := e.svc.Reports.Submit(e.ctx, author.ID, lat, lon, "Hueco profundo en el carril derecho")
	require.NoError(t, err)
	require.False(t, reopened)
	return report
}

func (e *testEnv) total(t *testing.T, userID uint) int {
	t.Helper()
	var snapshot models.ReputationSnapshot
	err := e.db.Where("user_id = ?", userID).Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0
	}
	require.NoError(t, err)
	return snapshot.Total
}

func (e *testEnv) reload(t *testing.T, id uint) *models.Report {
	t.Helper()
	report, err := e.svc.Reports.GetReport(e.ctx, id)
	require.NoError(t, err)
	return report
}

// activate 用足够多的 base 用户投赞成票
func (e *testEnv) activate(t *testing.T, report *models.Report) {
	t.Helper()
	for _, voter := range e.newUsers(t, 5) {
		_, err := e.svc.Reports.CastValidationVote(e.ctx, report.ID, voter.ID, true)
		require.NoError(t, err)
	}
	require.Equal(t, models.StateActive, e.reload(t, report.ID).State)
}

// reject 用三个 base 用户投反对票
func (e *testEnv) reject(t *testing.T, report *models.Report) {
	t.Helper()
	for _, voter := range e.newUsers(t, 3) {
		_, err := e.svc.Reports.CastValidationVote(e.ctx, report.ID, voter.ID, false)
		require.NoError(t, err)
	}
	require.Equal(t, models.StateRejected, e.reload(t, report.ID).State)
}

// confirm 投满确认票让报告进入 target
func (e *testEnv) confirm(t *testing.T, report *models.Report, target models.ReportState) []*models.User {
	t.Helper()
	voters := e.newUsers(t, e.cfg.Consensus.ConfirmationThreshold)
	for _, voter := range voters {
		_, err := e.svc.Reports.CastConfirmationVote(e.ctx, report.ID, voter.ID, target)
		require.NoError(t, err)
	}
	require.Equal(t, target, e.reload(t, report.ID).State)
	return voters
}
