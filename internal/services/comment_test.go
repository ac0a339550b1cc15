package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"holewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentPointsDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	report := env.submit(t, env.newUser(t))
	commenter := env.newUser(t)

	for i := 0; i < DailyCommentLimit+1; i++ {
		_, err := env.svc.Comments.Add(env.ctx, report.ID, commenter.ID, "Sigue igual")
		require.NoError(t, err)
	}
	assert.Equal(t, DailyCommentLimit*PointsComment, env.total(t, commenter.ID))

	// 第二天重新计数
	env.clock.Advance(24 * time.Hour)
	_, err := env.svc.Comments.Add(env.ctx, report.ID, commenter.ID, "Ya casi lo tapan")
	require.NoError(t, err)
	assert.Equal(t, (DailyCommentLimit+1)*PointsComment, env.total(t, commenter.ID))
}

func TestConcurrentCommentsRespectDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	report := env.submit(t, env.newUser(t))
	commenter := env.newUser(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Comments.Add(env.ctx, report.ID, commenter.ID, "Otra moto cayó aquí")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	comments, err := env.svc.Comments.List(env.ctx, report.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 8)
	assert.Equal(t, DailyCommentLimit*PointsComment, env.total(t, commenter.ID))
}

func TestCommentByUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	report := env.submit(t, env.newUser(t))

	_, err := env.svc.Comments.Add(env.ctx, report.ID, 999, "hola")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCommentValidation(t *testing.T) {
	env := newTestEnv(t)
	report := env.submit(t, env.newUser(t))
	user := env.newUser(t)

	_, err := env.svc.Comments.Add(env.ctx, report.ID, user.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyComment)

	_, err = env.svc.Comments.Add(env.ctx, 777, user.ID, "hola")
	assert.ErrorIs(t, err, ErrReportNotFound)

	long := strings.Repeat("a", MaxCommentChars+10)
	comment, err := env.svc.Comments.Add(env.ctx, report.ID, user.ID, long)
	require.NoError(t, err)
	assert.Len(t, []rune(comment.Content), MaxCommentChars)
}

func TestCommentListRendersMarkdown(t *testing.T) {
	env := newTestEnv(t)
	author := env.newUser(t)
	report := env.submit(t, author)
	commenter := env.newUser(t)

	_, err := env.svc.Comments.Add(env.ctx, report.ID, commenter.ID, "**peligroso** <script>alert(1)</script>")
	require.NoError(t, err)

	comments, err := env.svc.Comments.List(env.ctx, report.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, commenter.Username, comments[0].User.Username)
	assert.Contains(t, comments[0].ContentHTML, "<strong>peligroso</strong>")
	assert.NotContains(t, comments[0].ContentHTML, "<script>")

	notices := env.notifier.ofType(models.NotificationTypeComment)
	require.Len(t, notices, 1)
	assert.Equal(t, commenter.ID, notices[0].ExcludeUserID)
}
