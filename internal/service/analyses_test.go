package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscleai_backend/internal/model"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/config"
)

func pngPhoto(t *testing.T) *bytes.Reader {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return bytes.NewReader(buf.Bytes())
}

func score(v int) *int { return &v }

func TestRecordAnalysis(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	sub := e.seedSubscription(model.PlanPro, model.StatusActive)

	res, err := e.analyses.Record(ctx, e.user.ID, RecordAnalysisInput{
		Photo:        pngPhoto(t),
		OverallScore: score(72),
		Result:       map[string]interface{}{"chest": 70},
	})
	require.NoError(t, err)

	rec := res.Analysis
	require.NotNil(t, rec.SubscriptionID)
	assert.Equal(t, sub.ID, *rec.SubscriptionID)
	assert.True(t, strings.HasSuffix(rec.PhotoKey, rec.ID.String()+".webp"))
	assert.Equal(t, "https://cdn.example.com/"+rec.PhotoKey, rec.PhotoURL)
	assert.Contains(t, e.photos.objects, rec.PhotoKey)

	require.NotNil(t, res.Usage)
	assert.Equal(t, 19, res.Usage.AnalysesRemaining)
	require.NotNil(t, res.Streak)
	assert.Equal(t, 1, res.Streak.CurrentStreak)
	assert.Equal(t, 1, e.reload(sub.ID).AnalysesUsedThisMonth)

	history, err := e.quota.UsageHistory(ctx, e.user.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].AnalysisResultID)
	assert.Equal(t, rec.ID, *history[0].AnalysisResultID)
}

func TestRecordAnalysisRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("score out of range", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		e.seedSubscription(model.PlanPro, model.StatusActive)
		_, err := e.analyses.Record(ctx, e.user.ID, RecordAnalysisInput{OverallScore: score(101)})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("no subscription", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		_, err := e.analyses.Record(ctx, e.user.ID, RecordAnalysisInput{})
		assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
	})

	t.Run("quota exhausted", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		e.seedSubscription(model.PlanBasic, model.StatusActive, func(s *model.UserSubscription) {
			s.AnalysesUsedThisMonth = 5
		})
		_, err := e.analyses.Record(ctx, e.user.ID, RecordAnalysisInput{Photo: pngPhoto(t)})
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Empty(t, e.photos.objects)
	})

	t.Run("not an image", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		e.seedSubscription(model.PlanPro, model.StatusActive)
		_, err := e.analyses.Record(ctx, e.user.ID, RecordAnalysisInput{Photo: strings.NewReader("plain text")})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("upload failure", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		sub := e.seedSubscription(model.PlanPro, model.StatusActive)
		e.photos.uploadErr = errors.New("bucket unavailable")
		_, err := e.analyses.Record(ctx, e.user.ID, RecordAnalysisInput{Photo: pngPhoto(t)})
		assert.Equal(t, apperror.KindUpstreamError, apperror.KindOf(err))
		assert.Zero(t, e.reload(sub.ID).AnalysesUsedThisMonth)
	})
}

func TestDailyStats(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	e.seedSubscription(model.PlanPro, model.StatusActive)

	_, err := e.analyses.Record(ctx, e.user.ID, RecordAnalysisInput{OverallScore: score(70)})
	require.NoError(t, err)

	e.advance(24 * time.Hour)
	for _, v := range []int{80, 90} {
		_, err := e.analyses.Record(ctx, e.user.ID, RecordAnalysisInput{OverallScore: score(v)})
		require.NoError(t, err)
	}
	_, err = e.analyses.Record(ctx, e.user.ID, RecordAnalysisInput{})
	require.NoError(t, err)

	stats, err := e.analyses.Stats(ctx, e.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-16", stats.Date)
	assert.EqualValues(t, 3, stats.AnalysesCount)
	require.NotNil(t, stats.AverageScore)
	assert.Equal(t, 85, *stats.AverageScore)
	assert.Equal(t, 90, *stats.BestScore)
	assert.Equal(t, 70, *stats.PreviousDayScore)
	assert.Equal(t, 21, *stats.Improvement)

	first, err := e.analyses.Stats(ctx, e.user.ID, "2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, 70, *first.AverageScore)
	assert.Nil(t, first.PreviousDayScore)
	assert.Nil(t, first.Improvement)

	_, err = e.analyses.Stats(ctx, e.user.ID, "15/01/2025")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}
