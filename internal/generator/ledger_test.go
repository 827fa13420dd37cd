package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contentdeck/aigen/internal/db"
	"github.com/contentdeck/aigen/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(store *memoryStore) *Ledger {
	l := NewLedger(store)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return l
}

func TestLedger_Open(t *testing.T) {
	t.Run("creates a processing row", func(t *testing.T) {
		store := newMemoryStore()
		ledger := newTestLedger(store)

		req, err := ledger.Open(context.Background(), testTenant, testUser, models.RequestTypeCaption, "gpt-4",
			map[string]any{"topic": "x"}, map[string]any{"source": "web"})
		require.NoError(t, err)

		assert.Equal(t, models.RequestStatusProcessing, req.Status)
		assert.NotEqual(t, uuid.Nil, req.ID)
		assert.JSONEq(t, `{"topic":"x"}`, string(req.Input))
		assert.JSONEq(t, `{"source":"web"}`, string(req.Metadata))
		assert.Nil(t, req.Output)
		assert.Nil(t, req.ErrorMessage)
		assert.Len(t, store.all(), 1)
	})

	t.Run("empty metadata is omitted", func(t *testing.T) {
		store := newMemoryStore()
		req, err := newTestLedger(store).Open(context.Background(), testTenant, testUser, models.RequestTypeContent, "m", struct{}{}, nil)
		require.NoError(t, err)
		assert.Nil(t, req.Metadata)
	})

	t.Run("rejects invalid rows", func(t *testing.T) {
		store := newMemoryStore()
		ledger := newTestLedger(store)

		_, err := ledger.Open(context.Background(), "", testUser, models.RequestTypeCaption, "m", nil, nil)
		assert.Error(t, err)

		_, err = ledger.Open(context.Background(), testTenant, testUser, models.RequestType("nope"), "m", nil, nil)
		assert.Error(t, err)

		assert.Empty(t, store.all())
	})

	t.Run("unmarshalable input", func(t *testing.T) {
		_, err := newTestLedger(newMemoryStore()).Open(context.Background(), testTenant, testUser, models.RequestTypeCaption, "m", make(chan int), nil)
		assert.Error(t, err)
	})
}

func TestLedger_Transitions(t *testing.T) {
	ctx := context.Background()

	t.Run("complete then fail is refused", func(t *testing.T) {
		store := newMemoryStore()
		ledger := newTestLedger(store)
		req, err := ledger.Open(ctx, testTenant, testUser, models.RequestTypeHashtag, "m", nil, nil)
		require.NoError(t, err)

		require.NoError(t, ledger.Complete(ctx, req.ID, models.Completion{
			Output:           map[string]any{"hashtags": []string{"#a"}},
			TokensUsed:       12,
			CostUSD:          0.001,
			ProcessingTimeMS: 250,
		}))

		err = ledger.Fail(ctx, req.ID, models.Failure{ErrorMessage: "late", ProcessingTimeMS: 300})
		assert.ErrorIs(t, err, db.ErrAlreadyFinalized)

		row := store.all()[0]
		assert.Equal(t, models.RequestStatusCompleted, row.Status)
		assert.JSONEq(t, `{"hashtags":["#a"]}`, string(row.Output))
		assert.Equal(t, 250, *row.ProcessingTimeMS)
	})

	t.Run("fail then complete is refused", func(t *testing.T) {
		store := newMemoryStore()
		ledger := newTestLedger(store)
		req, err := ledger.Open(ctx, testTenant, testUser, models.RequestTypeHashtag, "m", nil, nil)
		require.NoError(t, err)

		require.NoError(t, ledger.Fail(ctx, req.ID, models.Failure{ErrorMessage: "boom", ProcessingTimeMS: 5}))
		err = ledger.Complete(ctx, req.ID, models.Completion{Output: "x"})
		assert.ErrorIs(t, err, db.ErrAlreadyFinalized)

		row := store.all()[0]
		assert.Equal(t, models.RequestStatusFailed, row.Status)
		assert.Equal(t, "boom", *row.ErrorMessage)
	})

	t.Run("complete requires output", func(t *testing.T) {
		store := newMemoryStore()
		ledger := newTestLedger(store)
		req, err := ledger.Open(ctx, testTenant, testUser, models.RequestTypeHashtag, "m", nil, nil)
		require.NoError(t, err)

		assert.Error(t, ledger.Complete(ctx, req.ID, models.Completion{}))
		assert.Equal(t, models.RequestStatusProcessing, store.all()[0].Status)
	})

	t.Run("empty failure message", func(t *testing.T) {
		store := newMemoryStore()
		ledger := newTestLedger(store)
		req, err := ledger.Open(ctx, testTenant, testUser, models.RequestTypeHashtag, "m", nil, nil)
		require.NoError(t, err)

		require.NoError(t, ledger.Fail(ctx, req.ID, models.Failure{}))
		assert.Equal(t, "unknown error", *store.all()[0].ErrorMessage)
	})
}

func TestLedger_History(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	ledger := newTestLedger(store)

	for i := 0; i < 5; i++ {
		reqType := models.RequestTypeCaption
		if i%2 == 1 {
			reqType = models.RequestTypeImage
		}
		_, err := ledger.Open(ctx, testTenant, testUser, reqType, "m", i, nil)
		require.NoError(t, err)
	}
	_, err := ledger.Open(ctx, "other-tenant", testUser, models.RequestTypeCaption, "m", 99, nil)
	require.NoError(t, err)

	t.Run("newest first with default page", func(t *testing.T) {
		page, err := ledger.History(ctx, testTenant, models.HistoryFilter{})
		require.NoError(t, err)

		assert.Equal(t, 5, page.Total)
		require.Len(t, page.Requests, 5)
		assert.Equal(t, "4", string(page.Requests[0].Input))
		assert.Equal(t, "0", string(page.Requests[4].Input))
		for _, r := range page.Requests {
			assert.Equal(t, testTenant, r.TenantID)
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		page, err := ledger.History(ctx, testTenant, models.HistoryFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)

		assert.Equal(t, 5, page.Total)
		require.Len(t, page.Requests, 2)
		assert.Equal(t, "3", string(page.Requests[0].Input))
		assert.Equal(t, "2", string(page.Requests[1].Input))
	})

	t.Run("type filter", func(t *testing.T) {
		image := models.RequestTypeImage
		page, err := ledger.History(ctx, testTenant, models.HistoryFilter{Type: &image})
		require.NoError(t, err)

		assert.Equal(t, 2, page.Total)
		for _, r := range page.Requests {
			assert.Equal(t, models.RequestTypeImage, r.Type)
		}
	})

	t.Run("offset past the end", func(t *testing.T) {
		page, err := ledger.History(ctx, testTenant, models.HistoryFilter{Offset: 50})
		require.NoError(t, err)

		assert.Equal(t, 5, page.Total)
		assert.NotNil(t, page.Requests)
		assert.Empty(t, page.Requests)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		page, err := ledger.History(ctx, "nobody", models.HistoryFilter{})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
		assert.NotNil(t, page.Requests)
	})
}

func TestLedger_UsageStats(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	ledger := newTestLedger(store)

	complete := func(reqType models.RequestType, tokens int, cost float64) {
		req, err := ledger.Open(ctx, testTenant, testUser, reqType, "m", nil, nil)
		require.NoError(t, err)
		require.NoError(t, ledger.Complete(ctx, req.ID, models.Completion{Output: "ok", TokensUsed: tokens, CostUSD: cost}))
	}
	complete(models.RequestTypeCaption, 100, 0.01)
	complete(models.RequestTypeCaption, 50, 0.005)
	complete(models.RequestTypeImage, 0, 0.04)

	failed, err := ledger.Open(ctx, testTenant, testUser, models.RequestTypeContent, "m", nil, nil)
	require.NoError(t, err)
	require.NoError(t, ledger.Fail(ctx, failed.ID, models.Failure{ErrorMessage: "x"}))

	_, err = ledger.Open(ctx, testTenant, testUser, models.RequestTypeContent, "m", nil, nil)
	require.NoError(t, err)

	stats, err := ledger.UsageStats(ctx, testTenant)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 150, stats.TotalTokens)
	assert.InDelta(t, 0.055, stats.TotalCost, 1e-12)
	assert.Equal(t, 2, stats.ByType[models.RequestTypeCaption].Count)
	assert.Equal(t, 1, stats.ByType[models.RequestTypeImage].Count)
	assert.Equal(t, models.TypeUsage{}, stats.ByType[models.RequestTypeContent])

	for _, reqType := range models.AllRequestTypes {
		_, ok := stats.ByType[reqType]
		assert.True(t, ok, "missing %s", reqType)
	}
}

func TestLedger_CreateError(t *testing.T) {
	store := newMemoryStore()
	store.createErr = errors.New("disk full")

	_, err := newTestLedger(store).Open(context.Background(), testTenant, testUser, models.RequestTypeCaption, "m", nil, nil)
	assert.EqualError(t, err, "disk full")
}

func TestLedger_Get(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(store)
	ctx := context.Background()

	req, err := ledger.Open(ctx, testTenant, testUser, models.RequestTypeHashtag, "gpt-4", map[string]string{"content": "x"}, nil)
	require.NoError(t, err)

	t.Run("own record", func(t *testing.T) {
		got, err := ledger.Get(ctx, testTenant, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)
		assert.Equal(t, models.RequestStatusProcessing, got.Status)
	})

	t.Run("other tenant", func(t *testing.T) {
		_, err := ledger.Get(ctx, "c2d9d1f4-1b6e-4f0e-9a53-0d1f2e3a4b5c", req.ID)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := ledger.Get(ctx, testTenant, uuid.New())
		assert.ErrorIs(t, err, ErrRequestNotFound)
		assert.NotErrorIs(t, err, db.ErrNotFound)
	})
}
