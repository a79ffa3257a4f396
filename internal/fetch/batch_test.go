package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gradebook/internal/alert"
	"github.com/JonMunkholm/gradebook/internal/apperr"
	"github.com/JonMunkholm/gradebook/internal/cache"
)

// delayed returns a producer that settles after d.
func delayed(d time.Duration, v any, err error) Producer {
	return func(ctx context.Context) (any, error) {
		select {
		case <-time.After(d):
			return v, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type softResult struct {
	err error
}

func (r softResult) FetchError() error { return r.err }

func TestBatchFetch_PartialFailure(t *testing.T) {
	// Arrange
	o, alerts, _ := newTestOrchestrator(t)
	boom := errors.New("boom")
	ops := []Operation{
		{Key: "a", Producer: delayed(30*time.Millisecond, "A", nil)},
		{Key: "b", Producer: delayed(0, nil, boom)},
		{Key: "c", Producer: delayed(10*time.Millisecond, "C", nil)},
	}

	// Act
	res := o.BatchFetch(context.Background(), ops)

	// Assert
	require.Len(t, res.Successful, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, Success{Key: "a", Data: "A"}, res.Successful[0])
	assert.Equal(t, Success{Key: "c", Data: "C"}, res.Successful[1])
	assert.Equal(t, "b", res.Failed[0].Key)
	assert.ErrorIs(t, res.Failed[0].Err, boom)

	list := alerts.List()
	require.Len(t, list, 1, "batch raises one summary alert")
	assert.Equal(t, alert.TypeWarning, list[0].Type)
	assert.Equal(t, "1 of 3 requests failed", list[0].Message)
}

func TestBatchFetch_SoftFailure(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	soft := errors.New("partial payload")

	res := o.BatchFetch(context.Background(), []Operation{
		{Key: "ok", Producer: Value(softResult{})},
		{Key: "soft", Producer: Value(softResult{err: soft})},
	})

	require.Len(t, res.Successful, 1)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "ok", res.Successful[0].Key)
	assert.ErrorIs(t, res.Failed[0].Err, soft)
	assert.False(t, o.cache.Has("soft"))
}

func TestBatchFetch_AllSucceedNoAlert(t *testing.T) {
	alerts := alert.NewCenter(10)
	o := New(cache.New(), apperr.NewClassifier(alerts, nil), WithBatchConcurrency(1))
	defer o.Close()

	res := o.BatchFetch(context.Background(), []Operation{
		{Key: "x", Producer: Value(1)},
		{Key: "y", Producer: Value(2)},
	})

	assert.Len(t, res.Successful, 2)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 0, alerts.Len())
}
