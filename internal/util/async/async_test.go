package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_DeliversAllResults(t *testing.T) {
	tasks := []Task[int]{
		{Name: "a", Func: func(_ context.Context) (int, error) { return 1, nil }},
		{Name: "b", Func: func(_ context.Context) (int, error) { return 2, nil }},
		{Name: "c", Func: func(_ context.Context) (int, error) { return 3, nil }},
	}

	collected := map[string]int{}
	err := Collect(context.Background(), tasks, func(name string, value int) error {
		collected[name] = value
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 3}, collected)
}

func TestCollect_EmptyTaskList(t *testing.T) {
	err := Collect(context.Background(), nil, func(string, int) error {
		t.Fatal("collect should not be called")
		return nil
	})
	assert.NoError(t, err)
}

func TestCollect_CollectIsNeverConcurrent(t *testing.T) {
	var inCollect atomic.Int32

	tasks := make([]Task[int], 8)
	for i := range tasks {
		tasks[i] = Task[int]{Name: "task", Func: func(_ context.Context) (int, error) {
			return i, nil
		}}
	}

	err := Collect(context.Background(), tasks, func(string, int) error {
		require.Equal(t, int32(1), inCollect.Add(1))
		time.Sleep(time.Millisecond)
		inCollect.Add(-1)
		return nil
	})

	require.NoError(t, err)
}

func TestCollect_FailedTaskDoesNotStopOthers(t *testing.T) {
	boom := errors.New("launch failed")
	slowDone := make(chan struct{})

	tasks := []Task[string]{
		{Name: "failing", Func: func(_ context.Context) (string, error) {
			return "", boom
		}},
		{Name: "slow", Func: func(_ context.Context) (string, error) {
			time.Sleep(10 * time.Millisecond)
			close(slowDone)
			return "ok", nil
		}},
	}

	collected := map[string]string{}
	err := Collect(context.Background(), tasks, func(name, value string) error {
		collected[name] = value
		return nil
	})

	// The failure is reported, but the slow task still ran to completion and
	// its result was collected.
	assert.ErrorIs(t, err, boom)
	select {
	case <-slowDone:
	default:
		t.Fatal("slow task did not finish")
	}
	assert.Equal(t, map[string]string{"slow": "ok"}, collected)
}

func TestCollect_CollectErrorIsReturned(t *testing.T) {
	persistErr := errors.New("persist failed")
	tasks := []Task[int]{
		{Name: "only", Func: func(_ context.Context) (int, error) { return 1, nil }},
	}

	err := Collect(context.Background(), tasks, func(string, int) error {
		return persistErr
	})

	assert.ErrorIs(t, err, persistErr)
}
