package file

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate() { c.n.Add(1) }

func TestFileMonitorDebouncesAndBroadcasts(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	target := &countingInvalidator{}
	monitor, err := NewFileMonitor(dir, target, nil)
	require.NoError(t, err)
	monitor.SetDebounce(50 * time.Millisecond)

	updates := monitor.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	path := filepath.Join(dir, "airline_analysis_dataset.csv")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("airline,price\nIndigo,4200\n"), 0644))
	}
	// 非数据文件不触发
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}

	assert.GreaterOrEqual(t, target.n.Load(), int32(1))
	assert.Equal(t, path, monitor.LastFile())

	cancel()
	require.NoError(t, <-done)
	monitor.Unsubscribe(updates)
}

func TestFileMonitorUnsubscribeTwice(t *testing.T) {
	monitor, err := NewFileMonitor(t.TempDir(), nil, nil)
	require.NoError(t, err)

	ch := monitor.Subscribe()
	monitor.Unsubscribe(ch)
	monitor.Unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, monitor.Run(ctx))
}

func TestIsDataFile(t *testing.T) {
	assert.True(t, isDataFile("a/b/cleaned_segmentation_data.csv"))
	assert.True(t, isDataFile("pca_components.npy"))
	assert.True(t, isDataFile("x.xlsx"))
	assert.False(t, isDataFile("app.log"))
}
