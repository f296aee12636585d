package dataset

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func treesWith(n int) string {
	features := make([]string, n)
	for i := range features {
		features[i] = fmt.Sprintf(`{"type": "Feature", "properties": {"Species": "Oak"},
 "geometry": {"type": "Point", "coordinates": [-123.0%d, 44.04]}}`, i)
	}
	return `{"type": "FeatureCollection", "features": [` + strings.Join(features, ",") + `]}`
}

func startWatcher(t *testing.T, dir string, debounce time.Duration) <-chan int {
	t.Helper()
	loads := make(chan int, 32)
	w := NewWatcher(dir, testFiles, zaptest.NewLogger(t), func(ds *Dataset) {
		loads <- len(ds.Trees.Features)
	})
	w.debounce = debounce

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return loads
}

// settle waits out pending reloads and drops them.
func settle(loads <-chan int, wait time.Duration) {
	for {
		select {
		case <-loads:
		case <-time.After(wait):
			return
		}
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "trees.geojson", treesWith(2))
	loads := startWatcher(t, dir, 20*time.Millisecond)

	// rewrite until the watch is in place and a reload comes through
	require.Eventually(t, func() bool {
		writeFixture(t, dir, "trees.geojson", treesWith(3))
		select {
		case n := <-loads:
			return n == 3
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, time.Millisecond)
	settle(loads, 200*time.Millisecond)

	writeFixture(t, dir, "grid.geojson", gridJSON)
	select {
	case n := <-loads:
		assert.Equal(t, 3, n, "grid changes reload the whole dataset")
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after grid change")
	}
}

func TestWatcher_SkipsFailedAndUnrelated(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "trees.geojson", treesWith(1))
	loads := startWatcher(t, dir, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		writeFixture(t, dir, "trees.geojson", treesWith(2))
		select {
		case <-loads:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, time.Millisecond)
	settle(loads, 200*time.Millisecond)

	writeFixture(t, dir, "trees.geojson", `{"type": "FeatureCollection", "features": [`)
	writeFixture(t, dir, "notes.txt", "not a dataset file")
	select {
	case n := <-loads:
		t.Fatalf("unexpected reload with %d trees", n)
	case <-time.After(300 * time.Millisecond):
	}

	writeFixture(t, dir, "trees.geojson", treesWith(4))
	select {
	case n := <-loads:
		assert.Equal(t, 4, n)
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after the file was fixed")
	}
}

func TestWatcher_Debounce(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "trees.geojson", treesWith(1))
	loads := startWatcher(t, dir, 150*time.Millisecond)

	require.Eventually(t, func() bool {
		writeFixture(t, dir, "trees.geojson", treesWith(1))
		select {
		case <-loads:
			return true
		case <-time.After(200 * time.Millisecond):
			return false
		}
	}, 5*time.Second, time.Millisecond)
	settle(loads, 400*time.Millisecond)

	for n := 2; n <= 6; n++ {
		writeFixture(t, dir, "trees.geojson", treesWith(n))
	}

	select {
	case n := <-loads:
		assert.Equal(t, 6, n, "a burst of writes loads the final file once")
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after burst")
	}
	select {
	case n := <-loads:
		t.Fatalf("burst reloaded more than once (%d trees)", n)
	case <-time.After(400 * time.Millisecond):
	}
}
