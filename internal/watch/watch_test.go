package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTenantForDerivesTopLevelDir(t *testing.T) {
	w := &Watcher{Root: "/data/tenants"}
	assert.Equal(t, "acme", w.tenantFor("/data/tenants/acme/guest.wasm"))
	assert.Equal(t, "acme", w.tenantFor("/data/tenants/acme/nested/guest.wasm"))
}

func TestTenantForRootItselfYieldsEmpty(t *testing.T) {
	w := &Watcher{Root: "/data/tenants"}
	assert.Equal(t, "", w.tenantFor("/data/tenants"))
}

func TestTenantForOutsideRootYieldsEmpty(t *testing.T) {
	w := &Watcher{Root: "/data/tenants"}
	assert.Equal(t, "", w.tenantFor("/elsewhere/file"))
}

type fakeReloader struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeReloader) Reload(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, tenantID)
	return nil
}

func (r *fakeReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestWatcherDebouncesRapidWritesIntoOneReload(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "acme"), 0o755))

	reloader := &fakeReloader{}
	w, err := New(root, 50*time.Millisecond, reloader, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	path := filepath.Join(root, "acme", "guest.wasm")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("v"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return reloader.count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
