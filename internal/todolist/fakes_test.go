package todolist

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasklist/internal/events"
	"github.com/phrazzld/tasklist/internal/platform/logger"
	"github.com/phrazzld/tasklist/internal/queue"
	"github.com/phrazzld/tasklist/internal/store"
)

// fakeBackend is an in-memory store.FileStore with call counters.
type fakeBackend struct {
	mu            sync.Mutex
	authenticated bool
	online        bool
	files         map[string][]string
	versions      map[string]int

	loadCalls    int
	saveCalls    int
	versionCalls int
	appendCalls  int

	loadErr    error
	saveErr    error
	versionErr error
	appendErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		authenticated: true,
		online:        true,
		files:         make(map[string][]string),
		versions:      make(map[string]int),
	}
}

func (f *fakeBackend) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *fakeBackend) IsOnline() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeBackend) DefaultPath() string { return "todo.txt" }

func (f *fakeBackend) LoadContents(_ context.Context, path string) (*store.RemoteContents, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	lines, ok := f.files[path]
	if !ok {
		return nil, store.ErrTodoFileNotFound
	}
	return &store.RemoteContents{RemoteID: f.versionLocked(path), Lines: slices.Clone(lines)}, nil
}

func (f *fakeBackend) SaveContents(_ context.Context, path string, lines []string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.files[path] = slices.Clone(lines)
	f.versions[path]++
	return f.versionLocked(path), nil
}

func (f *fakeBackend) AppendContents(_ context.Context, path string, lines []string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.appendErr != nil {
		return f.appendErr
	}
	f.files[path] = append(f.files[path], lines...)
	f.versions[path]++
	return nil
}

func (f *fakeBackend) RemoteVersion(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionCalls++
	if f.versionErr != nil {
		return "", f.versionErr
	}
	if _, ok := f.files[path]; !ok {
		return "", nil
	}
	return f.versionLocked(path), nil
}

func (f *fakeBackend) ListFiles(context.Context, string, bool) ([]store.FileEntry, error) {
	return nil, store.ErrNotImplemented
}

func (f *fakeBackend) versionLocked(path string) string {
	return fmt.Sprintf("v%d", f.versions[path])
}

// setRemote simulates an edit made by another client.
func (f *fakeBackend) setRemote(path string, lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = lines
	f.versions[path]++
}

func (f *fakeBackend) remote(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.files[path])
}

func (f *fakeBackend) counts() (load, save, version, appendN int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCalls, f.saveCalls, f.versionCalls, f.appendCalls
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// fakeCache is an in-memory store.CacheStore.
type fakeCache struct {
	mu    sync.Mutex
	state *store.CachedState
	saves int
}

func (c *fakeCache) LoadCache(context.Context) (*store.CachedState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil, store.ErrCacheNotFound
	}
	st := *c.state
	return &st, nil
}

func (c *fakeCache) SaveCache(_ context.Context, state *store.CachedState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := *state
	c.state = &st
	c.saves++
	return nil
}

func (c *fakeCache) current() store.CachedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return store.CachedState{}
	}
	return *c.state
}

// fakeBackup records every snapshot.
type fakeBackup struct {
	mu        sync.Mutex
	snapshots [][]string
}

func (b *fakeBackup) Backup(_ context.Context, _ string, lines []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, slices.Clone(lines))
	return nil
}

func (b *fakeBackup) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snapshots)
}

type harness struct {
	list     *TaskList
	syncer   *Syncer
	queue    *queue.ActionQueue
	backend  *fakeBackend
	cache    *fakeCache
	backup   *fakeBackup
	recorder *events.Recorder
	logs     *logger.TestLogBuffer
}

func newHarness(t *testing.T, cfg SyncConfig) *harness {
	t.Helper()

	logs, log := logger.NewTestLogger(t)
	h := &harness{
		backend:  newFakeBackend(),
		cache:    &fakeCache{},
		backup:   &fakeBackup{},
		recorder: &events.Recorder{},
		logs:     logs,
	}

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(h.recorder)

	h.queue = queue.NewActionQueue(log)
	h.queue.Start()

	h.list = NewTaskList(nil, log, WithToday(func() string { return "2024-05-10" }))

	if cfg.Path == "" {
		cfg.Path = "todo.txt"
	}
	if cfg.SaveDelay == 0 {
		cfg.SaveDelay = 20 * time.Millisecond
	}

	var err error
	h.syncer, err = NewSyncer(h.list, h.backend, h.queue, cfg, log,
		WithCache(h.cache),
		WithBackup(h.backup),
		WithEmitter(emitter),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		h.syncer.Close()
		h.queue.Stop()
	})
	return h
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.queue.Drain(ctx))
}

func (h *harness) waitForSaves(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, saves, _, _ := h.backend.counts()
		return saves >= n
	}, 5*time.Second, 5*time.Millisecond)
	h.drain(t)
}
