package todolist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/phrazzld/tasklist/internal/domain"
	"github.com/phrazzld/tasklist/internal/events"
	"github.com/phrazzld/tasklist/internal/queue"
	"github.com/phrazzld/tasklist/internal/store"
)

// DefaultSaveDelay is the coalescing window between the last local edit and
// the save it triggers.
const DefaultSaveDelay = 3 * time.Second

// Messages carried by Notice events.
const (
	NoticeLoadFailed    = "Loading of todo file failed"
	NoticeSaveFailed    = "Saving of todo file failed"
	NoticeArchiveFailed = "Archiving of completed tasks failed"
)

// ErrNoDoneFile is returned by Archive when no done file is configured.
var ErrNoDoneFile = errors.New("no done file configured")

// State is the sync state of a Syncer.
type State int

// Sync states.
const (
	StateIdle State = iota
	StateLoading
	StateSaveScheduled
	StateSaving
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSaveScheduled:
		return "save_scheduled"
	case StateSaving:
		return "saving"
	default:
		return "idle"
	}
}

// SyncConfig holds the per-file sync settings.
type SyncConfig struct {
	// Path is the todo file on the backend.
	Path string

	// DonePath receives archived tasks. Empty disables Archive.
	DonePath string

	// EOL terminates saved lines. Empty means "\n".
	EOL string

	// SaveDelay is the debounce window. Zero means DefaultSaveDelay.
	SaveDelay time.Duration

	// KeepSelection keeps the selection across list changes.
	KeepSelection bool
}

// SyncOption configures optional collaborators of a Syncer.
type SyncOption func(*Syncer)

// WithCache persists sync state between runs.
func WithCache(cache store.CacheStore) SyncOption {
	return func(s *Syncer) { s.cache = cache }
}

// WithBackup records a snapshot after loads and local edits.
func WithBackup(backup store.Backupper) SyncOption {
	return func(s *Syncer) { s.backup = backup }
}

// WithEmitter publishes notifications.
func WithEmitter(emitter events.EventEmitter) SyncOption {
	return func(s *Syncer) { s.emitter = emitter }
}

// Syncer reconciles a TaskList with a FileStore. Loads, saves, appends and
// backups run as actions on the queue, so they execute one at a time in
// the order they were requested. Local edits are saved after a debounce
// window; a reload while edits are unsaved turns into a save.
type Syncer struct {
	list    *TaskList
	backend store.FileStore
	queue   *queue.ActionQueue
	cache   store.CacheStore
	backup  store.Backupper
	emitter events.EventEmitter
	cfg     SyncConfig
	logger  *slog.Logger

	mu               sync.Mutex
	running          State
	lastSeenRemoteID string
	cachedContents   *string
	changesPending   bool

	// generation invalidates armed timers; only the timer armed with the
	// current generation may enqueue a save.
	generation uint64
	timer      *time.Timer
}

// NewSyncer wires a Syncer to list and registers it as the list's change
// listener.
func NewSyncer(
	list *TaskList,
	backend store.FileStore,
	q *queue.ActionQueue,
	cfg SyncConfig,
	logger *slog.Logger,
	opts ...SyncOption,
) (*Syncer, error) {
	if list == nil {
		return nil, errors.New("task list cannot be nil")
	}
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if q == nil {
		return nil, errors.New("action queue cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Path == "" {
		cfg.Path = backend.DefaultPath()
	}
	if cfg.EOL == "" {
		cfg.EOL = store.EOLUnix
	}
	if cfg.SaveDelay <= 0 {
		cfg.SaveDelay = DefaultSaveDelay
	}

	s := &Syncer{
		list:    list,
		backend: backend,
		queue:   q,
		cfg:     cfg,
		logger:  logger.With("component", "syncer", "path", cfg.Path),
	}
	for _, opt := range opts {
		opt(s)
	}

	list.SetChangeListener(func(reason string) {
		s.NotifyChanged(reason, true)
	})
	list.Selection().SetChangeListener(func(count int) {
		s.emit(context.Background(), events.SelectionChanged, events.SelectionPayload{Count: count})
	})
	return s, nil
}

// Path returns the todo file this Syncer manages.
func (s *Syncer) Path() string {
	return s.cfg.Path
}

// State returns the current sync state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Syncer) stateLocked() State {
	if s.running != StateIdle {
		return s.running
	}
	if s.timer != nil {
		return StateSaveScheduled
	}
	return StateIdle
}

// ChangesPending reports whether local edits have not been saved yet.
func (s *Syncer) ChangesPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changesPending
}

// LastSeenRemoteID returns the version token of the last load or save.
func (s *Syncer) LastSeenRemoteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeenRemoteID
}

// Restore primes the list from the persisted cache, including an unsaved
// state left by a previous run. A missing cache is not an error.
func (s *Syncer) Restore(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.LoadCache(ctx)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to load sync cache: %w", err)
	}
	if cached.Path != s.cfg.Path {
		s.logger.Info("ignoring cache of another todo file", "cached_path", cached.Path)
		return nil
	}

	s.list.Replace(s.parseLines(store.SplitLines(cached.Contents)))

	s.mu.Lock()
	contents := cached.Contents
	s.cachedContents = &contents
	s.lastSeenRemoteID = cached.LastSeenRemoteID
	s.changesPending = cached.ChangesPending
	s.mu.Unlock()

	s.logger.Debug("restored task list from cache",
		"size", s.list.Size(),
		"changes_pending", cached.ChangesPending)
	if cached.ChangesPending {
		s.emit(ctx, events.PendingStateChanged, events.PendingStatePayload{ChangesPending: true})
	}
	s.NotifyChanged("restore", false)
	return nil
}

// Reload refreshes the list from the backend. It does nothing while the
// backend is unauthenticated or offline, and saves instead when local
// edits are pending.
func (s *Syncer) Reload(reason string) error {
	if !s.backend.IsAuthenticated() || !s.backend.IsOnline() {
		s.logger.Debug("reload skipped, backend unavailable", "reason", reason)
		return nil
	}

	if s.ChangesPending() {
		s.logger.Info("local changes pending, saving instead of reloading", "reason", reason)
		s.ScheduleSave()
		return nil
	}

	return s.queue.Enqueue("reload", func(ctx context.Context) error {
		return s.load(ctx, reason)
	})
}

// RemoteChanged is the reload trigger for backend change notifications.
func (s *Syncer) RemoteChanged() {
	if err := s.Reload("remote file changed"); err != nil {
		s.logger.Warn("failed to queue reload", "error", err)
	}
}

func (s *Syncer) load(ctx context.Context, reason string) error {
	s.setRunning(StateLoading)
	defer s.setRunning(StateIdle)

	s.emit(ctx, events.SyncStarted, events.SyncPayload{Action: "load"})

	// any list mutation after this point wins over the loaded contents
	rev := s.list.Revision()

	s.mu.Lock()
	lastSeen := s.lastSeenRemoteID
	haveCache := s.cachedContents != nil
	s.mu.Unlock()

	needSync := true
	remote, err := s.backend.RemoteVersion(ctx, s.cfg.Path)
	switch {
	case err != nil:
		s.logger.Warn("remote version check failed", "error", err)
		needSync = false
	case remote != "" && remote == lastSeen:
		needSync = false
	}

	if haveCache && !needSync {
		s.logger.Debug("remote unchanged, keeping task list", "reason", reason, "remote_id", remote)
		s.emit(ctx, events.SyncFinished, events.SyncPayload{Action: "load"})
		return nil
	}

	contents, err := s.backend.LoadContents(ctx, s.cfg.Path)
	if err != nil && !store.IsNotFoundError(err) {
		s.notice(ctx, NoticeLoadFailed, err)
		s.emit(ctx, events.SyncFinished, events.SyncPayload{Action: "load", Error: err.Error()})
		return fmt.Errorf("load %s: %w", s.cfg.Path, err)
	}
	if err != nil {
		s.logger.Info("todo file does not exist yet, starting empty")
		contents = &store.RemoteContents{}
	}

	if s.ChangesPending() || !s.list.ReplaceIfUnchanged(rev, s.parseLines(contents.Lines)) {
		// An edit arrived while loading; local wins.
		s.logger.Info("discarding loaded contents, local changes pending")
		s.emit(ctx, events.SyncFinished, events.SyncPayload{Action: "load"})
		return nil
	}

	remoteID := contents.RemoteID
	if remoteID == "" {
		remoteID = remote
	}
	joined := strings.Join(contents.Lines, "\n")

	s.mu.Lock()
	s.cachedContents = &joined
	s.lastSeenRemoteID = remoteID
	state := s.cachedStateLocked()
	s.mu.Unlock()

	s.persistCache(ctx, state)
	s.runBackup(ctx, contents.Lines)
	s.logger.Info("task list loaded", "reason", reason, "size", s.list.Size(), "remote_id", remoteID)

	s.NotifyChanged("reload", false)
	s.emit(ctx, events.SyncFinished, events.SyncPayload{Action: "load"})
	return nil
}

func (s *Syncer) parseLines(lines []string) []*domain.Task {
	tasks := make([]*domain.Task, 0, len(lines))
	for i, line := range lines {
		t, err := domain.ParseTask(line)
		if err != nil {
			s.logger.Warn("skipping unparseable line",
				"line", i+1,
				"error", fmt.Errorf("%w: %w", store.ErrParseFailure, err))
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// NotifyChanged announces a changed list. With save, the change is a local
// edit and a save is scheduled. Unless KeepSelection is set, the selection
// is cleared.
func (s *Syncer) NotifyChanged(reason string, save bool) {
	if save {
		s.ScheduleSave()
	}
	if !s.cfg.KeepSelection {
		s.list.Selection().Clear()
	}
	s.emit(context.Background(), events.ListChanged, events.ListChangedPayload{
		Reason: reason,
		Size:   s.list.Size(),
	})
}

// ScheduleSave records the current contents as unsaved and (re)arms the
// debounce timer. Only the last call within the window leads to a save.
func (s *Syncer) ScheduleSave() {
	lines := s.list.Lines()
	joined := strings.Join(lines, "\n")

	s.mu.Lock()
	s.cachedContents = &joined
	wasPending := s.changesPending
	s.changesPending = true
	s.generation++
	gen := s.generation
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.SaveDelay, func() { s.fire(gen) })
	state := s.cachedStateLocked()
	s.mu.Unlock()

	s.persistCache(context.Background(), state)
	if !wasPending {
		s.emit(context.Background(), events.PendingStateChanged, events.PendingStatePayload{ChangesPending: true})
	}

	if s.backup != nil {
		if err := s.queue.Enqueue("backup", func(ctx context.Context) error {
			s.runBackup(ctx, lines)
			return nil
		}); err != nil {
			s.logger.Warn("failed to queue backup", "error", err)
		}
	}
}

// fire runs when a debounce timer expires.
func (s *Syncer) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.enqueueSave()
}

// Flush cancels the debounce window and queues the save now. It does
// nothing when there is nothing to save.
func (s *Syncer) Flush() error {
	s.mu.Lock()
	pending := s.changesPending
	armed := s.timer != nil
	if armed {
		s.timer.Stop()
		s.timer = nil
		s.generation++
	}
	s.mu.Unlock()

	if !pending && !armed {
		return nil
	}
	return s.enqueueSave()
}

// Close stops the debounce timer without saving.
func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
}

func (s *Syncer) enqueueSave() error {
	if err := s.queue.Enqueue("save", s.save); err != nil {
		s.logger.Error("failed to queue save", "error", err)
		return err
	}
	return nil
}

func (s *Syncer) save(ctx context.Context) error {
	if !s.backend.IsAuthenticated() || !s.backend.IsOnline() {
		s.logger.Info("save skipped, backend unavailable; changes stay pending")
		return nil
	}

	s.setRunning(StateSaving)
	defer s.setRunning(StateIdle)

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	lines := s.list.Lines()
	s.emit(ctx, events.SyncStarted, events.SyncPayload{Action: "save"})

	version, err := s.backend.SaveContents(ctx, s.cfg.Path, lines, s.cfg.EOL)
	if err != nil {
		s.mu.Lock()
		s.changesPending = true
		state := s.cachedStateLocked()
		s.mu.Unlock()

		s.persistCache(ctx, state)
		s.notice(ctx, NoticeSaveFailed, err)
		s.emit(ctx, events.SyncFinished, events.SyncPayload{Action: "save", Error: err.Error()})
		return fmt.Errorf("save %s: %w", s.cfg.Path, err)
	}

	joined := strings.Join(lines, "\n")
	s.mu.Lock()
	if version != "" {
		s.lastSeenRemoteID = version
	}
	// A newer edit re-armed the timer while saving; it stays pending.
	cleared := s.generation == gen && s.changesPending
	if s.generation == gen {
		s.changesPending = false
		s.cachedContents = &joined
	}
	state := s.cachedStateLocked()
	s.mu.Unlock()

	s.persistCache(ctx, state)
	s.logger.Info("task list saved", "size", len(lines), "remote_id", version)
	if cleared {
		s.emit(ctx, events.PendingStateChanged, events.PendingStatePayload{ChangesPending: false})
	}
	s.emit(ctx, events.SyncFinished, events.SyncPayload{Action: "save"})
	return nil
}

// Archive appends tasks to the done file and then removes them from the
// list, which schedules a save. The tasks stay when the append fails.
func (s *Syncer) Archive(tasks []*domain.Task) error {
	if s.cfg.DonePath == "" {
		return ErrNoDoneFile
	}
	if len(tasks) == 0 {
		return nil
	}

	lines := lo.Map(s.list.Describe(tasks), func(e ViewEntry, _ int) string { return e.Line })

	return s.queue.Enqueue("archive", func(ctx context.Context) error {
		s.emit(ctx, events.SyncStarted, events.SyncPayload{Action: "archive"})
		if err := s.backend.AppendContents(ctx, s.cfg.DonePath, lines, s.cfg.EOL); err != nil {
			s.notice(ctx, NoticeArchiveFailed, err)
			s.emit(ctx, events.SyncFinished, events.SyncPayload{Action: "archive", Error: err.Error()})
			return fmt.Errorf("append %s: %w", s.cfg.DonePath, err)
		}
		s.list.RemoveAll(tasks)
		s.logger.Info("archived tasks", "count", len(tasks), "done_path", s.cfg.DonePath)
		s.emit(ctx, events.SyncFinished, events.SyncPayload{Action: "archive"})
		return nil
	})
}

func (s *Syncer) setRunning(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = state
}

func (s *Syncer) cachedStateLocked() store.CachedState {
	st := store.CachedState{
		Path:             s.cfg.Path,
		LastSeenRemoteID: s.lastSeenRemoteID,
		ChangesPending:   s.changesPending,
		SavedAt:          time.Now().UTC(),
	}
	if s.cachedContents != nil {
		st.Contents = *s.cachedContents
	}
	return st
}

func (s *Syncer) persistCache(ctx context.Context, state store.CachedState) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveCache(ctx, &state); err != nil {
		s.logger.Warn("failed to persist sync cache", "error", err)
	}
}

func (s *Syncer) runBackup(ctx context.Context, lines []string) {
	if s.backup == nil {
		return
	}
	if err := s.backup.Backup(ctx, s.cfg.Path, lines); err != nil {
		s.logger.Warn("backup failed", "error", err)
	}
}

func (s *Syncer) notice(ctx context.Context, message string, err error) {
	payload := events.NoticePayload{Message: message}
	if err != nil {
		payload.Error = err.Error()
	}
	s.emit(ctx, events.Notice, payload)
}

func (s *Syncer) emit(ctx context.Context, eventType events.EventType, payload any) {
	events.Emit(ctx, s.emitter, s.logger, eventType, payload)
}
