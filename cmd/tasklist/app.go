package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/phrazzld/tasklist/internal/config"
	"github.com/phrazzld/tasklist/internal/domain"
	"github.com/phrazzld/tasklist/internal/events"
	"github.com/phrazzld/tasklist/internal/platform/backup"
	"github.com/phrazzld/tasklist/internal/platform/cachefile"
	"github.com/phrazzld/tasklist/internal/queue"
	"github.com/phrazzld/tasklist/internal/redact"
	"github.com/phrazzld/tasklist/internal/todolist"
)

// shutdownTimeout bounds the final flush of a session.
const shutdownTimeout = 30 * time.Second

// errUnsaved is returned when a session ends with changes that could not
// be saved. They stay in the sync cache and are saved by the next run.
var errUnsaved = errors.New("changes could not be saved; they are kept in the sync cache")

// application holds all the shared session dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	backend *backendHandle
	cache   *cachefile.Store
	history *backup.History

	emitter *events.InMemoryEventEmitter
	queue   *queue.ActionQueue
	list    *todolist.TaskList
	syncer  *todolist.Syncer
}

// newApplication creates a session with all dependencies initialized.
// Notices are written to notices, which may be nil.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, notices io.Writer) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.backend, err = openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	cachePath := cfg.Todo.CachePath
	if cachePath == "" {
		if cachePath, err = cachefile.DefaultPath(); err != nil {
			app.cleanup()
			return nil, err
		}
	}
	if app.cache, err = cachefile.New(cachePath, logger); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create sync cache: %w", err)
	}

	if cfg.Backup.Enabled {
		historyPath := cfg.Backup.Path
		if historyPath == "" {
			if historyPath, err = backup.DefaultPath(); err != nil {
				app.cleanup()
				return nil, err
			}
		}
		if app.history, err = backup.Open(ctx, historyPath, cfg.Backup.Retention, logger); err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to open backup history: %w", err)
		}
	}

	app.emitter = events.NewInMemoryEventEmitter(logger)
	if notices != nil {
		app.emitter.RegisterHandler(noticePrinter(notices))
	}

	app.queue = queue.NewActionQueue(logger)
	app.queue.SetErrorHandler(func(action *queue.Action, err error) {
		logger.Error("action failed",
			"action_id", action.ID.String(),
			"label", action.Label,
			"error", err)
	})

	var listOpts []todolist.Option
	if cfg.Todo.AddCreateDate {
		listOpts = append(listOpts, todolist.WithOnAdd(stampCreateDate))
	}
	app.list = todolist.NewTaskList(nil, logger, listOpts...)

	syncOpts := []todolist.SyncOption{
		todolist.WithCache(app.cache),
		todolist.WithEmitter(app.emitter),
	}
	if app.history != nil {
		syncOpts = append(syncOpts, todolist.WithBackup(app.history))
	}
	app.syncer, err = todolist.NewSyncer(app.list, app.backend.store, app.queue, todolist.SyncConfig{
		Path:          app.backend.path,
		DonePath:      cfg.Todo.DonePath,
		EOL:           cfg.Todo.LineEnding(),
		SaveDelay:     cfg.Todo.SaveDelay,
		KeepSelection: cfg.Todo.KeepSelection,
	}, logger, syncOpts...)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create syncer: %w", err)
	}

	return app, nil
}

// start runs the queue, restores the cached state and waits for the
// initial reload.
func (app *application) start(ctx context.Context) error {
	app.queue.Start()

	if err := app.syncer.Restore(ctx); err != nil {
		app.logger.Warn("failed to restore sync cache", "error", err)
	}
	if err := app.syncer.Reload("startup"); err != nil {
		return fmt.Errorf("failed to queue reload: %w", err)
	}
	return app.queue.Drain(ctx)
}

// shutdown saves pending changes, waits for queued actions and releases
// every resource. It reports errUnsaved when the save did not succeed.
func (app *application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.syncer.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := app.queue.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to drain action queue: %w", err))
	}
	app.syncer.Close()
	app.queue.Stop()

	if app.syncer.ChangesPending() {
		errs = append(errs, errUnsaved)
	}
	app.cleanup()
	return errors.Join(errs...)
}

// cleanup closes the stores opened by newApplication.
func (app *application) cleanup() {
	if app.history != nil {
		if err := app.history.Close(); err != nil {
			app.logger.Warn("failed to close backup history", "error", err)
		}
	}
	if app.backend != nil {
		if err := app.backend.Close(); err != nil {
			app.logger.Warn("failed to close backend", "error", err)
		}
	}
}

func stampCreateDate(t *domain.Task) *domain.Task {
	if t.CreateDate() == "" {
		t.SetCreateDate(domain.Today())
	}
	return t
}

// noticePrinter shows Notice events, the user-facing failure messages of
// the syncer, on w.
func noticePrinter(w io.Writer) events.EventHandler {
	return events.EventHandlerFunc(func(_ context.Context, event *events.Event) error {
		if event.Type != events.Notice {
			return nil
		}
		var payload events.NoticePayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		if payload.Error != "" {
			_, err := fmt.Fprintf(w, "%s: %s\n", payload.Message, redact.String(payload.Error))
			return err
		}
		_, err := fmt.Fprintln(w, payload.Message)
		return err
	})
}
