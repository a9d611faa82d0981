// Package logsync keeps the local log store and the remote collection in step, falling
// back to local storage whenever the remote call fails.
package logsync

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"example.com/fitlog/internal/domain"
)

// Remote is the hosted collection.
type Remote interface {
	List(ctx context.Context) ([]domain.ActivityLog, error)
	Insert(ctx context.Context, entry domain.ActivityLog) (domain.ActivityLog, error)
	DeleteByTimestamp(ctx context.Context, timestamp int64) error
	DeleteAll(ctx context.Context) error
}

// Local is the on-device store of record.
type Local interface {
	Load(ctx context.Context) ([]domain.ActivityLog, error)
	Save(ctx context.Context, logs []domain.ActivityLog) error
	Add(ctx context.Context, entry domain.ActivityLog) ([]domain.ActivityLog, error)
	Delete(ctx context.Context, entry domain.ActivityLog) ([]domain.ActivityLog, error)
	Clear(ctx context.Context) ([]domain.ActivityLog, error)
}

// Result carries the collection after an operation and whether the remote accepted it.
// Version increases with every completed operation, so a caller holding two results can
// tell which one reflects the later state.
type Result struct {
	Logs    []domain.ActivityLog
	Synced  bool
	Version uint64
}

// Option configures optional behaviour for the Repository.
type Option func(*Repository)

// WithLogger overrides the logger used to report fallbacks.
func WithLogger(logger *log.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// Repository tries the remote first and falls back to the local store exactly once,
// without retrying. A nil remote means offline mode. Operations run one at a time from
// the remote call through the local write.
type Repository struct {
	remote Remote
	local  Local
	logger *log.Logger

	mu      sync.Mutex
	version uint64
}

// NewRepository constructs a Repository. remote may be nil.
func NewRepository(remote Remote, local Local, opts ...Option) *Repository {
	r := &Repository{
		remote: remote,
		local:  local,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "sync"}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads the remote collection and refreshes the local cache with it. On remote
// failure the local collection is returned.
func (r *Repository) Load(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.remote != nil {
		logs, err := r.remote.List(ctx)
		if err == nil {
			recordRemote(opLoad, nil)
			if err := r.local.Save(ctx, logs); err != nil {
				r.logger.Warn("refresh local cache failed", "err", err)
			}
			return r.completed(logs, true), nil
		}
		r.fallback(opLoad, err)
	}

	logs, err := r.local.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load logs: %w", err)
	}
	return r.completed(logs, false), nil
}

// Add inserts entry remotely, then records it locally regardless of the remote outcome.
func (r *Repository) Add(ctx context.Context, entry domain.ActivityLog) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	synced := false
	if r.remote != nil {
		_, err := r.remote.Insert(ctx, entry)
		if err == nil {
			recordRemote(opAdd, nil)
			synced = true
		} else {
			r.fallback(opAdd, err)
		}
	}

	logs, err := r.local.Add(ctx, entry)
	if err != nil {
		return Result{}, fmt.Errorf("add log: %w", err)
	}
	return r.completed(logs, synced), nil
}

// Delete removes entry by timestamp remotely, then locally.
func (r *Repository) Delete(ctx context.Context, entry domain.ActivityLog) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	synced := false
	if r.remote != nil {
		err := r.remote.DeleteByTimestamp(ctx, entry.Timestamp)
		if err == nil {
			recordRemote(opDelete, nil)
			synced = true
		} else {
			r.fallback(opDelete, err)
		}
	}

	logs, err := r.local.Delete(ctx, entry)
	if err != nil {
		return Result{}, fmt.Errorf("delete log: %w", err)
	}
	return r.completed(logs, synced), nil
}

// Clear removes every log remotely, then locally.
func (r *Repository) Clear(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	synced := false
	if r.remote != nil {
		err := r.remote.DeleteAll(ctx)
		if err == nil {
			recordRemote(opClear, nil)
			synced = true
		} else {
			r.fallback(opClear, err)
		}
	}

	logs, err := r.local.Clear(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("clear logs: %w", err)
	}
	return r.completed(logs, synced), nil
}

func (r *Repository) completed(logs []domain.ActivityLog, synced bool) Result {
	r.version++
	return Result{Logs: logs, Synced: synced, Version: r.version}
}

func (r *Repository) fallback(op string, err error) {
	recordRemote(op, err)
	r.logger.Warn("remote unavailable, using local store", "op", op, "err", err)
}
