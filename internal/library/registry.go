package library

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry hands out one Library per user. Libraries are created and
// fetched on first use.
type Registry struct {
	table  Table
	logger *slog.Logger

	mu    sync.Mutex
	libs  map[string]*Library
	group singleflight.Group
}

// NewRegistry creates a Registry over table.
func NewRegistry(table Table, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{table: table, logger: logger, libs: make(map[string]*Library)}
}

// For returns userID's Library, fetching it the first time. A failed first
// fetch is not cached so the next call retries. The first fetch is shared by
// concurrent callers and is not cancelled with ctx; a cancelled caller stops
// waiting without affecting the others.
func (r *Registry) For(ctx context.Context, userID string) (*Library, error) {
	r.mu.Lock()
	lib, ok := r.libs[userID]
	r.mu.Unlock()
	if ok {
		return lib, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(userID, func() (any, error) {
		r.mu.Lock()
		if lib, ok := r.libs[userID]; ok {
			r.mu.Unlock()
			return lib, nil
		}
		r.mu.Unlock()

		lib := New(r.table, WithLogger(r.logger.With(slog.String("user", userID))), WithScope(Scope{OwnerID: userID}))
		if err := lib.Fetch(fetchCtx); err != nil {
			lib.Close()
			return nil, err
		}
		r.mu.Lock()
		r.libs[userID] = lib
		r.mu.Unlock()
		return lib, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Library), nil
	}
}

// Len returns the number of live libraries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.libs)
}

// Close closes every Library.
func (r *Registry) Close() {
	r.mu.Lock()
	libs := r.libs
	r.libs = make(map[string]*Library)
	r.mu.Unlock()
	for _, lib := range libs {
		lib.Close()
	}
}
