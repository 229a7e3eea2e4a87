// Package library is the data-access layer for data items. A Library keeps
// an in-memory mirror of the items in one scope (owner, optional project,
// optional type) and patches it after every successful mutation.
//
// Concurrency model: a single goroutine owns the cache. Store calls run on
// the caller's goroutine and the resulting patch is handed to the loop, so
// concurrent mutations apply in completion order and no mutex is needed.
package library

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_table.go -package=mocks github.com/starford/datalib/internal/library Table

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/starford/datalib/internal/apperr"
	"github.com/starford/datalib/internal/models"
	"github.com/starford/datalib/internal/store"
)

// Table is the subset of the data table the Library needs.
// *store.DataRepo implements it.
type Table interface {
	Select(ctx context.Context, f store.Filter) ([]models.DataItem, error)
	Insert(ctx context.Context, userID string, in models.DataInsert) (*models.DataItem, error)
	Update(ctx context.Context, f store.Filter, u models.DataUpdate) (*models.DataItem, error)
	Delete(ctx context.Context, f store.Filter) error
}

// Fallback messages used when the store error carries none.
const (
	msgNotAuthenticated = "User not authenticated"
	msgCreateFailed     = "Failed to create data"
	msgUpdateFailed     = "Failed to update data"
	msgDeleteFailed     = "Failed to delete data"
	msgFetchFailed      = "Failed to fetch data"
	msgRefreshFailed    = "An error occurred"
)

// ErrClosed is returned by operations on a closed Library.
var ErrClosed = errors.New("library: closed")

// OpError is the failure result of a Library operation.
type OpError struct {
	Op      string
	Message string
	Err     error
}

func (e *OpError) Error() string { return e.Message }

func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, err error, fallback string) *OpError {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &OpError{Op: op, Message: msg, Err: err}
}

// Scope selects the items mirrored by a Library. Empty ProjectID and Type
// mean "any".
type Scope struct {
	OwnerID   string
	ProjectID string
	Type      models.DataType
}

func (s Scope) filter() store.Filter {
	f := store.Filter{}.Where(store.Eq("user_id", s.OwnerID))
	if s.ProjectID != "" {
		f = f.Where(store.Eq("project_id", s.ProjectID))
	}
	if s.Type != "" {
		f = f.Where(store.Eq("type", string(s.Type)))
	}
	return f.Order("created_at", false)
}

// ChangeKind names a cache change.
type ChangeKind string

// Cache change kinds.
const (
	ChangeFetched ChangeKind = "fetched"
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change describes a cache change delivered to subscribers.
type Change struct {
	Kind ChangeKind
	ID   string
	Len  int
}

type state struct {
	scope   Scope
	items   []models.DataItem
	loading bool
	errMsg  string
	// fetchSeq identifies the latest fetch; results of older fetches are
	// dropped.
	fetchSeq uint64
	subs     map[chan Change]struct{}
}

func (s *state) emit(kind ChangeKind, id string) {
	c := Change{Kind: kind, ID: id, Len: len(s.items)}
	for ch := range s.subs {
		select {
		case ch <- c:
		default:
			// Subscriber buffer full; skip rather than stall the loop.
		}
	}
}

type request struct {
	fn   func(*state)
	done chan struct{}
}

// Library mirrors the data items of one scope.
type Library struct {
	table  Table
	logger *slog.Logger

	reqCh   chan request
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Library.
type Option func(*options)

type options struct {
	logger *slog.Logger
	scope  Scope
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithScope sets the initial scope.
func WithScope(s Scope) Option {
	return func(o *options) { o.scope = s }
}

// New starts a Library over table. The cache is empty until Fetch.
func New(table Table, opts ...Option) *Library {
	o := options{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	l := &Library{
		table:   table,
		logger:  o.logger,
		reqCh:   make(chan request),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run(&state{scope: o.scope, items: []models.DataItem{}, subs: make(map[chan Change]struct{})})
	return l
}

func (l *Library) run(s *state) {
	defer close(l.stopped)
	for {
		select {
		case <-l.stopCh:
			for ch := range s.subs {
				close(ch)
			}
			return
		case req := <-l.reqCh:
			req.fn(s)
			close(req.done)
		}
	}
}

// do runs fn on the loop and waits for it. It reports false once the
// Library is closed.
func (l *Library) do(fn func(*state)) bool {
	if l.closed.Load() {
		return false
	}
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case l.reqCh <- req:
	case <-l.stopped:
		return false
	}
	<-req.done
	return true
}

// Close stops the loop and closes all subscriber channels.
func (l *Library) Close() {
	if l.closed.CompareAndSwap(false, true) {
		close(l.stopCh)
	}
	<-l.stopped
}

// Subscribe returns a channel receiving every cache change.
func (l *Library) Subscribe() <-chan Change {
	ch := make(chan Change, 32)
	if !l.do(func(s *state) { s.subs[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (l *Library) Unsubscribe(ch <-chan Change) {
	l.do(func(s *state) {
		for c := range s.subs {
			if c == ch {
				delete(s.subs, c)
				close(c)
				return
			}
		}
	})
}

// Items returns a copy of the cache.
func (l *Library) Items() []models.DataItem {
	out := []models.DataItem{}
	l.do(func(s *state) { out = append(out, s.items...) })
	return out
}

// Get returns the cached item with the given id.
func (l *Library) Get(id string) (models.DataItem, bool) {
	var (
		item  models.DataItem
		found bool
	)
	l.do(func(s *state) {
		for _, it := range s.items {
			if it.ID == id {
				item, found = it, true
				return
			}
		}
	})
	return item, found
}

// Loading reports whether a fetch is in flight.
func (l *Library) Loading() bool {
	var v bool
	l.do(func(s *state) { v = s.loading })
	return v
}

// Err returns the message of the last failed fetch, or "" after a
// successful one.
func (l *Library) Err() string {
	var v string
	l.do(func(s *state) { v = s.errMsg })
	return v
}

// Scope returns the current scope.
func (l *Library) Scope() Scope {
	var v Scope
	l.do(func(s *state) { v = s.scope })
	return v
}

// SetScope switches the Library to scope and fetches when it differs from
// the current one. The cache is cleared on a switch so items of the old
// scope never survive a failed fetch.
func (l *Library) SetScope(ctx context.Context, scope Scope) error {
	changed := false
	ok := l.do(func(s *state) {
		if s.scope == scope {
			return
		}
		s.scope = scope
		s.items = []models.DataItem{}
		s.errMsg = ""
		s.fetchSeq++
		changed = true
	})
	if !ok {
		return opError("fetch", ErrClosed, msgRefreshFailed)
	}
	if !changed {
		return nil
	}
	return l.Fetch(ctx)
}

// Fetch replaces the cache with the items of the current scope, newest
// first. Without an owner the cache becomes empty and no query is made. On
// failure the previous cache is kept and Err reports the message.
func (l *Library) Fetch(ctx context.Context) error {
	var (
		scope Scope
		seq   uint64
	)
	ok := l.do(func(s *state) {
		s.fetchSeq++
		seq = s.fetchSeq
		scope = s.scope
		s.loading = scope.OwnerID != ""
	})
	if !ok {
		return opError("fetch", ErrClosed, msgRefreshFailed)
	}

	if scope.OwnerID == "" {
		l.do(func(s *state) {
			if s.fetchSeq != seq {
				return
			}
			s.items = []models.DataItem{}
			s.errMsg = ""
			s.emit(ChangeFetched, "")
		})
		return nil
	}

	items, err := l.table.Select(ctx, scope.filter())
	var fail *OpError
	if err != nil {
		fail = opError("fetch", err, msgRefreshFailed)
	}
	l.do(func(s *state) {
		if s.fetchSeq != seq {
			return
		}
		s.loading = false
		if fail != nil {
			s.errMsg = fail.Message
			return
		}
		if items == nil {
			items = []models.DataItem{}
		}
		s.items = items
		s.errMsg = ""
		s.emit(ChangeFetched, "")
	})
	if fail != nil {
		l.logger.Warn("fetch data failed", slog.String("owner", scope.OwnerID), slog.String("error", err.Error()))
		return fail
	}
	return nil
}

// Refresh refetches the current scope.
func (l *Library) Refresh(ctx context.Context) error {
	return l.Fetch(ctx)
}

// Create inserts a new item for the current owner and prepends it to the
// cache. Without an owner it fails without contacting the store.
func (l *Library) Create(ctx context.Context, in models.DataInsert) (*models.DataItem, error) {
	owner, ok := l.owner()
	if !ok {
		return nil, opError("create", ErrClosed, msgCreateFailed)
	}
	if owner == "" {
		return nil, &OpError{Op: "create", Message: msgNotAuthenticated, Err: apperr.ErrNotAuthenticated}
	}

	item, err := l.table.Insert(ctx, owner, in)
	if err != nil {
		l.logger.Warn("create data failed", slog.String("owner", owner), slog.String("error", err.Error()))
		return nil, opError("create", err, msgCreateFailed)
	}
	created := *item
	l.do(func(s *state) {
		if s.scope.OwnerID != owner {
			return
		}
		items := make([]models.DataItem, 0, len(s.items)+1)
		items = append(items, created)
		for _, it := range s.items {
			if it.ID != created.ID {
				items = append(items, it)
			}
		}
		s.items = items
		s.emit(ChangeCreated, created.ID)
	})
	return item, nil
}

// Update applies u to the owner's item with the given id and replaces the
// first cache entry with that id. Without an owner it fails without
// contacting the store.
func (l *Library) Update(ctx context.Context, id string, u models.DataUpdate) (*models.DataItem, error) {
	owner, ok := l.owner()
	if !ok {
		return nil, opError("update", ErrClosed, msgUpdateFailed)
	}
	if owner == "" {
		return nil, &OpError{Op: "update", Message: msgNotAuthenticated, Err: apperr.ErrNotAuthenticated}
	}

	item, err := l.table.Update(ctx, l.idFilter(id, owner), u)
	if err != nil {
		l.logger.Warn("update data failed", slog.String("id", id), slog.String("error", err.Error()))
		return nil, opError("update", err, msgUpdateFailed)
	}
	updated := *item
	l.do(func(s *state) {
		for i := range s.items {
			if s.items[i].ID == id {
				items := append([]models.DataItem{}, s.items...)
				items[i] = updated
				s.items = items
				s.emit(ChangeUpdated, id)
				return
			}
		}
	})
	return item, nil
}

// Delete removes the item with the given id and drops it from the cache.
func (l *Library) Delete(ctx context.Context, id string) error {
	owner, ok := l.owner()
	if !ok {
		return opError("delete", ErrClosed, msgDeleteFailed)
	}
	if owner == "" {
		return &OpError{Op: "delete", Message: msgNotAuthenticated, Err: apperr.ErrNotAuthenticated}
	}

	if err := l.table.Delete(ctx, l.idFilter(id, owner)); err != nil {
		l.logger.Warn("delete data failed", slog.String("id", id), slog.String("error", err.Error()))
		return opError("delete", err, msgDeleteFailed)
	}
	l.do(func(s *state) {
		items := make([]models.DataItem, 0, len(s.items))
		for _, it := range s.items {
			if it.ID != id {
				items = append(items, it)
			}
		}
		if len(items) == len(s.items) {
			return
		}
		s.items = items
		s.emit(ChangeDeleted, id)
	})
	return nil
}

// ListByProject queries the owner's items of a project, newest first,
// optionally restricted to one type. The cache is not touched. Without an
// owner the result is empty.
func (l *Library) ListByProject(ctx context.Context, projectID string, typ *models.DataType) ([]models.DataItem, error) {
	owner, ok := l.owner()
	if !ok {
		return nil, opError("list", ErrClosed, msgFetchFailed)
	}

	if owner == "" {
		return []models.DataItem{}, nil
	}

	f := store.Filter{}.Where(store.Eq("project_id", projectID), store.Eq("user_id", owner))
	if typ != nil {
		f = f.Where(store.Eq("type", string(*typ)))
	}
	items, err := l.table.Select(ctx, f.Order("created_at", false))
	if err != nil {
		l.logger.Warn("list project data failed", slog.String("project", projectID), slog.String("error", err.Error()))
		return nil, opError("list", err, msgFetchFailed)
	}
	if items == nil {
		items = []models.DataItem{}
	}
	return items, nil
}

func (l *Library) owner() (string, bool) {
	var owner string
	ok := l.do(func(s *state) { owner = s.scope.OwnerID })
	return owner, ok
}

// idFilter matches one item of owner.
func (l *Library) idFilter(id, owner string) store.Filter {
	return store.Filter{}.Where(store.Eq("id", id), store.Eq("user_id", owner))
}
