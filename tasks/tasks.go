// Package tasks runs registered computations at most once per scope. A
// scope typically spans one HTTP request. When several handlers or
// nested tasks depend on the same task, it executes a single time
// within the scope and every dependent shares the outcome.
package tasks

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
)

/////////////////////////////////////////////////////////////////////
/////// REGISTRY
/////////////////////////////////////////////////////////////////////

// A Registry issues tasks and scopes. Its key namespaces the request
// context storage used by Middleware, so independent registries can
// coexist on one request.
type Registry struct {
	key string
}

func NewRegistry(key string) *Registry {
	return &Registry{key: key}
}

/////////////////////////////////////////////////////////////////////
/////// TASKS
/////////////////////////////////////////////////////////////////////

// None is the input type for tasks that take no input.
type None struct{}

type anyTask interface {
	registryOf() *Registry
}

type taskFunc[I any, O any] = func(s *Scope, input I) (O, error)

// A Task is a registered computation. Tasks are identities, not
// invocations. Each scope memoizes results per task.
type Task[I any, O any] struct {
	registry *Registry
	fn       taskFunc[I, O]
}

func (t *Task[I, O]) registryOf() *Registry { return t.registry }

func Register[I any, O any](r *Registry, fn taskFunc[I, O]) *Task[I, O] {
	return &Task[I, O]{registry: r, fn: fn}
}

/////////////////////////////////////////////////////////////////////
/////// SCOPE
/////////////////////////////////////////////////////////////////////

type result struct {
	once sync.Once
	data any
	err  error
}

// A Scope memoizes task results. Each (scope, task) pair executes at
// most once. The first execution's outcome, value or error, is fixed
// for the life of the scope.
type Scope struct {
	mu       sync.Mutex
	registry *Registry
	results  map[anyTask]*result

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScope returns a fresh Scope whose context descends from parent.
// Task execution stops when the context is done.
func (r *Registry) NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{
		registry: r,
		results:  make(map[anyTask]*result),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Context returns the scope's context. Task functions pass it to
// downstream calls so cancellation reaches them too.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Cancel cancels the scope's context. Tasks already memoized keep
// their results.
func (s *Scope) Cancel() {
	s.cancel()
}

func (s *Scope) resultFor(task anyTask) *result {
	if task.registryOf() != s.registry {
		panic("tasks: task and scope come from different registries")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.results[task]; ok {
		return r
	}
	r := &result{}
	s.results[task] = r
	return r
}

/////////////////////////////////////////////////////////////////////
/////// EXECUTION
/////////////////////////////////////////////////////////////////////

// runOnce executes fn exactly once into r, respecting the scope's
// context. A scope already done fails fast without invoking fn. A
// cancellation mid-flight resolves the result to the context error.
func (s *Scope) runOnce(r *result, fn func() (any, error)) {
	r.once.Do(func() {
		if err := s.ctx.Err(); err != nil {
			r.err = err
			return
		}

		type outcome struct {
			data any
			err  error
		}
		resultChan := make(chan outcome, 1)

		go func() {
			data, err := fn()
			resultChan <- outcome{data: data, err: err}
		}()

		select {
		case <-s.ctx.Done():
			r.err = s.ctx.Err()
		case res := <-resultChan:
			r.data = res.data
			r.err = res.err
		}
	})
}

// Get returns the task's result within scope s, executing the task if
// this is its first use in s. Memoization keys on task identity: the
// first caller's input wins, and later Gets with other inputs return
// the memoized result. Errors memoize the same way values do. A fresh
// scope starts clean.
//
// Get panics if the task and scope come from different registries.
func (t *Task[I, O]) Get(s *Scope, input I) (O, error) {
	r := s.resultFor(t)
	s.runOnce(r, func() (any, error) {
		return t.fn(s, input)
	})

	if r.err != nil {
		var zero O
		return zero, r.err
	}
	if r.data == nil {
		var zero O
		return zero, nil
	}
	return r.data.(O), nil
}

/////////////////////////////////////////////////////////////////////
/////// BIND & PRELOAD
/////////////////////////////////////////////////////////////////////

// Bound is a task tied to an input, ready for Preload.
type Bound interface {
	run(s *Scope) error
}

type BoundTask[I any, O any] struct {
	task  *Task[I, O]
	input I
	dst   *O
}

// Bind ties task to input so heterogeneous tasks can travel in one
// Preload call.
func Bind[I any, O any](task *Task[I, O], input I) *BoundTask[I, O] {
	return &BoundTask[I, O]{task: task, input: input}
}

// AssignTo stores the task's value through dst when Preload succeeds.
func (b *BoundTask[I, O]) AssignTo(dst *O) *BoundTask[I, O] {
	b.dst = dst
	return b
}

func (b *BoundTask[I, O]) run(s *Scope) error {
	data, err := b.task.Get(s, b.input)
	if err != nil {
		return err
	}
	if b.dst != nil {
		*b.dst = data
	}
	return nil
}

// Preload executes the bound tasks with maximum parallelism and waits
// for all of them. It returns the first error encountered. Results,
// including errors, are memoized in the scope either way, so later
// Gets are cheap.
func (s *Scope) Preload(bound ...Bound) error {
	if len(bound) == 0 {
		return nil
	}

	// Bypass errgroup for a single task.
	if len(bound) == 1 {
		return bound[0].run(s)
	}

	g, _ := errgroup.WithContext(s.ctx)

	for _, b := range bound {
		g.Go(func() error {
			return b.run(s)
		})
	}

	return g.Wait()
}

/////////////////////////////////////////////////////////////////////
/////// HTTP MIDDLEWARE
/////////////////////////////////////////////////////////////////////

type scopeContextKey string

var scopeKeyPrefix scopeContextKey = "_tasks_scope_"

func (r *Registry) contextKey() scopeContextKey {
	return scopeKeyPrefix + scopeContextKey(r.key)
}

// ScopeFromRequest returns the Scope attached to req by Middleware, or
// nil if there is none.
func (r *Registry) ScopeFromRequest(req *http.Request) *Scope {
	s, ok := req.Context().Value(r.contextKey()).(*Scope)
	if !ok {
		return nil
	}
	return s
}

func (r *Registry) MustScopeFromRequest(req *http.Request) *Scope {
	s := r.ScopeFromRequest(req)
	if s == nil {
		panic("tasks: no scope attached to request")
	}
	return s
}

// RequestWithScope returns a shallow copy of req carrying a new Scope,
// or nil if req already carries one for this registry.
func (r *Registry) RequestWithScope(req *http.Request) *http.Request {
	if r.ScopeFromRequest(req) != nil {
		return nil
	}
	s := r.NewScope(req.Context())
	return req.WithContext(context.WithValue(req.Context(), r.contextKey(), s))
}

// Middleware attaches one Scope per request, so every handler and
// nested task in the request shares memoized results.
func (r *Registry) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			newReq := r.RequestWithScope(req)
			if newReq == nil {
				next.ServeHTTP(w, req)
				return
			}
			next.ServeHTTP(w, newReq)
		})
	}
}
