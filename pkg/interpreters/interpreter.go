// Package interpreters executes plans. Every statement kind has an
// interpreter which performs the statement's side effects and returns the
// stream of its result.
package interpreters

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/sessions"
)

var (
	// ErrAlreadyExecuted is returned when executing an interpreter twice.
	ErrAlreadyExecuted = errors.New("interpreter has already been executed")

	// ErrUnsupportedPlan is returned by Get for plans no interpreter handles.
	ErrUnsupportedPlan = errors.New("unsupported plan")
)

// Interpreter executes a single plan, once.
type Interpreter interface {
	// Name identifies the interpreter in logs and traces.
	Name() string

	// Execute runs the plan and returns the stream of its result. Statements
	// with side effects have completed them when Execute returns; their
	// stream holds no blocks. The input is the stream of an upstream
	// statement, when the plan consumes one, and may be nil otherwise.
	Execute(input datastream.Stream) (datastream.Stream, error)
}

// Constructor builds the interpreter of a plan.
type Constructor func(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error)

var (
	registryMu   sync.RWMutex
	constructors = make(map[planner.Kind]Constructor)
)

// Register makes the constructor available for plans of the given kind.
// Registering a kind twice panics.
func Register(kind planner.Kind, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := constructors[kind]; ok {
		panic(fmt.Sprintf("interpreter for %s registered twice", kind))
	}
	constructors[kind] = ctor
}

// Get returns the instrumented interpreter of the plan.
func Get(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	if plan == nil {
		return nil, fuseerrors.NewValidationError(fmt.Errorf("%w: nil plan", ErrUnsupportedPlan))
	}

	registryMu.RLock()
	ctor, ok := constructors[plan.Kind()]
	registryMu.RUnlock()
	if !ok {
		return nil, fuseerrors.NewValidationError(fmt.Errorf("%w `%s`", ErrUnsupportedPlan, plan.Kind())).
			WithDetail("plan", string(plan.Kind()))
	}

	i, err := ctor(ctx, plan)
	if err != nil {
		return nil, err
	}
	return newInstrumented(ctx, i), nil
}

// planAs asserts the concrete type of a plan handed to a constructor. A
// mismatch means a constructor was registered under the wrong kind.
func planAs[T planner.Plan](plan planner.Plan) (T, error) {
	p, ok := plan.(T)
	if !ok {
		var zero T
		return zero, fuseerrors.MustBugf("unexpected %T for plan kind %s", plan, plan.Kind())
	}
	return p, nil
}

type state int32

const (
	stateCreated state = iota
	stateExecuting
	stateCompleted
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateExecuting:
		return "executing"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// lifecycle moves an interpreter through created, executing and then
// completed or failed. Every interpreter embeds one.
type lifecycle struct {
	state atomic.Int32
}

// begin moves from created to executing.
func (l *lifecycle) begin() error {
	if !l.state.CompareAndSwap(int32(stateCreated), int32(stateExecuting)) {
		return ErrAlreadyExecuted
	}
	return nil
}

// finish records the outcome of the execution and returns its arguments.
func (l *lifecycle) finish(out datastream.Stream, err error) (datastream.Stream, error) {
	if err != nil {
		l.state.Store(int32(stateFailed))
		return nil, err
	}
	l.state.Store(int32(stateCompleted))
	return out, nil
}

func (l *lifecycle) current() state { return state(l.state.Load()) }
