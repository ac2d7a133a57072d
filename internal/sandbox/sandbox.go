// Package sandbox executes generated transformation and chart scripts
// against a tabular value in isolation.
//
// The language is a small expression/statement surface over one named table
// variable: assignments, arithmetic and comparisons (broadcast over
// columns), row filtering with `table[mask]`, and a fixed set of table and
// chart builtins. Scripts see exactly the bindings the entry points seed —
// no filesystem, network or process access exists in the language at all —
// and every execution ends with the call that issued it.
package sandbox

import (
	"context"
	"time"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

// InputName is the binding a script reads its table through.
const InputName = "input"

// OutputName is the binding a script must leave its result in.
const OutputName = "output"

// Engine runs scripts under a step budget and a wall-clock timeout.
type Engine struct {
	// Timeout bounds one execution. Zero means rely on the caller's context.
	Timeout time.Duration
	// MaxSteps bounds evaluation work; zero picks the default budget.
	MaxSteps int
}

// New returns an engine with the default timeout.
func New(timeout time.Duration) *Engine {
	return &Engine{Timeout: timeout}
}

// RunMutation executes a transformation script against input. The script
// gets a mutable deep copy bound to "input" plus the table builtins, and
// must leave a well-formed table bound to "output".
func (e *Engine) RunMutation(ctx context.Context, script string, input *domain.Table) (*domain.Table, error) {
	env := map[string]Value{
		InputName: &TableVal{Table: input.Clone()},
	}
	out, err := e.execute(ctx, script, env, tableBuiltins(), nil)
	if err != nil {
		return nil, err
	}

	tv, ok := out.(*TableVal)
	if !ok || tv.Table == nil {
		return nil, domain.E(domain.KindScriptContract,
			"script must bind a valid table to %q", OutputName)
	}
	// Revalidate shape: builtins keep tables well-formed, but the contract
	// is checked at the boundary regardless.
	result, nerr := domain.NewTable(tv.Table.Columns, tv.Table.Rows)
	if nerr != nil {
		return nil, domain.Wrap(domain.KindScriptContract, nerr,
			"script produced a malformed table")
	}
	return result, nil
}

// RunChart executes a chart script against input. The script gets a
// read-only binding for "input" plus the table and chart builtins, and must
// leave a renderable figure bound to "output".
func (e *Engine) RunChart(ctx context.Context, script string, input *domain.Table) (*domain.ChartSpec, error) {
	env := map[string]Value{
		InputName: &TableVal{Table: input.Clone()},
	}
	builtins := tableBuiltins()
	for name, fn := range chartBuiltins() {
		builtins[name] = fn
	}
	readOnly := map[string]bool{InputName: true}

	out, err := e.execute(ctx, script, env, builtins, readOnly)
	if err != nil {
		return nil, err
	}

	fig, ok := out.(*FigureVal)
	if !ok || fig.Spec == nil {
		return nil, domain.E(domain.KindScriptContract,
			"script must bind a renderable figure to %q", OutputName)
	}
	return fig.Spec, nil
}

// execute parses and runs one script and returns whatever ended up bound to
// the output name (nil when nothing did).
func (e *Engine) execute(ctx context.Context, script string, env map[string]Value, builtins map[string]builtin, readOnly map[string]bool) (Value, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	stmts, err := parse(script)
	if err != nil {
		return nil, domain.Wrap(domain.KindScriptRuntime, err, "script does not parse").
			WithTrace(renderTrace(err, script))
	}

	maxSteps := e.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	ev := &evaluator{
		ctx:      ctx,
		env:      env,
		builtins: builtins,
		readOnly: readOnly,
		maxSteps: maxSteps,
	}

	if err := ev.run(stmts); err != nil {
		kind := domain.KindScriptRuntime
		if se, ok := err.(*scriptError); ok && se.contract {
			kind = domain.KindScriptContract
		}
		return nil, domain.Wrap(kind, err, "script execution failed").
			WithTrace(renderTrace(err, script))
	}

	return ev.env[OutputName], nil
}
