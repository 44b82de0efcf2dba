package z3

/*
#include <z3.h>
*/
import "C"

import (
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/skolem"
)

// Ensure solver implements interface.
var _ skolem.Solver = (*Solver)(nil)

// Solver represents a solver that uses an embedded Z3 solver.
type Solver struct {
	builder *Builder
	stats   Stats
}

// NewSolver returns a new instance of Solver with default options.
func NewSolver() *Solver {
	return NewSolverWithConfig(skolem.DefaultConfig())
}

// NewSolverWithConfig returns a new instance of Solver configured by config.
func NewSolverWithConfig(config skolem.Config) *Solver {
	return &Solver{
		builder: NewBuilderWithConfig(config),
	}
}

// Builder returns the expression builder backing the solver.
func (s *Solver) Builder() *Builder {
	return s.builder
}

// Close releases all cached handles and deletes the underlying Z3 context.
func (s *Solver) Close() error {
	return s.builder.Close()
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	return s.stats
}

// Solve translates and asserts constraints, then checks them for
// satisfiability. If satisfiable and arrays are given, concrete values for
// the initial contents of each array are extracted from the model.
func (s *Solver) Solve(constraints []skolem.Expr, arrays []*skolem.Array) (satisfiable bool, values [][]byte, err error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
	}()

	b := s.builder
	solver := C.Z3_mk_solver(b.ctx)
	C.Z3_solver_inc_ref(b.ctx, solver)
	defer C.Z3_solver_dec_ref(b.ctx, solver)

	// Assert constraints.
	for _, constraint := range constraints {
		ast, width := b.Construct(constraint)
		assert(width == skolem.WidthBool, "constraint must be boolean: width=%d", width)
		C.Z3_solver_assert(b.ctx, solver, ast.raw)
		ast.Release()
	}

	// Check equations with the solver.
	// Exit immediately if unsatisfiable or the solver gave up.
	ret := C.Z3_solver_check(b.ctx, solver)
	if ret == C.Z3_L_FALSE {
		return false, nil, nil
	} else if ret == C.Z3_L_UNDEF {
		reason := C.GoString(C.Z3_solver_get_reason_unknown(b.ctx, solver))
		switch {
		case strings.Contains(reason, "timeout"):
			return false, nil, skolem.ErrSolverTimeout
		case strings.Contains(reason, "canceled"):
			return false, nil, skolem.ErrSolverCanceled
		case strings.Contains(reason, "(resource limits reached)"):
			return false, nil, skolem.ErrSolverResourceLimit
		case strings.Contains(reason, "unknown"):
			return false, nil, skolem.ErrSolverUnknown
		default:
			return false, nil, fmt.Errorf("z3: %s", reason)
		}
	} else if len(arrays) == 0 {
		return true, nil, nil // no symbolics, ignore model
	}

	// Calculate a model for the given formula.
	model := C.Z3_solver_get_model(b.ctx, solver)
	C.Z3_model_inc_ref(b.ctx, model)
	defer C.Z3_model_dec_ref(b.ctx, model)

	// Fetch values for symbolic arrays.
	values, err = s.eval(model, arrays)
	if err != nil {
		return true, nil, err
	}
	return true, values, nil
}

// eval evaluates arrays into their initial byte slice values.
func (s *Solver) eval(model C.Z3_model, arrays []*skolem.Array) ([][]byte, error) {
	values := make([][]byte, 0, len(arrays))
	for _, array := range arrays {
		value, err := s.evalArray(model, array)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// evalArray evaluates a single array into its initial byte slice value.
// The cached array constant is used so the evaluation refers to the same
// solver-side name as the asserted constraints.
func (s *Solver) evalArray(model C.Z3_model, array *skolem.Array) ([]byte, error) {
	b := s.builder
	mark := b.scopeMark()
	defer b.releaseScope(mark)

	z3Array := b.getInitialArray(array)

	value := make([]byte, 0, array.Size)
	for offset := uint(0); offset < array.Size; offset++ {
		// Generate an expression to select a single element from the array.
		z3Select := b.readExpr(z3Array, b.bvConst64(array.Domain, uint64(offset)))

		// Evaluate the expression against the Z3 model.
		var raw C.Z3_ast
		C.Z3_model_eval(b.ctx, model, z3Select.raw, C.bool(true), &raw)
		z3Expr := b.wrapAST(raw)

		// Extract the byte from the evaluation.
		var z3Byte C.int
		C.Z3_get_numeral_int(b.ctx, z3Expr.raw, &z3Byte)
		value = append(value, byte(z3Byte))
	}
	return value, nil
}

// Stats holds counters for solver usage.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
