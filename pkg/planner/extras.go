package planner

import (
	"cmp"
	"fmt"

	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

// Extras are the push-downs a table may apply while reading. Tables are free
// to ignore them; the reader applies them again on the produced blocks.
type Extras struct {
	// Projection lists the columns to read, in output order. Empty reads all
	// columns.
	Projection []string

	// Filters are conjunctive row conditions.
	Filters []Filter

	// Limit bounds the number of rows read, when set.
	Limit *uint64
}

// WithLimit returns a copy of the extras with the limit set.
func (e Extras) WithLimit(n uint64) Extras {
	e.Limit = &n
	return e
}

// OutputSchema returns the schema of the rows read from a table of the given
// schema.
func (e *Extras) OutputSchema(schema *datablock.Schema) (*datablock.Schema, error) {
	if e == nil || len(e.Projection) == 0 {
		return schema, nil
	}
	projected, err := schema.Project(e.Projection...)
	if err != nil {
		return nil, fuseerrors.NewValidationError(err)
	}
	return projected, nil
}

// FilterOp is a comparison operator.
type FilterOp string

const (
	OpEq    FilterOp = "="
	OpNotEq FilterOp = "!="
	OpLt    FilterOp = "<"
	OpLtEq  FilterOp = "<="
	OpGt    FilterOp = ">"
	OpGtEq  FilterOp = ">="
)

// Filter compares a column with a constant.
type Filter struct {
	Column string
	Op     FilterOp
	Value  any
}

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %v", f.Column, f.Op, f.Value)
}

type compiledFilter struct {
	column int
	accept func(c int) bool
	value  any
}

// CompileFilters returns a predicate accepting the rows of blocks of the given
// schema which satisfy every filter. Null values never match.
func CompileFilters(schema *datablock.Schema, filters []Filter) (datastream.Predicate, error) {
	compiled := make([]compiledFilter, 0, len(filters))
	for _, f := range filters {
		i, ok := schema.IndexOf(f.Column)
		if !ok {
			return nil, fuseerrors.NewValidationError(fmt.Errorf("unknown column `%s` in filter", f.Column))
		}

		value, err := datablock.Convert(schema.Field(i).Type, f.Value)
		if err != nil || value == nil {
			return nil, fuseerrors.NewValidationError(fmt.Errorf("invalid value in filter `%s`", f))
		}

		accept, err := acceptFor(f.Op)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledFilter{column: i, accept: accept, value: value})
	}

	return func(b *datablock.Block, row int) (bool, error) {
		for _, f := range compiled {
			c, ok := compare(b.Value(f.column, row), f.value)
			if !ok || !f.accept(c) {
				return false, nil
			}
		}
		return true, nil
	}, nil
}

func acceptFor(op FilterOp) (func(int) bool, error) {
	switch op {
	case OpEq:
		return func(c int) bool { return c == 0 }, nil
	case OpNotEq:
		return func(c int) bool { return c != 0 }, nil
	case OpLt:
		return func(c int) bool { return c < 0 }, nil
	case OpLtEq:
		return func(c int) bool { return c <= 0 }, nil
	case OpGt:
		return func(c int) bool { return c > 0 }, nil
	case OpGtEq:
		return func(c int) bool { return c >= 0 }, nil
	default:
		return nil, fuseerrors.NewValidationError(fmt.Errorf("unknown filter operator `%s`", op))
	}
}

func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case uint64:
		return cmp.Compare(x, b.(uint64)), true
	case int64:
		return cmp.Compare(x, b.(int64)), true
	case float64:
		return cmp.Compare(x, b.(float64)), true
	case string:
		return cmp.Compare(x, b.(string)), true
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	default:
		return 0, false
	}
}
