// Package repository provides the query options shared by the fit and
// sweep result stores.
package repository

import "fmt"

// Option applies a modification to a Query.
type Option func(Query) Query

// Query holds conditions, ordering, and pagination for store lookups.
type Query struct {
	conditions []Condition
	orders     []Order
	limit      int
	offset     int
}

// Build creates a Query from a set of options.
func Build(options ...Option) Query {
	q := Query{}
	for _, opt := range options {
		q = opt(q)
	}
	return q
}

// Conditions returns the query conditions.
func (q Query) Conditions() []Condition {
	result := make([]Condition, len(q.conditions))
	copy(result, q.conditions)
	return result
}

// Orders returns the query ordering.
func (q Query) Orders() []Order {
	result := make([]Order, len(q.orders))
	copy(result, q.orders)
	return result
}

// LimitValue returns the limit (0 means no limit).
func (q Query) LimitValue() int { return q.limit }

// OffsetValue returns the offset.
func (q Query) OffsetValue() int { return q.offset }

// Operator compares a column with a condition value.
type Operator string

// Operator values.
const (
	OpEqual   Operator = "="
	OpIn      Operator = "IN"
	OpAtMost  Operator = "<="
	OpAtLeast Operator = ">="
)

// Condition restricts a query to rows where field op value holds.
type Condition struct {
	field string
	op    Operator
	value any
}

// Field returns the column name.
func (c Condition) Field() string { return c.field }

// Operator returns the comparison.
func (c Condition) Operator() Operator { return c.op }

// Value returns the condition value.
func (c Condition) Value() any { return c.value }

// String returns a readable representation.
func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.field, c.op, c.value)
}

// Order represents a sort specification.
type Order struct {
	field     string
	ascending bool
}

// Field returns the column name.
func (o Order) Field() string { return o.field }

// Ascending returns true for ASC, false for DESC.
func (o Order) Ascending() bool { return o.ascending }

func where(field string, op Operator, value any) Option {
	return func(q Query) Query {
		q.conditions = append(q.conditions, Condition{field: field, op: op, value: value})
		return q
	}
}

// WithCondition adds a field = value condition.
func WithCondition(field string, value any) Option {
	return where(field, OpEqual, value)
}

// WithConditionIn adds a field IN (values) condition. values must be a slice.
func WithConditionIn(field string, values any) Option {
	return where(field, OpIn, values)
}

// WithAtMost adds a field <= value condition.
func WithAtMost(field string, value any) Option {
	return where(field, OpAtMost, value)
}

// WithAtLeast adds a field >= value condition.
func WithAtLeast(field string, value any) Option {
	return where(field, OpAtLeast, value)
}

// WithLimit sets the maximum number of results.
func WithLimit(n int) Option {
	return func(q Query) Query {
		q.limit = n
		return q
	}
}

// WithOffset skips the first n results.
func WithOffset(n int) Option {
	return func(q Query) Query {
		q.offset = n
		return q
	}
}

// WithOrderAsc adds ascending ordering on a field.
func WithOrderAsc(field string) Option {
	return func(q Query) Query {
		q.orders = append(q.orders, Order{field: field, ascending: true})
		return q
	}
}

// WithOrderDesc adds descending ordering on a field.
func WithOrderDesc(field string) Option {
	return func(q Query) Query {
		q.orders = append(q.orders, Order{field: field, ascending: false})
		return q
	}
}
