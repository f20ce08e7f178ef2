package metadata

import (
	"fmt"
	"strings"
	"time"
)

// Op is the comparison a Clause applies.
type Op int

const (
	// OpEqual: field == value
	OpEqual Op = iota
	// OpContains: set-valued field contains value
	OpContains
	// OpSubstring: string field contains value as a substring
	OpSubstring
	// OpAtLeast: field >= value (range lower bound)
	OpAtLeast
	// OpAtMost: field <= value (range upper bound)
	OpAtMost
)

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "eq"
	case OpContains:
		return "contains"
	case OpSubstring:
		return "substring"
	case OpAtLeast:
		return "gte"
	case OpAtMost:
		return "lte"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Clause is one typed predicate. Value is a string, bool or time.Time
// depending on the field.
type Clause struct {
	Field string
	Op    Op
	Value any
}

func (c Clause) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Filter is an ordered list of clauses combined with logical AND.
// The empty filter matches everything.
type Filter []Clause

func (f Filter) String() string {
	if len(f) == 0 {
		return "<all>"
	}
	parts := make([]string, len(f))
	for i, c := range f {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}

// Eq, Contains, Substring, AtLeast and AtMost build clauses.
func Eq(field string, v any) Clause { return Clause{Field: field, Op: OpEqual, Value: v} }
func Contains(field, v string) Clause { return Clause{Field: field, Op: OpContains, Value: v} }
func Substring(field, v string) Clause { return Clause{Field: field, Op: OpSubstring, Value: v} }
func AtLeast(field string, t time.Time) Clause { return Clause{Field: field, Op: OpAtLeast, Value: t} }
func AtMost(field string, t time.Time) Clause { return Clause{Field: field, Op: OpAtMost, Value: t} }

// With returns a copy of f with extra clauses appended. f is not modified.
func (f Filter) With(clauses ...Clause) Filter {
	out := make(Filter, 0, len(f)+len(clauses))
	out = append(out, f...)
	return append(out, clauses...)
}

// Match evaluates the filter against a record in memory.
func (f Filter) Match(r *Record) bool {
	for _, c := range f {
		if !c.Match(r) {
			return false
		}
	}
	return true
}

// Match evaluates a single clause. Unknown fields never match.
func (c Clause) Match(r *Record) bool {
	switch c.Field {
	case FieldTags:
		s, _ := c.Value.(string)
		return c.Op == OpContains && r.HasTag(s)
	case FieldIsPublic:
		b, ok := c.Value.(bool)
		return ok && c.Op == OpEqual && r.IsPublic == b
	case FieldCreatedAt:
		t, ok := c.Value.(time.Time)
		if !ok {
			return false
		}
		switch c.Op {
		case OpAtLeast:
			return !r.CreatedAt.Before(t)
		case OpAtMost:
			return !r.CreatedAt.After(t)
		case OpEqual:
			return r.CreatedAt.Equal(t)
		}
		return false
	}

	got, ok := stringField(r, c.Field)
	if !ok {
		return false
	}
	want, _ := c.Value.(string)
	switch c.Op {
	case OpEqual:
		return got == want
	case OpSubstring:
		return strings.Contains(got, want)
	case OpAtLeast:
		return got >= want
	case OpAtMost:
		return got <= want
	}
	return false
}

func stringField(r *Record, field string) (string, bool) {
	switch field {
	case FieldImageID:
		return r.ImageID, true
	case FieldOwnerID:
		return r.OwnerID, true
	case FieldCategory:
		return r.Category, true
	case FieldFilename:
		return r.Filename, true
	}
	return "", false
}
