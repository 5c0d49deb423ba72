// Package repo contains small helpers for building parameterized SQL.
// Filter values always travel as query arguments; helpers only ever
// concatenate trusted column names and operator keywords.
package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Tx is the subset of pgx.Tx repositories rely on. Both pgx.Tx and
// *pgxpool.Pool satisfy it, so read paths work with or without an
// explicit transaction in the context.
type Tx interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Join concatenates non-empty SQL fragments with single spaces.
func Join(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

// JoinWhere renders a WHERE clause from AND-combined conditions.
// Returns an empty string when there are no conditions.
func JoinWhere(conditions ...string) string {
	nonEmpty := make([]string, 0, len(conditions))
	for _, c := range conditions {
		if c != "" {
			nonEmpty = append(nonEmpty, c)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(nonEmpty, " AND ")
}

func FormatLimitOffset(limit, offset int) string {
	if limit > 0 && offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	if limit > 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	if offset > 0 {
		return fmt.Sprintf("OFFSET %d", offset)
	}
	return ""
}

// Filter renders a single predicate against a column. argIdx is the
// 1-based index of the first positional parameter the predicate may use.
type Filter interface {
	String(column string, argIdx int) string
	Value() []any
}

type comparison struct {
	op    string
	value any
}

func (c comparison) String(column string, argIdx int) string {
	return fmt.Sprintf("%s %s $%d", column, c.op, argIdx)
}

func (c comparison) Value() []any { return []any{c.value} }

func Eq(value any) Filter    { return comparison{op: "=", value: value} }
func NotEq(value any) Filter { return comparison{op: "<>", value: value} }
func Gt(value any) Filter    { return comparison{op: ">", value: value} }
func Gte(value any) Filter   { return comparison{op: ">=", value: value} }
func Lt(value any) Filter    { return comparison{op: "<", value: value} }
func Lte(value any) Filter   { return comparison{op: "<=", value: value} }

type like struct {
	pattern string
}

func (l like) String(column string, argIdx int) string {
	return fmt.Sprintf("%s ILIKE $%d", column, argIdx)
}

func (l like) Value() []any { return []any{l.pattern} }

// Like matches against an ILIKE pattern. Callers are responsible for
// escaping % and _ in user-supplied fragments via EscapeLike.
func Like(pattern string) Filter { return like{pattern: pattern} }

func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type in struct {
	values []any
}

func (i in) String(column string, argIdx int) string {
	placeholders := make([]string, len(i.values))
	for n := range i.values {
		placeholders[n] = fmt.Sprintf("$%d", argIdx+n)
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", "))
}

func (i in) Value() []any { return i.values }

func In(values ...any) Filter { return in{values: values} }

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

type SortByField[T comparable] struct {
	Field     T
	Direction SortDirection
}

type SortBy[T comparable] struct {
	Fields []SortByField[T]
}

// ToSQL renders an ORDER BY clause using fieldMap to translate domain
// fields into column names. Unknown fields are skipped rather than
// interpolated.
func (s SortBy[T]) ToSQL(fieldMap map[T]string) string {
	if len(s.Fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		column, ok := fieldMap[f.Field]
		if !ok {
			continue
		}
		dir := f.Direction
		if dir != SortDesc {
			dir = SortAsc
		}
		parts = append(parts, fmt.Sprintf("%s %s", column, dir))
	}
	if len(parts) == 0 {
		return ""
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}
