package repo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgtree/pkg/repo"
)

func TestJoinWhere(t *testing.T) {
	require.Equal(t, "", repo.JoinWhere())
	require.Equal(t, "WHERE a = $1", repo.JoinWhere("a = $1"))
	require.Equal(t, "WHERE a = $1 AND b > $2", repo.JoinWhere("a = $1", "", "b > $2"))
}

func TestJoin_SkipsEmptyParts(t *testing.T) {
	require.Equal(t, "SELECT 1 LIMIT 5", repo.Join("SELECT 1", "", "LIMIT 5"))
}

func TestFormatLimitOffset(t *testing.T) {
	require.Equal(t, "", repo.FormatLimitOffset(0, 0))
	require.Equal(t, "LIMIT 10", repo.FormatLimitOffset(10, 0))
	require.Equal(t, "OFFSET 20", repo.FormatLimitOffset(0, 20))
	require.Equal(t, "LIMIT 10 OFFSET 20", repo.FormatLimitOffset(10, 20))
}

func TestFilters(t *testing.T) {
	f := repo.Eq("acme")
	require.Equal(t, "o.name = $3", f.String("o.name", 3))
	require.Equal(t, []any{"acme"}, f.Value())

	g := repo.Gte(42)
	require.Equal(t, "o.depth >= $1", g.String("o.depth", 1))

	l := repo.Like("acme%")
	require.Equal(t, "o.name ILIKE $2", l.String("o.name", 2))

	i := repo.In("a", "b", "c")
	require.Equal(t, "o.id IN ($4, $5, $6)", i.String("o.id", 4))
	require.Len(t, i.Value(), 3)
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `100\%\_done`, repo.EscapeLike("100%_done"))
}

func TestSortByToSQL(t *testing.T) {
	type field int
	const (
		name field = iota
		created
		unknown
	)
	fieldMap := map[field]string{name: "o.name", created: "o.created_at"}

	s := repo.SortBy[field]{Fields: []repo.SortByField[field]{
		{Field: created, Direction: repo.SortDesc},
		{Field: name},
		{Field: unknown, Direction: repo.SortAsc},
	}}
	require.Equal(t, "ORDER BY o.created_at DESC, o.name ASC", s.ToSQL(fieldMap))

	require.Equal(t, "", repo.SortBy[field]{}.ToSQL(fieldMap))
}
