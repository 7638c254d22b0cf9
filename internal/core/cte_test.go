package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWith_SingleCTE(t *testing.T) {
	qb := &QueryBuilder{db: mockDB("postgres")}

	cte := qb.Select("user_id", As(Sum("total"), "total")).
		From("orders").
		GroupBy("user_id")

	plan, err := qb.Select().
		With("order_totals", cte).
		From("order_totals").
		Where("total > ?", 1000).
		Build()
	require.NoError(t, err)

	sql := plan.SQL()
	assert.Contains(t, sql, `WITH "order_totals" AS (SELECT "user_id", SUM("total") AS "total" FROM "orders" GROUP BY "user_id")`)
	assert.Contains(t, sql, `SELECT * FROM "order_totals" WHERE total > $1`)

	args, err := plan.Bind(nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1000}, args)
}

func TestWith_ChainedCTEs(t *testing.T) {
	qb := &QueryBuilder{db: mockDB("postgres")}

	regional := qb.Select("region", As(Sum("amount"), "total_sales")).
		From("orders").
		GroupBy("region")
	top := qb.Select("region").
		From("regional_sales").
		Where("total_sales > ?", 1000)

	plan, err := qb.Select("region").
		With("regional_sales", regional).
		With("top_regions", top).
		From("top_regions").
		Build()
	require.NoError(t, err)

	sql := plan.SQL()
	assert.Contains(t, sql, `WITH "regional_sales" AS (`)
	assert.Contains(t, sql, `), "top_regions" AS (`)
	assert.Contains(t, sql, `FROM "top_regions"`)
	// Declaration order is preserved in the rendered text.
	assert.Less(t,
		indexOf(sql, `"regional_sales" AS (`),
		indexOf(sql, `"top_regions" AS (`))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestWith_ForwardReferenceRejected(t *testing.T) {
	qb := &QueryBuilder{db: mockDB("postgres")}

	// first references second, which is declared after it.
	first := qb.Select("region").From("second")
	second := qb.Select("region").From("orders")

	_, err := qb.Select("region").
		With("first", first).
		With("second", second).
		From("first").
		Build()
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "before its declaration")
}

func TestWith_SelfReferenceRejected(t *testing.T) {
	qb := &QueryBuilder{db: mockDB("postgres")}

	cte := qb.Select("n").From("counter")
	_, err := qb.Select("n").
		With("counter", cte).
		From("counter").
		Build()
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}

func TestWith_DuplicateNameRejected(t *testing.T) {
	qb := &QueryBuilder{db: mockDB("postgres")}

	a := qb.Select("x").From("t1")
	b := qb.Select("x").From("t2")

	_, err := qb.Select("x").
		With("dup", a).
		With("dup", b).
		From("dup").
		Build()
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "duplicate")
}

func TestWith_CTEAsAliasedSource(t *testing.T) {
	qb := &QueryBuilder{db: mockDB("postgres")}

	cte := qb.Select("user_id", As(Count(), "n")).From("orders").GroupBy("user_id")
	plan, err := qb.Select("c.user_id", "c.n").
		With("counts", cte).
		From("counts c").
		Build()
	require.NoError(t, err)
	assert.Contains(t, plan.SQL(), `FROM "counts" AS "c"`)
}

func TestWith_ParameterOrderSpansCTEs(t *testing.T) {
	qb := &QueryBuilder{db: mockDB("postgres")}

	cte := qb.Select("id").From("users").Where("status = ?", "active")
	plan, err := qb.Select("id").
		With("active_users", cte).
		From("active_users").
		Where("id > ?", 50).
		Build()
	require.NoError(t, err)

	// CTE body renders first, so its parameter comes first.
	assert.Contains(t, plan.SQL(), "status = $1")
	assert.Contains(t, plan.SQL(), "id > $2")
	args, err := plan.Bind(nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"active", 50}, args)
}
