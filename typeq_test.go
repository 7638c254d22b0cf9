package typeq_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/typeq"
	_ "modernc.org/sqlite"
)

// The facade test drives the public API end to end: migrations, schema
// registration, plan building, and execution.
func TestPublicAPI(t *testing.T) {
	db, err := typeq.Open("sqlite", ":memory:", typeq.WithMaxOpenConns(1))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	runner, err := typeq.NewMigrationRunner(db.SQLDB(), db.DriverName())
	require.NoError(t, err)
	applied, err := runner.Run(ctx, fstest.MapFS{
		"001_init.sql": &fstest.MapFile{Data: []byte(
			`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, active INTEGER)`,
		)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	reg := typeq.NewRegistry()
	users := reg.Table("users",
		typeq.ColumnDef{Name: "id", Type: "INTEGER", PrimaryKey: true},
		typeq.ColumnDef{Name: "name", Type: "TEXT"},
		typeq.ColumnDef{Name: "active", Type: "INTEGER", Mode: typeq.ModeBool},
	)

	qb := db.Builder()
	_, err = qb.Insert(users,
		map[string]interface{}{"id": 1, "name": "John", "active": true},
		map[string]interface{}{"id": 2, "name": "Jane", "active": false},
	).Execute()
	require.NoError(t, err)

	plan, err := qb.Select(users.C("name"), users.C("active")).
		From(users).
		Where(typeq.Eq(users.C("id"), typeq.Param("id"))).
		Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, plan.ParamNames())

	rec, err := plan.QueryOne(typeq.Params{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "John", rec["name"])
	assert.Equal(t, true, rec["active"])

	_, err = plan.QueryOne(typeq.Params{"id": 99})
	assert.ErrorIs(t, err, typeq.ErrNoRows)
}

func TestPublicAPI_CompileErrorsSurfaceAtBuild(t *testing.T) {
	db, err := typeq.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	reg := typeq.NewRegistry()
	users := reg.Table("users",
		typeq.ColumnDef{Name: "id", Type: "INTEGER", PrimaryKey: true},
	)

	// Unknown column: caught at Build with a SchemaError, before any I/O.
	_, err = db.Builder().Select(users.C("nope")).From(users).Build()
	var serr *typeq.SchemaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "nope", serr.Column)

	// Out-of-scope column: the posts table is not a source of this query.
	posts := reg.Table("posts",
		typeq.ColumnDef{Name: "id", Type: "INTEGER", PrimaryKey: true},
	)
	_, err = db.Builder().Select(posts.C("id")).From(users).Build()
	var cerr *typeq.CompileError
	require.ErrorAs(t, err, &cerr)
}
