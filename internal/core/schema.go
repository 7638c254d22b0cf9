package core

// Mode governs how a column's values are encoded on write and decoded on
// read at the database boundary.
type Mode int

const (
	// ModePlain stores and returns values as the driver provides them.
	ModePlain Mode = iota
	// ModeBool stores booleans as integers; any nonzero value decodes to true.
	ModeBool
	// ModeTime stores timestamps as numeric epoch seconds and decodes them
	// to time.Time in UTC.
	ModeTime
	// ModeJSON stores structured values as JSON text; empty or NULL text
	// decodes to nil.
	ModeJSON
)

// ColumnDef describes one column of a table being registered.
type ColumnDef struct {
	Name       string
	Type       string // storage type, e.g. "INTEGER", "TEXT"
	Mode       Mode
	Nullable   bool
	Default    interface{} // literal used when an insert row omits the column
	PrimaryKey bool
	References string // foreign key target as "table.column", empty for none
}

// Registry holds table metadata for query construction. It is an explicit
// value: create one, register tables on it, and hand the resulting Table
// handles to builders. There is no process-global registry.
type Registry struct {
	tables map[string]*Table
	prefix string
}

// NewRegistry creates an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Table)}
}

// WithPrefix returns a registry view that prepends prefix to every table
// name registered through it. The underlying table set is shared with the
// parent registry.
func (r *Registry) WithPrefix(prefix string) *Registry {
	return &Registry{tables: r.tables, prefix: r.prefix + prefix}
}

// Table registers a table under the given name and returns its handle.
// Tables are immutable after registration. Registering the same name twice
// is caller misuse; the later registration wins.
func (r *Registry) Table(name string, cols ...ColumnDef) *Table {
	full := r.prefix + name
	t := &Table{
		name:   full,
		byName: make(map[string]*Column, len(cols)),
	}
	for _, def := range cols {
		col := &Column{table: t, qualifier: full, def: def}
		t.cols = append(t.cols, col)
		t.byName[def.Name] = col
		if def.PrimaryKey {
			t.pk = append(t.pk, def.Name)
		}
	}
	r.tables[full] = t
	return t
}

// Lookup returns a previously registered table handle, or nil.
func (r *Registry) Lookup(name string) *Table {
	return r.tables[r.prefix+name]
}

// Table holds the registered metadata of one database table.
type Table struct {
	name   string
	cols   []*Column
	byName map[string]*Column
	pk     []string
}

// Name returns the registered table name.
func (t *Table) Name() string { return t.name }

// PrimaryKey returns the primary key column names in registration order.
func (t *Table) PrimaryKey() []string { return append([]string(nil), t.pk...) }

// Columns returns the table's column handles in registration order.
func (t *Table) Columns() []*Column { return append([]*Column(nil), t.cols...) }

// C returns the handle for the named column. An unknown name yields a
// poisoned handle whose use fails compilation with a SchemaError, so fluent
// chains stay unbroken and the error still surfaces before any I/O.
func (t *Table) C(name string) *Column {
	if col, ok := t.byName[name]; ok {
		return col
	}
	return &Column{
		table:     t,
		qualifier: t.name,
		def:       ColumnDef{Name: name},
		err:       &SchemaError{Table: t.name, Column: name, Reason: "unknown column"},
	}
}

// As binds the table to a scope-local alias. Columns obtained through the
// alias render qualified by it.
func (t *Table) As(alias string) *TableAlias {
	return &TableAlias{table: t, alias: alias}
}

// TableAlias is a named re-binding of a table within one query scope.
type TableAlias struct {
	table *Table
	alias string
}

// Alias returns the alias name.
func (a *TableAlias) Alias() string { return a.alias }

// Table returns the underlying table handle.
func (a *TableAlias) Table() *Table { return a.table }

// C returns the aliased handle for the named column.
func (a *TableAlias) C(name string) *Column {
	base := a.table.C(name)
	col := *base
	col.qualifier = a.alias
	return &col
}

// Column is a ColumnRef-capable handle carrying the owning table identity,
// the scope qualifier it renders under, and the column's value mode.
type Column struct {
	table     *Table
	qualifier string
	def       ColumnDef
	err       error
}

// Name returns the column name.
func (c *Column) Name() string { return c.def.Name }

// Mode returns the column's value-encoding mode.
func (c *Column) Mode() Mode { return c.def.Mode }

// Table returns the owning table handle.
func (c *Column) Table() *Table { return c.table }

// Qualifier returns the table name or alias this handle renders under.
func (c *Column) Qualifier() string { return c.qualifier }
