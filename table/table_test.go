package table_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/artpar/tablekit/adapters/sqlite"
	"github.com/artpar/tablekit/ports"
	"github.com/artpar/tablekit/row"
	"github.com/artpar/tablekit/table"
)

func setupConn(t *testing.T) ports.Connection {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db.Conn()
}

func peopleSchema() row.Schema {
	return row.NewSchema(
		row.Field{Name: "id", Column: row.Identity()},
		row.Field{Name: "name", Column: row.String().Required()},
		row.Field{Name: "age", Column: row.Integer()},
		row.Field{Name: "active", Column: row.Boolean()},
	)
}

func peopleDDL(b ports.TableBuilder) {
	b.Increments("id")
	b.String("name").NotNull()
	b.Integer("age")
	b.Boolean("active").NotNull().Default(true)
}

func setupPeople(t *testing.T) (*table.Dynamic, ports.Connection) {
	t.Helper()
	conn := setupConn(t)
	people := table.NewDynamic("people", peopleSchema(), peopleDDL).Connect(conn)
	if err := people.Create(context.Background()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return people, conn
}

func TestTable_NotConnected(t *testing.T) {
	people := table.New("people", peopleSchema(), peopleDDL)
	ctx := context.Background()

	if _, err := people.Select(ctx, 1); !errors.Is(err, table.ErrNotConnected) {
		t.Errorf("Select err = %v", err)
	}
	if _, err := people.SelectAll(ctx); !errors.Is(err, table.ErrNotConnected) {
		t.Errorf("SelectAll err = %v", err)
	}
	if _, err := people.Count(ctx); !errors.Is(err, table.ErrNotConnected) {
		t.Errorf("Count err = %v", err)
	}
	if err := people.Create(ctx); !errors.Is(err, table.ErrNotConnected) {
		t.Errorf("Create err = %v", err)
	}
	if err := people.Drop(ctx); !errors.Is(err, table.ErrNotConnected) {
		t.Errorf("Drop err = %v", err)
	}
}

func TestTable_ConnectReturnsClone(t *testing.T) {
	blueprint := table.New("people", peopleSchema(), peopleDDL)
	conn := setupConn(t)

	bound := blueprint.Connect(conn)
	if !bound.Connected() {
		t.Error("clone should be connected")
	}
	if blueprint.Connected() {
		t.Error("blueprint must stay unconnected")
	}
	if bound == blueprint {
		t.Error("Connect returned the receiver")
	}
}

func TestTable_Accessors(t *testing.T) {
	people := table.New("people", peopleSchema(), peopleDDL)

	if people.Name() != "people" {
		t.Errorf("Name = %s", people.Name())
	}
	wantCols := []string{"id", "name", "age", "active"}
	if !reflect.DeepEqual(people.Columns(), wantCols) {
		t.Errorf("Columns = %v", people.Columns())
	}
	if people.Row().Len() != 4 {
		t.Errorf("schema len = %d", people.Row().Len())
	}
}

func TestTable_JoinReferences(t *testing.T) {
	people := table.New("people", peopleSchema(), peopleDDL)

	if got := people.As("p"); got != "people AS p" {
		t.Errorf("As = %q", got)
	}
	if got := people.On("id"); got != "people.id" {
		t.Errorf("On = %q", got)
	}
	ref, col := people.AsOn("p", "id")
	if ref != "people AS p" || col != "p.id" {
		t.Errorf("AsOn = %q, %q", ref, col)
	}
}

func TestTable_InsertThenSelect(t *testing.T) {
	people, _ := setupPeople(t)
	ctx := context.Background()

	stored, err := people.Insert(ctx, row.Row{"name": "Bob"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	want := row.Row{"id": int64(1), "name": "Bob", "age": nil, "active": true}
	if !reflect.DeepEqual(stored, want) {
		t.Errorf("insert returned %v, want %v", stored, want)
	}

	got, err := people.Select(ctx, 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !reflect.DeepEqual(got, stored) {
		t.Errorf("Select = %v, want %v", got, stored)
	}
}

func TestTable_SelectNoMatch(t *testing.T) {
	people, _ := setupPeople(t)

	got, err := people.Select(context.Background(), 42)
	if err != nil || got != nil {
		t.Errorf("Select(42) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestTable_SelectByConvertsCondition(t *testing.T) {
	people, _ := setupPeople(t)
	ctx := context.Background()

	seed := []row.Row{
		{"name": "Ada", "active": true},
		{"name": "Bob", "active": false},
		{"name": "Cyd", "active": true},
	}
	for _, rec := range seed {
		if _, err := people.Insert(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	active, err := people.SelectBy(ctx, row.Row{"active": true})
	if err != nil {
		t.Fatalf("select by: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("matched %d rows, want 2", len(active))
	}
	for _, rec := range active {
		if rec["active"] != true {
			t.Errorf("row %v not active in user shape", rec)
		}
	}

	n, err := people.CountOf(ctx, row.Row{"active": false})
	if err != nil {
		t.Fatalf("count of: %v", err)
	}
	if n != 1 {
		t.Errorf("CountOf = %d, want 1", n)
	}
}

func TestTable_SelectAllAndCount(t *testing.T) {
	people, _ := setupPeople(t)
	ctx := context.Background()

	for _, name := range []string{"Ada", "Bob"} {
		if _, err := people.Insert(ctx, row.Row{"name": name}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	all, err := people.SelectAll(ctx)
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("SelectAll = %d rows", len(all))
	}

	n, err := people.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d", n)
	}
}
