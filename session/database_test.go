package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/artpar/tablekit/adapters/sqlite"
	"github.com/artpar/tablekit/ports"
	"github.com/artpar/tablekit/row"
	"github.com/artpar/tablekit/session"
	"github.com/artpar/tablekit/table"
)

func notesBlueprint() *table.Dynamic {
	return table.NewDynamic("notes", row.NewSchema(
		row.Field{Name: "id", Column: row.Identity()},
		row.Field{Name: "title", Column: row.String().Required()},
	), func(b ports.TableBuilder) {
		b.Increments("id")
		b.String("title").NotNull()
	})
}

func setupBase(t *testing.T) *session.Database {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	base := session.New(db.Conn(), []session.Member{
		{Name: "notes", Blueprint: notesBlueprint()},
	})
	notes, err := session.Get[*table.Dynamic](base, "notes")
	if err != nil {
		t.Fatalf("get notes: %v", err)
	}
	if err := notes.Create(context.Background()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return base
}

func TestDatabase_BaseScope(t *testing.T) {
	base := setupBase(t)

	if base.Level() != 0 {
		t.Errorf("Level = %d, want 0", base.Level())
	}
	if base.Closed() {
		t.Error("base scope reports closed")
	}
	if got := base.Names(); len(got) != 1 || got[0] != "notes" {
		t.Errorf("Names = %v", got)
	}
	if !base.Has("notes") || base.Has("ghost") {
		t.Error("Has gave wrong membership")
	}

	if err := base.Commit(); !errors.Is(err, session.ErrNotTransaction) {
		t.Errorf("base Commit err = %v, want ErrNotTransaction", err)
	}
	if err := base.Rollback(); !errors.Is(err, session.ErrNotTransaction) {
		t.Errorf("base Rollback err = %v, want ErrNotTransaction", err)
	}
	if !errors.Is(session.ErrNotTransaction, session.ErrTransactionState) {
		t.Error("ErrNotTransaction should wrap ErrTransactionState")
	}
}

func TestDatabase_GetBindsLazilyAndMemoizes(t *testing.T) {
	base := setupBase(t)

	first, err := base.Get("notes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := base.Get("notes")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if first != second {
		t.Error("repeated Get returned a different instance")
	}

	bound := first.(*table.Dynamic)
	if !bound.Connected() {
		t.Error("member is not connected to the scope")
	}

	if _, err := base.Get("ghost"); !errors.Is(err, session.ErrUnknownMember) {
		t.Errorf("Get(ghost) err = %v, want ErrUnknownMember", err)
	}
}

func TestDatabase_GetGeneric(t *testing.T) {
	base := setupBase(t)

	notes, err := session.Get[*table.Dynamic](base, "notes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if notes.Name() != "notes" {
		t.Errorf("Name = %s", notes.Name())
	}

	if _, err := session.Get[*table.Static](base, "notes"); err == nil {
		t.Error("wrong type assertion should fail")
	}
}

func TestDatabase_TransactionLevels(t *testing.T) {
	base := setupBase(t)
	ctx := context.Background()

	t1, err := base.Transaction(ctx)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	t2, err := t1.Transaction(ctx)
	if err != nil {
		t.Fatalf("nested transaction: %v", err)
	}

	if t1.Level() != 1 || t2.Level() != 2 {
		t.Errorf("levels = %d, %d, want 1, 2", t1.Level(), t2.Level())
	}
	if err := t2.Commit(); err != nil {
		t.Fatalf("commit t2: %v", err)
	}
	if err := t1.Commit(); err != nil {
		t.Fatalf("commit t1: %v", err)
	}
}

func TestDatabase_ParentCloseCascades(t *testing.T) {
	base := setupBase(t)
	ctx := context.Background()

	t1, err := base.Transaction(ctx)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	t2, err := t1.Transaction(ctx)
	if err != nil {
		t.Fatalf("nested transaction: %v", err)
	}

	if err := t1.Commit(); err != nil {
		t.Fatalf("commit t1: %v", err)
	}

	if !t2.Closed() {
		t.Error("child scope should be closed once the parent commits")
	}
	if err := t2.Commit(); !errors.Is(err, session.ErrClosed) {
		t.Errorf("t2 Commit err = %v, want ErrClosed", err)
	}
	if _, err := t2.Transaction(ctx); !errors.Is(err, session.ErrClosed) {
		t.Errorf("t2 Transaction err = %v, want ErrClosed", err)
	}
}

func TestDatabase_DoubleFinishRejected(t *testing.T) {
	base := setupBase(t)
	ctx := context.Background()

	tx, err := base.Transaction(ctx)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := tx.Rollback(); !errors.Is(err, session.ErrClosed) {
		t.Errorf("second rollback err = %v, want ErrClosed", err)
	}
	if err := tx.Commit(); !errors.Is(err, session.ErrClosed) {
		t.Errorf("commit after rollback err = %v, want ErrClosed", err)
	}
}

func TestDatabase_ScopesDoNotShareBoundMembers(t *testing.T) {
	base := setupBase(t)
	ctx := context.Background()

	baseNotes, err := base.Get("notes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	tx, err := base.Transaction(ctx)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	defer tx.Rollback()

	txNotes, err := tx.Get("notes")
	if err != nil {
		t.Fatalf("get in tx: %v", err)
	}
	if baseNotes == txNotes {
		t.Error("scopes share a bound member instance")
	}
}

func TestDatabase_TransactionCommitPersists(t *testing.T) {
	base := setupBase(t)
	ctx := context.Background()

	tx, err := base.Transaction(ctx)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	notes, err := session.Get[*table.Dynamic](tx, "notes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := notes.Insert(ctx, row.Row{"title": "kept"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	baseNotes, err := session.Get[*table.Dynamic](base, "notes")
	if err != nil {
		t.Fatalf("get on base: %v", err)
	}
	n, err := baseNotes.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestDatabase_TransactionRollbackDiscards(t *testing.T) {
	base := setupBase(t)
	ctx := context.Background()

	tx, err := base.Transaction(ctx)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	notes, err := session.Get[*table.Dynamic](tx, "notes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := notes.Insert(ctx, row.Row{"title": "discarded"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	baseNotes, err := session.Get[*table.Dynamic](base, "notes")
	if err != nil {
		t.Fatalf("get on base: %v", err)
	}
	n, err := baseNotes.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestDatabase_NestedRollbackKeepsOuterWork(t *testing.T) {
	base := setupBase(t)
	ctx := context.Background()

	outer, err := base.Transaction(ctx)
	if err != nil {
		t.Fatalf("outer transaction: %v", err)
	}
	outerNotes, err := session.Get[*table.Dynamic](outer, "notes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := outerNotes.Insert(ctx, row.Row{"title": "outer"}); err != nil {
		t.Fatalf("insert outer: %v", err)
	}

	inner, err := outer.Transaction(ctx)
	if err != nil {
		t.Fatalf("inner transaction: %v", err)
	}
	innerNotes, err := session.Get[*table.Dynamic](inner, "notes")
	if err != nil {
		t.Fatalf("get in inner: %v", err)
	}
	if _, err := innerNotes.Insert(ctx, row.Row{"title": "inner"}); err != nil {
		t.Fatalf("insert inner: %v", err)
	}
	if err := inner.Rollback(); err != nil {
		t.Fatalf("rollback inner: %v", err)
	}
	if err := outer.Commit(); err != nil {
		t.Fatalf("commit outer: %v", err)
	}

	baseNotes, err := session.Get[*table.Dynamic](base, "notes")
	if err != nil {
		t.Fatalf("get on base: %v", err)
	}
	rows, err := baseNotes.SelectAll(ctx)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 || rows[0]["title"] != "outer" {
		t.Errorf("rows = %v, want only the outer insert", rows)
	}
}

func TestDatabase_SiblingScopeRollbackDiscardsItsWork(t *testing.T) {
	base := setupBase(t)
	ctx := context.Background()

	t1, err := base.Transaction(ctx)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	a, err := t1.Transaction(ctx)
	if err != nil {
		t.Fatalf("first sibling: %v", err)
	}
	aNotes, err := session.Get[*table.Dynamic](a, "notes")
	if err != nil {
		t.Fatalf("get in first sibling: %v", err)
	}
	if _, err := aNotes.Insert(ctx, row.Row{"title": "discarded"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := t1.Transaction(ctx); err != nil {
		t.Fatalf("second sibling: %v", err)
	}

	if err := a.Rollback(); err != nil {
		t.Fatalf("rollback first sibling: %v", err)
	}
	if err := t1.Commit(); err != nil {
		t.Fatalf("commit t1: %v", err)
	}

	baseNotes, err := session.Get[*table.Dynamic](base, "notes")
	if err != nil {
		t.Fatalf("get on base: %v", err)
	}
	n, err := baseNotes.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0: sibling rollback kept its work", n)
	}
}

func TestDatabase_SecondBaseTransactionFailsFast(t *testing.T) {
	base := setupBase(t)
	ctx := context.Background()

	t1, err := base.Transaction(ctx)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if _, err := base.Transaction(ctx); !errors.Is(err, sqlite.ErrTransactionOpen) {
		t.Errorf("second base transaction err = %v, want ErrTransactionOpen", err)
	}

	if err := t1.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	t2, err := base.Transaction(ctx)
	if err != nil {
		t.Fatalf("transaction after commit: %v", err)
	}
	if err := t2.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
}

func TestNew_DuplicateMemberPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate member")
		}
	}()
	session.New(nil, []session.Member{
		{Name: "notes", Blueprint: notesBlueprint()},
		{Name: "notes", Blueprint: notesBlueprint()},
	})
}
