package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/artpar/tablekit/adapters/metrics"
	"github.com/artpar/tablekit/adapters/sqlite"
	"github.com/artpar/tablekit/ports"
)

func TestCollector_CountsStatementsAndTransactions(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewWith(reg)

	db, err := sqlite.Open(":memory:", sqlite.WithMetrics(collector))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	conn := db.Conn()
	ctx := context.Background()
	err = conn.Schema().CreateTable(ctx, "things", func(b ports.TableBuilder) {
		b.Increments("id")
		b.String("name")
	})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Table("things").Insert(ctx, []ports.Row{{"name": "a"}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if got := testutil.ToFloat64(collector.QueriesTotal.WithLabelValues("insert", "things")); got != 1 {
		t.Errorf("queries_total{insert,things} = %v", got)
	}
	if got := testutil.ToFloat64(collector.TxStartedTotal); got != 1 {
		t.Errorf("transactions_started_total = %v", got)
	}
	if got := testutil.ToFloat64(collector.TxCompletedTotal.WithLabelValues("commit")); got != 1 {
		t.Errorf("transactions_completed_total{commit} = %v", got)
	}
	if got := testutil.ToFloat64(collector.QueryErrors.WithLabelValues("insert", "things")); got != 0 {
		t.Errorf("query_errors_total = %v", got)
	}
}

func TestCollector_CountsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewWith(reg)

	db, err := sqlite.Open(":memory:", sqlite.WithMetrics(collector))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.Conn().Table("missing").All(ctx); err == nil {
		t.Fatal("select on missing table should fail")
	}
	if got := testutil.ToFloat64(collector.QueryErrors.WithLabelValues("select", "missing")); got != 1 {
		t.Errorf("query_errors_total{select,missing} = %v", got)
	}
}
