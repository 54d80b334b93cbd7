package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "settlements_order_id_key", TableName: "settlements"}
	err := Wrap(CodeConflict, fmt.Errorf("insert settlement: %w", pgErr), "settlement exists")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected code %s, got %s", CodeConflict, d.Code)
	}
	if d.PG == nil || d.PG.Constraint != "settlements_order_id_key" || d.PG.Code != "23505" {
		t.Fatalf("unexpected pg details: %+v", d.PG)
	}
	if len(d.Chain) < 3 {
		t.Fatalf("expected full chain, got %v", d.Chain)
	}
	if d.LogFields()["pg_table"] != "settlements" {
		t.Fatalf("pg_table missing from log fields")
	}
}

func TestDumpHandlesPQAndJoinedErrors(t *testing.T) {
	joined := stdErrors.Join(&pq.Error{Code: "23503", Table: "orders"}, stdErrors.New("second"))
	d := Dump(joined)
	if d.PG == nil || d.PG.Code != "23503" {
		t.Fatalf("expected pq details, got %+v", d.PG)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected joined chain to follow first branch, got %v", d.Chain)
	}
	if _, ok := d.LogFields()["pg_code"]; !ok {
		t.Fatal("pg_code missing from log fields")
	}
}

func TestDumpMarksRetryableDependencies(t *testing.T) {
	d := Dump(New(CodeDependency, "redis down"))
	if !d.Retryable {
		t.Fatal("dependency errors should be retryable")
	}
	if d.PG != nil {
		t.Fatal("no pg details expected")
	}
	if Dump(nil).TopMessage != "" {
		t.Fatal("nil error must produce an empty dump")
	}
}
