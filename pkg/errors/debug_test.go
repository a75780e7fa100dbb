package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "transfers_reference_id_key", TableName: "transfers"}
	err := Wrap(CodeConflict, fmt.Errorf("insert transfer: %w", pgErr), "reference already used")

	dump := Dump(err)
	if dump.Code != CodeConflict || dump.Retryable {
		t.Fatalf("unexpected code metadata: %+v", dump)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "transfers_reference_id_key" || dump.PGTable != "transfers" {
		t.Fatalf("postgres fields not extracted: %+v", dump)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected 3 links in chain, got %v", dump.Chain)
	}

	fields := dump.Fields()
	if fields["pg_constraint"] != "transfers_reference_id_key" {
		t.Fatalf("missing constraint field: %v", fields)
	}
}

func TestDumpPlainErrorIsInternal(t *testing.T) {
	dump := Dump(stdErrors.New("boom"))
	if dump.Code != CodeInternal || !dump.Retryable {
		t.Fatalf("unexpected dump: %+v", dump)
	}
	fields := dump.Fields()
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("empty postgres fields should be omitted: %v", fields)
	}
}

func TestDumpNil(t *testing.T) {
	if dump := Dump(nil); dump.TopMessage != "" || dump.Chain != nil {
		t.Fatalf("expected zero dump, got %+v", dump)
	}
}
