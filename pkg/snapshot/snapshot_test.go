package snapshot

import (
	"strings"
	"testing"
)

func TestDecodeSelectsNamedDatabase(t *testing.T) {
	doc := `{"Databases":{
		"Db":{"Name":"Db","Tables":{"T":{"Name":"T","OrderedColumns":[{"Name":"a","Type":"System.String","CslType":"string"}]}}},
		"Other":{"Name":"Other"}}}`
	db, err := Decode([]byte(doc), "Db")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if db.Name != "Db" || len(db.Tables) != 1 {
		t.Fatalf("unexpected database %+v", db)
	}
	if got := db.Tables["T"].OrderedColumns[0].ColumnType(); got != "string" {
		t.Fatalf("expected csl type, got %q", got)
	}
}

func TestDecodeMissingDatabaseIsEmpty(t *testing.T) {
	db, err := Decode([]byte(`{"Databases":{}}`), "Db")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if db.Name != "Db" || len(db.Tables) != 0 || len(db.Functions) != 0 {
		t.Fatalf("expected empty database, got %+v", db)
	}
}

func TestDecodeSingleDatabaseWithoutName(t *testing.T) {
	db, err := Decode([]byte(`{"Databases":{"Only":{}}}`), "")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if db.Name != "Only" {
		t.Fatalf("expected key as name, got %q", db.Name)
	}
}

func TestDecodeAmbiguousDatabases(t *testing.T) {
	_, err := Decode([]byte(`{"Databases":{"B":{},"A":{}}}`), "")
	if err == nil || !strings.Contains(err.Error(), "[A B]") {
		t.Fatalf("expected ambiguity error, got %v", err)
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte(`{`), "Db"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestParameterShapes(t *testing.T) {
	tabular := ParameterSchema{Name: "T", Columns: []ColumnSchema{}}
	scalar := ParameterSchema{Name: "x", Type: "System.Int64"}
	if !tabular.IsTabular() || scalar.IsTabular() {
		t.Fatalf("tabular detection wrong")
	}
	if scalar.ParameterType() != "System.Int64" {
		t.Fatalf("expected .NET type fallback, got %q", scalar.ParameterType())
	}
}
