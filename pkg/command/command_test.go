package command

import (
	"strings"
	"testing"
	"time"
)

func literalCommands(t *testing.T) []Command {
	t.Helper()
	tablePolicy, err := NewAlterRetentionPolicy(EntityTypeTable, NewEntityName("my table"), 30*24*time.Hour, false)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	dbPolicy, err := NewDeleteRetentionPolicy(EntityTypeDatabase, NewEntityName("Db"))
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	defaultValue := `"none"`
	return []Command{
		NewCreateTable(NewEntityName("Events"), []TableColumn{
			{Name: NewEntityName("Id"), Type: TypeLong},
			{Name: NewEntityName("table"), Type: TypeString},
			{Name: NewEntityName("It's"), Type: TypeDynamic},
		}, NewQuotedTextPtr(`a\b`), NewQuotedTextPtr("line1\nline2 \"quoted\"")),
		&CreateTables{
			Tables: []CreateTablesEntry{
				{TableName: NewEntityName("A"), Columns: []TableColumn{{Name: NewEntityName("x"), Type: TypeInt}}},
				{TableName: NewEntityName("B"), Columns: []TableColumn{{Name: NewEntityName("y"), Type: TypeTimespan}}},
			},
			Folder: NewQuotedTextPtr("bulk"),
		},
		NewDropTable(NewEntityName("Old")),
		&DropTables{TableNames: []EntityName{NewEntityName("A"), NewEntityName("with")}},
		NewDropTableColumns(NewEntityName("Events"), []EntityName{NewEntityName("Id"), NewEntityName("x y")}),
		NewAlterMergeTableColumnDocStrings(NewEntityName("Events"), []ColumnDocString{
			{ColumnName: NewEntityName("Id"), DocString: NewQuotedText("identifier")},
			{ColumnName: NewEntityName("table"), DocString: NewQuotedText(`it's "fine"`)},
		}),
		NewCreateFunction(NewEntityName("Lookup"), []FunctionParameter{
			{Name: NewEntityName("T"), Tabular: true, Columns: []TableColumn{{Name: NewEntityName("k"), Type: TypeString}}, OpenSchema: true},
			{Name: NewEntityName("S"), Tabular: true},
			{Name: NewEntityName("key"), Type: TypeString, Default: &defaultValue},
		}, "T\n| where k == key", NewQuotedTextPtr("lib"), nil, true),
		NewDropFunction(NewEntityName("Lookup")),
		&DropFunctions{FunctionNames: []EntityName{NewEntityName("F"), NewEntityName("G")}},
		tablePolicy,
		dbPolicy,
	}
}

func TestRoundTripEveryKind(t *testing.T) {
	seen := map[Kind]bool{}
	for _, cmd := range literalCommands(t) {
		seen[cmd.Kind()] = true
		parsed, err := ParseCommand(cmd.Script())
		if err != nil {
			t.Fatalf("%s: reparse failed: %v\n%s", cmd.Kind(), err, cmd.Script())
		}
		if !parsed.Equal(cmd) {
			t.Fatalf("%s: round trip mismatch\nwant: %s\ngot:  %s", cmd.Kind(), cmd.Script(), parsed.Script())
		}
		if parsed.Hash() != cmd.Hash() {
			t.Fatalf("%s: equal commands hash differently", cmd.Kind())
		}
	}
	for _, kind := range Kinds() {
		if !seen[kind] {
			t.Fatalf("kind %s not covered", kind)
		}
	}
}

func TestRenderScriptRoundTrip(t *testing.T) {
	cmds := literalCommands(t)
	parsed, err := ParseScript(RenderScript(cmds))
	if err != nil {
		t.Fatalf("parse rendered script: %v", err)
	}
	if len(parsed) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(parsed))
	}
	for i := range cmds {
		if !parsed[i].Equal(cmds[i]) {
			t.Fatalf("command %d mismatch:\n%s\n%s", i, cmds[i].Script(), parsed[i].Script())
		}
	}
}

func TestEqualIgnoresKindMismatch(t *testing.T) {
	drop := NewDropTable(NewEntityName("T"))
	dropFn := NewDropFunction(NewEntityName("T"))
	if drop.Equal(dropFn) {
		t.Fatalf("expected different kinds to differ")
	}
	if drop.Equal(nil) {
		t.Fatalf("expected nil to differ")
	}
}

func TestDropListsIgnoreRepeatedNames(t *testing.T) {
	pairs := [][2]string{
		{".drop tables (A, A)", ".drop tables (A)"},
		{".drop functions (F, G, F)", ".drop functions (G, F)"},
		{".drop table T columns (a, a)", ".drop table T columns (a)"},
	}
	for _, pair := range pairs {
		a, err := ParseCommand(pair[0])
		if err != nil {
			t.Fatalf("parse %q: %v", pair[0], err)
		}
		b, err := ParseCommand(pair[1])
		if err != nil {
			t.Fatalf("parse %q: %v", pair[1], err)
		}
		if !a.Equal(b) || a.Hash() != b.Hash() {
			t.Fatalf("expected %q and %q to be equal", pair[0], pair[1])
		}
	}
	a, _ := ParseCommand(".drop tables (A, A)")
	b, _ := ParseCommand(".drop tables (A, B)")
	if a.Equal(b) {
		t.Fatalf("expected different name sets to differ")
	}
}

func TestEntityNameScript(t *testing.T) {
	cases := map[string]string{
		"Events":   "Events",
		"_x1":      "_x1",
		"1abc":     "['1abc']",
		"my table": "['my table']",
		"table":    "['table']",
		"It's":     `['It\'s']`,
		`a\b`:      `['a\\b']`,
	}
	for name, want := range cases {
		if got := NewEntityName(name).Script(); got != want {
			t.Fatalf("%q: expected %s, got %s", name, want, got)
		}
	}
}

func TestQuotedTextScript(t *testing.T) {
	got := NewQuotedText("a \"b\"\n\\c").Script()
	want := `"a \"b\"\n\\c"`
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestQuotedTextRoundTripKeepsRawBytes(t *testing.T) {
	original := NewQuotedText("bad \xff byte \xc3 and é")
	cmd := NewCreateTable(NewEntityName("T"), []TableColumn{{Name: NewEntityName("a"), Type: TypeString}}, nil, &original)
	reparsed, err := ParseCommand(cmd.Script())
	if err != nil {
		t.Fatalf("parse %q: %v", cmd.Script(), err)
	}
	doc := reparsed.(*CreateTable).DocString
	if doc == nil || doc.Text() != original.Text() {
		t.Fatalf("expected doc string bytes %q, got %v", original.Text(), doc)
	}
}

func TestNewRetentionPolicyCommandsRejectUnknownEntity(t *testing.T) {
	if _, err := NewAlterRetentionPolicy(EntityType("cluster"), NewEntityName("c"), time.Hour, true); err == nil {
		t.Fatalf("expected error for unsupported entity type")
	}
	if _, err := NewDeleteRetentionPolicy(EntityType("cluster"), NewEntityName("c")); err == nil {
		t.Fatalf("expected error for unsupported entity type")
	}
}

func TestAlterRetentionPolicyScriptEmbedsJSON(t *testing.T) {
	cmd, err := NewAlterRetentionPolicy(EntityTypeDatabase, NewEntityName("Db"), DefaultSoftDelete, true)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	script := cmd.Script()
	if !strings.Contains(script, `"SoftDeletePeriod": "36500.00:00:00"`) || !strings.Contains(script, `"Recoverability": "Enabled"`) {
		t.Fatalf("unexpected script %s", script)
	}
	if len(SplitStatements(script)) != 1 {
		t.Fatalf("rendered policy must stay one statement")
	}
}

func TestKindFriendlyName(t *testing.T) {
	if KindCreateTable.FriendlyName() != ".create table" {
		t.Fatalf("unexpected friendly name %s", KindCreateTable.FriendlyName())
	}
	if Kind("other").FriendlyName() != "other" {
		t.Fatalf("expected unknown kinds to render as is")
	}
}
