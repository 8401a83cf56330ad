package model

import (
	"testing"
	"time"

	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
)

func buildModel(t *testing.T, script string) *DatabaseModel {
	t.Helper()
	cmds, err := command.ParseScript(script)
	if err != nil {
		t.Fatalf("parse script: %v", err)
	}
	m, err := FromCommands(cmds)
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	return m
}

func ident(value string) command.EntityName {
	return command.NewEntityName(value)
}

func TestFromCommandsOrphanDocStringIsIgnored(t *testing.T) {
	m := buildModel(t, `.create table T (a:string)

.alter-merge table U column-docstrings (a:"doc")`)
	table, ok := m.Table(ident("T"))
	if !ok {
		t.Fatalf("expected table T")
	}
	for _, col := range table.Columns() {
		if col.DocString != nil {
			t.Fatalf("expected no doc strings, got %v on %s", col.DocString, col.Name)
		}
	}
	if _, ok := m.Table(ident("U")); ok {
		t.Fatalf("orphan doc strings must not create a table")
	}
}

func TestFromCommandsDocStringsFollowTheirTable(t *testing.T) {
	m := buildModel(t, `.create table T (a:string, b:long)

.alter-merge table T column-docstrings (a:"first", missing:"ignored")

.alter-merge table T column-docstrings (a:"second")`)
	table, _ := m.Table(ident("T"))
	col, ok := table.Column(ident("a"))
	if !ok || col.DocString == nil || col.DocString.Text() != "second" {
		t.Fatalf("expected last doc string to win, got %+v", col)
	}
	if len(table.Columns()) != 2 {
		t.Fatalf("unknown columns must not be added")
	}
}

func TestFromCommandsLastCreateWins(t *testing.T) {
	m := buildModel(t, `.create table T (a:string)

.alter-merge table T column-docstrings (a:"doc")

.create-merge table T (a:string, b:long) with (folder="f")`)
	want := buildModel(t, `.create table T (a:string, b:long) with (folder="f")`)
	if !m.Equal(want) {
		t.Fatalf("expected the later create to replace the table")
	}
}

func TestFromCommandsDrops(t *testing.T) {
	m := buildModel(t, `.create table T (a:string, b:long, c:int)

.create table U (x:string)

.create function F() { T }

.create function G() { U }

.drop table T columns (b, nosuch)

.drop table U

.drop tables (Nope)

.drop functions (F, Missing)`)
	want := buildModel(t, `.create table T (a:string, c:int)

.create function G() { U }`)
	if !m.Equal(want) {
		t.Fatalf("unexpected model after drops")
	}
}

func TestFromCommandsRetentionPolicies(t *testing.T) {
	m := buildModel(t, ".create table T (a:string)\n\n"+
		".alter table T policy retention '{\"SoftDeletePeriod\": \"7.00:00:00\"}'\n\n"+
		".alter table Missing policy retention '{}'\n\n"+
		".alter database Db policy retention '{\"Recoverability\": \"Disabled\"}'")
	policies := m.Policies()
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}
	key := PolicyKey{Kind: PolicyKindRetention, EntityType: command.EntityTypeTable, EntityName: ident("T")}
	p, ok := m.Policy(key)
	if !ok {
		t.Fatalf("expected table policy")
	}
	retention := p.(*RetentionPolicyModel)
	if retention.SoftDelete() != 7*24*time.Hour || !retention.Recoverability() {
		t.Fatalf("unexpected policy %+v", retention)
	}

	dropped, err := m.Apply(command.NewDropTable(ident("T")))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := dropped.Policy(key); ok {
		t.Fatalf("dropping a table must drop its policies")
	}

	deleteCmd, err := command.NewDeleteRetentionPolicy(command.EntityTypeDatabase, ident("Db"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	cleared, err := dropped.Apply(deleteCmd)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !cleared.IsEmpty() {
		t.Fatalf("expected empty model")
	}
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	base := buildModel(t, ".create table T (a:string)\n\n.create function F() { T }")
	before := buildModel(t, ".create table T (a:string)\n\n.create function F() { T }")
	next, err := base.Apply(
		command.NewDropTable(ident("T")),
		command.NewDropFunction(ident("F")),
		command.NewCreateTable(ident("U"), []command.TableColumn{{Name: ident("b"), Type: command.TypeLong}}, nil, nil),
	)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !base.Equal(before) {
		t.Fatalf("Apply modified its receiver")
	}
	if _, ok := next.Table(ident("U")); !ok {
		t.Fatalf("expected U in the new model")
	}
}

func TestEqualIgnoresColumnOrderAndEmptyTexts(t *testing.T) {
	a := buildModel(t, `.create table T (a:string, b:long) with (docstring="")`)
	b := buildModel(t, `.create table T (b:long, a:string)`)
	if !a.Equal(b) {
		t.Fatalf("expected column order and empty doc strings to be ignored")
	}
	c := buildModel(t, `.create table T (a:string, b:int)`)
	if a.Equal(c) {
		t.Fatalf("expected type change to be detected")
	}
}

func TestFromCommandsBulkCreate(t *testing.T) {
	m := buildModel(t, `.create tables A (x:string), B (y:long) with (folder="shared")`)
	want := buildModel(t, `.create table A (x:string) with (folder="shared")

.create table B (y:long) with (folder="shared")`)
	if !m.Equal(want) {
		t.Fatalf("expected bulk create to fold into one table per entry")
	}
}

func TestApplyRejectsNilCommand(t *testing.T) {
	if _, err := Empty().Apply(nil); err == nil {
		t.Fatalf("expected error for nil command")
	}
}

func TestAccessorsAreSorted(t *testing.T) {
	m := buildModel(t, ".create table C (a:string)\n\n.create table A (a:string)\n\n.create table B (a:string)")
	tables := m.Tables()
	if len(tables) != 3 || tables[0].Name().Name() != "A" || tables[2].Name().Name() != "C" {
		t.Fatalf("expected tables sorted by name")
	}
}
