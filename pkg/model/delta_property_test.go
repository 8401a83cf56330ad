package model

import (
	"testing"
	"time"

	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
	"pgregory.net/rapid"
)

var (
	tablePool    = []string{"Events", "Logs", "Metrics", "table", "my table"}
	functionPool = []string{"Top", "Recent", "with space"}
	columnPool   = []string{"a", "b", "c", "Timestamp"}
)

func drawTableCommands(t *rapid.T, table string) []command.Command {
	var columns []command.TableColumn
	var docs []command.ColumnDocString
	for _, col := range columnPool {
		if !rapid.Bool().Draw(t, table+"_"+col) {
			continue
		}
		columns = append(columns, command.TableColumn{
			Name: command.NewEntityName(col),
			Type: rapid.SampledFrom(command.PrimitiveTypes()).Draw(t, table+"_"+col+"_type"),
		})
		if rapid.Bool().Draw(t, table+"_"+col+"_doc") {
			docs = append(docs, command.ColumnDocString{
				ColumnName: command.NewEntityName(col),
				DocString:  command.NewQuotedText(rapid.SampledFrom([]string{"id", "when", "note"}).Draw(t, "doc")),
			})
		}
	}
	if len(columns) == 0 {
		columns = append(columns, command.TableColumn{Name: command.NewEntityName("id"), Type: command.TypeLong})
	}
	var folder *command.QuotedText
	if rapid.Bool().Draw(t, table+"_folder") {
		folder = command.NewQuotedTextPtr(rapid.SampledFrom([]string{"raw", "curated"}).Draw(t, "folder"))
	}
	cmds := []command.Command{command.NewCreateTable(command.NewEntityName(table), columns, folder, nil)}
	if len(docs) > 0 {
		cmds = append(cmds, command.NewAlterMergeTableColumnDocStrings(command.NewEntityName(table), docs))
	}
	if rapid.Bool().Draw(t, table+"_policy") {
		days := rapid.IntRange(1, 400).Draw(t, table+"_days")
		policy, err := command.NewAlterRetentionPolicy(command.EntityTypeTable, command.NewEntityName(table),
			time.Duration(days)*24*time.Hour, rapid.Bool().Draw(t, table+"_recoverable"))
		if err != nil {
			t.Fatalf("policy: %v", err)
		}
		cmds = append(cmds, policy)
	}
	return cmds
}

func drawFunctionCommand(t *rapid.T, function string) command.Command {
	var params []command.FunctionParameter
	if rapid.Bool().Draw(t, function+"_param") {
		params = append(params, command.FunctionParameter{Name: command.NewEntityName("n"), Type: command.TypeLong})
	}
	body := rapid.SampledFrom([]string{"Events | take 1", "Logs\n| count", "print 1"}).Draw(t, function+"_body")
	return command.NewCreateFunction(command.NewEntityName(function), params, body, nil, nil, false)
}

// drawEntityScripts returns one independent command group per entity.
func drawEntityScripts(t *rapid.T, label string) [][]command.Command {
	var groups [][]command.Command
	for _, table := range tablePool {
		if rapid.Bool().Draw(t, label+"_"+table) {
			groups = append(groups, drawTableCommands(t, table))
		}
	}
	for _, function := range functionPool {
		if rapid.Bool().Draw(t, label+"_"+function) {
			groups = append(groups, []command.Command{drawFunctionCommand(t, function)})
		}
	}
	if rapid.Bool().Draw(t, label+"_database_policy") {
		days := rapid.IntRange(1, 400).Draw(t, label+"_database_days")
		policy, err := command.NewAlterRetentionPolicy(command.EntityTypeDatabase, command.NewEntityName("Db"),
			time.Duration(days)*24*time.Hour, true)
		if err != nil {
			t.Fatalf("policy: %v", err)
		}
		groups = append(groups, []command.Command{policy})
	}
	return groups
}

func flatten(groups [][]command.Command) []command.Command {
	var out []command.Command
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func drawModel(t *rapid.T, label string) *DatabaseModel {
	m, err := FromCommands(flatten(drawEntityScripts(t, label)))
	if err != nil {
		t.Fatalf("build %s: %v", label, err)
	}
	return m
}

func TestDeltaOfModelWithItselfIsEmptyRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := drawModel(t, "model")
		delta, err := ComputeDelta(m, m)
		if err != nil {
			t.Fatalf("compute delta: %v", err)
		}
		if len(delta) != 0 {
			t.Fatalf("expected empty delta, got:\n%s", command.RenderScript(delta))
		}
	})
}

func TestDeltaReachesTargetRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := drawModel(t, "current")
		target := drawModel(t, "target")
		delta, err := ComputeDelta(current, target)
		if err != nil {
			t.Fatalf("compute delta: %v", err)
		}
		applied, err := current.Apply(delta...)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if !applied.Equal(target) {
			t.Fatalf("delta does not reach target:\n%s", command.RenderScript(delta))
		}

		// The rendered delta must survive a text round trip too.
		reparsed, err := command.ParseScript(command.RenderScript(delta))
		if err != nil {
			t.Fatalf("reparse delta: %v", err)
		}
		viaText, err := current.Apply(reparsed...)
		if err != nil {
			t.Fatalf("apply reparsed: %v", err)
		}
		if !viaText.Equal(target) {
			t.Fatalf("reparsed delta does not reach target")
		}
	})
}

func TestAggregationIsOrderIndependentRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		groups := drawEntityScripts(t, "model")
		shuffled := make([][]command.Command, len(groups))
		perm := rapid.Permutation(indexes(len(groups))).Draw(t, "perm")
		for i, j := range perm {
			shuffled[i] = groups[j]
		}
		a, err := FromCommands(flatten(groups))
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		b, err := FromCommands(flatten(shuffled))
		if err != nil {
			t.Fatalf("build shuffled: %v", err)
		}
		if !a.Equal(b) {
			t.Fatalf("expected permuted scripts to build equal models")
		}
	})
}

func TestDeltaDropsPrecedeCreatesPerKindRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		delta, err := ComputeDelta(drawModel(t, "current"), drawModel(t, "target"))
		if err != nil {
			t.Fatalf("compute delta: %v", err)
		}
		lastDrop := map[string]int{}
		firstCreate := map[string]int{}
		for i, cmd := range delta {
			family, drop := classify(cmd)
			if drop {
				lastDrop[family] = i
			} else if _, seen := firstCreate[family]; !seen {
				firstCreate[family] = i
			}
		}
		for family, drop := range lastDrop {
			if create, ok := firstCreate[family]; ok && create < drop {
				t.Fatalf("%s: create at %d precedes drop at %d", family, create, drop)
			}
		}
	})
}

func classify(cmd command.Command) (family string, drop bool) {
	switch cmd.Kind() {
	case command.KindDropTable, command.KindDropTables, command.KindDropTableColumns:
		return "table", true
	case command.KindCreateTable, command.KindCreateTables, command.KindAlterMergeTableColumnDocStrings:
		return "table", false
	case command.KindDropFunction, command.KindDropFunctions:
		return "function", true
	case command.KindCreateFunction:
		return "function", false
	case command.KindDeleteRetentionPolicy:
		return "policy", true
	default:
		return "policy", false
	}
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
