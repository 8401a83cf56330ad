package model

import (
	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
)

// kindDelta holds the commands of one entity kind, split by change type.
type kindDelta struct {
	drops    []command.Command
	creates  []command.Command
	modifies []command.Command
}

// ComputeDelta returns the commands that turn current into target. Drops come
// first with dependents before dependencies (policies, functions, tables),
// then creates in the reverse order, then modifications. Within a kind, names
// are visited in sorted order.
func ComputeDelta(current, target *DatabaseModel) ([]command.Command, error) {
	if current == nil {
		current = Empty()
	}
	if target == nil {
		target = Empty()
	}
	tables := tableDelta(current, target)
	functions := functionDelta(current, target)
	policies, err := policyDelta(current, target)
	if err != nil {
		return nil, err
	}

	var out []command.Command
	out = append(out, policies.drops...)
	out = append(out, functions.drops...)
	out = append(out, tables.drops...)
	out = append(out, tables.creates...)
	out = append(out, functions.creates...)
	out = append(out, policies.creates...)
	out = append(out, tables.modifies...)
	out = append(out, functions.modifies...)
	out = append(out, policies.modifies...)
	return out, nil
}

func tableDelta(current, target *DatabaseModel) kindDelta {
	var d kindDelta
	for _, t := range current.Tables() {
		if _, ok := target.tables[t.name]; !ok {
			d.drops = append(d.drops, command.NewDropTable(t.name))
		}
	}
	for _, t := range target.Tables() {
		existing, ok := current.tables[t.name]
		switch {
		case !ok:
			d.creates = append(d.creates, t.CreateCommands()...)
		case !existing.Equal(t):
			d.modifies = append(d.modifies, t.CreateCommands()...)
		}
	}
	return d
}

func functionDelta(current, target *DatabaseModel) kindDelta {
	var d kindDelta
	for _, f := range current.Functions() {
		if _, ok := target.functions[f.name]; !ok {
			d.drops = append(d.drops, command.NewDropFunction(f.name))
		}
	}
	for _, f := range target.Functions() {
		existing, ok := current.functions[f.name]
		switch {
		case !ok:
			d.creates = append(d.creates, f.CreateCommand())
		case !existing.Equal(f):
			d.modifies = append(d.modifies, f.CreateCommand())
		}
	}
	return d
}

func policyDelta(current, target *DatabaseModel) (kindDelta, error) {
	var d kindDelta
	for _, p := range current.Policies() {
		key := p.Key()
		if _, ok := target.policies[key]; ok {
			continue
		}
		// Dropping the table already removes its policies.
		if key.EntityType == command.EntityTypeTable {
			if _, kept := target.tables[key.EntityName]; !kept {
				continue
			}
		}
		cmd, err := policyDropCommand(key)
		if err != nil {
			return kindDelta{}, err
		}
		d.drops = append(d.drops, cmd)
	}
	for _, p := range target.Policies() {
		existing, ok := current.policies[p.Key()]
		if ok && existing.Equal(p) {
			continue
		}
		cmd, err := policySetCommand(p)
		if err != nil {
			return kindDelta{}, err
		}
		if ok {
			d.modifies = append(d.modifies, cmd)
		} else {
			d.creates = append(d.creates, cmd)
		}
	}
	return d, nil
}

// policySetCommand renders a policy as a full replace.
func policySetCommand(p PolicyModel) (command.Command, error) {
	switch policy := p.(type) {
	case *RetentionPolicyModel:
		return policy.AlterCommand(), nil
	default:
		key := p.Key()
		return nil, &UnsupportedModificationError{Kind: string(key.Kind), Entity: key.String()}
	}
}

func policyDropCommand(key PolicyKey) (command.Command, error) {
	switch key.Kind {
	case PolicyKindRetention:
		return command.NewDeleteRetentionPolicy(key.EntityType, key.EntityName)
	default:
		return nil, &UnsupportedModificationError{Kind: string(key.Kind), Entity: key.String()}
	}
}

// DataLoss returns the commands of delta that would destroy data held by
// current: table drops, column drops and table re-creations that drop or
// retype existing columns.
func DataLoss(current *DatabaseModel, delta []command.Command) []command.Command {
	if current == nil {
		return nil
	}
	var lossy []command.Command
	for _, cmd := range delta {
		if losesData(current, cmd) {
			lossy = append(lossy, cmd)
		}
	}
	return lossy
}

func losesData(current *DatabaseModel, cmd command.Command) bool {
	switch c := cmd.(type) {
	case *command.DropTable:
		_, ok := current.tables[c.TableName]
		return ok
	case *command.DropTables:
		for _, name := range c.TableNames {
			if _, ok := current.tables[name]; ok {
				return true
			}
		}
		return false
	case *command.DropTableColumns:
		t, ok := current.tables[c.TableName]
		if !ok {
			return false
		}
		for _, name := range c.ColumnNames {
			if _, exists := t.Column(name); exists {
				return true
			}
		}
		return false
	case *command.CreateTable:
		return recreationLosesColumns(current, c.TableName, c.Columns)
	case *command.CreateTables:
		for _, entry := range c.Tables {
			if recreationLosesColumns(current, entry.TableName, entry.Columns) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func recreationLosesColumns(current *DatabaseModel, name command.EntityName, columns []command.TableColumn) bool {
	t, ok := current.tables[name]
	if !ok {
		return false
	}
	next := make(map[command.EntityName]string, len(columns))
	for _, col := range columns {
		next[col.Name] = col.Type
	}
	for _, col := range t.columns {
		colType, kept := next[col.Name]
		if !kept || colType != col.Type {
			return true
		}
	}
	return false
}
