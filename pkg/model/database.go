package model

import (
	"errors"
	"fmt"
	"sort"

	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
)

// DatabaseModel is the order-independent object graph of a database. A model
// is never modified after construction; Apply returns a new model.
type DatabaseModel struct {
	tables    map[command.EntityName]*TableModel
	functions map[command.EntityName]*FunctionModel
	policies  map[PolicyKey]PolicyModel
}

// Empty returns a model without objects.
func Empty() *DatabaseModel {
	return newBuilder(nil).build()
}

// FromCommands folds commands, in order, starting from an empty model.
func FromCommands(cmds []command.Command) (*DatabaseModel, error) {
	return Empty().Apply(cmds...)
}

// Apply returns the model obtained by folding cmds on top of m.
func (m *DatabaseModel) Apply(cmds ...command.Command) (*DatabaseModel, error) {
	b := newBuilder(m)
	for i, cmd := range cmds {
		if err := b.apply(cmd); err != nil {
			return nil, fmt.Errorf("apply command %d: %w", i, err)
		}
	}
	return b.build(), nil
}

// Tables returns the tables sorted by name.
func (m *DatabaseModel) Tables() []*TableModel {
	out := make([]*TableModel, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name.Compare(out[j].name) < 0 })
	return out
}

// Functions returns the functions sorted by name.
func (m *DatabaseModel) Functions() []*FunctionModel {
	out := make([]*FunctionModel, 0, len(m.functions))
	for _, f := range m.functions {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name.Compare(out[j].name) < 0 })
	return out
}

// Policies returns the policies sorted by key.
func (m *DatabaseModel) Policies() []PolicyModel {
	out := make([]PolicyModel, 0, len(m.policies))
	for _, p := range m.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().compare(out[j].Key()) < 0 })
	return out
}

func (m *DatabaseModel) Table(name command.EntityName) (*TableModel, bool) {
	t, ok := m.tables[name]
	return t, ok
}

func (m *DatabaseModel) Function(name command.EntityName) (*FunctionModel, bool) {
	f, ok := m.functions[name]
	return f, ok
}

func (m *DatabaseModel) Policy(key PolicyKey) (PolicyModel, bool) {
	p, ok := m.policies[key]
	return p, ok
}

// IsEmpty reports whether the model holds no objects.
func (m *DatabaseModel) IsEmpty() bool {
	return len(m.tables) == 0 && len(m.functions) == 0 && len(m.policies) == 0
}

// Equal compares every object collection as a set.
func (m *DatabaseModel) Equal(other *DatabaseModel) bool {
	if m == nil || other == nil {
		return m == nil && other == nil
	}
	if len(m.tables) != len(other.tables) ||
		len(m.functions) != len(other.functions) ||
		len(m.policies) != len(other.policies) {
		return false
	}
	for name, t := range m.tables {
		if !t.Equal(other.tables[name]) {
			return false
		}
	}
	for name, f := range m.functions {
		if !f.Equal(other.functions[name]) {
			return false
		}
	}
	for key, p := range m.policies {
		o, ok := other.policies[key]
		if !ok || !p.Equal(o) {
			return false
		}
	}
	return true
}

// builder accumulates a fold. It copies the base maps so the base model is
// left untouched; object models are immutable and shared.
type builder struct {
	tables    map[command.EntityName]*TableModel
	functions map[command.EntityName]*FunctionModel
	policies  map[PolicyKey]PolicyModel
}

func newBuilder(base *DatabaseModel) *builder {
	b := &builder{
		tables:    map[command.EntityName]*TableModel{},
		functions: map[command.EntityName]*FunctionModel{},
		policies:  map[PolicyKey]PolicyModel{},
	}
	if base == nil {
		return b
	}
	for k, v := range base.tables {
		b.tables[k] = v
	}
	for k, v := range base.functions {
		b.functions[k] = v
	}
	for k, v := range base.policies {
		b.policies[k] = v
	}
	return b
}

func (b *builder) build() *DatabaseModel {
	return &DatabaseModel{tables: b.tables, functions: b.functions, policies: b.policies}
}

func (b *builder) apply(cmd command.Command) error {
	if cmd == nil {
		return errors.New("nil command")
	}
	switch c := cmd.(type) {
	case *command.CreateTable:
		return b.createTable(c.TableName, c.Columns, c.Folder, c.DocString)
	case *command.CreateTables:
		for _, t := range c.Tables {
			if err := b.createTable(t.TableName, t.Columns, c.Folder, c.DocString); err != nil {
				return err
			}
		}
		return nil
	case *command.AlterMergeTableColumnDocStrings:
		// Doc strings for a table not created yet are dropped.
		if t, ok := b.tables[c.TableName]; ok {
			b.tables[c.TableName] = t.withColumnDocStrings(c.Columns)
		}
		return nil
	case *command.DropTable:
		b.dropTable(c.TableName)
		return nil
	case *command.DropTables:
		for _, name := range c.TableNames {
			b.dropTable(name)
		}
		return nil
	case *command.DropTableColumns:
		if t, ok := b.tables[c.TableName]; ok {
			b.tables[c.TableName] = t.withoutColumns(c.ColumnNames)
		}
		return nil
	case *command.CreateFunction:
		b.functions[c.FunctionName] = functionFromCommand(c)
		return nil
	case *command.DropFunction:
		delete(b.functions, c.FunctionName)
		return nil
	case *command.DropFunctions:
		for _, name := range c.FunctionNames {
			delete(b.functions, name)
		}
		return nil
	case *command.AlterRetentionPolicy:
		b.setPolicy(NewRetentionPolicyModel(c.EntityType, c.EntityName, c.SoftDelete, c.Recoverability))
		return nil
	case *command.DeleteRetentionPolicy:
		delete(b.policies, PolicyKey{Kind: PolicyKindRetention, EntityType: c.EntityType, EntityName: c.EntityName})
		return nil
	default:
		return &command.UnsupportedCommandKindError{Keyword: "fold", Kind: string(cmd.Kind())}
	}
}

func (b *builder) createTable(name command.EntityName, columns []command.TableColumn, folder, docString *command.QuotedText) error {
	t, err := tableFromColumns(name, columns, folder, docString)
	if err != nil {
		return err
	}
	b.tables[name] = t
	return nil
}

// dropTable removes a table together with its table-level policies.
func (b *builder) dropTable(name command.EntityName) {
	delete(b.tables, name)
	for key := range b.policies {
		if key.EntityType == command.EntityTypeTable && key.EntityName == name {
			delete(b.policies, key)
		}
	}
}

// setPolicy stores a policy; a table policy for a table that doesn't exist yet
// is dropped, like orphan doc strings.
func (b *builder) setPolicy(p PolicyModel) {
	key := p.Key()
	if key.EntityType == command.EntityTypeTable {
		if _, ok := b.tables[key.EntityName]; !ok {
			return
		}
	}
	b.policies[key] = p
}
