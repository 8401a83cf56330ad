package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
	"github.com/JensKSuessmeyer/delta-kusto/pkg/snapshot"
)

// FromSnapshot projects a live schema snapshot onto the same model that
// FromCommands builds from scripts.
func FromSnapshot(schema *snapshot.DatabaseSchema) (*DatabaseModel, error) {
	b := newBuilder(nil)
	if schema == nil {
		return b.build(), nil
	}
	for _, key := range sortedKeys(schema.Tables) {
		t := schema.Tables[key]
		if t == nil {
			continue
		}
		table, err := tableFromSnapshot(key, t)
		if err != nil {
			return nil, err
		}
		b.tables[table.name] = table
	}
	for _, key := range sortedKeys(schema.Functions) {
		f := schema.Functions[key]
		if f == nil {
			continue
		}
		function, err := functionFromSnapshot(key, f)
		if err != nil {
			return nil, err
		}
		b.functions[function.name] = function
	}
	for _, row := range schema.RetentionPolicies {
		policy, err := retentionFromSnapshot(row, schema.Name)
		if err != nil {
			return nil, err
		}
		b.setPolicy(policy)
	}
	return b.build(), nil
}

func tableFromSnapshot(key string, t *snapshot.TableSchema) (*TableModel, error) {
	name := t.Name
	if name == "" {
		name = key
	}
	columns := make([]ColumnModel, 0, len(t.OrderedColumns))
	for _, col := range t.OrderedColumns {
		colType, err := command.NormalizeType(col.ColumnType())
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", name, col.Name, err)
		}
		columns = append(columns, ColumnModel{
			Name:      command.NewEntityName(col.Name),
			Type:      colType,
			DocString: textOrNil(col.DocString),
		})
	}
	return NewTableModel(command.NewEntityName(name), columns, textOrNil(t.Folder), textOrNil(t.DocString))
}

func functionFromSnapshot(key string, f *snapshot.FunctionSchema) (*FunctionModel, error) {
	name := f.Name
	if name == "" {
		name = key
	}
	params := make([]command.FunctionParameter, 0, len(f.InputParameters))
	for _, p := range f.InputParameters {
		param, err := parameterFromSnapshot(p)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", name, err)
		}
		params = append(params, param)
	}
	body := strings.TrimSpace(f.Body)
	if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
		body = body[1 : len(body)-1]
	}
	return NewFunctionModel(command.NewEntityName(name), params, body, textOrNil(f.Folder), textOrNil(f.DocString), false), nil
}

// parameterFromSnapshot maps a parameter. A tabular parameter without columns
// is read as the open schema "(*)"; with columns it is read as closed, and
// FunctionModel.Equal ignores the difference.
func parameterFromSnapshot(p snapshot.ParameterSchema) (command.FunctionParameter, error) {
	name := command.NewEntityName(p.Name)
	if p.IsTabular() {
		param := command.FunctionParameter{Name: name, Tabular: true, OpenSchema: len(p.Columns) == 0}
		for _, col := range p.Columns {
			colType, err := command.NormalizeType(col.ColumnType())
			if err != nil {
				return command.FunctionParameter{}, fmt.Errorf("parameter %s column %s: %w", p.Name, col.Name, err)
			}
			param.Columns = append(param.Columns, command.TableColumn{Name: command.NewEntityName(col.Name), Type: colType})
		}
		return param, nil
	}
	paramType, err := command.NormalizeType(p.ParameterType())
	if err != nil {
		return command.FunctionParameter{}, fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	param := command.FunctionParameter{Name: name, Type: paramType}
	if p.CslDefaultValue != nil {
		value := strings.TrimSpace(*p.CslDefaultValue)
		param.Default = &value
	}
	return param, nil
}

func retentionFromSnapshot(row snapshot.RetentionPolicyRow, database string) (*RetentionPolicyModel, error) {
	var entityType command.EntityType
	switch strings.ToLower(row.EntityType) {
	case "table":
		entityType = command.EntityTypeTable
	case "database", "":
		entityType = command.EntityTypeDatabase
	default:
		return nil, &command.UnsupportedCommandKindError{Keyword: "retention policy", Kind: "on entity type '" + row.EntityType + "'"}
	}
	entityName := policyEntityName(row.EntityName)
	if entityName == "" && entityType == command.EntityTypeDatabase {
		entityName = database
	}
	softDelete, recoverability, err := command.DecodeRetentionPolicy(row.Policy)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", entityType, entityName, err)
	}
	return NewRetentionPolicyModel(entityType, command.NewEntityName(entityName), softDelete, recoverability), nil
}

// policyEntityName extracts the entity from "[Db].[Table]" or "[Db]".
func policyEntityName(value string) string {
	parts := strings.Split(strings.TrimSpace(value), "].[")
	return strings.Trim(parts[len(parts)-1], "[]")
}

func textOrNil(value string) *command.QuotedText {
	if value == "" {
		return nil
	}
	return command.NewQuotedTextPtr(value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
