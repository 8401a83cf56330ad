// Package snapshot holds the live-schema shape returned by a cluster for
// ".show database schema as json", plus the retention policies collected next
// to it.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ClusterSchema is the top-level document of ".show database schema as json".
type ClusterSchema struct {
	Databases map[string]*DatabaseSchema `json:"Databases"`
}

// DatabaseSchema describes one database.
type DatabaseSchema struct {
	Name      string                     `json:"Name"`
	Tables    map[string]*TableSchema    `json:"Tables,omitempty"`
	Functions map[string]*FunctionSchema `json:"Functions,omitempty"`
	// RetentionPolicies is filled from ".show ... policy retention" results.
	RetentionPolicies []RetentionPolicyRow `json:"RetentionPolicies,omitempty"`
}

// TableSchema describes one table.
type TableSchema struct {
	Name           string         `json:"Name"`
	Folder         string         `json:"Folder,omitempty"`
	DocString      string         `json:"DocString,omitempty"`
	OrderedColumns []ColumnSchema `json:"OrderedColumns"`
}

// ColumnSchema describes one column. CslType is preferred over the .NET Type.
type ColumnSchema struct {
	Name      string `json:"Name"`
	Type      string `json:"Type,omitempty"`
	CslType   string `json:"CslType,omitempty"`
	DocString string `json:"DocString,omitempty"`
}

// ColumnType returns the most specific type name available.
func (c ColumnSchema) ColumnType() string {
	if c.CslType != "" {
		return c.CslType
	}
	return c.Type
}

// FunctionSchema describes one stored function. Body includes the enclosing
// braces.
type FunctionSchema struct {
	Name            string            `json:"Name"`
	Body            string            `json:"Body"`
	Folder          string            `json:"Folder,omitempty"`
	DocString       string            `json:"DocString,omitempty"`
	InputParameters []ParameterSchema `json:"InputParameters,omitempty"`
}

// ParameterSchema describes a function parameter. Tabular parameters carry
// Columns (possibly empty) instead of a type.
type ParameterSchema struct {
	Name            string         `json:"Name"`
	Type            string         `json:"Type,omitempty"`
	CslType         string         `json:"CslType,omitempty"`
	CslDefaultValue *string        `json:"CslDefaultValue,omitempty"`
	Columns         []ColumnSchema `json:"Columns,omitempty"`
}

// IsTabular reports whether the parameter is a table parameter.
func (p ParameterSchema) IsTabular() bool {
	return p.Columns != nil
}

// ParameterType returns the most specific scalar type name available.
func (p ParameterSchema) ParameterType() string {
	if p.CslType != "" {
		return p.CslType
	}
	return p.Type
}

// RetentionPolicyRow is one row of ".show table * policy retention" or
// ".show database D policy retention". Policy is the JSON payload.
type RetentionPolicyRow struct {
	EntityName string `json:"EntityName"`
	EntityType string `json:"EntityType"`
	Policy     string `json:"Policy"`
}

// Empty returns a database schema without objects, used for absent sources.
func Empty(name string) *DatabaseSchema {
	return &DatabaseSchema{
		Name:      name,
		Tables:    map[string]*TableSchema{},
		Functions: map[string]*FunctionSchema{},
	}
}

// Decode parses a ".show database schema as json" document and returns the
// named database, or the only database when name is empty.
func Decode(data []byte, name string) (*DatabaseSchema, error) {
	var cluster ClusterSchema
	if err := json.Unmarshal(data, &cluster); err != nil {
		return nil, fmt.Errorf("decode database schema: %w", err)
	}
	if name != "" {
		db, ok := cluster.Databases[name]
		if !ok || db == nil {
			return Empty(name), nil
		}
		if db.Name == "" {
			db.Name = name
		}
		return db, nil
	}
	switch len(cluster.Databases) {
	case 0:
		return Empty(""), nil
	case 1:
		for key, db := range cluster.Databases {
			if db == nil {
				return Empty(key), nil
			}
			if db.Name == "" {
				db.Name = key
			}
			return db, nil
		}
	}
	names := make([]string, 0, len(cluster.Databases))
	for key := range cluster.Databases {
		names = append(names, key)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("decode database schema: %d databases %v, expected one", len(names), names)
}
