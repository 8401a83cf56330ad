package command

import (
	"fmt"
	"sort"
	"strings"
)

// TableColumn is a column declaration inside a table command.
type TableColumn struct {
	Name EntityName
	Type string
}

func (c TableColumn) script() string {
	return c.Name.Script() + ":" + c.Type
}

func cloneColumns(columns []TableColumn) []TableColumn {
	if columns == nil {
		return nil
	}
	out := make([]TableColumn, len(columns))
	copy(out, columns)
	return out
}

func writeColumns(k *keyWriter, columns []TableColumn) {
	k.b.WriteByte('(')
	for _, col := range columns {
		k.name(col.Name)
		k.str(col.Type)
	}
	k.b.WriteByte(')')
}

func renderColumns(columns []TableColumn) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col.script())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func renderWith(props ...withProperty) string {
	parts := make([]string, 0, len(props))
	for _, p := range props {
		if p.value == nil {
			continue
		}
		parts = append(parts, p.name+"="+p.value.Script())
	}
	if len(parts) == 0 {
		return ""
	}
	return " with (" + strings.Join(parts, ", ") + ")"
}

type withProperty struct {
	name  string
	value *QuotedText
}

// CreateTable models ".create table T (a:string) with (folder=..., docstring=...)".
type CreateTable struct {
	TableName EntityName
	Columns   []TableColumn
	Folder    *QuotedText
	DocString *QuotedText
}

// NewCreateTable copies its inputs into a new command.
func NewCreateTable(name EntityName, columns []TableColumn, folder, docString *QuotedText) *CreateTable {
	return &CreateTable{
		TableName: name,
		Columns:   cloneColumns(columns),
		Folder:    cloneText(folder),
		DocString: cloneText(docString),
	}
}

func (c *CreateTable) Kind() Kind               { return KindCreateTable }
func (c *CreateTable) Equal(other Command) bool { return equalCommands(c, other) }
func (c *CreateTable) Hash() uint64             { return hashCommand(c) }
func (c *CreateTable) String() string           { return c.Script() }

func (c *CreateTable) Script() string {
	return ".create table " + c.TableName.Script() + " " + renderColumns(c.Columns) +
		renderWith(withProperty{"docstring", c.DocString}, withProperty{"folder", c.Folder})
}

func (c *CreateTable) semanticKey() string {
	var k keyWriter
	k.name(c.TableName)
	writeColumns(&k, c.Columns)
	k.text(c.Folder)
	k.text(c.DocString)
	return k.String()
}

// CreateTablesEntry is one table of a bulk create.
type CreateTablesEntry struct {
	TableName EntityName
	Columns   []TableColumn
}

// CreateTables models ".create tables T1 (a:string), T2 (b:long) with (...)".
type CreateTables struct {
	Tables    []CreateTablesEntry
	Folder    *QuotedText
	DocString *QuotedText
}

func (c *CreateTables) Kind() Kind               { return KindCreateTables }
func (c *CreateTables) Equal(other Command) bool { return equalCommands(c, other) }
func (c *CreateTables) Hash() uint64             { return hashCommand(c) }
func (c *CreateTables) String() string           { return c.Script() }

func (c *CreateTables) Script() string {
	parts := make([]string, 0, len(c.Tables))
	for _, t := range c.Tables {
		parts = append(parts, t.TableName.Script()+" "+renderColumns(t.Columns))
	}
	return ".create tables " + strings.Join(parts, ", ") +
		renderWith(withProperty{"docstring", c.DocString}, withProperty{"folder", c.Folder})
}

func (c *CreateTables) semanticKey() string {
	tables := make([]CreateTablesEntry, len(c.Tables))
	copy(tables, c.Tables)
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].TableName.Compare(tables[j].TableName) < 0
	})
	var k keyWriter
	for _, t := range tables {
		k.name(t.TableName)
		writeColumns(&k, t.Columns)
	}
	k.text(c.Folder)
	k.text(c.DocString)
	return k.String()
}

// DropTable models ".drop table T ifexists".
type DropTable struct {
	TableName EntityName
}

func NewDropTable(name EntityName) *DropTable {
	return &DropTable{TableName: name}
}

func (c *DropTable) Kind() Kind               { return KindDropTable }
func (c *DropTable) Equal(other Command) bool { return equalCommands(c, other) }
func (c *DropTable) Hash() uint64             { return hashCommand(c) }
func (c *DropTable) String() string           { return c.Script() }

func (c *DropTable) Script() string {
	return ".drop table " + c.TableName.Script() + " ifexists"
}

func (c *DropTable) semanticKey() string {
	var k keyWriter
	k.name(c.TableName)
	return k.String()
}

// DropTables models ".drop tables (T1, T2) ifexists".
type DropTables struct {
	TableNames []EntityName
}

func (c *DropTables) Kind() Kind               { return KindDropTables }
func (c *DropTables) Equal(other Command) bool { return equalCommands(c, other) }
func (c *DropTables) Hash() uint64             { return hashCommand(c) }
func (c *DropTables) String() string           { return c.Script() }

func (c *DropTables) Script() string {
	return ".drop tables (" + renderNameList(c.TableNames) + ") ifexists"
}

func (c *DropTables) semanticKey() string {
	var k keyWriter
	k.sortedNames(c.TableNames)
	return k.String()
}

// DropTableColumns models ".drop table T columns (a, b)".
type DropTableColumns struct {
	TableName   EntityName
	ColumnNames []EntityName
}

func NewDropTableColumns(table EntityName, columns []EntityName) *DropTableColumns {
	return &DropTableColumns{TableName: table, ColumnNames: cloneNames(columns)}
}

func (c *DropTableColumns) Kind() Kind               { return KindDropTableColumns }
func (c *DropTableColumns) Equal(other Command) bool { return equalCommands(c, other) }
func (c *DropTableColumns) Hash() uint64             { return hashCommand(c) }
func (c *DropTableColumns) String() string           { return c.Script() }

func (c *DropTableColumns) Script() string {
	return ".drop table " + c.TableName.Script() + " columns (" + renderNameList(c.ColumnNames) + ")"
}

func (c *DropTableColumns) semanticKey() string {
	var k keyWriter
	k.name(c.TableName)
	k.sortedNames(c.ColumnNames)
	return k.String()
}

// ColumnDocString pairs a column with its documentation.
type ColumnDocString struct {
	ColumnName EntityName
	DocString  QuotedText
}

// AlterMergeTableColumnDocStrings models
// ".alter-merge table T column-docstrings (a:"doc", b:"doc")".
type AlterMergeTableColumnDocStrings struct {
	TableName EntityName
	Columns   []ColumnDocString
}

func NewAlterMergeTableColumnDocStrings(table EntityName, columns []ColumnDocString) *AlterMergeTableColumnDocStrings {
	out := make([]ColumnDocString, len(columns))
	copy(out, columns)
	return &AlterMergeTableColumnDocStrings{TableName: table, Columns: out}
}

func (c *AlterMergeTableColumnDocStrings) Kind() Kind {
	return KindAlterMergeTableColumnDocStrings
}
func (c *AlterMergeTableColumnDocStrings) Equal(other Command) bool { return equalCommands(c, other) }
func (c *AlterMergeTableColumnDocStrings) Hash() uint64             { return hashCommand(c) }
func (c *AlterMergeTableColumnDocStrings) String() string           { return c.Script() }

func (c *AlterMergeTableColumnDocStrings) Script() string {
	parts := make([]string, 0, len(c.Columns))
	for _, col := range c.Columns {
		parts = append(parts, col.ColumnName.Script()+":"+col.DocString.Script())
	}
	return ".alter-merge table " + c.TableName.Script() + " column-docstrings (" + strings.Join(parts, ", ") + ")"
}

func (c *AlterMergeTableColumnDocStrings) semanticKey() string {
	// Later entries win for a repeated column, so only the effective doc string
	// per column is semantic.
	effective := make(map[string]string, len(c.Columns))
	for _, col := range c.Columns {
		effective[col.ColumnName.name] = col.DocString.text
	}
	names := make([]string, 0, len(effective))
	for name := range effective {
		names = append(names, name)
	}
	sort.Strings(names)
	var k keyWriter
	k.name(c.TableName)
	for _, name := range names {
		k.str(name)
		k.str(effective[name])
	}
	return k.String()
}

func parseColumns(s *scanner) ([]TableColumn, error) {
	if err := s.expect('('); err != nil {
		return nil, err
	}
	seen := map[EntityName]struct{}{}
	var columns []TableColumn
	for {
		name, err := s.name()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("column %s is declared twice", name.Script())
		}
		seen[name] = struct{}{}
		if err := s.expect(':'); err != nil {
			return nil, err
		}
		colType, err := s.typeName()
		if err != nil {
			return nil, err
		}
		columns = append(columns, TableColumn{Name: name, Type: colType})
		if s.accept(',') {
			continue
		}
		if err := s.expect(')'); err != nil {
			return nil, err
		}
		return columns, nil
	}
}

// parseWith parses an optional "with (key=value, ...)" clause restricted to the
// given property names.
func parseWith(s *scanner, allowed ...string) (map[string]QuotedText, error) {
	props := map[string]QuotedText{}
	if !s.acceptWord("with") {
		return props, nil
	}
	if err := s.expect('('); err != nil {
		return nil, err
	}
	for {
		key := strings.ToLower(s.word())
		if key == "" {
			return nil, s.errorf("expected a property name")
		}
		known := false
		for _, a := range allowed {
			if key == a {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unsupported property '%s'", key)
		}
		if err := s.expect('='); err != nil {
			return nil, err
		}
		var value QuotedText
		switch s.peek() {
		case '"', '\'', '@':
			v, err := s.quoted()
			if err != nil {
				return nil, err
			}
			value = v
		default:
			word := s.word()
			if word == "" {
				return nil, s.errorf("expected a property value")
			}
			value = NewQuotedText(word)
		}
		props[key] = value
		if s.accept(',') {
			continue
		}
		if err := s.expect(')'); err != nil {
			return nil, err
		}
		return props, nil
	}
}

func optionalProperty(props map[string]QuotedText, key string) *QuotedText {
	if v, ok := props[key]; ok {
		return &v
	}
	return nil
}

func parseCreateTable(s *scanner) (Command, error) {
	name, err := s.name()
	if err != nil {
		return nil, err
	}
	columns, err := parseColumns(s)
	if err != nil {
		return nil, err
	}
	props, err := parseWith(s, "folder", "docstring")
	if err != nil {
		return nil, err
	}
	return &CreateTable{
		TableName: name,
		Columns:   columns,
		Folder:    optionalProperty(props, "folder"),
		DocString: optionalProperty(props, "docstring"),
	}, nil
}

func parseCreateTables(s *scanner) (Command, error) {
	var tables []CreateTablesEntry
	seen := map[EntityName]struct{}{}
	for {
		name, err := s.name()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("table %s is declared twice", name.Script())
		}
		seen[name] = struct{}{}
		columns, err := parseColumns(s)
		if err != nil {
			return nil, err
		}
		tables = append(tables, CreateTablesEntry{TableName: name, Columns: columns})
		if !s.accept(',') {
			break
		}
	}
	props, err := parseWith(s, "folder", "docstring")
	if err != nil {
		return nil, err
	}
	return &CreateTables{
		Tables:    tables,
		Folder:    optionalProperty(props, "folder"),
		DocString: optionalProperty(props, "docstring"),
	}, nil
}

func parseDropTable(s *scanner) (Command, error) {
	name, err := s.name()
	if err != nil {
		return nil, err
	}
	if s.acceptWord("columns") {
		columns, err := s.nameList()
		if err != nil {
			return nil, err
		}
		return &DropTableColumns{TableName: name, ColumnNames: columns}, nil
	}
	s.acceptWord("ifexists")
	return &DropTable{TableName: name}, nil
}

func parseDropTables(s *scanner) (Command, error) {
	names, err := s.nameList()
	if err != nil {
		return nil, err
	}
	s.acceptWord("ifexists")
	return &DropTables{TableNames: names}, nil
}

func parseColumnDocStrings(s *scanner, table EntityName) (Command, error) {
	if err := s.expect('('); err != nil {
		return nil, err
	}
	var columns []ColumnDocString
	for {
		name, err := s.name()
		if err != nil {
			return nil, err
		}
		if err := s.expect(':'); err != nil {
			return nil, err
		}
		doc, err := s.quoted()
		if err != nil {
			return nil, err
		}
		columns = append(columns, ColumnDocString{ColumnName: name, DocString: doc})
		if s.accept(',') {
			continue
		}
		if err := s.expect(')'); err != nil {
			return nil, err
		}
		return &AlterMergeTableColumnDocStrings{TableName: table, Columns: columns}, nil
	}
}
