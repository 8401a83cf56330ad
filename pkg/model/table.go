package model

import (
	"fmt"
	"sort"

	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
)

// ColumnModel is a table column with its optional documentation.
type ColumnModel struct {
	Name      command.EntityName
	Type      string
	DocString *command.QuotedText
}

// Equal compares name, type and doc string.
func (c ColumnModel) Equal(other ColumnModel) bool {
	return c.Name == other.Name && c.Type == other.Type && command.EqualText(c.DocString, other.DocString)
}

// TableModel is the folded state of one table. Column order is kept for
// rendering but ignored by Equal.
type TableModel struct {
	name      command.EntityName
	columns   []ColumnModel
	folder    *command.QuotedText
	docString *command.QuotedText
}

// NewTableModel validates column uniqueness and normalizes empty texts away.
func NewTableModel(name command.EntityName, columns []ColumnModel, folder, docString *command.QuotedText) (*TableModel, error) {
	seen := make(map[command.EntityName]struct{}, len(columns))
	out := make([]ColumnModel, 0, len(columns))
	for _, col := range columns {
		if _, dup := seen[col.Name]; dup {
			return nil, fmt.Errorf("table %s: column %s is declared twice", name.Script(), col.Name.Script())
		}
		seen[col.Name] = struct{}{}
		col.DocString = normalizeText(col.DocString)
		out = append(out, col)
	}
	return &TableModel{
		name:      name,
		columns:   out,
		folder:    normalizeText(folder),
		docString: normalizeText(docString),
	}, nil
}

func (t *TableModel) Name() command.EntityName { return t.name }

// Columns returns a copy of the columns in declaration order.
func (t *TableModel) Columns() []ColumnModel {
	out := make([]ColumnModel, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *TableModel) Folder() *command.QuotedText    { return t.folder }
func (t *TableModel) DocString() *command.QuotedText { return t.docString }

// Column looks up a column by name.
func (t *TableModel) Column(name command.EntityName) (ColumnModel, bool) {
	for _, col := range t.columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnModel{}, false
}

// Equal compares tables structurally, ignoring column order.
func (t *TableModel) Equal(other *TableModel) bool {
	if t == nil || other == nil {
		return t == nil && other == nil
	}
	if t.name != other.name || len(t.columns) != len(other.columns) ||
		!command.EqualText(t.folder, other.folder) || !command.EqualText(t.docString, other.docString) {
		return false
	}
	mine := sortedColumns(t.columns)
	theirs := sortedColumns(other.columns)
	for i := range mine {
		if !mine[i].Equal(theirs[i]) {
			return false
		}
	}
	return true
}

func sortedColumns(columns []ColumnModel) []ColumnModel {
	out := make([]ColumnModel, len(columns))
	copy(out, columns)
	sort.Slice(out, func(i, j int) bool { return out[i].Name.Compare(out[j].Name) < 0 })
	return out
}

// withColumnDocStrings returns a copy with doc strings merged onto existing
// columns; unknown columns are ignored.
func (t *TableModel) withColumnDocStrings(docs []command.ColumnDocString) *TableModel {
	out := *t
	out.columns = t.Columns()
	for _, doc := range docs {
		for i := range out.columns {
			if out.columns[i].Name == doc.ColumnName {
				text := doc.DocString
				out.columns[i].DocString = normalizeText(&text)
			}
		}
	}
	return &out
}

// withoutColumns returns a copy without the named columns.
func (t *TableModel) withoutColumns(names []command.EntityName) *TableModel {
	drop := make(map[command.EntityName]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := *t
	out.columns = make([]ColumnModel, 0, len(t.columns))
	for _, col := range t.columns {
		if _, ok := drop[col.Name]; !ok {
			out.columns = append(out.columns, col)
		}
	}
	return &out
}

// CreateCommands renders the table as a create command followed, when any
// column is documented, by a column doc-string command.
func (t *TableModel) CreateCommands() []command.Command {
	columns := make([]command.TableColumn, 0, len(t.columns))
	var docs []command.ColumnDocString
	for _, col := range t.columns {
		columns = append(columns, command.TableColumn{Name: col.Name, Type: col.Type})
		if col.DocString != nil {
			docs = append(docs, command.ColumnDocString{ColumnName: col.Name, DocString: *col.DocString})
		}
	}
	cmds := []command.Command{command.NewCreateTable(t.name, columns, t.folder, t.docString)}
	if len(docs) > 0 {
		cmds = append(cmds, command.NewAlterMergeTableColumnDocStrings(t.name, docs))
	}
	return cmds
}

func tableFromColumns(name command.EntityName, columns []command.TableColumn, folder, docString *command.QuotedText) (*TableModel, error) {
	models := make([]ColumnModel, 0, len(columns))
	for _, col := range columns {
		models = append(models, ColumnModel{Name: col.Name, Type: col.Type})
	}
	return NewTableModel(name, models, folder, docString)
}

func normalizeText(q *command.QuotedText) *command.QuotedText {
	if q == nil || q.Text() == "" {
		return nil
	}
	c := *q
	return &c
}
