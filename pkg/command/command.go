package command

import (
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Kind identifies a command variant.
type Kind string

const (
	KindCreateTable                     Kind = "create_table"
	KindCreateTables                    Kind = "create_tables"
	KindDropTable                       Kind = "drop_table"
	KindDropTables                      Kind = "drop_tables"
	KindDropTableColumns                Kind = "drop_table_columns"
	KindAlterMergeTableColumnDocStrings Kind = "alter_merge_table_column_docstrings"
	KindCreateFunction                  Kind = "create_function"
	KindDropFunction                    Kind = "drop_function"
	KindDropFunctions                   Kind = "drop_functions"
	KindAlterRetentionPolicy            Kind = "alter_retention_policy"
	KindDeleteRetentionPolicy           Kind = "delete_retention_policy"
)

var friendlyNames = map[Kind]string{
	KindCreateTable:                     ".create table",
	KindCreateTables:                    ".create tables",
	KindDropTable:                       ".drop table",
	KindDropTables:                      ".drop tables",
	KindDropTableColumns:                ".drop table columns",
	KindAlterMergeTableColumnDocStrings: ".alter-merge table column-docstrings",
	KindCreateFunction:                  ".create-or-alter function",
	KindDropFunction:                    ".drop function",
	KindDropFunctions:                   ".drop functions",
	KindAlterRetentionPolicy:            ".alter <entity> policy retention",
	KindDeleteRetentionPolicy:           ".delete <entity> policy retention",
}

// FriendlyName returns the command syntax the kind stands for.
func (k Kind) FriendlyName() string {
	if name, ok := friendlyNames[k]; ok {
		return name
	}
	return string(k)
}

// Kinds lists every command kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindCreateTable,
		KindCreateTables,
		KindDropTable,
		KindDropTables,
		KindDropTableColumns,
		KindAlterMergeTableColumnDocStrings,
		KindCreateFunction,
		KindDropFunction,
		KindDropFunctions,
		KindAlterRetentionPolicy,
		KindDeleteRetentionPolicy,
	}
}

// Command is one parsed control command. The set of implementations is closed
// to this package.
//
// Equal and Hash are both derived from the command's semantic key, which covers
// semantic fields only and never the original formatting, so equal commands
// always hash alike.
type Command interface {
	Kind() Kind
	// Script renders canonical text that parses back to an equal command.
	Script() string
	Equal(other Command) bool
	Hash() uint64

	semanticKey() string
}

func equalCommands(a, b Command) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.semanticKey() == b.semanticKey()
}

func hashCommand(c Command) uint64 {
	return xxh3.HashString(string(c.Kind()) + "\x00" + c.semanticKey())
}

// RenderScript renders commands in order, separated by blank lines.
func RenderScript(commands []Command) string {
	scripts := make([]string, 0, len(commands))
	for _, cmd := range commands {
		scripts = append(scripts, cmd.Script())
	}
	return strings.Join(scripts, "\n\n")
}

// keyWriter builds length-prefixed semantic keys.
type keyWriter struct {
	b strings.Builder
}

func (k *keyWriter) str(value string) {
	k.b.WriteString(strconv.Itoa(len(value)))
	k.b.WriteByte(':')
	k.b.WriteString(value)
}

func (k *keyWriter) name(n EntityName) {
	k.str(n.name)
}

func (k *keyWriter) text(q *QuotedText) {
	if q == nil {
		k.b.WriteByte('~')
		return
	}
	k.b.WriteByte('=')
	k.str(q.text)
}

func (k *keyWriter) flag(value bool) {
	if value {
		k.b.WriteByte('T')
		return
	}
	k.b.WriteByte('F')
}

// sortedNames writes names as a set: order and repeats are ignored.
func (k *keyWriter) sortedNames(names []EntityName) {
	values := make([]string, 0, len(names))
	for _, n := range names {
		values = append(values, n.name)
	}
	sort.Strings(values)
	k.b.WriteByte('[')
	for i, v := range values {
		if i > 0 && values[i-1] == v {
			continue
		}
		k.str(v)
	}
	k.b.WriteByte(']')
}

func (k *keyWriter) String() string {
	return k.b.String()
}

func cloneNames(names []EntityName) []EntityName {
	if names == nil {
		return nil
	}
	out := make([]EntityName, len(names))
	copy(out, names)
	return out
}

func renderNameList(names []EntityName) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n.Script())
	}
	return strings.Join(parts, ", ")
}
