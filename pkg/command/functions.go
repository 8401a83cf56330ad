package command

import (
	"fmt"
	"strings"
)

// FunctionParameter is a scalar ("x:long = 5") or tabular ("T:(a:string, *)")
// function parameter.
type FunctionParameter struct {
	Name EntityName
	// Type is the scalar type; empty for tabular parameters.
	Type string
	// Default is the raw default value literal, if any.
	Default *string
	// Tabular parameters declare Columns and may accept extra columns.
	Tabular    bool
	Columns    []TableColumn
	OpenSchema bool
}

func (p FunctionParameter) script() string {
	if !p.Tabular {
		out := p.Name.Script() + ":" + p.Type
		if p.Default != nil {
			out += " = " + *p.Default
		}
		return out
	}
	parts := make([]string, 0, len(p.Columns)+1)
	for _, col := range p.Columns {
		parts = append(parts, col.script())
	}
	if p.OpenSchema {
		parts = append(parts, "*")
	}
	return p.Name.Script() + ":(" + strings.Join(parts, ", ") + ")"
}

func (p FunctionParameter) writeKey(k *keyWriter) {
	k.name(p.Name)
	k.flag(p.Tabular)
	if p.Tabular {
		writeColumns(k, p.Columns)
		k.flag(p.OpenSchema)
		return
	}
	k.str(p.Type)
	if p.Default == nil {
		k.b.WriteByte('~')
	} else {
		k.str(*p.Default)
	}
}

// EqualParameters compares parameter lists; order is significant.
func EqualParameters(a, b []FunctionParameter) bool {
	var ka, kb keyWriter
	for _, p := range a {
		p.writeKey(&ka)
	}
	for _, p := range b {
		p.writeKey(&kb)
	}
	return len(a) == len(b) && ka.String() == kb.String()
}

// CloneParameters deep-copies a parameter list.
func CloneParameters(params []FunctionParameter) []FunctionParameter {
	if params == nil {
		return nil
	}
	out := make([]FunctionParameter, len(params))
	for i, p := range params {
		out[i] = p
		out[i].Columns = cloneColumns(p.Columns)
		if p.Default != nil {
			d := *p.Default
			out[i].Default = &d
		}
	}
	return out
}

// NormalizeBody trims every line of a function body and drops blank lines, so
// that bodies compare equal regardless of indentation and survive blank-line
// statement splitting.
func NormalizeBody(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}

// CreateFunction models ".create function", ".create-or-alter function" and
// ".alter function", which all define a function in full.
type CreateFunction struct {
	FunctionName   EntityName
	Parameters     []FunctionParameter
	Body           string
	Folder         *QuotedText
	DocString      *QuotedText
	SkipValidation bool
}

// NewCreateFunction copies its inputs and normalizes the body.
func NewCreateFunction(name EntityName, params []FunctionParameter, body string, folder, docString *QuotedText, skipValidation bool) *CreateFunction {
	return &CreateFunction{
		FunctionName:   name,
		Parameters:     CloneParameters(params),
		Body:           NormalizeBody(body),
		Folder:         cloneText(folder),
		DocString:      cloneText(docString),
		SkipValidation: skipValidation,
	}
}

func (c *CreateFunction) Kind() Kind               { return KindCreateFunction }
func (c *CreateFunction) Equal(other Command) bool { return equalCommands(c, other) }
func (c *CreateFunction) Hash() uint64             { return hashCommand(c) }
func (c *CreateFunction) String() string           { return c.Script() }

func (c *CreateFunction) Script() string {
	var skip *QuotedText
	if c.SkipValidation {
		skip = NewQuotedTextPtr("true")
	}
	params := make([]string, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		params = append(params, p.script())
	}
	var b strings.Builder
	b.WriteString(".create-or-alter function")
	b.WriteString(renderWith(
		withProperty{"docstring", c.DocString},
		withProperty{"folder", c.Folder},
		withProperty{"skipvalidation", skip}))
	b.WriteString(" ")
	b.WriteString(c.FunctionName.Script())
	b.WriteString("(")
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(")\n{\n")
	if body := NormalizeBody(c.Body); body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

func (c *CreateFunction) semanticKey() string {
	var k keyWriter
	k.name(c.FunctionName)
	k.b.WriteByte('(')
	for _, p := range c.Parameters {
		p.writeKey(&k)
	}
	k.b.WriteByte(')')
	k.str(NormalizeBody(c.Body))
	k.text(c.Folder)
	k.text(c.DocString)
	k.flag(c.SkipValidation)
	return k.String()
}

// DropFunction models ".drop function F ifexists".
type DropFunction struct {
	FunctionName EntityName
}

func NewDropFunction(name EntityName) *DropFunction {
	return &DropFunction{FunctionName: name}
}

func (c *DropFunction) Kind() Kind               { return KindDropFunction }
func (c *DropFunction) Equal(other Command) bool { return equalCommands(c, other) }
func (c *DropFunction) Hash() uint64             { return hashCommand(c) }
func (c *DropFunction) String() string           { return c.Script() }

func (c *DropFunction) Script() string {
	return ".drop function " + c.FunctionName.Script() + " ifexists"
}

func (c *DropFunction) semanticKey() string {
	var k keyWriter
	k.name(c.FunctionName)
	return k.String()
}

// DropFunctions models ".drop functions (F1, F2) ifexists".
type DropFunctions struct {
	FunctionNames []EntityName
}

func (c *DropFunctions) Kind() Kind               { return KindDropFunctions }
func (c *DropFunctions) Equal(other Command) bool { return equalCommands(c, other) }
func (c *DropFunctions) Hash() uint64             { return hashCommand(c) }
func (c *DropFunctions) String() string           { return c.Script() }

func (c *DropFunctions) Script() string {
	return ".drop functions (" + renderNameList(c.FunctionNames) + ") ifexists"
}

func (c *DropFunctions) semanticKey() string {
	var k keyWriter
	k.sortedNames(c.FunctionNames)
	return k.String()
}

func parseCreateFunction(s *scanner) (Command, error) {
	s.acceptWord("ifnotexists")
	props, err := parseWith(s, "folder", "docstring", "skipvalidation")
	if err != nil {
		return nil, err
	}
	skipValidation := false
	if v, ok := props["skipvalidation"]; ok {
		switch strings.ToLower(v.text) {
		case "true":
			skipValidation = true
		case "false":
		default:
			return nil, fmt.Errorf("invalid skipvalidation value '%s'", v.text)
		}
	}
	name, err := s.name()
	if err != nil {
		return nil, err
	}
	params, err := parseParameters(s)
	if err != nil {
		return nil, err
	}
	body, err := s.block()
	if err != nil {
		return nil, err
	}
	return &CreateFunction{
		FunctionName:   name,
		Parameters:     params,
		Body:           NormalizeBody(body),
		Folder:         optionalProperty(props, "folder"),
		DocString:      optionalProperty(props, "docstring"),
		SkipValidation: skipValidation,
	}, nil
}

func parseParameters(s *scanner) ([]FunctionParameter, error) {
	if err := s.expect('('); err != nil {
		return nil, err
	}
	if s.accept(')') {
		return nil, nil
	}
	var params []FunctionParameter
	for {
		p, err := parseParameter(s)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
		if s.accept(',') {
			continue
		}
		if err := s.expect(')'); err != nil {
			return nil, err
		}
		return params, nil
	}
}

func parseParameter(s *scanner) (FunctionParameter, error) {
	name, err := s.name()
	if err != nil {
		return FunctionParameter{}, err
	}
	if err := s.expect(':'); err != nil {
		return FunctionParameter{}, err
	}
	if s.accept('(') {
		return parseTabularParameter(s, name)
	}
	paramType, err := s.typeName()
	if err != nil {
		return FunctionParameter{}, err
	}
	p := FunctionParameter{Name: name, Type: paramType}
	if s.accept('=') {
		value, err := s.rawValue()
		if err != nil {
			return FunctionParameter{}, err
		}
		p.Default = &value
	}
	return p, nil
}

// parseTabularParameter parses the column schema after "T:(".
func parseTabularParameter(s *scanner, name EntityName) (FunctionParameter, error) {
	p := FunctionParameter{Name: name, Tabular: true}
	if s.accept(')') {
		return p, nil
	}
	for {
		if s.accept('*') {
			p.OpenSchema = true
		} else {
			colName, err := s.name()
			if err != nil {
				return FunctionParameter{}, err
			}
			if err := s.expect(':'); err != nil {
				return FunctionParameter{}, err
			}
			colType, err := s.typeName()
			if err != nil {
				return FunctionParameter{}, err
			}
			p.Columns = append(p.Columns, TableColumn{Name: colName, Type: colType})
		}
		if s.accept(',') {
			if p.OpenSchema {
				return FunctionParameter{}, s.errorf("'*' must be the last column")
			}
			continue
		}
		if err := s.expect(')'); err != nil {
			return FunctionParameter{}, err
		}
		return p, nil
	}
}

func parseDropFunction(s *scanner) (Command, error) {
	name, err := s.name()
	if err != nil {
		return nil, err
	}
	s.acceptWord("ifexists")
	return &DropFunction{FunctionName: name}, nil
}

func parseDropFunctions(s *scanner) (Command, error) {
	names, err := s.nameList()
	if err != nil {
		return nil, err
	}
	s.acceptWord("ifexists")
	return &DropFunctions{FunctionNames: names}, nil
}
