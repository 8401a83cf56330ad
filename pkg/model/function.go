package model

import (
	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
)

// FunctionModel is the folded state of one stored function.
type FunctionModel struct {
	name           command.EntityName
	parameters     []command.FunctionParameter
	body           string
	folder         *command.QuotedText
	docString      *command.QuotedText
	skipValidation bool
}

// NewFunctionModel copies its inputs and normalizes the body.
func NewFunctionModel(name command.EntityName, params []command.FunctionParameter, body string, folder, docString *command.QuotedText, skipValidation bool) *FunctionModel {
	return &FunctionModel{
		name:           name,
		parameters:     command.CloneParameters(params),
		body:           command.NormalizeBody(body),
		folder:         normalizeText(folder),
		docString:      normalizeText(docString),
		skipValidation: skipValidation,
	}
}

func functionFromCommand(c *command.CreateFunction) *FunctionModel {
	return NewFunctionModel(c.FunctionName, c.Parameters, c.Body, c.Folder, c.DocString, c.SkipValidation)
}

func (f *FunctionModel) Name() command.EntityName { return f.name }

func (f *FunctionModel) Parameters() []command.FunctionParameter {
	return command.CloneParameters(f.parameters)
}

func (f *FunctionModel) Body() string                   { return f.body }
func (f *FunctionModel) Folder() *command.QuotedText    { return f.folder }
func (f *FunctionModel) DocString() *command.QuotedText { return f.docString }
func (f *FunctionModel) SkipValidation() bool           { return f.skipValidation }

// Equal compares functions structurally. Skip validation and the open-schema
// marker of tabular parameters only affect rendering: a live schema reports
// neither, so they take no part in equality.
func (f *FunctionModel) Equal(other *FunctionModel) bool {
	if f == nil || other == nil {
		return f == nil && other == nil
	}
	return f.name == other.name &&
		command.EqualParameters(comparableParameters(f.parameters), comparableParameters(other.parameters)) &&
		f.body == other.body &&
		command.EqualText(f.folder, other.folder) &&
		command.EqualText(f.docString, other.docString)
}

func comparableParameters(params []command.FunctionParameter) []command.FunctionParameter {
	out := make([]command.FunctionParameter, len(params))
	for i, p := range params {
		p.OpenSchema = false
		out[i] = p
	}
	return out
}

// CreateCommand renders the function as a create-or-alter command.
func (f *FunctionModel) CreateCommand() *command.CreateFunction {
	return command.NewCreateFunction(f.name, f.parameters, f.body, f.folder, f.docString, f.skipValidation)
}
