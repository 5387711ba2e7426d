package abi

import (
	"fmt"
	"go/format"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CorePackage is the import path of the contract-facing API.
const CorePackage = "github.com/govm-net/promptheist/core"

// HandlerGenerator generates handler functions from ABI
type HandlerGenerator struct {
	abi *ABI
}

var EnableFormatAfterGenerate = true

// NewHandlerGenerator creates a new handler generator
func NewHandlerGenerator(abi *ABI) *HandlerGenerator {
	return &HandlerGenerator{
		abi: abi,
	}
}

// FieldName is the Params struct field used for an input parameter.
func FieldName(param string) string {
	return cases.Title(language.English).String(param)
}

// GenerateHandlers generates handler functions for all exported functions
func (g *HandlerGenerator) GenerateHandlers() string {
	var sb strings.Builder

	sb.WriteString("// Code generated by abi.GenerateHandlerFile. DO NOT EDIT.\n\n")
	fmt.Fprintf(&sb, "package %s\n\n", g.abi.PackageName)
	sb.WriteString(g.generateImports())

	names := make([]string, 0, len(g.abi.Functions))
	for _, fn := range g.abi.Functions {
		if !fn.IsExported {
			continue
		}
		names = append(names, fn.Name)
		sb.WriteString(g.generateParamStruct(fn))
		sb.WriteString(g.generateHandler(fn))
	}

	sb.WriteString("// Handlers maps exported function names to their dispatchers.\n")
	sb.WriteString("var Handlers = map[string]func(ctx core.Context, params []byte) (any, error){\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "\t%q: handle%s,\n", name, name)
	}
	sb.WriteString("}\n")

	return sb.String()
}

func (g *HandlerGenerator) generateImports() string {
	decode := false
	extra := map[string]Import{CorePackage: {Path: CorePackage}}
	for _, fn := range g.abi.Functions {
		inputs := fn.CallInputs()
		if !fn.IsExported || len(inputs) == 0 {
			continue
		}
		decode = true
		for _, in := range inputs {
			if imp := g.findImportForType(in.Type); imp != nil {
				extra[imp.Path] = *imp
			}
		}
	}

	paths := make([]string, 0, len(extra))
	for path := range extra {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var sb strings.Builder
	sb.WriteString("import (\n")
	if decode {
		sb.WriteString("\t\"encoding/json\"\n")
		sb.WriteString("\t\"fmt\"\n\n")
	}
	for _, path := range paths {
		if name := extra[path].Name; name != "" {
			fmt.Fprintf(&sb, "\t%s %q\n", name, path)
		} else {
			fmt.Fprintf(&sb, "\t%q\n", path)
		}
	}
	sb.WriteString(")\n\n")
	return sb.String()
}

// findImportForType returns the contract import a parameter type refers to
func (g *HandlerGenerator) findImportForType(typeStr string) *Import {
	typeStr = strings.TrimLeft(typeStr, "*[]")
	dot := strings.Index(typeStr, ".")
	if dot < 0 {
		return nil
	}
	pkg := typeStr[:dot]
	for _, imp := range g.abi.Imports {
		name := imp.Name
		if name == "" {
			name = imp.Path[strings.LastIndex(imp.Path, "/")+1:]
		}
		if name == pkg {
			found := imp
			return &found
		}
	}
	return nil
}

// generateParamStruct generates a parameter struct for a function
func (g *HandlerGenerator) generateParamStruct(fn Function) string {
	inputs := fn.CallInputs()
	if len(inputs) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "type %sParams struct {\n", fn.Name)
	for _, input := range inputs {
		fmt.Fprintf(&sb, "\t%s %s `json:\"%s,omitempty\"`\n", FieldName(input.Name), input.Type, input.Name)
	}
	sb.WriteString("}\n\n")
	return sb.String()
}

// generateHandler generates a handler function for a given function
func (g *HandlerGenerator) generateHandler(fn Function) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "func handle%s(ctx core.Context, params []byte) (any, error) {\n", fn.Name)

	inputs := fn.CallInputs()
	if len(inputs) > 0 {
		fmt.Fprintf(&sb, "\tvar args %sParams\n", fn.Name)
		sb.WriteString("\tif len(params) > 0 {\n")
		sb.WriteString("\t\tif err := json.Unmarshal(params, &args); err != nil {\n")
		sb.WriteString("\t\t\treturn nil, fmt.Errorf(\"failed to unmarshal params: %w\", err)\n")
		sb.WriteString("\t\t}\n")
		sb.WriteString("\t}\n\n")
	}

	callArgs := make([]string, 0, len(fn.Inputs))
	for _, input := range fn.Inputs {
		if input.Type == ContextType {
			callArgs = append(callArgs, "ctx")
		} else {
			callArgs = append(callArgs, "args."+FieldName(input.Name))
		}
	}
	call := fmt.Sprintf("%s(%s)", fn.Name, strings.Join(callArgs, ", "))

	outputs := fn.Outputs
	returnsErr := len(outputs) > 0 && outputs[len(outputs)-1].Type == "error"
	if returnsErr {
		outputs = outputs[:len(outputs)-1]
	}

	results := make([]string, 0, len(fn.Outputs))
	for i := range outputs {
		results = append(results, fmt.Sprintf("result%d", i))
	}
	if returnsErr {
		results = append(results, "err")
	}

	if len(results) > 0 {
		fmt.Fprintf(&sb, "\t%s := %s\n", strings.Join(results, ", "), call)
	} else {
		fmt.Fprintf(&sb, "\t%s\n", call)
	}
	if returnsErr {
		sb.WriteString("\tif err != nil {\n")
		sb.WriteString("\t\treturn nil, err\n")
		sb.WriteString("\t}\n")
	}

	switch len(outputs) {
	case 0:
		sb.WriteString("\treturn nil, nil\n")
	case 1:
		sb.WriteString("\treturn result0, nil\n")
	default:
		fmt.Fprintf(&sb, "\treturn []any{%s}, nil\n", strings.Join(results[:len(outputs)], ", "))
	}
	sb.WriteString("}\n\n")
	return sb.String()
}

// GenerateHandlerFile generates a complete handler file
func GenerateHandlerFile(abi *ABI) (string, error) {
	generator := NewHandlerGenerator(abi)
	code := generator.GenerateHandlers()
	if !EnableFormatAfterGenerate {
		return code, nil
	}

	formatted, err := format.Source([]byte(code))
	if err != nil {
		return "", fmt.Errorf("failed to format code: %w", err)
	}
	return string(formatted), nil
}
