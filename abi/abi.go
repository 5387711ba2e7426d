// Package abi reads the callable surface of a Go contract from its source
// and generates the JSON dispatchers the engine calls into.
package abi

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// ContextType is the parameter type the host fills in itself.
const ContextType = "core.Context"

// ABI represents the Application Binary Interface of a contract
type ABI struct {
	PackageName string     `json:"package_name,omitempty"`
	Imports     []Import   `json:"imports,omitempty"`
	Functions   []Function `json:"functions,omitempty"`
	Events      []Event    `json:"events,omitempty"`
}

// Import is an import of the contract source file
type Import struct {
	Path string `json:"path,omitempty"`
	Name string `json:"name,omitempty"`
}

// Function represents a function in the contract
type Function struct {
	Name       string      `json:"name,omitempty"`
	Inputs     []Parameter `json:"inputs,omitempty"`
	Outputs    []Parameter `json:"outputs,omitempty"`
	IsExported bool        `json:"is_exported,omitempty"`
}

// Event represents a contract event (from core.Context.Log calls)
type Event struct {
	Name       string      `json:"name,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Parameter represents a function parameter or event field
type Parameter struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// TakesContext reports whether the first input is a core.Context.
func (f Function) TakesContext() bool {
	return len(f.Inputs) > 0 && f.Inputs[0].Type == ContextType
}

// CallInputs returns the inputs a caller has to supply.
func (f Function) CallInputs() []Parameter {
	params := make([]Parameter, 0, len(f.Inputs))
	for _, in := range f.Inputs {
		if in.Type == ContextType {
			continue
		}
		params = append(params, in)
	}
	return params
}

// Function looks up an exported function by name.
func (abi *ABI) Function(name string) (Function, bool) {
	for _, fn := range abi.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return Function{}, false
}

// ExtractABI extracts the ABI information from contract code
func ExtractABI(code []byte) (*ABI, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", code, parser.AllErrors)
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract: %w", err)
	}

	abi := &ABI{
		PackageName: file.Name.Name,
		Imports:     extractImports(file),
		Functions:   make([]Function, 0),
		Events:      make([]Event, 0),
	}

	for _, decl := range file.Decls {
		funcDecl, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		// methods and unexported helpers are not callable
		if funcDecl.Recv != nil || !funcDecl.Name.IsExported() {
			continue
		}

		function := Function{
			Name:       funcDecl.Name.Name,
			IsExported: true,
		}
		if funcDecl.Type.Params != nil {
			function.Inputs = extractParameters(funcDecl.Type.Params)
		}
		if funcDecl.Type.Results != nil {
			function.Outputs = extractParameters(funcDecl.Type.Results)
		}

		abi.Events = append(abi.Events, extractEventsFromFunction(funcDecl)...)
		abi.Functions = append(abi.Functions, function)
	}

	return abi, nil
}

func extractImports(file *ast.File) []Import {
	imports := make([]Import, 0, len(file.Imports))
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		imp := Import{Path: path}
		if spec.Name != nil {
			imp.Name = spec.Name.Name
		}
		imports = append(imports, imp)
	}
	return imports
}

// extractEventsFromFunction collects ctx.Log("name", "key", value, ...) calls
func extractEventsFromFunction(funcDecl *ast.FuncDecl) []Event {
	events := make([]Event, 0)
	if funcDecl.Body == nil {
		return events
	}

	ast.Inspect(funcDecl.Body, func(node ast.Node) bool {
		callExpr, ok := node.(*ast.CallExpr)
		if !ok {
			return true
		}
		selExpr, ok := callExpr.Fun.(*ast.SelectorExpr)
		if !ok || selExpr.Sel.Name != "Log" || len(callExpr.Args) < 1 {
			return true
		}

		eventName, ok := callExpr.Args[0].(*ast.BasicLit)
		if !ok || eventName.Kind != token.STRING {
			return true
		}
		name, err := strconv.Unquote(eventName.Value)
		if err != nil {
			return true
		}

		event := Event{
			Name:       name,
			Parameters: make([]Parameter, 0),
		}
		for i := 1; i+1 < len(callExpr.Args); i += 2 {
			key, ok := callExpr.Args[i].(*ast.BasicLit)
			if !ok || key.Kind != token.STRING {
				continue
			}
			paramName, err := strconv.Unquote(key.Value)
			if err != nil {
				continue
			}
			event.Parameters = append(event.Parameters, Parameter{Name: paramName})
		}

		// Only add events that have parameters
		if len(event.Parameters) > 0 {
			events = append(events, event)
		}
		return true
	})

	return events
}

// extractParameters extracts parameter information from a field list
func extractParameters(fieldList *ast.FieldList) []Parameter {
	if fieldList == nil {
		return nil
	}

	params := make([]Parameter, 0)
	for _, field := range fieldList.List {
		typeStr := getTypeString(field.Type)
		if len(field.Names) == 0 {
			params = append(params, Parameter{Type: typeStr})
			continue
		}
		for _, name := range field.Names {
			params = append(params, Parameter{
				Name: name.Name,
				Type: typeStr,
			})
		}
	}

	return params
}

// getTypeString converts an ast.Expr to its string representation
func getTypeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + getTypeString(t.X)
	case *ast.Ellipsis:
		return "..." + getTypeString(t.Elt)
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + getTypeString(t.Elt)
		}
		if lit, ok := t.Len.(*ast.BasicLit); ok {
			return fmt.Sprintf("[%s]%s", lit.Value, getTypeString(t.Elt))
		}
		return "[...]" + getTypeString(t.Elt)
	case *ast.SelectorExpr:
		return fmt.Sprintf("%s.%s", getTypeString(t.X), t.Sel.Name)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", getTypeString(t.Key), getTypeString(t.Value))
	case *ast.InterfaceType:
		return "any"
	case *ast.StructType:
		return "struct{}"
	default:
		return fmt.Sprintf("%T", t)
	}
}

// String returns a string representation of the ABI
func (abi *ABI) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Package: %s\n", abi.PackageName)

	sb.WriteString("\nFunctions:\n")
	for _, fn := range abi.Functions {
		fmt.Fprintf(&sb, "  %s(%s)", fn.Name, joinParams(fn.Inputs))
		switch len(fn.Outputs) {
		case 0:
		case 1:
			sb.WriteString(" " + fn.Outputs[0].Type)
		default:
			fmt.Fprintf(&sb, " (%s)", joinParams(fn.Outputs))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nEvents:\n")
	for _, event := range abi.Events {
		names := make([]string, 0, len(event.Parameters))
		for _, p := range event.Parameters {
			names = append(names, p.Name)
		}
		fmt.Fprintf(&sb, "  %s(%s)\n", event.Name, strings.Join(names, ", "))
	}

	return sb.String()
}

func joinParams(params []Parameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.Name != "" {
			parts = append(parts, p.Name+" "+p.Type)
		} else {
			parts = append(parts, p.Type)
		}
	}
	return strings.Join(parts, ", ")
}
