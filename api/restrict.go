package api

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/govm-net/promptheist/core"
)

// RestrictedCommentPrefixes are compiler directives a contract must not carry
var RestrictedCommentPrefixes = []string{
	"go:",
	"+build",
	"-build",
	"line ",
	"export",
	"extern",
	"cgo",
}

// validateStatements rejects goroutines, select and recover. A contract
// runs to completion on the caller's goroutine and its panics belong to
// the engine.
func validateStatements(file *ast.File) error {
	var found string
	ast.Inspect(file, func(node ast.Node) bool {
		if found != "" {
			return false
		}
		switch n := node.(type) {
		case *ast.GoStmt:
			found = "go"
		case *ast.SelectStmt:
			found = "select"
		case *ast.CallExpr:
			if ident, ok := n.Fun.(*ast.Ident); ok && ident.Name == "recover" {
				found = "recover"
			}
		}
		return found == ""
	})
	if found != "" {
		return fmt.Errorf("%w: restricted keyword %q found in contract", core.ErrInvalidArgument, found)
	}
	return nil
}

// validateComments rejects directive comments such as //go:linkname.
// Directives are line comments without a space after the slashes, build
// constraints are also accepted in the "// +build" form.
func validateComments(fset *token.FileSet, file *ast.File) error {
	for _, group := range file.Comments {
		for _, comment := range group.List {
			raw, ok := strings.CutPrefix(comment.Text, "//")
			if !ok {
				continue
			}
			text := strings.ToLower(strings.TrimSpace(raw))
			if raw != strings.TrimLeft(raw, " \t") && !strings.HasPrefix(text, "+build") {
				continue
			}
			for _, prefix := range RestrictedCommentPrefixes {
				if strings.HasPrefix(text, prefix) {
					return fmt.Errorf("%w: restricted comment %q at line %d", core.ErrInvalidArgument, prefix, fset.Position(comment.Pos()).Line)
				}
			}
		}
	}
	return nil
}
