// # internal/engine/parser/adapter.go
package parser

import (
	"path/filepath"
	"strings"

	"rosewatch/internal/engine/ast"
)

// Extension is the model-source file extension the parser accepts.
const Extension = ".rosetta"

// ModelParser adapts the package-level Parse to the byte-oriented interface
// the application core consumes.
type ModelParser struct{}

func NewModelParser() ModelParser { return ModelParser{} }

func (ModelParser) ParseFile(path string, content []byte) (*ast.File, []ast.ParseError) {
	return Parse(string(content), path)
}

func (ModelParser) IsModelPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}

func (ModelParser) Extension() string { return Extension }
