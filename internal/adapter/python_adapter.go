package adapter

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// PythonFileAdapter encapsulates Python parsing so the domain layer can focus
// on detection rules while delegating grammar details to tree-sitter.
type PythonFileAdapter interface {
	// Parse builds a syntax tree for src. The caller owns the returned tree
	// and must Close it. Trees containing syntax errors are rejected with
	// model.ErrParse; parses cut short by ctx are rejected with
	// model.ErrFileTimeout.
	Parse(ctx context.Context, filename string, src []byte) (*sitter.Tree, error)
}

// LocalPythonFileAdapter provides a PythonFileAdapter backed by tree-sitter.
// A parser is created per call, so Parse is safe for concurrent use.
type LocalPythonFileAdapter struct{}

// NewLocalPythonFileAdapter constructs a LocalPythonFileAdapter.
func NewLocalPythonFileAdapter() *LocalPythonFileAdapter {
	return &LocalPythonFileAdapter{}
}

// Parse builds a syntax tree for the provided filename/source pair.
func (a *LocalPythonFileAdapter) Parse(ctx context.Context, filename string, src []byte) (*sitter.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", filename, m.ErrFileTimeout, err)
	}

	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, sitter.ErrOperationLimit) {
			return nil, fmt.Errorf("parse %s: %w: %w", filename, m.ErrFileTimeout, err)
		}

		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, fmt.Errorf("parse %s: %w: empty tree", filename, m.ErrParse)
	}

	if root.HasError() {
		line, col := firstErrorPosition(root)
		tree.Close()

		return nil, fmt.Errorf("parse %s: %w at %d:%d", filename, m.ErrParse, line, col)
	}

	return tree, nil
}

// firstErrorPosition locates the first ERROR or MISSING node (1-based).
func firstErrorPosition(node *sitter.Node) (int, int) {
	if node.IsMissing() || node.Type() == "ERROR" {
		p := node.StartPoint()
		return int(p.Row) + 1, int(p.Column) + 1
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !child.HasError() {
			continue
		}

		return firstErrorPosition(child)
	}

	p := node.StartPoint()

	return int(p.Row) + 1, int(p.Column) + 1
}
