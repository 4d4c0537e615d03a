package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"patchwatch.dev/pkg/patchwatch/internal/adapter"
	"patchwatch.dev/pkg/patchwatch/internal/domain/patterns"
	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// Scanner parses one file and reports its findings and import references.
type Scanner interface {
	ScanFile(ctx context.Context, file m.SourceFile) (FileScan, error)
}

// FileScan is everything extracted from one file in a single parse.
type FileScan struct {
	File     m.SourceFile
	Findings []m.Finding
	Imports  []ImportRef
}

// ImportRef is one imported module referenced by a file.
type ImportRef struct {
	Module   string // as written, e.g. os.path or .sibling
	Base     string // first dotted segment; empty for relative imports
	Relative bool
	Lazy     bool // inside a function body
	Line     int
}

var detectors = map[m.MutationCategory]patterns.Detector{
	m.AttributeReassignmentOnImport: patterns.DetectAttributeReassignment,
	m.GlobalEnvMutation:             patterns.DetectGlobalEnvMutation,
	m.ImportTimeSideEffect:          patterns.DetectImportTimeSideEffect,
	m.SysModulesAssignment:          patterns.DetectSysModulesAssignment,
	m.BuiltinsMutation:              patterns.DetectBuiltinsMutation,
	m.SetattrOnImportOrClass:        patterns.DetectSetattrOnImportOrClass,
}

// ScannerOption configures NewScanner.
type ScannerOption func(*scanner)

// WithCategories restricts detection to the given categories.
func WithCategories(categories ...m.MutationCategory) ScannerOption {
	return func(s *scanner) {
		if len(categories) > 0 {
			s.categories = categories
		}
	}
}

// WithLazyImports decides whether imports inside function bodies are reported.
func WithLazyImports(enabled bool) ScannerOption {
	return func(s *scanner) {
		s.lazyImports = enabled
	}
}

type scanner struct {
	adapter.PythonFileAdapter
	categories  []m.MutationCategory
	lazyImports bool
}

// NewScanner creates a Scanner backed by the given Python adapter.
func NewScanner(pyAdapter adapter.PythonFileAdapter, opts ...ScannerOption) Scanner {
	s := &scanner{
		PythonFileAdapter: pyAdapter,
		categories:        m.AllCategories(),
		lazyImports:       true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *scanner) ScanFile(ctx context.Context, file m.SourceFile) (FileScan, error) {
	tree, err := s.Parse(ctx, file.RelPath, file.Content)
	if err != nil {
		return FileScan{}, fmt.Errorf("scan %s: %w", file.RelPath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	fc := patterns.NewFileContext(file, root)

	result := FileScan{File: file}

	s.walk(root, fc, patterns.ModuleScope, func(n *sitter.Node, scope patterns.Scope) {
		for _, category := range s.categories {
			result.Findings = append(result.Findings, detectors[category](n, fc, scope)...)
		}

		switch n.Type() {
		case "import_statement", "import_from_statement":
			if !scope.ImportTime && !s.lazyImports {
				return
			}

			result.Imports = append(result.Imports, importRefs(n, fc.Source, scope)...)
		}
	})

	slog.Debug("Scanned file", "path", file.RelPath, "findings", len(result.Findings), "imports", len(result.Imports))

	return result, nil
}

// walk visits every node with the scope it executes in.
func (s *scanner) walk(n *sitter.Node, fc *patterns.FileContext, scope patterns.Scope, visit func(*sitter.Node, patterns.Scope)) {
	if n == nil {
		return
	}

	visit(n, scope)

	inner := scope

	switch n.Type() {
	case "function_definition", "lambda":
		inner = patterns.Scope{}
	case "class_definition":
		inner.TopLevel = false
	case "if_statement":
		if scope.ImportTime && fc.IsMainGuard(n) {
			for i := 0; i < int(n.ChildCount()); i++ {
				childScope := scope
				if n.FieldNameForChild(i) == "consequence" {
					childScope = patterns.Scope{}
				}

				s.walk(n.Child(i), fc, childScope, visit)
			}

			return
		}
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		s.walk(n.Child(i), fc, inner, visit)
	}
}

func importRefs(n *sitter.Node, src []byte, scope patterns.Scope) []ImportRef {
	seen := map[string]bool{}

	var refs []ImportRef

	for _, name := range patterns.ImportedNames(n, src) {
		if seen[name.Module] {
			continue
		}

		seen[name.Module] = true

		ref := ImportRef{
			Module:   name.Module,
			Relative: name.Relative,
			Lazy:     !scope.ImportTime,
			Line:     int(n.StartPoint().Row) + 1,
		}

		if !name.Relative {
			ref.Base = strings.SplitN(name.Module, ".", 2)[0]
		}

		refs = append(refs, ref)
	}

	return refs
}
