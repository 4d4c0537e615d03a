package patterns

import (
	sitter "github.com/smacker/go-tree-sitter"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// DetectImportTimeSideEffect flags the outermost calls of every top-level
// expression statement, including calls under top-level conditionals and
// loops and the right-hand sides of top-level assignments. A call matched by
// another rule is reported here as well.
func DetectImportTimeSideEffect(n *sitter.Node, fc *FileContext, scope Scope) []m.Finding {
	if !scope.TopLevel || n.Type() != "expression_statement" {
		return nil
	}

	var findings []m.Finding

	for _, call := range outermostCalls(n) {
		name, _ := fc.CallName(call)
		findings = append(findings, fc.Finding(m.ImportTimeSideEffect, call, name)...)
	}

	return findings
}

// outermostCalls returns the calls below n that are not nested in another
// call. Lambda bodies do not run at import time, and assignment targets are
// bindings, so both are skipped.
func outermostCalls(n *sitter.Node) []*sitter.Node {
	switch n.Type() {
	case "call":
		return []*sitter.Node{n}
	case "lambda", "comment":
		return nil
	case "assignment", "augmented_assignment":
		if right := n.ChildByFieldName("right"); right != nil {
			return outermostCalls(right)
		}

		return nil
	}

	var calls []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		calls = append(calls, outermostCalls(n.NamedChild(i))...)
	}

	return calls
}
