package patterns

import (
	sitter "github.com/smacker/go-tree-sitter"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// DetectAttributeReassignment flags import-time assignments to attributes of
// imported names, e.g. `requests.get = fake_get` at module level.
func DetectAttributeReassignment(n *sitter.Node, fc *FileContext, scope Scope) []m.Finding {
	if !scope.ImportTime {
		return nil
	}

	switch n.Type() {
	case "assignment", "augmented_assignment", "delete_statement":
	default:
		return nil
	}

	var findings []m.Finding

	for _, target := range Targets(n) {
		if target.Type() != "attribute" {
			continue
		}

		q, rooted := fc.Qualify(target)
		if !rooted || fc.claimedTarget(target) {
			continue
		}

		findings = append(findings, fc.Finding(m.AttributeReassignmentOnImport, target, q)...)
	}

	return findings
}

// claimedTarget reports targets owned by a more specific rule.
func (fc *FileContext) claimedTarget(target *sitter.Node) bool {
	if _, ok := fc.builtinsTarget(target); ok {
		return true
	}

	if _, ok := fc.envTarget(target); ok {
		return true
	}

	_, ok := fc.registryTarget(target, sysModulesTargets)

	return ok
}
