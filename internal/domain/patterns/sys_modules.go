package patterns

import (
	sitter "github.com/smacker/go-tree-sitter"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

var sysModulesTargets = map[string]bool{"sys.modules": true}

var sysModulesCalls = map[string]bool{
	"sys.modules.update":      true,
	"sys.modules.setdefault":  true,
	"sys.modules.__setitem__": true,
	"sys.modules.__delitem__": true,
	"sys.modules.pop":         true,
	"sys.modules.popitem":     true,
	"sys.modules.clear":       true,
}

// DetectSysModulesAssignment flags writes to the interpreter module registry.
func DetectSysModulesAssignment(n *sitter.Node, fc *FileContext, _ Scope) []m.Finding {
	switch n.Type() {
	case "assignment", "augmented_assignment", "delete_statement":
		var findings []m.Finding

		for _, target := range Targets(n) {
			if symbol, ok := fc.registryTarget(target, sysModulesTargets); ok {
				findings = append(findings, fc.Finding(m.SysModulesAssignment, target, symbol)...)
			}
		}

		return findings
	case "call":
		if name, ok := fc.sysModulesCall(n); ok {
			return fc.Finding(m.SysModulesAssignment, n, name)
		}
	}

	return nil
}

func (fc *FileContext) sysModulesCall(call *sitter.Node) (string, bool) {
	name, _ := fc.CallName(call)
	return name, sysModulesCalls[name]
}
