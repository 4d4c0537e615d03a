package patterns

import (
	sitter "github.com/smacker/go-tree-sitter"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// Process-wide state that survives the module that changes it.
var envTargets = map[string]bool{
	"os.environ": true,
	"sys.path":   true,
}

var envCalls = map[string]bool{
	"os.environ.update":      true,
	"os.environ.pop":         true,
	"os.environ.popitem":     true,
	"os.environ.setdefault":  true,
	"os.environ.clear":       true,
	"os.environ.__setitem__": true,
	"os.environ.__delitem__": true,
	"os.putenv":              true,
	"os.unsetenv":            true,
	"sys.path.append":        true,
	"sys.path.insert":        true,
	"sys.path.extend":        true,
	"sys.path.remove":        true,
	"sys.path.pop":           true,
	"sys.path.clear":         true,
}

// DetectGlobalEnvMutation flags writes to environment variables and the
// module search path anywhere in the file.
func DetectGlobalEnvMutation(n *sitter.Node, fc *FileContext, _ Scope) []m.Finding {
	switch n.Type() {
	case "assignment", "augmented_assignment", "delete_statement":
		var findings []m.Finding

		for _, target := range Targets(n) {
			if symbol, ok := fc.envTarget(target); ok {
				findings = append(findings, fc.Finding(m.GlobalEnvMutation, target, symbol)...)
			}
		}

		return findings
	case "call":
		if name, ok := fc.envCall(n); ok {
			return fc.Finding(m.GlobalEnvMutation, n, name)
		}
	}

	return nil
}

func (fc *FileContext) envTarget(target *sitter.Node) (string, bool) {
	return fc.registryTarget(target, envTargets)
}

func (fc *FileContext) envCall(call *sitter.Node) (string, bool) {
	name, _ := fc.CallName(call)
	return name, envCalls[name]
}

// registryTarget matches a whole-object rebind (x = ...) or an item write
// (x[k] = ...) against a set of qualified names.
func (fc *FileContext) registryTarget(target *sitter.Node, names map[string]bool) (string, bool) {
	switch target.Type() {
	case "identifier", "attribute":
		q, _ := fc.Qualify(target)
		return q, names[q]
	case "subscript":
		q, _ := fc.Qualify(target.ChildByFieldName("value"))
		if !names[q] {
			return "", false
		}

		return q + "[" + fc.Text(target.ChildByFieldName("subscript")) + "]", true
	}

	return "", false
}
