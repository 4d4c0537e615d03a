package patterns

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// Namespaces whose items are visible to every module of the process.
var builtinNamespaces = map[string]bool{
	"__builtins__":          true,
	"builtins.__dict__":     true,
	"__builtins__.__dict__": true,
	"globals()":             true,
}

var builtinsCalls = map[string]bool{
	"builtins.__dict__.update":     true,
	"__builtins__.update":          true,
	"__builtins__.__setitem__":     true,
	"__builtins__.__dict__.update": true,
	"globals().update":             true,
	"globals().__setitem__":        true,
}

func isBuiltinsModule(q string) bool {
	return q == "builtins" || q == "__builtins__"
}

// DetectBuiltinsMutation flags writes to the builtin namespace, to
// __builtins__ and to globals().
func DetectBuiltinsMutation(n *sitter.Node, fc *FileContext, _ Scope) []m.Finding {
	switch n.Type() {
	case "assignment", "augmented_assignment", "delete_statement":
		var findings []m.Finding

		for _, target := range Targets(n) {
			if symbol, ok := fc.builtinsTarget(target); ok {
				findings = append(findings, fc.Finding(m.BuiltinsMutation, target, symbol)...)
			}
		}

		return findings
	case "call":
		if symbol, ok := fc.builtinsCall(n); ok {
			return fc.Finding(m.BuiltinsMutation, n, symbol)
		}
	}

	return nil
}

func (fc *FileContext) builtinsTarget(target *sitter.Node) (string, bool) {
	switch target.Type() {
	case "attribute":
		obj, _ := fc.Qualify(target.ChildByFieldName("object"))
		if !isBuiltinsModule(obj) {
			return "", false
		}

		q, _ := fc.Qualify(target)

		return q, true
	case "subscript":
		return fc.registryTarget(target, builtinNamespaces)
	}

	return "", false
}

func (fc *FileContext) builtinsCall(call *sitter.Node) (string, bool) {
	name, _ := fc.CallName(call)
	if builtinsCalls[name] {
		return name, true
	}

	if name != "setattr" {
		return "", false
	}

	args := Arguments(call)
	if len(args) == 0 {
		return "", false
	}

	obj, _ := fc.Qualify(args[0])
	if !isBuiltinsModule(obj) {
		return "", false
	}

	if len(args) > 1 {
		if attr, ok := stringLiteral(fc.Text(args[1])); ok {
			return obj + "." + attr, true
		}
	}

	return obj, true
}

// stringLiteral unquotes a plain (non f-) string literal.
func stringLiteral(text string) (string, bool) {
	text = strings.TrimLeft(text, "rRbBuU")
	for _, quote := range []string{`"""`, `'''`, `"`, `'`} {
		if len(text) >= 2*len(quote) && strings.HasPrefix(text, quote) && strings.HasSuffix(text, quote) {
			return text[len(quote) : len(text)-len(quote)], true
		}
	}

	return "", false
}
