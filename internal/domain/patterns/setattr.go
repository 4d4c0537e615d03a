package patterns

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// DetectSetattrOnImportOrClass flags setattr() calls whose target is an
// imported object or a class.
func DetectSetattrOnImportOrClass(n *sitter.Node, fc *FileContext, _ Scope) []m.Finding {
	if n.Type() != "call" {
		return nil
	}

	symbol, ok := fc.setattrTarget(n)
	if !ok {
		return nil
	}

	return fc.Finding(m.SetattrOnImportOrClass, n, symbol)
}

func (fc *FileContext) setattrTarget(call *sitter.Node) (string, bool) {
	if name, _ := fc.CallName(call); name != "setattr" {
		return "", false
	}

	if _, ok := fc.builtinsCall(call); ok {
		return "", false
	}

	args := Arguments(call)
	if len(args) == 0 {
		return "", false
	}

	target := args[0]
	q, rooted := fc.Qualify(target)

	matched := rooted || strings.HasSuffix(q, ".__class__")

	switch target.Type() {
	case "identifier":
		matched = matched || fc.Classes[q] || q == "cls"
	case "call":
		fn, _ := fc.CallName(target)
		matched = matched || fn == "type"
	}

	if !matched {
		return "", false
	}

	if len(args) > 1 {
		if attr, ok := stringLiteral(fc.Text(args[1])); ok {
			return q + "." + attr, true
		}
	}

	return q, true
}
