// Package patterns holds the detection rules for runtime-mutation patterns.
// Every rule is a pure function over one syntax node.
package patterns

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// Scope describes where a node executes.
type Scope struct {
	// ImportTime is true outside function and lambda bodies.
	ImportTime bool
	// TopLevel is true at import time outside class bodies.
	TopLevel bool
}

// ModuleScope is the scope of a statement directly in the module body.
var ModuleScope = Scope{ImportTime: true, TopLevel: true}

// Detector reports findings for a single node.
type Detector func(n *sitter.Node, fc *FileContext, scope Scope) []m.Finding

// FileContext carries the per-file facts the detectors share. It is built
// once per file and only read afterwards.
type FileContext struct {
	File    m.SourceFile
	Source  []byte
	Imports map[string]string // local name -> qualified name
	Classes map[string]bool   // classes defined anywhere in the file
	ignored map[int]ignoreRule
}

// NewFileContext collects import bindings, class names and suppression
// comments from the whole tree.
func NewFileContext(file m.SourceFile, root *sitter.Node) *FileContext {
	fc := &FileContext{
		File:    file,
		Source:  file.Content,
		Imports: map[string]string{},
		Classes: map[string]bool{},
		ignored: map[int]ignoreRule{},
	}

	Walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement", "import_from_statement":
			for _, name := range ImportedNames(n, fc.Source) {
				if name.Local != "" {
					fc.Imports[name.Local] = name.Qualified
				}
			}
		case "class_definition":
			if id := n.ChildByFieldName("name"); id != nil {
				fc.Classes[id.Content(fc.Source)] = true
			}
		case "comment":
			if rule, ok := parseIgnore(n.Content(fc.Source)); ok {
				fc.ignored[int(n.StartPoint().Row)+1] = rule
			}
		}

		return true
	})

	return fc
}

// Walk visits n and its descendants depth-first until fn returns false for
// a subtree.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		Walk(n.Child(i), fn)
	}
}

// Text returns the source text of n.
func (fc *FileContext) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}

	return n.Content(fc.Source)
}

// Qualify flattens an identifier or attribute chain into a dotted name,
// replacing the root with its import binding. rooted reports whether the
// chain starts at an imported name.
func (fc *FileContext) Qualify(n *sitter.Node) (name string, rooted bool) {
	if n == nil {
		return "", false
	}

	switch n.Type() {
	case "identifier":
		id := n.Content(fc.Source)
		if q, ok := fc.Imports[id]; ok {
			return q, true
		}

		return id, false
	case "attribute":
		obj, rooted := fc.Qualify(n.ChildByFieldName("object"))
		attr := fc.Text(n.ChildByFieldName("attribute"))

		return obj + "." + attr, rooted
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return fc.Qualify(n.NamedChild(0))
		}
	}

	return compactSpace(n.Content(fc.Source)), false
}

// Finding builds a finding at the position of n unless a suppression
// comment on that line covers category.
func (fc *FileContext) Finding(category m.MutationCategory, n *sitter.Node, symbol string) []m.Finding {
	p := n.StartPoint()
	line := int(p.Row) + 1

	if rule, ok := fc.ignored[line]; ok && rule.ignores(category) {
		return nil
	}

	return []m.Finding{{
		Category:       category,
		File:           m.Path(fc.File.RelPath),
		Line:           line,
		Column:         int(p.Column) + 1,
		Symbol:         symbol,
		Module:         fc.File.TopLevel,
		PolicyRelevant: fc.File.PolicyRelevant(),
	}}
}

// Targets returns the assignment or deletion targets of an assignment,
// augmented assignment or del statement. Nested chained assignments are
// visited separately and are not expanded here.
func Targets(n *sitter.Node) []*sitter.Node {
	switch n.Type() {
	case "assignment", "augmented_assignment":
		return expandTargets(n.ChildByFieldName("left"))
	case "delete_statement":
		var out []*sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out = append(out, expandTargets(n.NamedChild(i))...)
		}

		return out
	}

	return nil
}

func expandTargets(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}

	switch n.Type() {
	case "pattern_list", "tuple_pattern", "list_pattern", "expression_list", "tuple", "list", "parenthesized_expression":
		var out []*sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out = append(out, expandTargets(n.NamedChild(i))...)
		}

		return out
	case "list_splat_pattern":
		if n.NamedChildCount() > 0 {
			return expandTargets(n.NamedChild(0))
		}
	}

	return []*sitter.Node{n}
}

// CallName returns the qualified name of the called function.
func (fc *FileContext) CallName(call *sitter.Node) (string, bool) {
	if call == nil || call.Type() != "call" {
		return "", false
	}

	return fc.Qualify(call.ChildByFieldName("function"))
}

// Arguments returns the positional and keyword argument nodes of a call.
func Arguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Type() != "argument_list" {
		return nil
	}

	out := make([]*sitter.Node, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}

		out = append(out, child)
	}

	return out
}

// IsMainGuard reports whether an if statement tests __name__ == "__main__".
func (fc *FileContext) IsMainGuard(ifStmt *sitter.Node) bool {
	cond := ifStmt.ChildByFieldName("condition")
	if cond == nil {
		return false
	}

	text := strings.NewReplacer(" ", "", "'", "\"", "(", "", ")", "").Replace(fc.Text(cond))

	return text == `__name__=="__main__"` || text == `"__main__"==__name__`
}

func compactSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ImportedName is one name bound by an import statement.
type ImportedName struct {
	Module    string // imported module, e.g. os.path or .sibling
	Local     string // name bound in the importing file; empty for wildcards
	Qualified string // fully qualified object the local name refers to
	Relative  bool
}

// ImportedNames decodes an import_statement or import_from_statement.
func ImportedNames(n *sitter.Node, src []byte) []ImportedName {
	switch n.Type() {
	case "import_statement":
		return plainImportNames(n, src)
	case "import_from_statement":
		return fromImportNames(n, src)
	}

	return nil
}

func plainImportNames(n *sitter.Node, src []byte) []ImportedName {
	var out []ImportedName

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)

		switch child.Type() {
		case "dotted_name":
			module := child.Content(src)
			out = append(out, ImportedName{
				Module:    module,
				Local:     firstSegment(module),
				Qualified: firstSegment(module),
			})
		case "aliased_import":
			module := child.ChildByFieldName("name").Content(src)
			out = append(out, ImportedName{
				Module:    module,
				Local:     child.ChildByFieldName("alias").Content(src),
				Qualified: module,
			})
		}
	}

	return out
}

func fromImportNames(n *sitter.Node, src []byte) []ImportedName {
	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode == nil {
		return nil
	}

	module := moduleNode.Content(src)
	relative := moduleNode.Type() == "relative_import"

	var out []ImportedName

	wildcard := false

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.StartByte() == moduleNode.StartByte() {
			continue
		}

		switch child.Type() {
		case "dotted_name":
			name := child.Content(src)
			out = append(out, ImportedName{
				Module:    module,
				Local:     firstSegment(name),
				Qualified: joinQualified(module, name),
				Relative:  relative,
			})
		case "aliased_import":
			name := child.ChildByFieldName("name").Content(src)
			out = append(out, ImportedName{
				Module:    module,
				Local:     child.ChildByFieldName("alias").Content(src),
				Qualified: joinQualified(module, name),
				Relative:  relative,
			})
		case "wildcard_import":
			wildcard = true
		}
	}

	if wildcard || len(out) == 0 {
		out = append(out, ImportedName{Module: module, Relative: relative})
	}

	return out
}

func joinQualified(module, name string) string {
	if strings.HasSuffix(module, ".") {
		return module + name
	}

	return module + "." + name
}

func firstSegment(dotted string) string {
	if i := strings.IndexByte(dotted, '.'); i >= 0 {
		return dotted[:i]
	}

	return dotted
}

var ignorePattern = regexp.MustCompile(`patchwatch:\s*ignore(?:\[([a-z_,\s]+)\])?`)

// ignoreRule suppresses every category when all is set, else the listed ones.
type ignoreRule struct {
	all        bool
	categories map[m.MutationCategory]bool
}

func (r ignoreRule) ignores(category m.MutationCategory) bool {
	return r.all || r.categories[category]
}

func parseIgnore(comment string) (ignoreRule, bool) {
	match := ignorePattern.FindStringSubmatch(comment)
	if match == nil {
		return ignoreRule{}, false
	}

	if strings.TrimSpace(match[1]) == "" {
		return ignoreRule{all: true}, true
	}

	rule := ignoreRule{categories: map[m.MutationCategory]bool{}}

	for _, name := range strings.Split(match[1], ",") {
		category, err := m.ParseCategory(strings.TrimSpace(name))
		if err != nil {
			continue
		}

		rule.categories[category] = true
	}

	return rule, true
}
