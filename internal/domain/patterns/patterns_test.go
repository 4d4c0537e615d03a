package patterns

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchwatch.dev/pkg/patchwatch/internal/adapter"
	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

func parse(t *testing.T, src string) (*FileContext, *sitter.Node) {
	t.Helper()

	tree, err := adapter.NewLocalPythonFileAdapter().Parse(context.Background(), "mod.py", []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	root := tree.RootNode()
	file := m.SourceFile{RelPath: "mod.py", Content: []byte(src), TopLevel: "mod"}

	return NewFileContext(file, root), root
}

func firstOfType(root *sitter.Node, typ string) *sitter.Node {
	var found *sitter.Node

	Walk(root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}

		if n.Type() == typ {
			found = n
			return false
		}

		return true
	})

	return found
}

func TestImportedNames(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []ImportedName
	}{
		{
			name: "plain dotted import binds the first segment",
			src:  "import os.path\n",
			want: []ImportedName{{Module: "os.path", Local: "os", Qualified: "os"}},
		},
		{
			name: "aliased import binds the alias",
			src:  "import numpy as np\n",
			want: []ImportedName{{Module: "numpy", Local: "np", Qualified: "numpy"}},
		},
		{
			name: "from import",
			src:  "from os import environ, path as p\n",
			want: []ImportedName{
				{Module: "os", Local: "environ", Qualified: "os.environ"},
				{Module: "os", Local: "p", Qualified: "os.path"},
			},
		},
		{
			name: "relative import",
			src:  "from . import sibling\n",
			want: []ImportedName{{Module: ".", Local: "sibling", Qualified: ".sibling", Relative: true}},
		},
		{
			name: "wildcard import binds nothing",
			src:  "from agents.api import *\n",
			want: []ImportedName{{Module: "agents.api"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, root := parse(t, tt.src)

			n := firstOfType(root, "import_statement")
			if n == nil {
				n = firstOfType(root, "import_from_statement")
			}
			require.NotNil(t, n)

			assert.Equal(t, tt.want, ImportedNames(n, fc.Source))
		})
	}
}

func TestNewFileContext(t *testing.T) {
	src := `import os
from json import dumps as d
class Config:
    pass
x = 1  # patchwatch: ignore[builtins_mutation]
`
	fc, _ := parse(t, src)

	assert.Equal(t, map[string]string{"os": "os", "d": "json.dumps"}, fc.Imports)
	assert.Equal(t, map[string]bool{"Config": true}, fc.Classes)
	require.Contains(t, fc.ignored, 5)
	assert.True(t, fc.ignored[5].ignores(m.BuiltinsMutation))
	assert.False(t, fc.ignored[5].ignores(m.GlobalEnvMutation))
}

func TestQualify(t *testing.T) {
	fc, root := parse(t, "import os.path as osp\nosp.sep.x\n")

	n := firstOfType(root, "expression_statement").NamedChild(0)
	require.Equal(t, "attribute", n.Type())

	name, rooted := fc.Qualify(n)
	assert.Equal(t, "os.path.sep.x", name)
	assert.True(t, rooted)
}

func TestIsMainGuard(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{`if __name__ == "__main__": pass`, true},
		{`if __name__ == '__main__': pass`, true},
		{`if ("__main__" == __name__): pass`, true},
		{`if DEBUG: pass`, false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			fc, root := parse(t, tt.src+"\n")
			assert.Equal(t, tt.want, fc.IsMainGuard(firstOfType(root, "if_statement")))
		})
	}
}

func TestParseIgnore(t *testing.T) {
	tests := []struct {
		comment  string
		ok       bool
		all      bool
		ignored  []m.MutationCategory
		reported []m.MutationCategory
	}{
		{comment: "# just a comment"},
		{comment: "# patchwatch: ignore", ok: true, all: true},
		{comment: "#patchwatch:ignore", ok: true, all: true},
		{
			comment:  "# patchwatch: ignore[global_env_mutation, sys_modules_assignment]",
			ok:       true,
			ignored:  []m.MutationCategory{m.GlobalEnvMutation, m.SysModulesAssignment},
			reported: []m.MutationCategory{m.BuiltinsMutation},
		},
		{
			comment:  "# patchwatch: ignore[not_a_category]",
			ok:       true,
			reported: []m.MutationCategory{m.GlobalEnvMutation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			rule, ok := parseIgnore(tt.comment)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.all, rule.all)

			for _, c := range tt.ignored {
				assert.True(t, rule.ignores(c), c)
			}

			for _, c := range tt.reported {
				assert.False(t, rule.ignores(c), c)
			}
		})
	}
}

func TestStringLiteral(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{`"name"`, "name", true},
		{`'name'`, "name", true},
		{`"""doc"""`, "doc", true},
		{`r"raw"`, "raw", true},
		{`attr`, "", false},
		{`"`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := stringLiteral(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargets(t *testing.T) {
	fc, root := parse(t, "a, (b.c, d[0]) = x\n")

	var names []string
	for _, n := range Targets(firstOfType(root, "assignment")) {
		names = append(names, fc.Text(n))
	}

	assert.Equal(t, []string{"a", "b.c", "d[0]"}, names)
}
