package model

import (
	"fmt"
	"sort"
)

// MutationCategory classifies a runtime-mutation ("monkey patch") pattern.
type MutationCategory string

const (
	// AttributeReassignmentOnImport is an assignment to an attribute of an
	// imported name that runs at import time.
	AttributeReassignmentOnImport MutationCategory = "attribute_reassignment_on_import"
	// GlobalEnvMutation is a write to process-wide environment state.
	GlobalEnvMutation MutationCategory = "global_env_mutation"
	// ImportTimeSideEffect is a statement-level call executed at module top level.
	ImportTimeSideEffect MutationCategory = "import_time_side_effect"
	// SysModulesAssignment is a write to the interpreter module registry.
	SysModulesAssignment MutationCategory = "sys_modules_assignment"
	// BuiltinsMutation is a write to the builtin or module-global namespace.
	BuiltinsMutation MutationCategory = "builtins_mutation"
	// SetattrOnImportOrClass is a setattr() call on an imported object or a class.
	SetattrOnImportOrClass MutationCategory = "setattr_on_import_or_class"
)

var allCategories = []MutationCategory{
	AttributeReassignmentOnImport,
	GlobalEnvMutation,
	ImportTimeSideEffect,
	SysModulesAssignment,
	BuiltinsMutation,
	SetattrOnImportOrClass,
}

// AllCategories returns every category in report order.
func AllCategories() []MutationCategory {
	out := make([]MutationCategory, len(allCategories))
	copy(out, allCategories)

	return out
}

// ParseCategory validates a category name.
func ParseCategory(name string) (MutationCategory, error) {
	for _, c := range allCategories {
		if string(c) == name {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Finding is one detected mutation pattern. Findings are never modified
// after the scanner creates them.
type Finding struct {
	Category       MutationCategory `json:"category" yaml:"category"`
	File           Path             `json:"file" yaml:"file"`
	Line           int              `json:"line" yaml:"line"`
	Column         int              `json:"column" yaml:"column"`
	Symbol         string           `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Module         string           `json:"module" yaml:"module"`
	PolicyRelevant bool             `json:"policy_relevant" yaml:"policy_relevant"`
}

// SortFindings orders findings by file, position and category.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}

		if a.Line != b.Line {
			return a.Line < b.Line
		}

		if a.Column != b.Column {
			return a.Column < b.Column
		}

		return a.Category < b.Category
	})
}

// CategoryCounts holds one counter per category.
type CategoryCounts map[MutationCategory]int

// NewCategoryCounts returns counts with every category present and zero.
func NewCategoryCounts() CategoryCounts {
	counts := make(CategoryCounts, len(allCategories))
	for _, c := range allCategories {
		counts[c] = 0
	}

	return counts
}

// Total sums all categories.
func (c CategoryCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}

	return total
}

// CountFindings tallies findings into the all and policy-only views.
func CountFindings(findings []Finding) (all CategoryCounts, policy CategoryCounts) {
	all = NewCategoryCounts()
	policy = NewCategoryCounts()

	for _, f := range findings {
		all[f.Category]++

		if f.PolicyRelevant {
			policy[f.Category]++
		}
	}

	return all, policy
}
