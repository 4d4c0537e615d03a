// Package model defines the data structures shared by the scanner, the
// import graph and the trend engine.
package model

// Path represents a file system path.
type Path string

// FileClass is the outcome of the test-classification policy for a file.
type FileClass string

const (
	// ClassPolicy marks production code that counts towards the policy view.
	ClassPolicy FileClass = "policy"
	// ClassTest marks test code and fixtures.
	ClassTest FileClass = "test"
)

// SourceFile is a single candidate file produced by the walker.
// It is owned by exactly one worker while it is parsed and scanned.
type SourceFile struct {
	Path       Path   // absolute or root-joined path used for reading
	RelPath    string // slash separated, relative to the scan root
	Content    []byte
	Class      FileClass
	ModuleName string // dotted module name, e.g. agents.api.client
	TopLevel   string // first segment of ModuleName
}

// IsTest reports whether the file was classified as test code.
func (s SourceFile) IsTest() bool {
	return s.Class == ClassTest
}

// PolicyRelevant reports whether findings in this file count towards the
// policy-only view.
func (s SourceFile) PolicyRelevant() bool {
	return s.Class != ClassTest
}
