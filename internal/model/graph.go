package model

import "strings"

// ImportEdge is a directed dependency between two top-level modules.
// Count keeps the number of import statements folded into the edge.
type ImportEdge struct {
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
	Count int    `json:"count" yaml:"count"`
}

// Hotspot is a module ranked by fan-in or fan-out.
type Hotspot struct {
	Module  string `json:"module" yaml:"module"`
	Degree  int    `json:"degree" yaml:"degree"`
	Imports int    `json:"imports" yaml:"imports"`
}

// Cycle is a closed import path; the first node is repeated at the end.
type Cycle []string

// String renders the cycle as a→b→a.
func (c Cycle) String() string {
	return strings.Join(c, "→")
}

// Key identifies a cycle independent of slice identity.
func (c Cycle) Key() string {
	return strings.Join(c, "\x00")
}
