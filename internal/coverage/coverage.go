// Package coverage holds the coverage data model and the in-process
// registry that accumulates hit counts while instrumented code runs.
package coverage

import "fmt"

// Location is a half-open source range. Columns are zero-based, lines
// one-based, matching what instrumenters typically emit.
type Location struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// Branch describes one branching construct and the locations of its paths.
// The counter for path i lives at index i of the record's branch counts.
type Branch struct {
	Type      string     `json:"type"`
	Loc       Location   `json:"loc"`
	Locations []Location `json:"locations"`
}

// Function describes one function declaration.
type Function struct {
	Name string   `json:"name"`
	Decl Location `json:"decl"`
}

// Skeleton is the fixed id space of one instrumented file: every countable
// statement, branch and function, with zero-initialized counters implied.
// Instrumentation establishes it once; it never grows afterwards.
type Skeleton struct {
	Statements map[string]Location `json:"statement_map"`
	Branches   map[string]Branch   `json:"branch_map"`
	Functions  map[string]Function `json:"fn_map"`
}

// Validate rejects skeletons whose branch path lists are empty, since a
// branch with no paths has nothing to count.
func (sk *Skeleton) Validate() error {
	for id, br := range sk.Branches {
		if len(br.Locations) == 0 {
			return fmt.Errorf("branch %q has no paths", id)
		}
	}
	return nil
}

// FileCoverage is the serializable coverage record of one source file:
// its skeleton plus the accumulated hit counts per id.
type FileCoverage struct {
	Path       string             `json:"path"`
	Statements map[string]int64   `json:"s"`
	Branches   map[string][]int64 `json:"b"`
	Functions  map[string]int64   `json:"f"`
	Skeleton   Skeleton           `json:"meta"`
}

// NewFileCoverage builds a zero-filled record for the given skeleton.
func NewFileCoverage(path string, sk Skeleton) *FileCoverage {
	fc := &FileCoverage{
		Path:       path,
		Statements: make(map[string]int64, len(sk.Statements)),
		Branches:   make(map[string][]int64, len(sk.Branches)),
		Functions:  make(map[string]int64, len(sk.Functions)),
		Skeleton:   sk,
	}
	for id := range sk.Statements {
		fc.Statements[id] = 0
	}
	for id, br := range sk.Branches {
		fc.Branches[id] = make([]int64, len(br.Locations))
	}
	for id := range sk.Functions {
		fc.Functions[id] = 0
	}
	return fc
}

// Map is a merged coverage map keyed by absolute file path.
type Map map[string]*FileCoverage

// CoveredStatements returns how many statements have a non-zero count and
// the total number of statements.
func (fc *FileCoverage) CoveredStatements() (covered, total int) {
	for _, n := range fc.Statements {
		total++
		if n > 0 {
			covered++
		}
	}
	return covered, total
}
