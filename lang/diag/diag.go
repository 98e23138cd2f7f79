// Package diag collects the diagnostics produced by every phase of the
// compiler: lexing, macro expansion, parsing, resolution, template
// instantiation, constant folding/type generation and code generation.
//
// It plays the role the teacher's go/scanner-flavored ErrorList plays for a
// single file, generalized to a whole compiler instance and to warnings
// carrying a stable numeric id (spec warning IDs).
package diag

import (
	"fmt"
	"sort"

	"github.com/mna/lethec/lang/token"
)

// Kind classifies an error so callers (and tests) can filter by phase
// without string-matching messages.
type Kind uint8

const (
	Lex Kind = iota
	Parse
	Name
	Type
	Template
	Codegen
)

func (k Kind) String() string {
	switch k {
	case Lex:
		return "lex"
	case Parse:
		return "parse"
	case Name:
		return "name"
	case Type:
		return "type"
	case Template:
		return "template"
	case Codegen:
		return "codegen"
	default:
		return "error"
	}
}

// Warning is a stable, filterable warning identifier (spec §6).
type Warning int

const (
	GENERIC Warning = iota
	UNREFERENCED
	CONV_PRECISION
	MISSING_OVERRIDE
	PRIV_PROT_INHERIT
	NOINIT_SMALL
	SHADOW
	OVERFLOW
	NRVO_PREVENTED
	PERF
	DISCARD
	DIV_BY_ZERO
	SIGNED_UNSIGNED_COMPARISON
	OUT_OF_ORDER_DESIGNATED_INITIALIZER
	COMPARE_BOOL_AND_NUMBER
	DEPRECATED
)

var warningNames = [...]string{
	GENERIC:                              "generic",
	UNREFERENCED:                         "unreferenced",
	CONV_PRECISION:                       "conv-precision",
	MISSING_OVERRIDE:                     "missing-override",
	PRIV_PROT_INHERIT:                    "priv-prot-inherit",
	NOINIT_SMALL:                         "noinit-small",
	SHADOW:                               "shadow",
	OVERFLOW:                             "overflow",
	NRVO_PREVENTED:                       "nrvo-prevented",
	PERF:                                 "perf",
	DISCARD:                              "discard",
	DIV_BY_ZERO:                          "div-by-zero",
	SIGNED_UNSIGNED_COMPARISON:           "signed-unsigned-comparison",
	OUT_OF_ORDER_DESIGNATED_INITIALIZER:  "out-of-order-designated-initializer",
	COMPARE_BOOL_AND_NUMBER:              "compare-bool-and-number",
	DEPRECATED:                           "deprecated",
}

func (w Warning) String() string {
	if int(w) < 0 || int(w) >= len(warningNames) {
		return fmt.Sprintf("warning(%d)", int(w))
	}
	return warningNames[w]
}

// Error is one diagnostic, an error or a warning, located at a source
// position.
type Error struct {
	Pos     token.Location
	Kind    Kind
	Warn    *Warning // nil for hard errors
	Msg     string
}

func (e *Error) Error() string {
	if e.Warn != nil {
		return fmt.Sprintf("%s: warning: %s [%s]", e.Pos, e.Msg, *e.Warn)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Sink accumulates errors and warnings for one compiler instance. It is not
// safe for concurrent use, matching the single-threaded-per-compiler model.
type Sink struct {
	Errors []*Error

	// nofail, while >0, suppresses newly added errors: the parser uses this
	// while speculatively trying an alternate grammar production and only
	// wants to keep the diagnostic from whichever path progressed furthest.
	nofail int
	best   *Error
	bestAt int
}

// Add records a hard error.
func (s *Sink) Add(kind Kind, pos token.Location, msg string) {
	e := &Error{Pos: pos, Kind: kind, Msg: msg}
	s.add(e)
}

// Addf is Add with fmt.Sprintf formatting.
func (s *Sink) Addf(kind Kind, pos token.Location, format string, args ...interface{}) {
	s.Add(kind, pos, fmt.Sprintf(format, args...))
}

// Warn records a warning with its stable numeric id.
func (s *Sink) Warn(kind Kind, pos token.Location, w Warning, msg string) {
	e := &Error{Pos: pos, Kind: kind, Warn: &w, Msg: msg}
	s.add(e)
}

func (s *Sink) add(e *Error) {
	if s.nofail > 0 {
		// Keep only the diagnostic that represents the deepest recovery
		// attempt; "deepest" is approximated by insertion order among the
		// suppressed candidates, the last one wins, mirroring the parser's
		// own forward-progress heuristic.
		s.best = e
		return
	}
	s.Errors = append(s.Errors, e)
}

// BeginNoFail suppresses error reporting until EndNoFail is called. Used by
// the parser when it attempts a speculative production (e.g. disambiguating
// a declaration from an expression statement).
func (s *Sink) BeginNoFail() { s.nofail++ }

// EndNoFail stops suppressing errors. If keepBest is true and a diagnostic
// was produced while suppressed, it is re-issued.
func (s *Sink) EndNoFail(keepBest bool) {
	s.nofail--
	if s.nofail < 0 {
		s.nofail = 0
	}
	if s.nofail == 0 && keepBest && s.best != nil {
		s.Errors = append(s.Errors, s.best)
		s.best = nil
	} else if s.nofail == 0 {
		s.best = nil
	}
}

// Err returns a combined error for all accumulated hard errors (warnings
// excluded), or nil if there are none.
func (s *Sink) Err() error {
	var hard []*Error
	for _, e := range s.Errors {
		if e.Warn == nil {
			hard = append(hard, e)
		}
	}
	if len(hard) == 0 {
		return nil
	}
	return list(hard)
}

// Sort orders diagnostics by position, matching go/scanner.ErrorList.Sort.
func (s *Sink) Sort() {
	sort.SliceStable(s.Errors, func(i, j int) bool {
		a, b := s.Errors[i].Pos, s.Errors[j].Pos
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

type list []*Error

func (l list) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more errors)", l[0], len(l)-1)
	}
}

func (l list) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}
