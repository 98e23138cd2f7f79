package token

import "fmt"

// Location is a source position: an interned file name plus line and
// column, both 1-based. It must round-trip through '#line' directives,
// so unlike the teacher's packed Pos it keeps file/line/column as plain
// fields rather than bit-packing them into a single machine word — a
// '#line' directive can retarget the file name and reset the line
// arbitrarily, which a fixed-width packed encoding of a file index
// would not survive across compiler instances.
type Location struct {
	File   string
	Line   int
	Column int
}

// Unknown is the zero Location, used when no better position is known.
var Unknown = Location{}

// IsValid reports whether loc carries real position information.
func (loc Location) IsValid() bool { return loc.Line > 0 }

func (loc Location) String() string {
	if !loc.IsValid() {
		return "<unknown position>"
	}
	if loc.File == "" {
		return fmt.Sprintf("%d:%d", loc.Line, loc.Column)
	}
	return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Column)
}

// Less orders locations by file, then line, then column; used to sort
// diagnostics.
func (loc Location) Less(other Location) bool {
	if loc.File != other.File {
		return loc.File < other.File
	}
	if loc.Line != other.Line {
		return loc.Line < other.Line
	}
	return loc.Column < other.Column
}
