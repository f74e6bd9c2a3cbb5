package expr

import "fmt"

// A queryPart represents a section of a parsed SQL statement. The parsed query
// is represented as a list of queryParts.
type queryPart interface {
	// String returns a string representation of the part for debugging and
	// testing purposes.
	String() string

	// part is a marker method.
	part()
}

// paramPart represents a named parameter reference of the form @name. The
// value is looked up by name when the query is rendered.
type paramPart struct {
	name string
	raw  string
}

func (p *paramPart) String() string {
	return fmt.Sprintf("Param[%s]", p.name)
}

// Marker function for queryPart.
func (p *paramPart) part() {}

// listPart represents a list placeholder of the form @LIST_name. It is
// replaced by a comma separated list of parameter references before the
// query is rendered.
type listPart struct {
	name string
	raw  string
}

func (p *listPart) String() string {
	return fmt.Sprintf("List[%s]", p.name)
}

// Marker function for queryPart.
func (p *listPart) part() {}

// bypassPart represents a part of the expression that is passed to the
// backend database verbatim.
type bypassPart struct {
	chunk string
}

func (p *bypassPart) String() string {
	return "Bypass[" + p.chunk + "]"
}

// Marker function for queryPart.
func (p *bypassPart) part() {}
