package directory

import "strconv"

// Entry is a directory entry returned from a search.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// First returns the first value of an attribute, or empty string.
func (e Entry) First(name string) string {
	values := e.Attributes[name]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Values returns every value of an attribute. Never nil.
func (e Entry) Values(name string) []string {
	values := e.Attributes[name]
	if values == nil {
		return []string{}
	}
	return values
}

// Int parses the first value of an attribute as an integer, 0 when absent.
func (e Entry) Int(name string) int {
	v, err := strconv.Atoi(e.First(name))
	if err != nil {
		return 0
	}
	return v
}

// ModOp identifies a modify operation type.
type ModOp int

const (
	// ModReplace replaces every value of the attribute.
	ModReplace ModOp = iota
	// ModAdd appends values to the attribute.
	ModAdd
	// ModDelete removes the given values, or the whole attribute when empty.
	ModDelete
)

// Modification describes one attribute change within a modify request.
type Modification struct {
	Op     ModOp
	Attr   string
	Values []string
}

// Replace builds a replace modification.
func Replace(attr string, values ...string) Modification {
	return Modification{Op: ModReplace, Attr: attr, Values: values}
}

// Add builds an add modification.
func Add(attr string, values ...string) Modification {
	return Modification{Op: ModAdd, Attr: attr, Values: values}
}

// Delete builds a delete modification.
func Delete(attr string, values ...string) Modification {
	return Modification{Op: ModDelete, Attr: attr, Values: values}
}
