package datablock

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
)

// Field is a named, typed column of a Schema.
type Field struct {
	Name string
	Type DataType
}

// NewField returns a field.
func NewField(name string, t DataType) Field {
	return Field{Name: name, Type: t}
}

func (f Field) String() string {
	return f.Name + " " + f.Type.String()
}

// Schema is an ordered, immutable list of fields. Schemas are shared by
// pointer between plans, tables and blocks.
type Schema struct {
	fields []Field
	index  map[string]int
	arrow  *arrow.Schema
}

// NewSchema builds a schema from the given fields. Field names must be unique.
func NewSchema(fields ...Field) *Schema {
	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)

	arrowFields := make([]arrow.Field, 0, len(fields))
	for i, f := range fields {
		if _, ok := s.index[f.Name]; !ok {
			s.index[f.Name] = i
		}
		arrowFields = append(arrowFields, arrow.Field{Name: f.Name, Type: f.Type.ArrowType()})
	}
	s.arrow = arrow.NewSchema(arrowFields, nil)
	return s
}

// EmptySchema returns a schema without fields, used by statements that
// return no data.
func EmptySchema() *Schema {
	return NewSchema()
}

// NumFields returns the number of fields.
func (s *Schema) NumFields() int { return len(s.fields) }

// Field returns the field at index i.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the fields.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// FieldNames returns the names of all fields, in order.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		names = append(names, f.Name)
	}
	return names
}

// IndexOf returns the position of the named field.
func (s *Schema) IndexOf(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Project returns a schema with only the named fields, in the given order.
func (s *Schema) Project(names ...string) (*Schema, error) {
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		i, ok := s.index[name]
		if !ok {
			return nil, fmt.Errorf("unknown column `%s`", name)
		}
		fields = append(fields, s.fields[i])
	}
	return NewSchema(fields...), nil
}

// Equal returns true if both schemas have the same fields in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

// Arrow returns the arrow representation of the schema.
func (s *Schema) Arrow() *arrow.Schema { return s.arrow }

func (s *Schema) String() string {
	parts := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		parts = append(parts, f.String())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
