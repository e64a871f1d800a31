package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// Column is the storage view of a schema field.
type Column struct {
	Name string
	Type field.Type
	Key  bool
}

// Columns lists the storage columns of fields in declaration order. The id
// field is the key and is reported under its storage key.
func Columns(fields []ent.Field) []Column {
	out := make([]Column, 0, len(fields))
	for _, f := range fields {
		d := f.Descriptor()
		c := Column{Name: d.Name, Type: d.Info.Type, Key: d.Name == "id"}
		if d.StorageKey != "" {
			c.Name = d.StorageKey
		}
		out = append(out, c)
	}
	return out
}

// ColumnNames returns the names of cols.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func InvoiceColumns() []Column { return Columns(Invoice{}.Fields()) }

func AnomalyColumns() []Column { return Columns(Anomaly{}.Fields()) }
