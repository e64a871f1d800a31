package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Anomaly is a run routed away from the invoice table. One row per file name.
type Anomaly struct{ ent.Schema }

func (Anomaly) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "anomalies"},
	}
}

func (Anomaly) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("file_name").
			MaxLen(255).
			NotEmpty().
			Immutable(),
		field.String("run_id").NotEmpty(),
		field.String("reason").Optional(),
		field.Time("processed_at").Default(time.Now),
		field.JSON("payload", json.RawMessage{}),
	}
}

func (Anomaly) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("processed_at"),
	}
}
