package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/db/ent/schema/utils"
)

// Invoice is one stored pipeline run, keyed by invoice number (or
// "file:<name>" when no number was extracted).
type Invoice struct{ ent.Schema }

func (Invoice) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "invoices"},
	}
}

func (Invoice) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("record_key").
			MaxLen(255).
			NotEmpty().
			Immutable(),
		field.String("invoice_number").Optional(),
		field.String("file_name").NotEmpty(),
		field.String("vendor_name").Optional(),
		// YYYY-MM-DD as extracted; not parsed so invalid dates survive for review
		field.String("invoice_date").Optional(),
		field.String("total_amount").Optional().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Float("confidence").Default(0),
		field.String("outcome").
			Validate(utils.EnumValidator(constants.Outcomes...)),
		field.Enum("validation_status").
			Values(
				string(constants.ValidationPending),
				string(constants.ValidationValid),
				string(constants.ValidationFailed),
				string(constants.ValidationErrored),
			),
		field.Enum("matching_status").
			Values(
				string(constants.MatchMatched),
				string(constants.MatchUnmatched),
				string(constants.MatchSkipped),
				string(constants.MatchError),
			),
		field.Enum("review_status").
			Values(
				string(constants.ReviewApproved),
				string(constants.ReviewNeedsReview),
				string(constants.ReviewRejected),
				string(constants.ReviewSkipped),
				string(constants.ReviewError),
			),
		field.String("document_key").Optional(),
		field.Time("processed_at").Default(time.Now),
		field.JSON("payload", json.RawMessage{}),
	}
}

func (Invoice) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("processed_at"),
		index.Fields("review_status"),
	}
}
