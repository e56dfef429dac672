package configtable

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
)

func row(metadata, value string) database.Record {
	return database.NewRecord(
		database.Field{Name: "key", Value: "k"},
		database.Field{Name: "metadata", Value: metadata},
		database.Field{Name: "value", Value: value},
	)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		value    string
		wantMsg  string
	}{
		{"text", `{"type":"text"}`, "anything", ""},
		{"empty optional text", `{"type":"text"}`, "", ""},
		{"empty optional numeric", `{"type":"numeric","required":0}`, "", "Numeric value is required for column `value`"},
		{"empty optional bool", `{"type":"bool","required":0}`, "", "Bool value (0/1) is required for column `value`"},
		{"empty optional list", `{"type":"list","values":"a;b"}`, "", ""},
		{"empty required", `{"type":"text","required":1}`, "", "`value` column is mandatory"},
		{"integer", `{"type":"numeric"}`, "42", ""},
		{"decimal", `{"type":"numeric"}`, "3.14", ""},
		{"leading dot", `{"type":"numeric"}`, ".5", "Numeric value is required for column `value`"},
		{"any char", `{"type":"numeric"}`, "3x14", "Numeric value is required for column `value`"},
		{"negative", `{"type":"numeric"}`, "-1", "Numeric value is required for column `value`"},
		{"bool 1", `{"type":"bool"}`, "1", ""},
		{"bool 0", `{"type":"bool","required":1}`, "0", ""},
		{"bool word", `{"type":"bool"}`, "true", "Bool value (0/1) is required for column `value`"},
		{"list", `{"type":"list","values":"a;b"}`, "c", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(DefaultOptions(), row(tt.metadata, tt.value))
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errs.IsValidation(err))
			assert.Equal(t, "value", errs.FieldOf(err))
			assert.Equal(t, tt.wantMsg, errs.MessageOf(err))
		})
	}
}

func TestValidate_CustomColumns(t *testing.T) {
	opts := Options{MetadataColumn: "meta", ValueColumn: "val"}
	r := database.NewRecord(
		database.Field{Name: "meta", Value: `{"type":"bool"}`},
		database.Field{Name: "val", Value: "2"},
	)

	err := Validate(opts, r)
	assert.Equal(t, "val", errs.FieldOf(err))
	assert.Equal(t, "Bool value (0/1) is required for column `val`", errs.MessageOf(err))
}

func TestValidate_UnreadableMetadata(t *testing.T) {
	err := Validate(DefaultOptions(), row("{", "x"))
	assert.True(t, errs.IsCorrupt(err))
}
