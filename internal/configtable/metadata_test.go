package configtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlgrid/internal/errs"
)

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Metadata
	}{
		{"default", DefaultMetadata, Text{}},
		{"required int", `{"type":"numeric","required":1}`, Numeric{Base{Required: true}}},
		{"required bool", `{"type":"bool","required":true}`, Bool{Base{Required: true}}},
		{"required string", `{"type":"longtext","required":"1","hint":"h"}`, LongText{Base{Required: true, Hint: "h"}}},
		{"missing required", `{"type":"html"}`, HTML{}},
		{"list ref", `{"type":"list","list":"B"}`, List{Ref: "B"}},
		{"list values", `{"type":"list","values":"a|b","separator":"|"}`, List{Values: "a|b", Separator: "|"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMetadata(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMetadata_Errors(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "{not json", `{"type":"text","required":"yes"}`} {
		_, err := ParseMetadata(raw)
		assert.True(t, errs.IsCorrupt(err), "raw %q: %v", raw, err)
	}

	_, err := ParseMetadata(`{"required":0}`)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = ParseMetadata(`{"type":"date"}`)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), `"date"`)
}

func TestEncodeMetadata(t *testing.T) {
	got, err := EncodeMetadata(Text{})
	require.NoError(t, err)
	assert.JSONEq(t, DefaultMetadata, got)

	got, err = EncodeMetadata(List{Base: Base{Required: true, Hint: "pick"}, Ref: "colors", Separator: ","})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"list","required":1,"hint":"pick","list":"colors","separator":","}`, got)

	back, err := ParseMetadata(got)
	require.NoError(t, err)
	assert.Equal(t, List{Base: Base{Required: true, Hint: "pick"}, Ref: "colors", Separator: ","}, back)

	_, err = EncodeMetadata(nil)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestList_SeparatorOr(t *testing.T) {
	assert.Equal(t, ";", List{}.SeparatorOr(";"))
	assert.Equal(t, "|", List{Separator: "|"}.SeparatorOr(";"))
}

func TestValueTypes(t *testing.T) {
	assert.Equal(t, []ValueType{TypeText, TypeLongText, TypeNumeric, TypeBool, TypeList, TypeHTML}, ValueTypes())
}
