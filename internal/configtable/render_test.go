package configtable

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlgrid/internal/errs"
)

func lookupFrom(m map[string]string) ChoiceLookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestRenderValue_ReadMode(t *testing.T) {
	rc := RenderContext{LineLength: 10, DefaultSeparator: ";"}

	c, err := RenderValue(Bool{}, false, "1", rc)
	require.NoError(t, err)
	assert.Equal(t, WidgetBoolIcon, c.Widget)
	assert.Equal(t, BoolTrue, c.Text)

	c, err = RenderValue(Bool{}, false, "", rc)
	require.NoError(t, err)
	assert.Equal(t, BoolFalse, c.Text)

	c, err = RenderValue(Text{Base{Hint: "h"}}, false, "plain", rc)
	require.NoError(t, err)
	assert.Equal(t, Cell{Widget: WidgetText, Text: "plain", Hint: "h"}, c)

	c, err = RenderValue(LongText{}, false, "short\ntext", rc)
	require.NoError(t, err)
	assert.Equal(t, WidgetTruncated, c.Widget)
	assert.Equal(t, "short"+NewlineMarker+"text", c.Text)
	assert.False(t, c.Truncated)

	c, err = RenderValue(HTML{}, false, strings.Repeat("é", 12), rc)
	require.NoError(t, err)
	assert.True(t, c.Truncated)
	assert.Equal(t, strings.Repeat("é", 10)+TruncatedMarker, c.Text)
	assert.Equal(t, strings.Repeat("é", 12), c.Value)
}

func TestRenderValue_EditMode(t *testing.T) {
	rc := RenderContext{DefaultSeparator: ";", Lookup: lookupFrom(map[string]string{"B": "red;green;blue"})}

	c, err := RenderValue(Bool{}, true, "1", rc)
	require.NoError(t, err)
	assert.Equal(t, WidgetRadioPair, c.Widget)
	assert.Equal(t, []string{"1", "0"}, c.Choices)
	assert.Equal(t, "1", c.Selected)

	c, err = RenderValue(List{Ref: "B"}, true, "green", rc)
	require.NoError(t, err)
	assert.Equal(t, WidgetSelect, c.Widget)
	assert.Equal(t, []string{"red", "green", "blue"}, c.Choices)
	assert.Equal(t, "green", c.Selected)

	c, err = RenderValue(List{Values: "x|y", Separator: "|"}, true, "", rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, c.Choices)

	_, err = RenderValue(List{Ref: "missing-key"}, true, "", rc)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, "No row found with key `missing-key`", errs.MessageOf(err))

	c, err = RenderValue(LongText{}, true, "body", rc)
	require.NoError(t, err)
	assert.Equal(t, Cell{Widget: WidgetModalButton, Text: EditLabel, Value: "body", Modal: ModalPrompt}, c)

	c, err = RenderValue(HTML{}, true, "<b>x</b>", rc)
	require.NoError(t, err)
	assert.Equal(t, ModalRichEdit, c.Modal)

	c, err = RenderValue(Numeric{}, true, "3", rc)
	require.NoError(t, err)
	assert.Equal(t, Cell{Widget: WidgetEditableText, Text: "3"}, c)
}

func TestExtractValue(t *testing.T) {
	in := Input{Text: "typed", Selected: "1", Value: "modal"}

	assert.Equal(t, "typed", ExtractValue(Text{}, in))
	assert.Equal(t, "typed", ExtractValue(Numeric{}, in))
	assert.Equal(t, "1", ExtractValue(Bool{}, in))
	assert.Equal(t, "0", ExtractValue(Bool{}, Input{}))
	assert.Equal(t, "1", ExtractValue(List{}, in))
	assert.Equal(t, "modal", ExtractValue(LongText{}, in))
	assert.Equal(t, "modal", ExtractValue(HTML{}, in))
}

func TestCell_Edited(t *testing.T) {
	c, err := RenderValue(LongText{}, true, "v1", RenderContext{})
	require.NoError(t, err)

	same := c.Edited("v1")
	assert.False(t, same.Dirty)

	dirty := c.Edited("v2")
	assert.True(t, dirty.Dirty)
	assert.Equal(t, DirtyNote, dirty.Note)

	back := dirty.Edited("v1")
	assert.True(t, back.Dirty, "a dirty cell stays dirty")
}

func TestRenderMetadata(t *testing.T) {
	c := RenderMetadata(`{"type":"list","required":1,"list":"B","separator":",","values":"a,b","hint":"pick one"}`, false)
	assert.Equal(t, WidgetMetadata, c.Widget)
	assert.Equal(t, TypeList, c.Icon)
	assert.True(t, c.Required)
	assert.True(t, c.Clickable)
	assert.Equal(t, []string{
		"Value type : list",
		"Required : Yes",
		"Values separator char. : ','",
		"Values in row w/ key : 'B'",
		"List of values : (...)",
		"Tooltip hint : pick one",
	}, c.Title)

	c = RenderMetadata(DefaultMetadata, true)
	assert.Equal(t, []string{"Value type : text", "Required : No"}, c.Title)
	assert.False(t, c.Clickable)

	c = RenderMetadata("{broken", false)
	assert.Equal(t, WidgetError, c.Widget)
	assert.Equal(t, "ERR", c.Text)
	assert.NotEmpty(t, c.Hint)
}
