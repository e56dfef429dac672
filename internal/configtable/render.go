package configtable

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/koustreak/sqlgrid/internal/errs"
)

// Widget is the shape a cell takes on screen.
type Widget string

const (
	WidgetText         Widget = "text"
	WidgetEditableText Widget = "editable"
	WidgetRadioPair    Widget = "radio"
	WidgetSelect       Widget = "select"
	WidgetModalButton  Widget = "modal"
	WidgetBoolIcon     Widget = "bool"
	WidgetTruncated    Widget = "truncated"
	WidgetMetadata     Widget = "metadata"
	WidgetError        Widget = "error"
)

// Modal editors opened by a WidgetModalButton.
const (
	ModalPrompt   = "prompt"
	ModalRichEdit = "richedit"
)

// Display strings.
const (
	EditLabel       = "Edit value"
	DirtyNote       = "Updates not saved !"
	TruncatedMarker = "(⋯)"
	NewlineMarker   = "¶"
	BoolTrue        = "✔"
	BoolFalse       = "✘"
)

// Cell is the view model of one config table cell.
type Cell struct {
	Widget Widget `json:"widget"`
	Text   string `json:"text"`

	// Value is the full value behind a modal button or truncated text.
	Value string `json:"value,omitempty"`

	Choices  []string `json:"choices,omitempty"`
	Selected string   `json:"selected,omitempty"`
	Modal    string   `json:"modal,omitempty"`
	Hint     string   `json:"hint,omitempty"`

	Truncated bool   `json:"truncated,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	Note      string `json:"note,omitempty"`

	// Metadata cells.
	Icon      ValueType `json:"icon,omitempty"`
	Required  bool      `json:"required,omitempty"`
	Title     []string  `json:"title,omitempty"`
	Clickable bool      `json:"clickable,omitempty"`
}

// Edited records newValue coming back from a modal editor. Once a cell
// differs from its rendered value it stays marked dirty.
func (c Cell) Edited(newValue string) Cell {
	if newValue != c.Value && !c.Dirty {
		c.Dirty = true
		c.Note = DirtyNote
	}
	c.Value = newValue
	return c
}

// Input is what the user left in an edit-mode cell.
type Input struct {
	Text     string `json:"text"`     // editable text
	Selected string `json:"selected"` // radio pair or select
	Value    string `json:"value"`    // modal button
}

// ChoiceLookup returns the value column of the loaded row whose key is
// key.
type ChoiceLookup func(key string) (string, bool)

// RenderContext carries what value rendering needs beyond the cell.
type RenderContext struct {
	LineLength       int
	DefaultSeparator string
	Lookup           ChoiceLookup
}

var newlines = regexp.MustCompile(`\r?\n`)

// RenderValue builds the value cell for meta. In edit mode a list whose
// reference row is missing fails with a NotFound error.
func RenderValue(meta Metadata, editing bool, value string, rc RenderContext) (Cell, error) {
	hint := meta.Common().Hint
	if editing {
		return renderEdit(meta, value, rc, hint)
	}

	switch meta.(type) {
	case Bool:
		c := Cell{Widget: WidgetBoolIcon, Text: BoolFalse, Selected: "0", Hint: hint}
		if value == "1" {
			c.Text, c.Selected = BoolTrue, "1"
		}
		return c, nil
	case LongText, HTML:
		return truncate(value, rc.LineLength, hint), nil
	default:
		return Cell{Widget: WidgetText, Text: value, Hint: hint}, nil
	}
}

func renderEdit(meta Metadata, value string, rc RenderContext, hint string) (Cell, error) {
	switch m := meta.(type) {
	case Bool:
		selected := "0"
		if value == "1" {
			selected = "1"
		}
		return Cell{Widget: WidgetRadioPair, Choices: []string{"1", "0"}, Selected: selected, Hint: hint}, nil
	case List:
		choices, err := inlineChoices(m, rc)
		if err != nil {
			return Cell{}, err
		}
		return Cell{Widget: WidgetSelect, Choices: choices, Selected: value, Hint: hint}, nil
	case LongText:
		return Cell{Widget: WidgetModalButton, Text: EditLabel, Value: value, Modal: ModalPrompt, Hint: hint}, nil
	case HTML:
		return Cell{Widget: WidgetModalButton, Text: EditLabel, Value: value, Modal: ModalRichEdit, Hint: hint}, nil
	default:
		return Cell{Widget: WidgetEditableText, Text: value, Hint: hint}, nil
	}
}

// ExtractValue reads the stored value back out of an edit-mode cell.
func ExtractValue(meta Metadata, in Input) string {
	switch meta.(type) {
	case Bool:
		if in.Selected == "1" {
			return "1"
		}
		return "0"
	case List:
		return in.Selected
	case LongText, HTML:
		return in.Value
	default:
		return in.Text
	}
}

// inlineChoices resolves list choices from rows already loaded in the
// grid, without a query.
func inlineChoices(m List, rc RenderContext) ([]string, error) {
	values := m.Values
	if m.Ref != "" {
		var ok bool
		if rc.Lookup != nil {
			values, ok = rc.Lookup(m.Ref)
		}
		if !ok {
			return nil, errNoRow(m.Ref)
		}
	}
	return splitChoices(values, m.SeparatorOr(rc.DefaultSeparator)), nil
}

func truncate(value string, lineLength int, hint string) Cell {
	runes := []rune(value)
	c := Cell{Widget: WidgetTruncated, Value: value, Hint: hint}
	if lineLength > 0 && len(runes) > lineLength {
		runes = runes[:lineLength]
		c.Truncated = true
	}
	c.Text = newlines.ReplaceAllString(string(runes), NewlineMarker)
	if c.Truncated {
		c.Text += TruncatedMarker
	}
	return c
}

// RenderMetadata builds the metadata column cell. Unreadable metadata
// yields an error cell, not an error, so the rest of the grid still
// renders.
func RenderMetadata(raw string, editing bool) Cell {
	meta, err := ParseMetadata(raw)
	if err != nil {
		return ErrorCell("ERR", err)
	}

	c := meta.Common()
	required := "No"
	if c.Required {
		required = "Yes"
	}
	title := []string{
		fmt.Sprintf("Value type : %s", meta.Type()),
		fmt.Sprintf("Required : %s", required),
	}
	if l, ok := meta.(List); ok {
		if l.Separator != "" {
			title = append(title, fmt.Sprintf("Values separator char. : '%s'", l.Separator))
		}
		if l.Ref != "" {
			title = append(title, fmt.Sprintf("Values in row w/ key : '%s'", l.Ref))
		}
		if l.Values != "" {
			title = append(title, "List of values : (...)")
		}
	}
	if c.Hint != "" {
		title = append(title, fmt.Sprintf("Tooltip hint : %s", c.Hint))
	}

	return Cell{
		Widget:    WidgetMetadata,
		Icon:      meta.Type(),
		Required:  c.Required,
		Title:     title,
		Clickable: !editing,
	}
}

// ErrorCell marks a cell that could not be rendered.
func ErrorCell(text string, err error) Cell {
	return Cell{Widget: WidgetError, Text: text, Hint: errs.MessageOf(err)}
}

func splitChoices(values, sep string) []string {
	if values == "" {
		return []string{}
	}
	return strings.Split(values, sep)
}

func errNoRow(key string) error {
	return errs.Newf(errs.ErrKindNotFound, "No row found with key `%s`", key)
}
