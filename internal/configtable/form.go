package configtable

import (
	"slices"

	"github.com/koustreak/sqlgrid/internal/errs"
)

// MetadataForm is the metadata dialog: one field per descriptor property,
// whatever the type.
type MetadataForm struct {
	Type      ValueType `json:"type"`
	Required  bool      `json:"required"`
	Hint      string    `json:"hint"`
	Separator string    `json:"separator"`
	List      string    `json:"list"`
	Values    string    `json:"values"`
}

// FormFor prefills the dialog from meta.
func FormFor(meta Metadata, opts Options) MetadataForm {
	opts = opts.withDefaults()
	c := meta.Common()
	f := MetadataForm{
		Type:      meta.Type(),
		Required:  c.Required,
		Hint:      c.Hint,
		Separator: opts.DefaultSeparator,
	}
	if l, ok := meta.(List); ok {
		f.Separator = l.SeparatorOr(opts.DefaultSeparator)
		f.List, f.Values = l.Ref, l.Values
	}
	return f
}

// Validate applies the submit rules of the dialog. Errors are Validation
// errors naming the offending field.
func (f MetadataForm) Validate() error {
	if f.Type == "" {
		return errs.Validation("type", "Value type is required")
	}
	if !slices.Contains(ValueTypes(), f.Type) {
		return errs.Validation("type", "Unknown value type `"+string(f.Type)+"`")
	}
	if f.Type == TypeList {
		if f.List == "" && f.Values == "" {
			return errs.Validation("list", "If value type = `list`, `Values in row` or `List of values` data must be set")
		}
		if f.Separator == "" {
			return errs.Validation("separator", "Separator character is required if value type = `list`")
		}
	}
	return nil
}

// Metadata builds the descriptor the form describes. Call Validate first.
func (f MetadataForm) Metadata() Metadata {
	base := Base{Required: f.Required, Hint: f.Hint}
	switch f.Type {
	case TypeLongText:
		return LongText{base}
	case TypeNumeric:
		return Numeric{base}
	case TypeBool:
		return Bool{base}
	case TypeHTML:
		return HTML{base}
	case TypeList:
		return List{Base: base, Ref: f.List, Values: f.Values, Separator: f.Separator}
	default:
		return Text{base}
	}
}
