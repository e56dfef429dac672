// Package configtable edits a table used as a typed key/value store. Each
// row carries a key, a value and a JSON metadata descriptor telling how
// the value is validated, displayed and edited.
package configtable

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/koustreak/sqlgrid/internal/errs"
)

// ValueType is the type tag of a metadata descriptor.
type ValueType string

const (
	TypeText     ValueType = "text"
	TypeLongText ValueType = "longtext"
	TypeNumeric  ValueType = "numeric"
	TypeBool     ValueType = "bool"
	TypeList     ValueType = "list"
	TypeHTML     ValueType = "html"
)

// ValueTypes lists the known types in the order the metadata form offers
// them.
func ValueTypes() []ValueType {
	return []ValueType{TypeText, TypeLongText, TypeNumeric, TypeBool, TypeList, TypeHTML}
}

// DefaultMetadata is stored in the metadata column of inserted rows.
const DefaultMetadata = `{"type":"text","required":0}`

// Base holds the fields every descriptor has.
type Base struct {
	Required bool
	Hint     string
}

// Common returns the shared fields.
func (b Base) Common() Base { return b }

// Metadata is a parsed descriptor. The set of implementations is closed:
// Text, LongText, Numeric, Bool, List and HTML.
type Metadata interface {
	Type() ValueType
	Common() Base
	isMetadata()
}

type Text struct{ Base }

type LongText struct{ Base }

type Numeric struct{ Base }

type Bool struct{ Base }

type HTML struct{ Base }

// List takes its choices either inline from Values or from the value of
// the row whose key is Ref, split on Separator.
type List struct {
	Base
	Ref       string
	Values    string
	Separator string
}

func (Text) Type() ValueType     { return TypeText }
func (LongText) Type() ValueType { return TypeLongText }
func (Numeric) Type() ValueType  { return TypeNumeric }
func (Bool) Type() ValueType     { return TypeBool }
func (HTML) Type() ValueType     { return TypeHTML }
func (List) Type() ValueType     { return TypeList }

func (Text) isMetadata()     {}
func (LongText) isMetadata() {}
func (Numeric) isMetadata()  {}
func (Bool) isMetadata()     {}
func (HTML) isMetadata()     {}
func (List) isMetadata()     {}

// SeparatorOr returns the list separator, or def when none is set.
func (l List) SeparatorOr(def string) string {
	if l.Separator != "" {
		return l.Separator
	}
	return def
}

// --- JSON form ---

// flag is the "required" field. It is written as 0 or 1 and read from a
// number, a boolean or a numeric string.
type flag bool

func (f flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (f *flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	switch s {
	case "true":
		*f = true
	case "false", "", "null":
		*f = false
	default:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = n != 0
	}
	return nil
}

type wireMetadata struct {
	Type      ValueType `json:"type"`
	Required  flag      `json:"required"`
	Hint      string    `json:"hint,omitempty"`
	Separator string    `json:"separator,omitempty"`
	List      string    `json:"list,omitempty"`
	Values    string    `json:"values,omitempty"`
}

// ParseMetadata decodes a metadata column value. Unreadable or null JSON
// is a Corrupt error; a readable descriptor with an unknown type is
// InvalidInput.
func ParseMetadata(raw string) (Metadata, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, errs.New(errs.ErrKindCorrupt, "unreadable metadata")
	}

	var w wireMetadata
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errs.Wrap(errs.ErrKindCorrupt, "unreadable metadata JSON", err)
	}

	base := Base{Required: bool(w.Required), Hint: w.Hint}
	switch w.Type {
	case TypeText:
		return Text{base}, nil
	case TypeLongText:
		return LongText{base}, nil
	case TypeNumeric:
		return Numeric{base}, nil
	case TypeBool:
		return Bool{base}, nil
	case TypeHTML:
		return HTML{base}, nil
	case TypeList:
		return List{Base: base, Ref: w.List, Values: w.Values, Separator: w.Separator}, nil
	case "":
		return nil, errs.New(errs.ErrKindInvalidInput, "metadata has no value type")
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown value type %q", w.Type)
	}
}

// EncodeMetadata returns the JSON stored in the metadata column.
func EncodeMetadata(m Metadata) (string, error) {
	if m == nil {
		return "", errs.New(errs.ErrKindInvalidInput, "missing metadata")
	}

	c := m.Common()
	w := wireMetadata{Type: m.Type(), Required: flag(c.Required), Hint: c.Hint}
	if l, ok := m.(List); ok {
		w.Separator, w.List, w.Values = l.Separator, l.Ref, l.Values
	}

	data, err := json.Marshal(w)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "failed to encode metadata", err)
	}
	return string(data), nil
}
