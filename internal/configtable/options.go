package configtable

import (
	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
)

// Options names the columns of a config table and tunes display.
type Options struct {
	MetadataColumn   string `yaml:"metadataColumn"`
	ValueColumn      string `yaml:"valueColumn"`
	PrimaryKeyColumn string `yaml:"primaryKeyColumn"`
	DefaultSeparator string `yaml:"defaultSeparator"`
	LineLength       int    `yaml:"lineLength"`
}

// DefaultOptions returns the conventional column names.
func DefaultOptions() Options {
	return Options{
		MetadataColumn:   "metadata",
		ValueColumn:      "value",
		PrimaryKeyColumn: "key",
		DefaultSeparator: ";",
		LineLength:       75,
	}
}

// withDefaults fills unset fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MetadataColumn == "" {
		o.MetadataColumn = d.MetadataColumn
	}
	if o.ValueColumn == "" {
		o.ValueColumn = d.ValueColumn
	}
	if o.PrimaryKeyColumn == "" {
		o.PrimaryKeyColumn = d.PrimaryKeyColumn
	}
	if o.DefaultSeparator == "" {
		o.DefaultSeparator = d.DefaultSeparator
	}
	if o.LineLength <= 0 {
		o.LineLength = d.LineLength
	}
	return o
}

func (o Options) check() error {
	for _, c := range []string{o.MetadataColumn, o.ValueColumn, o.PrimaryKeyColumn} {
		if !database.ValidIdentifier(c) {
			return errs.Newf(errs.ErrKindInvalidInput, "invalid column name %q", c)
		}
	}
	return nil
}
