package configtable

import (
	"fmt"
	"regexp"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
)

var (
	numericPattern = regexp.MustCompile(`^[0-9]*[0-9](\.[0-9]+)?$`)
	boolPattern    = regexp.MustCompile(`^[01]$`)
)

// Validate checks the value of row against its metadata. Unreadable
// metadata is a Corrupt error; a rule violation is a Validation error
// scoped to the value column.
func Validate(opts Options, row database.Record) error {
	opts = opts.withDefaults()

	meta, err := ParseMetadata(row.String(opts.MetadataColumn))
	if err != nil {
		return err
	}
	return validateValue(opts, meta, row.String(opts.ValueColumn))
}

func validateValue(opts Options, meta Metadata, value string) error {
	col := opts.ValueColumn

	if value == "" && meta.Common().Required {
		return errs.Validation(col, fmt.Sprintf("`%s` column is mandatory", col))
	}

	// Numeric and bool values are checked even when empty.
	switch meta.(type) {
	case Numeric:
		if !numericPattern.MatchString(value) {
			return errs.Validation(col, fmt.Sprintf("Numeric value is required for column `%s`", col))
		}
	case Bool:
		if !boolPattern.MatchString(value) {
			return errs.Validation(col, fmt.Sprintf("Bool value (0/1) is required for column `%s`", col))
		}
	}
	return nil
}
