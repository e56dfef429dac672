package database

import (
	"github.com/koustreak/sqlgrid/internal/errs"
)

// ScanRecords reads all rows from the result set and returns them as
// ordered Records. []byte values are converted to strings so every
// backend hands text columns over the same way.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRecords always closes the Rows, so callers do not need to call Close().
func ScanRecords(rows Rows) ([]Record, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	result := make([]Record, 0)

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		for i, v := range dest {
			if b, ok := v.([]byte); ok {
				dest[i] = string(b)
			}
		}
		result = append(result, RecordOf(columns, dest))
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "error during row iteration", err)
	}

	return result, nil
}
