package dialect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// typeParams matches the parameter list of a native type: varchar(40),
// decimal(8,2), int(11).
var typeParams = regexp.MustCompile(`([a-z]+)\(([0-9]+)(?:,\s*([0-9]+))?\)`)

// parsedType is a native type split into its base name and parameters.
type parsedType struct {
	base     string
	size     int
	scale    int
	hasSize  bool
	hasScale bool
	unsigned bool
}

func parseNative(native string) parsedType {
	n := strings.ToLower(strings.TrimSpace(native))
	pt := parsedType{unsigned: strings.Contains(n, "unsigned")}

	if m := typeParams.FindStringSubmatch(n); m != nil {
		pt.base = m[1]
		pt.size, _ = strconv.Atoi(m[2])
		pt.hasSize = true
		if m[3] != "" {
			pt.scale, _ = strconv.Atoi(m[3])
			pt.hasScale = true
		}
	}

	// The regexp only sees the last word before "(", so multi-word names
	// (character varying(40)) and bare names (integer) are taken verbatim.
	if i := strings.IndexByte(n, '('); i >= 0 {
		n = n[:i]
	}
	n = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "unsigned"))
	if n != "" {
		pt.base = n
	}
	return pt
}

func maxLength(n int) Constraint {
	return func(v string) bool {
		return utf8.RuneCountInString(v) <= n
	}
}

func intRange(lo, hi int64) Constraint {
	return func(v string) bool {
		if v == "" {
			return true
		}
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return false
		}
		return i >= lo && i <= hi
	}
}

// signedRange returns the range of a signed integer of the given bit width,
// or its unsigned counterpart.
func signedRange(bits uint, unsigned bool) Constraint {
	if unsigned {
		return intRange(0, int64(1)<<bits-1)
	}
	return intRange(-(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1)
}

// decimalFormat accepts p-s integer digits and, when a scale is given,
// a literal dot followed by up to s fraction digits.
func decimalFormat(precision, scale int, hasScale bool) Constraint {
	var pattern string
	switch {
	case !hasScale || scale == 0:
		pattern = fmt.Sprintf(`^[0-9]{1,%d}$`, precision)
	case precision-scale < 1:
		pattern = fmt.Sprintf(`^0?\.[0-9]{1,%d}$`, scale)
	default:
		pattern = fmt.Sprintf(`^[0-9]{1,%d}\.[0-9]{1,%d}$`, precision-scale, scale)
	}
	re := regexp.MustCompile(pattern)
	return func(v string) bool {
		return v == "" || re.MatchString(v)
	}
}
