package dialect

// MySQL is the server-table dialect, fed by information_schema column_type
// values such as "int(11)", "tinyint(1)" or "decimal(8,2) unsigned".
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Normalize(native string) Canonical {
	pt := parseNative(native)

	// tinyint(1) is how MySQL spells BOOLEAN; it must win over the integer family.
	if pt.base == "tinyint" && pt.hasSize && pt.size == 1 {
		return Bool
	}

	switch pt.base {
	case "integer", "int", "smallint", "mediumint", "tinyint", "bigint":
		return Int
	case "decimal", "numeric", "float", "double":
		return Float
	default:
		return String
	}
}

func (MySQL) Constraint(native string) Constraint {
	pt := parseNative(native)

	switch pt.base {
	case "varchar", "char":
		if pt.hasSize {
			return maxLength(pt.size)
		}
	case "tinyint":
		if pt.hasSize && pt.size == 1 {
			return nil
		}
		return signedRange(8, pt.unsigned)
	case "smallint":
		return signedRange(16, pt.unsigned)
	case "mediumint":
		return signedRange(24, pt.unsigned)
	case "int", "integer":
		return signedRange(32, pt.unsigned)
	case "decimal", "numeric":
		if pt.hasSize {
			return decimalFormat(pt.size, pt.scale, pt.hasScale)
		}
	}
	// bigint and everything else: nothing worth enforcing client-side.
	return nil
}
