package dialect

// Postgres maps the output of format_type(), e.g. "character varying(40)",
// "numeric(8,2)", "integer", "boolean".
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Normalize(native string) Canonical {
	switch parseNative(native).base {
	case "boolean", "bool":
		return Bool
	case "smallint", "integer", "int", "int2", "int4", "int8", "bigint",
		"smallserial", "serial", "bigserial":
		return Int
	case "numeric", "decimal", "real", "float4", "float8", "double precision":
		return Float
	default:
		return String
	}
}

func (Postgres) Constraint(native string) Constraint {
	pt := parseNative(native)

	switch pt.base {
	case "character varying", "varchar", "character", "char":
		if pt.hasSize {
			return maxLength(pt.size)
		}
	case "smallint", "int2", "smallserial":
		return signedRange(16, false)
	case "integer", "int", "int4", "serial":
		return signedRange(32, false)
	case "numeric", "decimal":
		if pt.hasSize {
			return decimalFormat(pt.size, pt.scale, pt.hasScale)
		}
	}
	return nil
}
