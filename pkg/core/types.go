package core

// Type is the semantic type of a mapped column.
// Dialects translate it into a concrete column type for DDL.
type Type int

// Semantic column types.
const (
	TypeString Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeBytes
	TypeUUID
	TypeDecimal
)

var typeNames = [...]string{
	TypeString:  "string",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeTime:    "time",
	TypeBytes:   "bytes",
	TypeUUID:    "uuid",
	TypeDecimal: "decimal",
}

// String returns the lowercase name of the type.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}
