package command

import (
	"fmt"
	"strings"
)

// Canonical Kusto scalar column types.
const (
	TypeBool     = "bool"
	TypeDatetime = "datetime"
	TypeDecimal  = "decimal"
	TypeDynamic  = "dynamic"
	TypeGUID     = "guid"
	TypeInt      = "int"
	TypeLong     = "long"
	TypeReal     = "real"
	TypeString   = "string"
	TypeTimespan = "timespan"
)

var primitiveTypes = map[string]string{
	"bool":     TypeBool,
	"boolean":  TypeBool,
	"datetime": TypeDatetime,
	"date":     TypeDatetime,
	"decimal":  TypeDecimal,
	"dynamic":  TypeDynamic,
	"guid":     TypeGUID,
	"uuid":     TypeGUID,
	"uniqueid": TypeGUID,
	"int":      TypeInt,
	"int32":    TypeInt,
	"long":     TypeLong,
	"int64":    TypeLong,
	"real":     TypeReal,
	"double":   TypeReal,
	"string":   TypeString,
	"timespan": TypeTimespan,
	"time":     TypeTimespan,

	"system.boolean":                 TypeBool,
	"system.datetime":                TypeDatetime,
	"system.data.sqltypes.sqldecimal": TypeDecimal,
	"system.object":                  TypeDynamic,
	"system.guid":                    TypeGUID,
	"system.int32":                   TypeInt,
	"system.int64":                   TypeLong,
	"system.double":                  TypeReal,
	"system.string":                  TypeString,
	"system.timespan":                TypeTimespan,
}

// NormalizeType maps a column type, or one of its aliases, to its canonical name.
func NormalizeType(value string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	if canonical, ok := primitiveTypes[key]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown column type %q", value)
}

// PrimitiveTypes lists the canonical column types in a stable order.
func PrimitiveTypes() []string {
	return []string{
		TypeBool, TypeDatetime, TypeDecimal, TypeDynamic, TypeGUID,
		TypeInt, TypeLong, TypeReal, TypeString, TypeTimespan,
	}
}
