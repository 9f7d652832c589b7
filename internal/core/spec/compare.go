package spec

import (
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func isNil(v any) bool {
	return deref(v) == nil
}

// normalize folds numeric kinds into int64/float64 and named string/bool types into their base.
func normalize(v any) any {
	v = deref(v)
	switch t := v.(type) {
	case nil, time.Time, decimal.Decimal:
		return t
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

func equal(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if na, ok := normalize(a).(bool); ok {
		nb, ok := normalize(b).(bool)
		return ok && na == nb
	}
	cmp, ok := compare(a, b)
	return ok && cmp == 0
}

// compare orders two values of compatible types. ok is false for NULLs and mismatched types.
func compare(a, b any) (int, bool) {
	na, nb := normalize(a), normalize(b)
	if na == nil || nb == nil {
		return 0, false
	}

	switch x := na.(type) {
	case int64:
		switch y := nb.(type) {
		case int64:
			return cmpOrdered(x, y), true
		case float64:
			return cmpOrdered(float64(x), y), true
		case decimal.Decimal:
			return decimal.NewFromInt(x).Cmp(y), true
		}
	case float64:
		switch y := nb.(type) {
		case int64:
			return cmpOrdered(x, float64(y)), true
		case float64:
			return cmpOrdered(x, y), true
		case decimal.Decimal:
			return decimal.NewFromFloat(x).Cmp(y), true
		}
	case decimal.Decimal:
		switch y := nb.(type) {
		case decimal.Decimal:
			return x.Cmp(y), true
		case int64:
			return x.Cmp(decimal.NewFromInt(y)), true
		case float64:
			return x.Cmp(decimal.NewFromFloat(y)), true
		}
	case string:
		if y, ok := nb.(string); ok {
			return cmpOrdered(x, y), true
		}
	case time.Time:
		if y, ok := nb.(time.Time); ok {
			return x.Compare(y), true
		}
	case bool:
		if y, ok := nb.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func cmpOrdered[V int64 | float64 | string](a, b V) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// CompareValues orders two column values with NULLs first. Used for in-memory sorting.
func CompareValues(a, b any) int {
	an, bn := isNil(a), isNil(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	cmp, _ := compare(a, b)
	return cmp
}
