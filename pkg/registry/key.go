package registry

import (
	"fmt"
	"reflect"
	"strings"
)

// Key identifies one pool. Two requests with equal keys share a pool.
type Key struct {
	Kind string
	Type string
	Size int
}

// String renders the key as kind/type/size.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Kind, k.Type, k.Size)
}

// TypeName returns the fingerprint used for T. Named types carry their full
// package path, so math/rand.Rand and math/rand/v2.Rand differ. Types
// declared inside functions are only told apart by name.
func TypeName[T any]() string {
	return typeName(reflect.TypeFor[T]())
}

func typeName(t reflect.Type) string {
	if t.Name() != "" {
		if p := t.PkgPath(); p != "" {
			return p + "." + t.Name()
		}
		return t.Name()
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeName(t.Elem())
	case reflect.Slice:
		return "[]" + typeName(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), typeName(t.Elem()))
	case reflect.Map:
		return "map[" + typeName(t.Key()) + "]" + typeName(t.Elem())
	case reflect.Chan:
		return t.ChanDir().String() + " " + typeName(t.Elem())
	case reflect.Struct:
		if t.NumField() == 0 {
			return "struct {}"
		}
		fields := make([]string, t.NumField())
		for i := range fields {
			f := t.Field(i)
			name := f.Name
			if f.PkgPath != "" {
				name = f.PkgPath + "." + name
			}
			fields[i] = name + " " + typeName(f.Type)
		}
		return "struct { " + strings.Join(fields, "; ") + " }"
	default:
		return t.String()
	}
}

// ColumnKey returns the key of the column pool for element type T and the
// given capacity.
func ColumnKey[T any](size int) Key {
	return Key{Kind: "column", Type: TypeName[T](), Size: size}
}
