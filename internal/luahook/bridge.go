package luahook

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// toLua converts a Go value to a Lua value.
// Structs become tables keyed by field name (or `lua` tag); values with
// no Lua equivalent are carried as userdata.
func toLua(L *lua.LState, v any) lua.LValue {
	if v == nil {
		return lua.LNil
	}

	switch val := v.(type) {
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case error:
		return lua.LString(val.Error())
	}
	return reflectToLua(L, reflect.ValueOf(v))
}

func reflectToLua(L *lua.LState, rv reflect.Value) lua.LValue {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.String:
		return lua.LString(rv.String())

	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil
		}
		return toLua(L, rv.Elem().Interface())

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return lua.LNil
		}
		t := L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, toLua(L, rv.Index(i).Interface()))
		}
		return t

	case reflect.Map:
		if rv.IsNil() {
			return lua.LNil
		}
		t := L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSet(toLua(L, iter.Key().Interface()), toLua(L, iter.Value().Interface()))
		}
		return t

	case reflect.Struct:
		t := L.NewTable()
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			name, ok := fieldName(field)
			if !ok {
				continue
			}
			t.RawSetString(name, toLua(L, rv.Field(i).Interface()))
		}
		return t

	default:
		ud := L.NewUserData()
		ud.Value = rv.Interface()
		return ud
	}
}

// fieldName returns the Lua key for a struct field. Unexported fields and
// fields tagged `lua:"-"` have none.
func fieldName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	switch tag := f.Tag.Get("lua"); tag {
	case "-":
		return "", false
	case "":
		return f.Name, true
	default:
		return tag, true
	}
}

// fromLua converts lv to a value of type t. Struct fields absent from a
// table keep their value in base, which may be invalid.
func fromLua(lv lua.LValue, t reflect.Type, base reflect.Value) (reflect.Value, error) {
	if ud, ok := lv.(*lua.LUserData); ok {
		uv := reflect.ValueOf(ud.Value)
		if uv.IsValid() && uv.Type().AssignableTo(t) {
			out := reflect.New(t).Elem()
			out.Set(uv)
			return out, nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use userdata %T as %s", ud.Value, t)
	}

	if lv == nil || lv == lua.LNil {
		if base.IsValid() {
			return base, nil
		}
		return reflect.Zero(t), nil
	}

	out := reflect.New(t).Elem()

	if t == errorType {
		s, ok := lv.(lua.LString)
		if !ok {
			return reflect.Value{}, mismatch(lv, t)
		}
		out.Set(reflect.ValueOf(errors.New(string(s))))
		return out, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		b, ok := lv.(lua.LBool)
		if !ok {
			return reflect.Value{}, mismatch(lv, t)
		}
		out.SetBool(bool(b))

	case reflect.String:
		switch v := lv.(type) {
		case lua.LString:
			out.SetString(string(v))
		case lua.LNumber:
			out.SetString(v.String())
		default:
			return reflect.Value{}, mismatch(lv, t)
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := integer(lv, t)
		if err != nil {
			return reflect.Value{}, err
		}
		// float64 to int64 is undefined outside [-2^63, 2^63).
		if n < -(1<<63) || n >= 1<<63 || out.OverflowInt(int64(n)) {
			return reflect.Value{}, fmt.Errorf("%v overflows %s", n, t)
		}
		out.SetInt(int64(n))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := integer(lv, t)
		if err != nil {
			return reflect.Value{}, err
		}
		if n < 0 || n >= 1<<64 || out.OverflowUint(uint64(n)) {
			return reflect.Value{}, fmt.Errorf("%v overflows %s", n, t)
		}
		out.SetUint(uint64(n))

	case reflect.Float32, reflect.Float64:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return reflect.Value{}, mismatch(lv, t)
		}
		out.SetFloat(float64(n))

	case reflect.Ptr:
		elem, err := fromLua(lv, t.Elem(), reflect.Value{})
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		out.Set(p)

	case reflect.Slice:
		tbl, ok := lv.(*lua.LTable)
		if !ok {
			return reflect.Value{}, mismatch(lv, t)
		}
		n := tbl.Len()
		s := reflect.MakeSlice(t, n, n)
		for i := 0; i < n; i++ {
			elem, err := fromLua(tbl.RawGetInt(i+1), t.Elem(), reflect.Value{})
			if err != nil {
				return reflect.Value{}, fmt.Errorf("[%d]: %w", i+1, err)
			}
			s.Index(i).Set(elem)
		}
		out.Set(s)

	case reflect.Map:
		tbl, ok := lv.(*lua.LTable)
		if !ok {
			return reflect.Value{}, mismatch(lv, t)
		}
		m := reflect.MakeMap(t)
		var convErr error
		tbl.ForEach(func(k, v lua.LValue) {
			if convErr != nil {
				return
			}
			key, err := fromLua(k, t.Key(), reflect.Value{})
			if err != nil {
				convErr = fmt.Errorf("key %s: %w", k, err)
				return
			}
			val, err := fromLua(v, t.Elem(), reflect.Value{})
			if err != nil {
				convErr = fmt.Errorf("[%s]: %w", k, err)
				return
			}
			m.SetMapIndex(key, val)
		})
		if convErr != nil {
			return reflect.Value{}, convErr
		}
		out.Set(m)

	case reflect.Struct:
		tbl, ok := lv.(*lua.LTable)
		if !ok {
			return reflect.Value{}, mismatch(lv, t)
		}
		if base.IsValid() {
			out.Set(base)
		}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			name, ok := fieldName(field)
			if !ok {
				continue
			}
			v := tbl.RawGetString(name)
			if v == lua.LNil {
				continue
			}
			fv, err := fromLua(v, field.Type, reflect.Value{})
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%s: %w", name, err)
			}
			out.Field(i).Set(fv)
		}

	case reflect.Interface:
		gv := toGo(lv)
		if gv == nil {
			return reflect.Zero(t), nil
		}
		rv := reflect.ValueOf(gv)
		if !rv.Type().AssignableTo(t) {
			return reflect.Value{}, mismatch(lv, t)
		}
		out.Set(rv)

	default:
		return reflect.Value{}, mismatch(lv, t)
	}
	return out, nil
}

func integer(lv lua.LValue, t reflect.Type) (float64, error) {
	n, ok := lv.(lua.LNumber)
	if !ok {
		return 0, mismatch(lv, t)
	}
	f := float64(n)
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer for %s", f, t)
	}
	return f, nil
}

func mismatch(lv lua.LValue, t reflect.Type) error {
	return fmt.Errorf("cannot use lua %s as %s", lv.Type(), t)
}

// toGo converts a Lua value to a plain Go value.
func toGo(lv lua.LValue) any {
	return toGoVisited(lv, make(map[*lua.LTable]bool))
}

func toGoVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

// tableToGo converts a Lua table to a slice when its keys are 1..n and
// to a map otherwise.
func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && count == n {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = toGoVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = toGoVisited(v, visited)
	})
	return m
}
