package builtins

import (
	"fmt"

	"github.com/jcd-as/deva-sub000/pkg/value"
)

// mapMethods lists the names src/map_builtins.cpp registers, plus the
// haskey convenience and the higher-order map transform the
// distillation added.
var mapMethods = map[string]bool{
	"length": true, "rewind": true, "next": true, "copy": true,
	"keys": true, "values": true, "merge": true, "haskey": true,
	"find": true, "remove": true, "map": true,
}

// Map looks up key as a map built-in method name.
func Map(key value.Value) (value.Value, bool) {
	if !key.IsString() || !mapMethods[key.Str()] {
		return value.Value{}, false
	}
	name := key.Str()
	return value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
		recv := args[len(args)-1]
		callArgs := args[:len(args)-1]
		return mapDispatch(frame, name, recv, callArgs)
	}, true), true
}

func mapDispatch(frame interface{}, name string, recv value.Value, args []value.Value) (value.Value, error) {
	m := recv.MapObj()
	switch name {
	case "length":
		return value.NumberValue(float64(len(m.Entries))), nil
	case "rewind":
		m.Rewind()
		return value.NullValue(), nil
	case "next":
		more, val := m.Next()
		return value.VectorValue(value.NewVector([]value.Value{value.BoolValue(more), val})), nil
	case "copy":
		cp := value.NewMap()
		for _, e := range m.Entries {
			cp.Set(e.Key, e.Val)
		}
		return value.MapValue(cp), nil
	case "keys":
		ks := make([]value.Value, len(m.Entries))
		for i, e := range m.Entries {
			ks[i] = e.Key
		}
		return value.VectorValue(value.NewVector(ks)), nil
	case "values":
		vs := make([]value.Value, len(m.Entries))
		for i, e := range m.Entries {
			vs[i] = e.Val
		}
		return value.VectorValue(value.NewVector(vs)), nil
	case "merge":
		other := arg(args, 0)
		if !other.IsMap() {
			return value.Value{}, fmt.Errorf("map.merge: argument must be a map")
		}
		for _, e := range other.MapObj().Entries {
			m.Set(e.Key, e.Val)
		}
		return recv, nil
	case "haskey":
		_, ok := m.Get(arg(args, 0))
		return value.BoolValue(ok), nil
	case "find":
		v, ok := m.Get(arg(args, 0))
		if !ok {
			return value.NullValue(), nil
		}
		return v, nil
	case "remove":
		m.Remove(arg(args, 0))
		return value.NullValue(), nil
	case "map":
		fn := arg(args, 0)
		out := value.NewMap()
		for _, e := range m.Entries {
			mapped, err := callback(frame, fn, e.Key, e.Val)
			if err != nil {
				return value.Value{}, err
			}
			out.Set(e.Key, mapped)
		}
		return value.MapValue(out), nil
	default:
		return value.Value{}, fmt.Errorf("map.%s: not implemented", name)
	}
}
