// Package builtins implements the fixed built-in method tables for
// vector, map and string values (spec.md §4.5's "Built-in method
// protocol"). Each table is keyed by method name; Vector/Map/String look
// a name up and, if found, hand back a native-function Value the VM can
// call exactly like a scripted method — the receiver arrives as the
// method's implicit last argument, per value.NativeFunctionValue's
// calling convention.
//
// Method lists and behaviour are grounded on the original interpreter's
// src/vector_builtins.cpp, src/map_builtins.cpp and src/string_builtins.cpp.
package builtins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jcd-as/deva-sub000/pkg/value"
)

func arg(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.NullValue()
	}
	return args[i]
}

// callback invokes a deva-level callable (fn) with args, via the
// value.Invoker the VM passes as a native function's frame argument.
// filter/map/reduce/any/all on vectors and map's map all need this to
// run the scripted predicate/transform they're handed.
func callback(frame interface{}, fn value.Value, args ...value.Value) (value.Value, error) {
	inv, ok := frame.(value.Invoker)
	if !ok {
		return value.Value{}, fmt.Errorf("cannot invoke a callback outside of the running VM")
	}
	return inv.Invoke(fn, args)
}

// vectorMethods lists the names a deva vector responds to: the
// src/vector_builtins.cpp set plus the higher-order filter/map/reduce/
// any/all the distillation added.
var vectorMethods = map[string]bool{
	"append": true, "length": true, "copy": true, "concat": true,
	"min": true, "max": true, "pop": true, "insert": true, "remove": true,
	"find": true, "rfind": true, "count": true, "reverse": true, "sort": true,
	"slice": true, "join": true, "rewind": true, "next": true,
	"filter": true, "map": true, "reduce": true, "any": true, "all": true,
}

// Vector looks up key as a vector built-in method name.
func Vector(key value.Value) (value.Value, bool) {
	if !key.IsString() || !vectorMethods[key.Str()] {
		return value.Value{}, false
	}
	name := key.Str()
	return value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
		recv := args[len(args)-1]
		callArgs := args[:len(args)-1]
		return vectorDispatch(frame, name, recv, callArgs)
	}, true), true
}

func vectorDispatch(frame interface{}, name string, recv value.Value, args []value.Value) (value.Value, error) {
	v := recv.Vec()
	switch name {
	case "append":
		v.Elems = append(v.Elems, arg(args, 0))
		return recv, nil
	case "length":
		return value.NumberValue(float64(len(v.Elems))), nil
	case "copy":
		cp := make([]value.Value, len(v.Elems))
		copy(cp, v.Elems)
		return value.VectorValue(value.NewVector(cp)), nil
	case "concat":
		other := arg(args, 0)
		if !other.IsVector() {
			return value.Value{}, fmt.Errorf("vector.concat: argument must be a vector")
		}
		cp := make([]value.Value, 0, len(v.Elems)+len(other.Vec().Elems))
		cp = append(cp, v.Elems...)
		cp = append(cp, other.Vec().Elems...)
		return value.VectorValue(value.NewVector(cp)), nil
	case "min":
		return reduceCompare(v.Elems, -1)
	case "max":
		return reduceCompare(v.Elems, 1)
	case "pop":
		if len(v.Elems) == 0 {
			return value.Value{}, fmt.Errorf("vector.pop: empty vector")
		}
		last := v.Elems[len(v.Elems)-1]
		v.Elems = v.Elems[:len(v.Elems)-1]
		return last, nil
	case "insert":
		idx := int(arg(args, 0).Num())
		val := arg(args, 1)
		if idx < 0 || idx > len(v.Elems) {
			return value.Value{}, fmt.Errorf("vector.insert: index %d out of range", idx)
		}
		v.Elems = append(v.Elems, value.Value{})
		copy(v.Elems[idx+1:], v.Elems[idx:])
		v.Elems[idx] = val
		return recv, nil
	case "remove":
		idx := int(arg(args, 0).Num())
		if idx < 0 || idx >= len(v.Elems) {
			return value.Value{}, fmt.Errorf("vector.remove: index %d out of range", idx)
		}
		removed := v.Elems[idx]
		v.Elems = append(v.Elems[:idx], v.Elems[idx+1:]...)
		return removed, nil
	case "find":
		target := arg(args, 0)
		for i, e := range v.Elems {
			if value.Equal(e, target) {
				return value.NumberValue(float64(i)), nil
			}
		}
		return value.NumberValue(-1), nil
	case "rfind":
		target := arg(args, 0)
		for i := len(v.Elems) - 1; i >= 0; i-- {
			if value.Equal(v.Elems[i], target) {
				return value.NumberValue(float64(i)), nil
			}
		}
		return value.NumberValue(-1), nil
	case "count":
		target := arg(args, 0)
		n := 0
		for _, e := range v.Elems {
			if value.Equal(e, target) {
				n++
			}
		}
		return value.NumberValue(float64(n)), nil
	case "reverse":
		for i, j := 0, len(v.Elems)-1; i < j; i, j = i+1, j-1 {
			v.Elems[i], v.Elems[j] = v.Elems[j], v.Elems[i]
		}
		return recv, nil
	case "sort":
		sort.SliceStable(v.Elems, func(i, j int) bool {
			return value.CompareValues(v.Elems[i], v.Elems[j]) < 0
		})
		return recv, nil
	case "slice":
		start, end := int(arg(args, 0).Num()), int(arg(args, 1).Num())
		if start < 0 || end > len(v.Elems) || start > end {
			return value.Value{}, fmt.Errorf("vector.slice: invalid range [%d:%d)", start, end)
		}
		cp := make([]value.Value, end-start)
		copy(cp, v.Elems[start:end])
		return value.VectorValue(value.NewVector(cp)), nil
	case "join":
		sep := arg(args, 0).Str()
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = value.Display(e)
		}
		return value.StringValue(strings.Join(parts, sep)), nil
	case "rewind":
		v.Rewind()
		return value.NullValue(), nil
	case "next":
		more, val := v.Next()
		return value.VectorValue(value.NewVector([]value.Value{value.BoolValue(more), val})), nil
	case "filter":
		fn := arg(args, 0)
		out := make([]value.Value, 0, len(v.Elems))
		for _, e := range v.Elems {
			keep, err := callback(frame, fn, e)
			if err != nil {
				return value.Value{}, err
			}
			if value.CoerceToBool(keep) {
				out = append(out, e)
			}
		}
		return value.VectorValue(value.NewVector(out)), nil
	case "map":
		fn := arg(args, 0)
		out := make([]value.Value, len(v.Elems))
		for i, e := range v.Elems {
			mapped, err := callback(frame, fn, e)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = mapped
		}
		return value.VectorValue(value.NewVector(out)), nil
	case "reduce":
		fn := arg(args, 0)
		acc := arg(args, 1)
		for _, e := range v.Elems {
			next, err := callback(frame, fn, acc, e)
			if err != nil {
				return value.Value{}, err
			}
			acc = next
		}
		return acc, nil
	case "any":
		fn := arg(args, 0)
		for _, e := range v.Elems {
			ok, err := callback(frame, fn, e)
			if err != nil {
				return value.Value{}, err
			}
			if value.CoerceToBool(ok) {
				return value.BoolValue(true), nil
			}
		}
		return value.BoolValue(false), nil
	case "all":
		fn := arg(args, 0)
		for _, e := range v.Elems {
			ok, err := callback(frame, fn, e)
			if err != nil {
				return value.Value{}, err
			}
			if !value.CoerceToBool(ok) {
				return value.BoolValue(false), nil
			}
		}
		return value.BoolValue(true), nil
	default:
		return value.Value{}, fmt.Errorf("vector.%s: not implemented", name)
	}
}

func reduceCompare(elems []value.Value, dir int) (value.Value, error) {
	if len(elems) == 0 {
		return value.Value{}, fmt.Errorf("vector: empty vector has no min/max")
	}
	best := elems[0]
	for _, e := range elems[1:] {
		if value.CompareValues(e, best)*dir > 0 {
			best = e
		}
	}
	return best, nil
}
