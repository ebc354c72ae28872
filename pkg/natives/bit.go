package natives

import (
	"math"

	"github.com/jcd-as/deva-sub000/pkg/value"
)

// bitInt truncates a numeric operand to int64, raising NumericError if it
// isn't integral, consistent with the VM's own vector/string indexing.
func bitInt(v value.Value) (int64, error) {
	n := v.Num()
	if n != math.Trunc(n) {
		return 0, value.NewNativeError("NumericError", "bit operand must be an integer, got %v", n)
	}
	return int64(n), nil
}

func bitModule() *value.NativeModuleObj {
	binop := func(fn func(a, b int64) int64) value.NativeFn {
		return func(frame interface{}, args []value.Value) (value.Value, error) {
			a, err := bitInt(args[0])
			if err != nil {
				return value.Value{}, err
			}
			b, err := bitInt(args[1])
			if err != nil {
				return value.Value{}, err
			}
			return value.NumberValue(float64(fn(a, b))), nil
		}
	}
	fns := map[string]value.Value{
		"and":         value.NativeFunctionValue(binop(func(a, b int64) int64 { return a & b }), false),
		"or":          value.NativeFunctionValue(binop(func(a, b int64) int64 { return a | b }), false),
		"xor":         value.NativeFunctionValue(binop(func(a, b int64) int64 { return a ^ b }), false),
		"shift_left":  value.NativeFunctionValue(binop(func(a, b int64) int64 { return a << uint(b) }), false),
		"shift_right": value.NativeFunctionValue(binop(func(a, b int64) int64 { return a >> uint(b) }), false),
		"complement": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			a, err := bitInt(args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.NumberValue(float64(^a)), nil
		}, false),
	}
	return &value.NativeModuleObj{Name: "bit", Functions: fns}
}
