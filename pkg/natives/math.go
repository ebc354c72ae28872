// Package natives implements the fixed set of native modules (bit, math,
// os, re) import can resolve without a user-supplied Importer, grounded
// on the original interpreter's src/module_{bit,math,os,re}.cpp.
package natives

import (
	"math"

	"github.com/jcd-as/deva-sub000/pkg/value"
)

func unary(fn func(float64) float64) value.NativeFn {
	return func(frame interface{}, args []value.Value) (value.Value, error) {
		return value.NumberValue(fn(args[0].Num())), nil
	}
}

func mathModule() *value.NativeModuleObj {
	fns := map[string]value.Value{
		"cos": value.NativeFunctionValue(unary(math.Cos), false),
		"sin": value.NativeFunctionValue(unary(math.Sin), false),
		"tan": value.NativeFunctionValue(unary(math.Tan), false),
		"acos": value.NativeFunctionValue(unary(math.Acos), false),
		"asin": value.NativeFunctionValue(unary(math.Asin), false),
		"atan": value.NativeFunctionValue(unary(math.Atan), false),
		"cosh": value.NativeFunctionValue(unary(math.Cosh), false),
		"sinh": value.NativeFunctionValue(unary(math.Sinh), false),
		"tanh": value.NativeFunctionValue(unary(math.Tanh), false),
		"exp":  value.NativeFunctionValue(unary(math.Exp), false),
		"log":  value.NativeFunctionValue(unary(math.Log), false),
		"log10": value.NativeFunctionValue(unary(math.Log10), false),
		"abs":  value.NativeFunctionValue(unary(math.Abs), false),
		"sqrt": value.NativeFunctionValue(unary(math.Sqrt), false),
		"floor": value.NativeFunctionValue(unary(math.Floor), false),
		"ceil": value.NativeFunctionValue(unary(math.Ceil), false),
		"round": value.NativeFunctionValue(unary(math.Round), false),
		"radians": value.NativeFunctionValue(unary(func(d float64) float64 { return d * math.Pi / 180 }), false),
		"degrees": value.NativeFunctionValue(unary(func(r float64) float64 { return r * 180 / math.Pi }), false),
		"pi": value.NumberValue(math.Pi),
		"pow": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			return value.NumberValue(math.Pow(args[0].Num(), args[1].Num())), nil
		}, false),
		"fmod": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			return value.NumberValue(math.Mod(args[0].Num(), args[1].Num())), nil
		}, false),
		"modf": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			ip, frac := math.Modf(args[0].Num())
			return value.VectorValue(value.NewVector([]value.Value{value.NumberValue(frac), value.NumberValue(ip)})), nil
		}, false),
	}
	return &value.NativeModuleObj{Name: "math", Functions: fns}
}
