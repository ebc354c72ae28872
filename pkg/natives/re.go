package natives

import (
	"fmt"
	"regexp"

	"github.com/jcd-as/deva-sub000/pkg/value"
)

// reModule wraps Go's regexp package behind the compile/match/search/
// replace/delete surface module_re.cpp exposes. A compiled pattern is
// held as a NativeObject so its lifetime is reference-counted like any
// other heap value.
func reModule() *value.NativeModuleObj {
	fns := map[string]value.Value{
		"compile": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			re, err := regexp.Compile(args[0].Str())
			if err != nil {
				return value.Value{}, fmt.Errorf("re.compile: %v", err)
			}
			return value.NativeObjectValue(&value.NativeObj{Ptr: re}), nil
		}, false),
		"match": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			re, err := asRegexp(args[0])
			if err != nil {
				return value.Value{}, err
			}
			loc := re.FindStringIndex(args[1].Str())
			return matchResult(loc, args[1].Str()), nil
		}, false),
		"search": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			re, err := asRegexp(args[0])
			if err != nil {
				return value.Value{}, err
			}
			loc := re.FindStringIndex(args[1].Str())
			return matchResult(loc, args[1].Str()), nil
		}, false),
		"replace": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			re, err := asRegexp(args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.StringValue(re.ReplaceAllString(args[1].Str(), args[2].Str())), nil
		}, false),
		"delete": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			return value.NullValue(), nil
		}, false),
	}
	return &value.NativeModuleObj{Name: "re", Functions: fns}
}

func asRegexp(v value.Value) (*regexp.Regexp, error) {
	no := v.Native()
	if no == nil {
		return nil, fmt.Errorf("re: expected a compiled pattern")
	}
	re, ok := no.Ptr.(*regexp.Regexp)
	if !ok {
		return nil, fmt.Errorf("re: expected a compiled pattern")
	}
	return re, nil
}

// matchResult mirrors module_re.cpp's null-on-no-match, {start,end,str}
// map on match.
func matchResult(loc []int, s string) value.Value {
	if loc == nil {
		return value.NullValue()
	}
	m := value.NewMap()
	m.Set(value.StringValue("start"), value.NumberValue(float64(loc[0])))
	m.Set(value.StringValue("end"), value.NumberValue(float64(loc[1])))
	m.Set(value.StringValue("str"), value.StringValue(s[loc[0]:loc[1]]))
	return value.MapValue(m)
}
