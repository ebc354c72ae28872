package builtins

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/jcd-as/deva-sub000/pkg/value"
)

// stringMethods lists the names src/string_builtins.cpp registers.
var stringMethods = map[string]bool{
	"concat": true, "length": true, "copy": true, "insert": true, "remove": true,
	"find": true, "rfind": true, "reverse": true, "sort": true, "slice": true,
	"strip": true, "lstrip": true, "rstrip": true, "split": true, "replace": true,
	"upper": true, "lower": true, "format": true,
	"isalphanum": true, "isalpha": true, "isdigit": true, "islower": true,
	"isupper": true, "isspace": true, "ispunct": true, "iscntrl": true,
	"isprint": true, "isxdigit": true, "join": true,
}

// String looks up key as a string built-in method name.
func String(key value.Value) (value.Value, bool) {
	if !key.IsString() || !stringMethods[key.Str()] {
		return value.Value{}, false
	}
	name := key.Str()
	return value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
		recv := args[len(args)-1]
		callArgs := args[:len(args)-1]
		return stringDispatch(name, recv, callArgs)
	}, true), true
}

func stringDispatch(name string, recv value.Value, args []value.Value) (value.Value, error) {
	s := recv.Str()
	switch name {
	case "concat":
		return value.StringValue(s + arg(args, 0).Str()), nil
	case "length":
		return value.NumberValue(float64(len([]rune(s)))), nil
	case "copy":
		return value.StringValue(s), nil
	case "insert":
		idx := int(arg(args, 0).Num())
		r := []rune(s)
		if idx < 0 || idx > len(r) {
			return value.Value{}, fmt.Errorf("string.insert: index %d out of range", idx)
		}
		return value.StringValue(string(r[:idx]) + arg(args, 1).Str() + string(r[idx:])), nil
	case "remove":
		idx := int(arg(args, 0).Num())
		r := []rune(s)
		if idx < 0 || idx >= len(r) {
			return value.Value{}, fmt.Errorf("string.remove: index %d out of range", idx)
		}
		return value.StringValue(string(r[:idx]) + string(r[idx+1:])), nil
	case "find":
		idx := strings.Index(s, arg(args, 0).Str())
		return value.NumberValue(float64(idx)), nil
	case "rfind":
		idx := strings.LastIndex(s, arg(args, 0).Str())
		return value.NumberValue(float64(idx)), nil
	case "reverse":
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return value.StringValue(string(r)), nil
	case "sort":
		r := []rune(s)
		sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
		return value.StringValue(string(r)), nil
	case "slice":
		r := []rune(s)
		start, end := int(arg(args, 0).Num()), int(arg(args, 1).Num())
		if start < 0 || end > len(r) || start > end {
			return value.Value{}, fmt.Errorf("string.slice: invalid range [%d:%d)", start, end)
		}
		return value.StringValue(string(r[start:end])), nil
	case "strip":
		return value.StringValue(strings.TrimSpace(s)), nil
	case "lstrip":
		return value.StringValue(strings.TrimLeft(s, " \t\n\r")), nil
	case "rstrip":
		return value.StringValue(strings.TrimRight(s, " \t\n\r")), nil
	case "split":
		sep := arg(args, 0).Str()
		parts := strings.Split(s, sep)
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.StringValue(p)
		}
		return value.VectorValue(value.NewVector(out)), nil
	case "replace":
		return value.StringValue(strings.ReplaceAll(s, arg(args, 0).Str(), arg(args, 1).Str())), nil
	case "upper":
		return value.StringValue(strings.ToUpper(s)), nil
	case "lower":
		return value.StringValue(strings.ToLower(s)), nil
	case "isalphanum":
		return value.BoolValue(allRunes(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })), nil
	case "isalpha":
		return value.BoolValue(allRunes(s, unicode.IsLetter)), nil
	case "isdigit":
		return value.BoolValue(allRunes(s, unicode.IsDigit)), nil
	case "islower":
		return value.BoolValue(allRunes(s, unicode.IsLower)), nil
	case "isupper":
		return value.BoolValue(allRunes(s, unicode.IsUpper)), nil
	case "isspace":
		return value.BoolValue(allRunes(s, unicode.IsSpace)), nil
	case "ispunct":
		return value.BoolValue(allRunes(s, unicode.IsPunct)), nil
	case "iscntrl":
		return value.BoolValue(allRunes(s, unicode.IsControl)), nil
	case "isprint":
		return value.BoolValue(allRunes(s, unicode.IsPrint)), nil
	case "isxdigit":
		return value.BoolValue(allRunes(s, isHexDigit)), nil
	case "join":
		vec := arg(args, 0)
		if !vec.IsVector() {
			return value.Value{}, fmt.Errorf("string.join: argument must be a vector")
		}
		parts := make([]string, len(vec.Vec().Elems))
		for i, e := range vec.Vec().Elems {
			parts[i] = value.Display(e)
		}
		return value.StringValue(strings.Join(parts, s)), nil
	case "format":
		return stringFormat(s, arg(args, 0))
	default:
		return value.Value{}, fmt.Errorf("string.%s: not implemented", name)
	}
}

// stringFormat substitutes boost::format-style "%1%", "%2%", ... positional
// placeholders in s with the Display() of the corresponding element of
// args, in argument order (src/string_builtins.cpp's do_string_format,
// without the boost dependency).
func stringFormat(s string, args value.Value) (value.Value, error) {
	if !args.IsVector() {
		return value.Value{}, fmt.Errorf("string.format: argument must be a vector")
	}
	elems := args.Vec().Elems
	r := []rune(s)
	var b strings.Builder
	for i := 0; i < len(r); i++ {
		if r[i] != '%' {
			b.WriteRune(r[i])
			continue
		}
		j := i + 1
		for j < len(r) && r[j] >= '0' && r[j] <= '9' {
			j++
		}
		if j == i+1 || j >= len(r) || r[j] != '%' {
			b.WriteRune(r[i])
			continue
		}
		n, err := strconv.Atoi(string(r[i+1 : j]))
		if err != nil || n < 1 || n > len(elems) {
			return value.Value{}, fmt.Errorf("string.format: %%%s%% refers to an out-of-range argument", string(r[i+1:j]))
		}
		b.WriteString(value.Display(elems[n-1]))
		i = j
	}
	return value.StringValue(b.String()), nil
}

func allRunes(s string, pred func(rune) bool) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !pred(r) {
			return false
		}
	}
	return true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
