// Package value defines the runtime value representation for the deva
// virtual machine: a tagged union over the primitive and heap-allocated
// types the language exposes, plus the reference-counting bookkeeping that
// governs the heap variants' lifetime.
//
// Mirrors the original interpreter's DevaObject union (one tag, one
// payload) rather than Go's natural approach of an interface per variant:
// the VM's dispatch loop and the built-in method tables both need to
// switch on "what kind of thing is this" far more often than they need
// per-variant behaviour, so a flat struct with a Kind field keeps those
// switches cheap and keeps zero values (the Go zero Value is Null) useful.
package value

import "fmt"

// Kind identifies which variant of the tagged union a Value holds.
type Kind int

const (
	Null Kind = iota
	Boolean
	Number
	String
	Vector
	Map
	Class
	Instance
	Function
	NativeFunction
	NativeObject
	Size
	SymbolName
	Module
	NativeModule
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Boolean:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Vector:
		return "vector"
	case Map:
		return "map"
	case Class:
		return "class"
	case Instance:
		return "instance"
	case Function:
		return "function"
	case NativeFunction:
		return "native_function"
	case NativeObject:
		return "native_object"
	case Size:
		return "size"
	case SymbolName:
		return "symbol_name"
	case Module:
		return "module"
	case NativeModule:
		return "native_module"
	default:
		return "unknown"
	}
}

// isReference reports whether values of this kind carry a heap payload
// that must be reference-counted. Only Vector, Map, Class and Instance do;
// every other kind is copy-by-value.
func (k Kind) isReference() bool {
	return k == Vector || k == Map || k == Class || k == Instance
}

// FuncRef identifies a function object by the module that owns its
// function table and the index within that table. It is intentionally
// opaque here: the vm and compiler packages own the actual function table.
type FuncRef struct {
	Module *ModuleRef
	Index  int
}

// ModuleRef is a stable handle to a loaded module, opaque to this package.
// The vm package supplies the concrete *code.Code behind it.
type ModuleRef struct {
	Name string
	Impl interface{}
}

// NativeFn is a host-implemented function. frame is left as interface{}
// to avoid an import cycle with the vm package; in practice it is always
// the *vm.VM running the call, satisfying Invoker, which lets a
// higher-order builtin (vector.filter/map/reduce, map.map) call back
// into a deva-level callback value.
type NativeFn func(frame interface{}, args []Value) (Value, error)

// Invoker lets a native function invoke a deva-level callable (a
// Function or another NativeFunction) without pkg/natives or
// pkg/builtins importing pkg/vm.
type Invoker interface {
	Invoke(fn Value, args []Value) (Value, error)
}

// NativeError is the error a native function returns to raise a specific
// runtime-error kind (spec.md §7's taxonomy: TypeMismatch, IndexError,
// KeyError, NameError, ArityError, NumericError, FileError, ImportError).
// Kind is left as a plain string, rather than the vm package's ErrorKind,
// to avoid an import cycle (vm imports natives and builtins, which import
// value); vm.invoke recognizes *NativeError and promotes it into a
// *RuntimeError carrying a synthesized stack trace, casting Kind back to
// its own ErrorKind (a string-backed type with the same members).
type NativeError struct {
	Kind    string
	Message string
}

func (e *NativeError) Error() string { return e.Message }

// NewNativeError builds a *NativeError with a formatted message.
func NewNativeError(kind, format string, args ...interface{}) error {
	return &NativeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Value is the tagged union described in the package comment. Only the
// field matching Kind is meaningful; all others are zero.
type Value struct {
	Kind Kind

	num  float64
	str  string
	b    bool
	vec  *VectorObj
	m    *MapObj
	fn   FuncRef
	nfn  NativeFn
	nfnM bool // NativeFunction.is_method
	no   *NativeObj
	sz   uint
	sym  string
	mod  *ModuleRef
	nmod *NativeModuleObj
}

// NativeObj is an opaque handle owned by a native module (a compiled
// regular expression, an open file, ...). Delete is invoked exactly once,
// when the owning Value's reference count reaches zero, and is nil for
// objects with nothing to release.
type NativeObj struct {
	Ptr    interface{}
	Delete func()
}

// NativeModuleObj is a statically registered table of NativeFn values
// exposed under a module-qualified name (e.g. "math.sqrt").
type NativeModuleObj struct {
	Name      string
	Functions map[string]Value
}

// --- constructors -----------------------------------------------------

func NullValue() Value               { return Value{Kind: Null} }
func BoolValue(b bool) Value         { return Value{Kind: Boolean, b: b} }
func NumberValue(n float64) Value    { return Value{Kind: Number, num: n} }
func StringValue(s string) Value     { return Value{Kind: String, str: s} }
func SizeValue(n uint) Value         { return Value{Kind: Size, sz: n} }
func SymbolValue(name string) Value  { return Value{Kind: SymbolName, sym: name} }
func ModuleValue(m *ModuleRef) Value { return Value{Kind: Module, mod: m} }

func NativeModuleValue(m *NativeModuleObj) Value {
	return Value{Kind: NativeModule, nmod: m}
}

func FunctionValue(ref FuncRef) Value { return Value{Kind: Function, fn: ref} }

// NativeFunctionValue wraps a host function. isMethod marks that the
// caller is expected to pass the receiver as the implicit last argument,
// per spec.md's calling convention for built-in methods.
func NativeFunctionValue(fn NativeFn, isMethod bool) Value {
	return Value{Kind: NativeFunction, nfn: fn, nfnM: isMethod}
}

func NativeObjectValue(o *NativeObj) Value { return Value{Kind: NativeObject, no: o} }

// VectorValue wraps an already ref-counted VectorObj (refcount 1) in a
// Value. Use NewVector to build one from scratch.
func VectorValue(v *VectorObj) Value { return Value{Kind: Vector, vec: v} }
func MapValue(m *MapObj) Value       { return Value{Kind: Map, m: m} }

// ClassValue and InstanceValue tag the same underlying MapObj shape as
// Class/Instance respectively; see MapObj's class-specific fields.
func ClassValue(m *MapObj) Value    { return Value{Kind: Class, m: m} }
func InstanceValue(m *MapObj) Value { return Value{Kind: Instance, m: m} }

// --- accessors ---------------------------------------------------------

func (v Value) Num() float64  { return v.num }
func (v Value) Str() string   { return v.str }
func (v Value) Bool() bool    { return v.b }
func (v Value) Vec() *VectorObj { return v.vec }
func (v Value) MapObj() *MapObj { return v.m }
func (v Value) FuncRef() FuncRef { return v.fn }
func (v Value) NativeFn() NativeFn { return v.nfn }
func (v Value) IsMethod() bool    { return v.nfnM }
func (v Value) Native() *NativeObj { return v.no }
func (v Value) Size() uint        { return v.sz }
func (v Value) Symbol() string    { return v.sym }
func (v Value) ModuleRef() *ModuleRef { return v.mod }
func (v Value) NativeModuleObj() *NativeModuleObj { return v.nmod }

// IsNull, IsNumber etc. mirror original_source's DevaObject helper
// predicates (inc/object.h), kept for readability at call sites.
func (v Value) IsNull() bool     { return v.Kind == Null }
func (v Value) IsNumber() bool   { return v.Kind == Number }
func (v Value) IsString() bool   { return v.Kind == String }
func (v Value) IsBoolean() bool  { return v.Kind == Boolean }
func (v Value) IsVector() bool   { return v.Kind == Vector }
func (v Value) IsMap() bool      { return v.Kind == Map }
func (v Value) IsClass() bool    { return v.Kind == Class }
func (v Value) IsInstance() bool { return v.Kind == Instance }
func (v Value) IsCallable() bool {
	return v.Kind == Function || v.Kind == NativeFunction
}

// --- reference counting -------------------------------------------------

// refCountPtr returns a pointer to the shared refcount field for a
// reference-typed value, or nil for copy-by-value kinds.
func (v Value) refCountPtr() *int {
	switch v.Kind {
	case Vector:
		return &v.vec.refCount
	case Map, Class, Instance:
		return &v.m.refCount
	default:
		return nil
	}
}

// IncRef increments the heap refcount behind a reference-typed value.
// No-op on every other kind, per spec.md §4.1.
func IncRef(v Value) {
	if p := v.refCountPtr(); p != nil {
		*p++
	}
}

// DecRef decrements the heap refcount behind a reference-typed value. When
// it reaches zero the value is torn down per spec.md §3.1/§4.7:
// destructors run first (for instances, chained through the base
// hierarchy), then children are recursively dec-ref'd. destroyInstance is supplied
// by the vm package since destructor dispatch needs a running VM/frame;
// it is only invoked for Instance values and only on the final release.
func DecRef(v Value, destroyInstance func(*MapObj) error) error {
	p := v.refCountPtr()
	if p == nil {
		return nil
	}
	*p--
	if *p > 0 {
		return nil
	}
	switch v.Kind {
	case Vector:
		for _, e := range v.vec.Elems {
			if err := DecRef(e, destroyInstance); err != nil {
				return err
			}
		}
	case Map, Class, Instance:
		if v.Kind == Instance && destroyInstance != nil {
			if err := destroyInstance(v.m); err != nil {
				return err
			}
		}
		for _, e := range v.m.Entries {
			if err := DecRef(e.Key, destroyInstance); err != nil {
				return err
			}
			if err := DecRef(e.Val, destroyInstance); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- VectorObj -----------------------------------------------------------

// VectorObj is the heap payload behind a Vector value: an ordered,
// reference-counted sequence plus the enumeration cursor required by the
// rewind/next protocol (spec.md §4.5).
type VectorObj struct {
	Elems    []Value
	Index    int
	refCount int
}

// NewVector builds a fresh, singly-referenced vector.
func NewVector(elems []Value) *VectorObj {
	return &VectorObj{Elems: elems, refCount: 1}
}

// --- MapObj --------------------------------------------------------------

// MapEntry is one key/value pair of a MapObj, kept in insertion order so
// that canonical (sorted) iteration order can be derived deterministically
// without losing the original insertion order other operations rely on.
type MapEntry struct {
	Key Value
	Val Value
}

// MapObj is the heap payload shared by Map, Class and Instance values.
// Class and Instance reuse the same shape (spec.md: "the map handle is
// shared with no other owner semantically distinct from a plain map");
// the extra fields below are meaningful only when ClassName != "".
type MapObj struct {
	Entries []MapEntry
	Index   int // enumeration cursor, sorted snapshot recomputed on rewind
	order   []int
	refCount int

	// Class-specific fields (spec.md §4.7, single-inheritance decision in
	// SPEC_FULL.md's OPEN QUESTION DECISIONS).
	ClassName  string
	SuperName  string
	Super      *MapObj // resolved base class, nil if none
	FieldOrder []string
	Class      *MapObj // for Instance values: the class this instance was created from
}

// NewMap builds a fresh, singly-referenced, empty map.
func NewMap() *MapObj {
	return &MapObj{refCount: 1}
}

// Get performs a linear scan for key using CompareValues equality. Maps in
// this implementation are typically small (class/instance field counts,
// script-level tables); a hash map keyed by a canonicalized representation
// would be the next optimization if profiling ever calls for it.
func (m *MapObj) Get(key Value) (Value, bool) {
	for _, e := range m.Entries {
		if CompareValues(e.Key, key) == 0 {
			return e.Val, true
		}
	}
	return Value{}, false
}

// Set inserts or overwrites key's value, preserving insertion order for
// first-time keys.
func (m *MapObj) Set(key, val Value) {
	for i, e := range m.Entries {
		if CompareValues(e.Key, key) == 0 {
			m.Entries[i].Val = val
			return
		}
	}
	m.Entries = append(m.Entries, MapEntry{Key: key, Val: val})
}

// Remove deletes the entry for key, if present, returning whether it was.
func (m *MapObj) Remove(key Value) bool {
	for i, e := range m.Entries {
		if CompareValues(e.Key, key) == 0 {
			m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Rewind resets the enumeration cursor to 0 and snapshots the current
// canonical (sorted-by-key) iteration order, per spec.md §4.5.
func (m *MapObj) Rewind() {
	m.order = make([]int, len(m.Entries))
	for i := range m.order {
		m.order[i] = i
	}
	sortInts(m.order, func(i, j int) bool {
		return CompareValues(m.Entries[i].Key, m.Entries[j].Key) < 0
	})
	m.Index = 0
}

// Next implements the enumerable protocol's next(): returns (more, pair)
// where pair is a 2-element vector [key, value]. When exhausted, more is
// false and the value is Null.
func (m *MapObj) Next() (bool, Value) {
	if m.order == nil {
		m.Rewind()
	}
	if m.Index >= len(m.order) {
		return false, NullValue()
	}
	e := m.Entries[m.order[m.Index]]
	m.Index++
	pair := NewVector([]Value{e.Key, e.Val})
	return true, VectorValue(pair)
}

// Rewind resets a vector's enumeration cursor to 0.
func (v *VectorObj) Rewind() { v.Index = 0 }

// Next implements the enumerable protocol's next() for vectors: returns
// (more, element).
func (v *VectorObj) Next() (bool, Value) {
	if v.Index >= len(v.Elems) {
		return false, NullValue()
	}
	e := v.Elems[v.Index]
	v.Index++
	return true, e
}

// sortInts is a tiny insertion sort: map/class sizes in this language are
// small enough that an O(n^2) sort keeps the dependency surface down
// without a measurable cost; swap for sort.Slice if profiling disagrees.
func sortInts(s []int, less func(i, j int) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// --- canonical ordering & display ---------------------------------------

// kindOrder fixes the tag ordering used by CompareValues, per spec.md
// §3.4. Any total order is admissible as long as it is stable; this one
// follows the Kind enum declaration order above.
func kindOrder(k Kind) int { return int(k) }

// CompareValues implements the canonical ordering from spec.md §3.4: tag
// first, then payload. Reference-typed values compare by handle identity
// (and are therefore only ever equal to themselves). Returns -1, 0 or +1.
func CompareValues(a, b Value) int {
	if a.Kind != b.Kind {
		return sign(kindOrder(a.Kind) - kindOrder(b.Kind))
	}
	switch a.Kind {
	case Null:
		return 0
	case Boolean:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case Number:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	case String:
		switch {
		case a.str < b.str:
			return -1
		case a.str > b.str:
			return 1
		default:
			return 0
		}
	case Vector:
		return comparePtr(a.vec, b.vec)
	case Map, Class, Instance:
		return comparePtr(a.m, b.m)
	case Function:
		if a.fn.Index == b.fn.Index {
			return 0
		}
		return sign(a.fn.Index - b.fn.Index)
	case NativeFunction, NativeObject, NativeModule, Module, SymbolName, Size:
		// Identity-only comparisons; these never act as map keys in
		// practice, but must still resolve deterministically.
		return comparePtr(identityOf(a), identityOf(b))
	}
	return 0
}

func identityOf(v Value) interface{} {
	switch v.Kind {
	case NativeObject:
		return v.no
	case NativeModule:
		return v.nmod
	case Module:
		return v.mod
	case SymbolName:
		return v.sym
	case Size:
		return v.sz
	}
	return nil
}

// comparePtr orders two heap handles by identity. The addresses themselves
// are arbitrary, but comparing the same two live pointers always yields the
// same result for the lifetime of the process, which is all the canonical
// ordering in spec.md §3.4 requires for reference-typed values.
func comparePtr(a, b interface{}) int {
	if a == b {
		return 0
	}
	sa, sb := fmt.Sprintf("%p", a), fmt.Sprintf("%p", b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b are equal under CompareValues, which
// (per spec.md §3.4 and §4.4) never fails: values of different kinds are
// simply unequal.
func Equal(a, b Value) bool { return CompareValues(a, b) == 0 }

// CoerceToBool implements spec.md §4.1's coerce_to_bool.
func CoerceToBool(v Value) bool {
	switch v.Kind {
	case Null:
		return false
	case Boolean:
		return v.b
	case Number:
		return v.num != 0
	case String:
		return v.str != ""
	case Vector, Map, Class, Instance:
		return true
	case Size:
		return v.sz != 0
	case NativeObject:
		return v.no != nil
	case NativeFunction:
		return v.nfn != nil
	case Function, Module, NativeModule:
		return true
	case SymbolName:
		// Should not reach this operation per spec.md §4.1.
		return false
	}
	return false
}

// Display renders v for the print built-in and for error messages.
// Collections recurse; strings are quoted at depth > 0, bare at depth 0,
// per spec.md §4.1.
func Display(v Value) string { return display(v, 0) }

func display(v Value, depth int) string {
	switch v.Kind {
	case Null:
		return "null"
	case Boolean:
		if v.b {
			return "true"
		}
		return "false"
	case Number:
		return formatNumber(v.num)
	case String:
		if depth > 0 {
			return fmt.Sprintf("%q", v.str)
		}
		return v.str
	case Vector:
		parts := make([]string, len(v.vec.Elems))
		for i, e := range v.vec.Elems {
			parts[i] = display(e, depth+1)
		}
		return "[" + join(parts, ", ") + "]"
	case Map, Class, Instance:
		parts := make([]string, len(v.m.Entries))
		for i, e := range v.m.Entries {
			parts[i] = display(e.Key, depth+1) + ": " + display(e.Val, depth+1)
		}
		prefix := "{"
		if v.Kind == Class {
			prefix = "class{"
		} else if v.Kind == Instance {
			prefix = "instance{"
		}
		return prefix + join(parts, ", ") + "}"
	case Function:
		return "<function>"
	case NativeFunction:
		return "<native function>"
	case NativeObject:
		return "<native object>"
	case Size:
		return fmt.Sprintf("%d", v.sz)
	case SymbolName:
		return "<symbol " + v.sym + ">"
	case Module:
		return "<module " + v.mod.Name + ">"
	case NativeModule:
		return "<native module " + v.nmod.Name + ">"
	}
	return "<?>"
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
