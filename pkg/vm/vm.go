// Package vm implements the bytecode virtual machine for deva.
//
// The VM is a stack-based interpreter that executes a bytecode.Code
// module produced by pkg/compiler or loaded from a .dvc file. It's the
// final stage in the execution pipeline:
//
//	Source -> Lexer -> Parser -> AST -> Compiler -> bytecode.Code -> VM
//
// Execution Model:
//
// Each call (top-level module execution, a def call, or a method call)
// runs in its own Frame: a slice of locals sized to that function's
// NumLocals, plus an instruction pointer into the module's shared
// Instructions slice. Frames are pushed onto vm.frames as calls are
// made and popped on return, forming the call stack spec.md §4.6
// describes.
//
// Name resolution for a non-local reference (push_global/store_global)
// walks vm.frames from the currently executing frame outward through
// its callers, checking each frame's Function.LocalNames for a match
// before falling back to the module's globals and then to imported
// modules' exports — see resolveExternal.
package vm

import (
	"fmt"
	"math"
	"strings"

	"github.com/jcd-as/deva-sub000/pkg/builtins"
	"github.com/jcd-as/deva-sub000/pkg/bytecode"
	"github.com/jcd-as/deva-sub000/pkg/natives"
	"github.com/jcd-as/deva-sub000/pkg/value"
)

// stackSize bounds the value stack; exceeding it raises a runtime error
// rather than growing unboundedly, so a runaway recursive script fails
// fast instead of exhausting memory.
const stackSize = 8192

// Frame is one activation record: a function's locals plus its current
// instruction pointer and (for methods) the bound receiver.
type Frame struct {
	Fn       *bytecode.Function
	FnIndex  int32
	Locals   []value.Value
	IP       int32
	Self     value.Value
	hasSelf  bool
	blockDepth int
}

// Module is a loaded code unit together with its resolved class table and
// exported globals, used both as the running program and as the target
// of import.
type Module struct {
	Name    string
	Code    *bytecode.Code
	Globals []value.Value
	Classes []value.Value // resolved Class values, parallel to Code.Classes
}

// Importer resolves an import by name to an already-compiled Module. The
// cmd/devai front end supplies an implementation that compiles or loads
// sibling .dv/.dvc files; tests can supply a canned map.
type Importer interface {
	Import(name string) (*Module, error)
}

// VM executes one or more modules sharing a common frame stack and
// global namespace per module.
type VM struct {
	stack []value.Value
	sp    int

	frames []*Frame

	module    *Module
	modules   map[string]*Module // imported modules, by name
	importer  Importer

	out      func(string) // output sink for print(); defaults to stdout via Stdout
}

// New creates a VM ready to run modules. importer resolves imports that
// are neither already loaded nor a built-in native module; it may be nil.
// print() writes to os.Stdout unless SetOutput overrides it.
func New(importer Importer) *VM {
	return &VM{
		stack:   make([]value.Value, stackSize),
		modules: make(map[string]*Module),
		importer: importer,
	}
}

// SetOutput overrides where print() writes; used by tests to capture
// output without touching os.Stdout.
func (vm *VM) SetOutput(fn func(string)) { vm.out = fn }

// SetImporter wires an Importer after construction, for callers (like
// driver.FileImporter) that need a reference to the VM they'll import
// into.
func (vm *VM) SetImporter(importer Importer) { vm.importer = importer }

func (vm *VM) write(s string) {
	if vm.out != nil {
		vm.out(s)
		return
	}
	fmt.Print(s)
}

// Run compiles nothing itself: it executes an already-compiled module's
// @main function to completion (or until a runtime error), returning the
// module so callers can inspect its resolved globals afterward.
func (vm *VM) Run(code *bytecode.Code, name string) (*Module, error) {
	mod := &Module{Name: name, Code: code, Globals: make([]value.Value, len(code.Globals))}
	vm.module = mod
	vm.modules[name] = mod
	vm.sp = 0
	vm.frames = nil

	if err := vm.resolveClasses(mod); err != nil {
		return nil, err
	}
	vm.seedBuiltinGlobals(mod)

	frame := vm.newFrame(bytecode.MainFunctionIndex)
	vm.frames = append(vm.frames, frame)
	if _, err := vm.execFrame(frame); err != nil {
		return nil, err
	}
	return mod, nil
}

// Eval executes one incremental compilation against a module that may
// already exist under name, reusing its prior global and class state
// rather than starting fresh — spec.md §6's "execute in a persistent
// global scope" requirement for the interactive shell. code must be the
// cumulative result of recompiling the same growing source buffer (as
// pkg/compiler.Compiler produces across repeated Compile calls on one
// instance): its Globals/Classes/Instructions only ever grow, never
// reorder or rewrite earlier entries, and each Compile call records the
// offset of its newly appended @main body in @main's StartOffset, so only
// that body needs to run.
//
// The first call for a given name behaves exactly like Run.
func (vm *VM) Eval(code *bytecode.Code, name string) (*Module, error) {
	mod, ok := vm.modules[name]
	if !ok {
		mod = &Module{Name: name, Code: code, Globals: make([]value.Value, len(code.Globals))}
		vm.modules[name] = mod
	} else {
		mod.Code = code
		if n := len(code.Globals); n > len(mod.Globals) {
			grown := make([]value.Value, n)
			copy(grown, mod.Globals)
			mod.Globals = grown
		}
	}
	vm.module = mod
	vm.sp = 0
	vm.frames = nil

	if err := vm.resolveClasses(mod); err != nil {
		return nil, err
	}
	vm.seedBuiltinGlobals(mod)

	frame := vm.newFrame(bytecode.MainFunctionIndex)
	vm.frames = append(vm.frames, frame)
	if _, err := vm.execFrame(frame); err != nil {
		return nil, err
	}
	return mod, nil
}

// resolveClasses builds a Class value for every ClassTemplate in the
// module, wiring superclass method/field inheritance per spec.md §4.7.
// Templates are resolved in declaration order, so a subclass must be
// declared after its superclass (checked: undeclared super is an error).
func (vm *VM) resolveClasses(mod *Module) error {
	mod.Classes = make([]value.Value, len(mod.Code.Classes))
	byName := map[string]value.Value{}
	for i, tmpl := range mod.Code.Classes {
		m := value.NewMap()
		m.ClassName = tmpl.Name
		m.SuperName = tmpl.SuperName
		m.FieldOrder = append([]string{}, tmpl.Fields...)

		if tmpl.SuperName != "" {
			super, ok := byName[tmpl.SuperName]
			if !ok {
				return fmt.Errorf("vm: class %q extends undeclared class %q", tmpl.Name, tmpl.SuperName)
			}
			m.Super = super.MapObj()
			for _, e := range super.MapObj().Entries {
				m.Set(e.Key, e.Val)
			}
			m.FieldOrder = append(append([]string{}, super.MapObj().FieldOrder...), m.FieldOrder...)
		}
		for fi, methodName := range tmpl.MethodNames {
			fnIdx := tmpl.Methods[fi]
			m.Set(value.StringValue(methodName), value.FunctionValue(value.FuncRef{
				Module: vm.moduleRef(mod), Index: int(fnIdx),
			}))
		}
		cv := value.ClassValue(m)
		mod.Classes[i] = cv
		byName[tmpl.Name] = cv
	}
	return nil
}

// seedBuiltinGlobals pre-binds the handful of ambient global functions
// spec.md's examples rely on (print, backed by display) into any global
// slot a module actually interned a name for. Everything else a script
// calls — vector/map/string methods, bit/math/os/re — comes through
// method dispatch or import, not the global namespace.
func (vm *VM) seedBuiltinGlobals(mod *Module) {
	for i, name := range mod.Code.Globals {
		if name != "print" {
			continue
		}
		mod.Globals[i] = value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = value.Display(a)
			}
			vm.write(strings.Join(parts, " ") + "\n")
			return value.NullValue(), nil
		}, false)
	}
}

func (vm *VM) moduleRef(mod *Module) *value.ModuleRef {
	return &value.ModuleRef{Name: mod.Name, Impl: mod}
}

func (vm *VM) newFrame(fnIndex int32) *Frame {
	fn := &vm.module.Code.Functions[fnIndex]
	return &Frame{
		Fn:      fn,
		FnIndex: fnIndex,
		Locals:  make([]value.Value, fn.NumLocals),
		IP:      fn.StartOffset,
	}
}

func (vm *VM) push(v value.Value) error {
	if vm.sp >= len(vm.stack) {
		return vm.runtimeError(Internal, "stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() (value.Value, error) {
	if vm.sp == 0 {
		return value.Value{}, vm.runtimeError(Internal, "stack underflow")
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = value.Value{}
	return v, nil
}

func (vm *VM) top() value.Value {
	if vm.sp == 0 {
		return value.NullValue()
	}
	return vm.stack[vm.sp-1]
}

// runtimeError builds a *RuntimeError of the given kind, synthesizing a
// stack trace from the live frame chain (spec.md §7's "stack trace
// synthesised from the frame chain and line-number map").
func (vm *VM) runtimeError(kind ErrorKind, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	var trace []StackFrame
	for _, f := range vm.frames { // outermost first, innermost last
		trace = append(trace, StackFrame{
			Name:       f.Fn.Name,
			File:       f.Fn.File,
			IP:         int(f.IP),
			SourceLine: int(f.Fn.FirstLine),
		})
	}
	return newRuntimeError(kind, msg, trace)
}

// execFrame runs frame from its current IP until a return (own or propagated)
// unwinds it, returning the value left on the stack by return.
func (vm *VM) execFrame(frame *Frame) (value.Value, error) {
	code := vm.module.Code
	for {
		if int(frame.IP) >= len(code.Instructions) {
			return value.NullValue(), vm.runtimeError(Internal, "instruction pointer ran off the end of the module")
		}
		in := code.Instructions[frame.IP]

		switch in.Op {
		case bytecode.OpNop:
			frame.IP++

		case bytecode.OpPop:
			v, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			if err := value.DecRef(v, vm.destroyInstance); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpPush:
			c := code.Constants[in.Operand]
			var v value.Value
			switch c.Kind {
			case bytecode.ConstNumber:
				v = value.NumberValue(c.Num)
			case bytecode.ConstString:
				v = value.StringValue(c.Str)
			}
			if err := vm.push(v); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpPushTrue:
			vm.push(value.BoolValue(true))
			frame.IP++
		case bytecode.OpPushFalse:
			vm.push(value.BoolValue(false))
			frame.IP++
		case bytecode.OpPushNull:
			vm.push(value.NullValue())
			frame.IP++
		case bytecode.OpPushZero:
			vm.push(value.NumberValue(0))
			frame.IP++
		case bytecode.OpPushOne:
			vm.push(value.NumberValue(1))
			frame.IP++

		case bytecode.OpDup:
			n := int(in.Operand)
			if n < 0 || vm.sp <= n {
				return value.Value{}, vm.runtimeError(Internal, "stack underflow on dup")
			}
			v := vm.stack[vm.sp-1-n]
			value.IncRef(v)
			if err := vm.push(v); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpSwap:
			if vm.sp < 2 {
				return value.Value{}, vm.runtimeError(Internal, "stack underflow on swap")
			}
			vm.stack[vm.sp-1], vm.stack[vm.sp-2] = vm.stack[vm.sp-2], vm.stack[vm.sp-1]
			frame.IP++

		case bytecode.OpRot:
			n := int(in.Operand)
			if n < 1 || vm.sp < n {
				return value.Value{}, vm.runtimeError(Internal, "stack underflow on rot")
			}
			top := vm.stack[vm.sp-1]
			copy(vm.stack[vm.sp-n+1:vm.sp], vm.stack[vm.sp-n:vm.sp-1])
			vm.stack[vm.sp-n] = top
			frame.IP++

		case bytecode.OpPushLocal:
			if int(in.Operand) >= len(frame.Locals) {
				return value.Value{}, vm.runtimeError(Internal, "local slot %d out of range", in.Operand)
			}
			value.IncRef(frame.Locals[in.Operand])
			if err := vm.push(frame.Locals[in.Operand]); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpStoreLocal, bytecode.OpDefLocal:
			v, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			if err := value.DecRef(frame.Locals[in.Operand], vm.destroyInstance); err != nil {
				return value.Value{}, err
			}
			frame.Locals[in.Operand] = v
			frame.IP++

		case bytecode.OpPushGlobal:
			name := vm.module.Code.Globals[in.Operand]
			v, err := vm.resolveExternal(name)
			if err != nil {
				return value.Value{}, err
			}
			value.IncRef(v)
			if err := vm.push(v); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpStoreGlobal:
			v, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			name := vm.module.Code.Globals[in.Operand]
			if err := vm.storeExternal(name, v); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			if err := vm.execArith(in.Op); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpNeg:
			a, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			if !a.IsNumber() {
				return value.Value{}, vm.runtimeError(TypeMismatch, "unary '-' requires a number, got %s", a.Kind)
			}
			vm.push(value.NumberValue(-a.Num()))
			frame.IP++

		case bytecode.OpNot:
			a, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			vm.push(value.BoolValue(!value.CoerceToBool(a)))
			frame.IP++

		case bytecode.OpEq, bytecode.OpNeq, bytecode.OpLt, bytecode.OpLte, bytecode.OpGt, bytecode.OpGte:
			if err := vm.execCompare(in.Op); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpOr:
			b, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			a, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			vm.push(value.BoolValue(value.CoerceToBool(a) || value.CoerceToBool(b)))
			frame.IP++

		case bytecode.OpAnd:
			b, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			a, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			vm.push(value.BoolValue(value.CoerceToBool(a) && value.CoerceToBool(b)))
			frame.IP++

		case bytecode.OpJmp:
			frame.IP = in.Operand

		case bytecode.OpJmpf:
			v, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			if !value.CoerceToBool(v) {
				frame.IP = in.Operand
			} else {
				frame.IP++
			}

		case bytecode.OpEnter:
			frame.blockDepth++
			frame.IP++

		case bytecode.OpLeave:
			frame.blockDepth--
			frame.IP++

		case bytecode.OpExitLoop:
			for i := int32(0); i < in.Operand2; i++ {
				frame.blockDepth--
			}
			frame.IP = in.Operand

		case bytecode.OpCall:
			if err := vm.execCall(frame, int(in.Operand)); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpCallMethod:
			if err := vm.execCallMethod(frame, int(in.Operand)); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpReturn:
			v, err := vm.pop()
			if err != nil {
				return value.Value{}, err
			}
			vm.frames = vm.frames[:len(vm.frames)-1]
			for _, l := range frame.Locals {
				if err := value.DecRef(l, vm.destroyInstance); err != nil {
					return value.Value{}, err
				}
			}
			return v, nil

		case bytecode.OpHalt:
			return value.NullValue(), nil

		case bytecode.OpTblLoad:
			if err := vm.execTblLoad(false); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpMethodLoad:
			if err := vm.execTblLoad(true); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpTblStore:
			if err := vm.execTblStore(); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpNewVec:
			n := int(in.Operand)
			if vm.sp < n {
				return value.Value{}, vm.runtimeError(Internal, "stack underflow building vector")
			}
			elems := make([]value.Value, n)
			copy(elems, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			vm.push(value.VectorValue(value.NewVector(elems)))
			frame.IP++

		case bytecode.OpNewMap:
			n := int(in.Operand)
			if vm.sp < 2*n {
				return value.Value{}, vm.runtimeError(Internal, "stack underflow building map")
			}
			m := value.NewMap()
			base := vm.sp - 2*n
			for i := 0; i < n; i++ {
				k := vm.stack[base+2*i]
				v := vm.stack[base+2*i+1]
				m.Set(k, v)
			}
			vm.sp = base
			vm.push(value.MapValue(m))
			frame.IP++

		case bytecode.OpNewClass:
			value.IncRef(vm.module.Classes[in.Operand])
			vm.push(vm.module.Classes[in.Operand])
			frame.IP++

		case bytecode.OpNewInstance:
			if err := vm.execNewInstance(); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpPushFunc:
			vm.push(value.FunctionValue(value.FuncRef{Module: vm.moduleRef(vm.module), Index: int(in.Operand)}))
			frame.IP++

		case bytecode.OpForIter:
			if err := vm.execForIter(false); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpForIterPair:
			if err := vm.execForIter(true); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpImport:
			name := vm.module.Code.Globals[in.Operand]
			if err := vm.execImport(name); err != nil {
				return value.Value{}, err
			}
			frame.IP++

		case bytecode.OpLineNum:
			frame.IP++

		default:
			return value.Value{}, vm.runtimeError(Internal, "unimplemented opcode %s", in.Op)
		}
	}
}

// resolveExternal implements spec.md §4.6's lookup order for a name that
// isn't a local slot: walk the call stack outward, then this module's
// globals, then imported modules' exports.
func (vm *VM) resolveExternal(name string) (value.Value, error) {
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		for slot, n := range f.Fn.LocalNames {
			if n == name {
				return f.Locals[slot], nil
			}
		}
	}
	if idx := vm.globalIndex(name); idx >= 0 {
		return vm.module.Globals[idx], nil
	}
	for _, mod := range vm.modules {
		if mod == vm.module {
			continue
		}
		for i, g := range mod.Code.Globals {
			if g == name {
				return mod.Globals[i], nil
			}
		}
	}
	return value.Value{}, vm.runtimeError(NameError, "undefined name %q", name)
}

func (vm *VM) storeExternal(name string, v value.Value) error {
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		for slot, n := range f.Fn.LocalNames {
			if n == name {
				if err := value.DecRef(f.Locals[slot], vm.destroyInstance); err != nil {
					return err
				}
				f.Locals[slot] = v
				return nil
			}
		}
	}
	idx := vm.globalIndex(name)
	if idx < 0 {
		return nil
	}
	if err := value.DecRef(vm.module.Globals[idx], vm.destroyInstance); err != nil {
		return err
	}
	vm.module.Globals[idx] = v
	return nil
}

func (vm *VM) globalIndex(name string) int {
	for i, g := range vm.module.Code.Globals {
		if g == name {
			return i
		}
	}
	return -1
}

func (vm *VM) execArith(op bytecode.Opcode) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	if op == bytecode.OpAdd && a.IsString() && b.IsString() {
		return vm.push(value.StringValue(a.Str() + b.Str()))
	}
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError(TypeMismatch, "arithmetic operator requires numbers, got %s and %s", a.Kind, b.Kind)
	}
	switch op {
	case bytecode.OpAdd:
		return vm.push(value.NumberValue(a.Num() + b.Num()))
	case bytecode.OpSub:
		return vm.push(value.NumberValue(a.Num() - b.Num()))
	case bytecode.OpMul:
		return vm.push(value.NumberValue(a.Num() * b.Num()))
	case bytecode.OpDiv:
		if b.Num() == 0 {
			return vm.runtimeError(NumericError, "division by zero")
		}
		return vm.push(value.NumberValue(a.Num() / b.Num()))
	case bytecode.OpMod:
		if b.Num() == 0 {
			return vm.runtimeError(NumericError, "modulo by zero")
		}
		bi, ai := int64(b.Num()), int64(a.Num())
		return vm.push(value.NumberValue(float64(ai % bi)))
	}
	return vm.runtimeError(Internal, "unreachable arithmetic opcode %s", op)
}

func (vm *VM) execCompare(op bytecode.Opcode) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	c := value.CompareValues(a, b)
	switch op {
	case bytecode.OpEq:
		return vm.push(value.BoolValue(c == 0))
	case bytecode.OpNeq:
		return vm.push(value.BoolValue(c != 0))
	case bytecode.OpLt:
		return vm.push(value.BoolValue(c < 0))
	case bytecode.OpLte:
		return vm.push(value.BoolValue(c <= 0))
	case bytecode.OpGt:
		return vm.push(value.BoolValue(c > 0))
	case bytecode.OpGte:
		return vm.push(value.BoolValue(c >= 0))
	}
	return vm.runtimeError(Internal, "unreachable comparison opcode %s", op)
}

// execTblLoad implements tbl_load/method_load: tos1[tos]. When
// forMethod is true (method_load), the receiver is left below the
// result so a subsequent call_method can bind it as self.
func (vm *VM) execTblLoad(forMethod bool) error {
	key, err := vm.pop()
	if err != nil {
		return err
	}
	recv, err := vm.pop()
	if err != nil {
		return err
	}
	result, err := vm.load(recv, key)
	if err != nil {
		return err
	}
	value.IncRef(result)
	if forMethod {
		if err := vm.push(recv); err != nil {
			return err
		}
	} else if err := value.DecRef(recv, vm.destroyInstance); err != nil {
		return err
	}
	return vm.push(result)
}

func (vm *VM) load(recv, key value.Value) (value.Value, error) {
	switch recv.Kind {
	case value.Vector:
		if builtin, ok := builtins.Vector(key); ok {
			return builtin, nil
		}
		if !key.IsNumber() {
			return value.Value{}, vm.runtimeError(TypeMismatch, "vector index must be a number, got %s", key.Kind)
		}
		if n := key.Num(); n != math.Trunc(n) {
			return value.Value{}, vm.runtimeError(NumericError, "vector index must be an integer, got %v", n)
		}
		idx := int(key.Num())
		elems := recv.Vec().Elems
		if idx < 0 || idx >= len(elems) {
			return value.Value{}, vm.runtimeError(IndexError, "vector index %d out of range (length %d)", idx, len(elems))
		}
		return elems[idx], nil
	case value.Map, value.Class, value.Instance:
		if v, ok := recv.MapObj().Get(key); ok {
			return v, nil
		}
		if builtin, ok := builtins.Map(key); ok {
			return builtin, nil
		}
		return value.NullValue(), nil
	case value.String:
		if builtin, ok := builtins.String(key); ok {
			return builtin, nil
		}
		if !key.IsNumber() {
			return value.Value{}, vm.runtimeError(TypeMismatch, "string index must be a number, got %s", key.Kind)
		}
		if n := key.Num(); n != math.Trunc(n) {
			return value.Value{}, vm.runtimeError(NumericError, "string index must be an integer, got %v", n)
		}
		idx := int(key.Num())
		runes := []rune(recv.Str())
		if idx < 0 || idx >= len(runes) {
			return value.Value{}, vm.runtimeError(IndexError, "string index %d out of range", idx)
		}
		return value.StringValue(string(runes[idx])), nil
	case value.NativeModule:
		if fn, ok := recv.NativeModuleObj().Functions[key.Str()]; ok && key.IsString() {
			return fn, nil
		}
		return value.Value{}, vm.runtimeError(NameError, "module %q has no member %s", recv.NativeModuleObj().Name, value.Display(key))
	case value.Module:
		if mod, ok := vm.modules[recv.ModuleRef().Name]; ok && key.IsString() {
			for i, g := range mod.Code.Globals {
				if g == key.Str() {
					return mod.Globals[i], nil
				}
			}
		}
		return value.Value{}, vm.runtimeError(NameError, "module %q has no member %s", recv.ModuleRef().Name, value.Display(key))
	default:
		return value.Value{}, vm.runtimeError(TypeMismatch, "cannot index a value of type %s", recv.Kind)
	}
}

func (vm *VM) execTblStore() error {
	val, err := vm.pop()
	if err != nil {
		return err
	}
	key, err := vm.pop()
	if err != nil {
		return err
	}
	recv, err := vm.pop()
	if err != nil {
		return err
	}
	switch recv.Kind {
	case value.Vector:
		if !key.IsNumber() {
			return vm.runtimeError(TypeMismatch, "vector index must be a number, got %s", key.Kind)
		}
		if n := key.Num(); n != math.Trunc(n) {
			return vm.runtimeError(NumericError, "vector index must be an integer, got %v", n)
		}
		idx := int(key.Num())
		elems := recv.Vec().Elems
		if idx < 0 || idx >= len(elems) {
			return vm.runtimeError(IndexError, "vector index %d out of range (length %d)", idx, len(elems))
		}
		if err := value.DecRef(elems[idx], vm.destroyInstance); err != nil {
			return err
		}
		elems[idx] = val
	case value.Map, value.Class, value.Instance:
		if old, ok := recv.MapObj().Get(key); ok {
			if err := value.DecRef(old, vm.destroyInstance); err != nil {
				return err
			}
		}
		recv.MapObj().Set(key, val)
	default:
		return vm.runtimeError(TypeMismatch, "cannot assign an index on a value of type %s", recv.Kind)
	}
	return value.DecRef(recv, vm.destroyInstance)
}

// execNewInstance implements spec.md §4.7 step 2-3: shallow-copy the
// class's entries into a fresh map, tagged Instance. Constructing the
// `new` method call is the compiler's job (it emits an explicit
// method_load/call_method sequence immediately afterward).
func (vm *VM) execNewInstance() error {
	cls, err := vm.pop()
	if err != nil {
		return err
	}
	if !cls.IsClass() {
		return vm.runtimeError(TypeMismatch, "new requires a class, got %s", cls.Kind)
	}
	src := cls.MapObj()
	inst := value.NewMap()
	inst.ClassName = src.ClassName
	inst.Class = src
	value.IncRef(cls) // retained by inst.Class for the instance's lifetime
	for _, e := range src.Entries {
		inst.Set(e.Key, e.Val)
		value.IncRef(e.Val)
	}
	if err := value.DecRef(cls, vm.destroyInstance); err != nil { // release the stack's duplicate
		return err
	}
	return vm.push(value.InstanceValue(inst))
}

func (vm *VM) execForIter(pair bool) error {
	iter, err := vm.pop()
	if err != nil {
		return err
	}
	var more bool
	var v value.Value
	switch iter.Kind {
	case value.Vector:
		more, v = iter.Vec().Next()
	case value.Map:
		more, v = iter.MapObj().Next()
	default:
		return vm.runtimeError(TypeMismatch, "value of type %s is not enumerable", iter.Kind)
	}
	if !more {
		return vm.push(value.BoolValue(false))
	}
	if pair {
		// The compiler pops value before key (def_local valSlot, then
		// def_local keySlot), so key must land below value on the stack.
		pairVec := v.Vec()
		if err := vm.push(pairVec.Elems[0]); err != nil { // key
			return err
		}
		if err := vm.push(pairVec.Elems[1]); err != nil { // value
			return err
		}
	} else {
		if err := vm.push(v); err != nil {
			return err
		}
	}
	return vm.push(value.BoolValue(true))
}

// execImport loads a module by name (through vm.importer, or from an
// already-loaded cache) and binds it to a Module value so `name.member`
// dot-access works against it like any other table.
func (vm *VM) execImport(name string) error {
	if _, ok := vm.modules[name]; ok {
		return vm.push(value.ModuleValue(&value.ModuleRef{Name: name}))
	}
	if native, ok := natives.Lookup(name); ok {
		return vm.push(value.NativeModuleValue(native))
	}
	if vm.importer == nil {
		return vm.runtimeError(ImportError, "import: no importer configured to resolve %q", name)
	}
	mod, err := vm.importer.Import(name)
	if err != nil {
		return vm.runtimeError(ImportError, "import %q failed: %v", name, err)
	}
	vm.modules[name] = mod
	if err := vm.resolveClasses(mod); err != nil {
		return err
	}
	return vm.push(value.ModuleValue(&value.ModuleRef{Name: name, Impl: mod}))
}

// execCall handles `call`: pop argc args, then the callee, invoke it.
func (vm *VM) execCall(caller *Frame, argc int) error {
	if vm.sp < argc+1 {
		return vm.runtimeError(Internal, "stack underflow on call")
	}
	args := make([]value.Value, argc)
	copy(args, vm.stack[vm.sp-argc:vm.sp])
	vm.sp -= argc
	callee, err := vm.pop()
	if err != nil {
		return err
	}
	result, err := vm.invoke(callee, value.Value{}, args)
	if err != nil {
		return err
	}
	return vm.push(result)
}

// execCallMethod handles `call_method`: the receiver sits below argc
// args and the already-resolved method value.
func (vm *VM) execCallMethod(caller *Frame, argc int) error {
	if vm.sp < argc+2 {
		return vm.runtimeError(Internal, "stack underflow on call_method")
	}
	args := make([]value.Value, argc)
	copy(args, vm.stack[vm.sp-argc:vm.sp])
	vm.sp -= argc
	method, err := vm.pop()
	if err != nil {
		return err
	}
	recv, err := vm.pop()
	if err != nil {
		return err
	}
	result, err := vm.invoke(method, recv, args)
	if err != nil {
		return err
	}
	return vm.push(result)
}

// Invoke implements value.Invoker, letting a native builtin (vector's
// filter/map/reduce, map's map) call back into a deva-level callback
// value passed to it as an argument.
func (vm *VM) Invoke(fn value.Value, args []value.Value) (value.Value, error) {
	return vm.invoke(fn, value.Value{}, args)
}

// invoke dispatches a callable value (Function or NativeFunction),
// binding self when recv is non-null.
func (vm *VM) invoke(callee, recv value.Value, args []value.Value) (value.Value, error) {
	switch callee.Kind {
	case value.Null:
		// method_load resolves an undeclared method (e.g. a class with
		// no "new" or "delete") to null the same way tbl_load resolves
		// an undeclared field; calling it is the classless/constructor-
		// less no-op rather than a hard error.
		return value.NullValue(), nil
	case value.NativeFunction:
		if callee.IsMethod() {
			args = append(append([]value.Value{}, args...), recv)
		}
		result, err := callee.NativeFn()(vm, args)
		if ne, ok := err.(*value.NativeError); ok {
			return value.Value{}, vm.runtimeError(ErrorKind(ne.Kind), "%s", ne.Message)
		}
		return result, err
	case value.Function:
		ref := callee.FuncRef()
		mod, _ := ref.Module.Impl.(*Module)
		if mod == nil {
			mod = vm.module
		}
		outerModule := vm.module
		vm.module = mod
		frame := vm.newFrame(int32(ref.Index))
		callArgs := args
		if frame.Fn.IsMethod {
			// self occupies parameter slot 0 (the parser prepends it to
			// every method's parameter list), so it must line up with
			// the rest of the call's arguments before bindArgs runs.
			frame.Self = recv
			frame.hasSelf = true
			callArgs = make([]value.Value, 0, len(args)+1)
			callArgs = append(callArgs, recv)
			callArgs = append(callArgs, args...)
		}
		if err := vm.bindArgs(frame, callArgs); err != nil {
			vm.module = outerModule
			return value.Value{}, err
		}
		vm.frames = append(vm.frames, frame)
		result, err := vm.execFrame(frame)
		vm.module = outerModule
		return result, err
	case value.Class:
		return value.Value{}, vm.runtimeError(TypeMismatch, "class %q is not callable; use 'new'", callee.MapObj().ClassName)
	default:
		return value.Value{}, vm.runtimeError(TypeMismatch, "value of type %s is not callable", callee.Kind)
	}
}

// bindArgs assigns call-site args into frame's parameter slots 0..N-1,
// filling any missing trailing parameters from their compiled default.
func (vm *VM) bindArgs(frame *Frame, args []value.Value) error {
	fn := frame.Fn
	if len(args) > int(fn.NumParams) {
		return vm.runtimeError(ArityError, "%s: too many arguments (got %d, want at most %d)", fn.Name, len(args), fn.NumParams)
	}
	for i := 0; i < int(fn.NumParams); i++ {
		if i < len(args) {
			frame.Locals[i] = args[i]
			continue
		}
		d := fn.Defaults[i]
		if !d.HasDefault {
			return vm.runtimeError(ArityError, "%s: missing required argument %d", fn.Name, i)
		}
		switch {
		case d.IsConstRef:
			c := vm.module.Code.Constants[d.ConstIndex]
			if c.Kind == bytecode.ConstNumber {
				frame.Locals[i] = value.NumberValue(c.Num)
			} else {
				frame.Locals[i] = value.StringValue(c.Str)
			}
		case d.IsNull:
			frame.Locals[i] = value.NullValue()
		default:
			frame.Locals[i] = value.BoolValue(d.BoolVal)
		}
	}
	return nil
}

// destroyInstance implements spec.md §4.7's destructor chaining: calls
// `delete` on the instance, then on each ancestor class in turn (without
// re-running an ancestor's delete if a descendant's already ran over the
// same shared fields — the method is always invoked with the original
// instance as self, per the single-inheritance decision in DESIGN.md).
func (vm *VM) destroyInstance(m *value.MapObj) error {
	inst := value.InstanceValue(m)
	cls := m.Class
	for cls != nil {
		if del, ok := cls.Get(value.StringValue("delete")); ok {
			if _, err := vm.invoke(del, inst, nil); err != nil {
				return err
			}
		}
		cls = cls.Super
	}
	return nil
}
