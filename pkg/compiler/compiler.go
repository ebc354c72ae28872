// Package compiler compiles the decorated AST (pkg/ast) into the bytecode
// module format (pkg/bytecode) the VM executes.
//
// Compilation Architecture:
//
// Each function (the implicit module-level "@main" function, every def,
// and every method) compiles into its own local instruction buffer, using
// instruction offsets relative to that function's own start. Once a
// function's body is fully compiled, its buffer is appended to the
// module's shared instruction stream and its jump targets are rebased by
// adding the offset at which it landed (see appendCurrentBuffer). This lets
// nested function bodies compile independently of where the outer
// function's compilation currently stands, including recursive and
// forward references.
//
// Name Resolution:
//
// Each function being compiled carries a funcScope: a flat map of its own
// declared names (parameters and locals) to slot indices. A name not
// declared in the current function compiles to push_global/store_global
// and is recorded in the function's ExternNames, per spec.md §4.6: at
// run time the VM resolves such a name by walking the call-frame stack
// outward from the current frame, then the module's globals, then
// loaded modules' exports. The compiler does not decide at compile time
// whether the name will resolve to an outer frame's local or a true
// global — that is a dynamic, per-call-stack question spec.md leaves to
// the VM.
//
// Control Flow:
//
// if/while/for lower to conditional jumps (jmpf) with
// back-patched targets. break/continue lower to exit_loop, whose second
// operand is the net enter-depth to unwind (see the enter/leave pairs
// emitted around if/while/for bodies) so that break/continue from inside
// a nested block still leaves the loop's own bookkeeping balanced.
package compiler

import (
	"fmt"

	"github.com/jcd-as/deva-sub000/pkg/ast"
	"github.com/jcd-as/deva-sub000/pkg/bytecode"
)

// funcScope tracks name resolution state for one function currently
// being compiled.
type funcScope struct {
	parent      *funcScope // lexically enclosing function, used only for const-shadow checks
	locals      map[string]int32
	localNames  []string
	consts      map[string]bool
	externNames []string        // every non-local name referenced, in first-seen order
	externSeen  map[string]bool // dedup set backing externNames
	enterDepth  int
}

func newFuncScope(parent *funcScope) *funcScope {
	return &funcScope{
		parent:     parent,
		locals:     map[string]int32{},
		consts:     map[string]bool{},
		externSeen: map[string]bool{},
	}
}

func (f *funcScope) declareLocal(name string, isConst bool) int32 {
	if slot, ok := f.locals[name]; ok {
		return slot
	}
	slot := int32(len(f.localNames))
	f.locals[name] = slot
	f.localNames = append(f.localNames, name)
	if isConst {
		f.consts[name] = true
	}
	return slot
}

// resolveLocal reports whether name is one of this function's own locals.
func (f *funcScope) resolveLocal(name string) (slot int32, ok bool) {
	slot, ok = f.locals[name]
	return slot, ok
}

// recordExtern notes that name resolved outside this function's own
// locals, per spec.md §4.6's definition of a function's external names.
func (f *funcScope) recordExtern(name string) {
	if f.externSeen[name] {
		return
	}
	f.externSeen[name] = true
	f.externNames = append(f.externNames, name)
}

func (f *funcScope) isConst(name string) bool {
	if f.consts[name] {
		return true
	}
	if f.parent != nil {
		return f.parent.isConst(name)
	}
	return false
}

// loopContext tracks the state needed to patch break/continue within one
// enclosing loop.
type loopContext struct {
	start        int32 // absolute (within current function buffer) offset of the loop condition
	enterAtEntry int   // fn.enterDepth when the loop was entered
	breakJumps   []int // indices into fn's instruction buffer needing Operand patched to the loop end
}

// Compiler compiles one module (one parsed source file) into a
// bytecode.Code.
type Compiler struct {
	code *bytecode.Code
	fn   *funcScope
	buf  []bytecode.Instruction
	idx  int32 // index into code.Functions of the function currently being emitted
	loops []*loopContext

	globalConsts map[string]bool
}

// New returns a compiler that emits into a fresh module named file.
func New(file string) *Compiler {
	return &Compiler{
		code:         bytecode.NewCode(file),
		globalConsts: map[string]bool{},
	}
}

// semanticError formats a compile-time semantic error (spec.md §7's
// "semantic errors... illegal use of const, redefinition") in the
// <file>:<line>: <kind>: <message> user-visible format.
func (c *Compiler) semanticError(info ast.NodeInfo, format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d: SemanticError: %s", info.File, info.Line, fmt.Sprintf(format, args...))
}

// Compile compiles prog (the root of one source file) into a bytecode.Code.
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.Code, error) {
	c.fn = newFuncScope(nil)
	c.buf = nil
	c.idx = bytecode.MainFunctionIndex

	for _, stmt := range prog.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}
	c.emit(bytecode.OpPushNull)
	c.emit(bytecode.OpReturn)

	c.code.Functions[bytecode.MainFunctionIndex].NumLocals = int32(len(c.fn.localNames))
	c.code.Functions[bytecode.MainFunctionIndex].LocalNames = c.fn.localNames
	c.appendCurrentBuffer()

	return c.code, nil
}

// appendCurrentBuffer rebases c.buf's jump-target operands by the offset
// at which it lands in c.code.Instructions, records that offset as the
// function's StartOffset and appends it. Nested function bodies are
// appended as soon as they finish compiling, so @main lands after them.
func (c *Compiler) appendCurrentBuffer() {
	start := int32(len(c.code.Instructions))
	c.code.Functions[c.idx].StartOffset = start
	for _, in := range c.buf {
		rebaseJumpTarget(&in, start)
		c.code.Instructions = append(c.code.Instructions, in)
	}
}

func rebaseJumpTarget(in *bytecode.Instruction, start int32) {
	switch in.Op {
	case bytecode.OpJmp, bytecode.OpJmpf, bytecode.OpExitLoop:
		in.Operand += start
	}
}

func (c *Compiler) emit(op bytecode.Opcode) int {
	c.buf = append(c.buf, bytecode.Instruction{Op: op})
	return len(c.buf) - 1
}

func (c *Compiler) emit1(op bytecode.Opcode, operand int32) int {
	c.buf = append(c.buf, bytecode.Instruction{Op: op, Operand: operand})
	return len(c.buf) - 1
}

func (c *Compiler) emit2(op bytecode.Opcode, operand, operand2 int32) int {
	c.buf = append(c.buf, bytecode.Instruction{Op: op, Operand: operand, Operand2: operand2})
	return len(c.buf) - 1
}

func (c *Compiler) here() int32 { return int32(len(c.buf)) }

func (c *Compiler) patchJump(instrIndex int, target int32) {
	c.buf[instrIndex].Operand = target
}

// --- statements ---------------------------------------------------------

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.LocalDecl:
		return c.compileLocalDecl(s)
	case *ast.ConstDecl:
		return c.compileConstDecl(s)
	case *ast.Import:
		gidx := c.code.InternGlobal(s.ModuleName)
		c.emit1(bytecode.OpImport, gidx)
		c.emit1(bytecode.OpStoreGlobal, gidx)
		return nil
	case *ast.FuncDef:
		return c.compileFuncDef(s)
	case *ast.ClassDef:
		return c.compileClassDef(s)
	case *ast.If:
		return c.compileIf(s)
	case *ast.While:
		return c.compileWhile(s)
	case *ast.For:
		return c.compileFor(s)
	case *ast.Break:
		return c.compileBreak(s.NodeInfo)
	case *ast.Continue:
		return c.compileContinue(s.NodeInfo)
	case *ast.Return:
		return c.compileReturn(s)
	case *ast.Block:
		return c.compileBlockStmt(s, true)
	case *ast.ExprStatement:
		if err := c.compileExpr(s.Expr); err != nil {
			return err
		}
		c.emit(bytecode.OpPop)
		return nil
	default:
		return fmt.Errorf("compiler: unhandled statement type %T", stmt)
	}
}

func (c *Compiler) compileBlockStmt(b *ast.Block, scoped bool) error {
	if scoped {
		c.emit(bytecode.OpEnter)
		c.fn.enterDepth++
	}
	for _, stmt := range b.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	if scoped {
		c.emit(bytecode.OpLeave)
		c.fn.enterDepth--
	}
	return nil
}

func (c *Compiler) compileLocalDecl(s *ast.LocalDecl) error {
	slot := c.fn.declareLocal(s.Name, false)
	if s.Init != nil {
		if err := c.compileExpr(s.Init); err != nil {
			return err
		}
	} else {
		c.emit(bytecode.OpPushNull)
	}
	c.emit1(bytecode.OpDefLocal, slot)
	return nil
}

func (c *Compiler) compileConstDecl(s *ast.ConstDecl) error {
	if c.fn.parent == nil && c.idx == bytecode.MainFunctionIndex {
		// Module-level const: bind as a global, per spec.md §7.
		if err := c.compileExpr(s.Init); err != nil {
			return err
		}
		gidx := c.code.InternGlobal(s.Name)
		c.globalConsts[s.Name] = true
		c.emit1(bytecode.OpStoreGlobal, gidx)
		return nil
	}
	slot := c.fn.declareLocal(s.Name, true)
	if err := c.compileExpr(s.Init); err != nil {
		return err
	}
	c.emit1(bytecode.OpDefLocal, slot)
	return nil
}

func (c *Compiler) compileFuncDef(s *ast.FuncDef) error {
	fnIdx := int32(len(c.code.Functions))
	c.code.Functions = append(c.code.Functions, bytecode.Function{
		Name:      s.Name,
		File:      s.File,
		FirstLine: int32(s.Line),
		NumParams: int32(len(s.Params)),
		IsMethod:  s.IsMethod,
	})

	// Bind the name in the *enclosing* scope before compiling the body so
	// recursive and forward calls resolve.
	if !s.IsMethod {
		if c.fn.parent == nil && c.idx == bytecode.MainFunctionIndex {
			c.emit1(bytecode.OpPushFunc, fnIdx)
			gidx := c.code.InternGlobal(s.Name)
			c.emit1(bytecode.OpStoreGlobal, gidx)
		} else {
			slot := c.fn.declareLocal(s.Name, false)
			c.emit1(bytecode.OpPushFunc, fnIdx)
			c.emit1(bytecode.OpDefLocal, slot)
		}
	}

	if err := c.compileFuncBody(s, fnIdx); err != nil {
		return err
	}
	return nil
}

// compileFuncBody compiles s's parameters/defaults/body into a fresh
// funcScope and instruction buffer, then appends it to the module.
func (c *Compiler) compileFuncBody(s *ast.FuncDef, fnIdx int32) error {
	outerFn, outerBuf, outerIdx, outerLoops := c.fn, c.buf, c.idx, c.loops
	c.fn = newFuncScope(outerFn)
	c.buf = nil
	c.idx = fnIdx
	c.loops = nil

	defaults := make([]bytecode.DefaultValue, len(s.Params))
	for i, p := range s.Params {
		c.fn.declareLocal(p, false)
		if d := s.Defaults[i]; d != nil {
			switch d.(type) {
			case *ast.NumberLiteral, *ast.StringLiteral, *ast.BooleanLiteral, *ast.NullLiteral:
			default:
				return c.semanticError(s.NodeInfo, "default value of parameter %q must be a literal", p)
			}
			defaults[i] = c.compileDefault(d)
		}
	}

	for _, stmt := range s.Body.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	c.emit(bytecode.OpPushNull)
	c.emit(bytecode.OpReturn)

	c.code.Functions[fnIdx].NumParams = int32(len(s.Params))
	c.code.Functions[fnIdx].Defaults = defaults
	c.code.Functions[fnIdx].NumLocals = int32(len(c.fn.localNames))
	c.code.Functions[fnIdx].LocalNames = c.fn.localNames
	c.code.Functions[fnIdx].ExternNames = c.fn.externNames
	c.appendCurrentBuffer()

	c.fn, c.buf, c.idx, c.loops = outerFn, outerBuf, outerIdx, outerLoops
	return nil
}

// compileDefault evaluates const-foldable default expressions (numbers,
// strings, booleans, null) into a DefaultValue descriptor; compileFuncBody
// rejects anything else with a SemanticError before calling it, since the
// on-disk format only carries those per spec.md §3.3.
func (c *Compiler) compileDefault(e ast.Expression) bytecode.DefaultValue {
	switch v := e.(type) {
	case *ast.NumberLiteral:
		idx := c.code.InternConstant(bytecode.Const{Kind: bytecode.ConstNumber, Num: v.Value})
		return bytecode.DefaultValue{HasDefault: true, IsConstRef: true, ConstIndex: idx}
	case *ast.StringLiteral:
		idx := c.code.InternConstant(bytecode.Const{Kind: bytecode.ConstString, Str: v.Value})
		return bytecode.DefaultValue{HasDefault: true, IsConstRef: true, ConstIndex: idx}
	case *ast.BooleanLiteral:
		return bytecode.DefaultValue{HasDefault: true, BoolVal: v.Value}
	default:
		return bytecode.DefaultValue{HasDefault: true, IsNull: true}
	}
}

func (c *Compiler) compileClassDef(s *ast.ClassDef) error {
	tmpl := bytecode.ClassTemplate{Name: s.Name, SuperName: s.SuperClass, Fields: s.Fields}
	for _, m := range s.Methods {
		fnIdx := int32(len(c.code.Functions))
		c.code.Functions = append(c.code.Functions, bytecode.Function{
			Name: m.Name, File: m.File, FirstLine: int32(m.Line),
			NumParams: int32(len(m.Params)), IsMethod: true,
		})
		tmpl.MethodNames = append(tmpl.MethodNames, m.Name)
		tmpl.Methods = append(tmpl.Methods, fnIdx)
		if err := c.compileFuncBody(m, fnIdx); err != nil {
			return err
		}
	}
	classIdx := int32(len(c.code.Classes))
	c.code.Classes = append(c.code.Classes, tmpl)

	c.emit1(bytecode.OpNewClass, classIdx)
	if c.fn.parent == nil && c.idx == bytecode.MainFunctionIndex {
		gidx := c.code.InternGlobal(s.Name)
		c.emit1(bytecode.OpStoreGlobal, gidx)
	} else {
		slot := c.fn.declareLocal(s.Name, false)
		c.emit1(bytecode.OpDefLocal, slot)
	}
	return nil
}

func (c *Compiler) compileIf(s *ast.If) error {
	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	jmpfIdx := c.emit1(bytecode.OpJmpf, 0)
	if err := c.compileBlockStmt(s.Then, true); err != nil {
		return err
	}
	if s.Else == nil {
		c.patchJump(jmpfIdx, c.here())
		return nil
	}
	jmpEndIdx := c.emit1(bytecode.OpJmp, 0)
	c.patchJump(jmpfIdx, c.here())
	if err := c.compileBlockStmt(s.Else, true); err != nil {
		return err
	}
	c.patchJump(jmpEndIdx, c.here())
	return nil
}

func (c *Compiler) compileWhile(s *ast.While) error {
	start := c.here()
	lc := &loopContext{start: start, enterAtEntry: c.fn.enterDepth}
	c.loops = append(c.loops, lc)

	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	jmpfIdx := c.emit1(bytecode.OpJmpf, 0)
	if err := c.compileBlockStmt(s.Body, true); err != nil {
		return err
	}
	c.emit1(bytecode.OpJmp, start)
	c.patchJump(jmpfIdx, c.here())

	end := c.here()
	for _, idx := range lc.breakJumps {
		c.patchJump(idx, end)
	}
	c.loops = c.loops[:len(c.loops)-1]
	return nil
}

func (c *Compiler) compileFor(s *ast.For) error {
	if err := c.compileExpr(s.Iterable); err != nil {
		return err
	}
	c.emit(bytecode.OpEnter)
	c.fn.enterDepth++
	iterSlot := c.fn.declareLocal(fmt.Sprintf("@iter%d", len(c.fn.localNames)), false)
	c.emit1(bytecode.OpDefLocal, iterSlot)

	// Call the iterable's rewind() method once before the first step.
	rewindIdx := c.code.InternConstant(bytecode.Const{Kind: bytecode.ConstString, Str: "rewind"})
	c.emit1(bytecode.OpPushLocal, iterSlot)
	c.emit1(bytecode.OpPush, rewindIdx)
	c.emit(bytecode.OpMethodLoad)
	c.emit1(bytecode.OpCallMethod, 0)
	c.emit(bytecode.OpPop)

	op := bytecode.OpForIter
	if len(s.Vars) == 2 {
		op = bytecode.OpForIterPair
	}

	start := c.here()
	lc := &loopContext{start: start, enterAtEntry: c.fn.enterDepth}
	c.loops = append(c.loops, lc)

	// With the rewind done above, for_iter/for_iter_pair only ever call
	// Next(); their operand is unused (always 0).
	c.emit1(bytecode.OpPushLocal, iterSlot)
	c.emit1(op, 0)
	jmpfIdx := c.emit1(bytecode.OpJmpf, 0)

	if len(s.Vars) == 2 {
		keySlot := c.fn.declareLocal(s.Vars[0], false)
		valSlot := c.fn.declareLocal(s.Vars[1], false)
		c.emit1(bytecode.OpDefLocal, valSlot)
		c.emit1(bytecode.OpDefLocal, keySlot)
	} else {
		valSlot := c.fn.declareLocal(s.Vars[0], false)
		c.emit1(bytecode.OpDefLocal, valSlot)
	}

	if err := c.compileBlockStmt(s.Body, true); err != nil {
		return err
	}
	c.emit1(bytecode.OpJmp, start)
	c.patchJump(jmpfIdx, c.here())

	end := c.here()
	for _, idx := range lc.breakJumps {
		c.patchJump(idx, end)
	}
	c.loops = c.loops[:len(c.loops)-1]

	c.emit(bytecode.OpLeave)
	c.fn.enterDepth--
	return nil
}

func (c *Compiler) compileBreak(info ast.NodeInfo) error {
	if len(c.loops) == 0 {
		return c.semanticError(info, "break outside of a loop")
	}
	lc := c.loops[len(c.loops)-1]
	idx := c.emit2(bytecode.OpExitLoop, 0, int32(c.fn.enterDepth-lc.enterAtEntry))
	lc.breakJumps = append(lc.breakJumps, idx)
	return nil
}

func (c *Compiler) compileContinue(info ast.NodeInfo) error {
	if len(c.loops) == 0 {
		return c.semanticError(info, "continue outside of a loop")
	}
	lc := c.loops[len(c.loops)-1]
	c.emit2(bytecode.OpExitLoop, lc.start, int32(c.fn.enterDepth-lc.enterAtEntry))
	return nil
}

func (c *Compiler) compileReturn(s *ast.Return) error {
	if s.Value != nil {
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
	} else {
		c.emit(bytecode.OpPushNull)
	}
	c.emit(bytecode.OpReturn)
	return nil
}

// --- expressions ------------------------------------------------------

func (c *Compiler) compileExpr(e ast.Expression) error {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		idx := c.code.InternConstant(bytecode.Const{Kind: bytecode.ConstNumber, Num: n.Value})
		c.emit1(bytecode.OpPush, idx)
	case *ast.StringLiteral:
		idx := c.code.InternConstant(bytecode.Const{Kind: bytecode.ConstString, Str: n.Value})
		c.emit1(bytecode.OpPush, idx)
	case *ast.BooleanLiteral:
		if n.Value {
			c.emit(bytecode.OpPushTrue)
		} else {
			c.emit(bytecode.OpPushFalse)
		}
	case *ast.NullLiteral:
		c.emit(bytecode.OpPushNull)
	case *ast.Identifier:
		return c.compileIdentifierLoad(n.Name)
	case *ast.VectorLiteral:
		for _, el := range n.Elements {
			if err := c.compileExpr(el); err != nil {
				return err
			}
		}
		c.emit1(bytecode.OpNewVec, int32(len(n.Elements)))
	case *ast.MapLiteral:
		for i := range n.Keys {
			if err := c.compileExpr(n.Keys[i]); err != nil {
				return err
			}
			if err := c.compileExpr(n.Values[i]); err != nil {
				return err
			}
		}
		c.emit1(bytecode.OpNewMap, int32(len(n.Keys)))
	case *ast.UnaryExpr:
		if err := c.compileExpr(n.Operand); err != nil {
			return err
		}
		switch n.Op {
		case "-":
			c.emit(bytecode.OpNeg)
		case "!":
			c.emit(bytecode.OpNot)
		default:
			return fmt.Errorf("compiler: unknown unary operator %q", n.Op)
		}
	case *ast.BinaryExpr:
		return c.compileBinaryExpr(n)
	case *ast.Assignment:
		return c.compileAssignment(n)
	case *ast.Dot:
		if err := c.compileExpr(n.Receiver); err != nil {
			return err
		}
		idx := c.code.InternConstant(bytecode.Const{Kind: bytecode.ConstString, Str: n.Name})
		c.emit1(bytecode.OpPush, idx)
		c.emit(bytecode.OpTblLoad)
	case *ast.Index:
		if err := c.compileExpr(n.Receiver); err != nil {
			return err
		}
		if err := c.compileExpr(n.Key); err != nil {
			return err
		}
		c.emit(bytecode.OpTblLoad)
	case *ast.Call:
		return c.compileCall(n)
	case *ast.New:
		idx := c.code.InternGlobal(n.ClassName)
		c.emit1(bytecode.OpPushGlobal, idx)
		c.emit(bytecode.OpNewInstance)
		// new_instance pops only the class and pushes a bare instance;
		// the constructor (method "new", if the class defines one) runs
		// as an ordinary method call against a duplicate of it, leaving
		// the instance itself as the expression's value.
		c.emit(bytecode.OpDup)
		nameIdx := c.code.InternConstant(bytecode.Const{Kind: bytecode.ConstString, Str: "new"})
		c.emit1(bytecode.OpPush, nameIdx)
		c.emit(bytecode.OpMethodLoad)
		for _, a := range n.Args {
			if err := c.compileExpr(a); err != nil {
				return err
			}
		}
		c.emit1(bytecode.OpCallMethod, int32(len(n.Args)))
		c.emit(bytecode.OpPop)
	default:
		return fmt.Errorf("compiler: unhandled expression type %T", e)
	}
	return nil
}

func (c *Compiler) compileIdentifierLoad(name string) error {
	if slot, ok := c.fn.resolveLocal(name); ok {
		c.emit1(bytecode.OpPushLocal, slot)
		return nil
	}
	c.fn.recordExtern(name)
	idx := c.code.InternGlobal(name)
	c.emit1(bytecode.OpPushGlobal, idx)
	return nil
}

var binaryOpcodes = map[string]bytecode.Opcode{
	"+": bytecode.OpAdd, "-": bytecode.OpSub, "*": bytecode.OpMul,
	"/": bytecode.OpDiv, "%": bytecode.OpMod,
	"==": bytecode.OpEq, "!=": bytecode.OpNeq,
	"<": bytecode.OpLt, "<=": bytecode.OpLte, ">": bytecode.OpGt, ">=": bytecode.OpGte,
}

func (c *Compiler) compileBinaryExpr(n *ast.BinaryExpr) error {
	// && and || short-circuit: they're lowered to jumps, not eager
	// evaluation of both sides followed by OpAnd/OpOr.
	if n.Op == "&&" {
		if err := c.compileExpr(n.Left); err != nil {
			return err
		}
		jmpfIdx := c.emit1(bytecode.OpJmpf, 0)
		if err := c.compileExpr(n.Right); err != nil {
			return err
		}
		jmpEndIdx := c.emit1(bytecode.OpJmp, 0)
		c.patchJump(jmpfIdx, c.here())
		c.emit(bytecode.OpPushFalse)
		c.patchJump(jmpEndIdx, c.here())
		return nil
	}
	if n.Op == "||" {
		if err := c.compileExpr(n.Left); err != nil {
			return err
		}
		c.emit(bytecode.OpDup)
		jmpfIdx := c.emit1(bytecode.OpJmpf, 0)
		jmpEndIdx := c.emit1(bytecode.OpJmp, 0)
		c.patchJump(jmpfIdx, c.here())
		c.emit(bytecode.OpPop)
		if err := c.compileExpr(n.Right); err != nil {
			return err
		}
		c.patchJump(jmpEndIdx, c.here())
		return nil
	}

	if err := c.compileExpr(n.Left); err != nil {
		return err
	}
	if err := c.compileExpr(n.Right); err != nil {
		return err
	}
	op, ok := binaryOpcodes[n.Op]
	if !ok {
		return fmt.Errorf("compiler: unknown binary operator %q", n.Op)
	}
	c.emit(op)
	return nil
}

var augmentedOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "%=": "%",
}

func (c *Compiler) compileAssignment(n *ast.Assignment) error {
	rhs := n.Value
	if base, ok := augmentedOps[n.Op]; ok {
		rhs = &ast.BinaryExpr{NodeInfo: n.NodeInfo, Op: base, Left: n.Target, Right: n.Value}
	}

	switch target := n.Target.(type) {
	case *ast.Identifier:
		if c.fn.isConst(target.Name) || c.globalConsts[target.Name] {
			return c.semanticError(n.NodeInfo, "cannot assign to const %q", target.Name)
		}
		if err := c.compileExpr(rhs); err != nil {
			return err
		}
		c.emit(bytecode.OpDup)
		if slot, ok := c.fn.resolveLocal(target.Name); ok {
			c.emit1(bytecode.OpStoreLocal, slot)
		} else {
			c.fn.recordExtern(target.Name)
			idx := c.code.InternGlobal(target.Name)
			c.emit1(bytecode.OpStoreGlobal, idx)
		}
		return nil
	case *ast.Dot:
		if err := c.compileExpr(target.Receiver); err != nil {
			return err
		}
		idx := c.code.InternConstant(bytecode.Const{Kind: bytecode.ConstString, Str: target.Name})
		c.emit1(bytecode.OpPush, idx)
		if err := c.compileExpr(rhs); err != nil {
			return err
		}
		c.emit(bytecode.OpDup)
		c.emit1(bytecode.OpRot, 4)
		c.emit(bytecode.OpTblStore)
		return nil
	case *ast.Index:
		if err := c.compileExpr(target.Receiver); err != nil {
			return err
		}
		if err := c.compileExpr(target.Key); err != nil {
			return err
		}
		if err := c.compileExpr(rhs); err != nil {
			return err
		}
		c.emit(bytecode.OpDup)
		c.emit1(bytecode.OpRot, 4)
		c.emit(bytecode.OpTblStore)
		return nil
	default:
		return c.semanticError(n.NodeInfo, "invalid assignment target %T", n.Target)
	}
}

func (c *Compiler) compileCall(n *ast.Call) error {
	if dot, ok := n.Callee.(*ast.Dot); ok {
		if err := c.compileExpr(dot.Receiver); err != nil {
			return err
		}
		idx := c.code.InternConstant(bytecode.Const{Kind: bytecode.ConstString, Str: dot.Name})
		c.emit1(bytecode.OpPush, idx)
		c.emit(bytecode.OpMethodLoad)
		for _, a := range n.Args {
			if err := c.compileExpr(a); err != nil {
				return err
			}
		}
		c.emit1(bytecode.OpCallMethod, int32(len(n.Args)))
		return nil
	}
	if err := c.compileExpr(n.Callee); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := c.compileExpr(a); err != nil {
			return err
		}
	}
	c.emit1(bytecode.OpCall, int32(len(n.Args)))
	return nil
}
