// Package bytecode defines the instruction set, the in-memory code module,
// and the on-disk ".dvc" container for the deva virtual machine.
//
// The bytecode is the low-level intermediate representation the VM
// executes. It consists of a sequence of instructions, each with an opcode
// and up to two operands, plus a constant pool, a global-name table and a
// function table shared by every function compiled into one module.
//
// Architecture:
//
// The machine is stack-based:
//  1. Values are pushed onto and popped from a runtime value stack.
//  2. Operations consume values from the stack and push results back.
//  3. Locals are stored per-frame, indexed by slot; globals live in one
//     table per module, indexed by name.
//  4. Attribute/method access on tables (vectors, maps, classes, instances)
//     goes through tbl_load/method_load rather than dedicated opcodes per
//     container kind.
//
// Example compilation:
//
//	Source:  local x = 2 + 3 * 4; print(x);
//
//	Bytecode:
//	  push 0          ; constant[0] == 2
//	  push 1          ; constant[1] == 3
//	  push 2          ; constant[2] == 4
//	  mul
//	  add
//	  def_local 0     ; x
//	  push_global 0   ; globals[0] == "print"
//	  pushlocal 0
//	  call 1
//	  pop
//
// Instruction format:
//
// Each instruction is an opcode byte followed by zero, one or two 32-bit
// operands, depending on the opcode (see OperandCount). The meaning of an
// operand depends on the opcode: a constant-pool index, a local slot, a
// jump target, an item count, or (for exit_loop) a jump target paired with
// a scope-leave depth.
package bytecode

// Opcode is a single bytecode instruction's operation.
type Opcode byte

// Instruction opcodes, grouped as in spec.md §4.4 and grounded on
// original_source/inc/opcodes.h's enum (the original's exact ordering is
// not load-bearing; its grouping and names are).
const (
	// --- Stack ---
	OpNop Opcode = iota
	OpPop
	OpPush // push constant at pool index <operand>
	OpPushTrue
	OpPushFalse
	OpPushNull
	OpPushZero
	OpPushOne
	OpDup  // duplicate the nth item below the top onto the top; operand = n
	OpSwap // exchange tos and tos1
	OpRot  // rotate the top <operand> items

	// --- Locals ---
	OpPushLocal  // push local slot <operand>
	OpStoreLocal // pop and store into local slot <operand>
	OpDefLocal   // like StoreLocal but also marks the slot initialized

	// --- Globals / names ---
	OpPushGlobal  // push value bound to the named global at name-table index <operand>
	OpStoreGlobal // pop and store to the named global at name-table index <operand>

	// --- Arithmetic ---
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot

	// --- Comparison ---
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpOr
	OpAnd

	// --- Control flow ---
	OpJmp        // unconditional jump to absolute address <operand>
	OpJmpf       // pop; jump to <operand> if it coerces to false
	OpEnter      // push a child frame for a lexical block (no new locals)
	OpLeave      // pop the lexical-block frame
	OpCall       // call: pop <operand> args, then the callee; push a new frame
	OpCallMethod // like Call, with implicit-self handling
	OpReturn     // pop the return value, tear down the frame, jump to the return address
	OpExitLoop   // execute Operand2 leave ops, then jump to Operand (break/continue)
	OpHalt       // stop dispatch

	// --- Tables ---
	OpTblLoad     // tos = tos1[tos]
	OpMethodLoad  // like TblLoad but leaves the receiver below the result
	OpTblStore    // tos2[tos1] = tos
	OpNewMap      // pop 2*<operand> values (k,v interleaved), build a map
	OpNewVec      // pop <operand> values, build a vector
	OpNewClass    // build a class from the class template at Classes[<operand>]
	OpNewInstance // pop the class, allocate+construct an instance
	OpPushFunc    // push a Function value referencing Functions[<operand>]

	// --- Iteration ---
	OpForIter     // single-variable for-loop step (Next only); operand unused, the compiler calls rewind() before the loop
	OpForIterPair // two-variable (k,v) for-loop step; operand as above

	// --- Misc ---
	OpImport  // load module named at name-table index <operand>
	OpLineNum // source-line marker; operand = line. The VM executes it as a no-op and the compiler does not emit it

	OpIllegal Opcode = 255
)

var opcodeNames = map[Opcode]string{
	OpNop: "nop", OpPop: "pop", OpPush: "push", OpPushTrue: "push_true",
	OpPushFalse: "push_false", OpPushNull: "push_null", OpPushZero: "push_zero",
	OpPushOne: "push_one", OpDup: "dup", OpSwap: "swap", OpRot: "rot",
	OpPushLocal: "pushlocal", OpStoreLocal: "storelocal", OpDefLocal: "def_local",
	OpPushGlobal: "push_global", OpStoreGlobal: "store_global",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpNeg: "neg", OpNot: "not",
	OpEq: "eq", OpNeq: "neq", OpLt: "lt", OpLte: "lte", OpGt: "gt", OpGte: "gte",
	OpOr: "or", OpAnd: "and",
	OpJmp: "jmp", OpJmpf: "jmpf", OpEnter: "enter", OpLeave: "leave",
	OpCall: "call", OpCallMethod: "call_method", OpReturn: "return",
	OpExitLoop: "exit_loop", OpHalt: "halt",
	OpTblLoad: "tbl_load", OpMethodLoad: "method_load", OpTblStore: "tbl_store",
	OpNewMap: "new_map", OpNewVec: "new_vec", OpNewClass: "new_class",
	OpNewInstance: "new_instance", OpPushFunc: "push_func",
	OpForIter:     "for_iter", OpForIterPair: "for_iter_pair",
	OpImport: "import", OpLineNum: "line_num",
	OpIllegal: "illegal",
}

// String returns a human-readable opcode name, used for disassembly,
// tracing and error messages.
func (op Opcode) String() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return "unknown"
}

// OperandCount reports how many 32-bit operands an opcode consumes from
// the instruction stream: 0, 1, or 2 (exit_loop alone takes two: a target
// address and a leave-depth, per spec.md §4.4).
func (op Opcode) OperandCount() int {
	switch op {
	case OpNop, OpPop, OpPushTrue, OpPushFalse, OpPushNull, OpPushZero, OpPushOne,
		OpSwap, OpAdd, OpSub, OpMul, OpDiv, OpMod, OpNeg, OpNot,
		OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpOr, OpAnd,
		OpEnter, OpLeave, OpReturn, OpHalt, OpTblLoad, OpMethodLoad, OpTblStore,
		OpNewInstance, OpIllegal:
		return 0
	case OpExitLoop:
		return 2
	default:
		return 1
	}
}

// Instruction is a single bytecode instruction: an opcode plus up to two
// operands. Unused operand slots are zero.
type Instruction struct {
	Op       Opcode
	Operand  int32
	Operand2 int32
}

// ConstKind discriminates the two constant-pool payload kinds the on-disk
// format allows (spec.md §4.2: "only Number and String are valid").
type ConstKind byte

const (
	ConstNumber ConstKind = 1
	ConstString ConstKind = 2
)

// Const is one entry of a code module's constant pool.
type Const struct {
	Kind ConstKind
	Num  float64
	Str  string
}
