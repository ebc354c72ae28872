// Package ast defines the decorated abstract syntax tree the compiler
// consumes, and the scope table that accompanies it, per spec.md §6.
//
// Every node carries: its kind (a grammar production id), source file and
// line, symbolic text (for identifiers and constants), an expression-type
// tag set by semantic analysis, and a scope id indexing into the Scopes
// table. The lexer/parser/semantic analyzer that produce this tree are
// specified only at this interface level (spec.md §1); pkg/lexer and
// pkg/parser are one conforming implementation of it.
package ast

// ExprType is the expression type tag attached to a node by semantic
// analysis, per spec.md §6.
type ExprType int

const (
	NoType ExprType = iota
	NullExprType
	BooleanExprType
	StringExprType
	NumberExprType
	VectorExprType
	MapExprType
	VariableExprType
	FunctionDeclExprType
)

// NodeInfo is the decoration common to every AST node, grounded directly
// on original_source/inc/types.h's NodeInfo (file, sym, scope, line, type).
type NodeInfo struct {
	File  string
	Sym   string
	Scope int
	Line  int
	Type  ExprType
}

// Node is implemented by every AST node.
type Node interface {
	Info() NodeInfo
}

// Expression is implemented by nodes that produce a value.
type Expression interface {
	Node
	expressionNode()
}

// Statement is implemented by nodes that are executed for effect.
type Statement interface {
	Node
	statementNode()
}

func (n NodeInfo) Info() NodeInfo { return n }

// exprTag and stmtTag are embedded (anonymously, unexported) to supply the
// Expression/Statement marker methods without repeating them on every
// concrete node type.
type exprTag struct{}
type stmtTag struct{}

func (exprTag) expressionNode() {}
func (stmtTag) statementNode()  {}

// Program is the root of one compiled source file.
type Program struct {
	NodeInfo
	stmtTag
	Statements []Statement
}

// --- literals -------------------------------------------------------------

type NumberLiteral struct {
	NodeInfo
	exprTag
	Value float64
}

type StringLiteral struct {
	NodeInfo
	exprTag
	Value string
}

type BooleanLiteral struct {
	NodeInfo
	exprTag
	Value bool
}

type NullLiteral struct {
	NodeInfo
	exprTag
}

type VectorLiteral struct {
	NodeInfo
	exprTag
	Elements []Expression
}

type MapLiteral struct {
	NodeInfo
	exprTag
	Keys   []Expression
	Values []Expression
}

// Identifier is a bare name reference; resolution (local slot, free
// variable, global, import) happens in the compiler per spec.md §4.3.
type Identifier struct {
	NodeInfo
	exprTag
	Name string
}

// --- operators --------------------------------------------------------

type BinaryExpr struct {
	NodeInfo
	exprTag
	Op          string // "+", "-", "*", "/", "%", "==", "!=", "<", "<=", ">", ">=", "&&", "||"
	Left, Right Expression
}

type UnaryExpr struct {
	NodeInfo
	exprTag
	Op      string // "-", "!"
	Operand Expression
}

// Assignment covers plain "=" as well as the augmented forms (+=, -=, ...)
// implied by spec.md §4.4's add_assign/sub_assign/etc. family.
type Assignment struct {
	NodeInfo
	exprTag
	Op     string // "=", "+=", "-=", "*=", "/=", "%="
	Target Expression
	Value  Expression
}

// Dot is member access: Receiver.Name, lowered per spec.md §4.3's
// "method dispatch lowering" (tbl_load or method_load depending on
// whether the enclosing node is a Call).
type Dot struct {
	NodeInfo
	exprTag
	Receiver Expression
	Name     string
}

// Index is subscript access: Receiver[Key].
type Index struct {
	NodeInfo
	exprTag
	Receiver Expression
	Key      Expression
}

// Call applies Callee (an Identifier, Dot, or Index) to Args.
type Call struct {
	NodeInfo
	exprTag
	Callee Expression
	Args   []Expression
}

// New constructs an instance of the named class.
type New struct {
	NodeInfo
	exprTag
	ClassName string
	Args      []Expression
}

// --- statements ---------------------------------------------------------

type ExprStatement struct {
	NodeInfo
	stmtTag
	Expr Expression
}

// LocalDecl declares a function-local variable, optionally with an
// initializer.
type LocalDecl struct {
	NodeInfo
	stmtTag
	Name string
	Init Expression // nil if uninitialized
}

// ConstDecl declares a module-level constant; spec.md §7 requires
// reassignment to raise a compile-time "illegal use of const" error.
type ConstDecl struct {
	NodeInfo
	stmtTag
	Name string
	Init Expression
}

type Block struct {
	NodeInfo
	stmtTag
	Statements []Statement
}

type If struct {
	NodeInfo
	stmtTag
	Cond Expression
	Then *Block
	Else *Block // nil if no else clause
}

type While struct {
	NodeInfo
	stmtTag
	Cond Expression
	Body *Block
}

// For is "for <Vars...> in <Iterable> <Body>"; one loop variable for
// for_iter, two for for_iter_pair (spec.md §4.3/§4.4).
type For struct {
	NodeInfo
	stmtTag
	Vars     []string
	Iterable Expression
	Body     *Block
}

// FuncDef declares a (possibly nested) function or method. IsMethod is
// set by the class-def lowering for methods, which also prepends the
// implicit "self" parameter (spec.md §4.7).
type FuncDef struct {
	NodeInfo
	stmtTag
	Name     string
	Params   []string
	Defaults []Expression // parallel to Params; nil entry = no default
	Body     *Block
	IsMethod bool
}

// ClassDef declares a class with a single optional named base, per
// SPEC_FULL.md's single-inheritance open-question decision.
type ClassDef struct {
	NodeInfo
	stmtTag
	Name       string
	SuperClass string // "" if none
	Fields     []string
	Methods    []*FuncDef
}

type Import struct {
	NodeInfo
	stmtTag
	ModuleName string
}

type Break struct {
	NodeInfo
	stmtTag
}
type Continue struct {
	NodeInfo
	stmtTag
}

type Return struct {
	NodeInfo
	stmtTag
	Value Expression // nil for a bare "return;"
}

// --- scope table ----------------------------------------------------------

// SymbolKind classifies one entry of a Scope's symbol table.
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymFunction
	SymClass
	SymParameter
)

// Symbol is one (symbol-type, is_const, is_extern, is_local) entry, per
// spec.md §6 "Scope table".
type Symbol struct {
	Kind     SymbolKind
	IsConst  bool
	IsExtern bool
	IsLocal  bool
}

// Scope is a flat symbol table keyed by name, with a back-pointer to its
// lexically enclosing scope. The outermost scope has Parent == -1.
type Scope struct {
	Parent  int
	Symbols map[string]Symbol
}

// ScopeTable is a flat mapping from scope id to Scope, indexed by the
// Scope field every Node carries in its NodeInfo.
type ScopeTable struct {
	Scopes []Scope
}

// NewScopeTable returns a table containing only the root (module) scope,
// scope id 0, with no parent.
func NewScopeTable() *ScopeTable {
	return &ScopeTable{Scopes: []Scope{{Parent: -1, Symbols: map[string]Symbol{}}}}
}

// NewScope appends a child of parent and returns its id.
func (t *ScopeTable) NewScope(parent int) int {
	t.Scopes = append(t.Scopes, Scope{Parent: parent, Symbols: map[string]Symbol{}})
	return len(t.Scopes) - 1
}

// Lookup walks outward from scopeID looking for name, returning the
// symbol, the scope id that owns it, and whether it was found at all.
func (t *ScopeTable) Lookup(scopeID int, name string) (Symbol, int, bool) {
	for id := scopeID; id != -1; {
		scope := t.Scopes[id]
		if sym, ok := scope.Symbols[name]; ok {
			return sym, id, true
		}
		id = scope.Parent
	}
	return Symbol{}, -1, false
}

// Declare adds or overwrites name in scopeID's own symbol table.
func (t *ScopeTable) Declare(scopeID int, name string, sym Symbol) {
	t.Scopes[scopeID].Symbols[name] = sym
}
