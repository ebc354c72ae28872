package parser

import (
	"testing"

	"github.com/jcd-as/deva-sub000/pkg/ast"
)

func parseOne(t *testing.T, input string) ast.Statement {
	t.Helper()
	p := New(input, "test.dv")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	return prog.Statements[0]
}

func exprOf(t *testing.T, stmt ast.Statement) ast.Expression {
	t.Helper()
	es, ok := stmt.(*ast.ExprStatement)
	if !ok {
		t.Fatalf("expected ExprStatement, got %T", stmt)
	}
	return es.Expr
}

func TestParseNumberLiteral(t *testing.T) {
	expr := exprOf(t, parseOne(t, "42;"))
	n, ok := expr.(*ast.NumberLiteral)
	if !ok {
		t.Fatalf("expected NumberLiteral, got %T", expr)
	}
	if n.Value != 42 {
		t.Fatalf("expected 42, got %v", n.Value)
	}
}

func TestParseStringLiteral(t *testing.T) {
	expr := exprOf(t, parseOne(t, `"hello";`))
	s, ok := expr.(*ast.StringLiteral)
	if !ok {
		t.Fatalf("expected StringLiteral, got %T", expr)
	}
	if s.Value != "hello" {
		t.Fatalf("expected %q, got %q", "hello", s.Value)
	}
}

func TestParseBooleanAndNullLiterals(t *testing.T) {
	tests := []struct {
		input string
		check func(ast.Expression) bool
	}{
		{"true;", func(e ast.Expression) bool { b, ok := e.(*ast.BooleanLiteral); return ok && b.Value }},
		{"false;", func(e ast.Expression) bool { b, ok := e.(*ast.BooleanLiteral); return ok && !b.Value }},
		{"null;", func(e ast.Expression) bool { _, ok := e.(*ast.NullLiteral); return ok }},
	}
	for _, tt := range tests {
		expr := exprOf(t, parseOne(t, tt.input))
		if !tt.check(expr) {
			t.Fatalf("input %q: unexpected node %T %+v", tt.input, expr, expr)
		}
	}
}

func TestParseIdentifier(t *testing.T) {
	expr := exprOf(t, parseOne(t, "foo;"))
	id, ok := expr.(*ast.Identifier)
	if !ok || id.Name != "foo" {
		t.Fatalf("expected identifier foo, got %T %+v", expr, expr)
	}
}

func TestParseLocalDecl(t *testing.T) {
	stmt := parseOne(t, "local x = 5;")
	decl, ok := stmt.(*ast.LocalDecl)
	if !ok {
		t.Fatalf("expected LocalDecl, got %T", stmt)
	}
	if decl.Name != "x" {
		t.Fatalf("expected name x, got %s", decl.Name)
	}
	if n, ok := decl.Init.(*ast.NumberLiteral); !ok || n.Value != 5 {
		t.Fatalf("expected init 5, got %+v", decl.Init)
	}
}

func TestParseConstDecl(t *testing.T) {
	stmt := parseOne(t, "const PI = 3.14;")
	decl, ok := stmt.(*ast.ConstDecl)
	if !ok || decl.Name != "PI" {
		t.Fatalf("expected ConstDecl PI, got %T %+v", stmt, stmt)
	}
}

func TestParseAssignment(t *testing.T) {
	expr := exprOf(t, parseOne(t, "x = 5;"))
	assign, ok := expr.(*ast.Assignment)
	if !ok || assign.Op != "=" {
		t.Fatalf("expected Assignment =, got %T %+v", expr, expr)
	}
}

func TestParseAugmentedAssignment(t *testing.T) {
	expr := exprOf(t, parseOne(t, "x += 5;"))
	assign, ok := expr.(*ast.Assignment)
	if !ok || assign.Op != "+=" {
		t.Fatalf("expected Assignment +=, got %T %+v", expr, expr)
	}
}

func TestParseDotAndCall(t *testing.T) {
	expr := exprOf(t, parseOne(t, "obj.method(1, 2);"))
	call, ok := expr.(*ast.Call)
	if !ok {
		t.Fatalf("expected Call, got %T", expr)
	}
	dot, ok := call.Callee.(*ast.Dot)
	if !ok || dot.Name != "method" {
		t.Fatalf("expected Dot.method, got %T %+v", call.Callee, call.Callee)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(call.Args))
	}
}

func TestParseIndex(t *testing.T) {
	expr := exprOf(t, parseOne(t, "v[0];"))
	idx, ok := expr.(*ast.Index)
	if !ok {
		t.Fatalf("expected Index, got %T", expr)
	}
	if _, ok := idx.Receiver.(*ast.Identifier); !ok {
		t.Fatalf("expected identifier receiver, got %T", idx.Receiver)
	}
}

func TestParseVectorLiteral(t *testing.T) {
	expr := exprOf(t, parseOne(t, "[1, 2, 3];"))
	vec, ok := expr.(*ast.VectorLiteral)
	if !ok || len(vec.Elements) != 3 {
		t.Fatalf("expected vector of 3 elements, got %T %+v", expr, expr)
	}
}

func TestParseMapLiteral(t *testing.T) {
	expr := exprOf(t, parseOne(t, `{"a": 1, "b": 2};`))
	m, ok := expr.(*ast.MapLiteral)
	if !ok || len(m.Keys) != 2 {
		t.Fatalf("expected map of 2 entries, got %T %+v", expr, expr)
	}
}

func TestParseNewExpression(t *testing.T) {
	expr := exprOf(t, parseOne(t, "new Foo(1);"))
	n, ok := expr.(*ast.New)
	if !ok || n.ClassName != "Foo" || len(n.Args) != 1 {
		t.Fatalf("expected New Foo(1), got %T %+v", expr, expr)
	}
}

func TestParseIfElse(t *testing.T) {
	p := New("if (x) { return 1; } else { return 2; }", "test.dv")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	ifStmt, ok := prog.Statements[0].(*ast.If)
	if !ok {
		t.Fatalf("expected If, got %T", prog.Statements[0])
	}
	if ifStmt.Else == nil {
		t.Fatal("expected else branch")
	}
}

func TestParseWhileLoop(t *testing.T) {
	p := New("while (x < 10) { x = x + 1; }", "test.dv")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if _, ok := prog.Statements[0].(*ast.While); !ok {
		t.Fatalf("expected While, got %T", prog.Statements[0])
	}
}

func TestParseForLoop(t *testing.T) {
	p := New("for (x in v) { print(x); }", "test.dv")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	forStmt, ok := prog.Statements[0].(*ast.For)
	if !ok || len(forStmt.Vars) != 1 || forStmt.Vars[0] != "x" {
		t.Fatalf("expected For(x), got %T %+v", prog.Statements[0], prog.Statements[0])
	}
}

func TestParseForInPairLoop(t *testing.T) {
	p := New("for (k, v in m) { print(k); }", "test.dv")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	forStmt, ok := prog.Statements[0].(*ast.For)
	if !ok || len(forStmt.Vars) != 2 {
		t.Fatalf("expected For(k, v), got %T %+v", prog.Statements[0], prog.Statements[0])
	}
}

func TestParseBreakOutsideLoopIsAnError(t *testing.T) {
	p := New("break;", "test.dv")
	p.Parse()
	if len(p.Errors()) == 0 {
		t.Fatal("expected an error for break outside a loop")
	}
}

func TestParseFuncDef(t *testing.T) {
	p := New("def add(a, b) { return a + b; }", "test.dv")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	fn, ok := prog.Statements[0].(*ast.FuncDef)
	if !ok || fn.Name != "add" || len(fn.Params) != 2 {
		t.Fatalf("expected FuncDef add(a, b), got %T %+v", prog.Statements[0], prog.Statements[0])
	}
}

func TestParseFuncDefWithDefault(t *testing.T) {
	p := New("def greet(name = \"world\") { return name; }", "test.dv")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	fn := prog.Statements[0].(*ast.FuncDef)
	if fn.Defaults[0] == nil {
		t.Fatal("expected a default value for name")
	}
}

func TestParseClassDefWithSuper(t *testing.T) {
	p := New("class Dog : Animal { local name; def bark() { return name; } }", "test.dv")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	cls, ok := prog.Statements[0].(*ast.ClassDef)
	if !ok || cls.Name != "Dog" || cls.SuperClass != "Animal" {
		t.Fatalf("expected class Dog : Animal, got %T %+v", prog.Statements[0], prog.Statements[0])
	}
	if len(cls.Fields) != 1 || len(cls.Methods) != 1 {
		t.Fatalf("expected 1 field and 1 method, got %d fields %d methods", len(cls.Fields), len(cls.Methods))
	}
	if !cls.Methods[0].IsMethod || cls.Methods[0].Params[0] != "self" {
		t.Fatal("expected method to carry implicit self parameter")
	}
}

func TestParseImport(t *testing.T) {
	p := New("import math;", "test.dv")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	imp, ok := prog.Statements[0].(*ast.Import)
	if !ok || imp.ModuleName != "math" {
		t.Fatalf("expected Import math, got %T %+v", prog.Statements[0], prog.Statements[0])
	}
}

func TestParseScopeTableNesting(t *testing.T) {
	p := New("def outer() { local x = 1; }", "test.dv")
	_, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	scopes := p.Scopes()
	if len(scopes.Scopes) < 2 {
		t.Fatalf("expected at least 2 scopes (module + function body), got %d", len(scopes.Scopes))
	}
	sym, _, ok := scopes.Lookup(1, "x")
	if !ok || !sym.IsLocal {
		t.Fatal("expected x to resolve as a local in the function body scope")
	}
}
