package parser

import (
	"testing"

	"github.com/jcd-as/deva-sub000/pkg/ast"
)

// binOp digs out a top-level BinaryExpr's operator, failing the test if the
// expression statement isn't one.
func binOp(t *testing.T, stmt ast.Statement) *ast.BinaryExpr {
	t.Helper()
	b, ok := exprOf(t, stmt).(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr at top level, got %T", exprOf(t, stmt))
	}
	return b
}

func TestPrecedenceMultiplicationBeforeAddition(t *testing.T) {
	// 2 + 3 * 4 parses as 2 + (3 * 4): the top-level op is '+'.
	b := binOp(t, parseOne(t, "2 + 3 * 4;"))
	if b.Op != "+" {
		t.Fatalf("expected top-level '+', got %q", b.Op)
	}
	rhs, ok := b.Right.(*ast.BinaryExpr)
	if !ok || rhs.Op != "*" {
		t.Fatalf("expected right-hand side to be a '*' expression, got %+v", b.Right)
	}
}

func TestPrecedenceRelationalBeforeEquality(t *testing.T) {
	// a < b == c parses as (a < b) == c.
	b := binOp(t, parseOne(t, "a < b == c;"))
	if b.Op != "==" {
		t.Fatalf("expected top-level '==', got %q", b.Op)
	}
	lhs, ok := b.Left.(*ast.BinaryExpr)
	if !ok || lhs.Op != "<" {
		t.Fatalf("expected left-hand side to be a '<' expression, got %+v", b.Left)
	}
}

func TestPrecedenceAndBeforeOr(t *testing.T) {
	// a || b && c parses as a || (b && c).
	b := binOp(t, parseOne(t, "a || b && c;"))
	if b.Op != "||" {
		t.Fatalf("expected top-level '||', got %q", b.Op)
	}
	rhs, ok := b.Right.(*ast.BinaryExpr)
	if !ok || rhs.Op != "&&" {
		t.Fatalf("expected right-hand side to be a '&&' expression, got %+v", b.Right)
	}
}

func TestPrecedenceParenthesesOverride(t *testing.T) {
	// (2 + 3) * 4 parses as a top-level '*'.
	b := binOp(t, parseOne(t, "(2 + 3) * 4;"))
	if b.Op != "*" {
		t.Fatalf("expected top-level '*', got %q", b.Op)
	}
	lhs, ok := b.Left.(*ast.BinaryExpr)
	if !ok || lhs.Op != "+" {
		t.Fatalf("expected left-hand side to be a '+' expression, got %+v", b.Left)
	}
}

func TestPrecedenceLeftAssociativity(t *testing.T) {
	// 1 - 2 - 3 parses as (1 - 2) - 3.
	b := binOp(t, parseOne(t, "1 - 2 - 3;"))
	if b.Op != "-" {
		t.Fatalf("expected top-level '-', got %q", b.Op)
	}
	lhs, ok := b.Left.(*ast.BinaryExpr)
	if !ok || lhs.Op != "-" {
		t.Fatalf("expected left-hand side to itself be a '-' expression (left-assoc), got %+v", b.Left)
	}
	if _, ok := b.Right.(*ast.NumberLiteral); !ok {
		t.Fatalf("expected right-hand side to be the literal 3, got %+v", b.Right)
	}
}

func TestPrecedenceUnaryBindsTighterThanBinary(t *testing.T) {
	// -a + b parses as (-a) + b.
	b := binOp(t, parseOne(t, "-a + b;"))
	if b.Op != "+" {
		t.Fatalf("expected top-level '+', got %q", b.Op)
	}
	lhs, ok := b.Left.(*ast.UnaryExpr)
	if !ok || lhs.Op != "-" {
		t.Fatalf("expected left-hand side to be a unary '-' expression, got %+v", b.Left)
	}
}

func TestPrecedencePostfixBindsTighterThanUnary(t *testing.T) {
	// !obj.flag parses as !(obj.flag).
	expr := exprOf(t, parseOne(t, "!obj.flag;"))
	u, ok := expr.(*ast.UnaryExpr)
	if !ok || u.Op != "!" {
		t.Fatalf("expected top-level unary '!', got %T", expr)
	}
	if _, ok := u.Operand.(*ast.Dot); !ok {
		t.Fatalf("expected operand to be a Dot expression, got %+v", u.Operand)
	}
}

func TestPrecedenceAssignmentIsLowestAndRightAssociative(t *testing.T) {
	// a = b = 5 parses as a = (b = 5).
	expr := exprOf(t, parseOne(t, "a = b = 5;"))
	outer, ok := expr.(*ast.Assignment)
	if !ok {
		t.Fatalf("expected Assignment, got %T", expr)
	}
	inner, ok := outer.Value.(*ast.Assignment)
	if !ok {
		t.Fatalf("expected nested Assignment on the right, got %+v", outer.Value)
	}
	if _, ok := inner.Value.(*ast.NumberLiteral); !ok {
		t.Fatalf("expected literal 5 at the innermost assignment, got %+v", inner.Value)
	}
}

func TestPrecedenceChainedMethodCalls(t *testing.T) {
	// a.b().c() parses as a chain of Call/Dot nodes.
	expr := exprOf(t, parseOne(t, "a.b().c();"))
	outer, ok := expr.(*ast.Call)
	if !ok {
		t.Fatalf("expected outer Call, got %T", expr)
	}
	dot, ok := outer.Callee.(*ast.Dot)
	if !ok || dot.Name != "c" {
		t.Fatalf("expected outer call's callee to be Dot.c, got %+v", outer.Callee)
	}
	if _, ok := dot.Receiver.(*ast.Call); !ok {
		t.Fatalf("expected Dot receiver to itself be a Call (a.b()), got %+v", dot.Receiver)
	}
}
