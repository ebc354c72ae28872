package vm

import (
	"strings"
	"testing"

	"github.com/jcd-as/deva-sub000/pkg/compiler"
	"github.com/jcd-as/deva-sub000/pkg/parser"
)

// runOne compiles and runs input in a fresh VM, returning everything
// print() wrote.
func runOne(t *testing.T, input string) string {
	t.Helper()
	p := parser.New(input, "test.dv")
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	c := compiler.New("test.dv")
	code, err := c.Compile(program)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	var out strings.Builder
	v := New(nil)
	v.SetOutput(func(s string) { out.WriteString(s) })
	if _, err := v.Run(code, "test"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return out.String()
}

func TestVMArithmeticAndPrint(t *testing.T) {
	got := runOne(t, "print(2 + 3 * 4);")
	if got != "14\n" {
		t.Fatalf("expected %q, got %q", "14\n", got)
	}
}

func TestVMClosureOverOuterLocalViaFrameWalk(t *testing.T) {
	got := runOne(t, `
def outer() {
	local x = 7;
	def inner() { return x; }
	return inner();
}
print(outer());
`)
	if got != "7\n" {
		t.Fatalf("expected %q, got %q", "7\n", got)
	}
}

func TestVMMapIterationInCanonicalOrder(t *testing.T) {
	got := runOne(t, `
m = {"b": 2, "a": 1};
for (k, v in m) { print(k); print(v); }
`)
	if got != "a\n1\nb\n2\n" {
		t.Fatalf("expected canonical key order, got %q", got)
	}
}

func TestVMClassLifecycleRunsDestructorOnScopeExit(t *testing.T) {
	got := runOne(t, `
class C {
	def new(n) { self.n = n; }
	def delete() { print("bye"); }
}
{
	local x = new C(3);
	print(x.n);
}
`)
	if got != "3\nbye\n" {
		t.Fatalf("expected %q, got %q", "3\nbye\n", got)
	}
}

func TestVMStringBuildUpAcrossFrames(t *testing.T) {
	got := runOne(t, `
def f() { return "a" + "b"; }
print(f() + "c");
`)
	if got != "abc\n" {
		t.Fatalf("expected %q, got %q", "abc\n", got)
	}
}

func TestVMBreakRespectsLoopScope(t *testing.T) {
	got := runOne(t, `
for (i in [1, 2, 3]) {
	if (i == 2) { break; }
	print(i);
}
`)
	if got != "1\n" {
		t.Fatalf("expected %q, got %q", "1\n", got)
	}
}

func TestVMRecursiveFunctionCall(t *testing.T) {
	got := runOne(t, `
def fact(n) {
	if (n <= 1) { return 1; }
	return n * fact(n - 1);
}
print(fact(5));
`)
	if got != "120\n" {
		t.Fatalf("expected %q, got %q", "120\n", got)
	}
}

func TestVMClassInheritanceCallsOverriddenMethod(t *testing.T) {
	got := runOne(t, `
class Animal { def speak() { return "..."; } }
class Dog : Animal { def speak() { return "woof"; } }
local d = new Dog();
print(d.speak());
`)
	if got != "woof\n" {
		t.Fatalf("expected %q, got %q", "woof\n", got)
	}
}

func TestVMInheritedMethodResolvesThroughSuperclass(t *testing.T) {
	got := runOne(t, `
class Animal { def speak() { return "..."; } }
class Cat : Animal { }
local c = new Cat();
print(c.speak());
`)
	if got != "...\n" {
		t.Fatalf("expected %q, got %q", "...\n", got)
	}
}

func TestVMVectorBuiltinMethods(t *testing.T) {
	got := runOne(t, `
local v = [3, 1, 2];
v.sort();
print(v);
`)
	if got != "[1, 2, 3]\n" {
		t.Fatalf("expected sorted vector display, got %q", got)
	}
}

func TestVMUndefinedNameIsARuntimeError(t *testing.T) {
	p := parser.New("print(doesNotExist);", "test.dv")
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	c := compiler.New("test.dv")
	code, err := c.Compile(program)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	v := New(nil)
	v.SetOutput(func(string) {})
	_, err = v.Run(code, "test")
	if err == nil {
		t.Fatal("expected a runtime error for an undefined name")
	}
	if !strings.Contains(err.Error(), "doesNotExist") {
		t.Fatalf("expected error to name the undefined identifier, got %v", err)
	}
}

func TestVMWhileLoopMutatesLocal(t *testing.T) {
	got := runOne(t, `
local x = 0;
while (x < 3) {
	print(x);
	x = x + 1;
}
`)
	if got != "0\n1\n2\n" {
		t.Fatalf("expected %q, got %q", "0\n1\n2\n", got)
	}
}

// runErr compiles and runs input in a fresh VM, returning the run error
// (nil if none) for tests that assert on a specific failure.
func runErr(t *testing.T, input string) error {
	t.Helper()
	p := parser.New(input, "test.dv")
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	c := compiler.New("test.dv")
	code, err := c.Compile(program)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	v := New(nil)
	v.SetOutput(func(string) {})
	_, err = v.Run(code, "test")
	return err
}

func TestVMErrorFormatAndKind(t *testing.T) {
	err := runErr(t, "print(doesNotExist);")
	if err == nil {
		t.Fatal("expected a runtime error for an undefined name")
	}
	rerr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
	if rerr.Kind != NameError {
		t.Fatalf("expected NameError, got %s", rerr.Kind)
	}
	if !strings.HasPrefix(err.Error(), "test.dv:1: NameError: ") {
		t.Fatalf("expected <file>:<line>: <kind>: <message> prefix, got %q", err.Error())
	}
}

func TestVMVectorNonIntegralIndexIsNumericError(t *testing.T) {
	err := runErr(t, `
local v = [1, 2, 3];
print(v[1.5]);
`)
	if err == nil {
		t.Fatal("expected a NumericError for a non-integral vector index")
	}
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != NumericError {
		t.Fatalf("expected NumericError, got %v", err)
	}
}

func TestVMStringNonIntegralIndexIsNumericError(t *testing.T) {
	err := runErr(t, `
local s = "hello";
print(s[0.5]);
`)
	if err == nil {
		t.Fatal("expected a NumericError for a non-integral string index")
	}
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != NumericError {
		t.Fatalf("expected NumericError, got %v", err)
	}
}

func TestVMVectorOutOfRangeIndexIsIndexError(t *testing.T) {
	err := runErr(t, `
local v = [1, 2, 3];
print(v[10]);
`)
	if err == nil {
		t.Fatal("expected an IndexError for an out-of-range vector index")
	}
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != IndexError {
		t.Fatalf("expected IndexError, got %v", err)
	}
}

func TestVMDivideByZeroIsNumericError(t *testing.T) {
	err := runErr(t, "print(1 / 0);")
	if err == nil {
		t.Fatal("expected a NumericError for division by zero")
	}
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != NumericError {
		t.Fatalf("expected NumericError, got %v", err)
	}
}

func TestVMVectorFilterMapReduceAnyAll(t *testing.T) {
	got := runOne(t, `
local v = [1, 2, 3, 4, 5];
def isEven(x) { return x % 2 == 0; }
def double(x) { return x * 2; }
def sum(acc, x) { return acc + x; }
print(v.filter(isEven));
print(v.map(double));
print(v.reduce(sum, 0));
print(v.any(isEven));
print(v.all(isEven));
`)
	want := "[2, 4]\n[2, 4, 6, 8, 10]\n15\ntrue\nfalse\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVMMapFindRemoveAndMap(t *testing.T) {
	got := runOne(t, `
local m = {"a": 1, "b": 2};
print(m.find("a"));
print(m.find("missing"));
def double(k, v) { return v * 2; }
local doubled = m.map(double);
print(doubled.find("b"));
m.remove("a");
print(m.find("a"));
`)
	want := "1\nnull\n4\nnull\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVMStringFormat(t *testing.T) {
	got := runOne(t, `
print("%1% plus %2% is %3%".format([1, 2, 3]));
`)
	want := "1 plus 2 is 3\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVMBitComplementRejectsNonIntegral(t *testing.T) {
	err := runErr(t, `
import bit;
print(bit.complement(1.5));
`)
	if err == nil {
		t.Fatal("expected a NumericError for a non-integral bit operand")
	}
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != NumericError {
		t.Fatalf("expected NumericError, got %v", err)
	}
}
