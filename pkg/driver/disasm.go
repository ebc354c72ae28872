package driver

import (
	"fmt"
	"io"

	"github.com/jcd-as/deva-sub000/pkg/bytecode"
)

// Disassemble writes a human-readable dump of code's constant pool and
// instruction stream to w, grounded on the teacher's disassembleFile.
func Disassemble(w io.Writer, name string, code *bytecode.Code) {
	fmt.Fprintf(w, "=== %s ===\n\n", name)

	fmt.Fprintln(w, "constants:")
	if len(code.Constants) == 0 {
		fmt.Fprintln(w, "  (empty)")
	}
	for i, c := range code.Constants {
		switch c.Kind {
		case bytecode.ConstNumber:
			fmt.Fprintf(w, "  [%d] number: %v\n", i, c.Num)
		case bytecode.ConstString:
			fmt.Fprintf(w, "  [%d] string: %q\n", i, c.Str)
		}
	}

	fmt.Fprintln(w, "\nglobals:")
	for i, g := range code.Globals {
		fmt.Fprintf(w, "  [%d] %s\n", i, g)
	}

	fmt.Fprintln(w, "\nfunctions:")
	for i, fn := range code.Functions {
		fmt.Fprintf(w, "  [%d] %s (params=%d locals=%d start=%d method=%t)\n",
			i, fn.Name, fn.NumParams, fn.NumLocals, fn.StartOffset, fn.IsMethod)
	}

	fmt.Fprintln(w, "\nclasses:")
	for _, cl := range code.Classes {
		fmt.Fprintf(w, "  %s : %s (fields=%v methods=%v)\n", cl.Name, cl.SuperName, cl.Fields, cl.MethodNames)
	}

	fmt.Fprintln(w, "\ninstructions:")
	for i, in := range code.Instructions {
		fmt.Fprintf(w, "  %5d: %s", i, in.Op)
		switch in.Op.OperandCount() {
		case 1:
			fmt.Fprintf(w, " %d", in.Operand)
		case 2:
			fmt.Fprintf(w, " %d %d", in.Operand, in.Operand2)
		}
		fmt.Fprintln(w)
	}
}
