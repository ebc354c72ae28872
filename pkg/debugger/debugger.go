// Package debugger implements an interactive console debugger for the
// deva VM, grounded on the original interpreter's devadb.cpp command set
// (step, step in, step out, breakpoint, delete breakpoint, display
// breakpoints, print, stack, list) adapted to the Go VM's Frame-based
// execution model.
package debugger

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jcd-as/deva-sub000/pkg/bytecode"
	"github.com/jcd-as/deva-sub000/pkg/value"
	"github.com/jcd-as/deva-sub000/pkg/vm"
)

// Debugger holds breakpoints and a step flag for a VM and runs a
// line-oriented command prompt, reading commands from in and writing to out.
//
// The VM itself runs a frame to completion in one call; a caller wanting
// genuine mid-frame pausing needs a step hook on vm.VM that does not
// exist yet. Until then this type is the command/inspection surface
// cmd/devadb drives between calls (at function entry, for example),
// with ShouldPause/AddBreakpoint ready for that hook once it lands.
type Debugger struct {
	vm          *vm.VM
	code        *bytecode.Code
	breakpoints map[int32]bool
	stepMode    bool
	in          *bufio.Scanner
	out         io.Writer
}

// New creates a debugger over code, reading commands from in and writing
// output to out.
func New(v *vm.VM, code *bytecode.Code, in io.Reader, out io.Writer) *Debugger {
	return &Debugger{
		vm:          v,
		code:        code,
		breakpoints: make(map[int32]bool),
		in:          bufio.NewScanner(in),
		out:         out,
	}
}

// AddBreakpoint marks ip as a pause point.
func (d *Debugger) AddBreakpoint(ip int32) { d.breakpoints[ip] = true }

// RemoveBreakpoint clears a previously set pause point.
func (d *Debugger) RemoveBreakpoint(ip int32) { delete(d.breakpoints, ip) }

// Breakpoints returns the currently set pause points, for the HTTP
// inspection endpoint cmd/devadb exposes alongside the console protocol.
func (d *Debugger) Breakpoints() []int32 {
	out := make([]int32, 0, len(d.breakpoints))
	for ip := range d.breakpoints {
		out = append(out, ip)
	}
	return out
}

// Code exposes the disassembled module for read-only inspection.
func (d *Debugger) Code() *bytecode.Code { return d.code }

// ShouldPause reports whether execution at ip should stop for a prompt.
func (d *Debugger) ShouldPause(ip int32) bool {
	return d.stepMode || d.breakpoints[ip]
}

func (d *Debugger) printf(format string, args ...interface{}) {
	fmt.Fprintf(d.out, format, args...)
}

// ShowInstruction prints the instruction at ip.
func (d *Debugger) ShowInstruction(ip int32) {
	if int(ip) >= len(d.code.Instructions) {
		d.printf("(end of code)\n")
		return
	}
	in := d.code.Instructions[ip]
	d.printf("  %4d: %s", ip, in.Op)
	switch in.Op.OperandCount() {
	case 1:
		d.printf(" %d", in.Operand)
	case 2:
		d.printf(" %d %d", in.Operand, in.Operand2)
	}
	d.printf("\n")
}

// ShowLocals prints a frame's locals by name where known.
func (d *Debugger) ShowLocals(frame *vm.Frame) {
	if frame == nil || frame.Fn == nil {
		d.printf("(no frame)\n")
		return
	}
	if len(frame.Locals) == 0 {
		d.printf("(no locals)\n")
		return
	}
	for i, v := range frame.Locals {
		name := fmt.Sprintf("slot %d", i)
		if i < len(frame.Fn.LocalNames) && frame.Fn.LocalNames[i] != "" {
			name = frame.Fn.LocalNames[i]
		}
		d.printf("  %s = %s\n", name, value.Display(v))
	}
}

// ListInstructions dumps the whole instruction stream, marking ip and
// any set breakpoints.
func (d *Debugger) ListInstructions(ip int32) {
	for i := range d.code.Instructions {
		marker := "  "
		if int32(i) == ip {
			marker = "->"
		} else if d.breakpoints[int32(i)] {
			marker = "* "
		}
		d.printf("%s", marker)
		d.ShowInstruction(int32(i))
	}
}

// Prompt reads and dispatches commands until one ends the prompt: it
// returns true after "step" or "continue" (or when input ends) and false
// after "quit". "help", "list" and the other inspection commands print
// and keep prompting. frame may be nil before the program starts running.
func (d *Debugger) Prompt(frame *vm.Frame) (resume bool) {
	for {
		d.printf("devadb> ")
		if !d.in.Scan() {
			return true
		}
		line := strings.TrimSpace(d.in.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "help", "h", "?":
			d.printHelp()
		case "step", "s":
			d.stepMode = true
			return true
		case "continue", "c":
			d.stepMode = false
			return true
		case "locals", "l":
			d.ShowLocals(frame)
		case "list", "ls":
			var ip int32
			if frame != nil {
				ip = frame.IP
			}
			d.ListInstructions(ip)
		case "instruction", "i":
			if frame != nil {
				d.ShowInstruction(frame.IP)
			}
		case "breakpoint", "b":
			if len(parts) < 2 {
				d.printf("usage: breakpoint <ip>\n")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				d.printf("invalid instruction offset %q\n", parts[1])
				continue
			}
			d.AddBreakpoint(int32(ip))
			d.printf("breakpoint set at %d\n", ip)
		case "delete", "d":
			if len(parts) < 2 {
				d.printf("usage: delete <ip>\n")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				d.printf("invalid instruction offset %q\n", parts[1])
				continue
			}
			d.RemoveBreakpoint(int32(ip))
			d.printf("breakpoint removed at %d\n", ip)
		case "quit", "q":
			return false
		default:
			d.printf("unknown command %q (type 'help')\n", cmd)
		}
	}
}

func (d *Debugger) printHelp() {
	d.printf("commands:\n")
	d.printf("  step, s              step one instruction\n")
	d.printf("  continue, c          resume execution\n")
	d.printf("  locals, l            show the current frame's locals\n")
	d.printf("  instruction, i       show the current instruction\n")
	d.printf("  list, ls             list the whole instruction stream\n")
	d.printf("  breakpoint <n>, b    pause before instruction n\n")
	d.printf("  delete <n>, d        remove a breakpoint\n")
	d.printf("  quit, q              stop debugging\n")
}
