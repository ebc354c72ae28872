// Command devash is the deva interactive shell: it reads statements
// (recognising unterminated braces), executes each in a persistent
// global scope, and prints runtime errors without exiting, per spec.md
// §6's "Interactive shell" requirement. It mirrors
// original_source/src/devash.cpp and the teacher's runREPL, rebuilt on a
// persistent vm.VM + compiler.Compiler pair (see vm.Eval) instead of the
// teacher's Smalltalk-specific CompileIncremental.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jcd-as/deva-sub000/pkg/compiler"
	"github.com/jcd-as/deva-sub000/pkg/config"
	"github.com/jcd-as/deva-sub000/pkg/driver"
	"github.com/jcd-as/deva-sub000/pkg/parser"
	"github.com/jcd-as/deva-sub000/pkg/vm"
)

const moduleName = "devash"

func main() {
	root := &cobra.Command{
		Use:   "devash",
		Short: "deva interactive shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Find(".")
			logger := driver.NewLogger(cfg.Verbosity)
			logger.Debug().Msg("starting shell")
			runShell(cmd.InOrStdin(), cmd.OutOrStdout())
			return nil
		},
	}
	watchCmd := &cobra.Command{
		Use:   "watch <file.dv>",
		Short: "recompile and rerun a script on every save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchFile(args[0])
		},
	}
	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session pairs a long-lived compiler (so bare identifiers intern to
// stable global slots across inputs) with a long-lived VM (so vm.Eval
// can grow the same module's Globals in place).
type session struct {
	c *compiler.Compiler
	v *vm.VM
}

func newSession() *session {
	return &session{c: compiler.New(moduleName), v: vm.New(nil)}
}

func (s *session) eval(input string) error {
	p := parser.New(input, moduleName)
	program, err := p.Parse()
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	code, err := s.c.Compile(program)
	if err != nil {
		return fmt.Errorf("compile error: %w", err)
	}
	_, err = s.v.Eval(code, moduleName)
	return err
}

func runShell(in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "deva shell")
	fmt.Fprintln(out, "Type ':help' for help, ':quit' to exit")

	sess := newSession()
	scanner := bufio.NewScanner(in)
	var buf strings.Builder
	depth := 0

	prompt := func() {
		if buf.Len() == 0 {
			fmt.Fprint(out, "deva> ")
		} else {
			fmt.Fprint(out, "....> ")
		}
	}

	prompt()
	for scanner.Scan() {
		line := scanner.Text()
		if buf.Len() == 0 {
			switch strings.TrimSpace(line) {
			case ":quit", ":exit":
				return
			case ":help":
				printHelp(out)
				prompt()
				continue
			case "":
				prompt()
				continue
			}
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")
		buf.WriteString(line)
		buf.WriteString("\n")

		if depth > 0 {
			prompt()
			continue
		}

		input := buf.String()
		buf.Reset()
		depth = 0
		if strings.TrimSpace(input) == "" {
			prompt()
			continue
		}
		if err := sess.eval(input); err != nil {
			fmt.Fprintln(out, err)
		}
		prompt()
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "commands:")
	fmt.Fprintln(out, "  :help          show this help")
	fmt.Fprintln(out, "  :quit, :exit   leave the shell")
	fmt.Fprintln(out, "statements persist across lines in one shared global scope.")
}

// watchFile recompiles and reruns filename every time it changes on
// disk. Each run compiles the file afresh and executes it in a new VM, so
// no state carries over between runs or from the interactive shell.
func watchFile(filename string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filename); err != nil {
		return fmt.Errorf("watching %s: %w", filename, err)
	}

	run := func() {
		code, err := driver.CompileFile(filename)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		v := vm.New(nil)
		if _, err := v.Run(code, filename); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	fmt.Printf("watching %s, Ctrl-C to stop\n", filename)
	run()
	for event := range watcher.Events {
		if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
			run()
		}
	}
	return nil
}
