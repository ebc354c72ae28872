// Command devac is the deva compiler driver: it turns .dv source into
// .dvc bytecode files, or prints a disassembly of either, mirroring
// original_source/src/devac.cpp and replacing the teacher's hand-rolled
// os.Args switch (cmd/smog/main.go) with cobra subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcd-as/deva-sub000/pkg/bytecode"
	"github.com/jcd-as/deva-sub000/pkg/config"
	"github.com/jcd-as/deva-sub000/pkg/driver"
)

func main() {
	root := &cobra.Command{
		Use:   "devac",
		Short: "deva compiler driver",
	}

	var output string
	buildCmd := &cobra.Command{
		Use:   "build <input.dv>",
		Short: "compile a .dv source file to .dvc bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			out := output
			if out == "" {
				out = driver.OutputName(input)
			}
			code, err := driver.CompileFile(input)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			defer f.Close()
			if err := bytecode.Encode(code, f); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", input, out)
			return nil
		},
	}
	buildCmd.Flags().StringVarP(&output, "output", "o", "", "output .dvc path (default: input with .dvc extension)")

	disasmCmd := &cobra.Command{
		Use:   "disasm <file.dv|file.dvc>",
		Short: "print a disassembly of a compiled or source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := driver.LoadFile(args[0])
			if err != nil {
				return err
			}
			driver.Disassemble(cmd.OutOrStdout(), args[0], code)
			return nil
		},
	}

	root.AddCommand(buildCmd, disasmCmd)

	logger := driver.NewLogger(defaultVerbosity())
	if err := root.Execute(); err != nil {
		logger.Error().Msg(err.Error())
		os.Exit(1)
	}
}

func defaultVerbosity() string {
	wd, err := os.Getwd()
	if err != nil {
		return "info"
	}
	cfg, err := config.Find(wd)
	if err != nil {
		return "info"
	}
	return cfg.Verbosity
}
