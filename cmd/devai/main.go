// Command devai is the deva interpreter driver: it loads a .dv or .dvc
// file and runs it to completion, mirroring original_source/src/deva.cpp
// and replacing the teacher's hand-rolled os.Args switch
// (cmd/smog/main.go's "run"/default case) with a cobra command.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcd-as/deva-sub000/pkg/config"
	"github.com/jcd-as/deva-sub000/pkg/driver"
	"github.com/jcd-as/deva-sub000/pkg/vm"
)

func main() {
	var modulePath []string

	root := &cobra.Command{
		Use:   "devai <file.dv|file.dvc> [args...]",
		Short: "deva interpreter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			cfg, err := config.Find(filepath.Dir(filename))
			if err != nil {
				return err
			}
			if len(modulePath) == 0 {
				modulePath = cfg.ModulePath
			}

			logger := driver.NewLogger(cfg.Verbosity)

			code, err := driver.LoadFile(filename)
			if err != nil {
				return err
			}

			v := vm.New(nil)
			importer := &driver.FileImporter{Path: append(modulePath, filepath.Dir(filename)), VM: v}
			v.SetImporter(importer)

			name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
			logger.Debug().Msgf("running %s", filename)
			if _, err := v.Run(code, name); err != nil {
				return err
			}
			return nil
		},
	}
	root.Flags().StringSliceVarP(&modulePath, "module-path", "I", nil, "directories searched for imports")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
