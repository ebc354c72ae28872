// Command devadb is the deva console debugger, grounded on
// original_source/src/devadb.cpp and implemented over pkg/debugger. It
// shows pkg/debugger's command prompt once (step, continue, locals, list,
// instruction, breakpoint, delete, quit) and then runs the whole program;
// quit at that prompt exits without running it. There are no run, next,
// print, eval, trace or stack commands. An optional --http endpoint (go-chi/chi, go-chi/cors)
// mirrors a read-only slice of the same state for remote inspection;
// the console protocol remains primary.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/jcd-as/deva-sub000/pkg/debugger"
	"github.com/jcd-as/deva-sub000/pkg/driver"
	"github.com/jcd-as/deva-sub000/pkg/vm"
)

func main() {
	var httpAddr string

	root := &cobra.Command{
		Use:   "devadb <file.dv|file.dvc>",
		Short: "deva console debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := driver.LoadFile(args[0])
			if err != nil {
				return err
			}
			v := vm.New(nil)
			dbg := debugger.New(v, code, os.Stdin, os.Stdout)

			if httpAddr != "" {
				go serveHTTP(httpAddr, dbg)
			}

			dbg.AddBreakpoint(0)
			if !dbg.Prompt(nil) {
				return nil
			}

			_, err = v.Run(code, args[0])
			return err
		},
	}
	root.Flags().StringVar(&httpAddr, "http", "", "serve a read-only remote-inspection endpoint at this address (e.g. :8787)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveHTTP(addr string, dbg *debugger.Debugger) {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))
	r.Get("/breakpoints", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(dbg.Breakpoints())
	})
	r.Get("/globals", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(dbg.Code().Globals)
	})
	r.Get("/functions", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(dbg.Code().Functions)
	})
	http.ListenAndServe(addr, r)
}
