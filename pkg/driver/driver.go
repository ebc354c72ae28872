// Package driver holds the pipeline and module-loading logic shared by
// the cmd/devac, cmd/devai and cmd/devash front ends, grounded on the
// teacher's cmd/smog/main.go runFile/compileFile/disassembleFile trio
// but split out into an importable package rather than unexported
// functions private to one main.go.
package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jcd-as/deva-sub000/pkg/bytecode"
	"github.com/jcd-as/deva-sub000/pkg/compiler"
	"github.com/jcd-as/deva-sub000/pkg/parser"
	"github.com/jcd-as/deva-sub000/pkg/vm"
)

// SourceExt and CompiledExt are the two file extensions devac/devai
// recognize, matching the teacher's .smog/.sg pair renamed to the
// original's .dv/.dvc naming (original_source/src/devac.cpp).
const (
	SourceExt   = ".dv"
	CompiledExt = ".dvc"
)

// CompileFile parses and compiles a .dv source file into a bytecode.Code,
// naming errors with filename for the caller to report.
func CompileFile(filename string) (*bytecode.Code, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	p := parser.New(string(data), filename)
	program, err := p.Parse()
	if err != nil {
		// err already carries spec.md §7's <file>:<line>: <kind>: <message>
		// format (see parser.Parser.errorf); don't re-wrap it.
		return nil, err
	}
	c := compiler.New(filename)
	code, err := c.Compile(program)
	if err != nil {
		return nil, err
	}
	return code, nil
}

// LoadFile loads filename as bytecode, compiling it first if it is a .dv
// source file rather than an already-compiled .dvc file.
func LoadFile(filename string) (*bytecode.Code, error) {
	if filepath.Ext(filename) == CompiledExt {
		return bytecode.DecodeFile(filename)
	}
	return CompileFile(filename)
}

// FileImporter resolves `import name` by searching Path, in order, for
// name+CompiledExt then name+SourceExt, compiling/loading and running
// whichever is found first. It satisfies vm.Importer.
type FileImporter struct {
	Path []string
	VM   *vm.VM
}

// Import implements vm.Importer.
func (fi *FileImporter) Import(name string) (*vm.Module, error) {
	dirs := fi.Path
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, dir := range dirs {
		for _, ext := range []string{CompiledExt, SourceExt} {
			candidate := filepath.Join(dir, name+ext)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			code, err := LoadFile(candidate)
			if err != nil {
				return nil, err
			}
			return fi.VM.Run(code, name)
		}
	}
	return nil, fmt.Errorf("no %s%s or %s%s found on module path", name, CompiledExt, name, SourceExt)
}

// OutputName derives a default .dvc output path from a .dv input path,
// matching the teacher's compileFile default-output-name rule.
func OutputName(input string) string {
	if filepath.Ext(input) == SourceExt {
		return input[:len(input)-len(SourceExt)] + CompiledExt
	}
	return input + CompiledExt
}
