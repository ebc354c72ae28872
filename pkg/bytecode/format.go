// Package bytecode: the ".dvc" compiled-file codec.
//
// File format (spec.md §4.2), four sections each introduced by an ASCII
// tag, followed by the raw instruction bytes:
//
//	[File header] 16 bytes: "deva" (4) + "1.0.0" (6) + zero padding (6).
//	[Constants]   ".const\0\0" (8) + count (u32) + that many records:
//	                type tag (1 byte: 1=Number, 2=String) then either an
//	                8-byte IEEE-754 double or a u32-length-prefixed UTF-8
//	                string.
//	[Globals]     ".global\0" (8) + count (u32) + that many
//	                u32-length-prefixed UTF-8 strings.
//	[Functions]   ".func\0\0\0" (8) + count (u32) + that many function
//	                records: name, file (both length-prefixed strings),
//	                first-line (u32), param count (u32), one default-value
//	                descriptor per parameter, local count (u32), local-name
//	                count (u32) + that many length-prefixed strings, extern
//	                name count (u32) + that many length-prefixed strings,
//	                start offset (u32), is-method (1 byte).
//	[Classes]     ".class\0\0" (8) + count (u32) + that many class-template
//	                records: name, super-name (both length-prefixed
//	                strings, super-name empty when there is no base),
//	                field count (u32) + that many length-prefixed
//	                strings, method count (u32) + that many (name, u32
//	                function-table index) pairs.
//	[Instructions] the remainder of the file: count (u32) then that many
//	                (opcode byte, operand count byte, that many i32
//	                operands) records.
//
// All multi-byte integers are little-endian; this is a implementation
// choice (spec.md §4.2 only requires consistency between reader and
// writer), not a requirement of the host architecture.
//
// Re-emitting a just-decoded Code is byte-identical up to the
// deduplication order of constants and globals (spec.md §4.2).
package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

var (
	fileMagic   = [4]byte{'d', 'e', 'v', 'a'}
	fileVersion = [6]byte{'1', '.', '0', '.', '0'}
	constTag    = [8]byte{'.', 'c', 'o', 'n', 's', 't'}
	globalTag   = [8]byte{'.', 'g', 'l', 'o', 'b', 'a', 'l'}
	funcTag     = [8]byte{'.', 'f', 'u', 'n', 'c'}
	classTag    = [8]byte{'.', 'c', 'l', 'a', 's', 's'}
)

// Encode writes c to w in the .dvc format described above.
func Encode(c *Code, w io.Writer) error {
	if err := writeHeader(w); err != nil {
		return err
	}
	if err := writeConstants(w, c.Constants); err != nil {
		return err
	}
	if err := writeGlobals(w, c.Globals); err != nil {
		return err
	}
	if err := writeFunctions(w, c.Functions); err != nil {
		return err
	}
	if err := writeClasses(w, c.Classes); err != nil {
		return err
	}
	return writeInstructions(w, c.Instructions)
}

// Decode reads a .dvc file from r and returns the Code it describes.
func Decode(r io.Reader) (*Code, error) {
	if err := readHeader(r); err != nil {
		return nil, err
	}
	consts, err := readConstants(r)
	if err != nil {
		return nil, err
	}
	globals, err := readGlobals(r)
	if err != nil {
		return nil, err
	}
	funcs, err := readFunctions(r)
	if err != nil {
		return nil, err
	}
	classes, err := readClasses(r)
	if err != nil {
		return nil, err
	}
	instrs, err := readInstructions(r)
	if err != nil {
		return nil, err
	}
	return &Code{Constants: consts, Globals: globals, Functions: funcs, Classes: classes, Instructions: instrs}, nil
}

// DecodeFile memory-maps path (via edsrzf/mmap-go) and decodes it,
// avoiding a full read into a heap buffer for large compiled files. Falls
// back to a plain io.Reader-based Decode when path cannot be mmapped
// (e.g. it names a pipe or special file rather than a regular one).
func DecodeFile(path string) (*Code, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.Size() == 0 || !fi.Mode().IsRegular() {
		return Decode(f)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		// Not every filesystem/file supports mmap (e.g. some overlayfs,
		// or a zero-length file); degrade gracefully to a normal read.
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return nil, serr
		}
		return Decode(f)
	}
	defer m.Unmap()

	return Decode(bytes.NewReader(m))
}

func writeHeader(w io.Writer) error {
	if _, err := w.Write(fileMagic[:]); err != nil {
		return err
	}
	if _, err := w.Write(fileVersion[:]); err != nil {
		return err
	}
	var pad [6]byte
	_, err := w.Write(pad[:])
	return err
}

func readHeader(r io.Reader) error {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("reading file header: %w", err)
	}
	if magic != fileMagic {
		return fmt.Errorf("bad magic bytes: got %q, want %q", magic, fileMagic)
	}
	var ver [6]byte
	if _, err := io.ReadFull(r, ver[:]); err != nil {
		return fmt.Errorf("reading version: %w", err)
	}
	if ver != fileVersion {
		return fmt.Errorf("unsupported bytecode version: got %q, want %q", ver, fileVersion)
	}
	var pad [6]byte
	_, err := io.ReadFull(r, pad[:])
	return err
}

func writeConstants(w io.Writer, consts []Const) error {
	if _, err := w.Write(constTag[:]); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(consts))); err != nil {
		return err
	}
	for _, c := range consts {
		if err := writeConstant(w, c); err != nil {
			return err
		}
	}
	return nil
}

func writeConstant(w io.Writer, c Const) error {
	if _, err := w.Write([]byte{byte(c.Kind)}); err != nil {
		return err
	}
	switch c.Kind {
	case ConstNumber:
		return binary.Write(w, binary.LittleEndian, c.Num)
	case ConstString:
		return writeString(w, c.Str)
	default:
		return fmt.Errorf("invalid constant kind %d: only Number and String are valid", c.Kind)
	}
}

func readConstants(r io.Reader) ([]Const, error) {
	if err := expectTag(r, constTag[:]); err != nil {
		return nil, err
	}
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]Const, 0, n)
	for i := uint32(0); i < n; i++ {
		c, err := readConstant(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func readConstant(r io.Reader) (Const, error) {
	var kind [1]byte
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		return Const{}, err
	}
	switch ConstKind(kind[0]) {
	case ConstNumber:
		var n float64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Const{}, err
		}
		return Const{Kind: ConstNumber, Num: n}, nil
	case ConstString:
		s, err := readString(r)
		if err != nil {
			return Const{}, err
		}
		return Const{Kind: ConstString, Str: s}, nil
	default:
		return Const{}, fmt.Errorf("invalid constant type tag %d on disk", kind[0])
	}
}

func writeGlobals(w io.Writer, globals []string) error {
	if _, err := w.Write(globalTag[:]); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(globals))); err != nil {
		return err
	}
	for _, g := range globals {
		if err := writeString(w, g); err != nil {
			return err
		}
	}
	return nil
}

func readGlobals(r io.Reader) ([]string, error) {
	if err := expectTag(r, globalTag[:]); err != nil {
		return nil, err
	}
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func writeFunctions(w io.Writer, funcs []Function) error {
	if _, err := w.Write(funcTag[:]); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(funcs))); err != nil {
		return err
	}
	for _, f := range funcs {
		if err := writeFunction(w, f); err != nil {
			return err
		}
	}
	return nil
}

func writeFunction(w io.Writer, f Function) error {
	if err := writeString(w, f.Name); err != nil {
		return err
	}
	if err := writeString(w, f.File); err != nil {
		return err
	}
	if err := writeU32(w, uint32(f.FirstLine)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(f.NumParams)); err != nil {
		return err
	}
	for _, d := range f.Defaults {
		if err := writeDefault(w, d); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(f.NumLocals)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(f.LocalNames))); err != nil {
		return err
	}
	for _, n := range f.LocalNames {
		if err := writeString(w, n); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(f.ExternNames))); err != nil {
		return err
	}
	for _, n := range f.ExternNames {
		if err := writeString(w, n); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(f.StartOffset)); err != nil {
		return err
	}
	var isMethod byte
	if f.IsMethod {
		isMethod = 1
	}
	_, err := w.Write([]byte{isMethod})
	return err
}

func writeDefault(w io.Writer, d DefaultValue) error {
	var flags byte
	if d.HasDefault {
		flags |= 1
	}
	if d.IsConstRef {
		flags |= 2
	}
	if d.BoolVal {
		flags |= 4
	}
	if d.IsNull {
		flags |= 8
	}
	if _, err := w.Write([]byte{flags}); err != nil {
		return err
	}
	return writeU32(w, uint32(d.ConstIndex))
}

func readFunctions(r io.Reader) ([]Function, error) {
	if err := expectTag(r, funcTag[:]); err != nil {
		return nil, err
	}
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]Function, 0, n)
	for i := uint32(0); i < n; i++ {
		f, err := readFunction(r)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func readFunction(r io.Reader) (Function, error) {
	var f Function
	var err error
	if f.Name, err = readString(r); err != nil {
		return f, err
	}
	if f.File, err = readString(r); err != nil {
		return f, err
	}
	line, err := readU32(r)
	if err != nil {
		return f, err
	}
	f.FirstLine = int32(line)
	params, err := readU32(r)
	if err != nil {
		return f, err
	}
	f.NumParams = int32(params)
	f.Defaults = make([]DefaultValue, params)
	for i := range f.Defaults {
		d, err := readDefault(r)
		if err != nil {
			return f, err
		}
		f.Defaults[i] = d
	}
	locals, err := readU32(r)
	if err != nil {
		return f, err
	}
	f.NumLocals = int32(locals)
	localNameCount, err := readU32(r)
	if err != nil {
		return f, err
	}
	f.LocalNames = make([]string, localNameCount)
	for i := range f.LocalNames {
		s, err := readString(r)
		if err != nil {
			return f, err
		}
		f.LocalNames[i] = s
	}
	externCount, err := readU32(r)
	if err != nil {
		return f, err
	}
	f.ExternNames = make([]string, externCount)
	for i := range f.ExternNames {
		s, err := readString(r)
		if err != nil {
			return f, err
		}
		f.ExternNames[i] = s
	}
	start, err := readU32(r)
	if err != nil {
		return f, err
	}
	f.StartOffset = int32(start)
	var isMethod [1]byte
	if _, err := io.ReadFull(r, isMethod[:]); err != nil {
		return f, err
	}
	f.IsMethod = isMethod[0] != 0
	return f, nil
}

func readDefault(r io.Reader) (DefaultValue, error) {
	var flags [1]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return DefaultValue{}, err
	}
	idx, err := readU32(r)
	if err != nil {
		return DefaultValue{}, err
	}
	return DefaultValue{
		HasDefault: flags[0]&1 != 0,
		IsConstRef: flags[0]&2 != 0,
		BoolVal:    flags[0]&4 != 0,
		IsNull:     flags[0]&8 != 0,
		ConstIndex: int32(idx),
	}, nil
}

func writeClasses(w io.Writer, classes []ClassTemplate) error {
	if _, err := w.Write(classTag[:]); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(classes))); err != nil {
		return err
	}
	for _, c := range classes {
		if err := writeString(w, c.Name); err != nil {
			return err
		}
		if err := writeString(w, c.SuperName); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(c.Fields))); err != nil {
			return err
		}
		for _, f := range c.Fields {
			if err := writeString(w, f); err != nil {
				return err
			}
		}
		if err := writeU32(w, uint32(len(c.MethodNames))); err != nil {
			return err
		}
		for i, name := range c.MethodNames {
			if err := writeString(w, name); err != nil {
				return err
			}
			if err := writeU32(w, uint32(c.Methods[i])); err != nil {
				return err
			}
		}
	}
	return nil
}

func readClasses(r io.Reader) ([]ClassTemplate, error) {
	if err := expectTag(r, classTag[:]); err != nil {
		return nil, err
	}
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]ClassTemplate, 0, n)
	for i := uint32(0); i < n; i++ {
		var c ClassTemplate
		if c.Name, err = readString(r); err != nil {
			return nil, err
		}
		if c.SuperName, err = readString(r); err != nil {
			return nil, err
		}
		fieldCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		c.Fields = make([]string, fieldCount)
		for j := range c.Fields {
			if c.Fields[j], err = readString(r); err != nil {
				return nil, err
			}
		}
		methodCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		c.MethodNames = make([]string, methodCount)
		c.Methods = make([]int32, methodCount)
		for j := range c.MethodNames {
			if c.MethodNames[j], err = readString(r); err != nil {
				return nil, err
			}
			idx, err := readU32(r)
			if err != nil {
				return nil, err
			}
			c.Methods[j] = int32(idx)
		}
		out = append(out, c)
	}
	return out, nil
}

func writeInstructions(w io.Writer, instrs []Instruction) error {
	if err := writeU32(w, uint32(len(instrs))); err != nil {
		return err
	}
	for _, in := range instrs {
		if _, err := w.Write([]byte{byte(in.Op), byte(in.Op.OperandCount())}); err != nil {
			return err
		}
		if n := in.Op.OperandCount(); n >= 1 {
			if err := binary.Write(w, binary.LittleEndian, in.Operand); err != nil {
				return err
			}
		}
		if n := in.Op.OperandCount(); n >= 2 {
			if err := binary.Write(w, binary.LittleEndian, in.Operand2); err != nil {
				return err
			}
		}
	}
	return nil
}

func readInstructions(r io.Reader) ([]Instruction, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]Instruction, 0, n)
	for i := uint32(0); i < n; i++ {
		var hdr [2]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		in := Instruction{Op: Opcode(hdr[0])}
		if hdr[1] >= 1 {
			if err := binary.Read(r, binary.LittleEndian, &in.Operand); err != nil {
				return nil, err
			}
		}
		if hdr[1] >= 2 {
			if err := binary.Read(r, binary.LittleEndian, &in.Operand2); err != nil {
				return nil, err
			}
		}
		out = append(out, in)
	}
	return out, nil
}

// --- small helpers --------------------------------------------------------

func writeU32(w io.Writer, n uint32) error {
	return binary.Write(w, binary.LittleEndian, n)
}

func readU32(r io.Reader) (uint32, error) {
	var n uint32
	err := binary.Read(r, binary.LittleEndian, &n)
	return n, err
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func expectTag(r io.Reader, tag []byte) error {
	got := make([]byte, len(tag))
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("reading section tag: %w", err)
	}
	if !bytes.Equal(got, tag) {
		return fmt.Errorf("out-of-order or missing section: got tag %q, want %q", got, tag)
	}
	return nil
}
