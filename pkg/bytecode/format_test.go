package bytecode

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeDecodeSimpleCode round-trips a minimal module: push 42, return.
func TestEncodeDecodeSimpleCode(t *testing.T) {
	original := NewCode("main.dv")
	original.InternConstant(Const{Kind: ConstNumber, Num: 42})
	original.Instructions = []Instruction{
		{Op: OpPush, Operand: 0},
		{Op: OpReturn},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))
	assert.NotZero(t, buf.Len())

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	require.Equal(t, original.Instructions, decoded.Instructions)
	require.Len(t, decoded.Constants, 1)
	assert.Equal(t, 42.0, decoded.Constants[0].Num)
}

// TestEncodeDecodeAllConstantKinds exercises both valid constant-pool
// payload kinds named in spec.md §4.2 (only Number and String).
func TestEncodeDecodeAllConstantKinds(t *testing.T) {
	original := NewCode("main.dv")
	original.Constants = []Const{
		{Kind: ConstNumber, Num: 3.14},
		{Kind: ConstString, Str: "Hello, World!"},
	}
	original.Instructions = []Instruction{{Op: OpReturn}}

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded.Constants, 2)
	assert.Equal(t, 3.14, decoded.Constants[0].Num)
	assert.Equal(t, "Hello, World!", decoded.Constants[1].Str)
}

// TestEncodeDecodeAllOpcodes exercises every opcode group, including the
// two-operand exit_loop form.
func TestEncodeDecodeAllOpcodes(t *testing.T) {
	original := NewCode("main.dv")
	original.Instructions = []Instruction{
		{Op: OpPush, Operand: 0},
		{Op: OpPop},
		{Op: OpDup, Operand: 1},
		{Op: OpPushLocal, Operand: 2},
		{Op: OpStoreLocal, Operand: 3},
		{Op: OpPushGlobal, Operand: 4},
		{Op: OpStoreGlobal, Operand: 5},
		{Op: OpJmp, Operand: 10},
		{Op: OpJmpf, Operand: 20},
		{Op: OpCall, Operand: 2},
		{Op: OpCallMethod, Operand: 1},
		{Op: OpExitLoop, Operand: 30, Operand2: 2},
		{Op: OpNewMap, Operand: 3},
		{Op: OpNewVec, Operand: 5},
		{Op: OpNewClass, Operand: 4},
		{Op: OpNewInstance},
		{Op: OpForIter},
		{Op: OpForIterPair},
		{Op: OpImport, Operand: 0},
		{Op: OpReturn},
	}
	original.Globals = []string{"a", "b", "c", "d", "e"}

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, original.Instructions, decoded.Instructions)
}

// TestInvalidMagicBytes rejects a file with the wrong header.
func TestInvalidMagicBytes(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("XXXX1.0.0\x00\x00\x00\x00\x00\x00")
	_, err := Decode(&buf)
	assert.Error(t, err)
}

// TestUnsupportedVersion rejects a file with a mismatched version string.
func TestUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("deva2.0.0\x00\x00\x00\x00\x00\x00")
	_, err := Decode(&buf)
	assert.Error(t, err)
}

// TestMissingSectionTag rejects a file whose section order doesn't match.
func TestMissingSectionTag(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHeader(&buf))
	buf.WriteString(".bogus\x00\x00")
	_, err := Decode(&buf)
	assert.Error(t, err)
}

// TestEmptyCode round-trips a module with nothing in it but @main.
func TestEmptyCode(t *testing.T) {
	original := NewCode("main.dv")

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Empty(t, decoded.Instructions)
	assert.Empty(t, decoded.Constants)
}

// TestLargeOperands checks both large positive and negative operand
// values survive the round trip (jump targets and -1 back-patch
// sentinels in particular).
func TestLargeOperands(t *testing.T) {
	original := NewCode("main.dv")
	original.Instructions = []Instruction{
		{Op: OpJmp, Operand: 100000},
		{Op: OpJmp, Operand: -1},
		{Op: OpReturn},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(100000), decoded.Instructions[0].Operand)
	assert.Equal(t, int32(-1), decoded.Instructions[1].Operand)
}

// TestUnicodeStrings checks multi-byte UTF-8 constants round-trip intact.
func TestUnicodeStrings(t *testing.T) {
	original := NewCode("main.dv")
	original.Constants = []Const{
		{Kind: ConstString, Str: "Hello, 世界"},
		{Kind: ConstString, Str: "Привет, мир"},
		{Kind: ConstString, Str: "🎉🎊✨"},
	}
	original.Instructions = []Instruction{{Op: OpReturn}}

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	for i, c := range original.Constants {
		assert.Equal(t, c.Str, decoded.Constants[i].Str)
	}
}

// TestFunctionRoundTrip exercises the function-table record layout,
// including default-value descriptors and external names.
func TestFunctionRoundTrip(t *testing.T) {
	original := NewCode("main.dv")
	original.Functions = append(original.Functions, Function{
		Name:        "outer",
		File:        "main.dv",
		FirstLine:   5,
		NumParams:   2,
		Defaults: []DefaultValue{
			{},
			{HasDefault: true, IsNull: true},
		},
		NumLocals:   3,
		ExternNames: []string{"inner", "x"},
		StartOffset: 12,
		IsMethod:    false,
	})
	original.Instructions = []Instruction{{Op: OpReturn}}

	var buf bytes.Buffer
	require.NoError(t, Encode(original, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded.Functions, 2) // @main + outer
	fn := decoded.Functions[1]
	assert.Equal(t, "outer", fn.Name)
	assert.Equal(t, int32(5), fn.FirstLine)
	assert.Equal(t, int32(2), fn.NumParams)
	assert.True(t, fn.Defaults[1].HasDefault)
	assert.True(t, fn.Defaults[1].IsNull)
	assert.Equal(t, []string{"inner", "x"}, fn.ExternNames)
	assert.Equal(t, int32(12), fn.StartOffset)
}

// TestDecodeFileMmapRoundTrip exercises the mmap-backed reader used by
// the interpreter/compiler drivers for on-disk .dvc files.
func TestDecodeFileMmapRoundTrip(t *testing.T) {
	original := NewCode("main.dv")
	original.InternConstant(Const{Kind: ConstNumber, Num: 7})
	original.Instructions = []Instruction{{Op: OpPush, Operand: 0}, {Op: OpReturn}}

	path := t.TempDir() + "/main.dvc"
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Encode(original, f))
	require.NoError(t, f.Close())

	decoded, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, original.Instructions, decoded.Instructions)
	assert.Equal(t, 7.0, decoded.Constants[0].Num)
}
