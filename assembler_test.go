package osomasm

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/RafalSzefler/osom-asm/internal/enc"
	"github.com/stretchr/testify/require"
)

// assembleBytes is a small helper shared by the boundary-scenario tests
// below: build, emit, assemble into a plain bytes.Buffer, and hand back
// both the emitted bytes and the EmissionData.
func assembleBytes(t *testing.T, relax bool, instrs ...Instruction) ([]byte, EmissionData) {
	t.Helper()
	a := NewBuilder().WithRelaxation(relax).Build()
	for _, in := range instrs {
		require.NoError(t, a.Emit(in))
	}
	var buf bytes.Buffer
	data, err := a.Assemble(&buf)
	require.NoError(t, err)
	return buf.Bytes(), data
}

// Scenario 1: minimal return-zero, relaxation off.
func TestBoundaryMinimalReturnZero(t *testing.T) {
	out, data := assembleBytes(t, false,
		MovImm(RAX, Imm32(0)),
		RetOp(),
	)
	require.Equal(t, []byte{0x48, 0xC7, 0xC0, 0x00, 0x00, 0x00, 0x00, 0xC3}, out)
	require.Equal(t, int32(8), data.EmittedBytes)
}

// Scenario 2: backward short jmp via relaxation.
func TestBoundaryBackwardShortJump(t *testing.T) {
	L := NewLabel()
	out, _ := assembleBytes(t, true,
		DefinePrivate(L),
		XorReg(RAX, RAX),
		JumpTo(L),
		RetOp(),
	)
	require.Equal(t, []byte{0x48, 0x31, 0xC0, 0xEB, 0xFB, 0xC3}, out)

	outNoRelax, _ := assembleBytes(t, false,
		DefinePrivate(L),
		XorReg(RAX, RAX),
		JumpTo(L),
		RetOp(),
	)
	require.Equal(t, []byte{0x48, 0x31, 0xC0, 0xE9, 0xF8, 0xFF, 0xFF, 0xFF, 0xC3}, outNoRelax)
}

// Scenario 3: forward short cond-jmp.
func TestBoundaryForwardShortCondJump(t *testing.T) {
	L := NewLabel()
	out, _ := assembleBytes(t, true,
		JumpIf(Above, L),
		XorReg(RAX, RAX),
		DefinePrivate(L),
		RetOp(),
	)
	require.Equal(t, []byte{0x77, 0x03, 0x48, 0x31, 0xC0, 0xC3}, out)

	outNoRelax, _ := assembleBytes(t, false,
		JumpIf(Above, L),
		XorReg(RAX, RAX),
		DefinePrivate(L),
		RetOp(),
	)
	require.Equal(t, []byte{0x0F, 0x87, 0x03, 0x00, 0x00, 0x00, 0x48, 0x31, 0xC0, 0xC3}, outNoRelax)
}

// Scenario 4: RIP-relative load of a literal defined earlier in the stream.
func TestBoundaryBackwardRIPRelativeLoad(t *testing.T) {
	L := NewLabel()
	out, _ := assembleBytes(t, true,
		DefinePrivate(L),
		XorReg(RAX, RAX),
		MovRegFromMem(RDX, MemLabel(L)),
		RetOp(),
	)
	require.Equal(t, []byte{0x48, 0x31, 0xC0, 0x48, 0x8B, 0x15, 0xF6, 0xFF, 0xFF, 0xFF, 0xC3}, out)
}

// Scenario 5: forward RIP-relative load, with a label defined after the
// referencing instruction and raw bytes trailing the stream.
func TestBoundaryForwardRIPRelativeLoad(t *testing.T) {
	L := NewLabel()
	out, _ := assembleBytes(t, true,
		MovRegFromMem(RDX, MemLabel(L)),
		RetOp(),
		DefinePrivate(L),
		MovImm(RAX, Imm32(1)),
		EmitRaw([]byte{0x01, 0x02, 0x03}),
	)
	require.Equal(t, []byte{
		0x48, 0x8B, 0x15, 0x01, 0x00, 0x00, 0x00,
		0xC3,
		0x48, 0xC7, 0xC0, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x02, 0x03,
	}, out)
}

// Scenario 6: predefined label resolved outside the assembled stream.
func TestBoundaryPredefinedLabel(t *testing.T) {
	L := NewLabel()
	a := NewBuilder().
		WithRelaxation(true).
		WithPredefinedLabels(map[Label]int32{L: -15}).
		Build()
	require.NoError(t, a.Emit(JumpTo(L)))
	require.NoError(t, a.Emit(RetOp()))

	var buf bytes.Buffer
	_, err := a.Assemble(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0xEB, 0xEF, 0xC3}, buf.Bytes())
}

// Scenario 7: a public label's reported position matches the byte offset
// of the instruction that follows its definition.
func TestBoundaryPublicLabelEntryPoint(t *testing.T) {
	inner := NewLabel()
	entry := NewLabel()

	a := NewBuilder().Build()
	require.NoError(t, a.Emit(DefinePrivate(inner)))
	require.NoError(t, a.Emit(XorReg(RAX, RAX)))
	require.NoError(t, a.Emit(RetOp()))
	require.NoError(t, a.Emit(DefinePublic(entry)))
	require.NoError(t, a.Emit(CallTo(inner)))
	require.NoError(t, a.Emit(RetOp()))

	var buf bytes.Buffer
	data, err := a.Assemble(&buf)
	require.NoError(t, err)

	out := buf.Bytes()
	pos, ok := data.PublicLabelPositions[entry]
	require.True(t, ok)
	require.Equal(t, int32(4), pos) // after "48 31 C0 C3"

	// The five bytes at pos are the CALL rel32 instruction.
	require.Equal(t, byte(0xE8), out[pos])
}

func TestEmitLabelAlreadyDefinedFails(t *testing.T) {
	L := NewLabel()
	a := NewBuilder().Build()
	require.NoError(t, a.SetPrivateLabel(L))
	err := a.SetPrivateLabel(L)
	require.Error(t, err)
	var emitErr *EmitError
	require.True(t, errors.As(err, &emitErr))
	require.Equal(t, ErrLabelAlreadyDefined, emitErr.Kind)
}

func TestAssembleLabelNeverDefinedFails(t *testing.T) {
	L := NewLabel()
	a := NewBuilder().Build()
	require.NoError(t, a.Emit(JumpTo(L)))

	var buf bytes.Buffer
	_, err := a.Assemble(&buf)
	require.Error(t, err)
	var assembleErr *AssembleError
	require.True(t, errors.As(err, &assembleErr))
	require.Equal(t, ErrLabelNotSet, assembleErr.Kind)
}

func TestAssembleTwiceFails(t *testing.T) {
	a := NewBuilder().Build()
	require.NoError(t, a.Emit(RetOp()))

	var buf bytes.Buffer
	_, err := a.Assemble(&buf)
	require.NoError(t, err)

	_, err = a.Assemble(&buf)
	require.Error(t, err)
	var assembleErr *AssembleError
	require.True(t, errors.As(err, &assembleErr))
	require.Equal(t, ErrAlreadyAssembled, assembleErr.Kind)

	err = a.Emit(RetOp())
	require.Error(t, err)
}

// Invariant 6: emitting the same sequence twice into two fresh assemblers
// produces byte-identical output.
func TestDeterministicAcrossFreshAssemblers(t *testing.T) {
	build := func() []byte {
		L := NewLabel()
		out, _ := assembleBytes(t, true,
			JumpIf(Equal, L),
			AddImm(RCX, Imm32(10)),
			DefinePrivate(L),
			RetOp(),
		)
		return out
	}
	require.Equal(t, build(), build())
}

// Round-trip: NopOfLength(n) always produces exactly n bytes, for a range
// of n spanning several multiples of the encoder's widest single NOP.
func TestNopProducesExactLength(t *testing.T) {
	for _, n := range []int{1, 2, 3, 9, 10, 17, 18, 25, 100} {
		out, _ := assembleBytes(t, true, NopOfLength(n))
		require.Len(t, out, n, "n=%d", n)
	}
}

// A long-distance forward jump must promote to the long encoding instead
// of producing an out-of-range short displacement.
func TestRelaxationPromotesLongDistanceJump(t *testing.T) {
	// Measure one filler instruction's encoded width in isolation, so the
	// expected total length below doesn't hardcode encoder internals.
	fillerOut, _ := assembleBytes(t, true, AddImm(RCX, Imm32(10)))
	fillerLen := len(fillerOut)

	L := NewLabel()
	instrs := []Instruction{JumpTo(L)}
	const fillerCount = 100
	for i := 0; i < fillerCount; i++ {
		instrs = append(instrs, AddImm(RCX, Imm32(10)))
	}
	instrs = append(instrs, DefinePrivate(L), RetOp())

	out, _ := assembleBytes(t, true, instrs...)
	require.Equal(t, byte(0xE9), out[0], "expected long jmp opcode E9")
	require.Len(t, out, 5+fillerCount*fillerLen+1)
	require.Equal(t, byte(0xC3), out[len(out)-1])
}

// A RIP-relative reference to a predefined label so far back that the
// displacement would not fit an imm32 must fail with
// ErrDisplacementOutOfRange, not silently wrap.
func TestDisplacementOutOfRangeFails(t *testing.T) {
	L := NewLabel()
	a := NewBuilder().
		WithPredefinedLabels(map[Label]int32{L: math.MinInt32}).
		Build()
	require.NoError(t, a.Emit(MovRegFromMem(RDX, MemLabel(L))))
	require.NoError(t, a.Emit(RetOp()))

	var buf bytes.Buffer
	_, err := a.Assemble(&buf)
	require.Error(t, err)
	var assembleErr *AssembleError
	require.True(t, errors.As(err, &assembleErr))
	require.Equal(t, ErrDisplacementOutOfRange, assembleErr.Kind)
}

func TestEmitRawBytesVerbatim(t *testing.T) {
	out, data := assembleBytes(t, true, EmitRaw([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, out)
	require.Equal(t, int32(4), data.EmittedBytes)
}

// Emit accepts a plain []byte directly, not just wrapped in EmitRaw.
func TestEmitAcceptsRawByteSlice(t *testing.T) {
	a := NewBuilder().Build()
	require.NoError(t, a.Emit([]byte{0xDE, 0xAD, 0xBE, 0xEF}))

	var buf bytes.Buffer
	_, err := a.Assemble(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, buf.Bytes())
}

// Emit also accepts a pre-encoded enc.EncodedInstruction directly, the third
// arm of the reference implementation's X86_64Emitable trait.
func TestEmitAcceptsPreEncodedInstruction(t *testing.T) {
	a := NewBuilder().Build()
	require.NoError(t, a.Emit(enc.EncodeXorRegReg(enc.RAX, enc.RAX, enc.SizeBit64)))
	require.NoError(t, a.Emit(enc.EncodeRet()))

	var buf bytes.Buffer
	_, err := a.Assemble(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0x31, 0xC0, 0xC3}, buf.Bytes())
}

func TestEmitRejectsUnsupportedValueType(t *testing.T) {
	a := NewBuilder().Build()
	err := a.Emit("not an emitable value")
	require.Error(t, err)
	var emitErr *EmitError
	require.True(t, errors.As(err, &emitErr))
	require.Equal(t, ErrOperandSizeMismatch, emitErr.Kind)
}

// A mem,imm instruction with a RIP-relative label destination places its
// immediate after the disp32 slot; the patch must land on the disp32, and
// the displacement must still be measured from the end of the whole
// instruction, immediate included.
func TestPatchSkipsTrailingImmediate(t *testing.T) {
	L := NewLabel()
	out, _ := assembleBytes(t, true,
		DefinePrivate(L),
		MovMemFromImm(MemLabel(L), Imm32(0x55), Bit32),
		RetOp(),
	)
	require.Equal(t, []byte{
		0xC7, 0x05, 0xF6, 0xFF, 0xFF, 0xFF, 0x55, 0x00, 0x00, 0x00,
		0xC3,
	}, out)

	L2 := NewLabel()
	out, _ = assembleBytes(t, true,
		DefinePrivate(L2),
		AddImmToMem(MemLabel(L2), Imm32(1), Bit8),
		RetOp(),
	)
	require.Equal(t, []byte{
		0x80, 0x05, 0xF9, 0xFF, 0xFF, 0xFF, 0x01,
		0xC3,
	}, out)
}

// Promoting one jump can push a second, previously in-range jump out of
// range; the fixed-point loop must pick that up on a later iteration.
// Here the forward jump promotes first, which shifts the backward jump
// past the short form's reach.
func TestRelaxationCascadePromotion(t *testing.T) {
	L0 := NewLabel()
	LX := NewLabel()
	out, _ := assembleBytes(t, true,
		DefinePrivate(L0),
		NopOfLength(120),
		JumpTo(LX),
		JumpTo(L0),
		NopOfLength(130),
		DefinePrivate(LX),
		RetOp(),
	)
	require.Len(t, out, 261)
	require.Equal(t, []byte{0xE9, 0x87, 0x00, 0x00, 0x00}, out[120:125])
	require.Equal(t, []byte{0xE9, 0x7E, 0xFF, 0xFF, 0xFF}, out[125:130])
	require.Equal(t, byte(0xC3), out[260])
}

// Displacements just inside the relaxation margin keep the short form;
// two bytes further and the jump promotes.
func TestRelaxationMarginBoundary(t *testing.T) {
	L := NewLabel()
	out, _ := assembleBytes(t, true,
		DefinePrivate(L),
		NopOfLength(122),
		JumpTo(L),
	)
	require.Len(t, out, 124)
	require.Equal(t, []byte{0xEB, 0x84}, out[122:124])

	L2 := NewLabel()
	out, _ = assembleBytes(t, true,
		DefinePrivate(L2),
		NopOfLength(124),
		JumpTo(L2),
	)
	require.Len(t, out, 129)
	require.Equal(t, []byte{0xE9, 0x7F, 0xFF, 0xFF, 0xFF}, out[124:129])
}

// Predefined labels occupy the same namespace as emitted definitions.
func TestPredefinedLabelCannotBeRedefined(t *testing.T) {
	L := NewLabel()
	a := NewBuilder().WithPredefinedLabels(map[Label]int32{L: 16}).Build()
	err := a.SetPrivateLabel(L)
	require.Error(t, err)
	var emitErr *EmitError
	require.True(t, errors.As(err, &emitErr))
	require.Equal(t, ErrLabelAlreadyDefined, emitErr.Kind)
}

func TestMovRegRegEmission(t *testing.T) {
	out, _ := assembleBytes(t, true,
		MovReg(RAX, RCX),
		MovReg(EDX, EBX),
		RetOp(),
	)
	require.Equal(t, []byte{0x48, 0x89, 0xC8, 0x89, 0xDA, 0xC3}, out)
}

func TestMovImm64FullWidth(t *testing.T) {
	out, _ := assembleBytes(t, true,
		MovImm64(RCX, Imm64(0x0102030405060708)),
		RetOp(),
	)
	require.Equal(t, []byte{
		0x48, 0xB9, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0xC3,
	}, out)
}

// Operand widths are validated before encoding: mismatched register
// pairs, immediates wider than their destination, and non-64-bit
// registers in the 64-bit-only shapes are rejected rather than silently
// encoded at the wrong width.
func TestOperandSizeMismatchRejected(t *testing.T) {
	for _, tc := range []struct {
		name  string
		instr Instruction
	}{
		{"add reg widths differ", AddReg(RAX, AL)},
		{"mov reg widths differ", MovReg(EAX, CX)},
		{"xor reg widths differ", XorReg(RBX, EBX)},
		{"cmp reg widths differ", CmpReg(DX, R8)},
		{"imm wider than reg8", MovImm(AL, Imm32(1000))},
		{"imm wider than reg16", AddImm(CX, Imm32(1<<20))},
		{"imm wider than mem8", MovMemFromImm(Based(RAX, 0), Imm32(300), Bit8)},
		{"push non-64-bit reg", Push(EAX)},
		{"pop non-64-bit reg", Pop(AX)},
		{"imm64 into 32-bit reg", MovImm64(EAX, Imm64(1))},
		{"indirect jump via 16-bit reg", JumpToReg(DX)},
		{"indirect call via 32-bit reg", CallToReg(ECX)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := NewBuilder().Build()
			err := a.Emit(tc.instr)
			require.Error(t, err)
			var emitErr *EmitError
			require.True(t, errors.As(err, &emitErr))
			require.Equal(t, ErrOperandSizeMismatch, emitErr.Kind)
		})
	}
}

// A rejected instruction must leave the stream untouched; whatever was
// emitted before it still assembles cleanly.
func TestOperandSizeMismatchLeavesStreamIntact(t *testing.T) {
	a := NewBuilder().Build()
	require.NoError(t, a.Emit(XorReg(RAX, RAX)))
	require.Error(t, a.Emit(AddReg(RAX, AL)))
	require.NoError(t, a.Emit(RetOp()))

	var buf bytes.Buffer
	data, err := a.Assemble(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0x31, 0xC0, 0xC3}, buf.Bytes())
	require.Equal(t, int32(4), data.EmittedBytes)
}

func TestNewLabelsAreUnique(t *testing.T) {
	a, b := NewLabel(), NewLabel()
	require.NotEqual(t, a, b)
}

// Running relaxation again on an already-relaxed fragment stream changes
// nothing.
func TestRelaxationIdempotent(t *testing.T) {
	L := NewLabel()
	a := NewBuilder().Build()
	require.NoError(t, a.Emit(JumpTo(L)))
	require.NoError(t, a.Emit(NopOfLength(200)))
	require.NoError(t, a.SetPrivateLabel(L))
	require.NoError(t, a.Emit(RetOp()))

	require.NoError(t, a.relax())
	kinds := make([]fragmentKind, len(a.fragments))
	for i := range a.fragments {
		kinds[i] = a.fragments[i].kind
	}

	require.NoError(t, a.relax())
	for i := range a.fragments {
		require.Equal(t, kinds[i], a.fragments[i].kind)
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestAssembleSinkErrorWraps(t *testing.T) {
	a := NewBuilder().Build()
	require.NoError(t, a.Emit(RetOp()))

	sinkErr := errors.New("disk full")
	_, err := a.Assemble(failingWriter{err: sinkErr})
	require.Error(t, err)
	var assembleErr *AssembleError
	require.True(t, errors.As(err, &assembleErr))
	require.Equal(t, ErrIOError, assembleErr.Kind)
	require.ErrorIs(t, err, sinkErr)
}

func TestPushPopEmission(t *testing.T) {
	out, _ := assembleBytes(t, true,
		Push(RAX),
		PushImmOp(Imm32(5)),
		Pop(RCX),
		RetOp(),
	)
	require.Equal(t, []byte{0x50, 0x6A, 0x05, 0x59, 0xC3}, out)
}

// Indirect calls and jumps go through the encoder directly; an indirect
// branch through a RIP-relative label slot is patched like any other
// label-referencing memory operand.
func TestIndirectBranches(t *testing.T) {
	out, _ := assembleBytes(t, true,
		CallToReg(RAX),
		JumpToReg(RAX),
	)
	require.Equal(t, []byte{0xFF, 0xD0, 0xFF, 0xE0}, out)

	L := NewLabel()
	out, _ = assembleBytes(t, true,
		DefinePrivate(L),
		JumpToMem(MemLabel(L)),
	)
	require.Equal(t, []byte{0xFF, 0x25, 0xFA, 0xFF, 0xFF, 0xFF}, out)
}
