package osomasm

import (
	"math"

	"github.com/RafalSzefler/osom-asm/internal/enc"
)

// Builder configures and constructs an Assembler. The zero value is ready
// to use; chain the With* methods and finish with Build.
type Builder struct {
	relaxEnabled     bool
	predefinedLabels map[Label]int32
}

// NewBuilder returns a Builder with relaxation enabled and no predefined
// labels.
func NewBuilder() *Builder {
	return &Builder{relaxEnabled: true}
}

// WithRelaxation toggles branch-length relaxation. Disabling it forces
// every relaxable jump to its long form, skipping the fixed-point pass
// entirely; this is mainly useful for deterministic golden-byte tests.
func (b *Builder) WithRelaxation(enabled bool) *Builder {
	b.relaxEnabled = enabled
	return b
}

// WithPredefinedLabels registers labels whose position is fixed outside
// this assembler's own byte stream (e.g. a symbol already placed in a
// larger buffer). Such labels must not also be defined via
// Assembler.SetPrivateLabel or Assembler.SetPublicLabel.
func (b *Builder) WithPredefinedLabels(labels map[Label]int32) *Builder {
	b.predefinedLabels = labels
	return b
}

// Build constructs a fresh Assembler ready to accept instructions.
func (b *Builder) Build() *Assembler {
	predefined := make(map[Label]int32, len(b.predefinedLabels))
	defined := make(map[Label]struct{}, len(b.predefinedLabels))
	for l, pos := range b.predefinedLabels {
		predefined[l] = pos
		defined[l] = struct{}{}
	}
	a := &Assembler{
		relaxEnabled:     b.relaxEnabled,
		predefinedLabels: predefined,
		labelDefined:     defined,
		publicLabels:     make(map[Label]struct{}),
	}
	a.openBytesFragment()
	return a
}

// Assembler accumulates a stream of instructions into a fragment arena,
// relaxes branch widths to a fixed point, resolves every label reference,
// and finally emits machine code to a caller-supplied sink.
type Assembler struct {
	fragments        []fragment
	labelDefined     map[Label]struct{}
	publicLabels     map[Label]struct{}
	predefinedLabels map[Label]int32
	pendingPatches   []PatchableImm32Instruction
	relaxEnabled     bool
	assembled        bool
	totalBytes       int64
}

// EmissionData describes the result of a successful Assemble call.
type EmissionData struct {
	EmittedBytes         int32
	PublicLabelPositions map[Label]int32
}

func (a *Assembler) currentFragment() *fragment {
	return &a.fragments[len(a.fragments)-1]
}

func (a *Assembler) openBytesFragment() {
	a.fragments = append(a.fragments, fragment{kind: fragBytes})
}

// maxArenaBytes bounds total emitted-byte volume to what fits a signed
// 32-bit offset, matching the reference implementation's i32 commitment
// that the relaxation and patching math's signed arithmetic relies on.
const maxArenaBytes = math.MaxInt32

// appendRawBytes appends to the tail fragment, which pushRelaxable and
// defineLabel always leave as an open Bytes fragment (even if empty), so
// Emit never needs a type switch before appending.
func (a *Assembler) appendRawBytes(b []byte) error {
	if a.totalBytes+int64(len(b)) > maxArenaBytes {
		return emitErr(ErrOutOfCapacity, "arena would exceed %d bytes", maxArenaBytes)
	}
	cur := a.currentFragment()
	cur.bytes = append(cur.bytes, b...)
	a.totalBytes += int64(len(b))
	return nil
}

func (a *Assembler) pushRelaxable(kind fragmentKind, target Label, cond Condition) FragmentOrderId {
	a.fragments = append(a.fragments, fragment{kind: kind, target: target, cond: cond})
	id := FragmentOrderId(len(a.fragments) - 1)
	a.openBytesFragment()
	return id
}

// SetPrivateLabel defines l at the current position without making its
// final address part of EmissionData.PublicLabelPositions.
func (a *Assembler) SetPrivateLabel(l Label) error {
	return a.defineLabel(l, false)
}

// SetPublicLabel defines l at the current position and records its final
// address in EmissionData.PublicLabelPositions.
func (a *Assembler) SetPublicLabel(l Label) error {
	return a.defineLabel(l, true)
}

func (a *Assembler) defineLabel(l Label, public bool) error {
	if a.assembled {
		return emitErr(ErrAlreadyAssembled, "assembler already consumed")
	}
	if _, ok := a.labelDefined[l]; ok {
		return emitErr(ErrLabelAlreadyDefined, "label %s already defined", l)
	}
	a.labelDefined[l] = struct{}{}
	a.fragments = append(a.fragments, fragment{kind: fragLabelMarker, target: l})
	a.openBytesFragment()
	if public {
		a.publicLabels[l] = struct{}{}
	}
	return nil
}

// Emit appends a single emitable value to the stream. value must be one of
// an Instruction, a []byte run of raw bytes, or a pre-encoded
// enc.EncodedInstruction; this mirrors the reference implementation's
// X86_64Emitable trait, which is implemented separately for byte-slice
// forms, the Instruction enum, and EncodedX86_64Instruction. Any other
// value type is an EmitError.
func (a *Assembler) Emit(value any) error {
	if a.assembled {
		return emitErr(ErrAlreadyAssembled, "assembler already consumed")
	}
	switch v := value.(type) {
	case Instruction:
		return a.emitInstruction(v)
	case []byte:
		return a.appendRawBytes(v)
	case enc.EncodedInstruction:
		return a.appendRawBytes(v.Bytes())
	default:
		return emitErr(ErrOperandSizeMismatch, "unsupported Emit value type %T", value)
	}
}

// emitInstruction dispatches a typed Instruction to the encoder and fragment
// arena; it is the typed-Instruction arm of Emit.
func (a *Assembler) emitInstruction(instr Instruction) error {
	switch instr.Kind {
	case DefinePrivateLabel:
		return a.SetPrivateLabel(instr.Label)
	case DefinePublicLabel:
		return a.SetPublicLabel(instr.Label)
	case JumpLabel:
		a.pushRelaxable(fragShortJump, instr.Label, 0)
		return nil
	case JccLabel:
		a.pushRelaxable(fragShortJcc, instr.Label, instr.Cond)
		return nil
	case CallLabel:
		// CALL to a label is never relaxed (x86-64 has no short CALL
		// form); it is always the 5-byte relative encoding, patched once
		// the target's position is known.
		return a.emitCallLabel(instr.Label)
	case Nop:
		return a.emitNop(instr.Imm32.Value())
	case RawBytes:
		return a.appendRawBytes(instr.Raw)
	}

	e, memLabel, err := a.encodeFixed(instr)
	if err != nil {
		return err
	}
	if memLabel != nil {
		cur := a.currentFragment()
		prefixLen := len(cur.bytes)
		bytes := e.Bytes()
		// The disp32 sits 4 bytes before the end of the instruction, minus
		// any trailing immediate: mem,imm forms encode the immediate after
		// the displacement, yet the RIP base is still the end of the whole
		// instruction, immediate included.
		suffix := immSuffixBytes(instr)
		if err := a.appendRawBytes(bytes); err != nil {
			return err
		}
		a.pendingPatches = append(a.pendingPatches, PatchableImm32Instruction{
			fragment:    FragmentOrderId(len(a.fragments) - 1),
			slotOffset:  prefixLen + len(bytes) - 4 - suffix,
			instrEnd:    prefixLen + len(bytes),
			targetLabel: *memLabel,
		})
		return nil
	}
	return a.appendRawBytes(e.Bytes())
}

// immSuffixBytes returns how many immediate bytes trail the disp32 slot in
// instr's encoding: the mem,imm instruction shapes place the immediate
// after the displacement, and a 64-bit destination still takes a
// sign-extended imm32.
func immSuffixBytes(instr Instruction) int {
	switch instr.Kind {
	case MovMemImm, AddMemImm, SubMemImm, XorMemImm, CmpMemImm:
		switch instr.Size {
		case Bit8:
			return 1
		case Bit16:
			return 2
		default:
			return 4
		}
	}
	return 0
}

// validateOperandSizes enforces the width agreement the encoder assumes:
// register pairs must match, immediates must fit their destination, and
// the 64-bit-only shapes must be given a 64-bit register.
func validateOperandSizes(instr Instruction) error {
	switch instr.Kind {
	case MovRegReg, AddRegReg, SubRegReg, XorRegReg, CmpRegReg:
		if instr.Reg1.Size() != instr.Reg2.Size() {
			return emitErr(ErrOperandSizeMismatch, "%d-bit and %d-bit register operands",
				sizeBits(instr.Reg1.Size()), sizeBits(instr.Reg2.Size()))
		}
	case MovRegImm, MovMemImm, AddRegImm, AddMemImm, SubRegImm, SubMemImm,
		XorRegImm, XorMemImm, CmpRegImm, CmpMemImm:
		if instr.Imm32.RealSize() > instr.Size {
			return emitErr(ErrOperandSizeMismatch, "immediate %d does not fit a %d-bit destination",
				instr.Imm32.Value(), sizeBits(instr.Size))
		}
	case MovRegImm64:
		if instr.Reg1.Size() != Bit64 {
			return emitErr(ErrOperandSizeMismatch, "64-bit immediate needs a 64-bit register")
		}
	case PushReg, PopReg, JumpReg, CallReg:
		if instr.Reg1.Size() != Bit64 {
			return emitErr(ErrOperandSizeMismatch, "operand must be a 64-bit register")
		}
	}
	return nil
}

func sizeBits(s Size) int {
	switch s {
	case Bit8:
		return 8
	case Bit16:
		return 16
	case Bit32:
		return 32
	default:
		return 64
	}
}

// encodeFixed encodes every non-relaxable instruction shape. It returns the
// label a RIP-relative memory operand referred to, if any, so Emit can
// record a pending patch.
func (a *Assembler) encodeFixed(instr Instruction) (enc.EncodedInstruction, *Label, error) {
	if err := validateOperandSizes(instr); err != nil {
		return enc.EncodedInstruction{}, nil, err
	}
	switch instr.Kind {
	case MovRegImm:
		return a.encodeMovRegImm(instr)
	case MovRegImm64:
		return enc.EncodeMovReg64Imm64(instr.Reg1.enc(), instr.Imm64.Value()), nil, nil
	case MovRegReg:
		return movRegRegBySize(instr.Reg1, instr.Reg2, instr.Size), nil, nil
	case MovRegMem:
		return a.withMemLabel(instr.Mem, movRegRMBySize(instr.Reg1, instr.Mem, instr.Size))
	case MovMemReg:
		return a.withMemLabel(instr.Mem, movRMRegBySize(instr.Mem, instr.Reg1, instr.Size))
	case MovMemImm:
		return a.withMemLabel(instr.Mem, movRmImmBySize(instr.Mem, instr.Imm32, instr.Size))

	case AddRegImm:
		return enc.EncodeAddRegImm(instr.Reg1.enc(), instr.Imm32.Value(), instr.Size), nil, nil
	case AddMemImm:
		return a.withMemLabel(instr.Mem, enc.EncodeAddMemImm(instr.Mem.rm(), instr.Imm32.Value(), instr.Size))
	case AddRegReg:
		return enc.EncodeAddRegReg(instr.Reg1.enc(), instr.Reg2.enc(), instr.Size), nil, nil
	case AddMemReg:
		return a.withMemLabel(instr.Mem, enc.EncodeAddMemReg(instr.Mem.rm(), instr.Reg1.enc(), instr.Size))
	case AddRegMem:
		return a.withMemLabel(instr.Mem, enc.EncodeAddRegMem(instr.Reg1.enc(), instr.Mem.rm(), instr.Size))

	case SubRegImm:
		return enc.EncodeSubRegImm(instr.Reg1.enc(), instr.Imm32.Value(), instr.Size), nil, nil
	case SubMemImm:
		return a.withMemLabel(instr.Mem, enc.EncodeSubMemImm(instr.Mem.rm(), instr.Imm32.Value(), instr.Size))
	case SubRegReg:
		return enc.EncodeSubRegReg(instr.Reg1.enc(), instr.Reg2.enc(), instr.Size), nil, nil
	case SubMemReg:
		return a.withMemLabel(instr.Mem, enc.EncodeSubMemReg(instr.Mem.rm(), instr.Reg1.enc(), instr.Size))
	case SubRegMem:
		return a.withMemLabel(instr.Mem, enc.EncodeSubRegMem(instr.Reg1.enc(), instr.Mem.rm(), instr.Size))

	case XorRegImm:
		return enc.EncodeXorRegImm(instr.Reg1.enc(), instr.Imm32.Value(), instr.Size), nil, nil
	case XorMemImm:
		return a.withMemLabel(instr.Mem, enc.EncodeXorMemImm(instr.Mem.rm(), instr.Imm32.Value(), instr.Size))
	case XorRegReg:
		return enc.EncodeXorRegReg(instr.Reg1.enc(), instr.Reg2.enc(), instr.Size), nil, nil
	case XorMemReg:
		return a.withMemLabel(instr.Mem, enc.EncodeXorMemReg(instr.Mem.rm(), instr.Reg1.enc(), instr.Size))
	case XorRegMem:
		return a.withMemLabel(instr.Mem, enc.EncodeXorRegMem(instr.Reg1.enc(), instr.Mem.rm(), instr.Size))

	case CmpRegImm:
		return enc.EncodeCmpRegImm(instr.Reg1.enc(), instr.Imm32.Value(), instr.Size), nil, nil
	case CmpMemImm:
		return a.withMemLabel(instr.Mem, enc.EncodeCmpMemImm(instr.Mem.rm(), instr.Imm32.Value(), instr.Size))
	case CmpRegReg:
		return enc.EncodeCmpRegReg(instr.Reg1.enc(), instr.Reg2.enc(), instr.Size), nil, nil
	case CmpMemReg:
		return a.withMemLabel(instr.Mem, enc.EncodeCmpMemReg(instr.Mem.rm(), instr.Reg1.enc(), instr.Size))
	case CmpRegMem:
		return a.withMemLabel(instr.Mem, enc.EncodeCmpRegMem(instr.Reg1.enc(), instr.Mem.rm(), instr.Size))

	case JumpReg:
		return enc.EncodeJmpRm64(gprRM(instr.Reg1)), nil, nil
	case JumpMem:
		return a.withMemLabel(instr.Mem, enc.EncodeJmpRm64(instr.Mem.rm()))
	case CallReg:
		return enc.EncodeCallRm64(gprRM(instr.Reg1)), nil, nil
	case CallMem:
		return a.withMemLabel(instr.Mem, enc.EncodeCallRm64(instr.Mem.rm()))

	case PushReg:
		return enc.EncodePushReg64(instr.Reg1.enc()), nil, nil
	case PushMem:
		return a.withMemLabel(instr.Mem, enc.EncodePushRm64(instr.Mem.rm()))
	case PushImm:
		return encodePushImmBySize(instr.Imm32), nil, nil
	case PopReg:
		return enc.EncodePopReg64(instr.Reg1.enc()), nil, nil
	case PopMem:
		return a.withMemLabel(instr.Mem, enc.EncodePopRm64(instr.Mem.rm()))

	case Ret:
		return enc.EncodeRet(), nil, nil
	case Cpuid:
		return enc.EncodeCpuid(), nil, nil

	default:
		return enc.EncodedInstruction{}, nil, emitErr(ErrInternalInconsistency, "unhandled instruction kind %d", instr.Kind)
	}
}

// withMemLabel threads through a RIP-relative label reference, if mem
// addresses one, alongside the already-encoded instruction.
func (a *Assembler) withMemLabel(mem Memory, e enc.EncodedInstruction) (enc.EncodedInstruction, *Label, error) {
	return e, mem.labelRef(), nil
}

func (a *Assembler) encodeMovRegImm(instr Instruction) (enc.EncodedInstruction, *Label, error) {
	r := instr.Reg1.enc()
	switch instr.Size {
	case Bit8:
		return enc.EncodeMovReg8Imm8(r, int8(instr.Imm32.Value())), nil, nil
	case Bit16:
		return enc.EncodeMovReg16Imm16(r, int16(instr.Imm32.Value())), nil, nil
	case Bit32:
		return enc.EncodeMovReg32Imm32(r, instr.Imm32.Value()), nil, nil
	case Bit64:
		return enc.EncodeMovRm64Imm32(gprRM(instr.Reg1), instr.Imm32.Value()), nil, nil
	default:
		return enc.EncodedInstruction{}, nil, emitErr(ErrOperandSizeMismatch, "invalid size for mov reg,imm")
	}
}

func movRegRMBySize(dst GPR, src Memory, size Size) enc.EncodedInstruction {
	switch size {
	case Bit8:
		return enc.EncodeMovReg8Rm8(dst.enc(), src.rm())
	case Bit16:
		return enc.EncodeMovReg16Rm16(dst.enc(), src.rm())
	case Bit32:
		return enc.EncodeMovReg32Rm32(dst.enc(), src.rm())
	default:
		return enc.EncodeMovReg64Rm64(dst.enc(), src.rm())
	}
}

// movRegRegBySize encodes register-to-register moves through the 88/89
// "r/m <- reg" opcode family, the same form nasm and gas pick for
// mov reg, reg.
func movRegRegBySize(dst, src GPR, size Size) enc.EncodedInstruction {
	switch size {
	case Bit8:
		return enc.EncodeMovRm8Reg8(gprRM(dst), src.enc())
	case Bit16:
		return enc.EncodeMovRm16Reg16(gprRM(dst), src.enc())
	case Bit32:
		return enc.EncodeMovRm32Reg32(gprRM(dst), src.enc())
	default:
		return enc.EncodeMovRm64Reg64(gprRM(dst), src.enc())
	}
}

func movRMRegBySize(dst Memory, src GPR, size Size) enc.EncodedInstruction {
	switch size {
	case Bit8:
		return enc.EncodeMovRm8Reg8(dst.rm(), src.enc())
	case Bit16:
		return enc.EncodeMovRm16Reg16(dst.rm(), src.enc())
	case Bit32:
		return enc.EncodeMovRm32Reg32(dst.rm(), src.enc())
	default:
		return enc.EncodeMovRm64Reg64(dst.rm(), src.enc())
	}
}

func movRmImmBySize(dst Memory, imm Immediate32, size Size) enc.EncodedInstruction {
	switch size {
	case Bit8:
		return enc.EncodeMovRm8Imm8(dst.rm(), int8(imm.Value()))
	case Bit16:
		return enc.EncodeMovRm16Imm16(dst.rm(), int16(imm.Value()))
	case Bit32:
		return enc.EncodeMovRm32Imm32(dst.rm(), imm.Value())
	default:
		return enc.EncodeMovRm64Imm32(dst.rm(), imm.Value())
	}
}

func encodePushImmBySize(imm Immediate32) enc.EncodedInstruction {
	switch imm.RealSize() {
	case Bit8:
		return enc.EncodePushImm8(int8(imm.Value()))
	case Bit16:
		return enc.EncodePushImm16(int16(imm.Value()))
	default:
		return enc.EncodePushImm32(imm.Value())
	}
}

// emitNop appends a run of length bytes of NOP padding. A length beyond the
// encoder's widest single NOP is satisfied by consecutive maximal-width
// NOPs followed by one shorter remainder, matching the reference
// implementation's own emit_nop_with_length.
func (a *Assembler) emitNop(length int32) error {
	if length < 0 {
		return emitErr(ErrOperandSizeMismatch, "nop length %d out of range", length)
	}
	for length > 0 {
		chunk := length
		if chunk > enc.MaxSingleNopLen {
			chunk = enc.MaxSingleNopLen
		}
		e := enc.EncodeNopWithLength(uint8(chunk))
		if err := a.appendRawBytes(e.Bytes()); err != nil {
			return err
		}
		length -= chunk
	}
	return nil
}

func (a *Assembler) emitCallLabel(l Label) error {
	e := enc.EncodeCallImm32(0)
	cur := a.currentFragment()
	prefixLen := len(cur.bytes)
	slotOffset := prefixLen + e.Len() - 4
	if err := a.appendRawBytes(e.Bytes()); err != nil {
		return err
	}
	a.pendingPatches = append(a.pendingPatches, PatchableImm32Instruction{
		fragment:    FragmentOrderId(len(a.fragments) - 1),
		slotOffset:  slotOffset,
		instrEnd:    slotOffset + 4,
		targetLabel: l,
	})
	return nil
}
