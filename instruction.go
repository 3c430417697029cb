package osomasm

// Kind identifies which instruction an Instruction value represents, and
// therefore which of its operand fields are meaningful. This mirrors the
// reference implementation's Instruction enum, but follows wazero's own
// internal/asm/amd64 Node design in collapsing the many shapes into one
// struct keyed by an opcode tag, rather than one Go type per variant.
type Kind uint16

const (
	MovRegImm Kind = iota
	MovRegImm64
	MovRegReg
	MovRegMem
	MovMemReg
	MovMemImm

	AddRegImm
	AddMemImm
	AddRegReg
	AddMemReg
	AddRegMem

	SubRegImm
	SubMemImm
	SubRegReg
	SubMemReg
	SubRegMem

	XorRegImm
	XorMemImm
	XorRegReg
	XorMemReg
	XorRegMem

	CmpRegImm
	CmpMemImm
	CmpRegReg
	CmpMemReg
	CmpRegMem

	JumpLabel
	JumpReg
	JumpMem
	JccLabel

	CallLabel
	CallReg
	CallMem

	PushReg
	PushMem
	PushImm
	PopReg
	PopMem

	Ret
	Cpuid
	Nop

	DefinePrivateLabel
	DefinePublicLabel

	RawBytes
)

// Instruction is a single pseudo-instruction accepted by Assembler.Emit.
// Only the fields relevant to Kind are meaningful; the rest are zero.
// Construct values with the Mov/Add/Sub/.../Ret helper functions below
// rather than building an Instruction literal directly.
type Instruction struct {
	Kind Kind

	Reg1 GPR
	Reg2 GPR
	Mem  Memory

	Imm32 Immediate32
	Imm64 Immediate64

	Size Size
	Cond Condition

	Label Label
	Raw   []byte
}

func MovImm(dst GPR, imm Immediate32) Instruction {
	return Instruction{Kind: MovRegImm, Reg1: dst, Imm32: imm, Size: dst.Size()}
}

func MovImm64(dst GPR, imm Immediate64) Instruction {
	return Instruction{Kind: MovRegImm64, Reg1: dst, Imm64: imm, Size: dst.Size()}
}

func MovReg(dst, src GPR) Instruction {
	return Instruction{Kind: MovRegReg, Reg1: dst, Reg2: src, Size: dst.Size()}
}

func MovRegFromMem(dst GPR, src Memory) Instruction {
	return Instruction{Kind: MovRegMem, Reg1: dst, Mem: src, Size: dst.Size()}
}

func MovMemFromReg(dst Memory, src GPR) Instruction {
	return Instruction{Kind: MovMemReg, Mem: dst, Reg1: src, Size: src.Size()}
}

func MovMemFromImm(dst Memory, imm Immediate32, size Size) Instruction {
	return Instruction{Kind: MovMemImm, Mem: dst, Imm32: imm, Size: size}
}

func group1Imm(kind Kind, dst GPR, imm Immediate32) Instruction {
	return Instruction{Kind: kind, Reg1: dst, Imm32: imm, Size: dst.Size()}
}

func group1MemImm(kind Kind, dst Memory, imm Immediate32, size Size) Instruction {
	return Instruction{Kind: kind, Mem: dst, Imm32: imm, Size: size}
}

func group1RegReg(kind Kind, dst, src GPR) Instruction {
	return Instruction{Kind: kind, Reg1: dst, Reg2: src, Size: dst.Size()}
}

func group1MemReg(kind Kind, dst Memory, src GPR) Instruction {
	return Instruction{Kind: kind, Mem: dst, Reg1: src, Size: src.Size()}
}

func group1RegMem(kind Kind, dst GPR, src Memory) Instruction {
	return Instruction{Kind: kind, Reg1: dst, Mem: src, Size: dst.Size()}
}

func AddImm(dst GPR, imm Immediate32) Instruction                 { return group1Imm(AddRegImm, dst, imm) }
func AddImmToMem(dst Memory, imm Immediate32, s Size) Instruction { return group1MemImm(AddMemImm, dst, imm, s) }
func AddReg(dst, src GPR) Instruction                             { return group1RegReg(AddRegReg, dst, src) }
func AddRegToMem(dst Memory, src GPR) Instruction                 { return group1MemReg(AddMemReg, dst, src) }
func AddMemToReg(dst GPR, src Memory) Instruction                 { return group1RegMem(AddRegMem, dst, src) }

func SubImm(dst GPR, imm Immediate32) Instruction                 { return group1Imm(SubRegImm, dst, imm) }
func SubImmToMem(dst Memory, imm Immediate32, s Size) Instruction { return group1MemImm(SubMemImm, dst, imm, s) }
func SubReg(dst, src GPR) Instruction                             { return group1RegReg(SubRegReg, dst, src) }
func SubRegToMem(dst Memory, src GPR) Instruction                 { return group1MemReg(SubMemReg, dst, src) }
func SubMemToReg(dst GPR, src Memory) Instruction                 { return group1RegMem(SubRegMem, dst, src) }

func XorImm(dst GPR, imm Immediate32) Instruction                 { return group1Imm(XorRegImm, dst, imm) }
func XorImmToMem(dst Memory, imm Immediate32, s Size) Instruction { return group1MemImm(XorMemImm, dst, imm, s) }
func XorReg(dst, src GPR) Instruction                             { return group1RegReg(XorRegReg, dst, src) }
func XorRegToMem(dst Memory, src GPR) Instruction                 { return group1MemReg(XorMemReg, dst, src) }
func XorMemToReg(dst GPR, src Memory) Instruction                 { return group1RegMem(XorRegMem, dst, src) }

func CmpImm(dst GPR, imm Immediate32) Instruction                 { return group1Imm(CmpRegImm, dst, imm) }
func CmpImmToMem(dst Memory, imm Immediate32, s Size) Instruction { return group1MemImm(CmpMemImm, dst, imm, s) }
func CmpReg(dst, src GPR) Instruction                             { return group1RegReg(CmpRegReg, dst, src) }
func CmpRegToMem(dst Memory, src GPR) Instruction                 { return group1MemReg(CmpMemReg, dst, src) }
func CmpMemToReg(dst GPR, src Memory) Instruction                 { return group1RegMem(CmpRegMem, dst, src) }

// JumpTo emits an unconditional jump to a label; the assembler core picks
// the short or long encoding during relaxation.
func JumpTo(l Label) Instruction { return Instruction{Kind: JumpLabel, Label: l} }

func JumpToReg(target GPR) Instruction    { return Instruction{Kind: JumpReg, Reg1: target} }
func JumpToMem(target Memory) Instruction { return Instruction{Kind: JumpMem, Mem: target} }

// JumpIf emits a conditional jump to a label under cond.
func JumpIf(cond Condition, l Label) Instruction {
	return Instruction{Kind: JccLabel, Cond: cond, Label: l}
}

func CallTo(l Label) Instruction          { return Instruction{Kind: CallLabel, Label: l} }
func CallToReg(target GPR) Instruction    { return Instruction{Kind: CallReg, Reg1: target} }
func CallToMem(target Memory) Instruction { return Instruction{Kind: CallMem, Mem: target} }

func Push(src GPR) Instruction         { return Instruction{Kind: PushReg, Reg1: src} }
func PushMemOp(src Memory) Instruction { return Instruction{Kind: PushMem, Mem: src} }
func PushImmOp(imm Immediate32) Instruction {
	return Instruction{Kind: PushImm, Imm32: imm}
}
func Pop(dst GPR) Instruction         { return Instruction{Kind: PopReg, Reg1: dst} }
func PopMemOp(dst Memory) Instruction { return Instruction{Kind: PopMem, Mem: dst} }

func RetOp() Instruction   { return Instruction{Kind: Ret} }
func CpuidOp() Instruction { return Instruction{Kind: Cpuid} }

// NopOfLength emits exactly length bytes of NOP padding. Lengths beyond the
// encoder's widest single NOP are covered by several consecutive NOP
// instructions, appended to the same byte run by the assembler core.
func NopOfLength(length int) Instruction {
	return Instruction{Kind: Nop, Imm32: Imm32(int32(length))}
}

// EmitRaw appends literal bytes verbatim, with no interpretation as an
// instruction; used for data embedded directly in the code stream.
func EmitRaw(data []byte) Instruction {
	return Instruction{Kind: RawBytes, Raw: data}
}

// DefinePrivate and DefinePublic let a label definition be queued through
// Emit alongside ordinary instructions, as an alternative to calling
// Assembler.SetPrivateLabel/SetPublicLabel directly.
func DefinePrivate(l Label) Instruction { return Instruction{Kind: DefinePrivateLabel, Label: l} }
func DefinePublic(l Label) Instruction  { return Instruction{Kind: DefinePublicLabel, Label: l} }
