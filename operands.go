package osomasm

import "github.com/RafalSzefler/osom-asm/internal/enc"

// Size and Scale are wire-level enums that map 1:1 onto the encoder's own
// types; they are aliased rather than redefined so that operand-model code
// and the encoder agree on representation without a conversion step.
type (
	Size  = enc.Size
	Scale = enc.Scale
)

const (
	Bit8  = enc.SizeBit8
	Bit16 = enc.SizeBit16
	Bit32 = enc.SizeBit32
	Bit64 = enc.SizeBit64
)

const (
	Scale1 = enc.Scale1
	Scale2 = enc.Scale2
	Scale4 = enc.Scale4
	Scale8 = enc.Scale8
)

// Condition is a Jcc condition code.
type Condition = enc.Condition

const (
	Equal          = enc.Equal
	NotEqual       = enc.NotEqual
	Above          = enc.Above
	AboveOrEqual   = enc.AboveOrEqual
	Below          = enc.Below
	BelowOrEqual   = enc.BelowOrEqual
	Greater        = enc.Greater
	GreaterOrEqual = enc.GreaterOrEqual
	Less           = enc.Less
	LessOrEqual    = enc.LessOrEqual
	Overflow       = enc.Overflow
	NotOverflow    = enc.NotOverflow
	Parity         = enc.Parity
	NotParity      = enc.NotParity
	ParityOdd      = enc.ParityOdd
	ParityEven     = enc.ParityEven
	Sign           = enc.Sign
	NotSign        = enc.NotSign
	Carry          = enc.Carry
	NotCarry       = enc.NotCarry
)

// GPR is a general-purpose register, carrying both its x86 register index
// and its size class. The zero value is invalid; use one of the named
// constants below.
type GPR struct {
	reg  enc.Reg
	size Size
}

func (g GPR) Size() Size   { return g.size }
func (g GPR) enc() enc.Reg { return g.reg }

func reg(r enc.Reg, size Size) GPR { return GPR{reg: r, size: size} }

var (
	AL, CL, DL, BL, SPL, BPL, SIL, DIL         = reg(enc.RAX, Bit8), reg(enc.RCX, Bit8), reg(enc.RDX, Bit8), reg(enc.RBX, Bit8), reg(enc.RSP, Bit8), reg(enc.RBP, Bit8), reg(enc.RSI, Bit8), reg(enc.RDI, Bit8)
	R8B, R9B, R10B, R11B, R12B, R13B, R14B, R15B = reg(enc.R8, Bit8), reg(enc.R9, Bit8), reg(enc.R10, Bit8), reg(enc.R11, Bit8), reg(enc.R12, Bit8), reg(enc.R13, Bit8), reg(enc.R14, Bit8), reg(enc.R15, Bit8)

	AX, CX, DX, BX, SP, BP, SI, DI                = reg(enc.RAX, Bit16), reg(enc.RCX, Bit16), reg(enc.RDX, Bit16), reg(enc.RBX, Bit16), reg(enc.RSP, Bit16), reg(enc.RBP, Bit16), reg(enc.RSI, Bit16), reg(enc.RDI, Bit16)
	R8W, R9W, R10W, R11W, R12W, R13W, R14W, R15W = reg(enc.R8, Bit16), reg(enc.R9, Bit16), reg(enc.R10, Bit16), reg(enc.R11, Bit16), reg(enc.R12, Bit16), reg(enc.R13, Bit16), reg(enc.R14, Bit16), reg(enc.R15, Bit16)

	EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI        = reg(enc.RAX, Bit32), reg(enc.RCX, Bit32), reg(enc.RDX, Bit32), reg(enc.RBX, Bit32), reg(enc.RSP, Bit32), reg(enc.RBP, Bit32), reg(enc.RSI, Bit32), reg(enc.RDI, Bit32)
	R8D, R9D, R10D, R11D, R12D, R13D, R14D, R15D = reg(enc.R8, Bit32), reg(enc.R9, Bit32), reg(enc.R10, Bit32), reg(enc.R11, Bit32), reg(enc.R12, Bit32), reg(enc.R13, Bit32), reg(enc.R14, Bit32), reg(enc.R15, Bit32)

	RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI    = reg(enc.RAX, Bit64), reg(enc.RCX, Bit64), reg(enc.RDX, Bit64), reg(enc.RBX, Bit64), reg(enc.RSP, Bit64), reg(enc.RBP, Bit64), reg(enc.RSI, Bit64), reg(enc.RDI, Bit64)
	R8, R9, R10, R11, R12, R13, R14, R15      = reg(enc.R8, Bit64), reg(enc.R9, Bit64), reg(enc.R10, Bit64), reg(enc.R11, Bit64), reg(enc.R12, Bit64), reg(enc.R13, Bit64), reg(enc.R14, Bit64), reg(enc.R15, Bit64)
)

// Immediate32 is a signed 32-bit immediate that knows its own minimal
// encoding width, following the same "compute the narrowest width that
// still holds the value" approach as the reference implementation's
// Immediate type.
type Immediate32 struct {
	value int32
}

// Imm32 constructs an Immediate32.
func Imm32(v int32) Immediate32 { return Immediate32{value: v} }

func (i Immediate32) Value() int32 { return i.value }

// RealSize returns the narrowest Size that can hold Value as a signed
// integer.
func (i Immediate32) RealSize() Size {
	result := Bit32
	if i.value >= -32768 && i.value <= 32767 {
		result = Bit16
	}
	if i.value >= -128 && i.value <= 127 {
		result = Bit8
	}
	return result
}

// Immediate64 is a signed 64-bit immediate, used only for MovRegImm64.
type Immediate64 struct {
	value int64
}

func Imm64(v int64) Immediate64 { return Immediate64{value: v} }

func (i Immediate64) Value() int64 { return i.value }

func (i Immediate64) RealSize() Size {
	result := Bit64
	if i.value >= -2147483648 && i.value <= 2147483647 {
		result = Bit32
	}
	if i.value >= -32768 && i.value <= 32767 {
		result = Bit16
	}
	if i.value >= -128 && i.value <= 127 {
		result = Bit8
	}
	return result
}

// Memory is an x86-64 memory operand: based, scaled, based+scaled, or
// RIP-relative addressing via a label.
type Memory struct {
	kind   enc.MemKind
	base   enc.Reg
	index  enc.Reg
	scale  Scale
	offset int32
	label  *Label
}

// Based constructs a [base + offset] memory operand. base must be a
// 64-bit register.
func Based(base GPR, offset int32) Memory {
	if base.size != Bit64 {
		panic("osomasm: memory base register must be 64-bit")
	}
	return Memory{kind: enc.MemBased, base: base.reg, offset: offset}
}

// Scaled constructs an [index*scale + offset] memory operand. index must
// be a 64-bit register other than RSP (RSP cannot be used as a SIB index).
func Scaled(index GPR, scale Scale, offset int32) Memory {
	if index.size != Bit64 {
		panic("osomasm: memory index register must be 64-bit")
	}
	if index.reg == enc.RSP {
		panic("osomasm: RSP cannot be used as a memory index")
	}
	return Memory{kind: enc.MemScaled, index: index.reg, scale: scale, offset: offset}
}

// BasedScaled constructs a [base + index*scale + offset] memory operand.
func BasedScaled(base, index GPR, scale Scale, offset int32) Memory {
	if base.size != Bit64 || index.size != Bit64 {
		panic("osomasm: memory base/index registers must be 64-bit")
	}
	if index.reg == enc.RSP {
		panic("osomasm: RSP cannot be used as a memory index")
	}
	return Memory{kind: enc.MemBasedScaled, base: base.reg, index: index.reg, scale: scale, offset: offset}
}

// MemLabel constructs a RIP-relative memory operand targeting a label. The
// displacement is unknown until assembly and is patched in after
// relaxation; see PatchableImm32Instruction.
func MemLabel(l Label) Memory {
	return Memory{kind: enc.MemRIPRelative, label: &l}
}

func (m Memory) labelRef() *Label {
	return m.label
}

func (m Memory) rm() enc.RM {
	return enc.RM{
		IsMemory: true,
		Mem: enc.Mem{
			Kind:   m.kind,
			Base:   m.base,
			Index:  m.index,
			Scale:  m.scale,
			Offset: m.offset,
		},
	}
}

func gprRM(g GPR) enc.RM {
	return enc.RM{Reg: g.enc()}
}
