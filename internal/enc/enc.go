// Package enc is the per-instruction x86-64 encoder: opcode/ModR/M/SIB/REX
// bit-twiddling, exposed as pure functions that turn operands into an
// EncodedInstruction. It has no notion of fragments, labels or relaxation;
// the core assembler package is the only consumer.
//
// The bit-level techniques here (REX prefix construction, 3-bit register
// encoding with REX extension, the no-SIB RIP-relative ModRM pattern) follow
// the same approach as github.com/tetratelabs/wazero's internal/asm/amd64
// encoder, adapted from its mutable-node design to a stateless
// operands-in/bytes-out function family.
package enc

// Size is an operand width class.
type Size uint8

const (
	SizeBit8 Size = iota
	SizeBit16
	SizeBit32
	SizeBit64
)

// Scale is a SIB scale factor.
type Scale uint8

const (
	Scale1 Scale = iota
	Scale2
	Scale4
	Scale8
)

func (s Scale) bits() byte {
	switch s {
	case Scale1:
		return 0b00
	case Scale2:
		return 0b01
	case Scale4:
		return 0b10
	case Scale8:
		return 0b11
	default:
		panic("enc: invalid scale")
	}
}

// Reg is a general purpose register, identified by its x86 register index
// (0-15). The low 3 bits go in a ModRM/SIB field; bit 3 becomes a REX
// extension bit. This repository supports the eight legacy registers plus
// the R8-R15 extension; it does not model the AH/CH/DH/BH high-byte
// registers, since they require REX-prefix absence and no instruction in
// this package's scope ever needs them.
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

func (r Reg) bits() byte {
	return byte(r) & 0b111
}

func (r Reg) extBit() byte {
	if r >= R8 {
		return 1
	}
	return 0
}

// Condition is a Jcc condition code, in the same grouping and order as the
// reference implementation's Condition enum.
type Condition uint8

const (
	Equal Condition = iota + 1
	NotEqual
	Above         // unsigned >
	AboveOrEqual  // unsigned >=
	Below         // unsigned <
	BelowOrEqual  // unsigned <=
	Greater       // signed >
	GreaterOrEqual
	Less          // signed <
	LessOrEqual
	Overflow
	NotOverflow
	Parity
	NotParity
	ParityOdd
	ParityEven
	Sign
	NotSign
	Carry
	NotCarry
)

// code is the 4-bit condition encoded in the low nibble of Jcc opcodes
// (0x70+cc short form, 0x0F 0x80+cc long form).
func (c Condition) code() byte {
	switch c {
	case Overflow:
		return 0x0
	case NotOverflow:
		return 0x1
	case Carry, Below:
		return 0x2
	case NotCarry, AboveOrEqual:
		return 0x3
	case Equal:
		return 0x4
	case NotEqual:
		return 0x5
	case BelowOrEqual:
		return 0x6
	case Above:
		return 0x7
	case Sign:
		return 0x8
	case NotSign:
		return 0x9
	case ParityEven, Parity:
		return 0xA
	case ParityOdd, NotParity:
		return 0xB
	case Less:
		return 0xC
	case GreaterOrEqual:
		return 0xD
	case LessOrEqual:
		return 0xE
	case Greater:
		return 0xF
	default:
		panic("enc: invalid condition")
	}
}

// EncodedInstruction is a fixed-capacity encoded instruction buffer. x86-64
// instructions are at most 15 bytes; storing it as a value (not a slice)
// avoids a heap allocation per encoded instruction, mirroring the reference
// implementation's stack-allocated EncodedX86_64Instruction.
type EncodedInstruction struct {
	buf [15]byte
	n   uint8
}

func (e *EncodedInstruction) push(b byte) {
	e.buf[e.n] = b
	e.n++
}

func (e *EncodedInstruction) pushAll(bs ...byte) {
	for _, b := range bs {
		e.push(b)
	}
}

func (e *EncodedInstruction) pushLE32(v int32) {
	u := uint32(v)
	e.push(byte(u))
	e.push(byte(u >> 8))
	e.push(byte(u >> 16))
	e.push(byte(u >> 24))
}

func (e *EncodedInstruction) pushLE16(v int16) {
	u := uint16(v)
	e.push(byte(u))
	e.push(byte(u >> 8))
}

// Bytes returns the encoded instruction's bytes.
func (e EncodedInstruction) Bytes() []byte {
	return e.buf[:e.n]
}

// Len returns the number of encoded bytes.
func (e EncodedInstruction) Len() int {
	return int(e.n)
}
