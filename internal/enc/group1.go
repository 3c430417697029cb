package enc

// group1 bundles the opcode bytes that vary between the four
// ADD/SUB/XOR/CMP-shaped instruction families while the ModRM/REX/immediate
// plumbing stays identical. This mirrors the reference implementation's
// generate_group1_fn! macro, which generates the same five operand-shape
// functions (reg-imm, mem-imm, reg-reg, mem-reg, reg-mem) for each mnemonic.
type group1 struct {
	ext        byte // ModRM reg-field extension for the immediate-form opcodes.
	rmReg8     byte // opcode: op r/m8, r8
	rmRegWide  byte // opcode: op r/m16/32/64, r16/32/64
	regRm8     byte // opcode: op r8, r/m8
	regRmWide  byte // opcode: op r16/32/64, r/m16/32/64
	alImm8     byte // opcode: op AL, imm8
	eaxImmWide byte // opcode: op eAX, imm16/32
}

var (
	addOps = group1{ext: 0, rmReg8: 0x00, rmRegWide: 0x01, regRm8: 0x02, regRmWide: 0x03, alImm8: 0x04, eaxImmWide: 0x05}
	subOps = group1{ext: 5, rmReg8: 0x28, rmRegWide: 0x29, regRm8: 0x2A, regRmWide: 0x2B, alImm8: 0x2C, eaxImmWide: 0x2D}
	xorOps = group1{ext: 6, rmReg8: 0x30, rmRegWide: 0x31, regRm8: 0x32, regRmWide: 0x33, alImm8: 0x34, eaxImmWide: 0x35}
	cmpOps = group1{ext: 7, rmReg8: 0x38, rmRegWide: 0x39, regRm8: 0x3A, regRmWide: 0x3B, alImm8: 0x3C, eaxImmWide: 0x3D}
)

// group1RegReg encodes "op dst, src" for two registers of equal size. The
// destination sits in the ModRM r/m field and the source in the reg field
// (the rmReg8/rmRegWide opcode family), which is what produces the literal
// "48 31 C0" byte sequence for XOR RAX, RAX pinned by this repository's
// boundary tests.
func group1RegReg(ops group1, dst, src Reg, size Size) EncodedInstruction {
	var e EncodedInstruction
	if size == SizeBit16 {
		e.push(0x66)
	}
	srcBits, srcExt := regReg(src)
	forced := size == SizeBit8 && (needsRexForLowByte(dst) || needsRexForLowByte(src))
	rex := combineRex(size == SizeBit64, forced, srcExt, dst.extBit()*rexB)
	emitRexIfNeeded(&e, rex)
	if size == SizeBit8 {
		e.push(ops.rmReg8)
	} else {
		e.push(ops.rmRegWide)
	}
	e.push(0b11_000_000 | (srcBits << 3) | dst.bits())
	return e
}

// group1RegMem encodes "op dst, src" where dst is a register and src is
// r/m (the regRm8/regRmWide family: destination is the reg field).
func group1RegMem(ops group1, dst Reg, src RM, size Size) EncodedInstruction {
	var e EncodedInstruction
	if size == SizeBit16 {
		e.push(0x66)
	}
	regBits, regExt := regReg(dst)
	forced := size == SizeBit8 && (needsRexForLowByte(dst) || (!src.IsMemory && needsRexForLowByte(src.Reg)))
	rex := combineRex(size == SizeBit64, forced, regExt, memExtBits(src))
	emitRexIfNeeded(&e, rex)
	if size == SizeBit8 {
		e.push(ops.regRm8)
	} else {
		e.push(ops.regRmWide)
	}
	encodeModRMSIB(&e, regBits, src)
	return e
}

// group1MemReg encodes "op dst, src" where dst is r/m and src is a
// register (the rmReg8/rmRegWide family: destination is the r/m field).
func group1MemReg(ops group1, dst RM, src Reg, size Size) EncodedInstruction {
	var e EncodedInstruction
	if size == SizeBit16 {
		e.push(0x66)
	}
	regBits, regExt := regReg(src)
	forced := size == SizeBit8 && (needsRexForLowByte(src) || (!dst.IsMemory && needsRexForLowByte(dst.Reg)))
	rex := combineRex(size == SizeBit64, forced, regExt, memExtBits(dst))
	emitRexIfNeeded(&e, rex)
	if size == SizeBit8 {
		e.push(ops.rmReg8)
	} else {
		e.push(ops.rmRegWide)
	}
	encodeModRMSIB(&e, regBits, dst)
	return e
}

// group1RegImm encodes "op dst, imm" against a register destination,
// using the accumulator short forms for AL/AX/EAX/RAX and the generic
// 0x80/0x81 group otherwise. It never emits the 0x83 sign-extended-imm8
// short form; the reference implementation's own dispatch always matches
// the immediate width to the destination width, so this repository does
// the same.
func group1RegImm(ops group1, dst Reg, imm int32, size Size) EncodedInstruction {
	var e EncodedInstruction
	if dst == RAX {
		switch size {
		case SizeBit8:
			emitRexIfNeeded(&e, rexNone)
			e.push(ops.alImm8)
			e.push(byte(int8(imm)))
			return e
		case SizeBit16:
			e.push(0x66)
			e.push(ops.eaxImmWide)
			e.pushLE16(int16(imm))
			return e
		case SizeBit32:
			e.push(ops.eaxImmWide)
			e.pushLE32(imm)
			return e
		case SizeBit64:
			emitRexIfNeeded(&e, rexW)
			e.push(ops.eaxImmWide)
			e.pushLE32(imm)
			return e
		}
	}
	return group1RmImm(ops, regRM(dst), imm, size)
}

// group1MemImm encodes "op dst, imm" against a memory destination.
func group1MemImm(ops group1, dst RM, imm int32, size Size) EncodedInstruction {
	return group1RmImm(ops, dst, imm, size)
}

func group1RmImm(ops group1, dst RM, imm int32, size Size) EncodedInstruction {
	var e EncodedInstruction
	if size == SizeBit16 {
		e.push(0x66)
	}
	forced := size == SizeBit8 && !dst.IsMemory && needsRexForLowByte(dst.Reg)
	rex := combineRex(size == SizeBit64, forced, memExtBits(dst))
	emitRexIfNeeded(&e, rex)
	if size == SizeBit8 {
		e.push(0x80)
	} else {
		e.push(0x81)
	}
	encodeModRMSIB(&e, ops.ext, dst)
	switch size {
	case SizeBit8:
		e.push(byte(int8(imm)))
	case SizeBit16:
		e.pushLE16(int16(imm))
	default:
		e.pushLE32(imm)
	}
	return e
}

// Per-mnemonic entry points, named after the Instruction enum's variant
// families (Add/Sub/Xor/Cmp × RegImm/MemImm/RegReg/MemReg/RegMem).

func EncodeAddRegImm(dst Reg, imm int32, size Size) EncodedInstruction { return group1RegImm(addOps, dst, imm, size) }
func EncodeAddMemImm(dst RM, imm int32, size Size) EncodedInstruction  { return group1MemImm(addOps, dst, imm, size) }
func EncodeAddRegReg(dst, src Reg, size Size) EncodedInstruction       { return group1RegReg(addOps, dst, src, size) }
func EncodeAddMemReg(dst RM, src Reg, size Size) EncodedInstruction    { return group1MemReg(addOps, dst, src, size) }
func EncodeAddRegMem(dst Reg, src RM, size Size) EncodedInstruction    { return group1RegMem(addOps, dst, src, size) }

func EncodeSubRegImm(dst Reg, imm int32, size Size) EncodedInstruction { return group1RegImm(subOps, dst, imm, size) }
func EncodeSubMemImm(dst RM, imm int32, size Size) EncodedInstruction  { return group1MemImm(subOps, dst, imm, size) }
func EncodeSubRegReg(dst, src Reg, size Size) EncodedInstruction       { return group1RegReg(subOps, dst, src, size) }
func EncodeSubMemReg(dst RM, src Reg, size Size) EncodedInstruction    { return group1MemReg(subOps, dst, src, size) }
func EncodeSubRegMem(dst Reg, src RM, size Size) EncodedInstruction    { return group1RegMem(subOps, dst, src, size) }

func EncodeXorRegImm(dst Reg, imm int32, size Size) EncodedInstruction { return group1RegImm(xorOps, dst, imm, size) }
func EncodeXorMemImm(dst RM, imm int32, size Size) EncodedInstruction  { return group1MemImm(xorOps, dst, imm, size) }
func EncodeXorRegReg(dst, src Reg, size Size) EncodedInstruction       { return group1RegReg(xorOps, dst, src, size) }
func EncodeXorMemReg(dst RM, src Reg, size Size) EncodedInstruction    { return group1MemReg(xorOps, dst, src, size) }
func EncodeXorRegMem(dst Reg, src RM, size Size) EncodedInstruction    { return group1RegMem(xorOps, dst, src, size) }

func EncodeCmpRegImm(dst Reg, imm int32, size Size) EncodedInstruction { return group1RegImm(cmpOps, dst, imm, size) }
func EncodeCmpMemImm(dst RM, imm int32, size Size) EncodedInstruction  { return group1MemImm(cmpOps, dst, imm, size) }
func EncodeCmpRegReg(dst, src Reg, size Size) EncodedInstruction       { return group1RegReg(cmpOps, dst, src, size) }
func EncodeCmpMemReg(dst RM, src Reg, size Size) EncodedInstruction    { return group1MemReg(cmpOps, dst, src, size) }
func EncodeCmpRegMem(dst Reg, src RM, size Size) EncodedInstruction    { return group1RegMem(cmpOps, dst, src, size) }
