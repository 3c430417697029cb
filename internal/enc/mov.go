package enc

// needsRexForLowByte reports whether accessing r as an 8-bit operand
// requires a REX prefix to select the intended register. RSP/RBP/RSI/RDI's
// 8-bit forms (SPL/BPL/SIL/DIL) share their ModRM encoding with the legacy
// AH/CH/DH/BH registers; any REX prefix, even the bare 0x40, disambiguates
// in favor of the *L form.
func needsRexForLowByte(r Reg) bool {
	return r >= RSP && r <= RDI
}

// EncodeMovReg8Imm8 encodes MOV r8, imm8 (opcode B0+rb).
func EncodeMovReg8Imm8(dst Reg, imm int8) EncodedInstruction {
	var e EncodedInstruction
	emitRexIfNeeded(&e, combineRex(false, needsRexForLowByte(dst), dst.extBit()*rexB))
	e.push(0xB0 + dst.bits())
	e.push(byte(imm))
	return e
}

// EncodeMovReg16Imm16 encodes MOV r16, imm16 (opcode B8+rw, 0x66 prefix).
func EncodeMovReg16Imm16(dst Reg, imm int16) EncodedInstruction {
	var e EncodedInstruction
	e.push(0x66)
	emitRexIfNeeded(&e, combineRex(false, false, dst.extBit()*rexB))
	e.push(0xB8 + dst.bits())
	e.pushLE16(imm)
	return e
}

// EncodeMovReg32Imm32 encodes MOV r32, imm32 (opcode B8+rd).
func EncodeMovReg32Imm32(dst Reg, imm int32) EncodedInstruction {
	var e EncodedInstruction
	emitRexIfNeeded(&e, combineRex(false, false, dst.extBit()*rexB))
	e.push(0xB8 + dst.bits())
	e.pushLE32(imm)
	return e
}

// EncodeMovReg64Imm64 encodes MOV r64, imm64 (opcode B8+ro, REX.W).
func EncodeMovReg64Imm64(dst Reg, imm int64) EncodedInstruction {
	var e EncodedInstruction
	emitRexIfNeeded(&e, combineRex(true, false, dst.extBit()*rexB))
	e.push(0xB8 + dst.bits())
	u := uint64(imm)
	for i := 0; i < 8; i++ {
		e.push(byte(u >> (8 * i)))
	}
	return e
}

// EncodeMovRm64Imm32 encodes MOV r/m64, imm32 (opcode C7 /0, REX.W), the
// sign-extending form used when a 64-bit destination is given an immediate
// that fits in 32 bits.
func EncodeMovRm64Imm32(dst RM, imm int32) EncodedInstruction {
	var e EncodedInstruction
	rex := combineRex(true, false, memExtBits(dst))
	emitRexIfNeeded(&e, rex)
	e.push(0xC7)
	encodeModRMSIB(&e, 0, dst)
	e.pushLE32(imm)
	return e
}

func memExtBits(rm RM) byte {
	if !rm.IsMemory {
		return rm.Reg.extBit() * rexB
	}
	switch rm.Mem.Kind {
	case MemBased:
		return rm.Mem.Base.extBit() * rexB
	case MemScaled:
		return rm.Mem.Index.extBit() * rexX
	case MemBasedScaled:
		return rm.Mem.Base.extBit()*rexB | rm.Mem.Index.extBit()*rexX
	default:
		return rexNone
	}
}

// EncodeMovReg8Rm8, EncodeMovReg16Rm16, EncodeMovReg32Rm32, EncodeMovReg64Rm64
// encode MOV r, r/m (reg <- r/m), opcodes 8A/8B.
func EncodeMovReg8Rm8(dst Reg, src RM) EncodedInstruction  { return movRegRM(dst, src, SizeBit8, 0x8A) }
func EncodeMovReg16Rm16(dst Reg, src RM) EncodedInstruction { return movRegRM(dst, src, SizeBit16, 0x8B) }
func EncodeMovReg32Rm32(dst Reg, src RM) EncodedInstruction { return movRegRM(dst, src, SizeBit32, 0x8B) }
func EncodeMovReg64Rm64(dst Reg, src RM) EncodedInstruction { return movRegRM(dst, src, SizeBit64, 0x8B) }

func movRegRM(dst Reg, src RM, size Size, opcode byte) EncodedInstruction {
	var e EncodedInstruction
	if size == SizeBit16 {
		e.push(0x66)
	}
	regBits, regExt := regReg(dst)
	forced := size == SizeBit8 && (needsRexForLowByte(dst) || (!src.IsMemory && needsRexForLowByte(src.Reg)))
	rex := combineRex(size == SizeBit64, forced, regExt, memExtBits(src))
	emitRexIfNeeded(&e, rex)
	e.push(opcode)
	encodeModRMSIB(&e, regBits, src)
	return e
}

// EncodeMovRm8Reg8, ... encode MOV r/m, r (r/m <- reg), opcodes 88/89.
func EncodeMovRm8Reg8(dst RM, src Reg) EncodedInstruction  { return movRMReg(dst, src, SizeBit8, 0x88) }
func EncodeMovRm16Reg16(dst RM, src Reg) EncodedInstruction { return movRMReg(dst, src, SizeBit16, 0x89) }
func EncodeMovRm32Reg32(dst RM, src Reg) EncodedInstruction { return movRMReg(dst, src, SizeBit32, 0x89) }
func EncodeMovRm64Reg64(dst RM, src Reg) EncodedInstruction { return movRMReg(dst, src, SizeBit64, 0x89) }

func movRMReg(dst RM, src Reg, size Size, opcode byte) EncodedInstruction {
	var e EncodedInstruction
	if size == SizeBit16 {
		e.push(0x66)
	}
	regBits, regExt := regReg(src)
	forced := size == SizeBit8 && (needsRexForLowByte(src) || (!dst.IsMemory && needsRexForLowByte(dst.Reg)))
	rex := combineRex(size == SizeBit64, forced, regExt, memExtBits(dst))
	emitRexIfNeeded(&e, rex)
	e.push(opcode)
	encodeModRMSIB(&e, regBits, dst)
	return e
}

// EncodeMovRm8Imm8, ... encode MOV r/m, imm (opcode C6/0 or C7/0).
func EncodeMovRm8Imm8(dst RM, imm int8) EncodedInstruction {
	var e EncodedInstruction
	rex := combineRex(false, false, memExtBits(dst))
	emitRexIfNeeded(&e, rex)
	e.push(0xC6)
	encodeModRMSIB(&e, 0, dst)
	e.push(byte(imm))
	return e
}

func EncodeMovRm16Imm16(dst RM, imm int16) EncodedInstruction {
	var e EncodedInstruction
	e.push(0x66)
	rex := combineRex(false, false, memExtBits(dst))
	emitRexIfNeeded(&e, rex)
	e.push(0xC7)
	encodeModRMSIB(&e, 0, dst)
	e.pushLE16(imm)
	return e
}

func EncodeMovRm32Imm32(dst RM, imm int32) EncodedInstruction {
	var e EncodedInstruction
	rex := combineRex(false, false, memExtBits(dst))
	emitRexIfNeeded(&e, rex)
	e.push(0xC7)
	encodeModRMSIB(&e, 0, dst)
	e.pushLE32(imm)
	return e
}
