package enc

// EncodeRet encodes RET (opcode 0xC3).
func EncodeRet() EncodedInstruction {
	var e EncodedInstruction
	e.push(0xC3)
	return e
}

// EncodeCpuid encodes CPUID (opcode 0x0F 0xA2).
func EncodeCpuid() EncodedInstruction {
	var e EncodedInstruction
	e.push(0x0F)
	e.push(0xA2)
	return e
}

// nopPatterns holds the Intel-recommended multi-byte NOP encodings for
// lengths 1 through 9, the largest single NOP this package ever emits; a
// request for more bytes is satisfied by emitting consecutive 9-byte NOPs
// followed by one shorter remainder, mirroring the reference
// implementation's emit_nop_with_length.
var nopPatterns = [10][]byte{
	1: {0x90},
	2: {0x66, 0x90},
	3: {0x0F, 0x1F, 0x00},
	4: {0x0F, 0x1F, 0x40, 0x00},
	5: {0x0F, 0x1F, 0x44, 0x00, 0x00},
	6: {0x66, 0x0F, 0x1F, 0x44, 0x00, 0x00},
	7: {0x0F, 0x1F, 0x80, 0x00, 0x00, 0x00, 0x00},
	8: {0x0F, 0x1F, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
	9: {0x66, 0x0F, 0x1F, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
}

// MaxSingleNopLen is the widest NOP this encoder emits as one instruction.
const MaxSingleNopLen = 9

// EncodeNopWithLength encodes a single NOP instruction occupying exactly
// length bytes, 1 <= length <= MaxSingleNopLen.
func EncodeNopWithLength(length uint8) EncodedInstruction {
	if length < 1 || length > MaxSingleNopLen {
		panic("enc: nop length out of range")
	}
	var e EncodedInstruction
	e.pushAll(nopPatterns[length]...)
	return e
}

// EncodePushReg64 encodes PUSH r64 (opcode 0x50+rd).
func EncodePushReg64(src Reg) EncodedInstruction {
	var e EncodedInstruction
	emitRexIfNeeded(&e, combineRex(false, false, src.extBit()*rexB))
	e.push(0x50 + src.bits())
	return e
}

// EncodePushRm64 encodes PUSH r/m64 (opcode 0xFF /6).
func EncodePushRm64(src RM) EncodedInstruction {
	var e EncodedInstruction
	rex := combineRex(false, false, memExtBits(src))
	emitRexIfNeeded(&e, rex)
	e.push(0xFF)
	encodeModRMSIB(&e, 6, src)
	return e
}

// EncodePushImm32 encodes PUSH imm32 (opcode 0x68).
func EncodePushImm32(imm int32) EncodedInstruction {
	var e EncodedInstruction
	e.push(0x68)
	e.pushLE32(imm)
	return e
}

// EncodePushImm16 encodes PUSH imm16 (0x66 prefix, opcode 0x68).
func EncodePushImm16(imm int16) EncodedInstruction {
	var e EncodedInstruction
	e.push(0x66)
	e.push(0x68)
	e.pushLE16(imm)
	return e
}

// EncodePushImm8 encodes PUSH imm8 (opcode 0x6A).
func EncodePushImm8(imm int8) EncodedInstruction {
	var e EncodedInstruction
	e.push(0x6A)
	e.push(byte(imm))
	return e
}

// EncodePopReg64 encodes POP r64 (opcode 0x58+rd).
func EncodePopReg64(dst Reg) EncodedInstruction {
	var e EncodedInstruction
	emitRexIfNeeded(&e, combineRex(false, false, dst.extBit()*rexB))
	e.push(0x58 + dst.bits())
	return e
}

// EncodePopRm64 encodes POP r/m64 (opcode 0x8F /0).
func EncodePopRm64(dst RM) EncodedInstruction {
	var e EncodedInstruction
	rex := combineRex(false, false, memExtBits(dst))
	emitRexIfNeeded(&e, rex)
	e.push(0x8F)
	encodeModRMSIB(&e, 0, dst)
	return e
}
