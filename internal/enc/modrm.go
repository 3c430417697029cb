package enc

// REX prefix bits, matching the standard layout 0100WRXB.
const (
	rexNone    byte = 0x00
	rexDefault byte = 0b0100_0000
	rexW       byte = 0b0000_1000 | rexDefault
	rexR       byte = 0b0000_0100 | rexDefault
	rexX       byte = 0b0000_0010 | rexDefault
	rexB       byte = 0b0000_0001 | rexDefault
)

// MemKind identifies the addressing form of a Mem operand.
type MemKind uint8

const (
	// MemBased is [base + offset].
	MemBased MemKind = iota
	// MemScaled is [index*scale + offset], no base.
	MemScaled
	// MemBasedScaled is [base + index*scale + offset].
	MemBasedScaled
	// MemRIPRelative is [rip + offset], where offset is a disp32 that is
	// generally a placeholder patched in later by the assembler core.
	MemRIPRelative
)

// Mem is a memory operand, sized to cover every addressing form the
// encoder needs: based, scaled, based+scaled, and RIP-relative.
type Mem struct {
	Kind   MemKind
	Base   Reg
	Index  Reg
	Scale  Scale
	Offset int32
}

// RM is a register-or-memory operand (x86's r/m field).
type RM struct {
	IsMemory bool
	Reg      Reg
	Mem      Mem
}

func regRM(r Reg) RM { return RM{Reg: r} }

// displacementForm reports whether offset needs 0, 1 or 4 bytes, and
// whether an all-zero disp8 must be forced (RBP/R13 base with no
// displacement still requires a disp8 of 0, since mod=00 with rm=101 means
// RIP-relative / disp32-only, not "no displacement" for those two bases).
func displacementForm(offset int32, base Reg, hasBase bool) (mod byte, dispLen int) {
	basedOnBPFamily := hasBase && (base&0b111) == 0b101
	if offset == 0 && !basedOnBPFamily {
		return 0b00, 0
	}
	if offset >= -128 && offset <= 127 {
		return 0b01, 1
	}
	return 0b10, 4
}

// encodeModRMSIB writes the ModRM byte (with the reg field already chosen
// by the caller), any SIB byte, and any displacement bytes for rm, into e.
// regBits is the 3-bit reg field value (caller already folded in whether it
// is the source or destination per the instruction's direction).
func encodeModRMSIB(e *EncodedInstruction, regBits byte, rm RM) (rex byte) {
	if !rm.IsMemory {
		modrm := 0b11_000_000 | (regBits << 3) | rm.Reg.bits()
		e.push(modrm)
		return rm.Reg.extBit() * rexB
	}

	switch rm.Mem.Kind {
	case MemRIPRelative:
		modrm := 0b00_000_101 | (regBits << 3)
		e.push(modrm)
		e.pushLE32(rm.Mem.Offset)
		return rexNone

	case MemBased:
		base := rm.Mem.Base
		needsSIB := (base&0b111) == 0b100 // RSP/R12 require an explicit SIB byte.
		mod, dispLen := displacementForm(rm.Mem.Offset, base, true)
		var modrmRM byte
		if needsSIB {
			modrmRM = 0b100
		} else {
			modrmRM = base.bits()
		}
		modrm := (mod << 6) | (regBits << 3) | modrmRM
		e.push(modrm)
		if needsSIB {
			// scale=00, index=100 (none), base=base bits.
			e.push((0b00 << 6) | (0b100 << 3) | base.bits())
		}
		switch dispLen {
		case 1:
			e.push(byte(int8(rm.Mem.Offset)))
		case 4:
			e.pushLE32(rm.Mem.Offset)
		}
		return base.extBit() * rexB

	case MemScaled:
		index := rm.Mem.Index
		modrm := (0b00 << 6) | (regBits << 3) | 0b100
		e.push(modrm)
		e.push((rm.Mem.Scale.bits() << 6) | (index.bits() << 3) | 0b101)
		e.pushLE32(rm.Mem.Offset)
		return index.extBit() * rexX

	case MemBasedScaled:
		base, index := rm.Mem.Base, rm.Mem.Index
		mod, dispLen := displacementForm(rm.Mem.Offset, base, true)
		modrm := (mod << 6) | (regBits << 3) | 0b100
		e.push(modrm)
		e.push((rm.Mem.Scale.bits() << 6) | (index.bits() << 3) | base.bits())
		switch dispLen {
		case 1:
			e.push(byte(int8(rm.Mem.Offset)))
		case 4:
			e.pushLE32(rm.Mem.Offset)
		}
		return base.extBit()*rexB | index.extBit()*rexX

	default:
		panic("enc: invalid memory kind")
	}
}

// combineRex ORs together accumulated REX bits, applying rexW if wide is
// set, and returns 0 if the result is rexNone (meaning: omit the prefix
// entirely) unless forced is true.
func combineRex(wide bool, forced bool, bits ...byte) byte {
	var rex byte
	if wide {
		rex |= rexW
	}
	for _, b := range bits {
		rex |= b
	}
	if rex == rexNone && forced {
		return rexDefault
	}
	return rex
}

func emitRexIfNeeded(e *EncodedInstruction, rex byte) {
	if rex != rexNone {
		e.push(rex)
	}
}

// regReg builds the register-field bits plus any REX extension bit for a
// plain register (used for the ModRM.reg position).
func regReg(r Reg) (bits byte, ext byte) {
	return r.bits(), r.extBit() * rexR
}
