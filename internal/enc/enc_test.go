package enc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeMovRegImmBySize(t *testing.T) {
	for _, tc := range []struct {
		name string
		enc  EncodedInstruction
		exp  []byte
	}{
		{"reg8", EncodeMovReg8Imm8(RAX, 5), []byte{0xB0, 0x05}},
		{"reg8 ext", EncodeMovReg8Imm8(R9, 5), []byte{0x41, 0xB1, 0x05}},
		{"reg16", EncodeMovReg16Imm16(RCX, 300), []byte{0x66, 0xB9, 0x2C, 0x01}},
		{"reg32", EncodeMovReg32Imm32(RDX, 70000), []byte{0xBA, 0x70, 0x11, 0x01, 0x00}},
		{"reg64 via rm64imm32", EncodeMovRm64Imm32(regRM(RAX), 0), []byte{0x48, 0xC7, 0xC0, 0x00, 0x00, 0x00, 0x00}},
		{"reg64imm64", EncodeMovReg64Imm64(RAX, 1), []byte{0x48, 0xB8, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.exp, tc.enc.Bytes())
		})
	}
}

func TestEncodeXorRegReg(t *testing.T) {
	require.Equal(t, []byte{0x48, 0x31, 0xC0}, EncodeXorRegReg(RAX, RAX, SizeBit64).Bytes())
	require.Equal(t, []byte{0x31, 0xC9}, EncodeXorRegReg(RCX, RCX, SizeBit32).Bytes())
}

func TestEncodeJumpAndCondJumpFixedLengths(t *testing.T) {
	require.Equal(t, ShortJumpLen, EncodeJmpImm8(0).Len())
	require.Equal(t, LongJumpLen, EncodeJmpImm32(0).Len())
	require.Equal(t, ShortCondJumpLen, EncodeJccImm8(Equal, 0).Len())
	require.Equal(t, LongCondJumpLen, EncodeJccImm32(Equal, 0).Len())
}

func TestEncodeJmpImm8NegativeDisplacement(t *testing.T) {
	require.Equal(t, []byte{0xEB, 0xFB}, EncodeJmpImm8(-5).Bytes())
}

func TestEncodeJccImm32ConditionCodes(t *testing.T) {
	require.Equal(t, []byte{0x0F, 0x87, 0x00, 0x00, 0x00, 0x00}, EncodeJccImm32(Above, 0).Bytes())
	require.Equal(t, []byte{0x0F, 0x84, 0x00, 0x00, 0x00, 0x00}, EncodeJccImm32(Equal, 0).Bytes())
}

func TestEncodeRIPRelativeMemOperand(t *testing.T) {
	rm := RM{IsMemory: true, Mem: Mem{Kind: MemRIPRelative, Offset: 0}}
	e := EncodeMovReg64Rm64(RDX, rm)
	require.Equal(t, []byte{0x48, 0x8B, 0x15, 0x00, 0x00, 0x00, 0x00}, e.Bytes())
}

func TestEncodeBasedMemRequiresSIBForRSPAndR12(t *testing.T) {
	rspBased := RM{IsMemory: true, Mem: Mem{Kind: MemBased, Base: RSP, Offset: 0}}
	e := EncodeMovReg64Rm64(RAX, rspBased)
	// REX.W, opcode 8B, modrm with rm=100 (SIB follows), SIB with base RSP, no disp.
	require.Equal(t, []byte{0x48, 0x8B, 0x04, 0x24}, e.Bytes())
}

func TestEncodeBasedMemRBPRequiresExplicitZeroDisp8(t *testing.T) {
	rbpBased := RM{IsMemory: true, Mem: Mem{Kind: MemBased, Base: RBP, Offset: 0}}
	e := EncodeMovReg64Rm64(RAX, rbpBased)
	require.Equal(t, []byte{0x48, 0x8B, 0x45, 0x00}, e.Bytes())
}

func TestEncodeNopWithLengthMatchesRequestedLength(t *testing.T) {
	for length := uint8(1); length <= MaxSingleNopLen; length++ {
		e := EncodeNopWithLength(length)
		require.Equal(t, int(length), e.Len())
	}
}

func TestEncodeNopWithLengthPanicsOutOfRange(t *testing.T) {
	require.Panics(t, func() { EncodeNopWithLength(0) })
	require.Panics(t, func() { EncodeNopWithLength(MaxSingleNopLen + 1) })
}

func TestEncodeGroup1RegImmUsesAccumulatorShortForm(t *testing.T) {
	// ADD RAX, 10 should use the short "05 imm32" accumulator form.
	require.Equal(t, []byte{0x48, 0x05, 0x0A, 0x00, 0x00, 0x00}, EncodeAddRegImm(RAX, 10, SizeBit64).Bytes())
	// ADD RCX, 10 (not the accumulator) falls back to the generic 81 /0 form.
	require.Equal(t, []byte{0x48, 0x81, 0xC1, 0x0A, 0x00, 0x00, 0x00}, EncodeAddRegImm(RCX, 10, SizeBit64).Bytes())
}

func TestEncodeRet(t *testing.T) {
	require.Equal(t, []byte{0xC3}, EncodeRet().Bytes())
}

func TestEncodeCpuid(t *testing.T) {
	require.Equal(t, []byte{0x0F, 0xA2}, EncodeCpuid().Bytes())
}

// SPL/BPL/SIL/DIL (the 8-bit forms of RSP/RBP/RSI/RDI) share their ModRM
// encoding with the legacy AH/CH/DH/BH registers; only the presence of a
// REX prefix disambiguates in favor of the *L form, so one must always be
// emitted even though no REX.W/R/X/B bit would otherwise be needed.
func TestEncodeReg8ForcesRexForSPLFamily(t *testing.T) {
	require.Equal(t, []byte{0x40, 0xB4, 0x05}, EncodeMovReg8Imm8(RSP, 5).Bytes())
	require.Equal(t, []byte{0x40, 0xB5, 0x05}, EncodeMovReg8Imm8(RBP, 5).Bytes())
	require.Equal(t, []byte{0x40, 0xB6, 0x05}, EncodeMovReg8Imm8(RSI, 5).Bytes())
	require.Equal(t, []byte{0x40, 0xB7, 0x05}, EncodeMovReg8Imm8(RDI, 5).Bytes())
	// Plain AL needs no REX at all.
	require.Equal(t, []byte{0xB0, 0x05}, EncodeMovReg8Imm8(RAX, 5).Bytes())

	require.Equal(t, []byte{0x40, 0x30, 0xFC}, EncodeXorRegReg(RSP, RDI, SizeBit8).Bytes())
	require.Equal(t, []byte{0x40, 0x80, 0xC6, 0x01}, EncodeAddRegImm(RSI, 1, SizeBit8).Bytes())
}

func TestEncodePushPopRoundTripOpcodes(t *testing.T) {
	require.Equal(t, []byte{0x50}, EncodePushReg64(RAX).Bytes())
	require.Equal(t, []byte{0x41, 0x50}, EncodePushReg64(R8).Bytes())
	require.Equal(t, []byte{0x58}, EncodePopReg64(RAX).Bytes())
	require.Equal(t, []byte{0x41, 0x58}, EncodePopReg64(R8).Bytes())
}
