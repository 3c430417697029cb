package osomasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImmediate32RealSize(t *testing.T) {
	require.Equal(t, Bit8, Imm32(0).RealSize())
	require.Equal(t, Bit8, Imm32(-128).RealSize())
	require.Equal(t, Bit16, Imm32(128).RealSize())
	require.Equal(t, Bit16, Imm32(-32768).RealSize())
	require.Equal(t, Bit32, Imm32(32768).RealSize())
	require.Equal(t, Bit32, Imm32(-32769).RealSize())
}

func TestImmediate64RealSize(t *testing.T) {
	require.Equal(t, Bit8, Imm64(1).RealSize())
	require.Equal(t, Bit16, Imm64(300).RealSize())
	require.Equal(t, Bit32, Imm64(1<<20).RealSize())
	require.Equal(t, Bit64, Imm64(1<<40).RealSize())
}

func TestMemoryConstructorsRejectBadRegisters(t *testing.T) {
	require.Panics(t, func() { Based(EAX, 0) })
	require.Panics(t, func() { Scaled(RSP, Scale4, 0) })
	require.Panics(t, func() { Scaled(ECX, Scale4, 0) })
	require.Panics(t, func() { BasedScaled(RAX, RSP, Scale2, 0) })
}
