package asm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutableSinkWriteGrows(t *testing.T) {
	s := NewExecutableSink()
	defer s.Close()

	payload := make([]byte, 200000)
	for i := range payload {
		payload[i] = byte(i)
	}

	n, err := s.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, len(payload), s.Len())
	require.Equal(t, payload, s.Bytes())
}

func TestExecutableSinkMultipleWrites(t *testing.T) {
	s := NewExecutableSink()
	defer s.Close()

	_, err := s.Write([]byte{0x48, 0xC7, 0xC0, 0x00, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	_, err = s.Write([]byte{0xC3})
	require.NoError(t, err)

	require.Equal(t, []byte{0x48, 0xC7, 0xC0, 0x00, 0x00, 0x00, 0x00, 0xC3}, s.Bytes())
}

func TestExecutableSinkCloseIsIdempotentOnZeroValue(t *testing.T) {
	s := NewExecutableSink()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
