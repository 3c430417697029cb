package asm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ExecutableSink is an io.Writer backed by an anonymous mmap'd region,
// suitable for handing machine code produced by Assembler.Assemble
// straight to a function pointer once writing is done. It grows by
// remapping to a larger region as needed, the same doubling strategy as
// the reference implementation's CodeSegment.grow, reimplemented here on
// top of golang.org/x/sys/unix since that implementation's own
// platform-specific mmap helpers are not available to this repository.
//
// The zero value is an empty sink with no mapping yet, which is what
// NewExecutableSink returns.
type ExecutableSink struct {
	mem  []byte
	size int
}

// NewExecutableSink allocates an empty sink with no backing mapping yet;
// the first Write call maps an initial region.
func NewExecutableSink() *ExecutableSink {
	return &ExecutableSink{}
}

// Write appends b to the sink, growing the backing mapping if needed. It
// always returns len(b), nil, matching io.Writer's contract for a sink
// that cannot fail short of an allocation failure (which panics, mirroring
// the reference implementation's own choice to treat growth failure as
// unrecoverable rather than plumb it through every Write call).
func (s *ExecutableSink) Write(b []byte) (int, error) {
	n := len(b)
	if n == 0 {
		return 0, nil
	}
	s.ensureCapacity(s.size + n)
	copy(s.mem[s.size:s.size+n], b)
	s.size += n
	return n, nil
}

// Len returns the number of bytes written so far.
func (s *ExecutableSink) Len() int {
	return s.size
}

// Bytes returns the written prefix of the mapping. The slice is only valid
// until the next Write or Close call.
func (s *ExecutableSink) Bytes() []byte {
	return s.mem[:s.size]
}

// Close unmaps the backing memory. The sink is not usable afterwards.
func (s *ExecutableSink) Close() error {
	if s.mem == nil {
		return nil
	}
	err := unix.Munmap(s.mem[:cap(s.mem)])
	s.mem = nil
	s.size = 0
	return err
}

func (s *ExecutableSink) ensureCapacity(want int) {
	if want <= len(s.mem) {
		return
	}
	size := len(s.mem)
	if size == 0 {
		size = 65536
	}
	for size < want {
		size *= 2
	}

	next, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(fmt.Errorf("osomasm: mmap executable sink of size %d: %w", size, err))
	}
	copy(next, s.mem[:s.size])
	if s.mem != nil {
		if err := unix.Munmap(s.mem[:cap(s.mem)]); err != nil {
			panic(fmt.Errorf("osomasm: munmap old executable sink: %w", err))
		}
	}
	s.mem = next
}
