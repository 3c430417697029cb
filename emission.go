package osomasm

import "io"

// Assemble runs relaxation, resolves every label and RIP-relative/call
// reference, and writes the finished machine code to sink. The Assembler
// is single-use: a second call returns ErrAlreadyAssembled.
func (a *Assembler) Assemble(sink io.Writer) (EmissionData, error) {
	if a.assembled {
		return EmissionData{}, assembleErr(ErrAlreadyAssembled, "assembler already consumed")
	}
	a.assembled = true

	if err := a.relax(); err != nil {
		return EmissionData{}, err
	}

	labelPos, err := a.resolve()
	if err != nil {
		return EmissionData{}, err
	}

	var written int32
	for i := range a.fragments {
		b := a.fragments[i].bytes
		if len(b) == 0 {
			continue
		}
		n, err := sink.Write(b)
		if err != nil {
			return EmissionData{}, assembleIOErr(err)
		}
		if n != len(b) {
			return EmissionData{}, assembleIOErr(io.ErrShortWrite)
		}
		written += int32(n)
	}

	publicPositions := make(map[Label]int32, len(a.publicLabels))
	for l := range a.publicLabels {
		pos, ok := labelPos[l]
		if !ok {
			return EmissionData{}, assembleErr(ErrInternalInconsistency, "public label %s has no resolved position", l)
		}
		publicPositions[l] = pos
	}

	return EmissionData{EmittedBytes: written, PublicLabelPositions: publicPositions}, nil
}
