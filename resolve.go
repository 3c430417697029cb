package osomasm

import (
	"encoding/binary"
	"math"

	"github.com/RafalSzefler/osom-asm/internal/enc"
)

// resolve runs after relax has reached its fixed point: it materializes
// the final bytes for every relaxable jump/jcc fragment now that their
// widths are frozen, and back-patches every RIP-relative and relative-call
// disp32 slot recorded during Emit.
func (a *Assembler) resolve() (map[Label]int32, error) {
	positions := a.fragmentPositions()
	labelPos := a.tentativeLabelPositions(positions)

	for i := range a.fragments {
		f := &a.fragments[i]

		var cond Condition
		switch f.kind {
		case fragShortJump, fragLongJump:
		case fragShortJcc, fragLongJcc:
			cond = f.cond
		default:
			continue
		}

		targetPos, ok := labelPos[f.target]
		if !ok {
			return nil, assembleErr(ErrLabelNotSet, "label %s referenced but never defined", f.target)
		}

		switch f.kind {
		case fragShortJump:
			rel := int64(targetPos) - int64(positions[i]+enc.ShortJumpLen)
			if rel < math.MinInt8 || rel > math.MaxInt8 {
				return nil, assembleErr(ErrInternalInconsistency, "short jump to %s out of range after relaxation", f.target)
			}
			e := enc.EncodeJmpImm8(int8(rel))
			f.bytes = e.Bytes()
		case fragLongJump:
			rel := int64(targetPos) - int64(positions[i]+enc.LongJumpLen)
			if rel < math.MinInt32 || rel > math.MaxInt32 {
				return nil, assembleErr(ErrDisplacementOutOfRange, "jump to %s displacement out of range", f.target)
			}
			e := enc.EncodeJmpImm32(int32(rel))
			f.bytes = e.Bytes()
		case fragShortJcc:
			rel := int64(targetPos) - int64(positions[i]+enc.ShortCondJumpLen)
			if rel < math.MinInt8 || rel > math.MaxInt8 {
				return nil, assembleErr(ErrInternalInconsistency, "short jcc to %s out of range after relaxation", f.target)
			}
			e := enc.EncodeJccImm8(cond, int8(rel))
			f.bytes = e.Bytes()
		case fragLongJcc:
			rel := int64(targetPos) - int64(positions[i]+enc.LongCondJumpLen)
			if rel < math.MinInt32 || rel > math.MaxInt32 {
				return nil, assembleErr(ErrDisplacementOutOfRange, "jcc to %s displacement out of range", f.target)
			}
			e := enc.EncodeJccImm32(cond, int32(rel))
			f.bytes = e.Bytes()
		}
	}

	for _, patch := range a.pendingPatches {
		targetPos, ok := labelPos[patch.targetLabel]
		if !ok {
			return nil, assembleErr(ErrLabelNotSet, "label %s referenced but never defined", patch.targetLabel)
		}
		fragPos := positions[patch.fragment]
		nextInstrAddr := int64(fragPos) + int64(patch.instrEnd)
		rel := int64(targetPos) - nextInstrAddr
		if rel < math.MinInt32 || rel > math.MaxInt32 {
			return nil, assembleErr(ErrDisplacementOutOfRange, "rip-relative reference to %s displacement out of range", patch.targetLabel)
		}
		bytes := a.fragments[patch.fragment].bytes
		binary.LittleEndian.PutUint32(bytes[patch.slotOffset:patch.slotOffset+4], uint32(int32(rel)))
	}

	return labelPos, nil
}
