package osomasm

import "github.com/RafalSzefler/osom-asm/internal/enc"

// relaxationMargin shrinks the imm8 range used when deciding whether a
// short jump still fits. The constant is carried over from the reference
// implementation's relaxation loop, which shifts both ends of its test
// interval by 3 — but the quantity it tests is arranged so that the
// shift cancels out, leaving the plain [-128, 127] displacement check.
// Here the margin is applied to the true displacement directly, so this
// pass is strictly more conservative than the original: a displacement
// within 3 bytes of either end of the imm8 range is promoted to the
// long form even though the short form would still fit. Promotion is
// always sound; the only cost is an occasional needlessly wide
// encoding.
const relaxationMargin = 3

// fragmentPositions computes the absolute byte offset of every fragment's
// start, given fragments' current (possibly still-short) widths.
func (a *Assembler) fragmentPositions() []int32 {
	positions := make([]int32, len(a.fragments))
	var running int32
	for i := range a.fragments {
		positions[i] = running
		running += a.fragments[i].length()
	}
	return positions
}

// tentativeLabelPositions computes each label's current byte offset,
// including labels whose positions were fixed externally via
// WithPredefinedLabels.
func (a *Assembler) tentativeLabelPositions(fragPositions []int32) map[Label]int32 {
	result := make(map[Label]int32, len(a.predefinedLabels)+len(a.publicLabels))
	for l, pos := range a.predefinedLabels {
		result[l] = pos
	}
	for i := range a.fragments {
		if a.fragments[i].kind == fragLabelMarker {
			result[a.fragments[i].target] = fragPositions[i]
		}
	}
	return result
}

// relax runs the promotion-only fixed-point pass: short jumps are promoted
// to long whenever their displacement might not fit an imm8, and the pass
// repeats until nothing changes. Fragments are never demoted back to short
// once promoted; that is what guarantees the loop terminates, since
// fragment widths only ever grow and are bounded above by the long form's
// width.
func (a *Assembler) relax() error {
	if !a.relaxEnabled {
		for i := range a.fragments {
			switch a.fragments[i].kind {
			case fragShortJump:
				a.fragments[i].kind = fragLongJump
			case fragShortJcc:
				a.fragments[i].kind = fragLongJcc
			}
		}
		return nil
	}

	for {
		positions := a.fragmentPositions()
		labelPos := a.tentativeLabelPositions(positions)

		changed := false
		for i := range a.fragments {
			f := &a.fragments[i]

			var shortLen int32
			var newKind fragmentKind
			switch f.kind {
			case fragShortJump:
				shortLen, newKind = enc.ShortJumpLen, fragLongJump
			case fragShortJcc:
				shortLen, newKind = enc.ShortCondJumpLen, fragLongJcc
			default:
				continue
			}

			targetPos, ok := labelPos[f.target]
			if !ok {
				return assembleErr(ErrLabelNotSet, "label %s referenced but never defined", f.target)
			}

			// Displacement is relative to the address immediately after
			// the short-form instruction; if that doesn't fit within
			// margin, promoting is always safe since the long form's
			// range covers every displacement the short form could ever
			// need to reach.
			rel := int64(targetPos) - int64(positions[i]+shortLen)
			if rel > int64(127-relaxationMargin) || rel < int64(-128+relaxationMargin) {
				f.kind = newKind
				changed = true
			}
		}

		if !changed {
			return nil
		}
	}
}
