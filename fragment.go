package osomasm

import "github.com/RafalSzefler/osom-asm/internal/enc"

// FragmentOrderId is an index into Assembler.fragments. The reference
// implementation uses a raw pointer-like ordinal for this; in a garbage
// collected runtime a plain slice index is simpler and just as stable,
// since the fragment arena only ever grows by appending.
type FragmentOrderId int

type fragmentKind uint8

const (
	fragBytes fragmentKind = iota
	fragShortJump
	fragLongJump
	fragShortJcc
	fragLongJcc
	fragLabelMarker
)

// fragment is one element of the fragment arena: either a run of already
// encoded bytes, a relaxable jump/conditional-jump descriptor whose final
// width is chosen during relaxation, or a marker recording where a label
// was defined in program order.
type fragment struct {
	kind   fragmentKind
	bytes  []byte
	target Label
	cond   Condition
}

// length returns the fragment's current byte width. For fragBytes this is
// simply len(bytes); for relaxable kinds it is the fixed width of whichever
// form (short or long) the fragment currently holds.
func (f *fragment) length() int32 {
	switch f.kind {
	case fragBytes:
		return int32(len(f.bytes))
	case fragShortJump:
		return enc.ShortJumpLen
	case fragLongJump:
		return enc.LongJumpLen
	case fragShortJcc:
		return enc.ShortCondJumpLen
	case fragLongJcc:
		return enc.LongCondJumpLen
	case fragLabelMarker:
		return 0
	default:
		panic("osomasm: invalid fragment kind")
	}
}

// PatchableImm32Instruction records a RIP-relative disp32 slot that was
// encoded with a placeholder zero displacement and must be overwritten once
// every label position is known. slotOffset locates the disp32 itself;
// instrEnd marks the end of the whole instruction, which is the RIP base
// the displacement is computed against. The two differ for the mem,imm
// instruction shapes, whose trailing immediate sits between the disp32
// and the instruction's end.
type PatchableImm32Instruction struct {
	fragment    FragmentOrderId
	slotOffset  int
	instrEnd    int
	targetLabel Label
}
