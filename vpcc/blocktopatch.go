package vpcc

// Orientation mirrors VPCCDatatypes121.h's PatchOrientation enum.
type Orientation uint32

const (
	OrientationDefault Orientation = iota
	OrientationSwap
	OrientationRot90
	OrientationRot180
	OrientationRot270
	OrientationMirror
	OrientationMRot90
	OrientationMRot180
	OrientationMRot270
)

// canvasBlockPosition maps an occupancy-map block position (bu, bv) within
// a patch's bounding box to its position on the shared canvas, per the
// orientation transform table in spec.md §4.3.6. (u0, v0) is the patch's
// canvas origin; (su0, sv0) is its bounding box size in blocks.
func canvasBlockPosition(o Orientation, u0, v0, su0, sv0, bu, bv uint32) (uint32, uint32) {
	switch o {
	case OrientationDefault:
		return u0 + bu, v0 + bv
	case OrientationRot90:
		return u0 + (sv0 - 1 - bv), v0 + bu
	case OrientationRot180:
		return u0 + (su0 - 1 - bu), v0 + (sv0 - 1 - bv)
	case OrientationRot270:
		return u0 + bv, v0 + (su0 - 1 - bu)
	case OrientationMirror:
		return u0 + (su0 - 1 - bu), v0 + bv
	case OrientationMRot90:
		return u0 + (sv0 - 1 - bv), v0 + (su0 - 1 - bu)
	case OrientationMRot180:
		return u0 + bu, v0 + (sv0 - 1 - bv)
	case OrientationMRot270, OrientationSwap:
		return u0 + bv, v0 + bu
	default:
		return u0 + bu, v0 + bv
	}
}

// BuildBlockToPatchMap writes patch_index+1 into a dense
// canvasWidth*canvasHeight map (in occupancy-map blocks, row-major), one
// patch at a time in patch order, per spec.md §4.3.6. precedenceOrder
// selects first-writer-wins (when set) over the default last-writer-wins.
func BuildBlockToPatchMap(patches []Patch, canvasWidth, canvasHeight uint32, precedenceOrder bool) []uint32 {
	m := make([]uint32, canvasWidth*canvasHeight)

	for idx, patch := range patches {
		o := Orientation(patch.Orientation)
		for bv := uint32(0); bv < patch.SizeV0; bv++ {
			for bu := uint32(0); bu < patch.SizeU0; bu++ {
				x, y := canvasBlockPosition(o, patch.U0, patch.V0, patch.SizeU0, patch.SizeV0, bu, bv)
				if x >= canvasWidth || y >= canvasHeight {
					continue
				}
				pos := y*canvasWidth + x
				if precedenceOrder && m[pos] != 0 {
					continue
				}
				m[pos] = uint32(idx) + 1
			}
		}
	}

	return m
}
