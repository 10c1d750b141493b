package vpcc

// VideoPacket is one coded picture's worth of NAL units from a FrameGroup's
// occupancy/geometry/texture stream, mirroring hevc.VideoPacket, per
// spec.md §3/§4.2.
type VideoPacket struct {
	Data   []byte
	IsIRAP bool
	IsIDR  bool
	POC    int32
}

// FrameData is one reconstructed frame: its patches, block-to-patch map,
// and the three byte ranges selecting its occupancy/geometry/texture
// packets from the owning FrameGroup's stream buffers, per spec.md §3.
type FrameData struct {
	Index  int
	Width  int
	Height int
	PTS    int64

	Patches      []Patch
	BlockToPatch []uint32
	CanvasWidth  int
	CanvasHeight int

	OccupancyPacket VideoPacket
	GeometryPacket  VideoPacket
	TexturePacket   VideoPacket

	// RefAFOCList is the list of atlas frame order counts naming the frames
	// this frame's INTER/MERGE/SKIP patches may reference, reconstructed from
	// the active ASPS RefListStruct entries.
	RefAFOCList []int

	// ATGHType records I/P/SKIP purely for diagnostics; it does not
	// affect replay once patches are materialized.
	ATGHType AtlasTileGroupType
}

// FrameGroup is one VPS-delimited run of frames sharing one set of stream
// buffers, per spec.md §3.
type FrameGroup struct {
	Frames []FrameData

	OccupancyStream []byte
	GeometryStream  []byte
	TextureStream   []byte

	FrameWidth  int
	FrameHeight int

	VPS VPS
}
