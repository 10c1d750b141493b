package vpcc

import "testing"

func TestBuildBlockToPatchMapDefaultOrientation(t *testing.T) {
	t.Parallel()

	patches := []Patch{{
		U0: 2, V0: 3, SizeU0: 2, SizeV0: 2, Orientation: uint32(OrientationDefault),
	}}

	m := BuildBlockToPatchMap(patches, 16, 16, false)

	want := map[int]bool{
		2 + 16*3: true,
		3 + 16*3: true,
		2 + 16*4: true,
		3 + 16*4: true,
	}
	for i, v := range m {
		if want[i] && v != 1 {
			t.Errorf("index %d = %d, want 1", i, v)
		}
		if !want[i] && v != 0 {
			t.Errorf("index %d = %d, want 0", i, v)
		}
	}
}

func TestBuildBlockToPatchMapRot90(t *testing.T) {
	t.Parallel()

	const u0, v0 = 4, 5
	patches := []Patch{{
		U0: u0, V0: v0, SizeU0: 2, SizeV0: 3, Orientation: uint32(OrientationRot90),
	}}

	m := BuildBlockToPatchMap(patches, 16, 16, false)

	want := [][2]uint32{
		{u0 + 2, v0 + 0},
		{u0 + 2, v0 + 1},
		{u0 + 1, v0 + 0},
		{u0 + 1, v0 + 1},
		{u0 + 0, v0 + 0},
		{u0 + 0, v0 + 1},
	}
	for _, c := range want {
		idx := c[1]*16 + c[0]
		if m[idx] != 1 {
			t.Errorf("cell (%d,%d) = %d, want 1", c[0], c[1], m[idx])
		}
	}
}

func TestBuildBlockToPatchMapPrecedenceOrder(t *testing.T) {
	t.Parallel()

	patches := []Patch{
		{U0: 0, V0: 0, SizeU0: 2, SizeV0: 2, Orientation: uint32(OrientationDefault)},
		{U0: 1, V0: 1, SizeU0: 2, SizeV0: 2, Orientation: uint32(OrientationDefault)},
	}

	firstWriter := BuildBlockToPatchMap(patches, 8, 8, true)
	if firstWriter[1*8+1] != 1 {
		t.Errorf("overlap cell with precedence order = %d, want 1 (first writer)", firstWriter[1*8+1])
	}

	lastWriter := BuildBlockToPatchMap(patches, 8, 8, false)
	if lastWriter[1*8+1] != 2 {
		t.Errorf("overlap cell without precedence order = %d, want 2 (last writer)", lastWriter[1*8+1])
	}
}

func TestPatchAxisConsistency(t *testing.T) {
	t.Parallel()

	for projectionID := uint32(0); projectionID < 6; projectionID++ {
		normal := projectionID % 3
		tangent, bitangent := axesFor(normal)

		seen := map[uint32]bool{normal: true, tangent: true, bitangent: true}
		if len(seen) != 3 {
			t.Errorf("projection_id=%d: (normal,tangent,bitangent)=(%d,%d,%d) not a permutation of {0,1,2}",
				projectionID, normal, tangent, bitangent)
		}
	}
}

func TestBuildBlockToPatchMapDeterministic(t *testing.T) {
	t.Parallel()

	patches := []Patch{
		{U0: 1, V0: 1, SizeU0: 3, SizeV0: 2, Orientation: uint32(OrientationMirror)},
		{U0: 5, V0: 5, SizeU0: 2, SizeV0: 2, Orientation: uint32(OrientationRot180)},
	}

	a := BuildBlockToPatchMap(patches, 16, 16, true)
	b := BuildBlockToPatchMap(patches, 16, 16, true)

	if len(a) != len(b) {
		t.Fatalf("map length changed across runs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("map differs at index %d: %d vs %d", i, a[i], b[i])
		}
	}
}
