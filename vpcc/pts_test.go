package vpcc

import "testing"

func TestDefaultPTSFuncSequence(t *testing.T) {
	t.Parallel()

	want := make([]int64, 40)
	for i := 0; i < 32; i++ {
		want[i] = int64(i)
	}
	for i := 32; i < 40; i++ {
		want[i] = 100 + int64(i-32)
	}

	for total := 0; total < 40; total++ {
		got := DefaultPTSFunc(total, total)
		if got != want[total] {
			t.Errorf("DefaultPTSFunc(%d, %d) = %d, want %d", total, total, got, want[total])
		}
	}
}
