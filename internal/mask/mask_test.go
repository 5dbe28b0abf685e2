package mask

import "testing"

func TestBuildSingleFile(t *testing.T) {
	s, err := Build(2, 3, 4, 10)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, want := s.ToBitstring(), "110"; got != want {
		t.Fatalf("mask = %q, want %q", got, want)
	}
}

func TestBuildAligned(t *testing.T) {
	s, err := Build(0, 31457280, 1048576, 31457280)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s.Len() != 30 {
		t.Fatalf("Len() = %d, want 30", s.Len())
	}
	if s.Size() != 30 {
		t.Fatalf("Size() = %d, want all 30 pieces set", s.Size())
	}
}

func TestBuildZeroSizeYieldsEmptyMask(t *testing.T) {
	s, err := Build(5, 0, 4, 10)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !s.IsEmpty() {
		t.Fatalf("zero-size file should yield an empty mask, got %q", s.ToBitstring())
	}
	if s.Len() != PieceCount(10, 4) {
		t.Fatalf("Len() = %d, want %d", s.Len(), PieceCount(10, 4))
	}
}

func TestBuildBoundaryPiecesAreShared(t *testing.T) {
	// Two adjacent files both touching piece 1 (piece length 4, file A in
	// [0,5), file B in [5,8)) both mark piece index 1.
	a, err := Build(0, 5, 4, 8)
	if err != nil {
		t.Fatalf("Build a: %v", err)
	}
	b, err := Build(5, 3, 4, 8)
	if err != nil {
		t.Fatalf("Build b: %v", err)
	}

	if !a.Contains(1) || !b.Contains(1) {
		t.Fatalf("boundary piece 1 should be marked for both files: a=%q b=%q",
			a.ToBitstring(), b.ToBitstring())
	}
}

func TestBuildPanicsOnInvalidPieceLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for piece length 0")
		}
	}()
	Build(0, 1, 0, 10)
}

func TestBuildPanicsOnOutOfRangeRequest(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for range exceeding total length")
		}
	}()
	Build(8, 4, 4, 10)
}
