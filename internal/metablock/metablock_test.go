package metablock

import (
	"bytes"
	"testing"
)

func TestCountAndSizes(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100000)
	tbl := New(data)

	if tbl.Size() != 100000 {
		t.Fatalf("Size() = %d, want 100000", tbl.Size())
	}
	if tbl.Count() != 7 {
		t.Fatalf("Count() = %d, want 7", tbl.Count())
	}

	for i := 0; i < 6; i++ {
		blk, err := tbl.Block(i)
		if err != nil {
			t.Fatalf("Block(%d): %v", i, err)
		}
		if len(blk) != BlockSize {
			t.Fatalf("Block(%d) len = %d, want %d", i, len(blk), BlockSize)
		}
	}

	last, err := tbl.Block(6)
	if err != nil {
		t.Fatalf("Block(6): %v", err)
	}
	if len(last) != 1696 {
		t.Fatalf("last block len = %d, want 1696", len(last))
	}
}

func TestReassemblyMatchesOriginal(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 5000)
	tbl := New(data)

	var reassembled []byte
	for i := 0; i < tbl.Count(); i++ {
		blk, err := tbl.Block(i)
		if err != nil {
			t.Fatalf("Block(%d): %v", i, err)
		}
		reassembled = append(reassembled, blk...)
	}

	if !bytes.Equal(reassembled, data) {
		t.Fatal("reassembled blocks do not match original data")
	}
}

func TestBlockOutOfRange(t *testing.T) {
	tbl := New([]byte("short"))
	if _, err := tbl.Block(-1); err == nil {
		t.Fatal("expected error for negative index")
	}
	if _, err := tbl.Block(tbl.Count()); err == nil {
		t.Fatal("expected error for index == Count()")
	}
}

func TestEmptyInput(t *testing.T) {
	tbl := New(nil)
	if tbl.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", tbl.Count())
	}
	if _, err := tbl.Block(0); err == nil {
		t.Fatal("expected error on empty table")
	}
}
