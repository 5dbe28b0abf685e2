package filetree

import "testing"

func TestMinimizeRecordsDropsContained(t *testing.T) {
	records := []Record{
		{ID: 0, Offset: 0, Size: 10},
		{ID: 1, Offset: 2, Size: 3}, // contained in [0,10)
		{ID: 2, Offset: 10, Size: 5},
		{ID: 3, Offset: 12, Size: 1}, // contained in [10,15)
	}

	got := MinimizeRecords(records)
	if len(got) != 2 || got[0].ID != 0 || got[1].ID != 2 {
		t.Fatalf("MinimizeRecords = %+v", got)
	}
}

func TestMinimizeRecordsIsIdempotent(t *testing.T) {
	records := []Record{
		{ID: 0, Offset: 0, Size: 10},
		{ID: 1, Offset: 2, Size: 3},
		{ID: 2, Offset: 10, Size: 5},
	}
	first := MinimizeRecords(records)
	second := MinimizeRecords(first)

	if len(first) != len(second) {
		t.Fatalf("minimize not idempotent: %+v != %+v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("minimize not idempotent at %d: %+v != %+v", i, first[i], second[i])
		}
	}
}

func TestMaskToFileListReturnsRootForUniversalMask(t *testing.T) {
	tree := sampleTree(t)
	root := tree.Nodes[tree.RootID]

	got := tree.MaskToFileList(root.PieceMask)
	if len(got) != 1 || got[0] != tree.RootID {
		t.Fatalf("MaskToFileList(universal) = %v, want [%d]", got, tree.RootID)
	}
}

func TestMaskToFileListDescendsForPartialMask(t *testing.T) {
	// sampleTree's single 8-byte piece gives every node the same mask, so
	// the root would cover t2.txt's mask on its own; piece length 1 makes
	// t2.txt's mask (pieces 3-4) a strict subset of its ancestors' masks.
	tree, err := Build(1, []Entry{
		{Path: "test/t1.txt", Length: 3},
		{Path: "t2.txt", Length: 2},
		{Path: "dir1/dir/x.x", Length: 1},
		{Path: "dir1/dir/x.y", Length: 2},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t2 := findByPath(tree, "t2.txt")
	if t2 == nil {
		t.Fatal("t2.txt not found")
	}

	got := tree.MaskToFileList(t2.PieceMask)
	found := false
	for _, id := range got {
		if id == t2.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("MaskToFileList(t2.txt mask) = %v, expected to contain t2.txt id %d", got, t2.ID)
	}

	u := tree.Nodes[got[0]].PieceMask
	for _, id := range got[1:] {
		u = u.Union(tree.Nodes[id].PieceMask)
	}
	if !t2.PieceMask.Difference(u).IsEmpty() {
		t.Fatalf("returned cover does not contain requested mask")
	}
}

func TestMaskToFileListNoAncestorDescendantPairs(t *testing.T) {
	tree := sampleTree(t)
	dir1 := findByPath(tree, "dir1")

	got := tree.MaskToFileList(dir1.PieceMask)
	ids := make(map[int]bool, len(got))
	for _, id := range got {
		ids[id] = true
	}
	for _, id := range got {
		n := tree.Nodes[id]
		for _, cid := range n.Children {
			if ids[cid] {
				t.Fatalf("result contains both node %d and its child %d", id, cid)
			}
		}
	}
}
