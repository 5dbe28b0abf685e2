package filetree

import "github.com/kavyasharma/tormeta/internal/pieceset"

// Record is one row of a flattened node listing used by MinimizeRecords: a
// node id paired with the byte range it covers.
type Record struct {
	ID     int
	Offset int64
	Size   int64
}

// MinimizeRecords drops any record whose offset lies within the byte range
// of the previously kept record, preserving the order of records. Callers
// must supply records in tree order (parents before the descendants their
// range subsumes).
func MinimizeRecords(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}

	kept := make([]Record, 0, len(records))
	kept = append(kept, records[0])

	for _, rec := range records[1:] {
		last := kept[len(kept)-1]
		if rec.Offset >= last.Offset && rec.Offset < last.Offset+last.Size {
			continue
		}
		kept = append(kept, rec)
	}

	return kept
}

// MaskToFileList returns the minimal list of node ids, in depth-first
// order, whose piece-masks union to a superset of mask: descend from root,
// emitting any fully-contained node without recursing further.
func (tree *Tree) MaskToFileList(mask pieceset.Set) []int {
	var out []int
	var visit func(id int)
	visit = func(id int) {
		n := &tree.Nodes[id]
		if n.PieceMask.Difference(mask).IsEmpty() {
			out = append(out, id)
			return
		}
		for _, cid := range n.Children {
			visit(cid)
		}
	}
	visit(tree.RootID)
	return out
}
