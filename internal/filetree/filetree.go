// Package filetree turns a torrent's flat (path, length) file list into a
// dense, ID-indexed tree of file and directory nodes, each carrying its
// byte offset, size, and the piece-set that covers it.
package filetree

import (
	"fmt"
	"path"
	"strings"

	"github.com/kavyasharma/tormeta/internal/mask"
	"github.com/kavyasharma/tormeta/internal/pieceset"
)

// Kind distinguishes a file leaf from a directory.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

// Node is one entry of the file tree, addressed by its Nodes-array index.
type Node struct {
	ID           int
	Kind         Kind
	RelativePath string
	DisplayName  string
	Children     []int
	ChildCount   int
	Size         int64
	Offset       int64
	PieceMask    pieceset.Set
}

// Entry is one line of the metainfo file list, in declared order.
type Entry struct {
	Path   string
	Length int64
}

// Tree is the dense arena of Nodes; RootID is always 0.
type Tree struct {
	Nodes  []Node
	RootID int
}

// buildRecord is a Stage 1 flat record before directory insertion.
type buildRecord struct {
	path   string
	offset int64
	length int64
}

// buildNode is a mutable pre-ID node used while assembling the tree; it is
// converted to the dense, pre-order-numbered Node array in the final stage.
type buildNode struct {
	kind     Kind
	path     string
	offset   int64
	size     int64
	children []*buildNode
}

// Build runs the five-stage construction algorithm: flat records, directory
// insertion, synthetic root, piece-mask computation, and pre-order ID
// assignment. entries must be in metainfo declaration order.
func Build(pieceLen int64, entries []Entry) (*Tree, error) {
	if pieceLen < 1 {
		panic("filetree: piece length must be >= 1")
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("filetree: empty file list")
	}

	// Stage 1: flat records with running offsets.
	records := make([]buildRecord, len(entries))
	var offset int64
	for i, e := range entries {
		if e.Length < 0 {
			return nil, fmt.Errorf("filetree: entry %q has negative length", e.Path)
		}
		records[i] = buildRecord{path: e.Path, offset: offset, length: e.Length}
		offset += e.Length
	}
	totalLen := offset

	// Stage 2: insert directory nodes.
	root := &buildNode{kind: KindDirectory, path: ""}
	for _, rec := range records {
		leaf := &buildNode{kind: KindFile, path: rec.path, offset: rec.offset, size: rec.length}
		insert(root, "", dirname(rec.path), leaf)
	}
	computeDirSizes(root)

	// Stage 3: root is already synthetic (created above); set its span.
	root.offset = 0
	root.size = totalLen

	// Stage 4 + 5: assign pre-order IDs and compute piece masks as we go.
	var nodes []Node
	var assign func(n *buildNode) int
	assign = func(n *buildNode) int {
		id := len(nodes)
		nodes = append(nodes, Node{}) // reserve slot
		childIDs := make([]int, 0, len(n.children))
		for _, c := range n.children {
			childIDs = append(childIDs, assign(c))
		}

		pm, err := mask.Build(n.offset, n.size, pieceLen, totalLen)
		if err != nil {
			panic(fmt.Sprintf("filetree: mask build for %q: %v", n.path, err))
		}

		descendants := 0
		for _, cid := range childIDs {
			descendants += 1 + nodes[cid].ChildCount
		}

		nodes[id] = Node{
			ID:           id,
			Kind:         n.kind,
			RelativePath: n.path,
			DisplayName:  basename(n.path),
			Children:     childIDs,
			ChildCount:   descendants,
			Size:         n.size,
			Offset:       n.offset,
			PieceMask:    pm,
		}
		return id
	}
	assign(root)

	return &Tree{Nodes: nodes, RootID: 0}, nil
}

// insert places leaf into the tree rooted at cur (whose path is curPath),
// descending or creating directory nodes as needed so that leaf ends up as
// a child of the directory named dir.
func insert(cur *buildNode, curPath, dir string, leaf *buildNode) {
	for {
		if dir == curPath {
			cur.children = append(cur.children, leaf)
			return
		}

		if isPrefixDir(curPath, dir) {
			next := firstComponentAfter(curPath, dir)
			nextPath := joinPath(curPath, next)

			var child *buildNode
			for _, c := range cur.children {
				if c.kind == KindDirectory && c.path == nextPath {
					child = c
					break
				}
			}
			if child == nil {
				child = &buildNode{kind: KindDirectory, path: nextPath, offset: leaf.offset}
				cur.children = append(cur.children, child)
			}
			cur = child
			curPath = nextPath
			continue
		}

		// dir is not curPath and curPath is not a prefix of dir: this
		// only happens when called at the top level on fresh subtrees,
		// which never occurs given Build always starts from root ("").
		panic(fmt.Sprintf("filetree: %q is not reachable from %q", dir, curPath))
	}
}

// computeDirSizes assigns size and offset to every directory node as
// [min child offset, max child offset+size), post-order.
func computeDirSizes(n *buildNode) {
	if n.kind == KindFile {
		return
	}
	for _, c := range n.children {
		computeDirSizes(c)
	}
	if len(n.children) == 0 {
		return
	}
	first := n.children[0]
	last := n.children[len(n.children)-1]
	n.offset = first.offset
	n.size = last.offset + last.size - first.offset
}

// dirname returns p's parent path component: dirname("a") = "",
// dirname("a/b") = "a".
func dirname(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// basename returns the final path component.
func basename(p string) string {
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// joinPath joins base and name with "/", unless base is empty in which
// case the tail is returned verbatim (no leading separator).
func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}

// isPrefixDir reports whether dir is curPath itself extended by one or
// more components (curPath is a strict prefix of dir at a "/" boundary, or
// curPath is "" and dir is non-empty).
func isPrefixDir(curPath, dir string) bool {
	if curPath == "" {
		return dir != ""
	}
	return strings.HasPrefix(dir, curPath+"/")
}

// firstComponentAfter returns the next path component of dir immediately
// following curPath.
func firstComponentAfter(curPath, dir string) string {
	rest := dir
	if curPath != "" {
		rest = dir[len(curPath)+1:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}
