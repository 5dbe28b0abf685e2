// Package infosvc implements the single-writer, many-reader info service:
// the indexed, immutable view over a torrent's file tree and metadata
// blocks that every other subsystem queries.
//
// Construction runs to completion before any reader observes the service;
// afterwards all state is immutable. Reads are serialized through a single
// mailbox goroutine, though nothing here actually requires the
// serialization; it keeps cancellation and ordering uniform with the rest
// of the system.
package infosvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kavyasharma/tormeta/internal/filetree"
	"github.com/kavyasharma/tormeta/internal/mask"
	"github.com/kavyasharma/tormeta/internal/metablock"
	"github.com/kavyasharma/tormeta/internal/metainfo"
	"github.com/kavyasharma/tormeta/internal/pieceset"
)

var (
	ErrBadID      = errors.New("infosvc: node id out of range")
	ErrRangeError = errors.New("infosvc: byte range out of bounds")
)

// BadPieceError reports a metadata block index out of range.
type BadPieceError struct {
	Index int
}

func (e *BadPieceError) Error() string {
	return fmt.Sprintf("infosvc: piece index %d out of range", e.Index)
}

// ChildSummary is one row of TreeChildren's result.
type ChildSummary struct {
	ID       int
	Name     string
	Size     int64
	Capacity int
	IsLeaf   bool
	Progress float64
}

// Service is the constructed, immutable info service for one torrent.
type Service struct {
	tree      *filetree.Tree
	info      *metainfo.Info
	blocks    *metablock.Table
	chunkSize int

	reqCh chan request
	done  chan struct{}
}

type request struct {
	fn   func() (any, error)
	resp chan result
}

type result struct {
	val any
	err error
}

// New constructs the info service for mi, slicing its raw info-dict into
// metadata blocks and building the file tree. chunkSize is the download
// chunk size reported by ChunkSize (not the fixed 16384-byte metadata
// block size).
func New(mi *metainfo.Metainfo, chunkSize int) (*Service, error) {
	tree, err := filetree.Build(mi.Info.PieceLength, toEntries(mi.Info.FileList()))
	if err != nil {
		return nil, fmt.Errorf("infosvc: building file tree: %w", err)
	}

	svc := &Service{
		tree:      tree,
		info:      mi.Info,
		blocks:    metablock.New(mi.Info.Raw),
		chunkSize: chunkSize,
		reqCh:     make(chan request),
		done:      make(chan struct{}),
	}

	go svc.run()
	return svc, nil
}

func toEntries(files []struct {
	Path   string
	Length int64
}) []filetree.Entry {
	entries := make([]filetree.Entry, len(files))
	for i, f := range files {
		entries[i] = filetree.Entry{Path: f.Path, Length: f.Length}
	}
	return entries
}

func (s *Service) run() {
	for {
		select {
		case req := <-s.reqCh:
			val, err := req.fn()
			req.resp <- result{val: val, err: err}
		case <-s.done:
			return
		}
	}
}

// Close shuts the service down, releasing its mailbox goroutine. Readers
// with outstanding calls receive a context-cancellation-style failure;
// callers must not invoke further operations afterwards.
func (s *Service) Close() {
	close(s.done)
}

func (s *Service) call(ctx context.Context, fn func() (any, error)) (any, error) {
	respCh := make(chan result, 1)
	select {
	case s.reqCh <- request{fn: fn, resp: respCh}:
	case <-s.done:
		return nil, fmt.Errorf("infosvc: service closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-respCh:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) node(id int) (*filetree.Node, error) {
	if id < 0 || id >= len(s.tree.Nodes) {
		return nil, ErrBadID
	}
	return &s.tree.Nodes[id], nil
}

// PieceSize returns the torrent's piece length.
func (s *Service) PieceSize() int64 { return s.info.PieceLength }

// ChunkSize returns the configured download chunk size.
func (s *Service) ChunkSize() int { return s.chunkSize }

// PieceCount returns the torrent's piece count.
func (s *Service) PieceCount() int {
	return mask.PieceCount(s.info.TotalLength(), s.info.PieceLength)
}

// MetadataSize returns the byte size of the bencoded info-dict.
func (s *Service) MetadataSize() int { return s.blocks.Size() }

// Position returns the byte offset of node id.
func (s *Service) Position(ctx context.Context, id int) (int64, error) {
	v, err := s.call(ctx, func() (any, error) {
		n, err := s.node(id)
		if err != nil {
			return int64(0), err
		}
		return n.Offset, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Size returns the byte size of node id.
func (s *Service) Size(ctx context.Context, id int) (int64, error) {
	v, err := s.call(ctx, func() (any, error) {
		n, err := s.node(id)
		if err != nil {
			return int64(0), err
		}
		return n.Size, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// FileName returns the relative path of node id.
func (s *Service) FileName(ctx context.Context, id int) (string, error) {
	v, err := s.call(ctx, func() (any, error) {
		n, err := s.node(id)
		if err != nil {
			return "", err
		}
		return n.RelativePath, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// LongFileName joins the relative paths of ids with ", ", the separator
// expected by the UI layer that renders multi-file selections.
func (s *Service) LongFileName(ctx context.Context, ids []int) (string, error) {
	v, err := s.call(ctx, func() (any, error) {
		names := make([]string, len(ids))
		for i, id := range ids {
			n, err := s.node(id)
			if err != nil {
				return "", err
			}
			names[i] = n.RelativePath
		}
		return strings.Join(names, ", "), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// TreeChildren returns a summary of id's direct children. validPieces is
// supplied by the download controller and used only to compute Progress.
func (s *Service) TreeChildren(ctx context.Context, id int, validPieces pieceset.Set) ([]ChildSummary, error) {
	v, err := s.call(ctx, func() (any, error) {
		n, err := s.node(id)
		if err != nil {
			return nil, err
		}

		out := make([]ChildSummary, len(n.Children))
		for i, cid := range n.Children {
			c := s.tree.Nodes[cid]
			out[i] = ChildSummary{
				ID:       c.ID,
				Name:     c.DisplayName,
				Size:     c.Size,
				Capacity: c.ChildCount,
				IsLeaf:   c.Kind == filetree.KindFile,
				Progress: progress(c.PieceMask, validPieces),
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ChildSummary), nil
}

func progress(nodeMask, validPieces pieceset.Set) float64 {
	total := nodeMask.Size()
	if total == 0 {
		return 1.0
	}
	have := nodeMask.Intersect(validPieces).Size()
	return float64(have) / float64(total)
}

// GetMask returns the piece-set of node id.
func (s *Service) GetMask(ctx context.Context, id int) (pieceset.Set, error) {
	v, err := s.call(ctx, func() (any, error) {
		n, err := s.node(id)
		if err != nil {
			return pieceset.Set{}, err
		}
		return n.PieceMask, nil
	})
	if err != nil {
		return pieceset.Set{}, err
	}
	return v.(pieceset.Set), nil
}

// GetMaskUnion returns the union of the piece-sets of ids, or an empty
// mask of the torrent's piece count if ids is empty.
func (s *Service) GetMaskUnion(ctx context.Context, ids []int) (pieceset.Set, error) {
	v, err := s.call(ctx, func() (any, error) {
		if len(ids) == 0 {
			return pieceset.New(s.PieceCount()), nil
		}
		first, err := s.node(ids[0])
		if err != nil {
			return pieceset.Set{}, err
		}
		union := first.PieceMask
		for _, id := range ids[1:] {
			n, err := s.node(id)
			if err != nil {
				return pieceset.Set{}, err
			}
			union = union.Union(n.PieceMask)
		}
		return union, nil
	})
	if err != nil {
		return pieceset.Set{}, err
	}
	return v.(pieceset.Set), nil
}

// GetMaskRange returns the piece-set covering [partStart, partStart+partLen)
// within node id's byte range. A sub-range extending past the node's size
// is rejected with ErrRangeError rather than silently masking adjacent
// files.
func (s *Service) GetMaskRange(ctx context.Context, id int, partStart, partLen int64) (pieceset.Set, error) {
	v, err := s.call(ctx, func() (any, error) {
		n, err := s.node(id)
		if err != nil {
			return pieceset.Set{}, err
		}
		if partStart < 0 || partLen < 0 || partStart+partLen > n.Size {
			return pieceset.Set{}, ErrRangeError
		}
		return mask.Build(n.Offset+partStart, partLen, s.info.PieceLength, s.info.TotalLength())
	})
	if err != nil {
		return pieceset.Set{}, err
	}
	return v.(pieceset.Set), nil
}

// MaskToFileList returns the minimal list of node ids whose piece-masks
// cover m.
func (s *Service) MaskToFileList(ctx context.Context, m pieceset.Set) ([]int, error) {
	v, err := s.call(ctx, func() (any, error) {
		return s.tree.MaskToFileList(m), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]int), nil
}

// MinimizeFileList drops any id whose byte range is contained within an
// earlier id's range, preserving the union of piece-sets.
func (s *Service) MinimizeFileList(ctx context.Context, ids []int) ([]int, error) {
	v, err := s.call(ctx, func() (any, error) {
		records := make([]filetree.Record, len(ids))
		for i, id := range ids {
			n, err := s.node(id)
			if err != nil {
				return nil, err
			}
			records[i] = filetree.Record{ID: id, Offset: n.Offset, Size: n.Size}
		}

		kept := filetree.MinimizeRecords(records)
		out := make([]int, len(kept))
		for i, r := range kept {
			out[i] = r.ID
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]int), nil
}

// GetPiece returns the bytes of metadata block i.
func (s *Service) GetPiece(ctx context.Context, i int) ([]byte, error) {
	v, err := s.call(ctx, func() (any, error) {
		blk, err := s.blocks.Block(i)
		if err != nil {
			return nil, &BadPieceError{Index: i}
		}
		return blk, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
