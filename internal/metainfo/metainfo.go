// Package metainfo decodes a torrent's bencoded metainfo dictionary into
// the typed Info the file tree builder and metadata slicer consume.
package metainfo

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/kavyasharma/tormeta/internal/bencode"
	"github.com/kavyasharma/tormeta/internal/cast"
)

// File is a single entry of a multi-file torrent's "files" list, in
// declared metainfo order.
type File struct {
	Length int64
	Path   []string
}

// RelativePath joins Path into the slash-separated relative path used
// throughout the file tree (never a leading separator).
func (f File) RelativePath() string {
	return strings.Join(f.Path, "/")
}

// Info is the decoded "info" dictionary: everything the file tree builder
// and the BEP-9 metadata slicer need.
type Info struct {
	Hash        [sha1.Size]byte
	Name        string
	PieceLength int64
	Pieces      [][sha1.Size]byte
	Private     bool

	// Length is set for single-file torrents; Files is set for
	// multi-file torrents. Exactly one is populated.
	Length int64
	Files  []File

	// Raw holds the bencoded info dictionary, the input to the BEP-9
	// metadata slicer and to Hash. It is the canonical re-encoding of the
	// decoded dictionary (keys sorted), not a slice of the input: it equals
	// the original bytes only when the original was canonically encoded.
	Raw []byte
}

// TotalLength returns the torrent's total content length.
func (in *Info) TotalLength() int64 {
	if len(in.Files) == 0 {
		return in.Length
	}
	var sum int64
	for _, f := range in.Files {
		sum += f.Length
	}
	return sum
}

// FileList returns the (relative path, length) pairs the file tree builder
// consumes, in metainfo declaration order.
func (in *Info) FileList() []struct {
	Path   string
	Length int64
} {
	if len(in.Files) == 0 {
		return []struct {
			Path   string
			Length int64
		}{{Path: in.Name, Length: in.Length}}
	}

	out := make([]struct {
		Path   string
		Length int64
	}, len(in.Files))
	for i, f := range in.Files {
		out[i] = struct {
			Path   string
			Length int64
		}{Path: path.Join(append([]string{in.Name}, f.Path...)...), Length: f.Length}
	}
	return out
}

// Metainfo is the decoded top-level torrent metainfo dictionary.
type Metainfo struct {
	Info         *Info
	Announce     string
	AnnounceList [][]string
	CreationDate time.Time
	CreatedBy    string
	Comment      string
}

var (
	ErrTopLevelNotDict     = errors.New("metainfo: top-level is not a dict")
	ErrInfoMissing         = errors.New("metainfo: 'info' missing")
	ErrInfoNotDict         = errors.New("metainfo: 'info' is not a dict")
	ErrNameMissing         = errors.New("metainfo: 'info' name missing")
	ErrPieceLenMissing     = errors.New("metainfo: 'info' piece length missing")
	ErrPieceLenNonPositive = errors.New("metainfo: 'info' piece length must be > 0")
	ErrPiecesMissing       = errors.New("metainfo: 'info' pieces missing")
	ErrPiecesLenInvalid    = errors.New("metainfo: 'info' pieces length not a multiple of 20")
	ErrLayoutInvalid       = errors.New("metainfo: invalid single/multi-file layout")
)

// Parse decodes a complete .torrent file's bytes.
func Parse(data []byte) (*Metainfo, error) {
	raw, err := bencode.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	root, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrTopLevelNotDict
	}

	announce, _ := optionalString(root["announce"])

	var announceList [][]string
	if v, ok := root["announce-list"]; ok {
		announceList, err = cast.ToTieredStrings(v)
		if err != nil {
			return nil, fmt.Errorf("metainfo: invalid 'announce-list': %w", err)
		}
	}

	var creationDate time.Time
	if v, ok := root["creation date"]; ok {
		secs, err := cast.ToInt(v)
		if err == nil && secs >= 0 {
			creationDate = time.Unix(secs, 0).UTC()
		}
	}
	createdBy, _ := optionalString(root["created by"])
	comment, _ := optionalString(root["comment"])

	info, err := parseInfo(root["info"])
	if err != nil {
		return nil, err
	}

	return &Metainfo{
		Info:         info,
		Announce:     announce,
		AnnounceList: announceList,
		CreationDate: creationDate,
		CreatedBy:    createdBy,
		Comment:      comment,
	}, nil
}

// ParseInfo decodes a standalone bencoded info dictionary, the input to
// BEP-9 metadata exchange where only the info-dict (not the full
// metainfo) is transferred.
func ParseInfo(data []byte) (*Info, error) {
	raw, err := bencode.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return parseInfo(raw)
}

func parseInfo(anyInfo any) (*Info, error) {
	if anyInfo == nil {
		return nil, ErrInfoMissing
	}
	dict, ok := anyInfo.(map[string]any)
	if !ok {
		return nil, ErrInfoNotDict
	}

	raw, err := bencode.Marshal(dict)
	if err != nil {
		return nil, fmt.Errorf("metainfo: re-encoding info dict: %w", err)
	}

	var out Info
	out.Hash = sha1.Sum(raw)
	out.Raw = raw

	nameVal, ok := dict["name"]
	if !ok {
		return nil, ErrNameMissing
	}
	out.Name, err = cast.ToString(nameVal)
	if err != nil || out.Name == "" {
		return nil, fmt.Errorf("metainfo: invalid 'name': %w", err)
	}

	plVal, ok := dict["piece length"]
	if !ok {
		return nil, ErrPieceLenMissing
	}
	out.PieceLength, err = cast.ToInt(plVal)
	if err != nil || out.PieceLength <= 0 {
		return nil, ErrPieceLenNonPositive
	}

	out.Pieces, err = parsePieces(dict["pieces"])
	if err != nil {
		return nil, err
	}

	if v, ok := dict["private"]; ok {
		p, err := cast.ToInt(v)
		if err != nil || (p != 0 && p != 1) {
			return nil, fmt.Errorf("metainfo: invalid 'private' flag")
		}
		out.Private = p == 1
	}

	lengthVal, hasLength := dict["length"]
	filesVal, hasFiles := dict["files"]

	switch {
	case hasLength && !hasFiles:
		out.Length, err = cast.ToInt(lengthVal)
		if err != nil || out.Length < 0 {
			return nil, fmt.Errorf("metainfo: invalid 'length'")
		}
	case hasFiles && !hasLength:
		out.Files, err = parseFiles(filesVal)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrLayoutInvalid
	}

	return &out, nil
}

func parseFiles(v any) ([]File, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("metainfo: invalid or empty 'files'")
	}

	files := make([]File, 0, len(arr))
	for i, it := range arr {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("metainfo: files[%d]: not a dict", i)
		}

		fl, ok := m["length"]
		if !ok {
			return nil, fmt.Errorf("metainfo: files[%d]: length missing", i)
		}
		ln, err := cast.ToInt(fl)
		if err != nil || ln < 0 {
			return nil, fmt.Errorf("metainfo: files[%d]: invalid length", i)
		}

		rawPath, ok := m["path"]
		if !ok {
			return nil, fmt.Errorf("metainfo: files[%d]: path missing", i)
		}
		segments, err := cast.ToStringSlice(rawPath)
		if err != nil || len(segments) == 0 {
			return nil, fmt.Errorf("metainfo: files[%d]: invalid path", i)
		}

		files = append(files, File{Length: ln, Path: segments})
	}

	return files, nil
}

func parsePieces(v any) ([][sha1.Size]byte, error) {
	if v == nil {
		return nil, ErrPiecesMissing
	}
	pieceBytes, err := cast.ToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("metainfo: 'pieces': %w", err)
	}
	if len(pieceBytes)%sha1.Size != 0 {
		return nil, ErrPiecesLenInvalid
	}

	n := len(pieceBytes) / sha1.Size
	out := make([][sha1.Size]byte, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], pieceBytes[i*sha1.Size:(i+1)*sha1.Size])
	}
	return out, nil
}

func optionalString(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	return cast.ToString(v)
}
