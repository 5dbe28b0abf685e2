// Package metablock slices a torrent's bencoded info-dict into the fixed
// 16 KiB blocks used by BEP-9 metadata exchange.
package metablock

import "fmt"

// BlockSize is the fixed BEP-9 metadata block size: 16 KiB.
const BlockSize = 16384

// Table is the ordered sequence of metadata blocks backing a single
// info-dict. It holds a reference to the original bytes; no copy is made
// beyond what Block returns.
type Table struct {
	data []byte
}

// New slices data (the bencoded info-dict) into a Table.
func New(data []byte) *Table {
	return &Table{data: data}
}

// Size returns the byte size of the original info-dict.
func (t *Table) Size() int {
	return len(t.data)
}

// Count returns the number of 16 KiB blocks, ⌈Size/BlockSize⌉.
func (t *Table) Count() int {
	return (len(t.data) + BlockSize - 1) / BlockSize
}

// Block returns block i: bytes [i*BlockSize, min((i+1)*BlockSize, Size)).
// All blocks but the last are exactly BlockSize bytes long.
func (t *Table) Block(i int) ([]byte, error) {
	if i < 0 || i >= t.Count() {
		return nil, fmt.Errorf("metablock: index %d out of range [0, %d)", i, t.Count())
	}

	start := i * BlockSize
	end := start + BlockSize
	if end > len(t.data) {
		end = len(t.data)
	}
	return t.data[start:end], nil
}
