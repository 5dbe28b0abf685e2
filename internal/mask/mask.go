// Package mask builds the piece-set covering a byte range of a torrent,
// given the torrent's piece length and total size.
package mask

import (
	"fmt"

	"github.com/kavyasharma/tormeta/internal/pieceset"
)

// PieceCount returns the number of pieces needed to cover totalLen bytes
// with pieces of pieceLen bytes (the last piece may be shorter).
func PieceCount(totalLen, pieceLen int64) int {
	return int((totalLen + pieceLen - 1) / pieceLen)
}

// Build computes the piece-set covering the byte range [from, from+size)
// of a torrent pieceLen bytes per piece and totalLen bytes long.
//
// Preconditions (violations are programmer errors and panic, matching the
// "Non-errors terminate construction" policy for invariant violations):
// pieceLen >= 1, pieceLen <= totalLen, size <= totalLen, from >= 0,
// from+size <= totalLen.
func Build(from, size, pieceLen, totalLen int64) (pieceset.Set, error) {
	if pieceLen < 1 {
		panic("mask: piece length must be >= 1")
	}
	if pieceLen > totalLen {
		panic("mask: piece length exceeds total length")
	}
	if from < 0 {
		panic("mask: negative offset")
	}
	if size < 0 {
		panic("mask: negative size")
	}
	if size > totalLen {
		panic("mask: size exceeds total length")
	}
	if from+size > totalLen {
		panic("mask: range exceeds total length")
	}

	pieceCount := PieceCount(totalLen, pieceLen)

	if size == 0 {
		return pieceset.New(pieceCount), nil
	}

	before := from / pieceLen

	to := from + size
	left := (pieceLen - from%pieceLen) % pieceLen
	right := to % pieceLen
	middle := size - left - right
	if middle%pieceLen != 0 {
		return pieceset.Set{}, fmt.Errorf(
			"mask: middle region %d not divisible by piece length %d", middle, pieceLen,
		)
	}

	in := middle / pieceLen
	if left > 0 {
		in++
	}
	if right > 0 {
		in++
	}

	after := int64(pieceCount) - before - in
	if after < 0 {
		return pieceset.Set{}, fmt.Errorf(
			"mask: computed negative trailing piece count (before=%d in=%d count=%d)",
			before, in, pieceCount,
		)
	}

	bitstr := make([]byte, pieceCount)
	for i := int64(0); i < before; i++ {
		bitstr[i] = '0'
	}
	for i := before; i < before+in; i++ {
		bitstr[i] = '1'
	}
	for i := before + in; i < int64(pieceCount); i++ {
		bitstr[i] = '0'
	}

	return pieceset.FromBitstring(string(bitstr))
}
