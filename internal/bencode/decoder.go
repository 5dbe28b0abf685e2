// Package bencode implements the bencoding codec that underlies torrent
// metainfo files and the wire format of BEP-9 metadata blocks.
//
// The rest of the module treats this package as a black-box
// "decode bytes -> generic tree / encode generic tree -> bytes" facility;
// nothing outside this package needs to know the grammar.
package bencode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	ErrMaxDepthExceeded = errors.New("bencode: max nesting depth exceeded")
	ErrNegativeLength   = errors.New("bencode: string length is negative")
	ErrStringTooLarge   = errors.New("bencode: string exceeds configured limit")
	ErrEmptyInteger     = errors.New("bencode: empty integer literal")
	ErrNegativeZero     = errors.New("bencode: invalid integer: negative zero")
	ErrLeadingZero      = errors.New("bencode: invalid integer: leading zero")
	ErrIntegerTooLong   = errors.New("bencode: integer exceeds digit limit")
	ErrTrailingData     = errors.New("bencode: trailing data after first value")
)

// Unmarshal parses a single complete bencoded value from data and returns
// it as one of int64, string, []any, or map[string]any.
//
// Returns an error if the input is malformed, exceeds Decoder limits, or
// contains trailing data after the first value.
func Unmarshal(data []byte) (any, error) {
	d := NewDecoder(bytes.NewReader(data))

	v, err := d.Decode()
	if err != nil {
		return nil, err
	}

	if _, err := d.r.Peek(1); err == nil {
		return nil, ErrTrailingData
	} else if err != io.EOF {
		return nil, err
	}

	return v, nil
}

// Token identifies syntactic markers in the bencode stream.
type Token byte

func (t Token) Byte() byte { return byte(t) }

const (
	// TokenDict begins a dictionary: 'd'
	TokenDict Token = 'd'
	// TokenInteger begins an integer: 'i'
	TokenInteger Token = 'i'
	// TokenEnding terminates a list, dictionary, or integer: 'e'
	TokenEnding Token = 'e'
	// TokenList begins a list: 'l'
	TokenList Token = 'l'
	// TokenStringSeparator separates a string length from its data: ':'
	TokenStringSeparator Token = ':'
)

// Limits bounds the resources a single Decode call may consume, guarding
// against pathological or hostile input (metadata blocks arrive from
// untrusted peers before any hash has been verified).
type Limits struct {
	MaxDepth     int   // maximum nesting depth
	MaxStringLen int64 // maximum string length in bytes
	MaxDigits    int   // maximum base-10 digits in an integer
}

// DefaultLimits returns the limits NewDecoder applies: generous enough for
// an info-dict with hundreds of thousands of pieces, conservative enough
// to bound memory use against a malicious sender.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:     2048,
		MaxStringLen: 64 << 20, // 64 MiB, info-dicts with many pieces are large
		MaxDigits:    19,       // fits int64 range
	}
}

// Decoder reads a single bencoded value from an underlying byte stream.
// Unlike a one-shot Unmarshal, a Decoder can be pointed at any io.Reader,
// such as an open file or a peer connection delivering a metadata block,
// without requiring the whole value to be buffered by the caller first.
//
// A Decoder is safe for use by a single goroutine at a time.
type Decoder struct {
	r      *bufio.Reader
	limits Limits
}

// NewDecoder returns a Decoder reading from r with DefaultLimits.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderLimits(r, DefaultLimits())
}

// NewDecoderLimits returns a Decoder reading from r with explicit limits,
// for callers decoding smaller, more tightly bounded values (a single
// DHT packet payload, say) than a full metainfo file.
func NewDecoderLimits(r io.Reader, limits Limits) *Decoder {
	return &Decoder{r: bufio.NewReader(r), limits: limits}
}

// Decode parses and returns the next bencoded value from the input.
func (d *Decoder) Decode() (any, error) { return d.decode(0) }

func (d *Decoder) decode(depth int) (any, error) {
	if depth > d.limits.MaxDepth {
		return nil, ErrMaxDepthExceeded
	}

	delim, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch delim {
	case byte(TokenDict):
		return d.decodeContainer(depth+1, true)
	case byte(TokenList):
		return d.decodeContainer(depth+1, false)
	case byte(TokenInteger):
		return d.decodeInteger()
	default:
		if err := d.r.UnreadByte(); err != nil {
			return nil, err
		}
		return d.decodeString()
	}
}

// decodeContainer parses a dictionary or a list, depending on isDict; the
// two share everything but whether a key precedes each element, so rather
// than carrying two near-duplicate loops the distinction is a single
// branch inside one.
func (d *Decoder) decodeContainer(depth int, isDict bool) (any, error) {
	if depth > d.limits.MaxDepth {
		return nil, ErrMaxDepthExceeded
	}

	var dict map[string]any
	var list []any
	if isDict {
		dict = make(map[string]any, 8)
	}

	for {
		next, err := d.r.Peek(1)
		if err != nil {
			return nil, err
		}
		if next[0] == byte(TokenEnding) {
			if _, err := d.r.ReadByte(); err != nil {
				return nil, err
			}
			break
		}

		var key string
		if isDict {
			key, err = d.decodeString()
			if err != nil {
				return nil, err
			}
		}

		v, err := d.decode(depth)
		if err != nil {
			return nil, err
		}

		if isDict {
			dict[key] = v
		} else {
			list = append(list, v)
		}
	}

	if isDict {
		return dict, nil
	}
	return list, nil
}

func (d *Decoder) decodeInteger() (int64, error) {
	return d.readInteger(TokenEnding)
}

func (d *Decoder) decodeString() (string, error) {
	n, err := d.readInteger(TokenStringSeparator)
	if err != nil {
		return "", err
	}

	if n < 0 {
		return "", ErrNegativeLength
	}
	if n > d.limits.MaxStringLen {
		return "", fmt.Errorf("%w: %d > %d", ErrStringTooLarge, n, d.limits.MaxStringLen)
	}
	if n == 0 {
		return "", nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", fmt.Errorf("bencode: read string: %w", err)
	}
	return string(buf), nil
}

// readInteger reads a base-10, optionally signed integer terminated by
// delim, enforcing d.limits.MaxDigits and basic canonicality (no leading
// zeros, no "-0").
func (d *Decoder) readInteger(delim Token) (int64, error) {
	buf, err := d.r.ReadSlice(byte(delim))
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return 0, ErrIntegerTooLong
		}
		return 0, err
	}

	n := len(buf) - 1
	if n <= 0 {
		return 0, ErrEmptyInteger
	}
	s := buf[:n]

	if s[0] == '-' {
		if n > 1 && s[1] == '0' {
			return 0, ErrNegativeZero
		}
	} else if s[0] == '0' && n > 1 {
		return 0, ErrLeadingZero
	}

	digits := n
	if s[0] == '-' {
		digits--
	}
	if digits > d.limits.MaxDigits {
		return 0, ErrIntegerTooLong
	}

	v, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bencode: invalid integer: %w", err)
	}
	return v, nil
}
