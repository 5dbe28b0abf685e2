package bencode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

var ErrUnsupportedType = errors.New("bencode: unsupported type")

// Marshal encodes v to its canonical bencoded form. v must be built from
// string, []byte, bool, the fixed-width int/uint kinds, []any, and
// map[string]any (dictionary keys are sorted lexicographically, as the
// info-dict hash requires).
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)

	if err := e.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encoder writes bencoded values to an underlying writer, buffering so
// that writing a large nested structure to a raw connection costs one
// flush rather than one syscall per token.
type Encoder struct {
	w     *bufio.Writer
	depth int
}

// NewEncoder returns an Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes the bencoded form of v. Calls may nest through v's own
// structure; the underlying writer is flushed once the outermost call
// returns successfully.
func (e *Encoder) Encode(v any) error {
	e.depth++
	err := e.encode(v)
	e.depth--

	if err == nil && e.depth == 0 {
		err = e.w.Flush()
	}
	return err
}

func (e *Encoder) encode(v any) error {
	switch x := v.(type) {
	case string:
		return e.encodeString(x)
	case []byte:
		return e.encodeString(string(x))
	case bool:
		if x {
			return e.encodeInt64(1)
		}
		return e.encodeInt64(0)
	case int:
		return e.encodeInt64(int64(x))
	case int8:
		return e.encodeInt64(int64(x))
	case int16:
		return e.encodeInt64(int64(x))
	case int32:
		return e.encodeInt64(int64(x))
	case int64:
		return e.encodeInt64(x)
	case uint:
		return e.encodeUint(uint64(x))
	case uint8:
		return e.encodeUint(uint64(x))
	case uint16:
		return e.encodeUint(uint64(x))
	case uint32:
		return e.encodeUint(uint64(x))
	case uint64:
		return e.encodeUint(x)
	case []any:
		return e.encodeSlice(x)
	case map[string]any:
		return e.encodeDict(x)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// writeTaggedNumber writes 'i' <digits> 'e' for a pre-formatted digit run,
// the shared frame of both encodeInt64 and encodeUint.
func (e *Encoder) writeTaggedNumber(digits []byte) error {
	if err := e.w.WriteByte(TokenInteger.Byte()); err != nil {
		return err
	}
	if _, err := e.w.Write(digits); err != nil {
		return err
	}
	return e.w.WriteByte(TokenEnding.Byte())
}

func (e *Encoder) encodeInt64(n int64) error {
	var buf [32]byte
	return e.writeTaggedNumber(strconv.AppendInt(buf[:0], n, 10))
}

func (e *Encoder) encodeUint(u uint64) error {
	var buf [32]byte
	return e.writeTaggedNumber(strconv.AppendUint(buf[:0], u, 10))
}

func (e *Encoder) encodeString(s string) error {
	var buf [32]byte
	b := strconv.AppendInt(buf[:0], int64(len(s)), 10)
	if _, err := e.w.Write(b); err != nil {
		return err
	}
	if err := e.w.WriteByte(TokenStringSeparator.Byte()); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

func (e *Encoder) encodeSlice(xs []any) error {
	if err := e.w.WriteByte(TokenList.Byte()); err != nil {
		return err
	}
	for _, v := range xs {
		if err := e.encode(v); err != nil {
			return err
		}
	}
	return e.w.WriteByte(TokenEnding.Byte())
}

func (e *Encoder) encodeDict(m map[string]any) error {
	if err := e.w.WriteByte(TokenDict.Byte()); err != nil {
		return err
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := e.encodeString(k); err != nil {
			return err
		}
		if err := e.encode(m[k]); err != nil {
			return err
		}
	}

	return e.w.WriteByte(TokenEnding.Byte())
}
