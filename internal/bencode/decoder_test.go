package bencode

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func decodeFromString(t *testing.T, s string) (any, error) {
	t.Helper()

	d := NewDecoder(strings.NewReader(s))
	return d.Decode()
}

func wantErrContains(t *testing.T, err error, substr string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error containing %q, got nil", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Fatalf("error = %v, want contains %q", err, substr)
	}
}

func TestDecodeOK(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"string", "4:spam", any("spam")},
		{"empty-string", "0:", any("")},
		{"int-neg", "i-1e", any(int64(-1))},
		{"int-zero", "i0e", any(int64(0))},
		{"list-simple", "l4:spami1ee", any([]any{"spam", int64(1)})},
		{
			"dict",
			"d1:ai1e1:bl1:xi3eee",
			any(map[string]any{"a": int64(1), "b": []any{"x", int64(3)}}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := decodeFromString(t, tc.in)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if !reflect.DeepEqual(v, tc.want) {
				t.Fatalf("got %#v, want %#v", v, tc.want)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{"leading-zero", "i01e", "leading zero"},
		{"negative-zero", "i-0e", "negative zero"},
		{"bad-string-length", "-1:x", "negative"},
		{"unterminated-dict", "d1:ai1e", "EOF"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeFromString(t, tc.in)
			wantErrContains(t, err, tc.wantErr)
		})
	}
}

func TestUnmarshalRejectsTrailingData(t *testing.T) {
	_, err := Unmarshal([]byte("i1ei2e"))
	wantErrContains(t, err, "trailing data")
}

func TestDecoderReadsFromArbitraryReader(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte("d1:ai1ee"))
		pw.Close()
	}()

	d := NewDecoder(pr)
	v, err := d.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := map[string]any{"a": int64(1)}
	if !reflect.DeepEqual(v, want) {
		t.Fatalf("got %#v, want %#v", v, want)
	}
}

func TestDecoderRejectsOversizedStringUnderTighterLimits(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxStringLen = 4

	d := NewDecoderLimits(strings.NewReader("5:abcde"), limits)
	if _, err := d.Decode(); !errors.Is(err, ErrStringTooLarge) {
		t.Fatalf("Decode err = %v, want ErrStringTooLarge", err)
	}
}

func TestDecoderRejectsExcessiveDepth(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxDepth = 2

	d := NewDecoderLimits(strings.NewReader("llleee"), limits)
	if _, err := d.Decode(); !errors.Is(err, ErrMaxDepthExceeded) {
		t.Fatalf("Decode err = %v, want ErrMaxDepthExceeded", err)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	in := map[string]any{
		"announce": "http://tracker.example/announce",
		"info": map[string]any{
			"name":         "ubuntu.iso",
			"piece length": int64(262144),
			"pieces":       "0123456789012345678901234567890123456789",
			"length":       int64(1048576),
		},
	}

	encoded, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	decoded, err := Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !reflect.DeepEqual(in, decoded) {
		t.Fatalf("round trip mismatch: got %#v, want %#v", decoded, in)
	}

	reEncoded, err := Marshal(decoded)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if string(reEncoded) != string(encoded) {
		t.Fatalf("non-canonical re-encoding: got %q, want %q", reEncoded, encoded)
	}
}
