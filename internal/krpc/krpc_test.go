package krpc

import (
	"net"
	"reflect"
	"testing"
)

func mkID(b byte) ID {
	var id ID
	for i := range id {
		id[i] = b
	}
	return id
}

func roundTrip(t *testing.T, p Packet) {
	t.Helper()

	wire, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !reflect.DeepEqual(got, p) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, p)
	}
}

func TestRoundTripPingQuery(t *testing.T) {
	roundTrip(t, Packet{
		Kind: KindQuery,
		Query: &Query{
			Tag:      []byte("aa"),
			SenderID: mkID(1),
			Kind:     QueryPing,
		},
	})
}

func TestRoundTripFindQuery(t *testing.T) {
	roundTrip(t, Packet{
		Kind: KindQuery,
		Query: &Query{
			Tag:      []byte("bb"),
			SenderID: mkID(2),
			Kind:     QueryFind,
			FindMode: ModeValue,
			TargetID: mkID(3),
		},
	})
}

func TestRoundTripStoreQuery(t *testing.T) {
	roundTrip(t, Packet{
		Kind: KindQuery,
		Query: &Query{
			Tag:      []byte("cc"),
			SenderID: mkID(4),
			Kind:     QueryStore,
			Token:    []byte("tok"),
			KeyID:    mkID(5),
			Port:     6881,
		},
	})
}

func TestRoundTripPingResponse(t *testing.T) {
	roundTrip(t, Packet{
		Kind: KindResponse,
		Response: &Response{
			Tag:         []byte("dd"),
			ResponderID: mkID(6),
			Kind:        RespPing,
		},
	})
}

func TestRoundTripFindNodeResponse(t *testing.T) {
	ip4 := net.IPv4(192, 0, 2, 1).To4()
	ip6 := net.ParseIP("2001:db8::1")

	roundTrip(t, Packet{
		Kind: KindResponse,
		Response: &Response{
			Tag:         []byte("ee"),
			ResponderID: mkID(7),
			Kind:        RespFind,
			FindMode:    ModeNode,
			Nodes: []NodeDescriptor{
				{ID: mkID(8), IP: ip4, Port: 6881},
				{ID: mkID(9), IP: ip6, Port: 6882},
			},
		},
	})
}

func TestRoundTripFindValueResponse(t *testing.T) {
	roundTrip(t, Packet{
		Kind: KindResponse,
		Response: &Response{
			Tag:         []byte("ff"),
			ResponderID: mkID(10),
			Kind:        RespFind,
			FindMode:    ModeValue,
			Token:       []byte("tok2"),
			Nodes:       nil,
		},
	})
}

func TestRoundTripStoreAckResponse(t *testing.T) {
	roundTrip(t, Packet{
		Kind: KindResponse,
		Response: &Response{
			Tag:         []byte("gg"),
			ResponderID: mkID(11),
			Kind:        RespStore,
		},
	})
}

func TestRoundTripError(t *testing.T) {
	roundTrip(t, Packet{
		Kind: KindError,
		Err: &ErrorPacket{
			Tag:     []byte("hh"),
			ID:      mkID(12),
			Code:    ErrorProtocol,
			Message: []byte("malformed packet"),
		},
	})
}

func TestDecodeRejectsUnknownDiscriminator(t *testing.T) {
	_, err := Decode([]byte{0xFF})
	if err != ErrUnknownDiscriminator {
		t.Fatalf("err = %v, want ErrUnknownDiscriminator", err)
	}
}

func TestDecodeRejectsTruncatedPacket(t *testing.T) {
	wire, err := Encode(Packet{
		Kind: KindQuery,
		Query: &Query{Tag: []byte("aa"), SenderID: mkID(1), Kind: QueryPing},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = Decode(wire[:len(wire)-5])
	if err == nil {
		t.Fatal("expected error decoding truncated packet")
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	wire, err := Encode(Packet{
		Kind: KindQuery,
		Query: &Query{Tag: []byte("aa"), SenderID: mkID(1), Kind: QueryPing},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = Decode(append(wire, 0x00))
	if err == nil {
		t.Fatal("expected error decoding packet with trailing bytes")
	}
}
