// Package krpc implements the binary wire codec for the overlay DHT's
// query/response/error packets: transaction tags, node identifiers,
// tokens, and node lists.
//
// The codec is pure and total on its input space: decoding malformed bytes
// yields a single error without partial mutation, and for every
// well-formed packet p, Decode(Encode(p)) reproduces p exactly.
package krpc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// IDSize is the fixed width, in bytes, of a node identifier (160 bits).
const IDSize = 20

// ID is a fixed-width node identifier.
type ID [IDSize]byte

// PacketKind discriminates the three top-level packet variants.
type PacketKind byte

const (
	KindQuery PacketKind = iota
	KindResponse
	KindError
)

// QueryKind discriminates a Query packet's body.
type QueryKind byte

const (
	QueryPing QueryKind = iota
	QueryFind
	QueryStore
)

// ResponseKind discriminates a Response packet's body.
type ResponseKind byte

const (
	RespPing ResponseKind = iota
	RespFind
	RespStore
)

// FindMode discriminates a node-lookup from a value-lookup in Find query
// and response bodies.
type FindMode byte

const (
	ModeNode FindMode = iota
	ModeValue
)

// Error codes, mirroring the companion KRPC protocol's error numbering.
const (
	ErrorGeneric       = 201
	ErrorServer        = 202
	ErrorProtocol      = 203
	ErrorMethodUnknown = 204
)

// NodeDescriptor is a single entry of a node list: an id paired with a
// routable address.
type NodeDescriptor struct {
	ID   ID
	IP   net.IP
	Port uint16
}

// Query is the body of a KindQuery packet.
type Query struct {
	Tag      []byte
	SenderID ID
	Kind     QueryKind

	// Populated when Kind == QueryFind.
	FindMode FindMode
	TargetID ID

	// Populated when Kind == QueryStore.
	Token []byte
	KeyID ID
	Port  uint16
}

// Response is the body of a KindResponse packet.
type Response struct {
	Tag         []byte
	ResponderID ID
	Kind        ResponseKind

	// Populated when Kind == RespFind.
	FindMode FindMode
	Token    []byte // only when FindMode == ModeValue
	Nodes    []NodeDescriptor
}

// ErrorPacket is the body of a KindError packet.
type ErrorPacket struct {
	Tag     []byte
	ID      ID
	Code    uint64
	Message []byte
}

// Packet is the top-level tagged union: exactly one of Query, Response, or
// Err is non-nil, selected by Kind.
type Packet struct {
	Kind     PacketKind
	Query    *Query
	Response *Response
	Err      *ErrorPacket
}

var (
	ErrUnknownDiscriminator = errors.New("krpc: unknown packet discriminator")
	ErrUnknownQueryKind     = errors.New("krpc: unknown query kind")
	ErrUnknownResponseKind  = errors.New("krpc: unknown response kind")
	ErrUnknownFindMode      = errors.New("krpc: unknown find mode")
	ErrUnknownAddressTag    = errors.New("krpc: unknown address family tag")
	ErrTruncated            = errors.New("krpc: truncated packet")
	ErrTagTooLong           = errors.New("krpc: tag exceeds 255 bytes")
	ErrTooManyNodes         = errors.New("krpc: node list exceeds 65535 entries")
)

const (
	addrTagV4 = 0
	addrTagV6 = 1
)

// Encode serializes p into its wire form.
func Encode(p Packet) ([]byte, error) {
	var buf bytes.Buffer

	switch p.Kind {
	case KindQuery:
		buf.WriteByte(byte(KindQuery))
		if err := encodeQuery(&buf, p.Query); err != nil {
			return nil, err
		}
	case KindResponse:
		buf.WriteByte(byte(KindResponse))
		if err := encodeResponse(&buf, p.Response); err != nil {
			return nil, err
		}
	case KindError:
		buf.WriteByte(byte(KindError))
		if err := encodeError(&buf, p.Err); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownDiscriminator
	}

	return buf.Bytes(), nil
}

// Decode parses a packet from its wire form.
func Decode(data []byte) (Packet, error) {
	r := bytes.NewReader(data)

	discriminator, err := r.ReadByte()
	if err != nil {
		return Packet{}, ErrTruncated
	}

	switch PacketKind(discriminator) {
	case KindQuery:
		q, err := decodeQuery(r)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: KindQuery, Query: q}, nil
	case KindResponse:
		resp, err := decodeResponse(r)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: KindResponse, Response: resp}, nil
	case KindError:
		e, err := decodeError(r)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: KindError, Err: e}, nil
	default:
		return Packet{}, ErrUnknownDiscriminator
	}
}

func encodeQuery(buf *bytes.Buffer, q *Query) error {
	if err := writeTag(buf, q.Tag); err != nil {
		return err
	}
	buf.Write(q.SenderID[:])
	buf.WriteByte(byte(q.Kind))

	switch q.Kind {
	case QueryPing:
	case QueryFind:
		buf.WriteByte(byte(q.FindMode))
		buf.Write(q.TargetID[:])
	case QueryStore:
		if err := writeTag(buf, q.Token); err != nil {
			return err
		}
		buf.Write(q.KeyID[:])
		writeUint16(buf, q.Port)
	default:
		return fmt.Errorf("krpc: encode: %w: %d", ErrUnknownQueryKind, q.Kind)
	}
	return nil
}

func decodeQuery(r *bytes.Reader) (*Query, error) {
	tag, err := readTag(r)
	if err != nil {
		return nil, err
	}
	id, err := readID(r)
	if err != nil {
		return nil, err
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncated
	}

	q := &Query{Tag: tag, SenderID: id, Kind: QueryKind(kindByte)}

	switch q.Kind {
	case QueryPing:
	case QueryFind:
		modeByte, err := r.ReadByte()
		if err != nil {
			return nil, ErrTruncated
		}
		mode := FindMode(modeByte)
		if mode != ModeNode && mode != ModeValue {
			return nil, ErrUnknownFindMode
		}
		q.FindMode = mode
		q.TargetID, err = readID(r)
		if err != nil {
			return nil, err
		}
	case QueryStore:
		q.Token, err = readTag(r)
		if err != nil {
			return nil, err
		}
		q.KeyID, err = readID(r)
		if err != nil {
			return nil, err
		}
		q.Port, err = readUint16(r)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownQueryKind
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("krpc: trailing bytes after query body")
	}
	return q, nil
}

func encodeResponse(buf *bytes.Buffer, resp *Response) error {
	if err := writeTag(buf, resp.Tag); err != nil {
		return err
	}
	buf.Write(resp.ResponderID[:])
	buf.WriteByte(byte(resp.Kind))

	switch resp.Kind {
	case RespPing:
	case RespStore:
	case RespFind:
		buf.WriteByte(byte(resp.FindMode))
		if resp.FindMode == ModeValue {
			if err := writeTag(buf, resp.Token); err != nil {
				return err
			}
		}
		if err := writeNodeList(buf, resp.Nodes); err != nil {
			return err
		}
	default:
		return fmt.Errorf("krpc: encode: %w: %d", ErrUnknownResponseKind, resp.Kind)
	}
	return nil
}

func decodeResponse(r *bytes.Reader) (*Response, error) {
	tag, err := readTag(r)
	if err != nil {
		return nil, err
	}
	id, err := readID(r)
	if err != nil {
		return nil, err
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncated
	}

	resp := &Response{Tag: tag, ResponderID: id, Kind: ResponseKind(kindByte)}

	switch resp.Kind {
	case RespPing:
	case RespStore:
	case RespFind:
		modeByte, err := r.ReadByte()
		if err != nil {
			return nil, ErrTruncated
		}
		mode := FindMode(modeByte)
		if mode != ModeNode && mode != ModeValue {
			return nil, ErrUnknownFindMode
		}
		resp.FindMode = mode

		if mode == ModeValue {
			resp.Token, err = readTag(r)
			if err != nil {
				return nil, err
			}
		}
		resp.Nodes, err = readNodeList(r)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownResponseKind
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("krpc: trailing bytes after response body")
	}
	return resp, nil
}

func encodeError(buf *bytes.Buffer, e *ErrorPacket) error {
	if err := writeTag(buf, e.Tag); err != nil {
		return err
	}
	buf.Write(e.ID[:])

	var varint [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varint[:], e.Code)
	buf.Write(varint[:n])

	if len(e.Message) > 0xFFFF {
		return fmt.Errorf("krpc: error message exceeds 65535 bytes")
	}
	writeUint16(buf, uint16(len(e.Message)))
	buf.Write(e.Message)
	return nil
}

func decodeError(r *bytes.Reader) (*ErrorPacket, error) {
	tag, err := readTag(r)
	if err != nil {
		return nil, err
	}
	id, err := readID(r)
	if err != nil {
		return nil, err
	}

	code, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("krpc: reading error code: %w", ErrTruncated)
	}

	msgLen, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, ErrTruncated
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("krpc: trailing bytes after error body")
	}

	return &ErrorPacket{Tag: tag, ID: id, Code: code, Message: msg}, nil
}

func writeTag(buf *bytes.Buffer, tag []byte) error {
	if len(tag) > 0xFF {
		return ErrTagTooLong
	}
	buf.WriteByte(byte(len(tag)))
	buf.Write(tag)
	return nil
}

func readTag(r *bytes.Reader) ([]byte, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncated
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrTruncated
	}
	return buf, nil
}

func readID(r *bytes.Reader) (ID, error) {
	var id ID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return ID{}, ErrTruncated
	}
	return id, nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func writeNodeList(buf *bytes.Buffer, nodes []NodeDescriptor) error {
	if len(nodes) > 0xFFFF {
		return ErrTooManyNodes
	}
	writeUint16(buf, uint16(len(nodes)))

	for _, n := range nodes {
		buf.Write(n.ID[:])

		if ip4 := n.IP.To4(); ip4 != nil {
			buf.WriteByte(addrTagV4)
			buf.Write(ip4)
		} else if ip6 := n.IP.To16(); ip6 != nil {
			buf.WriteByte(addrTagV6)
			buf.Write(ip6)
		} else {
			return fmt.Errorf("krpc: node %x has no valid IP address", n.ID)
		}

		writeUint16(buf, n.Port)
	}
	return nil
}

func readNodeList(r *bytes.Reader) ([]NodeDescriptor, error) {
	count, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	nodes := make([]NodeDescriptor, 0, count)
	for i := uint16(0); i < count; i++ {
		id, err := readID(r)
		if err != nil {
			return nil, err
		}

		tag, err := r.ReadByte()
		if err != nil {
			return nil, ErrTruncated
		}

		var ip net.IP
		switch tag {
		case addrTagV4:
			buf := make([]byte, net.IPv4len)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, ErrTruncated
			}
			ip = net.IP(buf)
		case addrTagV6:
			buf := make([]byte, net.IPv6len)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, ErrTruncated
			}
			ip = net.IP(buf)
		default:
			return nil, ErrUnknownAddressTag
		}

		port, err := readUint16(r)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, NodeDescriptor{ID: id, IP: ip, Port: port})
	}

	return nodes, nil
}
