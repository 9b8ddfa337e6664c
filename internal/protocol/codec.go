package protocol

import (
	"encoding/json"
	"strings"

	"github.com/frudas24/touchmirror/internal/fault"
	"github.com/fxamacker/cbor/v2"
)

// Codec serializes envelopes for one wire format.
type Codec interface {
	Name() string
	Binary() bool
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

// Name returns "json".
func (jsonCodec) Name() string { return "json" }

// Binary reports false: JSON envelopes travel as text frames.
func (jsonCodec) Binary() bool { return false }

// Marshal encodes v as JSON.
func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes JSON into v.
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct {
	enc cbor.EncMode
}

// Name returns "cbor".
func (cborCodec) Name() string { return "cbor" }

// Binary reports true: CBOR envelopes travel as binary frames.
func (cborCodec) Binary() bool { return true }

// Marshal encodes v with core deterministic CBOR.
func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

// Unmarshal decodes CBOR into v, honoring json field tags.
func (cborCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

var (
	// JSON is the default text codec.
	JSON Codec = jsonCodec{}
	// CBOR is the compact binary codec.
	CBOR Codec = newCBOR()
)

// newCBOR builds the deterministic CBOR codec.
func newCBOR() Codec {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("protocol: cbor encoder: " + err.Error())
	}
	return cborCodec{enc: em}
}

// ParseCodec resolves a codec by name. An empty name means JSON.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return nil, fault.Newf(fault.KindProtocol, "codec", "unknown codec %q", name)
	}
}

// Encode serializes msg, filling in its type discriminator.
func Encode(c Codec, msg Message) ([]byte, error) {
	if c == nil {
		c = JSON
	}
	if _, ok := msg.(Unknown); ok || msg == nil {
		return nil, fault.New(fault.KindProtocol, "encode", "unsupported envelope")
	}
	data, err := c.Marshal(stamp(msg))
	if err != nil {
		return nil, fault.Wrap(fault.KindProtocol, "encode", err)
	}
	return data, nil
}

// Decode parses one envelope. Unrecognized types yield Unknown; malformed payloads yield a protocol fault.
func Decode(c Codec, data []byte) (Message, error) {
	if c == nil {
		c = JSON
	}
	var head struct {
		Type Type `json:"type"`
	}
	if err := c.Unmarshal(data, &head); err != nil {
		return nil, fault.Wrap(fault.KindProtocol, "decode", err)
	}
	if head.Type == "" {
		return nil, fault.New(fault.KindProtocol, "decode", "missing type")
	}
	switch head.Type {
	case TypeTouch:
		return decodeAs[Touch](c, data)
	case TypeConnectionRequest:
		return decodeAs[ConnectionRequest](c, data)
	case TypeConnectionAck:
		return decodeAs[ConnectionAck](c, data)
	case TypeWelcome:
		return decodeAs[Welcome](c, data)
	case TypePing:
		return decodeAs[Ping](c, data)
	case TypePong:
		return decodeAs[Pong](c, data)
	case TypeResize, TypeGeometryUpdate:
		return decodeAs[Resize](c, data)
	case TypeQualityChange:
		return decodeAs[QualityChange](c, data)
	case TypeStatus:
		return decodeAs[Status](c, data)
	case TypeError:
		return decodeAs[Error](c, data)
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return Unknown{Type: head.Type, Raw: raw}, nil
	}
}

// decodeAs unmarshals data into a concrete envelope type.
func decodeAs[T Message](c Codec, data []byte) (Message, error) {
	var v T
	if err := c.Unmarshal(data, &v); err != nil {
		return nil, fault.Wrap(fault.KindProtocol, "decode", err)
	}
	return v, nil
}

// stamp sets the type field of envelopes built without a constructor.
func stamp(msg Message) Message {
	switch m := msg.(type) {
	case Touch:
		m.Type = TypeTouch
		return m
	case ConnectionRequest:
		m.Type = TypeConnectionRequest
		if m.Capabilities == nil {
			m.Capabilities = []string{}
		}
		return m
	case ConnectionAck:
		m.Type = TypeConnectionAck
		return m
	case Welcome:
		m.Type = TypeWelcome
		return m
	case Ping:
		m.Type = TypePing
		return m
	case Pong:
		m.Type = TypePong
		return m
	case Resize:
		m.Type = m.MessageType()
		return m
	case QualityChange:
		m.Type = TypeQualityChange
		return m
	case Status:
		m.Type = TypeStatus
		return m
	case Error:
		m.Type = TypeError
		return m
	default:
		return msg
	}
}
