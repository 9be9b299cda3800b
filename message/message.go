// Package message implements the wire message model for the ZeroNet
// peer protocol: a length-implicit, MessagePack-framed union of
// requests and responses, encoded and decoded with
// github.com/vmihailenco/msgpack/v5.
//
// A Message is untagged on the wire — whether a decoded map is a
// Request or a Response is inferred from which of req_id / to is
// present, exactly as described in spec.md §4. Response payload
// fields are flattened as siblings of cmd/to rather than nested under
// a single field, which Message models by keeping them in a map that
// is spread back out at encode time.
package message

import (
	"io"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// MessageKind distinguishes a Request from a Response.
type MessageKind int

const (
	KindRequestMsg MessageKind = iota
	KindResponseMsg
)

// Message is a tagged union of a Request and a Response. The zero
// value is not meaningful; build one with NewRequest or NewResponse,
// or obtain one from Decode.
type Message struct {
	kind MessageKind

	cmd   string
	reqID uint64
	to    uint64

	params Value            // KindRequestMsg only
	body   map[string]Value // KindResponseMsg only: flattened response fields
}

// NewRequest builds a request message. params may be Null() when the
// command takes no parameters; a Null params is omitted from the wire
// form entirely, matching the original's #[serde(default)] behavior.
func NewRequest(cmd string, reqID uint64, params Value) Message {
	return Message{kind: KindRequestMsg, cmd: cmd, reqID: reqID, params: params}
}

// NewResponse builds a response to the request identified by to. body
// holds the sibling fields of the response (e.g. {"body": ..., "size":
// ...} for a getFile reply); its keys are flattened onto the
// response's top-level map at encode time.
func NewResponse(to uint64, body map[string]Value) Message {
	return Message{kind: KindResponseMsg, cmd: "response", to: to, body: body}
}

// NewErrorResponse builds a response carrying the canonical {"error":
// reason} body used throughout the protocol to report a failed
// command.
func NewErrorResponse(to uint64, reason string) Message {
	return NewResponse(to, map[string]Value{"error": String(reason)})
}

func (m Message) IsRequest() bool  { return m.kind == KindRequestMsg }
func (m Message) IsResponse() bool { return m.kind == KindResponseMsg }

// Cmd returns the command name: the request's cmd, or "response" for
// a response.
func (m Message) Cmd() string { return m.cmd }

// ReqID returns the request id, if m is a Request.
func (m Message) ReqID() (uint64, bool) {
	if m.kind != KindRequestMsg {
		return 0, false
	}
	return m.reqID, true
}

// To returns the request id this message answers, if m is a Response.
func (m Message) To() (uint64, bool) {
	if m.kind != KindResponseMsg {
		return 0, false
	}
	return m.to, true
}

// Params returns the request's parameters. Returns Null() if m is not
// a Request.
func (m Message) Params() Value {
	if m.kind != KindRequestMsg {
		return Null()
	}
	return m.params
}

// Body returns the response's flattened field map. Returns nil if m
// is not a Response.
func (m Message) Body() map[string]Value {
	if m.kind != KindResponseMsg {
		return nil
	}
	return m.body
}

// IsErrorResponse reports whether m is a response carrying the
// canonical {"error": ...} body, and returns the error string.
func (m Message) IsErrorResponse() (string, bool) {
	if m.kind != KindResponseMsg {
		return "", false
	}
	v, ok := m.body["error"]
	if !ok {
		return "", false
	}
	s, ok := v.StringValue()
	return s, ok
}

// ReqIDKey and ToKey satisfy zmux.Keyed[uint64], which is what lets
// zmux.Connection demultiplex responses onto the request that is
// awaiting them without depending on the message package directly.
func (m Message) ReqIDKey() (uint64, bool) { return m.ReqID() }
func (m Message) ToKey() (uint64, bool)    { return m.To() }

// EncodeMsgpack implements msgpack.CustomEncoder.
func (m Message) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch m.kind {
	case KindRequestMsg:
		withParams := !m.params.IsNull()
		n := 2
		if withParams {
			n++
		}
		if err := enc.EncodeMapLen(n); err != nil {
			return err
		}
		if err := enc.EncodeString("cmd"); err != nil {
			return err
		}
		if err := enc.EncodeString(m.cmd); err != nil {
			return err
		}
		if err := enc.EncodeString("req_id"); err != nil {
			return err
		}
		if err := enc.EncodeUint64(m.reqID); err != nil {
			return err
		}
		if withParams {
			if err := enc.EncodeString("params"); err != nil {
				return err
			}
			if err := m.params.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil

	case KindResponseMsg:
		keys := make([]string, 0, len(m.body))
		for k := range m.body {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if err := enc.EncodeMapLen(2 + len(keys)); err != nil {
			return err
		}
		if err := enc.EncodeString("cmd"); err != nil {
			return err
		}
		if err := enc.EncodeString("response"); err != nil {
			return err
		}
		if err := enc.EncodeString("to"); err != nil {
			return err
		}
		if err := enc.EncodeUint64(m.to); err != nil {
			return err
		}
		for _, k := range keys {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := m.body[k].EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	}
	return ErrMalformedMessage
}

// DecodeMsgpack implements msgpack.CustomDecoder. It classifies the
// decoded map as a Request or Response by the presence of req_id or
// to, per spec.md §4.3.
func (m *Message) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}

	var (
		cmd               string
		reqID, to         uint64
		haveReqID, haveTo bool
		params            = Null()
		haveParams        bool
		body              = make(map[string]Value)
	)

	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}

		switch key {
		case "cmd":
			if cmd, err = dec.DecodeString(); err != nil {
				return err
			}
		case "req_id":
			if reqID, err = dec.DecodeUint64(); err != nil {
				return err
			}
			haveReqID = true
		case "to":
			if to, err = dec.DecodeUint64(); err != nil {
				return err
			}
			haveTo = true
		case "params":
			if err := params.DecodeMsgpack(dec); err != nil {
				return err
			}
			haveParams = true
		default:
			var v Value
			if err := v.DecodeMsgpack(dec); err != nil {
				return err
			}
			body[key] = v
		}
	}
	_ = haveParams

	switch {
	case haveReqID:
		*m = Message{kind: KindRequestMsg, cmd: cmd, reqID: reqID, params: params}
	case haveTo:
		*m = Message{kind: KindResponseMsg, cmd: cmd, to: to, body: body}
	default:
		return ErrMalformedMessage
	}
	return nil
}

// Codec is a persistent MessagePack encoder/decoder pair bound to one
// byte stream. It must be reused for every message on a connection
// rather than rebuilt per call: vmihailenco/msgpack buffers its input,
// so a fresh Decoder per message would drop bytes already buffered
// past the previous message's boundary.
type Codec struct {
	enc *msgpack.Encoder
	dec *msgpack.Decoder
}

// NewCodec builds a Codec that writes to w and reads from r.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{enc: msgpack.NewEncoder(w), dec: msgpack.NewDecoder(r)}
}

// Encode writes m to the underlying writer.
func (c *Codec) Encode(m Message) error {
	return c.enc.Encode(m)
}

// Decode reads the next Message from the underlying reader, blocking
// until a complete message has arrived.
func (c *Codec) Decode() (Message, error) {
	var m Message
	err := c.dec.Decode(&m)
	return m, err
}
