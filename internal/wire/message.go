// Package wire implements the CRAQ protocol's message envelope: a
// tagged SET/GET/QUERY request variant, JSON encoding, and the
// length-prefixed framing used over TCP. Grounded on
// original_source/message.py (JsonMessage.serialize/deserialize)
// and original_source/craq_server.py's KVSetRequest/KVGetRequest/
// KVQueryRequest wrappers.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
)

// Type discriminates the three request kinds the core dispatcher
// knows about (spec.md §3, Request entity).
type Type string

const (
	TypeSet   Type = "SET"
	TypeGet   Type = "GET"
	TypeQuery Type = "QUERY"
)

// Request is the tagged {SET(key,value,version?), GET(key), QUERY(key)}
// wire message. Version is a pointer so its absence (client-submitted
// writes) is distinguishable from a zero version.
type Request struct {
	Type    Type   `json:"type"`
	Key     string `json:"key"`
	Val     string `json:"val,omitempty"`
	Version *int64 `json:"ver,omitempty"`

	// RequestID correlates one client call across every hop it
	// causes (§6.7 of SPEC_FULL.md); absent on replies.
	RequestID string `json:"rid,omitempty"`
}

// HasVersion reports whether the version field was present on the
// wire, i.e. whether this SET is an intra-chain forward rather than a
// client-originated write.
func (r *Request) HasVersion() bool { return r.Version != nil }

// WithVersion returns a copy of r stamped with the given version,
// used by the head before forwarding a client SET downstream;
// interior hops forward the version they received unchanged.
func (r Request) WithVersion(v int64) Request {
	r.Version = &v
	return r
}

// Response carries either a SET/GET status or a QUERY version
// (spec.md §6 table). Fields are optional and interpreted by the
// caller according to the request type that produced them.
type Response struct {
	Status string `json:"status,omitempty"`
	Val    string `json:"val,omitempty"`
	Ver    *int64 `json:"ver,omitempty"`
}

// Status values from spec.md §6/§7.
const (
	StatusOK               = "OK"
	StatusKeyNotFound      = "Key not found"
	StatusUnexpectedType   = "Unexpected type"
	StatusMalformed        = "Malformed request"
	StatusDownstreamFailed = "Downstream failed"
)

// OK reports whether the response carries a successful SET/GET status.
func (r Response) OK() bool { return r.Status == StatusOK }

const lengthPrefixBytes = 8

// WriteMessage frames v as an 8-byte big-endian length prefix
// followed by its JSON encoding, matching message.py's serialize(),
// and writes both in a single call so a concurrent writer on the same
// connection can never interleave a partial frame.
func WriteMessage(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode wire message")
	}
	framed := make([]byte, lengthPrefixBytes+len(body))
	binary.BigEndian.PutUint64(framed, uint64(len(body)))
	copy(framed[lengthPrefixBytes:], body)

	if _, err := w.Write(framed); err != nil {
		return errors.Wrap(err, "write framed message")
	}
	return nil
}

// ReadMessage reads one length-prefixed JSON message from r and
// decodes it into v, matching message.py's deserialize().
func ReadMessage(r io.Reader, v any) error {
	var prefix [lengthPrefixBytes]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return err // io.EOF propagates as-is so callers can detect clean connection close.
	}
	n := binary.BigEndian.Uint64(prefix[:])
	const maxMessageBytes = 64 << 20
	if n > maxMessageBytes {
		return errors.Newf("message length %d exceeds maximum %d", n, maxMessageBytes)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return errors.Wrap(err, "read message body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "decode wire message")
	}
	return nil
}
