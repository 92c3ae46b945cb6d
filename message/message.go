// Package message implements the PostgreSQL frontend/backend protocol
// version 3.0 message set: encoding of messages sent by the client and
// decoding of messages received from the server, plus the Frontend
// driver that multiplexes both over a single connection.
//
// The message catalogue and the flyweight-dispatch design of Frontend
// mirror github.com/jackc/pgproto3's Frontend (reference corpus,
// pgproto3/frontend.go) — this package reimplements that shape from
// scratch rather than depending on it, since the message layer is part
// of the core this module delivers.
package message

// FrontendMessage is any message the client may send to the server.
type FrontendMessage interface {
	// Encode appends the wire representation of the message to dst and
	// returns the extended slice.
	Encode(dst []byte) []byte
}

// BackendMessage is any message the server may send to the client.
type BackendMessage interface {
	// Decode populates the message from its body (the bytes following the
	// 1-byte tag and 4-byte length). The tag itself is used by Frontend to
	// pick which concrete type to route to; Decode never sees the tag.
	Decode(body []byte) error
}
