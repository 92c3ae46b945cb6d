package message_test

import (
	"bytes"
	"testing"

	"github.com/mickamy/pgwire/internal/wire"
	"github.com/mickamy/pgwire/message"
)

// canned builds a raw backend frame (tag + length-prefixed body) the way a
// real server would send it, for feeding to Frontend.Receive in tests.
func canned(tag byte, body []byte) []byte {
	b := wire.Begin(nil, tag)
	b.Bytes(body)
	return b.Finish()
}

func TestFrontendReceiveDispatch(t *testing.T) {
	t.Parallel()

	var server bytes.Buffer
	server.Write(canned('1', nil))                    // ParseComplete
	server.Write(canned('2', nil))                     // BindComplete
	server.Write(canned('Z', []byte{'I'}))             // ReadyForQuery(idle)

	fe := message.NewFrontend(&server, &bytes.Buffer{})

	msg, err := fe.Receive()
	if err != nil {
		t.Fatalf("Receive 1: %v", err)
	}
	if _, ok := msg.(*message.ParseComplete); !ok {
		t.Fatalf("msg 1 = %T, want *message.ParseComplete", msg)
	}

	msg, err = fe.Receive()
	if err != nil {
		t.Fatalf("Receive 2: %v", err)
	}
	if _, ok := msg.(*message.BindComplete); !ok {
		t.Fatalf("msg 2 = %T, want *message.BindComplete", msg)
	}

	msg, err = fe.Receive()
	if err != nil {
		t.Fatalf("Receive 3: %v", err)
	}
	rfq, ok := msg.(*message.ReadyForQuery)
	if !ok {
		t.Fatalf("msg 3 = %T, want *message.ReadyForQuery", msg)
	}
	if rfq.TxStatus != message.TxIdle {
		t.Fatalf("TxStatus = %q, want %q", rfq.TxStatus, message.TxIdle)
	}
}

func TestFrontendSendEncodesExtendedQuerySequence(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	fe := message.NewFrontend(&bytes.Buffer{}, &out)

	fe.Send(&message.Parse{Name: "s1", SQL: "SELECT $1::int", ParamOIDs: []uint32{23}})
	fe.Send(&message.Bind{PreparedStatement: "s1", ParamValues: [][]byte{{0, 0, 0, 2}}})
	fe.Send(&message.Execute{})
	fe.Send(&message.Sync{})
	if err := fe.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	buf := out.Bytes()
	if len(buf) == 0 {
		t.Fatal("nothing written")
	}
	tags := []byte{'P', 'B', 'E', 'S'}
	pos := 0
	for _, want := range tags {
		if buf[pos] != want {
			t.Fatalf("tag at %d = %q, want %q", pos, buf[pos], want)
		}
		length := int(uint32(buf[pos+1])<<24 | uint32(buf[pos+2])<<16 | uint32(buf[pos+3])<<8 | uint32(buf[pos+4]))
		pos += 1 + length
	}
	if pos != len(buf) {
		t.Fatalf("consumed %d bytes, buffer has %d", pos, len(buf))
	}
}

func TestErrorResponseFields(t *testing.T) {
	t.Parallel()

	var body []byte
	body = append(body, 'S')
	body = append(body, "ERROR"...)
	body = append(body, 0)
	body = append(body, 'C')
	body = append(body, "57014"...)
	body = append(body, 0)
	body = append(body, 'M')
	body = append(body, "canceling statement due to user request"...)
	body = append(body, 0)
	body = append(body, 0) // terminator

	var er message.ErrorResponse
	if err := er.Decode(body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if er.Code != "57014" {
		t.Fatalf("Code = %q, want 57014", er.Code)
	}
	if er.Severity != "ERROR" {
		t.Fatalf("Severity = %q, want ERROR", er.Severity)
	}
	if er.Message == "" {
		t.Fatalf("Message is empty")
	}
}
