package gossip

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// NodeID identifies a peer. Two ids are the same peer iff the strings match.
type NodeID string

type MsgType uint8

const (
	MsgClock MsgType = iota + 1
)

// SchemaVersion is the only wire version this package reads or writes.
const SchemaVersion uint16 = 1

// ErrMalformed is returned for payloads that cannot be turned into a clock
// message. Transports drop such payloads before they reach a node.
var ErrMalformed = errors.New("gossip: malformed message")

// Message is the single wire message: the sender's clock value. From is
// filled in by transports that carry no peer identity of their own.
type Message struct {
	Type    MsgType `msgpack:"t"`
	From    NodeID  `msgpack:"f"`
	Clock   int64   `msgpack:"c"`
	SchemaV uint16  `msgpack:"v"`
}

func NewClockMsg(from NodeID, clock int64) Message {
	return Message{
		Type:    MsgClock,
		From:    from,
		Clock:   clock,
		SchemaV: SchemaVersion,
	}
}

// Validate checks the fields a handler relies on.
func (m Message) Validate() error {
	switch {
	case m.SchemaV != SchemaVersion:
		return fmt.Errorf("%w: schema version %d", ErrMalformed, m.SchemaV)
	case m.Type != MsgClock:
		return fmt.Errorf("%w: message type %d", ErrMalformed, m.Type)
	case m.From == "":
		return fmt.Errorf("%w: empty sender", ErrMalformed)
	case m.Clock < 0:
		return fmt.Errorf("%w: negative clock %d", ErrMalformed, m.Clock)
	}
	return nil
}

func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return msgpack.Marshal(&m)
}

func Decode(data []byte) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
