package gossip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(NewClockMsg("peer-a", 42))
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, NodeID("peer-a"), m.From)
	assert.Equal(t, int64(42), m.Clock)
	assert.Equal(t, MsgClock, m.Type)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	wrongVersion, _ := msgpack.Marshal(&Message{Type: MsgClock, From: "a", Clock: 1, SchemaV: 9})
	wrongType, _ := msgpack.Marshal(&Message{Type: 7, From: "a", Clock: 1, SchemaV: SchemaVersion})
	noSender, _ := msgpack.Marshal(&Message{Type: MsgClock, Clock: 1, SchemaV: SchemaVersion})
	negative, _ := msgpack.Marshal(&Message{Type: MsgClock, From: "a", Clock: -3, SchemaV: SchemaVersion})

	tests := map[string][]byte{
		"garbage":        {0xc1, 0x00, 0xff},
		"empty":          nil,
		"schema version": wrongVersion,
		"message type":   wrongType,
		"no sender":      noSender,
		"negative clock": negative,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestEncodeValidates(t *testing.T) {
	_, err := Encode(NewClockMsg("", 1))
	assert.ErrorIs(t, err, ErrMalformed)
}
