package memevotepb

import (
	"bytes"

	"github.com/gogo/protobuf/jsonpb"
	proto "github.com/gogo/protobuf/proto"
)

const (
	// EventMemeCreated is the event type of MemeCreated
	EventMemeCreated = "meme_created"
	// EventVoteCast is the event type of VoteCast
	EventVoteCast = "vote_cast"
)

// EventType returns the event type name
func (m *MemeCreated) EventType() string {
	return EventMemeCreated
}

// EventType returns the event type name
func (m *VoteCast) EventType() string {
	return EventVoteCast
}

// Created returns the creation event for this meme
func (m *Meme) Created() *MemeCreated {
	return &MemeCreated{
		ID:      m.ID,
		Creator: m.Creator,
		Title:   m.Title,
		URL:     m.URL,
	}
}

// UnmarshalMeme decodes a stored meme
func UnmarshalMeme(data []byte) (interface{}, error) {
	var meme Meme

	if err := proto.Unmarshal(data, &meme); err != nil {
		return nil, err
	}

	return &meme, nil
}

var jsonMarshaler = jsonpb.Marshaler{OrigName: true, EmitDefaults: true}

// MarshalJSON renders a message as JSON with its
// .proto field names and zero values included
func MarshalJSON(m proto.Message) ([]byte, error) {
	var buf bytes.Buffer

	if err := jsonMarshaler.Marshal(&buf, m); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
