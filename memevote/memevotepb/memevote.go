// Package memevotepb holds the messages in memevote.proto.
//
// The structs in this file are maintained by hand, not
// generated. Keep their tags in sync with memevote.proto.
// gogo/protobuf encodes them through reflection. The
// messages are proto2 so string fields carry arbitrary
// bytes: identities and titles are not required to be
// valid UTF-8.
package memevotepb

import (
	proto "github.com/gogo/protobuf/proto"
)

// Meme is a stored record
type Meme struct {
	ID      uint32 `protobuf:"varint,1,opt,name=id" json:"id"`
	Creator string `protobuf:"bytes,2,opt,name=creator" json:"creator"`
	Title   string `protobuf:"bytes,3,opt,name=title" json:"title"`
	URL     string `protobuf:"bytes,4,opt,name=url" json:"url"`
	Likes   uint32 `protobuf:"varint,5,opt,name=likes" json:"likes"`
}

func (m *Meme) Reset()         { *m = Meme{} }
func (m *Meme) String() string { return proto.CompactTextString(m) }
func (*Meme) ProtoMessage()    {}

// MemeCreated is emitted after a meme is stored
type MemeCreated struct {
	ID      uint32 `protobuf:"varint,1,opt,name=id" json:"id"`
	Creator string `protobuf:"bytes,2,opt,name=creator" json:"creator"`
	Title   string `protobuf:"bytes,3,opt,name=title" json:"title"`
	URL     string `protobuf:"bytes,4,opt,name=url" json:"url"`
}

func (m *MemeCreated) Reset()         { *m = MemeCreated{} }
func (m *MemeCreated) String() string { return proto.CompactTextString(m) }
func (*MemeCreated) ProtoMessage()    {}

// VoteCast is emitted after a vote is recorded
type VoteCast struct {
	MemeID uint32 `protobuf:"varint,1,opt,name=meme_id,json=memeId" json:"meme_id"`
	Voter  string `protobuf:"bytes,2,opt,name=voter" json:"voter"`
}

func (m *VoteCast) Reset()         { *m = VoteCast{} }
func (m *VoteCast) String() string { return proto.CompactTextString(m) }
func (*VoteCast) ProtoMessage()    {}

func init() {
	proto.RegisterType((*Meme)(nil), "memevotepb.Meme")
	proto.RegisterType((*MemeCreated)(nil), "memevotepb.MemeCreated")
	proto.RegisterType((*VoteCast)(nil), "memevotepb.VoteCast")
}
