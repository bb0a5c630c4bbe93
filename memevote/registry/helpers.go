package registry

import (
	"encoding/binary"
	"fmt"

	"github.com/pavlenkotm/memevote/memevote/memevotepb"
	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/storage/kv/keys"
	kv_marshaled "github.com/pavlenkotm/memevote/storage/kv/marshaled"
)

// Partition layout
var (
	memesNs = []byte{0}
	votesNs = []byte{1}
	metaNs  = []byte{2}

	nextIDKey = []byte{0}
)

func memeKey(id int64) []byte {
	k := keys.Int64ToKey(id)

	return k[:]
}

// voteKey puts the meme id first so all votes
// for one meme share a prefix
func voteKey(id uint32, identity Identity) []byte {
	return keys.Join(memeKey(int64(id)), []byte(identity))
}

func memesMapReader(m kv.MapReader) *kv_marshaled.MapReader {
	return &kv_marshaled.MapReader{
		MapReader: m,
		Unmarshal: memevotepb.UnmarshalMeme,
	}
}

func memesMap(m kv.Map) *kv_marshaled.Map {
	return &kv_marshaled.Map{
		MapUpdater: kv_marshaled.MapUpdater{MapUpdater: m},
		MapReader:  *memesMapReader(m),
	}
}

// nextID reads the id the next meme will get.
// An unset counter means no meme exists yet.
func nextID(meta kv.MapReader) (int64, error) {
	value, err := meta.Get(nextIDKey)

	if err != nil {
		return 0, fmt.Errorf("could not read next id: %w", err)
	}

	if value == nil {
		return 1, nil
	}

	if len(value) != 8 {
		return 0, fmt.Errorf("next id is corrupt: expected 8 bytes, got %d", len(value))
	}

	return int64(binary.BigEndian.Uint64(value)), nil
}

func setNextID(meta kv.MapUpdater, id int64) error {
	if err := meta.Put(nextIDKey, memeKey(id)); err != nil {
		return fmt.Errorf("could not write next id: %w", err)
	}

	return nil
}

// byRank orders memes by likes descending,
// then id ascending
func byRank(a interface{}, b interface{}) int {
	memeA := a.(*memevotepb.Meme)
	memeB := b.(*memevotepb.Meme)

	switch {
	case memeA.Likes > memeB.Likes:
		return -1
	case memeA.Likes < memeB.Likes:
		return 1
	case memeA.ID < memeB.ID:
		return -1
	case memeA.ID > memeB.ID:
		return 1
	}

	return 0
}
