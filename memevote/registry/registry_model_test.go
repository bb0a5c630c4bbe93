package registry_test

import (
	"sort"
	"unicode/utf8"

	"github.com/pavlenkotm/memevote/memevote/memevotepb"
	"github.com/pavlenkotm/memevote/memevote/registry"
)

type vote struct {
	identity registry.Identity
	id       uint32
}

// registryModel is a plain in-memory registry
// that the real one is checked against
type registryModel struct {
	memes []memevotepb.Meme
	votes map[vote]bool
	last  result
}

func newRegistryModel() *registryModel {
	return &registryModel{votes: map[vote]bool{}}
}

// result is what a command observed. Errors are
// compared by message.
type result struct {
	ID    uint32
	Found bool
	Voted bool
	Count uint32
	Memes []memevotepb.Meme
	Meme  memevotepb.Meme
	Err   string
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

func (model *registryModel) create(caller registry.Identity, title string, url string) result {
	if utf8.RuneCountInString(title) > registry.MaxTitleLength {
		return result{Err: errString(registry.ErrTitleTooLong)}
	}

	if url == "" {
		return result{Err: errString(registry.ErrEmptyURL)}
	}

	id := uint32(len(model.memes) + 1)
	model.memes = append(model.memes, memevotepb.Meme{ID: id, Creator: string(caller), Title: title, URL: url})

	return result{ID: id}
}

func (model *registryModel) voteUp(caller registry.Identity, id uint32) result {
	if id == 0 || int(id) > len(model.memes) {
		return result{Err: errString(registry.ErrRecordNotFound)}
	}

	if model.votes[vote{caller, id}] {
		return result{Err: errString(registry.ErrAlreadyVoted)}
	}

	model.votes[vote{caller, id}] = true
	model.memes[id-1].Likes++

	return result{}
}

func (model *registryModel) get(id uint32) result {
	if id == 0 || int(id) > len(model.memes) {
		return result{}
	}

	return result{Found: true, Meme: model.memes[id-1]}
}

func (model *registryModel) listRange(from int64, limit int) result {
	memes := []memevotepb.Meme{}

	for id := from; limit > 0 && len(memes) < limit && id <= int64(len(model.memes)); id++ {
		if id < 1 {
			continue
		}

		memes = append(memes, model.memes[id-1])
	}

	return result{Memes: memes}
}

func (model *registryModel) topRanked(limit int) result {
	memes := make([]memevotepb.Meme, len(model.memes))
	copy(memes, model.memes)

	sort.SliceStable(memes, func(i, j int) bool {
		return memes[i].Likes > memes[j].Likes
	})

	if limit < 0 {
		limit = 0
	}

	if limit < len(memes) {
		memes = memes[:limit]
	}

	return result{Memes: memes}
}

func (model *registryModel) hasVoted(identity registry.Identity, id uint32) result {
	return result{Voted: model.votes[vote{identity, id}]}
}

func (model *registryModel) totalCount() result {
	return result{Count: uint32(len(model.memes))}
}
