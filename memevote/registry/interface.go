package registry

import (
	"context"

	"github.com/pavlenkotm/memevote/memevote/memevotepb"
)

// MaxTitleLength is the longest title accepted by
// Create, counted in runes
const MaxTitleLength = 100

// Identity identifies a caller. The registry
// compares identities but never interprets them.
type Identity string

// Registry stores memes and the votes cast on them.
// Every mutation is all-or-nothing: a call that returns
// an error leaves the registry unchanged.
type Registry interface {
	// Create stores a new meme owned by caller and returns
	// its id. Ids are assigned sequentially starting at 1.
	// It returns ErrTitleTooLong if title is longer than
	// MaxTitleLength runes, otherwise ErrEmptyURL if url
	// is empty.
	Create(ctx context.Context, caller Identity, title string, url string) (uint32, error)
	// VoteUp adds caller's vote to meme id. It returns
	// ErrRecordNotFound if there is no such meme and
	// ErrAlreadyVoted if caller has voted for it before.
	VoteUp(ctx context.Context, caller Identity, id uint32) error
	// Get looks up meme id. found is false if there is
	// no such meme.
	Get(ctx context.Context, id uint32) (meme memevotepb.Meme, found bool, err error)
	// ListRange returns up to limit memes in id order
	// starting at id from. limit <= 0 returns nothing.
	ListRange(ctx context.Context, from int64, limit int) ([]memevotepb.Meme, error)
	// ListTopRanked returns up to limit memes ordered by
	// likes, highest first, with ties broken by ascending
	// id. limit <= 0 returns nothing.
	ListTopRanked(ctx context.Context, limit int) ([]memevotepb.Meme, error)
	// HasVoted returns true if identity has voted for meme id
	HasVoted(ctx context.Context, identity Identity, id uint32) (bool, error)
	// TotalCount returns the number of memes created so far
	TotalCount(ctx context.Context) (uint32, error)
}
