package registry

import (
	"errors"
	"fmt"

	"github.com/pavlenkotm/memevote/storage/kv"
)

var (
	// ErrTitleTooLong is returned by Create when the title
	// is longer than MaxTitleLength runes
	ErrTitleTooLong = errors.New("title is too long")
	// ErrEmptyURL is returned by Create when the url is empty
	ErrEmptyURL = errors.New("url must not be empty")
	// ErrRecordNotFound is returned by VoteUp when the meme
	// does not exist
	ErrRecordNotFound = errors.New("meme does not exist")
	// ErrAlreadyVoted is returned by VoteUp when the caller
	// has already voted for the meme
	ErrAlreadyVoted = errors.New("caller already voted for this meme")
	// ErrIDsExhausted is returned by Create once every
	// possible meme id has been assigned
	ErrIDsExhausted = errors.New("no meme ids left")
	// ErrClosed is returned when the underlying store was closed
	ErrClosed = errors.New("registry was closed")
	// ErrNotInitialized is returned when the registry's
	// partition has not been created
	ErrNotInitialized = errors.New("registry storage has not been created")
)

func wrapError(wrap string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, kv.ErrClosed):
		return ErrClosed
	case errors.Is(err, kv.ErrNoSuchStore), errors.Is(err, kv.ErrNoSuchPartition):
		return ErrNotInitialized
	}

	switch err {
	case ErrTitleTooLong, ErrEmptyURL, ErrRecordNotFound, ErrAlreadyVoted, ErrIDsExhausted:
		return err
	}

	return fmt.Errorf("%s: %w", wrap, err)
}
