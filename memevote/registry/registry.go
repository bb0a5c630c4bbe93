// Package registry implements the meme registry on
// top of a single kv partition.
package registry

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/pavlenkotm/memevote/memevote/events"
	"github.com/pavlenkotm/memevote/memevote/memevotepb"
	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/utils/log"
	"go.uber.org/zap"
)

var _ Registry = (*registry)(nil)

// Config contains configuration for a registry
type Config struct {
	Logger *zap.Logger
	// Partition holds the registry's state. It
	// must already exist.
	Partition kv.Partition
	// Sink receives an event after every successful
	// mutation. Defaults to events.Nop.
	Sink events.Sink
}

type registry struct {
	logger    *zap.Logger
	partition kv.Partition
	sink      events.Sink
}

// New creates a registry backed by config.Partition
func New(config Config) Registry {
	registry := &registry{
		logger:    config.Logger,
		partition: config.Partition,
		sink:      config.Sink,
	}

	if registry.logger == nil {
		registry.logger = zap.L()
	}

	if registry.sink == nil {
		registry.sink = events.Nop
	}

	return registry
}

// Create implements Registry.Create
func (registry *registry) Create(ctx context.Context, caller Identity, title string, url string) (uint32, error) {
	logger := log.WithContext(ctx, registry.logger).With(zap.String("operation", "Create"))
	logger.Debug("start", zap.String("caller", string(caller)), zap.String("title", title), zap.String("url", url))

	if utf8.RuneCountInString(title) > MaxTitleLength {
		logger.Debug("rejected", zap.Error(ErrTitleTooLong))

		return 0, ErrTitleTooLong
	}

	if url == "" {
		logger.Debug("rejected", zap.Error(ErrEmptyURL))

		return 0, ErrEmptyURL
	}

	var meme memevotepb.Meme

	err := registry.update(func(txn kv.Transaction) error {
		meta := kv.Namespace(txn, metaNs)
		id, err := nextID(meta)

		if err != nil {
			return err
		}

		if id > math.MaxUint32 {
			return ErrIDsExhausted
		}

		meme = memevotepb.Meme{
			ID:      uint32(id),
			Creator: string(caller),
			Title:   title,
			URL:     url,
		}

		if err := memesMap(kv.Namespace(txn, memesNs)).Put(memeKey(id), &meme); err != nil {
			return fmt.Errorf("could not put meme %d: %w", id, err)
		}

		return setNextID(meta, id+1)
	})

	if err != nil {
		err = wrapError("could not create meme", err)
		logger.Debug("error", zap.Error(err))

		return 0, err
	}

	registry.notify(ctx, logger, meme.Created())
	logger.Debug("return", zap.Uint32("id", meme.ID))

	return meme.ID, nil
}

// VoteUp implements Registry.VoteUp
func (registry *registry) VoteUp(ctx context.Context, caller Identity, id uint32) error {
	logger := log.WithContext(ctx, registry.logger).With(zap.String("operation", "VoteUp"))
	logger.Debug("start", zap.String("caller", string(caller)), zap.Uint32("id", id))

	err := registry.update(func(txn kv.Transaction) error {
		memes := memesMap(kv.Namespace(txn, memesNs))
		raw, err := memes.Get(memeKey(int64(id)))

		if err != nil {
			return fmt.Errorf("could not get meme %d: %w", id, err)
		}

		if raw == nil {
			return ErrRecordNotFound
		}

		votes := kv.Namespace(txn, votesNs)
		vote, err := votes.Get(voteKey(id, caller))

		if err != nil {
			return fmt.Errorf("could not get vote: %w", err)
		}

		if vote != nil {
			return ErrAlreadyVoted
		}

		meme := raw.(*memevotepb.Meme)
		meme.Likes++

		if err := memes.Put(memeKey(int64(id)), meme); err != nil {
			return fmt.Errorf("could not put meme %d: %w", id, err)
		}

		if err := votes.Put(voteKey(id, caller), []byte{1}); err != nil {
			return fmt.Errorf("could not put vote: %w", err)
		}

		return nil
	})

	if err != nil {
		err = wrapError("could not vote", err)
		logger.Debug("error", zap.Error(err))

		return err
	}

	registry.notify(ctx, logger, &memevotepb.VoteCast{MemeID: id, Voter: string(caller)})
	logger.Debug("return")

	return nil
}

// Get implements Registry.Get
func (registry *registry) Get(ctx context.Context, id uint32) (memevotepb.Meme, bool, error) {
	logger := log.WithContext(ctx, registry.logger).With(zap.String("operation", "Get"))
	logger.Debug("start", zap.Uint32("id", id))

	var meme *memevotepb.Meme

	err := registry.view(func(txn kv.Transaction) error {
		raw, err := memesMapReader(kv.Namespace(txn, memesNs)).Get(memeKey(int64(id)))

		if err != nil {
			return fmt.Errorf("could not get meme %d: %w", id, err)
		}

		if raw != nil {
			meme = raw.(*memevotepb.Meme)
		}

		return nil
	})

	if err != nil {
		err = wrapError("could not get meme", err)
		logger.Debug("error", zap.Error(err))

		return memevotepb.Meme{}, false, err
	}

	if meme == nil {
		logger.Debug("return", zap.Bool("found", false))

		return memevotepb.Meme{}, false, nil
	}

	logger.Debug("return", zap.Bool("found", true), zap.Stringer("meme", meme))

	return *meme, true, nil
}

// ListRange implements Registry.ListRange
func (registry *registry) ListRange(ctx context.Context, from int64, limit int) ([]memevotepb.Meme, error) {
	logger := log.WithContext(ctx, registry.logger).With(zap.String("operation", "ListRange"))
	logger.Debug("start", zap.Int64("from", from), zap.Int("limit", limit))

	var result []memevotepb.Meme

	err := registry.view(func(txn kv.Transaction) error {
		var err error

		result, err = listRange(logger, txn, from, limit)

		return err
	})

	if err != nil {
		err = wrapError("could not list memes", err)
		logger.Debug("error", zap.Error(err))

		return nil, err
	}

	logger.Debug("return", zap.Int("count", len(result)))

	return result, nil
}

// ListTopRanked implements Registry.ListTopRanked
func (registry *registry) ListTopRanked(ctx context.Context, limit int) ([]memevotepb.Meme, error) {
	logger := log.WithContext(ctx, registry.logger).With(zap.String("operation", "ListTopRanked"))
	logger.Debug("start", zap.Int("limit", limit))

	var result []memevotepb.Meme

	err := registry.view(func(txn kv.Transaction) error {
		var err error

		result, err = topRanked(logger, txn, limit)

		return err
	})

	if err != nil {
		err = wrapError("could not rank memes", err)
		logger.Debug("error", zap.Error(err))

		return nil, err
	}

	logger.Debug("return", zap.Int("count", len(result)))

	return result, nil
}

// HasVoted implements Registry.HasVoted
func (registry *registry) HasVoted(ctx context.Context, identity Identity, id uint32) (bool, error) {
	logger := log.WithContext(ctx, registry.logger).With(zap.String("operation", "HasVoted"))
	logger.Debug("start", zap.String("identity", string(identity)), zap.Uint32("id", id))

	var voted bool

	err := registry.view(func(txn kv.Transaction) error {
		vote, err := kv.Namespace(txn, votesNs).Get(voteKey(id, identity))

		if err != nil {
			return fmt.Errorf("could not get vote: %w", err)
		}

		voted = vote != nil

		return nil
	})

	if err != nil {
		err = wrapError("could not check vote", err)
		logger.Debug("error", zap.Error(err))

		return false, err
	}

	logger.Debug("return", zap.Bool("voted", voted))

	return voted, nil
}

// TotalCount implements Registry.TotalCount
func (registry *registry) TotalCount(ctx context.Context) (uint32, error) {
	logger := log.WithContext(ctx, registry.logger).With(zap.String("operation", "TotalCount"))
	logger.Debug("start")

	var count uint32

	err := registry.view(func(txn kv.Transaction) error {
		id, err := nextID(kv.Namespace(txn, metaNs))

		if err != nil {
			return err
		}

		count = uint32(id - 1)

		return nil
	})

	if err != nil {
		err = wrapError("could not count memes", err)
		logger.Debug("error", zap.Error(err))

		return 0, err
	}

	logger.Debug("return", zap.Uint32("count", count))

	return count, nil
}

// notify hands event to the sink. A panicking
// sink cannot undo a committed mutation.
func (registry *registry) notify(ctx context.Context, logger *zap.Logger, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("event sink panicked", zap.String("event", event.EventType()), zap.Any("panic", r))
		}
	}()

	registry.sink.Notify(ctx, event)
}

func (registry *registry) view(fn func(txn kv.Transaction) error) error {
	transaction, err := registry.partition.Begin(false)

	if err != nil {
		return fmt.Errorf("could not begin kv transaction: %w", err)
	}

	defer transaction.Rollback()

	return fn(transaction)
}

func (registry *registry) update(fn func(txn kv.Transaction) error) error {
	transaction, err := registry.partition.Begin(true)

	if err != nil {
		return fmt.Errorf("could not begin kv transaction: %w", err)
	}

	defer transaction.Rollback()

	if err := fn(transaction); err != nil {
		return err
	}

	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("could not commit kv transaction: %w", err)
	}

	return nil
}
