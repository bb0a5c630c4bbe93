package registry

import (
	"fmt"

	"github.com/pavlenkotm/memevote/memevote/memevotepb"
	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/storage/kv/keys"
	kv_marshaled "github.com/pavlenkotm/memevote/storage/kv/marshaled"
	"github.com/pavlenkotm/memevote/utils/stream"
	"go.uber.org/zap"
)

func listRange(logger *zap.Logger, txn kv.Transaction, from int64, limit int) ([]memevotepb.Meme, error) {
	if limit <= 0 {
		return []memevotepb.Meme{}, nil
	}

	if from < 1 {
		from = 1
	}

	next, err := nextID(kv.Namespace(txn, metaNs))

	if err != nil {
		return nil, err
	}

	if from >= next {
		return []memevotepb.Meme{}, nil
	}

	kr := keys.All().Gte(memeKey(from)).Lt(memeKey(next))
	logger.Debug("key range chosen", zap.Binary("min", kr.Min), zap.Binary("max", kr.Max))
	iter, err := memesMapReader(kv.Namespace(txn, memesNs)).Keys(kr, kv.SortOrderAsc)

	if err != nil {
		return nil, fmt.Errorf("could not create keys iterator: %w", err)
	}

	return collect(stream.Pipeline(
		kv_marshaled.Stream(iter),
		stream.Map(memeValue),
		stream.Log(logger, "next meme"),
		stream.Limit(limit),
	), limit)
}

// topRanked scans every meme once. The sort keeps only
// the best limit memes seen so far.
func topRanked(logger *zap.Logger, txn kv.Transaction, limit int) ([]memevotepb.Meme, error) {
	if limit <= 0 {
		return []memevotepb.Meme{}, nil
	}

	iter, err := memesMapReader(kv.Namespace(txn, memesNs)).Keys(keys.All(), kv.SortOrderAsc)

	if err != nil {
		return nil, fmt.Errorf("could not create keys iterator: %w", err)
	}

	return collect(stream.Pipeline(
		kv_marshaled.Stream(iter),
		stream.Map(memeValue),
		stream.Sort(byRank, limit),
		stream.Log(logger, "next ranked meme"),
		stream.Limit(limit),
	), limit)
}

func memeValue(value interface{}) interface{} {
	return value.(kv_marshaled.KV).Value()
}

func collect(results stream.Stream, limit int) ([]memevotepb.Meme, error) {
	memes := make([]memevotepb.Meme, 0, initialCapacity(limit))

	for results.Next() {
		memes = append(memes, *results.Value().(*memevotepb.Meme))
	}

	if results.Error() != nil {
		return nil, fmt.Errorf("iteration error: %w", results.Error())
	}

	return memes, nil
}

const (
	maxBufferInitialCapacity = 1000
)

func initialCapacity(limit int) int {
	if limit > maxBufferInitialCapacity {
		return maxBufferInitialCapacity
	}

	return limit
}
