package registry_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pavlenkotm/memevote/memevote/events"
	"github.com/pavlenkotm/memevote/memevote/memevotepb"
	"github.com/pavlenkotm/memevote/memevote/registry"
	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/storage/kv/keys"
	"github.com/pavlenkotm/memevote/storage/kv/plugins"
	"go.uber.org/zap"
)

type registryBuilder func(t *testing.T) (registry.Registry, *events.Recorder)

func builder(plugin kv.Plugin) registryBuilder {
	return func(t *testing.T) (registry.Registry, *events.Recorder) {
		rootStore, partition := tempPartition(t, plugin)

		t.Cleanup(func() {
			if err := rootStore.Delete(); err != nil {
				t.Errorf("could not delete %s store: %s", plugin.Name(), err)
			}
		})

		recorder := &events.Recorder{}

		return registry.New(registry.Config{
			Logger:    zap.NewNop(),
			Partition: partition,
			Sink:      recorder,
		}), recorder
	}
}

func tempPartition(t *testing.T, plugin kv.Plugin) (kv.RootStore, kv.Partition) {
	rootStore, err := plugin.NewTempRootStore()

	if errors.Is(err, kv.ErrUnavailable) {
		t.Skipf("%s is unavailable in this environment", plugin.Name())
	}

	if err != nil {
		t.Fatalf("could not build a %s store: %s", plugin.Name(), err)
	}

	store := rootStore.Store([]byte("memevote"))

	if err := store.Create(); err != nil {
		t.Fatalf("could not create store: %s", err)
	}

	partition := store.Partition([]byte("registry"))

	if err := partition.Create(); err != nil {
		t.Fatalf("could not create partition: %s", err)
	}

	return rootStore, partition
}

func TestRegistry(t *testing.T) {
	for _, plugin := range plugins.Plugins() {
		t.Run(plugin.Name(), registryTest(builder(plugin)))
	}
}

func registryTest(builder registryBuilder) func(t *testing.T) {
	return func(t *testing.T) {
		t.Run("create", func(t *testing.T) { testCreate(builder, t) })
		t.Run("create-invalid", func(t *testing.T) { testCreateInvalid(builder, t) })
		t.Run("vote-up", func(t *testing.T) { testVoteUp(builder, t) })
		t.Run("vote-up-missing", func(t *testing.T) { testVoteUpMissing(builder, t) })
		t.Run("get", func(t *testing.T) { testGet(builder, t) })
		t.Run("list-range", func(t *testing.T) { testListRange(builder, t) })
		t.Run("list-top-ranked", func(t *testing.T) { testListTopRanked(builder, t) })
		t.Run("events", func(t *testing.T) { testEvents(builder, t) })
		t.Run("concurrent-votes", func(t *testing.T) { testConcurrentVotes(builder, t) })
		t.Run("opaque-bytes", func(t *testing.T) { testOpaqueBytes(builder, t) })
	}
}

func create(t *testing.T, r registry.Registry, caller registry.Identity, n int) {
	for i := 0; i < n; i++ {
		if _, err := r.Create(context.Background(), caller, "meme", "https://memes.example/m.png"); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}
}

func totalCount(t *testing.T, r registry.Registry) uint32 {
	count, err := r.TotalCount(context.Background())

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return count
}

func ids(memes []memevotepb.Meme) []uint32 {
	result := []uint32{}

	for _, meme := range memes {
		result = append(result, meme.ID)
	}

	return result
}

func testCreate(builder registryBuilder, t *testing.T) {
	r, _ := builder(t)

	if totalCount(t, r) != 0 {
		t.Fatalf("expected an empty registry")
	}

	titles := []string{"", "a", strings.Repeat("x", registry.MaxTitleLength), strings.Repeat("é", registry.MaxTitleLength)}

	for i, title := range titles {
		before := totalCount(t, r)
		id, err := r.Create(context.Background(), "alice", title, "u")

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if id != before+1 {
			t.Fatalf("expected id %d, got %d", before+1, id)
		}

		if totalCount(t, r) != uint32(i+1) {
			t.Fatalf("expected count %d, got %d", i+1, totalCount(t, r))
		}

		meme, found, err := r.Get(context.Background(), id)

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if !found {
			t.Fatalf("expected meme %d to exist", id)
		}

		expected := memevotepb.Meme{ID: id, Creator: "alice", Title: title, URL: "u"}

		if diff := cmp.Diff(expected, meme); diff != "" {
			t.Fatal(diff)
		}
	}
}

func testCreateInvalid(builder registryBuilder, t *testing.T) {
	testCases := map[string]struct {
		title string
		url   string
		err   error
	}{
		"title-101-runes": {
			title: strings.Repeat("x", registry.MaxTitleLength+1),
			url:   "u",
			err:   registry.ErrTitleTooLong,
		},
		"title-101-multibyte-runes": {
			title: strings.Repeat("ü", registry.MaxTitleLength+1),
			url:   "u",
			err:   registry.ErrTitleTooLong,
		},
		"empty-url": {
			title: "t",
			url:   "",
			err:   registry.ErrEmptyURL,
		},
		"title-checked-first": {
			title: strings.Repeat("x", registry.MaxTitleLength+1),
			url:   "",
			err:   registry.ErrTitleTooLong,
		},
	}

	r, recorder := builder(t)
	create(t, r, "alice", 2)
	recorder.Reset()

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			id, err := r.Create(context.Background(), "bob", testCase.title, testCase.url)

			if err != testCase.err {
				t.Fatalf("expected %#v, got %#v", testCase.err, err)
			}

			if id != 0 {
				t.Fatalf("expected id 0, got %d", id)
			}

			if totalCount(t, r) != 2 {
				t.Fatalf("expected count to stay 2, got %d", totalCount(t, r))
			}

			if len(recorder.Events()) != 0 {
				t.Fatalf("expected no events, got %v", recorder.Events())
			}
		})
	}

	id, err := r.Create(context.Background(), "bob", "t", "u")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if id != 3 {
		t.Fatalf("expected failed creates not to consume ids, got %d", id)
	}
}

func testVoteUp(builder registryBuilder, t *testing.T) {
	r, _ := builder(t)
	create(t, r, "alice", 2)

	voted, err := r.HasVoted(context.Background(), "bob", 1)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if voted {
		t.Fatalf("expected bob not to have voted yet")
	}

	if err := r.VoteUp(context.Background(), "bob", 1); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := r.VoteUp(context.Background(), "bob", 1); err != registry.ErrAlreadyVoted {
		t.Fatalf("expected ErrAlreadyVoted, got %#v", err)
	}

	// Creators may vote for their own memes
	if err := r.VoteUp(context.Background(), "alice", 1); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := r.VoteUp(context.Background(), "bob", 2); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	meme, _, err := r.Get(context.Background(), 1)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if meme.Likes != 2 {
		t.Fatalf("expected 2 likes, got %d", meme.Likes)
	}

	testCases := map[string]struct {
		identity registry.Identity
		id       uint32
		voted    bool
	}{
		"bob-1":   {identity: "bob", id: 1, voted: true},
		"bob-2":   {identity: "bob", id: 2, voted: true},
		"alice-1": {identity: "alice", id: 1, voted: true},
		"alice-2": {identity: "alice", id: 2, voted: false},
		"carol-1": {identity: "carol", id: 1, voted: false},
		"bob-3":   {identity: "bob", id: 3, voted: false},
		"empty-1": {identity: "", id: 1, voted: false},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			voted, err := r.HasVoted(context.Background(), testCase.identity, testCase.id)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if voted != testCase.voted {
				t.Fatalf("expected voted = %t, got %t", testCase.voted, voted)
			}
		})
	}
}

func testVoteUpMissing(builder registryBuilder, t *testing.T) {
	r, recorder := builder(t)

	for _, identity := range []registry.Identity{"alice", "bob", ""} {
		for _, id := range []uint32{0, 1, 99} {
			if err := r.VoteUp(context.Background(), identity, id); err != registry.ErrRecordNotFound {
				t.Fatalf("expected ErrRecordNotFound, got %#v", err)
			}
		}
	}

	create(t, r, "alice", 1)
	recorder.Reset()

	if err := r.VoteUp(context.Background(), "bob", 2); err != registry.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound, got %#v", err)
	}

	voted, err := r.HasVoted(context.Background(), "bob", 2)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if voted {
		t.Fatalf("expected a failed vote not to be recorded")
	}

	if len(recorder.Events()) != 0 {
		t.Fatalf("expected no events, got %v", recorder.Events())
	}
}

func testGet(builder registryBuilder, t *testing.T) {
	r, _ := builder(t)
	create(t, r, "alice", 1)

	for _, id := range []uint32{0, 2} {
		meme, found, err := r.Get(context.Background(), id)

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if found {
			t.Fatalf("expected meme %d not to be found, got %v", id, meme)
		}
	}

	first, _, err := r.Get(context.Background(), 1)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	second, _, err := r.Get(context.Background(), 1)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatal(diff)
	}
}

func testListRange(builder registryBuilder, t *testing.T) {
	r, _ := builder(t)
	create(t, r, "alice", 5)

	testCases := map[string]struct {
		from  int64
		limit int
		ids   []uint32
	}{
		"first-three":     {from: 1, limit: 3, ids: []uint32{1, 2, 3}},
		"past-the-end":    {from: 10, limit: 5, ids: []uint32{}},
		"limit-zero":      {from: 1, limit: 0, ids: []uint32{}},
		"negative-limit":  {from: 1, limit: -1, ids: []uint32{}},
		"clipped-at-end":  {from: 4, limit: 10, ids: []uint32{4, 5}},
		"from-zero":       {from: 0, limit: 2, ids: []uint32{1, 2}},
		"from-negative":   {from: -5, limit: 10, ids: []uint32{1, 2, 3, 4, 5}},
		"at-next-id":      {from: 6, limit: 1, ids: []uint32{}},
		"last":            {from: 5, limit: 1, ids: []uint32{5}},
		"beyond-id-space": {from: 1 << 40, limit: 1, ids: []uint32{}},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			memes, err := r.ListRange(context.Background(), testCase.from, testCase.limit)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff(testCase.ids, ids(memes)); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func testListTopRanked(builder registryBuilder, t *testing.T) {
	r, _ := builder(t)

	memes, err := r.ListTopRanked(context.Background(), 3)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if len(memes) != 0 {
		t.Fatalf("expected no memes, got %v", memes)
	}

	create(t, r, "alice", 3)

	if err := r.VoteUp(context.Background(), "bob", 2); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	memes, err = r.ListTopRanked(context.Background(), 2)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	expected := []memevotepb.Meme{
		{ID: 2, Creator: "alice", Title: "meme", URL: "https://memes.example/m.png", Likes: 1},
		{ID: 1, Creator: "alice", Title: "meme", URL: "https://memes.example/m.png", Likes: 0},
	}

	if diff := cmp.Diff(expected, memes); diff != "" {
		t.Fatal(diff)
	}

	create(t, r, "alice", 3)

	votes := map[uint32][]registry.Identity{
		3: {"a", "b", "c"},
		5: {"a", "b", "c"},
		6: {"a"},
	}

	for id, voters := range votes {
		for _, voter := range voters {
			if err := r.VoteUp(context.Background(), voter, id); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}
		}
	}

	testCases := map[string]struct {
		limit int
		ids   []uint32
	}{
		"zero":          {limit: 0, ids: []uint32{}},
		"negative":      {limit: -3, ids: []uint32{}},
		"one":           {limit: 1, ids: []uint32{3}},
		"ties-by-id":    {limit: 4, ids: []uint32{3, 5, 2, 6}},
		"all":           {limit: 6, ids: []uint32{3, 5, 2, 6, 1, 4}},
		"more-than-all": {limit: 100, ids: []uint32{3, 5, 2, 6, 1, 4}},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			memes, err := r.ListTopRanked(context.Background(), testCase.limit)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff(testCase.ids, ids(memes)); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func testEvents(builder registryBuilder, t *testing.T) {
	r, recorder := builder(t)

	if _, err := r.Create(context.Background(), "alice", "t", "u"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := r.VoteUp(context.Background(), "bob", 1); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	r.VoteUp(context.Background(), "bob", 1)
	r.Create(context.Background(), "alice", "t", "")

	expected := []events.Event{
		&memevotepb.MemeCreated{ID: 1, Creator: "alice", Title: "t", URL: "u"},
		&memevotepb.VoteCast{MemeID: 1, Voter: "bob"},
	}

	if diff := cmp.Diff(expected, recorder.Events()); diff != "" {
		t.Fatal(diff)
	}
}

func testConcurrentVotes(builder registryBuilder, t *testing.T) {
	r, _ := builder(t)
	create(t, r, "alice", 1)

	var wg sync.WaitGroup

	voters := []registry.Identity{"a", "b", "c", "d", "e", "f", "g", "h"}
	errs := make(chan error, len(voters)*2)

	for _, voter := range voters {
		for i := 0; i < 2; i++ {
			wg.Add(1)

			go func(voter registry.Identity) {
				defer wg.Done()

				errs <- r.VoteUp(context.Background(), voter, 1)
			}(voter)
		}
	}

	wg.Wait()
	close(errs)

	succeeded := 0

	for err := range errs {
		switch err {
		case nil:
			succeeded++
		case registry.ErrAlreadyVoted:
		default:
			t.Fatalf("unexpected error %#v", err)
		}
	}

	if succeeded != len(voters) {
		t.Fatalf("expected %d successful votes, got %d", len(voters), succeeded)
	}

	meme, _, err := r.Get(context.Background(), 1)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if meme.Likes != uint32(len(voters)) {
		t.Fatalf("expected %d likes, got %d", len(voters), meme.Likes)
	}
}

func testOpaqueBytes(builder registryBuilder, t *testing.T) {
	r, recorder := builder(t)
	ctx := context.Background()
	caller := registry.Identity("\xff\xfeacct")
	title := "caf\xe9"

	id, err := r.Create(ctx, caller, title, "https://memes.example/\x80.png")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := r.VoteUp(ctx, caller, id); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := r.VoteUp(ctx, caller, id); err != registry.ErrAlreadyVoted {
		t.Fatalf("expected ErrAlreadyVoted, got %#v", err)
	}

	if err := r.VoteUp(ctx, registry.Identity("\xff\xfe"), id); err != nil {
		t.Fatalf("expected a prefix of the identity to vote separately, got %#v", err)
	}

	meme, found, err := r.Get(ctx, id)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	expected := memevotepb.Meme{ID: id, Creator: string(caller), Title: title, URL: "https://memes.example/\x80.png", Likes: 2}

	if !found {
		t.Fatalf("expected meme %d to exist", id)
	}

	if diff := cmp.Diff(expected, meme); diff != "" {
		t.Fatal(diff)
	}

	voted, err := r.HasVoted(ctx, caller, id)

	if err != nil || !voted {
		t.Fatalf("expected %q to have voted, got %t %#v", caller, voted, err)
	}

	if totalCount(t, r) != 1 {
		t.Fatalf("expected count 1, got %d", totalCount(t, r))
	}

	created, ok := recorder.Events()[0].(*memevotepb.MemeCreated)

	if !ok || created.Creator != string(caller) || created.Title != title {
		t.Fatalf("expected a creation event carrying the raw bytes, got %#v", recorder.Events()[0])
	}
}

func TestIDsExhausted(t *testing.T) {
	for _, plugin := range plugins.Plugins() {
		t.Run(plugin.Name(), func(t *testing.T) {
			rootStore, partition := tempPartition(t, plugin)
			defer rootStore.Delete()

			txn, err := partition.Begin(true)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			next := keys.Int64ToKey(math.MaxUint32)

			if err := txn.Put([]byte{2, 0}, next[:]); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if err := txn.Commit(); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			r := registry.New(registry.Config{Logger: zap.NewNop(), Partition: partition})
			ctx := context.Background()

			if totalCount(t, r) != math.MaxUint32-1 {
				t.Fatalf("expected count %d, got %d", uint32(math.MaxUint32-1), totalCount(t, r))
			}

			id, err := r.Create(ctx, "alice", "last", "u")

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if id != math.MaxUint32 {
				t.Fatalf("expected id %d, got %d", uint32(math.MaxUint32), id)
			}

			if err := r.VoteUp(ctx, "bob", id); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if _, err := r.Create(ctx, "alice", "one more", "u"); err != registry.ErrIDsExhausted {
				t.Fatalf("expected ErrIDsExhausted, got %#v", err)
			}

			if totalCount(t, r) != math.MaxUint32 {
				t.Fatalf("expected count %d, got %d", uint32(math.MaxUint32), totalCount(t, r))
			}

			memes, err := r.ListRange(ctx, math.MaxUint32-5, 10)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff([]uint32{math.MaxUint32}, ids(memes)); diff != "" {
				t.Fatal(diff)
			}

			memes, err = r.ListTopRanked(ctx, 3)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff([]uint32{math.MaxUint32}, ids(memes)); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestSinkPanic(t *testing.T) {
	rootStore, partition := tempPartition(t, plugins.Plugin("memory"))
	defer rootStore.Delete()

	r := registry.New(registry.Config{
		Logger:    zap.NewNop(),
		Partition: partition,
		Sink: events.SinkFunc(func(ctx context.Context, event events.Event) {
			panic("sink failure")
		}),
	})

	id, err := r.Create(context.Background(), "alice", "t", "u")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := r.VoteUp(context.Background(), "bob", id); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	meme, found, err := r.Get(context.Background(), id)

	if err != nil || !found || meme.Likes != 1 {
		t.Fatalf("expected the vote to be committed, got %v %t %#v", meme, found, err)
	}
}

func TestStorageErrors(t *testing.T) {
	rootStore, partition := tempPartition(t, plugins.Plugin("bbolt"))
	defer rootStore.Delete()

	r := registry.New(registry.Config{Partition: rootStore.Store([]byte("memevote")).Partition([]byte("missing"))})

	if _, err := r.TotalCount(context.Background()); err != registry.ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized, got %#v", err)
	}

	r = registry.New(registry.Config{Partition: partition})

	if err := rootStore.Close(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := r.Create(context.Background(), "alice", "t", "u"); err != registry.ErrClosed {
		t.Fatalf("expected ErrClosed, got %#v", err)
	}

	if _, _, err := r.Get(context.Background(), 1); err != registry.ErrClosed {
		t.Fatalf("expected ErrClosed, got %#v", err)
	}
}

func TestSynchronized(t *testing.T) {
	rootStore, partition := tempPartition(t, plugins.Plugin("memory"))
	defer rootStore.Delete()

	var mu sync.Mutex

	var order []uint32

	r := registry.Synchronized(registry.New(registry.Config{
		Logger:    zap.NewNop(),
		Partition: partition,
		Sink: events.SinkFunc(func(ctx context.Context, event events.Event) {
			if created, ok := event.(*memevotepb.MemeCreated); ok {
				mu.Lock()
				order = append(order, created.ID)
				mu.Unlock()
			}
		}),
	}))

	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := r.Create(context.Background(), "alice", "t", "u"); err != nil {
				t.Errorf("expected err to be nil, got %#v", err)
			}
		}()
	}

	wg.Wait()

	for i, id := range order {
		if id != uint32(i+1) {
			t.Fatalf("expected events in id order, got %v", order)
		}
	}

	count, err := r.TotalCount(context.Background())

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if count != 20 || len(order) != 20 {
		t.Fatalf("expected 20 memes, got %d with %d events", count, len(order))
	}
}
