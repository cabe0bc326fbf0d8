package cache

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/paramcache/store"
)

func newTestGroup(t *testing.T, s store.Store, names []string, opts ...GroupOption) (*Group, []*Parameter) {
	t.Helper()
	g, err := NewGroup(s, opts...)
	if err != nil {
		t.Fatalf("NewGroup() error = %v", err)
	}
	params := make([]*Parameter, 0, len(names))
	for _, name := range names {
		p, err := g.Add(name)
		if err != nil {
			t.Fatalf("Add(%q) error = %v", name, err)
		}
		params = append(params, p)
	}
	return g, params
}

func TestNewGroup_NilStore(t *testing.T) {
	if _, err := NewGroup(nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("NewGroup(nil) error = %v, want ErrConfig", err)
	}
}

func TestGroup_AddValidation(t *testing.T) {
	g, _ := newTestGroup(t, store.NewMemoryStore(nil), []string{"/a"})

	if _, err := g.Add("/b", WithMaxAge(time.Minute)); !errors.Is(err, ErrConfig) {
		t.Errorf("Add(WithMaxAge) error = %v, want ErrConfig", err)
	}
	if _, err := g.Add("/a"); !errors.Is(err, ErrConfig) {
		t.Errorf("Add(duplicate) error = %v, want ErrConfig", err)
	}
	if _, err := g.Add(""); !errors.Is(err, ErrConfig) {
		t.Errorf("Add(empty) error = %v, want ErrConfig", err)
	}
	if got := g.Names(); !slices.Equal(got, []string{"/a"}) {
		t.Errorf("Names() = %v, want [/a]", got)
	}
}

func TestGroup_AddInheritsDecryption(t *testing.T) {
	g, _ := NewGroup(store.NewMemoryStore(nil), WithGroupDecryption(false))

	inherited, _ := g.Add("/a")
	overridden, _ := g.Add("/b", WithDecryption(true))

	if inherited.Decrypt() {
		t.Error("member should inherit decrypt=false from the group")
	}
	if !overridden.Decrypt() {
		t.Error("WithDecryption(true) should override the group default")
	}
	if inherited.Group() != g {
		t.Error("Group() should return the owning group")
	}
}

func TestGroup_RefreshBatchesInInsertionOrder(t *testing.T) {
	names := memberNames(25)
	values := make(map[string]string, len(names))
	for _, n := range names {
		values[n] = "v" + n
	}
	s := store.NewMemoryStore(values)
	g, params := newTestGroup(t, s, names)

	if err := g.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	batches := s.Batches()
	if len(batches) != 3 {
		t.Fatalf("FetchMany calls = %d, want 3", len(batches))
	}
	want := [][]string{names[0:10], names[10:20], names[20:25]}
	for i := range want {
		if !slices.Equal(batches[i], want[i]) {
			t.Errorf("batch %d = %v, want %v", i, batches[i], want[i])
		}
	}

	for _, p := range params {
		if got := p.current(); got != "v"+p.Name() {
			t.Errorf("%s = %q, want %q", p.Name(), got, "v"+p.Name())
		}
	}
	if one, _ := s.Calls(); one != 0 {
		t.Errorf("FetchOne calls = %d, want 0 for grouped parameters", one)
	}
}

func TestGroup_RefreshWithBatchSize(t *testing.T) {
	s := store.NewMemoryStore(nil)
	g, _ := newTestGroup(t, s, memberNames(5), WithBatchSize(2))

	_ = g.Refresh(context.Background())

	if _, many := s.Calls(); many != 3 {
		t.Errorf("FetchMany calls = %d, want 3", many)
	}
}

func TestGroup_RefreshReportsInvalidNames(t *testing.T) {
	s := store.NewMemoryStore(map[string]string{"/a": "1", "/c": "3"})
	g, params := newTestGroup(t, s, []string{"/a", "/b", "/c"})

	err := g.Refresh(context.Background())

	var invalid *InvalidParamError
	if !errors.As(err, &invalid) {
		t.Fatalf("Refresh() error = %v, want *InvalidParamError", err)
	}
	if !slices.Equal(invalid.Names, []string{"/b"}) {
		t.Errorf("invalid names = %v, want [/b]", invalid.Names)
	}
	if params[0].current() != "1" || params[2].current() != "3" {
		t.Errorf("valid members not updated: a=%q c=%q", params[0].current(), params[2].current())
	}
	if params[1].isSet() {
		t.Error("invalid member should stay unset")
	}
	if !errors.Is(g.LastError(), ErrInvalidParam) {
		t.Errorf("LastError() = %v", g.LastError())
	}
}

func TestGroup_InvalidNamesCollectedAcrossBatches(t *testing.T) {
	names := memberNames(12)
	s := store.NewMemoryStore(map[string]string{names[1]: "x"})
	g, _ := newTestGroup(t, s, names)

	err := g.Refresh(context.Background())

	var invalid *InvalidParamError
	if !errors.As(err, &invalid) {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(invalid.Names) != 11 {
		t.Errorf("invalid count = %d, want 11", len(invalid.Names))
	}
	if _, many := s.Calls(); many != 2 {
		t.Errorf("FetchMany calls = %d, want 2", many)
	}
}

func TestGroup_TransportErrorStopsRefresh(t *testing.T) {
	names := memberNames(15)
	values := make(map[string]string, len(names))
	for _, n := range names {
		values[n] = "new"
	}
	s := store.NewMemoryStore(values)
	clock := newFakeClock()
	g, params := newTestGroup(t, s, names, WithGroupMaxAge(time.Minute), WithGroupClock(clock.Now))

	boom := errors.New("ThrottlingException")
	calls := 0
	s.OnFetch(func([]string) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})

	err := g.Refresh(context.Background())
	if err != boom {
		t.Fatalf("Refresh() error = %v, want %v", err, boom)
	}
	for i, p := range params {
		if i < 10 && p.current() != "new" {
			t.Errorf("%s from the first batch = %q, want new", p.Name(), p.current())
		}
		if i >= 10 && p.isSet() {
			t.Errorf("%s from the failed batch should stay unset", p.Name())
		}
	}
	if !g.LastRefresh().Equal(clock.Now()) {
		t.Error("failed refresh should still mark the group refreshed")
	}
}

func TestGroup_DecryptIsUnionOfMembers(t *testing.T) {
	s := store.NewMemoryStore(nil)
	g, _ := NewGroup(s, WithGroupDecryption(false))
	_, _ = g.Add("/a")
	_ = g.Refresh(context.Background())
	if s.LastDecrypt() {
		t.Error("decrypt = true, want false when no member asks for it")
	}

	_, _ = g.Add("/b", WithDecryption(true))
	_ = g.Refresh(context.Background())
	if !s.LastDecrypt() {
		t.Error("decrypt = false, want true when any member asks for it")
	}
}

func TestGroup_EmptyRefreshIsNoop(t *testing.T) {
	s := store.NewMemoryStore(nil)
	g, _ := NewGroup(s)

	if err := g.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if one, many := s.Calls(); one != 0 || many != 0 {
		t.Errorf("store calls = %d/%d, want none", one, many)
	}
}

func TestGroup_MemberRefreshUpdatesSiblings(t *testing.T) {
	s := store.NewMemoryStore(map[string]string{"/a": "1", "/b": "2"})
	_, params := newTestGroup(t, s, []string{"/a", "/b"})
	ctx := context.Background()

	if err := params[0].Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if params[1].current() != "2" {
		t.Errorf("sibling = %q, want 2", params[1].current())
	}
	if _, many := s.Calls(); many != 1 {
		t.Errorf("FetchMany calls = %d, want 1", many)
	}
}

func TestGroup_MemberValueSharesOneFetch(t *testing.T) {
	s := store.NewMemoryStore(map[string]string{"/a": "1", "/b": "2"})
	_, params := newTestGroup(t, s, []string{"/a", "/b"})
	ctx := context.Background()

	a, err := params[0].Value(ctx)
	if err != nil || a != "1" {
		t.Fatalf("a.Value() = %q, %v", a, err)
	}
	b, err := params[1].Value(ctx)
	if err != nil || b != "2" {
		t.Fatalf("b.Value() = %q, %v", b, err)
	}

	if _, many := s.Calls(); many != 1 {
		t.Errorf("FetchMany calls = %d, want 1", many)
	}
}

func TestGroup_MemberValueExpiresWithGroup(t *testing.T) {
	clock := newFakeClock()
	s := store.NewMemoryStore(map[string]string{"/a": "1"})
	_, params := newTestGroup(t, s, []string{"/a"}, WithGroupMaxAge(time.Minute), WithGroupClock(clock.Now))
	ctx := context.Background()

	_, _ = params[0].Value(ctx)
	s.Set("/a", "2")

	clock.Advance(30 * time.Second)
	if v, _ := params[0].Value(ctx); v != "1" {
		t.Errorf("Value() inside max age = %q, want 1", v)
	}

	clock.Advance(31 * time.Second)
	if v, _ := params[0].Value(ctx); v != "2" {
		t.Errorf("Value() after max age = %q, want 2", v)
	}
}

func TestGroup_MemberValueReportsInvalidSiblings(t *testing.T) {
	s := store.NewMemoryStore(map[string]string{"/a": "1"})
	_, params := newTestGroup(t, s, []string{"/a", "/missing"})
	ctx := context.Background()

	v, err := params[0].Value(ctx)
	var invalid *InvalidParamError
	if !errors.As(err, &invalid) || !invalid.Contains("/missing") {
		t.Fatalf("Value() error = %v, want InvalidParamError naming /missing", err)
	}
	if v != "1" {
		t.Errorf("Value() = %q, want 1 alongside the error", v)
	}

	// Within the window the cached value is served without an error.
	if v, err := params[0].Value(ctx); err != nil || v != "1" {
		t.Errorf("cached Value() = %q, %v; want 1, nil", v, err)
	}

	v, err = params[1].Value(ctx)
	if !errors.As(err, &invalid) || !invalid.Contains("/missing") || v != "" {
		t.Fatalf("missing member Value() = %q, %v; want empty and InvalidParamError", v, err)
	}
}

func TestGroup_MemberAddedAfterRefresh(t *testing.T) {
	s := store.NewMemoryStore(map[string]string{"/a": "1", "/b": "2"})
	g, _ := newTestGroup(t, s, []string{"/a"})
	ctx := context.Background()

	_ = g.Refresh(ctx)
	b, _ := g.Add("/b")

	v, err := b.Value(ctx)
	if err != nil || v != "2" {
		t.Fatalf("late member Value() = %q, %v", v, err)
	}
}

func TestGroup_Values(t *testing.T) {
	s := store.NewMemoryStore(map[string]string{"/a": "1", "/c": "3"})
	g, _ := newTestGroup(t, s, []string{"/a", "/b", "/c"})

	got, err := g.Values(context.Background())
	if !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("Values() error = %v, want ErrInvalidParam", err)
	}
	if len(got) != 2 || got["/a"] != "1" || got["/c"] != "3" {
		t.Errorf("Values() = %v", got)
	}
}

func TestGroup_ConcurrentValueCoalesces(t *testing.T) {
	names := memberNames(8)
	values := make(map[string]string, len(names))
	for _, n := range names {
		values[n] = "v"
	}
	s := store.NewMemoryStore(values)
	_, params := newTestGroup(t, s, names)

	release := make(chan struct{})
	s.OnFetch(func([]string) error {
		<-release
		return nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, len(params))
	for _, p := range params {
		wg.Add(1)
		go func(p *Parameter) {
			defer wg.Done()
			if _, err := p.Value(context.Background()); err != nil {
				errs <- err
			}
		}(p)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Value() error = %v", err)
	}
	if _, many := s.Calls(); many != 1 {
		t.Errorf("FetchMany calls = %d, want 1", many)
	}
}

// blockingStore holds FetchMany until release is closed or ctx is done.
type blockingStore struct {
	*store.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) FetchMany(ctx context.Context, keys []string, decrypt bool) (store.Result, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return store.Result{}, ctx.Err()
	}
	return b.MemoryStore.FetchMany(ctx, keys, decrypt)
}

func TestGroup_CancelledReaderDoesNotFailOthers(t *testing.T) {
	s := &blockingStore{
		MemoryStore: store.NewMemoryStore(map[string]string{"/a": "1", "/b": "2"}),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	_, params := newTestGroup(t, s, []string{"/a", "/b"})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := params[0].Value(ctx)
		first <- err
	}()
	<-s.entered

	type result struct {
		v   string
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := params[1].Value(context.Background())
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled Value() error = %v, want context.Canceled", err)
	}

	close(s.release)
	got := <-second
	if got.err != nil || got.v != "2" {
		t.Fatalf("other Value() = %q, %v; want 2, nil", got.v, got.err)
	}
	if _, many := s.Calls(); many != 1 {
		t.Errorf("FetchMany calls = %d, want 1 shared refresh", many)
	}
}
