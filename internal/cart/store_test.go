package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-client/internal/domain"
	"storefront-client/internal/eventbus"
	infracache "storefront-client/internal/infrastructure/cache"
	"storefront-client/pkg/cache"
	"storefront-client/pkg/storage"
)

type fakeRemote struct {
	mu     sync.Mutex
	cart   []domain.CartLine
	getErr  error
	saveErr error
	gets    int
	// saves records every attempt, failed ones included.
	saves [][]domain.CartLine

	// beforeGet runs at the start of every GetCart.
	beforeGet func(ctx context.Context)
	// getGate and saveGate, when set, hold requests until closed.
	getGate  chan struct{}
	saveGate chan struct{}
	saving   chan struct{}
}

func (f *fakeRemote) GetCart(ctx context.Context) ([]domain.CartLine, error) {
	if f.beforeGet != nil {
		f.beforeGet(ctx)
	}
	if f.getGate != nil {
		<-f.getGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return append([]domain.CartLine(nil), f.cart...), nil
}

func (f *fakeRemote) SaveCart(ctx context.Context, lines []domain.CartLine) error {
	if f.saving != nil {
		f.saving <- struct{}{}
	}
	if f.saveGate != nil {
		<-f.saveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, append([]domain.CartLine{}, lines...))
	return f.saveErr
}

func (f *fakeRemote) saved() [][]domain.CartLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.CartLine(nil), f.saves...)
}

type fakeSessions struct {
	mu      sync.Mutex
	session *domain.Session
}

func (f *fakeSessions) Current() *domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeSessions) set(s *domain.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = s
}

type published struct {
	topic   string
	payload any
}

type harness struct {
	t        *testing.T
	bus      *eventbus.Bus
	storage  *storage.MemoryStore
	remote   *fakeRemote
	sessions *fakeSessions

	mu     sync.Mutex
	events []published
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		bus:      eventbus.New(zerolog.Nop()),
		storage:  storage.NewMemoryStore(infracache.NewMemoryCache(cache.NoExpiration, time.Hour)),
		remote:   &fakeRemote{},
		sessions: &fakeSessions{},
	}
	for _, topic := range domain.CartTopics {
		h.bus.SubscribeFunc(topic, func(ctx context.Context, payload any) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, published{topic: topic, payload: payload})
		})
	}
	return h
}

func (h *harness) open(opts ...func(*Options)) *Store {
	h.t.Helper()
	o := Options{
		Bus:      h.bus,
		Storage:  h.storage,
		Remote:   h.remote,
		Sessions: h.sessions,
		Logger:   zerolog.Nop(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := NewStore(context.Background(), o)
	assert.NoError(h.t, err)
	h.t.Cleanup(s.Close)
	return s
}

func (h *harness) login(s *Store, user *domain.Session) {
	h.t.Helper()
	h.sessions.set(user)
	h.bus.Publish(context.Background(), domain.TopicSessionChange, domain.SessionChange{Type: domain.SessionLogin, User: user})
	h.wait(s)
}

func (h *harness) logout(s *Store) {
	h.t.Helper()
	h.sessions.set(nil)
	h.bus.Publish(context.Background(), domain.TopicSessionChange, domain.SessionChange{Type: domain.SessionLogout})
	h.wait(s)
}

func (h *harness) wait(s *Store) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(h.t, s.Wait(ctx))
}

func (h *harness) mirror() domain.Cart {
	h.t.Helper()
	data, err := h.storage.Get(context.Background(), "cart")
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	assert.NoError(h.t, err)
	items, err := decodeMirror(data)
	assert.NoError(h.t, err)
	return items
}

func (h *harness) topics() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.topic)
	}
	return out
}

func (h *harness) last() published {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events[len(h.events)-1]
}

var (
	ann  = &domain.Session{UserID: "u1", DisplayName: "Ann", Role: domain.RoleBuyer}
	bob  = &domain.Session{UserID: "u2", DisplayName: "Bob", Role: domain.RoleBuyer}
	mug  = domain.Product{ID: "mug", Name: "Mug", Price: decimal.RequireFromString("19.99")}
	tee  = domain.Product{ID: "tee", Name: "Tee", Price: decimal.RequireFromString("5.01")}
	lamp = domain.Product{ID: "lamp", Name: "Lamp", Price: decimal.RequireFromString("42")}
)

func ids(items []domain.CartLine) []domain.ProductID {
	out := make([]domain.ProductID, 0, len(items))
	for _, l := range items {
		out = append(out, l.ID)
	}
	return out
}

func TestAnonymousMutationsStayLocal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()
	assert.Equal(t, StateAnonymous, s.State())

	line := s.AddItem(ctx, mug)
	assert.Equal(t, 1, line.Quantity)
	line = s.AddItem(ctx, mug)
	assert.Equal(t, 2, line.Quantity)
	s.AddItem(ctx, tee)
	assert.Equal(t, []domain.ProductID{"mug", "tee"}, ids(s.Items()))
	assert.Equal(t, 3, s.ItemCount())

	_, ok := s.UpdateQuantity(ctx, "tee", 4)
	assert.True(t, ok)
	_, ok = s.UpdateQuantity(ctx, "missing", 4)
	assert.False(t, ok)
	_, ok = s.RemoveItem(ctx, "mug")
	assert.True(t, ok)
	_, ok = s.RemoveItem(ctx, "mug")
	assert.False(t, ok)

	assert.Equal(t, ids(s.Items()), ids(h.mirror()))
	assert.Equal(t, 4, h.mirror()[0].Quantity)
	s.Clear(ctx, true)
	h.wait(s)

	assert.Equal(t, 0, len(s.Items()))
	assert.Equal(t, 0, len(h.mirror()))
	assert.Equal(t, 0, len(h.remote.saved()))
	assert.Equal(t, 0, h.remote.gets)
	assert.Equal(t, []string{
		domain.TopicCartAdd, domain.TopicCartAdd, domain.TopicCartAdd,
		domain.TopicCartUpdate, domain.TopicCartRemove, domain.TopicCartClear,
	}, h.topics())
	assert.Equal(t, domain.CartClearedEvent{PreviousCartSize: 1}, h.last().payload.(domain.CartClearedEvent))
}

func TestAddEventCarriesSnapshot(t *testing.T) {
	h := newHarness(t)
	s := h.open()
	s.AddItem(context.Background(), mug)
	s.AddItem(context.Background(), tee)

	event := h.last().payload.(domain.CartEvent)
	assert.Equal(t, domain.ProductID("tee"), event.Product.ID)
	assert.Equal(t, []domain.ProductID{"mug", "tee"}, ids(event.CartItems))

	// Subscribers get a copy.
	event.CartItems[0].Quantity = 99
	assert.Equal(t, 1, s.Items()[0].Quantity)
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()
	s.AddItem(ctx, mug)

	removed, ok := s.UpdateQuantity(ctx, "mug", 0)
	assert.True(t, ok)
	assert.Equal(t, domain.ProductID("mug"), removed.ID)
	assert.Equal(t, 0, len(s.Items()))
	assert.Equal(t, domain.TopicCartRemove, h.last().topic)

	s.AddItem(ctx, mug)
	_, ok = s.UpdateQuantity(ctx, "mug", -3)
	assert.True(t, ok)
	assert.Equal(t, 0, len(s.Items()))
}

func TestTotalIsRoundedToCents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()
	s.AddItem(ctx, mug)
	s.UpdateQuantity(ctx, "mug", 3)
	s.AddItem(ctx, tee)
	assert.Equal(t, "64.98", s.Total().StringFixed(2))

	s.Clear(ctx, false)
	assert.True(t, s.Total().IsZero())
}

func TestMaxQuantityClamp(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open(func(o *Options) { o.MaxQuantity = 5 })
	s.AddItem(ctx, mug)
	line, _ := s.UpdateQuantity(ctx, "mug", 50)
	assert.Equal(t, 5, line.Quantity)
	line = s.AddItem(ctx, mug)
	assert.Equal(t, 5, line.Quantity)
}

func TestInvalidProductsAreNormalized(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()

	line := s.AddItem(ctx, domain.Product{Name: "no id"})
	assert.Equal(t, domain.CartLine{}, line)
	assert.Equal(t, 0, len(s.Items()))

	line = s.AddItem(ctx, domain.Product{ID: "neg", Price: decimal.NewFromInt(-3)})
	assert.True(t, line.UnitPrice.IsZero())
}

func TestLoginDiscardsAnonymousCartBeforeFetch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.cart = []domain.CartLine{lamp.Line(2)}
	mirrorAtFetch := true
	h.remote.beforeGet = func(ctx context.Context) {
		_, err := h.storage.Get(ctx, "cart")
		mirrorAtFetch = err == nil
	}

	s := h.open()
	s.AddItem(ctx, mug)
	s.AddItem(ctx, tee)

	h.login(s, ann)

	assert.False(t, mirrorAtFetch)
	assert.Equal(t, StateSynced, s.State())
	assert.Equal(t, []domain.ProductID{"lamp"}, ids(s.Items()))
	assert.Equal(t, 2, s.Items()[0].Quantity)
	assert.Equal(t, []domain.ProductID{"lamp"}, ids(h.mirror()))
	assert.Equal(t, 0, len(h.remote.saved()))

	status := s.Status()
	assert.True(t, status.BackendLoaded)
	assert.True(t, status.Synced)
	assert.NoError(t, status.Err)
}

func TestLoginNormalizesSavedCart(t *testing.T) {
	h := newHarness(t)
	h.remote.cart = []domain.CartLine{
		lamp.Line(1),
		{ID: "neg", Name: "Refund", UnitPrice: decimal.NewFromInt(-5), Quantity: 1},
		lamp.Line(4),
		mug.Line(0),
		{Name: "no id", Quantity: 1},
	}
	s := h.open()
	h.login(s, ann)

	items := s.Items()
	assert.Equal(t, []domain.ProductID{"lamp", "neg"}, ids(items))
	assert.Equal(t, 1, items[0].Quantity)
	assert.True(t, items[1].UnitPrice.IsZero())
}

func TestSyncedMutationsPushFullSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.cart = []domain.CartLine{lamp.Line(1)}
	s := h.open()
	h.login(s, ann)

	s.AddItem(ctx, mug)
	h.wait(s)
	s.UpdateQuantity(ctx, "lamp", 3)
	h.wait(s)
	s.RemoveItem(ctx, "mug")
	h.wait(s)
	s.Clear(ctx, true)
	h.wait(s)

	saves := h.remote.saved()
	assert.Equal(t, 4, len(saves))
	assert.Equal(t, []domain.ProductID{"lamp", "mug"}, ids(saves[0]))
	assert.Equal(t, 3, saves[1][0].Quantity)
	assert.Equal(t, []domain.ProductID{"lamp"}, ids(saves[2]))
	assert.Equal(t, 0, len(saves[3]))
}

func TestClearWithoutPushLeavesRemoteAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.cart = []domain.CartLine{lamp.Line(1)}
	s := h.open()
	h.login(s, ann)

	s.Clear(ctx, false)
	h.wait(s)
	assert.Equal(t, 0, len(h.remote.saved()))
	assert.Equal(t, 0, len(s.Items()))
}

func TestNoPushWhileSyncing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.cart = []domain.CartLine{lamp.Line(1)}
	h.remote.getGate = make(chan struct{})
	s := h.open()

	h.sessions.set(ann)
	h.bus.Publish(ctx, domain.TopicSessionChange, domain.SessionChange{Type: domain.SessionLogin, User: ann})
	assert.Equal(t, StateSyncing, s.State())

	s.AddItem(ctx, mug)
	close(h.remote.getGate)
	h.wait(s)

	assert.Equal(t, 0, len(h.remote.saved()))
	assert.Equal(t, []domain.ProductID{"lamp"}, ids(s.Items()))
	assert.Equal(t, StateSynced, s.State())
}

func TestFetchFailureFailsOpen(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.getErr = errors.New("connection refused")
	s := h.open()
	s.AddItem(ctx, mug)

	h.login(s, ann)

	status := s.Status()
	assert.Equal(t, StateSynced, status.State)
	assert.True(t, status.BackendLoaded)
	assert.False(t, status.Synced)
	assert.EqualError(t, status.Err, "connection refused")
	assert.Equal(t, 0, len(s.Items()))

	s.AddItem(ctx, tee)
	h.wait(s)
	saves := h.remote.saved()
	assert.Equal(t, 1, len(saves))
	assert.Equal(t, []domain.ProductID{"tee"}, ids(saves[0]))
	assert.True(t, s.Status().Synced)
}

func TestFetchFailureFailClosed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.getErr = errors.New("connection refused")
	h.remote.cart = []domain.CartLine{lamp.Line(1)}
	s := h.open(func(o *Options) { o.FailClosed = true })

	h.login(s, ann)
	assert.Equal(t, StateSyncing, s.State())
	assert.False(t, s.Status().BackendLoaded)

	s.AddItem(ctx, tee)
	h.wait(s)
	assert.Equal(t, 0, len(h.remote.saved()))

	h.remote.mu.Lock()
	h.remote.getErr = nil
	h.remote.mu.Unlock()
	assert.NoError(t, s.Resync(ctx))
	assert.Equal(t, StateSynced, s.State())
	assert.Equal(t, []domain.ProductID{"lamp"}, ids(s.Items()))
}

func TestFailedPushKeepsLocalCart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.saveErr = errors.New("backend down")
	s := h.open()
	h.login(s, ann)

	s.AddItem(ctx, mug)
	h.wait(s)

	assert.Equal(t, []domain.ProductID{"mug"}, ids(s.Items()))
	assert.Equal(t, []domain.ProductID{"mug"}, ids(h.mirror()))
	status := s.Status()
	assert.Equal(t, StateSynced, status.State)
	assert.True(t, status.BackendLoaded)
	assert.False(t, status.Synced)
	assert.False(t, status.Pushing)
	assert.EqualError(t, status.Err, "backend down")

	// No retry happens on its own.
	h.wait(s)
	assert.Equal(t, 1, len(h.remote.saved()))

	// The next mutation pushes again and a success clears the error.
	h.remote.mu.Lock()
	h.remote.saveErr = nil
	h.remote.mu.Unlock()
	s.AddItem(ctx, tee)
	h.wait(s)
	assert.Equal(t, 2, len(h.remote.saved()))
	assert.True(t, s.Status().Synced)
	assert.NoError(t, s.Status().Err)
}

func TestResyncRequiresSession(t *testing.T) {
	h := newHarness(t)
	s := h.open()
	assert.Error(t, s.Resync(context.Background()))
}

func TestLogoutClearsWithoutPush(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.cart = []domain.CartLine{lamp.Line(1), mug.Line(2)}
	s := h.open()
	h.login(s, ann)

	h.logout(s)

	assert.Equal(t, StateAnonymous, s.State())
	assert.Equal(t, 0, len(s.Items()))
	assert.Equal(t, 0, len(h.mirror()))
	assert.Equal(t, 0, len(h.remote.saved()))
	assert.Equal(t, domain.CartClearedEvent{PreviousCartSize: 2}, h.last().payload.(domain.CartClearedEvent))
	assert.Zero(t, s.Session())

	s.AddItem(ctx, tee)
	h.wait(s)
	assert.Equal(t, 0, len(h.remote.saved()))
}

func TestSupersededFetchIsDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.cart = []domain.CartLine{lamp.Line(1)}
	h.remote.getGate = make(chan struct{})
	s := h.open()

	h.sessions.set(ann)
	h.bus.Publish(ctx, domain.TopicSessionChange, domain.SessionChange{Type: domain.SessionLogin, User: ann})
	h.sessions.set(nil)
	h.bus.Publish(ctx, domain.TopicSessionChange, domain.SessionChange{Type: domain.SessionLogout})

	close(h.remote.getGate)
	h.wait(s)

	assert.Equal(t, StateAnonymous, s.State())
	assert.Equal(t, 0, len(s.Items()))
	assert.False(t, s.Status().BackendLoaded)
}

func TestPushesCoalesceToLatest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()
	h.login(s, ann)

	h.remote.saving = make(chan struct{}, 8)
	h.remote.saveGate = make(chan struct{})

	s.AddItem(ctx, mug)
	<-h.remote.saving
	assert.True(t, s.Status().Pushing)

	s.AddItem(ctx, tee)
	s.AddItem(ctx, lamp)
	close(h.remote.saveGate)
	h.wait(s)

	saves := h.remote.saved()
	assert.Equal(t, 2, len(saves))
	assert.Equal(t, []domain.ProductID{"mug"}, ids(saves[0]))
	assert.Equal(t, []domain.ProductID{"mug", "tee", "lamp"}, ids(saves[1]))
	assert.False(t, s.Status().Pushing)
}

func TestRestoredSessionReconcilesAtStartup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	data, err := encodeMirror(domain.Cart{mug.Line(1)})
	assert.NoError(t, err)
	assert.NoError(t, h.storage.Set(ctx, "cart", data))
	h.remote.cart = []domain.CartLine{lamp.Line(1)}
	h.sessions.set(ann)

	s := h.open()
	h.wait(s)

	assert.Equal(t, StateSynced, s.State())
	assert.Equal(t, []domain.ProductID{"lamp"}, ids(s.Items()))
	assert.Equal(t, 1, h.remote.gets)
}

func TestStartupLoadsMirror(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	assert.NoError(t, h.storage.Set(ctx, "cart", []byte(`[{"id":"mug","name":"Mug","price":19.99,"quantity":2}]`)))

	s := h.open()
	assert.Equal(t, StateAnonymous, s.State())
	assert.Equal(t, 2, s.ItemCount())
	assert.Equal(t, 0, h.remote.gets)
}

func TestUnreadableMirrorStartsEmpty(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	assert.NoError(t, h.storage.Set(ctx, "cart", []byte(`{not json`)))

	s := h.open()
	assert.Equal(t, 0, len(s.Items()))
}

func TestOtherWindowCartIsAdoptedWithoutPush(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()
	h.login(s, ann)

	other := h.storage.Sibling()
	data, err := encodeMirror(domain.Cart{tee.Line(3)})
	assert.NoError(t, err)
	assert.NoError(t, other.Set(ctx, "cart", data))
	h.bus.Publish(ctx, domain.TopicStorageChange, storage.Change{Key: "cart"})
	h.wait(s)

	assert.Equal(t, []domain.ProductID{"tee"}, ids(s.Items()))
	assert.Equal(t, 0, len(h.remote.saved()))
}

func TestSessionKeyChangeStopsPushForOtherAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()
	h.login(s, ann)

	h.sessions.set(bob)
	h.bus.Publish(ctx, domain.TopicStorageChange, storage.Change{Key: "auth"})
	assert.Equal(t, bob.UserID, s.Session().UserID)
	assert.False(t, s.Status().BackendLoaded)

	s.AddItem(ctx, mug)
	h.wait(s)
	assert.Equal(t, 0, len(h.remote.saved()))
	assert.Equal(t, 1, h.remote.gets)
}

func TestOtherWindowSignOutReturnsToAnonymous(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()
	h.login(s, ann)
	assert.Equal(t, StateSynced, s.State())

	h.sessions.set(nil)
	h.bus.Publish(ctx, domain.TopicStorageChange, storage.Change{Key: "auth", Removed: true})

	status := s.Status()
	assert.Equal(t, StateAnonymous, status.State)
	assert.False(t, status.BackendLoaded)
	assert.Zero(t, s.Session())

	s.AddItem(ctx, mug)
	h.wait(s)
	assert.Equal(t, 0, len(h.remote.saved()))
}

func TestOtherWindowAccountSwitchWaitsForResync(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()
	h.login(s, ann)

	h.sessions.set(bob)
	h.bus.Publish(ctx, domain.TopicStorageChange, storage.Change{Key: "auth"})
	status := s.Status()
	assert.Equal(t, StateSyncing, status.State)
	assert.False(t, status.BackendLoaded)

	h.remote.mu.Lock()
	h.remote.cart = []domain.CartLine{lamp.Line(1)}
	h.remote.mu.Unlock()
	assert.NoError(t, s.Resync(ctx))
	assert.Equal(t, StateSynced, s.State())
	assert.Equal(t, []domain.ProductID{"lamp"}, ids(s.Items()))
	assert.Equal(t, 2, h.remote.gets)
}

func TestOtherWindowSignInWhileAnonymousWaitsForResync(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()

	h.sessions.set(ann)
	h.bus.Publish(ctx, domain.TopicStorageChange, storage.Change{Key: "auth"})
	assert.Equal(t, StateSyncing, s.State())
	assert.Equal(t, 0, h.remote.gets)
}

func TestWaitCoversPushInFlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()
	h.login(s, ann)

	h.remote.saving = make(chan struct{}, 8)
	h.remote.saveGate = make(chan struct{})
	s.AddItem(ctx, mug)
	<-h.remote.saving

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.IsError(t, s.Wait(short), context.DeadlineExceeded)

	// Work queued while the first push is blocked is covered by the same Wait.
	s.AddItem(ctx, tee)
	close(h.remote.saveGate)
	h.wait(s)
	assert.Equal(t, 2, len(h.remote.saved()))
	assert.False(t, s.Status().Pushing)
}

func TestSameSessionKeyChangeKeepsPushing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.open()
	h.login(s, ann)

	h.bus.Publish(ctx, domain.TopicStorageChange, storage.Change{Key: "auth"})
	s.AddItem(ctx, mug)
	h.wait(s)
	assert.Equal(t, 1, len(h.remote.saved()))
}

// An anonymous cart never reaches the account, and the account's saved cart
// is what the user sees after signing in.
func TestAnonymousCartNeverLeaksToAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.cart = []domain.CartLine{lamp.Line(1)}
	s := h.open()

	s.AddItem(ctx, mug)
	s.AddItem(ctx, mug)
	s.AddItem(ctx, tee)
	h.login(s, ann)
	s.AddItem(ctx, lamp)
	h.wait(s)

	for _, saved := range h.remote.saved() {
		for _, line := range saved {
			assert.NotEqual(t, domain.ProductID("mug"), line.ID)
			assert.NotEqual(t, domain.ProductID("tee"), line.ID)
		}
	}
	assert.Equal(t, []domain.ProductID{"lamp"}, ids(s.Items()))
	assert.Equal(t, 2, s.Items()[0].Quantity)
}

func TestNewStoreRequiresCollaborators(t *testing.T) {
	_, err := NewStore(context.Background(), Options{})
	assert.Error(t, err)
}

func TestCloseDetachesFromBus(t *testing.T) {
	h := newHarness(t)
	s := h.open()
	assert.Equal(t, 1, h.bus.HandlerCount(domain.TopicSessionChange))
	s.Close()
	assert.Equal(t, 0, h.bus.HandlerCount(domain.TopicSessionChange))
}
