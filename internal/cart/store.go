// Package cart holds the storefront's cart: the in-memory source of truth, its
// local storage mirror, and the conditional push to the signed-in account.
//
// A cart built while anonymous never reaches an account. On login the local
// cart is discarded before the account's saved cart is fetched, and only after
// that fetch completes are local changes pushed back.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-client/internal/domain"
	"storefront-client/internal/eventbus"
	"storefront-client/pkg/storage"
)

type State string

const (
	StateAnonymous State = "anonymous"
	StateSyncing   State = "syncing"
	StateSynced    State = "synced"
	StateLoggedOut State = "logged_out"
)

// Remote is the account-scoped cart on the API.
type Remote interface {
	GetCart(ctx context.Context) ([]domain.CartLine, error)
	SaveCart(ctx context.Context, lines []domain.CartLine) error
}

// SessionSource exposes the current session, nil when signed out.
type SessionSource interface {
	Current() *domain.Session
}

type Options struct {
	Bus      *eventbus.Bus
	Storage  storage.Store
	Remote   Remote
	Sessions SessionSource
	// StorageKey is the local storage key of the mirror. Defaults to "cart".
	StorageKey string
	// MaxQuantity caps a single line's quantity; 0 means no cap.
	MaxQuantity int
	// FailClosed leaves the cart not backend-loaded when the login fetch
	// fails, so nothing is pushed until Resync succeeds. The default marks it
	// loaded anyway and treats the empty cart as the account's cart.
	FailClosed bool
	Logger     zerolog.Logger
}

// SyncStatus is what the UI renders as the sync indicator.
type SyncStatus struct {
	State         State
	BackendLoaded bool
	// Synced is false after a failed fetch or push until the next success.
	Synced  bool
	Pushing bool
	Err     error
}

type pushJob struct {
	lines      domain.Cart
	generation uint64
}

type Store struct {
	bus        *eventbus.Bus
	storage    storage.Store
	remote     Remote
	sessions   SessionSource
	key        string
	maxQty     int
	failClosed bool
	log        zerolog.Logger

	mu            sync.Mutex
	items         domain.Cart
	state         State
	session       *domain.Session
	backendLoaded bool
	synced        bool
	lastErr       error
	// generation changes on every login and logout; background results from
	// an older generation are dropped.
	generation uint64
	pending    *pushJob
	pushing    bool

	// inflight counts running fetches and push loops; idle is closed when it
	// drops to zero.
	inflight int
	idle     chan struct{}

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe []func()
}

func NewStore(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bus == nil || opts.Storage == nil || opts.Remote == nil || opts.Sessions == nil {
		return nil, errors.New("cart: bus, storage, remote and sessions are required")
	}
	if opts.StorageKey == "" {
		opts.StorageKey = "cart"
	}

	s := &Store{
		bus:        opts.Bus,
		storage:    opts.Storage,
		remote:     opts.Remote,
		sessions:   opts.Sessions,
		key:        opts.StorageKey,
		maxQty:     opts.MaxQuantity,
		failClosed: opts.FailClosed,
		log:        opts.Logger.With().Str("component", "cart").Logger(),
		items:      domain.Cart{},
		state:      StateAnonymous,
		synced:     true,
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if items, err := s.readMirror(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Starting with an empty cart")
	} else {
		s.items = s.clampAll(items)
	}

	s.unsubscribe = append(s.unsubscribe,
		s.bus.Subscribe(domain.TopicSessionChange, s.onSessionChange),
		s.bus.Subscribe(domain.TopicStorageChange, s.onStorageChange),
	)

	// A session restored from storage wrote the mirror itself, so the mirror
	// stays on screen until the account's cart replaces it.
	if session := s.sessions.Current(); session != nil {
		s.mu.Lock()
		s.session = session
		s.state = StateSyncing
		s.startReconcileLocked(s.generation)
		s.mu.Unlock()
	}
	return s, nil
}

// --- Reads ---

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Clone()
}

// Total is the sum of price x quantity, rounded to cents, computed on every call.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Total()
}

// ItemCount is the sum of quantities.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.ItemCount()
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncStatus{
		State:         s.state,
		BackendLoaded: s.backendLoaded,
		Synced:        s.synced,
		Pushing:       s.pushing,
		Err:           s.lastErr,
	}
}

// --- Mutations ---

// AddItem adds one unit of p, inserting a line when p is not in the cart yet.
func (s *Store) AddItem(ctx context.Context, p domain.Product) domain.CartLine {
	if p.ID == "" {
		s.log.Warn().Msg("Ignoring product without id")
		return domain.CartLine{}
	}
	if p.Price.IsNegative() {
		s.log.Warn().Str("product_id", string(p.ID)).Msg("Negative price normalized to zero")
		p.Price = decimal.Zero
	}

	s.mu.Lock()
	var line domain.CartLine
	if i := s.items.Index(p.ID); i >= 0 {
		s.items[i].Quantity = s.clamp(s.items[i].Quantity + 1)
		line = s.items[i]
	} else {
		line = p.Line(1)
		s.items = append(s.items, line)
	}
	snapshot := s.commitLocked(ctx)
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.TopicCartAdd, domain.CartEvent{Product: line, CartItems: snapshot})
	return line
}

// RemoveItem deletes the line for id. Removing a missing line is a no-op and
// publishes nothing.
func (s *Store) RemoveItem(ctx context.Context, id domain.ProductID) (domain.CartLine, bool) {
	s.mu.Lock()
	i := s.items.Index(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.CartLine{}, false
	}
	removed := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	snapshot := s.commitLocked(ctx)
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.TopicCartRemove, domain.CartEvent{Product: removed, CartItems: snapshot})
	return removed, true
}

// UpdateQuantity sets the line's quantity to an absolute value. A quantity
// of zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, id domain.ProductID, quantity int) (domain.CartLine, bool) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, id)
	}

	s.mu.Lock()
	i := s.items.Index(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.CartLine{}, false
	}
	s.items[i].Quantity = s.clamp(quantity)
	line := s.items[i]
	snapshot := s.commitLocked(ctx)
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.TopicCartUpdate, domain.CartEvent{Product: line, CartItems: snapshot})
	return line, true
}

// Clear empties the cart. With pushToRemote false the account's saved cart is
// left alone, which is what logout needs.
func (s *Store) Clear(ctx context.Context, pushToRemote bool) {
	s.mu.Lock()
	previous := s.clearLocked(ctx, pushToRemote)
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.TopicCartClear, domain.CartClearedEvent{PreviousCartSize: previous})
}

func (s *Store) clearLocked(ctx context.Context, pushToRemote bool) int {
	previous := len(s.items)
	s.items = domain.Cart{}
	s.writeMirrorLocked(ctx)
	if pushToRemote && s.pushEligibleLocked() {
		s.schedulePushLocked(domain.Cart{})
	}
	return previous
}

// commitLocked mirrors the cart and queues a push when eligible. It returns
// the snapshot handed to subscribers.
func (s *Store) commitLocked(ctx context.Context) domain.Cart {
	s.writeMirrorLocked(ctx)
	snapshot := s.items.Clone()
	if s.pushEligibleLocked() {
		s.schedulePushLocked(snapshot)
	}
	return snapshot.Clone()
}

func (s *Store) pushEligibleLocked() bool {
	return s.session != nil && s.backendLoaded
}

func (s *Store) clamp(q int) int {
	if s.maxQty > 0 && q > s.maxQty {
		return s.maxQty
	}
	return q
}

func (s *Store) clampAll(items domain.Cart) domain.Cart {
	for i := range items {
		items[i].Quantity = s.clamp(items[i].Quantity)
	}
	return items
}

// --- Local mirror ---

func (s *Store) readMirror(ctx context.Context) (domain.Cart, error) {
	data, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeMirror(data)
}

func (s *Store) writeMirrorLocked(ctx context.Context) {
	data, err := encodeMirror(s.items)
	if err == nil {
		err = s.storage.Set(ctx, s.key, data)
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to write cart mirror")
	}
}

// --- Session transitions ---

func (s *Store) onSessionChange(ctx context.Context, payload any) error {
	change, ok := payload.(domain.SessionChange)
	if !ok {
		return fmt.Errorf("unexpected session change payload %T", payload)
	}
	switch change.Type {
	case domain.SessionLogin, domain.SessionRegister:
		s.login(ctx, change.User)
	case domain.SessionLogout:
		s.logout(ctx)
	default:
		return fmt.Errorf("unknown session change %q", change.Type)
	}
	return nil
}

func (s *Store) login(ctx context.Context, user *domain.Session) {
	if user == nil {
		user = s.sessions.Current()
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.session = user
	s.backendLoaded = false
	s.pending = nil
	s.items = domain.Cart{}
	// The anonymous cart goes before any request is made for the account.
	if err := s.storage.Remove(ctx, s.key); err != nil {
		s.log.Warn().Err(err).Msg("Failed to discard anonymous cart mirror")
	}
	s.state = StateSyncing
	s.startReconcileLocked(gen)
	s.mu.Unlock()

	userID := ""
	if user != nil {
		userID = user.UserID
	}
	s.log.Info().Str("user_id", userID).Msg("Session started, loading saved cart")
}

func (s *Store) logout(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.state = StateLoggedOut
	s.session = nil
	s.backendLoaded = false
	s.pending = nil
	previous := s.clearLocked(ctx, false)
	s.synced = true
	s.lastErr = nil
	s.state = StateAnonymous
	s.mu.Unlock()

	s.log.Info().Msg("Session ended, cart cleared locally")
	s.bus.Publish(ctx, domain.TopicCartClear, domain.CartClearedEvent{PreviousCartSize: previous})
}

// Resync fetches the account's saved cart again and replaces the local cart
// with it. It is the manual retry after a failed fetch. Pushes already queued
// are delivered first.
func (s *Store) Resync(ctx context.Context) error {
	if err := s.Wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return errors.New("cart: no session to sync")
	}
	s.generation++
	s.pending = nil
	s.state = StateSyncing
	s.startReconcileLocked(s.generation)
	s.mu.Unlock()

	return s.Wait(ctx)
}

func (s *Store) startReconcileLocked(gen uint64) {
	s.beginLocked()
	go s.reconcile(gen)
}

func (s *Store) reconcile(gen uint64) {
	lines, err := s.remote.GetCart(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.endLocked()
	if gen != s.generation {
		s.log.Debug().Msg("Dropping saved cart from a superseded session")
		return
	}

	if err != nil {
		s.log.Warn().Err(err).Bool("fail_closed", s.failClosed).Msg("Failed to load saved cart")
		s.items = domain.Cart{}
		s.writeMirrorLocked(s.ctx)
		s.synced = false
		s.lastErr = err
		if s.failClosed {
			s.backendLoaded = false
			return
		}
		s.backendLoaded = true
		s.state = StateSynced
		return
	}

	s.items = s.clampAll(domain.Cart(lines).Normalize())
	s.writeMirrorLocked(s.ctx)
	s.backendLoaded = true
	s.synced = true
	s.lastErr = nil
	s.state = StateSynced
	s.log.Info().Int("lines", len(s.items)).Msg("Saved cart loaded")
}

// --- Remote push ---

// schedulePushLocked queues lines for the account. At most one push is in
// flight; a push queued while another runs replaces any older queued one, so
// the account always ends on the latest cart.
func (s *Store) schedulePushLocked(lines domain.Cart) {
	s.pending = &pushJob{lines: lines, generation: s.generation}
	if s.pushing {
		return
	}
	s.pushing = true
	s.beginLocked()
	go s.pushLoop()
}

func (s *Store) pushLoop() {
	for {
		s.mu.Lock()
		job := s.pending
		s.pending = nil
		if job == nil || job.generation != s.generation {
			s.pushing = false
			s.endLocked()
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		err := s.remote.SaveCart(s.ctx, job.lines)

		s.mu.Lock()
		if job.generation == s.generation {
			s.synced = err == nil
			s.lastErr = err
		}
		s.mu.Unlock()

		if err != nil {
			s.log.Warn().Err(err).Int("lines", len(job.lines)).Msg("Failed to push cart")
		} else {
			s.log.Debug().Int("lines", len(job.lines)).Msg("Cart pushed")
		}
	}
}

// --- External changes ---

func (s *Store) onStorageChange(ctx context.Context, payload any) error {
	change, ok := payload.(storage.Change)
	if !ok {
		return fmt.Errorf("unexpected storage change payload %T", payload)
	}
	if change.Key == s.key {
		s.adoptMirror(ctx)
		return nil
	}
	s.rederiveSession()
	return nil
}

// adoptMirror replaces the cart with what another window wrote. Last writer
// wins; nothing is merged or pushed.
func (s *Store) adoptMirror(ctx context.Context) {
	items, err := s.readMirror(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Ignoring unreadable cart written by another window")
		return
	}
	s.mu.Lock()
	s.items = s.clampAll(items)
	s.mu.Unlock()
	s.log.Debug().Int("lines", len(items)).Msg("Cart replaced by another window")
}

// rederiveSession refreshes the session reference without reconciling. When
// another window signed out the store goes back to Anonymous. When it signed
// in a different account the store waits in Syncing, not loaded, until Resync
// or a login on this side fetches that account's cart.
func (s *Store) rederiveSession() {
	current := s.sessions.Current()

	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.session
	s.session = current
	switch {
	case current == nil && previous == nil:
		return
	case current == nil:
		s.state = StateAnonymous
		s.log.Info().Msg("Signed out in another window")
	case previous != nil && previous.UserID == current.UserID:
		return
	default:
		s.state = StateSyncing
		s.log.Info().Str("user_id", current.UserID).Msg("Another account signed in elsewhere, pushes paused until resync")
	}
	s.generation++
	s.backendLoaded = false
	s.pending = nil
}

// Session returns the session reference the store currently holds.
func (s *Store) Session() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

func (s *Store) beginLocked() {
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
}

func (s *Store) endLocked() {
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}
}

// Wait blocks until no fetch or push is running, including work started while
// waiting, or until ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.inflight == 0 {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close detaches from the bus and cancels background work.
func (s *Store) Close() {
	for _, unsub := range s.unsubscribe {
		unsub()
	}
	s.cancel()
	_ = s.Wait(context.Background())
}
