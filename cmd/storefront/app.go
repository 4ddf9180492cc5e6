package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"storefront-client/config"
	"storefront-client/internal/apiclient"
	"storefront-client/internal/cart"
	"storefront-client/internal/domain"
	"storefront-client/internal/eventbus"
	"storefront-client/internal/session"
	"storefront-client/pkg/storage"
)

// app is one storefront window: its own bus and cart over shared storage.
type app struct {
	cfg      *config.Config
	bus      *eventbus.Bus
	storage  storage.Store
	client   *apiclient.Client
	sessions *session.Manager
	cart     *cart.Store
	out      *syncWriter
	log      zerolog.Logger

	unsubscribe []func()
}

func newApp(ctx context.Context, cfg *config.Config, store storage.Store, out io.Writer, log zerolog.Logger) (*app, error) {
	bus := eventbus.New(log)
	client := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithRateLimit(cfg.APIRateLimit, cfg.APIRateBurst),
		apiclient.WithLogger(log),
	)

	sessions := session.NewManager(ctx, client, store, cfg.SessionStorageKey, bus, log)
	client.SetTokenSource(apiclient.TokenFunc(sessions.Token))

	cartStore, err := cart.NewStore(ctx, cart.Options{
		Bus:         bus,
		Storage:     store,
		Remote:      client,
		Sessions:    sessions,
		StorageKey:  cfg.CartStorageKey,
		MaxQuantity: cfg.MaxCartQuantity,
		FailClosed:  !cfg.CartFailOpen,
		Logger:      log,
	})
	if err != nil {
		sessions.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		bus:      bus,
		storage:  store,
		client:   client,
		sessions: sessions,
		cart:     cartStore,
		out:      &syncWriter{w: out},
		log:      log,
	}
	a.subscribe()
	return a, nil
}

// subscribe prints a line for every cart and session event, the way a page
// would re-render its cart badge.
func (a *app) subscribe() {
	a.unsubscribe = append(a.unsubscribe,
		a.bus.SubscribeFunc(domain.TopicCartAdd, func(ctx context.Context, payload any) {
			e := payload.(domain.CartEvent)
			a.printf("+ %s (x%d)\n", e.Product.Name, e.Product.Quantity)
		}),
		a.bus.SubscribeFunc(domain.TopicCartRemove, func(ctx context.Context, payload any) {
			e := payload.(domain.CartEvent)
			a.printf("- %s\n", e.Product.Name)
		}),
		a.bus.SubscribeFunc(domain.TopicCartUpdate, func(ctx context.Context, payload any) {
			e := payload.(domain.CartEvent)
			a.printf("~ %s (x%d)\n", e.Product.Name, e.Product.Quantity)
		}),
		a.bus.SubscribeFunc(domain.TopicCartClear, func(ctx context.Context, payload any) {
			e := payload.(domain.CartClearedEvent)
			a.printf("cart cleared (%d lines)\n", e.PreviousCartSize)
		}),
		a.bus.SubscribeFunc(domain.TopicSessionChange, func(ctx context.Context, payload any) {
			e := payload.(domain.SessionChange)
			if e.User != nil {
				a.printf("%s: %s <%s>\n", e.Type, e.User.DisplayName, e.User.Email)
				return
			}
			a.printf("%s\n", e.Type)
		}),
	)
}

// watch forwards storage changes made by other windows onto the bus until
// ctx is done.
func (a *app) watch(ctx context.Context) error {
	return storage.Bridge(ctx, a.storage, a.bus, domain.TopicStorageChange)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) Close() {
	for _, unsub := range a.unsubscribe {
		unsub()
	}
	a.cart.Close()
	a.sessions.Close()
}

// syncWriter serializes output from the shell and from bus handlers running
// on the storage watcher goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
