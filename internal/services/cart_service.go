// internal/services/cart_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/imi-storefront/internal/auth"
	"github.com/javajoker/imi-storefront/internal/models"
	"github.com/javajoker/imi-storefront/internal/remote"
)

var (
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidProduct  = errors.New("product id is required")
	ErrServiceClosed   = errors.New("cart service closed")
)

// TransitionSource is the part of auth.Observer the cart service needs.
type TransitionSource interface {
	Subscribe(fn func(auth.Transition)) func()
}

type CartServiceConfig struct {
	Local      LocalCart
	Remote     RemoteCart
	Reconciler *Reconciler
	Observer   TransitionSource
	Logger     logrus.FieldLogger
}

// Snapshot is a consistent read of the cart surface.
type Snapshot struct {
	State      models.SessionState `json:"state"`
	Items      []models.CartItem   `json:"items"`
	TotalItems int                 `json:"totalItems"`
	TotalPrice float64             `json:"totalPrice"`
	DrawerOpen bool                `json:"drawerOpen"`
	Busy       bool                `json:"busy"`
	Dirty      bool                `json:"dirty"`
}

// CartService is the single cart surface for the storefront. While
// anonymous it works against the local cart; while authenticated the remote
// cart is canonical and the local cart is not touched.
//
// Subscriber callbacks must not block or call back into cart operations.
type CartService struct {
	local      LocalCart
	remote     RemoteCart
	reconciler *Reconciler
	logger     logrus.FieldLogger

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	// transitionMu is held exclusively while reconciling a login or logout
	// and shared by every cart operation, so mutations wait for the
	// transition to finish.
	transitionMu sync.RWMutex

	mu         sync.Mutex
	state      models.SessionState
	cart       models.Cart
	drawerOpen bool
	dirty      bool
	pending    bool
	inFlight   int
	closed     bool

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

func NewCartService(cfg CartServiceConfig) (*CartService, error) {
	if cfg.Local == nil || cfg.Remote == nil {
		return nil, errors.New("cart service requires local and remote carts")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	reconciler := cfg.Reconciler
	if reconciler == nil {
		reconciler = NewReconciler(cfg.Local, cfg.Remote, MergePolicyRetainFailed, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &CartService{
		local:      cfg.Local,
		remote:     cfg.Remote,
		reconciler: reconciler,
		logger:     logger.WithField("component", "cart_service"),
		ctx:        ctx,
		cancel:     cancel,
		state:      models.StateAnonymousLocal,
		cart:       cfg.Local.Load(),
		subs:       make(map[int]func(Snapshot)),
	}
	if cfg.Observer != nil {
		s.unsubscribe = cfg.Observer.Subscribe(s.HandleTransition)
	}
	return s, nil
}

// Close detaches from the observer and cancels any reconciliation still
// running. Later operations return ErrServiceClosed.
func (s *CartService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.cancel()
}

// HandleTransition reconciles the two carts on an auth edge. It is the
// observer callback and must not be called from a subscriber.
func (s *CartService) HandleTransition(t auth.Transition) {
	defer s.publish()

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	target := models.StateAnonymousLocal
	if t.IsLogin() {
		target = models.StateAuthenticatedRemote
	}
	if s.state == target {
		s.mu.Unlock()
		return
	}
	s.state = models.StateTransitioning
	current := s.cart.Clone()
	s.mu.Unlock()

	s.publish()

	fields := logrus.Fields{"from": t.From, "to": t.To}
	if t.Identity != nil {
		fields["user_id"] = t.Identity.UserID
	}
	logger := s.logger.WithFields(fields)

	if t.IsLogin() {
		s.login(logger, current)
		return
	}
	s.logout(logger, current)
}

func (s *CartService) login(logger logrus.FieldLogger, current models.Cart) {
	s.beginCall()
	cart, report, err := s.reconciler.Login(s.ctx)
	s.endCall()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = models.StateAuthenticatedRemote
	s.pending = report.Pending()
	if err != nil {
		// Keep showing what the user had; a sync retries the merge.
		logger.WithError(err).Warn("Login reconciliation failed, cart left unsynced")
		s.cart = current
		s.dirty = true
		s.pending = !s.local.Load().IsEmpty()
		return
	}
	s.cart = cart
	s.dirty = s.pending
	logger.WithFields(logrus.Fields{
		"merged": len(report.Merged),
		"failed": len(report.Failed),
		"items":  cart.Len(),
	}).Info("Switched cart to remote")
}

func (s *CartService) logout(logger logrus.FieldLogger, current models.Cart) {
	err := s.reconciler.Logout(current.Items)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = models.StateAnonymousLocal
	s.pending = false
	s.dirty = false
	if err != nil {
		logger.WithError(err).Warn("Failed to snapshot cart on logout, keeping it in memory")
		s.cart = current
		s.dirty = true
		return
	}
	s.cart = s.local.Load()
	logger.WithField("items", s.cart.Len()).Info("Switched cart to local")
}

// AddItem adds qty of product, merging with an existing line of the same
// product and variant, and opens the drawer.
func (s *CartService) AddItem(ctx context.Context, product models.Product, qty int, variant *models.VariantSelection) error {
	if product.ID == "" {
		return ErrInvalidProduct
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	item := product.LineItem(qty, variant)

	defer s.publish()
	s.transitionMu.RLock()
	defer s.transitionMu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	s.drawerOpen = true
	s.mu.Unlock()

	if s.State() == models.StateAnonymousLocal {
		return s.mutateLocal(func(c *models.Cart) error {
			c.Add(item)
			return nil
		})
	}

	s.beginCall()
	defer s.endCall()
	if _, err := s.remote.AddItem(ctx, item.ProductID, item.VariantID, qty); err != nil {
		s.fallback("add_item", err, func(c *models.Cart) { c.Add(item) })
		return nil
	}
	s.refresh(ctx, "add_item", func(c *models.Cart) { c.Add(item) })
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, id models.CompositeID) error {
	defer s.publish()
	s.transitionMu.RLock()
	defer s.transitionMu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if s.State() == models.StateAnonymousLocal {
		return s.mutateLocal(func(c *models.Cart) error {
			if !c.Remove(id) {
				return ErrItemNotFound
			}
			return nil
		})
	}

	apply := func(c *models.Cart) { c.Remove(id) }
	item, ok := s.find(id)
	if !ok {
		return ErrItemNotFound
	}
	if item.ID == "" {
		// Never reached the server; only the optimistic copy exists.
		s.fallback("remove_item", nil, apply)
		return nil
	}

	s.beginCall()
	defer s.endCall()
	for _, itemID := range item.ServerIDs() {
		if err := s.remote.RemoveItem(ctx, itemID); err != nil {
			s.fallback("remove_item", err, apply)
			return nil
		}
	}
	s.refresh(ctx, "remove_item", apply)
	return nil
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, id models.CompositeID, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, id)
	}

	defer s.publish()
	s.transitionMu.RLock()
	defer s.transitionMu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if s.State() == models.StateAnonymousLocal {
		return s.mutateLocal(func(c *models.Cart) error {
			if !c.SetQuantity(id, qty) {
				return ErrItemNotFound
			}
			return nil
		})
	}

	apply := func(c *models.Cart) { c.SetQuantity(id, qty) }
	item, ok := s.find(id)
	if !ok {
		return ErrItemNotFound
	}
	if item.ID == "" {
		s.fallback("update_quantity", nil, apply)
		return nil
	}

	s.beginCall()
	defer s.endCall()
	if _, err := s.remote.UpdateItem(ctx, item.ID, qty); err != nil {
		s.fallback("update_quantity", err, apply)
		return nil
	}
	for _, itemID := range item.FoldedIDs {
		if err := s.remote.RemoveItem(ctx, itemID); err != nil {
			s.fallback("update_quantity", err, apply)
			return nil
		}
	}
	s.refresh(ctx, "update_quantity", apply)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context) error {
	defer s.publish()
	s.transitionMu.RLock()
	defer s.transitionMu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if s.State() == models.StateAnonymousLocal {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cart = models.Cart{}
		if err := s.local.Clear(); err != nil {
			s.logger.WithError(err).Warn("Failed to clear local cart")
		}
		return nil
	}

	apply := func(c *models.Cart) { c.Items = nil }
	s.beginCall()
	defer s.endCall()
	if err := s.remote.ClearCart(ctx); err != nil {
		s.fallback("clear_cart", err, apply)
		return nil
	}
	s.refresh(ctx, "clear_cart", apply)
	return nil
}

// SyncCart reloads the canonical cart for the current state. While
// authenticated it first retries lines a login merge left behind. Calling
// it twice with no other change yields the same state.
func (s *CartService) SyncCart(ctx context.Context) error {
	defer s.publish()
	s.transitionMu.RLock()
	defer s.transitionMu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if s.State() == models.StateAnonymousLocal {
		cart := s.local.Load()
		s.mu.Lock()
		s.cart = cart
		s.dirty = false
		s.mu.Unlock()
		return nil
	}

	s.beginCall()
	defer s.endCall()

	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending {
		report, err := s.reconciler.MergePending(ctx)
		if err != nil {
			return fmt.Errorf("failed to merge pending cart items: %w", err)
		}
		s.mu.Lock()
		s.pending = report.Pending()
		s.mu.Unlock()
	}

	cart, err := s.remote.GetCart(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("unauthorized", remote.IsUnauthorized(err)).Warn("Cart sync failed")
		return fmt.Errorf("failed to sync cart: %w", err)
	}

	s.mu.Lock()
	s.cart = cart
	s.dirty = s.pending
	s.mu.Unlock()
	return nil
}

func (s *CartService) Items() []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone().Items
}

func (s *CartService) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CalculateTotals(s.cart.Items).TotalItems
}

func (s *CartService) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CalculateTotals(s.cart.Items).TotalPrice
}

func (s *CartService) DrawerOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawerOpen
}

func (s *CartService) SetDrawerOpen(open bool) {
	s.mu.Lock()
	changed := s.drawerOpen != open
	s.drawerOpen = open
	s.mu.Unlock()
	if changed {
		s.publish()
	}
}

func (s *CartService) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a remote call is in flight.
func (s *CartService) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// Dirty reports whether the displayed cart may differ from the canonical
// one after a failed remote call or a partial login merge.
func (s *CartService) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *CartService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *CartService) snapshotLocked() Snapshot {
	totals := CalculateTotals(s.cart.Items)
	items := s.cart.Clone().Items
	if items == nil {
		items = []models.CartItem{}
	}
	return Snapshot{
		State:      s.state,
		Items:      items,
		TotalItems: totals.TotalItems,
		TotalPrice: totals.TotalPrice,
		DrawerOpen: s.drawerOpen,
		Busy:       s.inFlight > 0,
		Dirty:      s.dirty,
	}
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned func unregisters it.
func (s *CartService) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *CartService) publish() {
	s.subMu.Lock()
	if len(s.subs) == 0 {
		s.subMu.Unlock()
		return
	}
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	snap := s.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}

func (s *CartService) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServiceClosed
	}
	return nil
}

func (s *CartService) find(id models.CompositeID) (models.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Find(id)
}

// mutateLocal applies fn to the in-memory cart and persists the result
// while holding the state lock, so the stored cart always matches memory.
func (s *CartService) mutateLocal(fn func(*models.Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.cart.Clone()
	if err := fn(&cart); err != nil {
		return err
	}
	s.cart = cart
	if err := s.local.Save(cart); err != nil {
		s.logger.WithError(err).Warn("Failed to persist local cart")
	}
	return nil
}

// refresh adopts the remote cart after a successful mutation. When the
// refetch fails the mutation is applied locally instead.
func (s *CartService) refresh(ctx context.Context, op string, apply func(*models.Cart)) {
	cart, err := s.remote.GetCart(ctx)
	if err != nil {
		s.fallback(op, err, apply)
		return
	}

	s.mu.Lock()
	s.cart = cart
	s.dirty = s.pending
	s.mu.Unlock()
}

// fallback applies a mutation to the in-memory cart after the remote call
// failed and marks the cart dirty until the next successful sync.
func (s *CartService) fallback(op string, err error, apply func(*models.Cart)) {
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"operation":    op,
			"unauthorized": remote.IsUnauthorized(err),
		}).Warn("Remote cart call failed, applying change locally")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.cart.Clone()
	apply(&cart)
	s.cart = cart
	s.dirty = true
}

func (s *CartService) beginCall() {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
	s.publish()
}

func (s *CartService) endCall() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
}
