package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/javajoker/imi-storefront/internal/auth"
	"github.com/javajoker/imi-storefront/internal/models"
	"github.com/javajoker/imi-storefront/internal/remote"
)

var errRemoteDown = errors.New("remote down")

// fakeRemote is an in-memory RemoteCart that merges adds like the backend.
type fakeRemote struct {
	mu      sync.Mutex
	items   []models.CartItem
	nextID  int
	calls   map[string]int
	failAdd map[string]bool
	down    bool
	// block, when set, is received from before AddItem returns.
	block chan struct{}
	// afterAdd, when set, runs after every successful AddItem.
	afterAdd func()
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		calls:   make(map[string]int),
		failAdd: make(map[string]bool),
	}
}

func (f *fakeRemote) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.down {
		return errRemoteDown
	}
	return nil
}

func (f *fakeRemote) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) SetDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeRemote) Seed(items ...models.CartItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	for _, item := range items {
		f.nextID++
		item.ID = fmt.Sprint(f.nextID)
		f.items = append(f.items, item)
	}
}

func (f *fakeRemote) Quantities() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int)
	for _, item := range f.items {
		out[item.Key().String()] = item.Quantity.Int()
	}
	return out
}

// Rows counts server rows, including duplicates of one product line.
func (f *fakeRemote) Rows() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *fakeRemote) GetCart(ctx context.Context) (models.Cart, error) {
	if err := f.record("get"); err != nil {
		return models.Cart{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return remote.FoldRows(models.Cart{Items: f.items}.Clone().Items), nil
}

func (f *fakeRemote) AddItem(ctx context.Context, productID, variantID string, qty int) (*models.CartItem, error) {
	if err := f.record("add"); err != nil {
		return nil, err
	}
	if f.block != nil {
		<-f.block
	}
	item, err := f.add(productID, variantID, qty)
	if err == nil && f.afterAdd != nil {
		f.afterAdd()
	}
	return item, err
}

func (f *fakeRemote) add(productID, variantID string, qty int) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd[productID] {
		return nil, fmt.Errorf("add %s rejected", productID)
	}

	key := models.CompositeID{ProductID: productID, VariantID: variantID}
	for i := range f.items {
		if f.items[i].Key() == key {
			f.items[i].Quantity += models.Count(qty)
			item := f.items[i]
			return &item, nil
		}
	}
	f.nextID++
	item := models.CartItem{
		ID:        fmt.Sprint(f.nextID),
		ProductID: productID,
		VariantID: variantID,
		Name:      productID,
		Price:     10,
		Quantity:  models.Count(qty),
	}
	f.items = append(f.items, item)
	return &item, nil
}

func (f *fakeRemote) UpdateItem(ctx context.Context, itemID string, qty int) (*models.CartItem, error) {
	if err := f.record("update"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items[i].Quantity = models.Count(qty)
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, errors.New("item not found")
}

func (f *fakeRemote) RemoveItem(ctx context.Context, itemID string) error {
	if err := f.record("remove"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return errors.New("item not found")
}

func (f *fakeRemote) ClearCart(ctx context.Context) error {
	if err := f.record("clear"); err != nil {
		return err
	}
	f.mu.Lock()
	f.items = nil
	f.mu.Unlock()
	return nil
}

// fakeObserver hands transitions to subscribers on demand.
type fakeObserver struct {
	mu   sync.Mutex
	subs map[int]func(auth.Transition)
	next int
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{subs: make(map[int]func(auth.Transition))}
}

func (o *fakeObserver) Subscribe(fn func(auth.Transition)) func() {
	o.mu.Lock()
	id := o.next
	o.next++
	o.subs[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *fakeObserver) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

func (o *fakeObserver) emit(t auth.Transition) {
	o.mu.Lock()
	subs := make([]func(auth.Transition), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()
	for _, fn := range subs {
		fn(t)
	}
}

func (o *fakeObserver) Login() {
	o.emit(auth.Transition{From: auth.StatusAnonymous, To: auth.StatusAuthenticated, Identity: &auth.Identity{UserID: "u1"}})
}

func (o *fakeObserver) Logout() {
	o.emit(auth.Transition{From: auth.StatusAuthenticated, To: auth.StatusAnonymous, Identity: &auth.Identity{UserID: "u1"}})
}
