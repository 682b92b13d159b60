package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/florist-storefront/internal/gateway"
	"github.com/angelmondragon/florist-storefront/internal/session"
	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const imageBackfillLimit = 4

// Manager owns the local cart and keeps it in step with the remote cart
// session. Adds and clears change local state only after the remote call
// succeeds; removals are applied locally regardless.
type Manager struct {
	remote Remote
	store  session.Store
	logg   *logger.Logger

	mu        sync.RWMutex
	sessionID string
	items     []Item
}

// NewManager wires a Manager. Call Init before use.
func NewManager(remote Remote, store session.Store, logg *logger.Logger) (*Manager, error) {
	if remote == nil {
		return nil, fmt.Errorf("cart remote required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Manager{remote: remote, store: store, logg: logg}, nil
}

// Init restores the persisted session and loads its contents, or opens a new
// session. Remote failures are tolerated: a gone session is replaced, a
// transient one keeps the persisted id for the next load, and a failed
// creation is retried on the first add. Only session store failures are
// returned.
func (m *Manager) Init(ctx context.Context) error {
	id, ok, err := m.store.Load(ctx)
	if err != nil {
		return storeError{pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart session id")}
	}
	if ok {
		m.setSession(id)
		err := m.LoadFromRemote(ctx)
		switch {
		case err == nil:
			return nil
		case isStoreError(err):
			return err
		case m.SessionID() != "":
			m.logg.Warn(m.logg.WithCartSession(ctx, id), "initial cart load failed, keeping session")
			return nil
		}
	}
	if err := m.CreateSession(ctx); err != nil {
		if isStoreError(err) {
			return err
		}
		m.logg.Warn(ctx, "initial cart creation failed, will retry on first add")
	}
	return nil
}

// CreateSession opens a remote cart and persists its id. State is unchanged on failure.
func (m *Manager) CreateSession(ctx context.Context) error {
	id, err := m.remote.CreateCart(ctx)
	if err != nil {
		m.logg.Error(ctx, "create cart session failed", err)
		return err
	}
	if err := m.store.Save(ctx, id); err != nil {
		return storeError{pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart session id")}
	}
	m.setSession(id)
	m.logg.Info(m.logg.WithCartSession(ctx, id), "cart session created")
	return nil
}

// LoadFromRemote replaces the local cart with the remote contents. Items
// without an image get one from a product lookup when possible. A gone
// session is invalidated instead of retried.
func (m *Manager) LoadFromRemote(ctx context.Context) error {
	id := m.SessionID()
	if id == "" {
		return nil
	}
	ctx = m.logg.WithCartSession(ctx, id)

	lines, err := m.remote.GetCart(ctx, id)
	if err != nil {
		if gateway.IsGone(err) {
			m.logg.Warn(ctx, "cart session gone, invalidating")
			if invErr := m.invalidate(ctx); invErr != nil {
				return invErr
			}
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msgSessionExpired)
		}
		m.logg.Error(ctx, "load cart failed", err)
		return err
	}

	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		items = append(items, itemFromLine(line))
	}
	m.backfillImages(ctx, items)

	m.mu.Lock()
	if m.sessionID == id {
		m.items = items
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) backfillImages(ctx context.Context, items []Item) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageBackfillLimit)
	for i := range items {
		if items[i].Image != "" || items[i].ID == "" {
			continue
		}
		g.Go(func() error {
			product, err := m.remote.GetProduct(gctx, items[i].ID)
			if err != nil {
				m.logg.Warn(m.logg.WithField(ctx, "product_code", items[i].ID), "image backfill failed")
				return nil
			}
			items[i].Image = product.Image
			return nil
		})
	}
	_ = g.Wait()
}

// AddItem adds one unit of product. A session is created first when needed;
// nothing is added locally unless the remote add succeeds.
func (m *Manager) AddItem(ctx context.Context, product gateway.Product) error {
	code := strings.TrimSpace(product.Code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, msgMissingCode)
	}

	if m.SessionID() == "" {
		if err := m.CreateSession(ctx); err != nil || m.SessionID() == "" {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgCreateFailed)
		}
	}
	id := m.SessionID()
	ctx = m.logg.WithCartSession(ctx, id)

	if err := m.remote.UpdateCart(ctx, gateway.CartUpdate{CartID: id, Code: code}); err != nil {
		m.logg.Error(m.logg.WithField(ctx, "product_code", code), "add to cart failed", err)
		return addFailure(err, product.Name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == code {
			m.items[i].Quantity = m.items[i].qty() + 1
			return nil
		}
	}
	m.items = append(m.items, Item{
		ID:       code,
		Name:     product.Name,
		Price:    product.Price,
		Quantity: 1,
		Image:    product.Image,
	})
	return nil
}

// RemoveItem removes the item at index. The item is resolved when the call
// starts and removed by id afterwards, so a list that changed shape in the
// meantime never loses the wrong entry. The remote error, if any, is returned
// after the local removal.
func (m *Manager) RemoveItem(ctx context.Context, index int) error {
	m.mu.RLock()
	if index < 0 || index >= len(m.items) {
		m.mu.RUnlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "cart item index out of range")
	}
	target := m.items[index].ID
	id := m.sessionID
	m.mu.RUnlock()

	var remoteErr error
	if id != "" {
		ctx = m.logg.WithCartSession(ctx, id)
		remoteErr = m.remote.UpdateCart(ctx, gateway.CartUpdate{CartID: id, Code: target, Action: gateway.ActionRemove})
		if remoteErr != nil {
			m.logg.Error(m.logg.WithField(ctx, "product_code", target), "remote remove failed, removing locally", remoteErr)
		}
	}

	m.mu.Lock()
	for i := range m.items {
		if m.items[i].ID == target {
			m.items = append(m.items[:i:i], m.items[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	return remoteErr
}

// Clear empties the remote cart, then the local one. No-op without a session.
func (m *Manager) Clear(ctx context.Context) error {
	id := m.SessionID()
	if id == "" {
		return nil
	}
	ctx = m.logg.WithCartSession(ctx, id)
	if err := m.remote.UpdateCart(ctx, gateway.CartUpdate{CartID: id, Action: gateway.ActionClear}); err != nil {
		m.logg.Error(ctx, "clear cart failed", err)
		return err
	}
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
	return nil
}

// DestroySession deletes the remote cart and forgets the session. No-op
// without a session.
func (m *Manager) DestroySession(ctx context.Context) error {
	id := m.SessionID()
	if id == "" {
		return nil
	}
	ctx = m.logg.WithCartSession(ctx, id)
	if err := m.remote.DeleteCart(ctx, id); err != nil {
		m.logg.Error(ctx, "destroy cart failed", err)
		return err
	}
	return m.invalidate(ctx)
}

func (m *Manager) invalidate(ctx context.Context) error {
	m.mu.Lock()
	m.sessionID = ""
	m.items = nil
	m.mu.Unlock()
	if err := m.store.Save(ctx, ""); err != nil {
		return storeError{pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear persisted cart session id")}
	}
	return nil
}

// storeError marks a session store failure as opposed to a remote one.
type storeError struct{ err error }

func (e storeError) Error() string { return e.err.Error() }
func (e storeError) Unwrap() error { return e.err }

func isStoreError(err error) bool {
	var se storeError
	return errors.As(err, &se)
}

func (m *Manager) setSession(id string) {
	m.mu.Lock()
	m.sessionID = id
	m.mu.Unlock()
}

// SessionID returns the current remote cart id, or "" when none exists.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// Items returns a copy of the local cart.
func (m *Manager) Items() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// Count is the number of units across all items.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, item := range m.items {
		n += item.qty()
	}
	return n
}

// LocalTotal is the sum of line totals shown in the cart drawer.
func (m *Manager) LocalTotal() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, item := range m.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func (m *Manager) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items) == 0
}
