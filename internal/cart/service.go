package cart

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	checkoutdomain "github.com/smallbiznis/digistore/internal/checkout/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockStripes = 64

type Params struct {
	fx.In

	Log         *zap.Logger
	Persister   Persister
	ProductSvc  productdomain.Service
	BundleSvc   bundledomain.Service
	CheckoutSvc checkoutdomain.Service
}

// Service applies cart actions to carts identified by an opaque client id.
type Service struct {
	log         *zap.Logger
	persister   Persister
	productSvc  productdomain.Service
	bundleSvc   bundledomain.Service
	checkoutSvc checkoutdomain.Service
	locks       [lockStripes]sync.Mutex
}

func NewService(p Params) *Service {
	return &Service{
		log:         p.Log.Named("cart.service"),
		persister:   p.Persister,
		productSvc:  p.ProductSvc,
		bundleSvc:   p.BundleSvc,
		checkoutSvc: p.CheckoutSvc,
	}
}

// View is a cart state with its projections.
type View struct {
	State
	Total     int64 `json:"total"`
	Savings   int64 `json:"savings"`
	ItemCount int   `json:"itemCount"`
}

func NewView(state State) View {
	if state.Items == nil {
		state.Items = []Item{}
	}
	return View{
		State:     state,
		Total:     state.Total(),
		Savings:   state.Savings(),
		ItemCount: state.ItemCount(),
	}
}

type CheckoutResult struct {
	Checkout *checkoutdomain.Response `json:"checkout"`
	Cart     View                     `json:"cart"`
}

func (s *Service) Get(ctx context.Context, cartID string) (View, error) {
	if err := validateCartID(cartID); err != nil {
		return View{}, err
	}
	state, err := s.persister.Load(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	return NewView(state), nil
}

// Add prices the referenced item from the catalog and adds it to the cart.
func (s *Service) Add(ctx context.Context, cartID string, ref ItemRef) (View, error) {
	item, err := s.lookup(ctx, ref)
	if err != nil {
		return View{}, err
	}
	return s.dispatch(ctx, cartID, AddItem{Item: item})
}

func (s *Service) UpdateQuantity(ctx context.Context, cartID string, ref ItemRef, quantity int) (View, error) {
	if !ref.Valid() {
		return View{}, ErrInvalidRef
	}
	return s.dispatch(ctx, cartID, UpdateQuantity{Ref: ref, Quantity: quantity})
}

func (s *Service) Remove(ctx context.Context, cartID string, ref ItemRef) (View, error) {
	if !ref.Valid() {
		return View{}, ErrInvalidRef
	}
	return s.dispatch(ctx, cartID, RemoveItem{Ref: ref})
}

func (s *Service) Clear(ctx context.Context, cartID string) (View, error) {
	return s.dispatch(ctx, cartID, ClearCart{})
}

// Checkout starts a checkout for the cart contents and clears the cart once
// the session or free order exists.
func (s *Service) Checkout(ctx context.Context, cartID string, email string) (*CheckoutResult, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	mu := s.lock(cartID)
	mu.Lock()
	defer mu.Unlock()

	state, err := s.persister.Load(ctx, cartID)
	if err != nil {
		return nil, err
	}

	req := checkoutdomain.Request{Email: email, Items: make([]checkoutdomain.Item, 0, len(state.Items))}
	for _, item := range state.Items {
		req.Items = append(req.Items, checkoutdomain.Item{
			ID:       item.ID,
			Type:     item.Kind,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	resp, err := s.checkoutSvc.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	store := NewStore(state)
	next := store.Dispatch(ClearCart{})
	next = store.Dispatch(Close{})
	if err := s.persister.Save(ctx, cartID, next); err != nil {
		s.log.Warn("failed to clear cart after checkout", zap.String("cart_id", cartID), zap.Error(err))
	}
	return &CheckoutResult{Checkout: resp, Cart: NewView(next)}, nil
}

func (s *Service) dispatch(ctx context.Context, cartID string, action Action) (View, error) {
	if err := validateCartID(cartID); err != nil {
		return View{}, err
	}
	mu := s.lock(cartID)
	mu.Lock()
	defer mu.Unlock()

	state, err := s.persister.Load(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	store := NewStore(state)
	next := store.Dispatch(action)
	if err := s.persister.Save(ctx, cartID, next); err != nil {
		return View{}, err
	}
	return NewView(next), nil
}

func (s *Service) lookup(ctx context.Context, ref ItemRef) (Item, error) {
	if !ref.Valid() {
		return Item{}, ErrInvalidRef
	}
	switch ref.Kind {
	case KindBundle:
		b, err := s.bundleSvc.Get(ctx, ref.ID)
		if err != nil {
			return Item{}, catalogError(err)
		}
		if !b.IsActive {
			return Item{}, ErrItemUnavailable
		}
		item := Item{ItemRef: ItemRef{Kind: KindBundle, ID: b.ID}, Name: b.Name, Price: b.Price}
		if b.OriginalPrice > b.Price {
			original := b.OriginalPrice
			item.OriginalPrice = &original
		}
		return item, nil
	default:
		p, err := s.productSvc.Get(ctx, ref.ID)
		if err != nil {
			return Item{}, catalogError(err)
		}
		if !p.IsActive {
			return Item{}, ErrItemUnavailable
		}
		return Item{ItemRef: ItemRef{Kind: KindProduct, ID: p.ID}, Name: p.Name, Price: p.Price}, nil
	}
}

func (s *Service) lock(cartID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(cartID))
	return &s.locks[h.Sum32()%lockStripes]
}

func catalogError(err error) error {
	switch {
	case errors.Is(err, productdomain.ErrNotFound), errors.Is(err, bundledomain.ErrNotFound),
		errors.Is(err, productdomain.ErrInvalidID), errors.Is(err, bundledomain.ErrInvalidID):
		return ErrItemUnavailable
	default:
		return fmt.Errorf("catalog lookup: %w", err)
	}
}

func validateCartID(cartID string) error {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" || len(cartID) > 64 {
		return ErrInvalidCartID
	}
	for _, r := range cartID {
		if !(r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return ErrInvalidCartID
		}
	}
	return nil
}
