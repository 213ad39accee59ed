package cart

import (
	"context"
	"testing"

	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	checkoutdomain "github.com/smallbiznis/digistore/internal/checkout/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func int64Ptr(v int64) *int64 { return &v }

func TestAddItemIncrementsExistingLine(t *testing.T) {
	store := NewStore(State{})
	item := Item{ItemRef: ItemRef{Kind: KindProduct, ID: "p1"}, Name: "Prompt Pack", Price: 799}

	store.Dispatch(AddItem{Item: item})
	state := store.Dispatch(AddItem{Item: item})

	require.Len(t, state.Items, 1)
	assert.Equal(t, 2, state.Items[0].Quantity)
	assert.True(t, state.IsOpen)
	assert.Equal(t, int64(1598), state.Total())
}

func TestItemRefSeparatesKinds(t *testing.T) {
	store := NewStore(State{})
	store.Dispatch(AddItem{Item: Item{ItemRef: ItemRef{Kind: KindProduct, ID: "1"}, Price: 100}})
	state := store.Dispatch(AddItem{Item: Item{ItemRef: ItemRef{Kind: KindBundle, ID: "1"}, Price: 500}})

	assert.Len(t, state.Items, 2)
	assert.Equal(t, 2, state.ItemCount())
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	ref := ItemRef{Kind: KindProduct, ID: "p1"}
	store := NewStore(State{Items: []Item{{ItemRef: ref, Price: 100, Quantity: 3}}})

	state := store.Dispatch(UpdateQuantity{Ref: ref, Quantity: 5})
	assert.Equal(t, 5, state.Items[0].Quantity)

	state = store.Dispatch(UpdateQuantity{Ref: ref, Quantity: 0})
	assert.Empty(t, state.Items)
}

func TestTotalsAndSavings(t *testing.T) {
	state := State{Items: []Item{
		{ItemRef: ItemRef{Kind: KindProduct, ID: "a"}, Price: 1000, Quantity: 2},
		{ItemRef: ItemRef{Kind: KindBundle, ID: "b"}, Price: 2000, OriginalPrice: int64Ptr(2500), Quantity: 2},
		{ItemRef: ItemRef{Kind: KindBundle, ID: "c"}, Price: 3000, OriginalPrice: int64Ptr(2000), Quantity: 1},
	}}

	assert.Equal(t, int64(9000), state.Total())
	assert.Equal(t, int64(1000), state.Savings())
	assert.Equal(t, 5, state.ItemCount())
}

func TestOpenCloseToggle(t *testing.T) {
	store := NewStore(State{})
	assert.True(t, store.Dispatch(Open{}).IsOpen)
	assert.False(t, store.Dispatch(Close{}).IsOpen)
	assert.True(t, store.Dispatch(Toggle{}).IsOpen)
	assert.False(t, store.Dispatch(Toggle{}).IsOpen)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store := NewStore(State{})
	var seen []int
	unsubscribe := store.Subscribe(func(s State) { seen = append(seen, s.ItemCount()) })

	store.Dispatch(AddItem{Item: Item{ItemRef: ItemRef{Kind: KindProduct, ID: "p1"}, Price: 1}})
	unsubscribe()
	store.Dispatch(AddItem{Item: Item{ItemRef: ItemRef{Kind: KindProduct, ID: "p1"}, Price: 1}})

	assert.Equal(t, []int{1}, seen)
}

func TestSubscribersRunInSubscriptionOrder(t *testing.T) {
	store := NewStore(State{})
	var order []string
	remove := map[string]func(){}
	for _, name := range []string{"persist", "badge", "drawer", "analytics", "toast"} {
		name := name
		remove[name] = store.Subscribe(func(State) { order = append(order, name) })
	}

	store.Dispatch(Open{})
	assert.Equal(t, []string{"persist", "badge", "drawer", "analytics", "toast"}, order)

	order = nil
	remove["drawer"]()
	remove["drawer"]()
	store.Subscribe(func(State) { order = append(order, "late") })
	store.Dispatch(Close{})
	assert.Equal(t, []string{"persist", "badge", "analytics", "toast", "late"}, order)
}

func TestHydrateDoesNotNotify(t *testing.T) {
	store := NewStore(State{})
	called := false
	store.Subscribe(func(State) { called = true })

	store.Hydrate(State{Items: []Item{{ItemRef: ItemRef{Kind: KindProduct, ID: "x"}, Price: 5, Quantity: 2}}})
	assert.False(t, called)
	assert.Equal(t, int64(10), store.State().Total())
}

func TestStateIsolation(t *testing.T) {
	store := NewStore(State{})
	state := store.Dispatch(AddItem{Item: Item{ItemRef: ItemRef{Kind: KindProduct, ID: "p1"}, Price: 1}})
	state.Items[0].Quantity = 99

	assert.Equal(t, 1, store.State().Items[0].Quantity)
}

type fakeProducts struct {
	productdomain.Service
	items map[string]productdomain.Response
}

func (f *fakeProducts) Get(ctx context.Context, id string) (*productdomain.Response, error) {
	p, ok := f.items[id]
	if !ok {
		return nil, productdomain.ErrNotFound
	}
	return &p, nil
}

type fakeBundles struct {
	bundledomain.Service
	items map[string]bundledomain.Response
}

func (f *fakeBundles) Get(ctx context.Context, id string) (*bundledomain.Response, error) {
	b, ok := f.items[id]
	if !ok {
		return nil, bundledomain.ErrNotFound
	}
	return &b, nil
}

type fakeCheckout struct {
	checkoutdomain.Service
	last *checkoutdomain.Request
	err  error
}

func (f *fakeCheckout) Create(ctx context.Context, req checkoutdomain.Request) (*checkoutdomain.Response, error) {
	f.last = &req
	if f.err != nil {
		return nil, f.err
	}
	id := "cs_test_1"
	return &checkoutdomain.Response{SessionID: &id, URL: "https://checkout.example/cs_test_1"}, nil
}

func newTestService(checkout *fakeCheckout) *Service {
	return NewService(Params{
		Log:       zap.NewNop(),
		Persister: NewMemoryPersister(),
		ProductSvc: &fakeProducts{items: map[string]productdomain.Response{
			"p1":  {ID: "p1", Name: "Prompt Pack", Price: 799, IsActive: true},
			"off": {ID: "off", Name: "Retired", Price: 100, IsActive: false},
		}},
		BundleSvc: &fakeBundles{items: map[string]bundledomain.Response{
			"b1": {ID: "b1", Name: "Starter Bundle", Price: 2000, OriginalPrice: 2500, IsActive: true},
		}},
		CheckoutSvc: checkout,
	})
}

func TestServiceAddUsesCatalogPrices(t *testing.T) {
	svc := newTestService(&fakeCheckout{})
	ctx := context.Background()

	_, err := svc.Add(ctx, "cart-1", ItemRef{Kind: KindProduct, ID: "p1"})
	require.NoError(t, err)
	view, err := svc.Add(ctx, "cart-1", ItemRef{Kind: KindBundle, ID: "b1"})
	require.NoError(t, err)

	assert.Equal(t, int64(2799), view.Total)
	assert.Equal(t, int64(500), view.Savings)
	assert.Equal(t, 2, view.ItemCount)

	reloaded, err := svc.Get(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, view.Total, reloaded.Total)
}

func TestServiceRejectsUnavailableItems(t *testing.T) {
	svc := newTestService(&fakeCheckout{})
	ctx := context.Background()

	_, err := svc.Add(ctx, "cart-1", ItemRef{Kind: KindProduct, ID: "off"})
	assert.ErrorIs(t, err, ErrItemUnavailable)

	_, err = svc.Add(ctx, "cart-1", ItemRef{Kind: KindProduct, ID: "missing"})
	assert.ErrorIs(t, err, ErrItemUnavailable)

	_, err = svc.Add(ctx, "cart-1", ItemRef{Kind: "coupon", ID: "p1"})
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = svc.Get(ctx, "bad id!")
	assert.ErrorIs(t, err, ErrInvalidCartID)
}

func TestServiceCheckoutClearsCart(t *testing.T) {
	checkout := &fakeCheckout{}
	svc := newTestService(checkout)
	ctx := context.Background()

	_, err := svc.Add(ctx, "cart-1", ItemRef{Kind: KindProduct, ID: "p1"})
	require.NoError(t, err)
	_, err = svc.UpdateQuantity(ctx, "cart-1", ItemRef{Kind: KindProduct, ID: "p1"}, 2)
	require.NoError(t, err)

	result, err := svc.Checkout(ctx, "cart-1", "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, result.Checkout.SessionID)
	assert.Empty(t, result.Cart.Items)

	require.NotNil(t, checkout.last)
	require.Len(t, checkout.last.Items, 1)
	assert.Equal(t, 2, checkout.last.Items[0].Quantity)
	assert.Equal(t, "a@b.com", checkout.last.Email)

	view, err := svc.Get(ctx, "cart-1")
	require.NoError(t, err)
	assert.Zero(t, view.ItemCount)
}

func TestServiceCheckoutFailureKeepsCart(t *testing.T) {
	checkout := &fakeCheckout{err: checkoutdomain.ErrSessionCreateFailed}
	svc := newTestService(checkout)
	ctx := context.Background()

	_, err := svc.Add(ctx, "cart-1", ItemRef{Kind: KindProduct, ID: "p1"})
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, "cart-1", "a@b.com")
	assert.ErrorIs(t, err, checkoutdomain.ErrSessionCreateFailed)

	view, err := svc.Get(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.ItemCount)
}
