package cart

import (
	"context"
	"errors"
	"strings"
	"testing"

	"qkart-backend/internal/domain"
	"qkart-backend/internal/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memCarts struct {
	byEmail      map[string]domain.Cart
	createErr    error
	saveErr      error
	saves        int
	cancelOnSave context.CancelFunc // client disconnects right after the write commits
}

func newMemCarts() *memCarts {
	return &memCarts{byEmail: map[string]domain.Cart{}}
}

func (m *memCarts) GetByEmail(_ context.Context, email string) (*domain.Cart, error) {
	c, ok := m.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (m *memCarts) Create(_ context.Context, c domain.Cart) (*domain.Cart, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, ok := m.byEmail[c.Email]; ok {
		return nil, domain.ErrAlreadyExists
	}
	c.ID = "cart-" + c.Email
	c.Version = 1
	m.byEmail[c.Email] = *c.Clone()
	return c.Clone(), nil
}

func (m *memCarts) Save(_ context.Context, c domain.Cart) (*domain.Cart, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	cur, ok := m.byEmail[c.Email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if cur.Version != c.Version {
		return nil, domain.ErrConflict
	}
	m.saves++
	c.Version++
	m.byEmail[c.Email] = *c.Clone()
	if m.cancelOnSave != nil {
		m.cancelOnSave()
	}
	return c.Clone(), nil
}

func (m *memCarts) put(c domain.Cart) {
	if c.ID == "" {
		c.ID = "cart-" + c.Email
	}
	if c.Version == 0 {
		c.Version = 1
	}
	m.byEmail[c.Email] = *c.Clone()
}

type memProducts map[string]domain.Product

// GetByID accepts any UUID spelling and keys by the canonical form, as the Postgres store does.
func (m memProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	if parsed, err := uuid.Parse(id); err == nil {
		id = parsed.String()
	}
	p, ok := m[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type memUsers struct {
	byID    map[string]domain.User
	saveErr error
	saves   int
}

func (m *memUsers) Save(_ context.Context, u domain.User) (*domain.User, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	cur, ok := m.byID[u.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if cur.Version != u.Version {
		return nil, domain.ErrConflict
	}
	m.saves++
	u.Version++
	m.byID[u.ID] = u
	return &u, nil
}

// recordingTx mimics a rollback by restoring both stores when fn fails.
type recordingTx struct {
	carts *memCarts
	users *memUsers
	calls int
}

func (r *recordingTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	carts := map[string]domain.Cart{}
	for k, v := range r.carts.byEmail {
		carts[k] = *v.Clone()
	}
	users := map[string]domain.User{}
	for k, v := range r.users.byID {
		users[k] = v
	}
	if err := fn(ctx); err != nil {
		r.carts.byEmail = carts
		r.users.byID = users
		return err
	}
	return nil
}

type capturePublisher struct {
	events []events.CartEvent
	err    error
}

func (c *capturePublisher) Publish(ctx context.Context, ev events.CartEvent) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.events = append(c.events, ev)
	return c.err
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) types() []string {
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc      *Service
	carts    *memCarts
	products memProducts
	users    *memUsers
	tx       *recordingTx
	pub      *capturePublisher
	user     *domain.User
}

const watchID = "e1a7c0de-5b2f-4c1e-9a7d-4f3b2c1a18c0"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	user := domain.User{
		ID:          "u1",
		Name:        "crio",
		Email:       "crio@example.com",
		WalletMoney: decimal.NewFromInt(100),
		Address:     "221B Baker Street, London",
		Version:     1,
	}
	f := &fixture{
		carts: newMemCarts(),
		products: memProducts{
			"p1": {ID: "p1", Name: "Shoes", Category: "Fashion", Cost: decimal.NewFromInt(30), Rating: 4},
			"p2": {ID: "p2", Name: "Phone", Category: "Phones", Cost: decimal.NewFromInt(10), Rating: 5},
			"p3": {ID: "p3", Name: "Lamp", Category: "Home", Cost: decimal.RequireFromString("9.99"), Rating: 3},
			watchID: {ID: watchID, Name: "Watch", Category: "Electronics", Cost: decimal.NewFromInt(20), Rating: 5},
		},
		users: &memUsers{byID: map[string]domain.User{user.ID: user}},
		pub:   &capturePublisher{},
		user:  &user,
	}
	f.tx = &recordingTx{carts: f.carts, users: f.users}
	f.svc = New(Deps{
		Carts:    f.carts,
		Products: f.products,
		Users:    f.users,
		Tx:       f.tx,
		Events:   f.pub,
	}, "PAYMENT_OPTION_DEFAULT")
	return f
}

func (f *fixture) seedCart(items ...domain.CartItem) {
	f.carts.put(domain.Cart{Email: f.user.Email, Items: items, PaymentOption: "PAYMENT_OPTION_DEFAULT"})
}

func (f *fixture) line(id string, qty int) domain.CartItem {
	return domain.CartItem{Product: f.products[id].Snapshot(), Quantity: qty}
}

func assertKind(t *testing.T, err error, kind domain.Kind, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := domain.KindOf(err); got != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, got, err)
	}
	if msg != "" && domain.MessageOf(err) != msg {
		t.Fatalf("expected message %q, got %q", msg, domain.MessageOf(err))
	}
}

func productIDs(c *domain.Cart) []string {
	out := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		out = append(out, item.Product.ID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGetCartByUserMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetCartByUser(context.Background(), f.user)
	assertKind(t, err, domain.KindNotFound, msgNoCart)
}

func TestGetCartByUserStoreError(t *testing.T) {
	f := newFixture(t)
	svc := New(Deps{Carts: failingCarts{err: errors.New("db down")}, Products: f.products, Users: f.users}, "x")
	_, err := svc.GetCartByUser(context.Background(), f.user)
	assertKind(t, err, domain.KindInternal, "")
}

type failingCarts struct{ err error }

func (f failingCarts) GetByEmail(context.Context, string) (*domain.Cart, error) { return nil, f.err }
func (f failingCarts) Create(context.Context, domain.Cart) (*domain.Cart, error) {
	return nil, f.err
}
func (f failingCarts) Save(context.Context, domain.Cart) (*domain.Cart, error) { return nil, f.err }

func TestAddProductCreatesCartOnFirstUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart, err := f.svc.AddProductToCart(ctx, f.user, "p1", 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if cart.PaymentOption != "PAYMENT_OPTION_DEFAULT" {
		t.Fatalf("expected default payment option, got %q", cart.PaymentOption)
	}

	got, err := f.svc.GetCartByUser(ctx, f.user)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Product.ID != "p1" || got.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if !equalStrings(f.pub.types(), []string{events.CartCreated, events.CartItemAdded}) {
		t.Fatalf("unexpected events: %v", f.pub.types())
	}
}

func TestAddProductAppendsToExistingCart(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 1))

	cart, err := f.svc.AddProductToCart(context.Background(), f.user, "p2", 3)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !equalStrings(productIDs(cart), []string{"p1", "p2"}) {
		t.Fatalf("unexpected order: %v", productIDs(cart))
	}
	if cart.Items[1].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", cart.Items[1].Quantity)
	}
	if !equalStrings(f.pub.types(), []string{events.CartItemAdded}) {
		t.Fatalf("unexpected events: %v", f.pub.types())
	}
}

func TestAddProductSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.AddProductToCart(ctx, f.user, "p1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	p := f.products["p1"]
	p.Cost = decimal.NewFromInt(999)
	f.products["p1"] = p

	cart, err := f.svc.GetCartByUser(ctx, f.user)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !cart.Items[0].Product.Cost.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("snapshot cost changed: %s", cart.Items[0].Product.Cost)
	}
}

func TestAddProductUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddProductToCart(context.Background(), f.user, "nope", 1)
	assertKind(t, err, domain.KindInvalidRequest, msgNoProduct)
	if _, ok := f.carts.byEmail[f.user.Email]; ok {
		t.Fatalf("cart should not be created for unknown product")
	}
}

func TestAddProductDuplicateLeavesCartUnchanged(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 2), f.line("p2", 1))
	before := f.carts.byEmail[f.user.Email]

	_, err := f.svc.AddProductToCart(context.Background(), f.user, "p1", 5)
	assertKind(t, err, domain.KindInvalidRequest, msgDuplicate)

	after := f.carts.byEmail[f.user.Email]
	if after.Version != before.Version || !equalStrings(productIDs(&after), productIDs(&before)) {
		t.Fatalf("cart changed after duplicate add: %+v", after)
	}
	if after.Items[0].Quantity != 2 {
		t.Fatalf("quantity changed: %d", after.Items[0].Quantity)
	}
	if f.carts.saves != 0 {
		t.Fatalf("expected no saves, got %d", f.carts.saves)
	}
}

func TestProductIDSpellingsShareOneLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.AddProductToCart(ctx, f.user, watchID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := f.svc.AddProductToCart(ctx, f.user, strings.ToUpper(watchID), 2)
	assertKind(t, err, domain.KindInvalidRequest, msgDuplicate)
	stored := f.carts.byEmail[f.user.Email]
	if !equalStrings(productIDs(&stored), []string{watchID}) {
		t.Fatalf("expected a single line, got %v", productIDs(&stored))
	}

	cart, err := f.svc.UpdateProductInCart(ctx, f.user, "{"+strings.ToUpper(watchID)+"}", 4)
	if err != nil {
		t.Fatalf("update braced id: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 4 {
		t.Fatalf("unexpected items: %+v", cart.Items)
	}

	cart, err = f.svc.DeleteProductFromCart(ctx, f.user, "urn:uuid:"+watchID)
	if err != nil {
		t.Fatalf("delete urn id: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", cart.Items)
	}
	for _, ev := range f.pub.events {
		if ev.ProductID != "" && ev.ProductID != watchID {
			t.Fatalf("event %s carries non-canonical id %q", ev.Type, ev.ProductID)
		}
	}
}

func TestAddProductCreateFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.carts.createErr = errors.New("insert failed")
	_, err := f.svc.AddProductToCart(context.Background(), f.user, "p1", 1)
	assertKind(t, err, domain.KindInternal, "Failed to create cart")
}

func TestAddProductCreateRace(t *testing.T) {
	f := newFixture(t)
	f.carts.createErr = domain.ErrAlreadyExists
	_, err := f.svc.AddProductToCart(context.Background(), f.user, "p1", 1)
	assertKind(t, err, domain.KindConflict, msgConcurrent)
}

func TestUpdateProductInCart(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 1), f.line("p2", 1))

	cart, err := f.svc.UpdateProductInCart(context.Background(), f.user, "p2", 7)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cart.Items[1].Quantity != 7 || cart.Items[0].Quantity != 1 {
		t.Fatalf("unexpected items: %+v", cart.Items)
	}
	if !equalStrings(f.pub.types(), []string{events.CartItemUpdated}) {
		t.Fatalf("unexpected events: %v", f.pub.types())
	}
}

func TestUpdateProductWithoutCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateProductInCart(context.Background(), f.user, "p1", 2)
	assertKind(t, err, domain.KindInvalidRequest, msgNoCartForUpdate)
	if _, ok := f.carts.byEmail[f.user.Email]; ok {
		t.Fatalf("update must not create a cart")
	}
}

func TestUpdateProductNotInCart(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 1))
	_, err := f.svc.UpdateProductInCart(context.Background(), f.user, "p2", 2)
	assertKind(t, err, domain.KindInvalidRequest, msgNotInCart)
	if got := f.carts.byEmail[f.user.Email]; got.Items[0].Quantity != 1 || got.Version != 1 {
		t.Fatalf("cart changed: %+v", got)
	}
}

func TestUpdateProductVersionConflict(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 1))
	f.carts.saveErr = domain.ErrConflict
	_, err := f.svc.UpdateProductInCart(context.Background(), f.user, "p1", 4)
	assertKind(t, err, domain.KindConflict, msgConcurrent)
}

func TestDeleteProductPreservesOrder(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 1), f.line("p2", 2), f.line("p3", 3))

	cart, err := f.svc.DeleteProductFromCart(context.Background(), f.user, "p2")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !equalStrings(productIDs(cart), []string{"p1", "p3"}) {
		t.Fatalf("unexpected order: %v", productIDs(cart))
	}
	if cart.Items[1].Quantity != 3 {
		t.Fatalf("remaining line changed: %+v", cart.Items[1])
	}
	stored := f.carts.byEmail[f.user.Email]
	if !equalStrings(productIDs(&stored), []string{"p1", "p3"}) {
		t.Fatalf("stored cart not updated: %v", productIDs(&stored))
	}
}

func TestDeleteProductErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DeleteProductFromCart(context.Background(), f.user, "p1")
	assertKind(t, err, domain.KindInvalidRequest, msgNoCart)

	f.seedCart(f.line("p1", 1))
	_, err = f.svc.DeleteProductFromCart(context.Background(), f.user, "p2")
	assertKind(t, err, domain.KindInvalidRequest, msgNotInCart)
}

func TestCheckoutDebitsWalletAndEmptiesCart(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 2))

	user, err := f.svc.Checkout(context.Background(), f.user)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !user.WalletMoney.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected wallet 40, got %s", user.WalletMoney)
	}
	if stored := f.users.byID[f.user.ID]; !stored.WalletMoney.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("stored wallet not debited: %s", stored.WalletMoney)
	}
	cart, err := f.svc.GetCartByUser(context.Background(), f.user)
	if err != nil {
		t.Fatalf("cart should be retained: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", cart.Items)
	}
	if f.tx.calls != 1 {
		t.Fatalf("expected one transaction, got %d", f.tx.calls)
	}
	if len(f.pub.events) != 1 || f.pub.events[0].Type != events.CartCheckedOut || !f.pub.events[0].Total.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected events: %+v", f.pub.events)
	}
}

func TestCheckoutUsesSnapshotCosts(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 1), f.line("p3", 3))
	p := f.products["p1"]
	p.Cost = decimal.NewFromInt(80)
	f.products["p1"] = p

	user, err := f.svc.Checkout(context.Background(), f.user)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	// 100 - (30 + 3*9.99)
	if want := decimal.RequireFromString("40.03"); !user.WalletMoney.Equal(want) {
		t.Fatalf("expected wallet %s, got %s", want, user.WalletMoney)
	}
}

func TestCheckoutExactBalance(t *testing.T) {
	f := newFixture(t)
	f.user.WalletMoney = decimal.NewFromInt(60)
	f.users.byID[f.user.ID] = *f.user
	f.seedCart(f.line("p1", 2))

	user, err := f.svc.Checkout(context.Background(), f.user)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !user.WalletMoney.IsZero() {
		t.Fatalf("expected empty wallet, got %s", user.WalletMoney)
	}
}

func TestCheckoutFailuresLeaveStateUntouched(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(f *fixture)
		kind    domain.Kind
		message string
	}{
		{
			name:    "no cart",
			setup:   func(f *fixture) {},
			kind:    domain.KindNotFound,
			message: msgNoCart,
		},
		{
			name:    "empty cart",
			setup:   func(f *fixture) { f.seedCart() },
			kind:    domain.KindInvalidRequest,
			message: msgEmptyCart,
		},
		{
			name: "default address",
			setup: func(f *fixture) {
				f.seedCart(f.line("p1", 1))
				f.user.Address = domain.DefaultAddress
			},
			kind:    domain.KindInvalidRequest,
			message: msgNoAddress,
		},
		{
			name: "insufficient balance",
			setup: func(f *fixture) {
				f.seedCart(f.line("p1", 2))
				f.user.WalletMoney = decimal.NewFromInt(50)
				f.users.byID[f.user.ID] = *f.user
			},
			kind:    domain.KindInvalidRequest,
			message: msgLowBalance,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f)
			walletBefore := f.users.byID[f.user.ID].WalletMoney
			cartBefore, hadCart := f.carts.byEmail[f.user.Email]

			_, err := f.svc.Checkout(context.Background(), f.user)
			assertKind(t, err, tc.kind, tc.message)

			if f.users.saves != 0 || f.carts.saves != 0 {
				t.Fatalf("expected no writes, got users=%d carts=%d", f.users.saves, f.carts.saves)
			}
			if got := f.users.byID[f.user.ID].WalletMoney; !got.Equal(walletBefore) {
				t.Fatalf("wallet changed from %s to %s", walletBefore, got)
			}
			cartAfter, hasCart := f.carts.byEmail[f.user.Email]
			if hadCart != hasCart || len(cartAfter.Items) != len(cartBefore.Items) {
				t.Fatalf("cart changed: before=%+v after=%+v", cartBefore, cartAfter)
			}
			if len(f.pub.events) != 0 {
				t.Fatalf("no event expected on failure, got %v", f.pub.types())
			}
		})
	}
}

func TestCheckoutCheckOrder(t *testing.T) {
	// Empty cart, default address and no money: the empty cart is reported first.
	f := newFixture(t)
	f.seedCart()
	f.user.Address = domain.DefaultAddress
	f.user.WalletMoney = decimal.Zero
	_, err := f.svc.Checkout(context.Background(), f.user)
	assertKind(t, err, domain.KindInvalidRequest, msgEmptyCart)

	// Address is checked before balance.
	f = newFixture(t)
	f.seedCart(f.line("p1", 10))
	f.user.Address = ""
	_, err = f.svc.Checkout(context.Background(), f.user)
	assertKind(t, err, domain.KindInvalidRequest, msgNoAddress)
}

func TestCheckoutRollsBackWhenCartSaveFails(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 2))
	f.carts.saveErr = errors.New("write failed")

	_, err := f.svc.Checkout(context.Background(), f.user)
	assertKind(t, err, domain.KindInternal, "")

	if got := f.users.byID[f.user.ID].WalletMoney; !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("wallet should be restored, got %s", got)
	}
	if got := f.carts.byEmail[f.user.Email]; len(got.Items) != 1 {
		t.Fatalf("cart should keep its items, got %+v", got.Items)
	}
}

func TestCheckoutStaleUser(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 1))
	stale := *f.user
	stale.Version = 0

	_, err := f.svc.Checkout(context.Background(), &stale)
	assertKind(t, err, domain.KindConflict, "")
	if f.carts.saves != 0 {
		t.Fatalf("cart must not be cleared after a failed debit")
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	if _, err := f.svc.AddProductToCart(context.Background(), f.user, "p1", 1); err != nil {
		t.Fatalf("add should succeed without broker: %v", err)
	}
}

func TestEventsSurviveCancelledRequest(t *testing.T) {
	f := newFixture(t)
	f.seedCart(f.line("p1", 1))
	ctx, cancel := context.WithCancel(context.Background())
	f.carts.cancelOnSave = cancel

	if _, err := f.svc.UpdateProductInCart(ctx, f.user, "p1", 3); err != nil {
		t.Fatalf("update: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatalf("request context should be cancelled")
	}
	if !equalStrings(f.pub.types(), []string{events.CartItemUpdated}) {
		t.Fatalf("event dropped after cancellation: %v", f.pub.types())
	}
}

func TestNewFillsDefaults(t *testing.T) {
	f := newFixture(t)
	svc := New(Deps{Carts: f.carts, Products: f.products, Users: f.users}, "PAYMENT_OPTION_DEFAULT")
	f.seedCart(f.line("p1", 1))
	if _, err := svc.Checkout(context.Background(), f.user); err != nil {
		t.Fatalf("checkout without tx runner: %v", err)
	}
}
