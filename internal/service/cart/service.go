package cart

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"qkart-backend/internal/domain"
	"qkart-backend/internal/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	msgNoCart          = "User does not have a cart"
	msgNoCartForUpdate = "User does not have a cart. Use POST to create cart and add a product"
	msgNoProduct       = "Product doesn't exist in database"
	msgDuplicate       = "Product already in cart. Use the cart sidebar to update or remove product from cart"
	msgNotInCart       = "Product not in cart"
	msgEmptyCart       = "User does not have items in the cart"
	msgNoAddress       = "Address not set"
	msgLowBalance      = "User does not have sufficient balance"
	msgConcurrent      = "Cart was modified by another request, please retry"
)

type cartRepo interface {
	GetByEmail(ctx context.Context, email string) (*domain.Cart, error)
	Create(ctx context.Context, cart domain.Cart) (*domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (*domain.Cart, error)
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type userRepo interface {
	Save(ctx context.Context, u domain.User) (*domain.User, error)
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Deps are the collaborators of the cart service. Tx, Events and Logger may be nil.
type Deps struct {
	Carts    cartRepo
	Products productRepo
	Users    userRepo
	Tx       txRunner
	Events   events.Publisher
	Logger   *log.Logger
}

// Service implements the cart and checkout workflow.
type Service struct {
	carts         cartRepo
	products      productRepo
	users         userRepo
	tx            txRunner
	events        events.Publisher
	logger        *log.Logger
	paymentOption string
}

// New creates a Service; new carts get defaultPaymentOption.
func New(deps Deps, defaultPaymentOption string) *Service {
	s := &Service{
		carts:         deps.Carts,
		products:      deps.Products,
		users:         deps.Users,
		tx:            deps.Tx,
		events:        deps.Events,
		logger:        deps.Logger,
		paymentOption: defaultPaymentOption,
	}
	if s.tx == nil {
		s.tx = noTx{}
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s
}

// GetCartByUser returns the cart of user.
func (s *Service) GetCartByUser(ctx context.Context, user *domain.User) (*domain.Cart, error) {
	cart, err := s.carts.GetByEmail(ctx, user.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(msgNoCart)
		}
		return nil, domain.Internal("failed to load cart", err)
	}
	return cart, nil
}

// AddProductToCart adds a new line for productID, creating the cart on first use.
func (s *Service) AddProductToCart(ctx context.Context, user *domain.User, productID string, quantity int) (*domain.Cart, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.InvalidRequest(msgNoProduct)
		}
		return nil, domain.Internal("failed to load product", err)
	}
	line := domain.CartItem{Product: product.Snapshot(), Quantity: quantity}

	cart, err := s.carts.GetByEmail(ctx, user.Email)
	if errors.Is(err, domain.ErrNotFound) {
		created, err := s.carts.Create(ctx, domain.Cart{
			Email:         user.Email,
			Items:         []domain.CartItem{line},
			PaymentOption: s.paymentOption,
		})
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return nil, domain.Conflict(msgConcurrent, err)
			}
			s.logger.Printf("cart service: create email=%s error=%v", user.Email, err)
			return nil, domain.Internal("Failed to create cart", err)
		}
		s.logger.Printf("cart service: created cart id=%s email=%s", created.ID, created.Email)
		s.publish(ctx, events.CartCreated, created, "", 0)
		s.publish(ctx, events.CartItemAdded, created, product.ID, quantity)
		return created, nil
	}
	if err != nil {
		return nil, domain.Internal("failed to load cart", err)
	}

	if cart.IndexOf(product.ID) >= 0 {
		return nil, domain.InvalidRequest(msgDuplicate)
	}

	next := cart.Clone()
	next.Items = append(next.Items, line)
	saved, err := s.save(ctx, next)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.CartItemAdded, saved, product.ID, quantity)
	return saved, nil
}

// UpdateProductInCart overwrites the quantity of the line holding productID.
// Quantity is not validated here; callers route non-positive values elsewhere.
func (s *Service) UpdateProductInCart(ctx context.Context, user *domain.User, productID string, quantity int) (*domain.Cart, error) {
	cart, idx, err := s.lineOf(ctx, user, productID, msgNoCartForUpdate)
	if err != nil {
		return nil, err
	}

	next := cart.Clone()
	next.Items[idx].Quantity = quantity
	saved, err := s.save(ctx, next)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.CartItemUpdated, saved, next.Items[idx].Product.ID, quantity)
	return saved, nil
}

// DeleteProductFromCart removes the line holding productID, keeping the order of the rest.
func (s *Service) DeleteProductFromCart(ctx context.Context, user *domain.User, productID string) (*domain.Cart, error) {
	cart, idx, err := s.lineOf(ctx, user, productID, msgNoCart)
	if err != nil {
		return nil, err
	}

	removed := cart.Items[idx].Product.ID
	next := cart.Clone()
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	saved, err := s.save(ctx, next)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.CartItemRemoved, saved, removed, 0)
	return saved, nil
}

// Checkout debits the cart total from the user's wallet and empties the cart.
// Checks run in order: cart exists, cart not empty, address set, balance sufficient.
// Both writes share one transaction. The debited user is returned.
func (s *Service) Checkout(ctx context.Context, user *domain.User) (*domain.User, error) {
	var (
		debited *domain.User
		emptied *domain.Cart
		total   = decimal.Zero
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cart, err := s.carts.GetByEmail(ctx, user.Email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NotFound(msgNoCart)
			}
			return domain.Internal("failed to load cart", err)
		}
		if len(cart.Items) == 0 {
			return domain.InvalidRequest(msgEmptyCart)
		}
		if !user.HasSetNonDefaultAddress() {
			return domain.InvalidRequest(msgNoAddress)
		}
		total = cart.Total()
		if total.GreaterThan(user.WalletMoney) {
			return domain.InvalidRequest(msgLowBalance)
		}

		next := *user
		next.WalletMoney = user.WalletMoney.Sub(total)
		debited, err = s.users.Save(ctx, next)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.Conflict("User was modified by another request, please retry", err)
			}
			return domain.Internal("failed to debit wallet", err)
		}

		clearing := cart.Clone()
		clearing.Items = []domain.CartItem{}
		emptied, err = s.save(ctx, clearing)
		return err
	})
	if err != nil {
		s.logger.Printf("cart service: checkout email=%s error=%v", user.Email, err)
		return nil, err
	}
	s.logger.Printf("cart service: checkout email=%s total=%s wallet=%s", user.Email, total, debited.WalletMoney)
	s.send(ctx, events.CartEvent{Type: events.CartCheckedOut, CartID: emptied.ID, Email: emptied.Email, Total: total})
	return debited, nil
}

func (s *Service) lineOf(ctx context.Context, user *domain.User, productID, noCartMsg string) (*domain.Cart, int, error) {
	cart, err := s.carts.GetByEmail(ctx, user.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, -1, domain.InvalidRequest(noCartMsg)
		}
		return nil, -1, domain.Internal("failed to load cart", err)
	}
	idx := cart.IndexOf(canonicalProductID(productID))
	if idx < 0 {
		return nil, -1, domain.InvalidRequest(msgNotInCart)
	}
	return cart, idx, nil
}

// canonicalProductID returns the lowercase hyphenated form stored in snapshots.
// Ids that are not UUIDs are returned unchanged.
func canonicalProductID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}

func (s *Service) save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	saved, err := s.carts.Save(ctx, *cart)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Conflict(msgConcurrent, err)
		}
		s.logger.Printf("cart service: save id=%s error=%v", cart.ID, err)
		return nil, domain.Internal("failed to save cart", err)
	}
	return saved, nil
}

func (s *Service) publish(ctx context.Context, kind string, cart *domain.Cart, productID string, quantity int) {
	s.send(ctx, events.CartEvent{
		Type:      kind,
		CartID:    cart.ID,
		Email:     cart.Email,
		ProductID: productID,
		Quantity:  quantity,
		Total:     cart.Total(),
	})
}

// send publishes ev after the mutation is stored. A cancelled request still publishes.
func (s *Service) send(ctx context.Context, ev events.CartEvent) {
	ev.OccurredAt = time.Now().UTC()
	if err := s.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Printf("cart service: publish type=%s cart_id=%s error=%v", ev.Type, ev.CartID, err)
	}
}

type noTx struct{}

func (noTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
