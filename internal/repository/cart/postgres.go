package cart

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"

	"qkart-backend/internal/db"
	"qkart-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cartColumns = `id::text, email, items, payment_option, version, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) GetByEmail(ctx context.Context, email string) (*domain.Cart, error) {
	q := `SELECT ` + cartColumns + ` FROM carts WHERE lower(email) = lower($1) LIMIT 1`
	return r.scanCart(db.Conn(ctx, r.pool).QueryRow(ctx, q, email))
}

func (r *postgresRepo) Create(ctx context.Context, cart domain.Cart) (*domain.Cart, error) {
	itemsJSON, err := encodeItems(cart.Items)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO carts (email, items, payment_option)
VALUES ($1, $2, $3)
RETURNING ` + cartColumns
	out, err := r.scanCart(db.Conn(ctx, r.pool).QueryRow(ctx, q, strings.ToLower(cart.Email), itemsJSON, cart.PaymentOption))
	if err != nil {
		r.logger.Printf("cart repo: create email=%s error=%v", cart.Email, err)
		return nil, err
	}
	r.logger.Printf("cart repo: created id=%s email=%s", out.ID, out.Email)
	return out, nil
}

func (r *postgresRepo) Save(ctx context.Context, cart domain.Cart) (*domain.Cart, error) {
	itemsJSON, err := encodeItems(cart.Items)
	if err != nil {
		return nil, err
	}
	const q = `
UPDATE carts
SET items = $1,
    payment_option = $2,
    version = version + 1,
    updated_at = now()
WHERE id = $3 AND version = $4
RETURNING ` + cartColumns
	out, err := r.scanCart(db.Conn(ctx, r.pool).QueryRow(ctx, q, itemsJSON, cart.PaymentOption, cart.ID, cart.Version))
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.Printf("cart repo: save id=%s version=%d conflict", cart.ID, cart.Version)
		return nil, domain.ErrConflict
	}
	if err != nil {
		r.logger.Printf("cart repo: save id=%s error=%v", cart.ID, err)
		return nil, err
	}
	r.logger.Printf("cart repo: saved id=%s lines=%d version=%d", out.ID, len(out.Items), out.Version)
	return out, nil
}

func (r *postgresRepo) scanCart(row pgx.Row) (*domain.Cart, error) {
	var c domain.Cart
	var itemsJSON []byte
	err := row.Scan(
		&c.ID,
		&c.Email,
		&itemsJSON,
		&c.PaymentOption,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	c.Items = []domain.CartItem{}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
			r.logger.Printf("cart repo: decode items id=%s err=%v", c.ID, err)
			return nil, err
		}
	}
	return &c, nil
}

func encodeItems(items []domain.CartItem) ([]byte, error) {
	if items == nil {
		items = []domain.CartItem{}
	}
	return json.Marshal(items)
}
