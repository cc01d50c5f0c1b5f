package user

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"qkart-backend/internal/db"
	"qkart-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const userColumns = `id::text, name, email, password_hash, wallet_money::text, address, version, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Create(ctx context.Context, u domain.User) (*domain.User, error) {
	address := u.Address
	if address == "" {
		address = domain.DefaultAddress
	}
	const q = `
INSERT INTO users (name, email, password_hash, wallet_money, address)
VALUES ($1, $2, $3, $4::numeric, $5)
RETURNING ` + userColumns
	out, err := r.scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		u.Name,
		strings.ToLower(u.Email),
		u.PasswordHash,
		u.WalletMoney.String(),
		address,
	))
	if err != nil {
		r.logger.Printf("user repo: create email=%s error=%v", u.Email, err)
		return nil, err
	}
	r.logger.Printf("user repo: created id=%s", out.ID)
	return out, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *postgresRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) LIMIT 1`
	return r.scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, q, email))
}

func (r *postgresRepo) Save(ctx context.Context, u domain.User) (*domain.User, error) {
	const q = `
UPDATE users
SET name = $1,
    wallet_money = $2::numeric,
    address = $3,
    version = version + 1,
    updated_at = now()
WHERE id = $4 AND version = $5
RETURNING ` + userColumns
	out, err := r.scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, q, u.Name, u.WalletMoney.String(), u.Address, u.ID, u.Version))
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.Printf("user repo: save id=%s version=%d conflict", u.ID, u.Version)
		return nil, domain.ErrConflict
	}
	if err != nil {
		r.logger.Printf("user repo: save id=%s error=%v", u.ID, err)
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var wallet string
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&wallet,
		&u.Address,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
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
	if u.WalletMoney, err = decimal.NewFromString(wallet); err != nil {
		r.logger.Printf("user repo: decode wallet id=%s err=%v", u.ID, err)
		return nil, err
	}
	return &u, nil
}
