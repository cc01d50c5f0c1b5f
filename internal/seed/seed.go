package seed

import (
	"context"
	"fmt"
	"io"
	"log"

	"qkart-backend/internal/domain"
	productrepo "qkart-backend/internal/repository/product"
	userrepo "qkart-backend/internal/repository/user"
	usersvc "qkart-backend/internal/service/user"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type productSeed struct {
	Name     string
	Category string
	Cost     string
	Rating   int
	Image    string
}

var demoProducts = []productSeed{
	{Name: "UNIFACTOR Mens Running Shoes", Category: "Fashion", Cost: "50", Rating: 5, Image: "https://static.qkart.example.com/products/running-shoes.png"},
	{Name: "YONEX Smash Badminton Racquet", Category: "Sports", Cost: "100", Rating: 5, Image: "https://static.qkart.example.com/products/badminton-racquet.png"},
	{Name: "Tan Leatherette Weekender Duffle", Category: "Fashion", Cost: "150", Rating: 4, Image: "https://static.qkart.example.com/products/weekender-duffle.png"},
	{Name: "The Minimalist Slim Leather Watch", Category: "Electronics", Cost: "60", Rating: 5, Image: "https://static.qkart.example.com/products/leather-watch.png"},
	{Name: "Atomberg 1400mm Ceiling Fan", Category: "Home & Kitchen", Cost: "78", Rating: 3, Image: "https://static.qkart.example.com/products/ceiling-fan.png"},
}

// DemoUser is the account created by Apply.
var DemoUser = usersvc.CreateInput{
	Name:     "crio-user",
	Email:    "crio-user@example.com",
	Password: "learnbydoing1",
}

// Apply inserts demo products and a demo user for manual testing. It is idempotent.
func Apply(ctx context.Context, pool *pgxpool.Pool, walletMoney decimal.Decimal, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	products := productrepo.NewPostgres(pool, logger)
	if err := seedProducts(ctx, products, logger); err != nil {
		return err
	}

	users := usersvc.New(userrepo.NewPostgres(pool, logger), walletMoney, logger)
	return seedUser(ctx, users, logger)
}

func seedProducts(ctx context.Context, repo productrepo.Repository, logger *log.Logger) error {
	for _, s := range demoProducts {
		cost, err := decimal.NewFromString(s.Cost)
		if err != nil {
			return fmt.Errorf("seed product %q cost: %w", s.Name, err)
		}
		p, err := repo.Upsert(ctx, domain.Product{
			Name:     s.Name,
			Category: s.Category,
			Cost:     cost,
			Rating:   s.Rating,
			Image:    s.Image,
		})
		if err != nil {
			return fmt.Errorf("upsert product %q: %w", s.Name, err)
		}
		logger.Printf("seed: product id=%s name=%q", p.ID, p.Name)
	}
	return nil
}

type userCreator interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, in usersvc.CreateInput) (*domain.User, error)
}

func seedUser(ctx context.Context, users userCreator, logger *log.Logger) error {
	if u, err := users.GetByEmail(ctx, DemoUser.Email); err == nil {
		logger.Printf("seed: user exists id=%s email=%s", u.ID, u.Email)
		return nil
	} else if domain.KindOf(err) != domain.KindNotFound {
		return fmt.Errorf("lookup demo user: %w", err)
	}
	u, err := users.Create(ctx, DemoUser)
	if err != nil {
		return fmt.Errorf("create demo user: %w", err)
	}
	logger.Printf("seed: user id=%s email=%s", u.ID, u.Email)
	return nil
}
