package httpserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"qkart-backend/internal/domain"
	authsvc "qkart-backend/internal/service/auth"
	usersvc "qkart-backend/internal/service/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthService interface {
	Register(ctx context.Context, in usersvc.CreateInput) (*domain.User, authsvc.Tokens, error)
	Login(ctx context.Context, email, password string) (*domain.User, authsvc.Tokens, error)
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

type UserService interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetAddressByID(ctx context.Context, id string) (*domain.UserAddress, error)
	SetAddress(ctx context.Context, u *domain.User, address string) (string, error)
}

type ProductService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type CategoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
}

type CartService interface {
	GetCartByUser(ctx context.Context, user *domain.User) (*domain.Cart, error)
	AddProductToCart(ctx context.Context, user *domain.User, productID string, quantity int) (*domain.Cart, error)
	UpdateProductInCart(ctx context.Context, user *domain.User, productID string, quantity int) (*domain.Cart, error)
	DeleteProductFromCart(ctx context.Context, user *domain.User, productID string) (*domain.Cart, error)
	Checkout(ctx context.Context, user *domain.User) (*domain.User, error)
}

// Deps are the services the HTTP API is built on.
type Deps struct {
	AuthSvc     AuthService
	UserSvc     UserService
	ProductSvc  ProductService
	CategorySvc CategoryService
	CartSvc     CartService
}

func (d Deps) validate() error {
	switch {
	case d.AuthSvc == nil:
		return fmt.Errorf("auth service required")
	case d.UserSvc == nil:
		return fmt.Errorf("user service required")
	case d.ProductSvc == nil:
		return fmt.Errorf("product service required")
	case d.CategorySvc == nil:
		return fmt.Errorf("category service required")
	case d.CartSvc == nil:
		return fmt.Errorf("cart service required")
	}
	return nil
}

var registerValidations sync.Once

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps, allowedOrigins []string) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	var regErr error
	registerValidations.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			regErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		regErr = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return usersvc.ValidPassword(fl.Field().String())
		})
	})
	if regErr != nil {
		return nil, regErr
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery(), corsMiddleware(allowedOrigins))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handlers{deps: deps, logger: logger}
	requireUser := authMiddleware(deps.AuthSvc, logger)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)

	users := v1.Group("/users", requireUser)
	users.GET("/:userId", h.getUser)
	users.PUT("/:userId", h.setAddress)

	products := v1.Group("/products")
	products.GET("", h.listProducts)
	products.GET("/categories", h.listCategories)
	products.GET("/:productId", h.getProduct)

	cart := v1.Group("/cart", requireUser)
	cart.GET("", h.getCart)
	cart.POST("", h.addToCart)
	cart.PUT("", h.updateCart)
	cart.PUT("/checkout", h.checkout)

	router.NoRoute(func(c *gin.Context) {
		writeStatus(c, http.StatusNotFound, "Not found")
	})

	return router, nil
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}
