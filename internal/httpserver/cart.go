package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// updateCartRequest uses a pointer so an explicit 0 passes "required" and means delete.
type updateCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  *int   `json:"quantity" binding:"required,min=0"`
}

func (h *handlers) getCart(c *gin.Context) {
	cart, err := h.deps.CartSvc.GetCartByUser(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *handlers) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	cart, err := h.deps.CartSvc.AddProductToCart(c.Request.Context(), currentUser(c), req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, cart)
}

// updateCart sets a line's quantity; quantity 0 removes the line.
func (h *handlers) updateCart(c *gin.Context) {
	var req updateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	user := currentUser(c)

	if *req.Quantity == 0 {
		if _, err := h.deps.CartSvc.DeleteProductFromCart(c.Request.Context(), user, req.ProductID); err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	cart, err := h.deps.CartSvc.UpdateProductInCart(c.Request.Context(), user, req.ProductID, *req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *handlers) checkout(c *gin.Context) {
	if _, err := h.deps.CartSvc.Checkout(c.Request.Context(), currentUser(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
