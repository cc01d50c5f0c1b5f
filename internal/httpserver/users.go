package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const msgNotOwner = "User not authorized to access this resource"

type setAddressRequest struct {
	Address string `json:"address" binding:"required,min=20"`
}

type addressResponse struct {
	Address string `json:"address"`
}

// getUser returns the caller's record, or only its address with ?q=address.
func (h *handlers) getUser(c *gin.Context) {
	user := currentUser(c)
	id := c.Param("userId")
	if id != user.ID {
		writeStatus(c, http.StatusForbidden, msgNotOwner)
		return
	}

	if c.Query("q") == "address" {
		addr, err := h.deps.UserSvc.GetAddressByID(c.Request.Context(), id)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, addressResponse{Address: addr.Address})
		return
	}

	u, err := h.deps.UserSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handlers) setAddress(c *gin.Context) {
	user := currentUser(c)
	if c.Param("userId") != user.ID {
		writeStatus(c, http.StatusForbidden, msgNotOwner)
		return
	}
	var req setAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	addr, err := h.deps.UserSvc.SetAddress(c.Request.Context(), user, req.Address)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, addressResponse{Address: addr})
}
