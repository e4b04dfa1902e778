package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kelsos/keeper-sync/internal/account"
	"github.com/kelsos/keeper-sync/internal/models"
	"github.com/kelsos/keeper-sync/internal/notify"
	"github.com/kelsos/keeper-sync/internal/services"
)

type Handler struct {
	store         *account.Store
	dapp          *services.DappService
	notifications *notify.Hub
}

func NewHandler(store *account.Store, dapp *services.DappService, notifications *notify.Hub) *Handler {
	return &Handler{
		store:         store,
		dapp:          dapp,
		notifications: notifications,
	}
}

type CallRequest struct {
	Args    []models.ArgumentInput `json:"args"`
	Payment []models.Payment       `json:"payment"`
}

type CallResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Landing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":  "keeper-sync",
		"state": h.store.Snapshot(),
	})
}

func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot())
}

func (h *Handler) Notifications(c *gin.Context) {
	c.JSON(http.StatusOK, h.notifications.Recent())
}

// Dapp renders the callable surface of the contract named by the path.
func (h *Handler) Dapp(c *gin.Context) {
	view := h.dapp.LoadDapp(c.Request.Context(), c.Param("address"))
	if view.IsFailed {
		c.JSON(http.StatusNotFound, view)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Call(c *gin.Context) {
	var req CallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id, err := h.dapp.CallCallableFunction(c.Request.Context(), c.Param("address"), c.Param("function"), req.Args, req.Payment)
	if err != nil {
		c.JSON(statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, CallResponse{ID: id})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrKeeperUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrIncorrectBase58), errors.Is(err, services.ErrInvalidPayment):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
