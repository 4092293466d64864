package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "mlm-compensation-backend/internal/common/errors"
	"mlm-compensation-backend/internal/common/middleware"
	"mlm-compensation-backend/internal/features/activation/models"
	"mlm-compensation-backend/internal/features/activation/service"
)

type ActivationHandler struct {
	service service.ActivationService
}

func NewActivationHandler(service service.ActivationService) *ActivationHandler {
	return &ActivationHandler{service: service}
}

func (h *ActivationHandler) RegisterRoutes(router *gin.RouterGroup) {
	packages := router.Group("/packages", middleware.RequireAuth())
	{
		packages.POST("/purchase", h.purchase)
		packages.POST("/activate", h.activate)
	}

	transactions := router.Group("/transactions", middleware.RequireAuth())
	{
		transactions.GET("/me", h.getMyTransactions)
		transactions.GET("/:id", h.getByID)
	}

	admin := router.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/transactions", h.list)
		admin.GET("/transactions/stats", h.stats)
	}
}

// activate runs the full distribution, with the caller's wallet paying.
func (h *ActivationHandler) activate(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	var req models.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.Wrap(apperrors.ErrCodeValidation, "Invalid request body", err))
		return
	}

	resp, err := h.service.Activate(c.Request.Context(), actor.MemberID, &req)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ActivationHandler) purchase(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.Wrap(apperrors.ErrCodeValidation, "Invalid request body", err))
		return
	}

	txn, err := h.service.PurchasePackage(c.Request.Context(), actor.MemberID, &req)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (h *ActivationHandler) getMyTransactions(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	txns, err := h.service.MemberTransactions(c.Request.Context(), actor.MemberID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

// getByID returns one transaction; members may only read their own.
func (h *ActivationHandler) getByID(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	txn, err := h.service.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	if actor.Role != "admin" && txn.MemberID != actor.MemberID && txn.ActivatorID != actor.MemberID {
		middleware.Respond(c, apperrors.New(apperrors.ErrCodeForbidden, "Not your transaction"))
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *ActivationHandler) list(c *gin.Context) {
	txns, err := h.service.ListTransactions(c.Request.Context())
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (h *ActivationHandler) stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
