package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "mlm-compensation-backend/internal/common/errors"
	"mlm-compensation-backend/internal/common/middleware"
	"mlm-compensation-backend/internal/features/wallet/models"
	"mlm-compensation-backend/internal/features/wallet/service"
)

type WalletHandler struct {
	service service.WalletService
}

func NewWalletHandler(service service.WalletService) *WalletHandler {
	return &WalletHandler{service: service}
}

func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	wallet := router.Group("/wallet", middleware.RequireAuth())
	{
		wallet.GET("", h.getWallet)
		wallet.POST("/fund-requests", h.requestFunds)
	}

	admin := router.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/fund-requests", h.listRequests)
		admin.POST("/fund-requests/:id/review", h.reviewRequest)
		admin.POST("/wallet/credit", h.addBalance)
	}
}

func (h *WalletHandler) getWallet(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	details, err := h.service.Wallet(c.Request.Context(), actor.MemberID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *WalletHandler) requestFunds(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	var req models.RequestFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.Wrap(apperrors.ErrCodeValidation, "Invalid request body", err))
		return
	}

	fundReq, err := h.service.RequestFunds(c.Request.Context(), actor.MemberID, &req)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, fundReq)
}

func (h *WalletHandler) listRequests(c *gin.Context) {
	status := models.RequestStatus(c.Query("status"))
	requests, err := h.service.ListRequests(c.Request.Context(), status)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *WalletHandler) reviewRequest(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	var req models.ReviewRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.Wrap(apperrors.ErrCodeValidation, "Invalid request body", err))
		return
	}

	fundReq, err := h.service.ReviewRequest(c.Request.Context(), actor.MemberID, c.Param("id"), &req)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, fundReq)
}

func (h *WalletHandler) addBalance(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	var req models.AddBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.Wrap(apperrors.ErrCodeValidation, "Invalid request body", err))
		return
	}

	entry, err := h.service.AddBalance(c.Request.Context(), actor.MemberID, &req)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}
