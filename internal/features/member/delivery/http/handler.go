package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "mlm-compensation-backend/internal/common/errors"
	"mlm-compensation-backend/internal/common/middleware"
	"mlm-compensation-backend/internal/features/member/models"
	"mlm-compensation-backend/internal/features/member/service"
)

type MemberHandler struct {
	service service.MemberService
}

func NewMemberHandler(service service.MemberService) *MemberHandler {
	return &MemberHandler{service: service}
}

func (h *MemberHandler) RegisterRoutes(router *gin.RouterGroup) {
	members := router.Group("/members")
	{
		members.POST("/register", h.register)

		me := members.Group("/me", middleware.RequireAuth())
		{
			me.GET("", h.getMe)
			me.GET("/genealogy", h.getMyGenealogy)
			me.GET("/team", h.getMyTeam)
			me.GET("/incomes", h.getMyIncomes)
		}
	}

	admin := router.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/members", h.list)
		admin.GET("/members/:id", h.getByID)
		admin.GET("/members/:id/genealogy", h.getGenealogy)
		admin.POST("/members/:id/deactivate", h.deactivate)
		admin.POST("/members/:id/resume", h.resume)
		admin.PUT("/members/:id/fighter-partner", h.setFighterPartner)
		admin.GET("/stats", h.stats)
	}
}

func (h *MemberHandler) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.Wrap(apperrors.ErrCodeValidation, "Invalid request body", err))
		return
	}

	resp, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *MemberHandler) getMe(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	member, err := h.service.GetMember(c.Request.Context(), actor.MemberID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *MemberHandler) getMyGenealogy(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	tree, err := h.service.Genealogy(c.Request.Context(), actor.MemberID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (h *MemberHandler) getMyTeam(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	team, err := h.service.Team(c.Request.Context(), actor.MemberID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *MemberHandler) getMyIncomes(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	kind := models.IncomeKind(c.Query("kind"))

	total, logs, err := h.service.IncomeLogs(c.Request.Context(), actor.MemberID, kind)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "logs": logs})
}

func (h *MemberHandler) list(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context())
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *MemberHandler) getByID(c *gin.Context) {
	member, err := h.service.GetMember(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *MemberHandler) getGenealogy(c *gin.Context) {
	tree, err := h.service.Genealogy(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (h *MemberHandler) deactivate(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.Wrap(apperrors.ErrCodeValidation, "Invalid request body", err))
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		middleware.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MemberHandler) resume(c *gin.Context) {
	if err := h.service.Resume(c.Request.Context(), c.Param("id")); err != nil {
		middleware.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MemberHandler) setFighterPartner(c *gin.Context) {
	var req struct {
		PartnerID string `json:"partner_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.Wrap(apperrors.ErrCodeValidation, "Invalid request body", err))
		return
	}

	if err := h.service.SetFighterPartner(c.Request.Context(), c.Param("id"), req.PartnerID); err != nil {
		middleware.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MemberHandler) stats(c *gin.Context) {
	stats, err := h.service.NetworkStats(c.Request.Context())
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
