package handlers

import (
	"io"
	"net/http"

	"stockwatch_backend/internal/logger"
	"stockwatch_backend/internal/services"
	"stockwatch_backend/internal/services/dto"
	"stockwatch_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Заголовок с HMAC-подписью тела webhook-запроса
const webhookSignatureHeader = "X-Webhook-Signature"

type SubscriptionHandler struct {
	*BaseHandler
	tierService    services.TierService
	billingService services.BillingService
}

func NewSubscriptionHandler(base *BaseHandler, tierService services.TierService, billingService services.BillingService) *SubscriptionHandler {
	return &SubscriptionHandler{
		BaseHandler:    base,
		tierService:    tierService,
		billingService: billingService,
	}
}

// RegisterRoutes - публичные маршруты: каталог планов и endpoint
// провайдера платежей (аутентифицируется подписью, не сессией)
func (h *SubscriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/plans", h.ListPlans)
	rg.POST("/billing/webhook", h.BillingWebhook)
}

// RegisterProtectedRoutes - маршруты за AuthMiddleware
func (h *SubscriptionHandler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	sub := rg.Group("/subscription")
	{
		sub.GET("", h.GetTier)
		sub.GET("/history", h.History)
		sub.POST("/upgrade", h.Upgrade)
		sub.POST("/downgrade", h.Downgrade)
	}
}

func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	db := h.GetDB(c)

	plans, err := h.tierService.ListPlans(db)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (h *SubscriptionHandler) GetTier(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	db := h.GetDB(c)

	info, err := h.tierService.CurrentTier(db, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (h *SubscriptionHandler) History(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	limit := ParseQueryInt(c, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	db := h.GetDB(c)

	events, err := h.tierService.History(db, userID, limit)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *SubscriptionHandler) Upgrade(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UpgradeRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	db := h.GetDB(c)

	result, err := h.tierService.Upgrade(db, userID, req.PlanCode)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.respondTransition(c, db, userID, result)
}

func (h *SubscriptionHandler) Downgrade(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	db := h.GetDB(c)

	result, err := h.tierService.Downgrade(db, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.respondTransition(c, db, userID, result)
}

// respondTransition переводит исход перехода в HTTP-ответ.
// Rejected отдается ошибкой, Duplicate - успехом (идемпотентный повтор).
func (h *SubscriptionHandler) respondTransition(c *gin.Context, db *gorm.DB, userID string, result *services.TransitionResult) {
	if result.Status == services.TransitionRejected {
		h.HandleServiceError(c, apperrors.ErrTransitionRejected(result.Reason))
		return
	}

	info, err := h.tierService.CurrentTier(db, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": result.Status,
		"tier":   info,
	})
}

// BillingWebhook принимает события платежного провайдера.
// 200 означает "доставлено, не ретраить" - в том числе для дублей,
// устаревших и неизвестных событий.
func (h *SubscriptionHandler) BillingWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.CtxWithError(c.Request.Context(), "failed to read webhook body", err)
		apperrors.HandleError(c, apperrors.ErrWebhookVerification)
		return
	}

	db := h.GetDB(c)

	if err := h.billingService.HandleEvent(db, payload, c.GetHeader(webhookSignatureHeader)); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
