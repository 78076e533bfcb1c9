package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"stockwatch_backend/internal/middleware"
	"stockwatch_backend/internal/models"
	"stockwatch_backend/internal/services"
	"stockwatch_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type WatchlistHandler struct {
	*BaseHandler
	watchlistService services.WatchlistService
}

func NewWatchlistHandler(base *BaseHandler, watchlistService services.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{
		BaseHandler:      base,
		watchlistService: watchlistService,
	}
}

// RegisterRoutes - маршруты watchlist (за AuthMiddleware)
func (h *WatchlistHandler) RegisterRoutes(rg *gin.RouterGroup) {
	watchlist := rg.Group("/watchlist")
	{
		watchlist.GET("", h.List)
		watchlist.POST("", h.Add)
		watchlist.PATCH("/:symbol", h.Update)
		watchlist.DELETE("/:symbol", h.Remove)

		// Экспорт доступен только платным тарифам
		watchlist.GET("/export",
			middleware.RequireTier(models.TierPaid, models.TierEnterprise), h.Export)
	}
}

func (h *WatchlistHandler) List(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	db := h.GetDB(c)

	entries, err := h.watchlistService.List(db, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *WatchlistHandler) Add(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.AddWatchlistRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	db := h.GetDB(c)

	entry, err := h.watchlistService.Add(db, userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (h *WatchlistHandler) Update(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateWatchlistRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	db := h.GetDB(c)

	entry, err := h.watchlistService.Update(db, userID, c.Param("symbol"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// Export отдает watchlist в CSV
func (h *WatchlistHandler) Export(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	db := h.GetDB(c)

	entries, err := h.watchlistService.List(db, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="watchlist.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"symbol", "alert_above", "alert_below", "notes", "added_at"})
	for _, entry := range entries {
		_ = w.Write([]string{
			entry.Symbol,
			formatAlert(entry.AlertAbove),
			formatAlert(entry.AlertBelow),
			entry.Notes,
			entry.AddedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	w.Flush()
}

func formatAlert(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func (h *WatchlistHandler) Remove(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	db := h.GetDB(c)

	if err := h.watchlistService.Remove(db, userID, c.Param("symbol")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Symbol removed from watchlist"})
}
