package dto

import "time"

// AddWatchlistRequest - добавление символа в watchlist
type AddWatchlistRequest struct {
	Symbol     string   `json:"symbol" binding:"required" validate:"ticker"`
	AlertAbove *float64 `json:"alert_above,omitempty"`
	AlertBelow *float64 `json:"alert_below,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// UpdateWatchlistRequest - обновление алертов/заметок позиции
type UpdateWatchlistRequest struct {
	AlertAbove *float64 `json:"alert_above,omitempty"`
	AlertBelow *float64 `json:"alert_below,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}

// WatchlistEntryDTO - позиция watchlist в ответе API
type WatchlistEntryDTO struct {
	Symbol     string    `json:"symbol"`
	AlertAbove *float64  `json:"alert_above,omitempty"`
	AlertBelow *float64  `json:"alert_below,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}
