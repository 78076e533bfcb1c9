package models

import "time"

// WatchlistEntry - позиция в watchlist пользователя.
// (user, symbol) уникальна; количество строк на пользователя сверяется
// с лимитом тарифа в Quota Gate.
type WatchlistEntry struct {
	BaseModel
	UserID     string `gorm:"not null;index;uniqueIndex:ux_watchlist_user_symbol,priority:1"`
	Symbol     string `gorm:"not null;uniqueIndex:ux_watchlist_user_symbol,priority:2"` // нормализованный uppercase тикер/ISIN
	AlertAbove *float64
	AlertBelow *float64
	Notes      string
	AddedAt    time.Time `gorm:"not null"`
}
