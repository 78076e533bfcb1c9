package models

import "time"

// RefreshCredential - долгоживущий bearer handle для обновления сессии.
// Хранится только SHA-256 хеш, сырое значение отдается клиенту один раз.
type RefreshCredential struct {
	BaseModel
	UserID    string    `gorm:"not null;index"`
	TokenHash string    `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	Revoked   bool      `gorm:"default:false"` // one-way: назад в valid не возвращается
	RevokedAt *time.Time

	// Метаданные клиента для аудита
	UserAgent string
	ClientIP  string
}

// Valid сообщает, пригоден ли credential на момент now
func (rc *RefreshCredential) Valid(now time.Time) bool {
	return !rc.Revoked && now.Before(rc.ExpiresAt)
}

// OneTimeToken - одноразовый токен (сброс пароля, подтверждение email).
// Used - монотонный one-way переход; истекший ИЛИ использованный токен
// невалиден навсегда, независимо от того, что наступило раньше.
type OneTimeToken struct {
	BaseModel
	UserID    string       `gorm:"not null;index"`
	Purpose   TokenPurpose `gorm:"type:varchar(30);not null;index"`
	TokenHash string       `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"not null"`
	Used      bool         `gorm:"default:false"`
	UsedAt    *time.Time
}

// Valid сообщает, пригоден ли токен на момент now
func (t *OneTimeToken) Valid(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
