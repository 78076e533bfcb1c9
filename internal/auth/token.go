package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"stockwatch_backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidAccessToken = errors.New("invalid access token")

// Claims - утверждения access assertion: идентичность плюс снапшот тарифа.
// Снапшот тарифа может устареть относительно Tier Ledger; решения о квотах
// ему не доверяют и всегда перечитывают ledger.
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"uid"`
	Tier   models.Tier `json:"tier"`
}

// GenerateAccessToken выпускает короткоживущую подписанную access assertion
func GenerateAccessToken(userID string, tier models.Tier, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Tier:   tier,
	})

	return token.SignedString(secret)
}

// ParseAccessToken проверяет подпись и срок действия access assertion
func ParseAccessToken(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidAccessToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}

// GenerateOpaqueToken генерирует сырое значение для refresh/one-time токенов
func GenerateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken возвращает SHA-256 хеш сырого токена. В БД попадает только хеш;
// поиск по точному совпадению хеша не дает timing-канала по содержимому.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
