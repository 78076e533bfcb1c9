package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash - bcrypt хеш случайной строки. Используется при логине по
// несуществующему email: сравнение все равно выполняется, чтобы время
// ответа не выдавало существование аккаунта.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword создает bcrypt хеш пароля
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash проверяет пароль против хеша
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckDummyHash выполняет сравнение с фиктивным хешем.
// Результат всегда false; важен только потраченный на bcrypt такт.
func CheckDummyHash(password string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
	return false
}

// ValidatePassword проверяет сложность пароля
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	return nil
}
