package apperrors

import (
	"net/http"
)

/*
Этот файл содержит фабрики и предопределенные переменные
для доменных ошибок: учетные данные, сессии, тарифы, квоты.
*/

// =========================================================================
// Фабричные ФУНКЦИИ (оборачивание ошибок репозитория)
// =========================================================================

// ErrNotFound - фабрика для ошибки "не найдено" (404)
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrAlreadyExists - фабрика для ошибки "уже существует" (409)
func ErrAlreadyExists(err error) *AppError {
	return Wrap(err, CodeAlreadyExists, "resource", "Resource already exists", http.StatusConflict)
}

// ErrConflict - общая фабрика для конфликтов (409)
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// =========================================================================
// Учетные данные и сессии
// =========================================================================

// ErrInvalidCredentials - неверный email или пароль.
// Единственный ответ на оба случая: "нет такого пользователя" и
// "неверный пароль" снаружи неразличимы.
var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusUnauthorized,
)

// ErrTokenExpired - срок действия credential истек
var ErrTokenExpired = New(
	CodeTokenExpired,
	"auth",
	"Credential has expired",
	http.StatusUnauthorized,
)

// ErrTokenRevoked - credential был отозван (logout, смена пароля)
var ErrTokenRevoked = New(
	CodeTokenRevoked,
	"auth",
	"Credential has been revoked",
	http.StatusUnauthorized,
)

// ErrTokenReused - отозванный refresh credential предъявлен повторно.
// Сигнал возможной компрометации: все сессии пользователя отзываются.
var ErrTokenReused = New(
	CodeTokenReused,
	"auth",
	"Credential reuse detected, all sessions revoked",
	http.StatusUnauthorized,
)

// ErrInvalidToken - токен не найден или не прошел проверку
var ErrInvalidToken = New(
	CodeUnauthorized,
	"auth",
	"Invalid or unknown token",
	http.StatusUnauthorized,
)

// ErrEmailAlreadyExists - email уже зарегистрирован
var ErrEmailAlreadyExists = New(
	CodeAlreadyExists,
	"auth",
	"Email already exists",
	http.StatusConflict,
)

// ErrWeakPassword - пароль не проходит минимальные требования
var ErrWeakPassword = New(
	CodeValidationFailed,
	"auth",
	"Password is too weak",
	http.StatusBadRequest,
)

// ErrUserNotVerified - email пользователя не подтвержден
var ErrUserNotVerified = New(
	CodeForbidden,
	"auth",
	"User not verified",
	http.StatusForbidden,
)

// ErrUserDeactivated - учетная запись деактивирована
var ErrUserDeactivated = New(
	CodeForbidden,
	"auth",
	"User account is deactivated",
	http.StatusForbidden,
)

// =========================================================================
// Тарифы и биллинг
// =========================================================================

// ErrTransitionRejected - фабрика: переход тарифа отклонен (reason в details)
func ErrTransitionRejected(reason string) *AppError {
	httpCode := http.StatusConflict
	if reason == "payment_required" {
		httpCode = http.StatusPaymentRequired
	}
	return New(CodeTransitionRejected, "tier", "Tier transition rejected", httpCode).
		WithDetails(map[string]string{"reason": reason})
}

// ErrWebhookVerification - событие биллинг-провайдера не прошло проверку подписи.
// Сообщение намеренно общее: отправитель не должен узнать, что именно не так.
var ErrWebhookVerification = New(
	CodeWebhookRejected,
	"billing",
	"Event rejected",
	http.StatusBadRequest,
)

// ErrUnknownPlan - запрошенный план не найден в каталоге
var ErrUnknownPlan = New(
	CodeNotFound,
	"billing",
	"Unknown subscription plan",
	http.StatusNotFound,
)

// =========================================================================
// Квоты
// =========================================================================

// ErrQuotaExceeded - фабрика: действие превышает лимит текущего тарифа.
// Лимит отдается в details, чтобы клиент мог показать upgrade-подсказку.
func ErrQuotaExceeded(limit int) *AppError {
	return New(CodeLimitExceeded, "quota", "Tier quota exceeded", http.StatusForbidden).
		WithDetails(map[string]int{"limit": limit})
}

// ErrSymbolAlreadyWatched - (user, symbol) уже есть в watchlist
var ErrSymbolAlreadyWatched = New(
	CodeAlreadyExists,
	"watchlist",
	"Symbol is already in the watchlist",
	http.StatusConflict,
)
