package validator

import (
	"log"
	"regexp"

	"stockwatch_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// Тикеры вида AAPL, BRK.B, RDS-A
var tickerPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9.\-]{0,9}$`)

// registerCustomRules регистрирует кастомные функции валидации в
// переданном экземпляре валидатора.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// Приложение с незарегистрированным правилом запускаться
			// не должно
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	// 'ticker': биржевой символ
	mustRegister("ticker", validateTicker)

	// 'is-tier': значение тарифа из закрытого набора
	mustRegister("is-tier", validateTier)
}

func validateTicker(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // пустые значения проверяет 'required'
	}
	return tickerPattern.MatchString(value)
}

func validateTier(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.ValidTier(models.Tier(value))
}
