package email

// Provider определяет интерфейс для отправки транзакционных писем
type Provider interface {
	// SendVerification отправляет письмо с токеном подтверждения email
	SendVerification(to string, token string) error

	// SendPasswordReset отправляет письмо со ссылкой для сброса пароля
	SendPasswordReset(to string, token string) error
}
