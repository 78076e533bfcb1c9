package app

// NoopEmailProvider используется, когда SMTP не сконфигурирован,
// и в тестах.
type NoopEmailProvider struct{}

func (m *NoopEmailProvider) SendVerification(to string, token string) error  { return nil }
func (m *NoopEmailProvider) SendPasswordReset(to string, token string) error { return nil }
