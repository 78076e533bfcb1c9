package email

import (
	"fmt"

	"stockwatch_backend/internal/config"

	"gopkg.in/gomail.v2"
)

// SMTPProvider реализует Provider через gomail
type SMTPProvider struct {
	cfg       *config.Config
	templates *templateSet
}

// NewSMTPProvider создает новый SMTP провайдер
func NewSMTPProvider(cfg *config.Config) (*SMTPProvider, error) {
	if cfg.Email.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}

	ts, err := newTemplateSet()
	if err != nil {
		return nil, err
	}

	return &SMTPProvider{cfg: cfg, templates: ts}, nil
}

// SendVerification отправляет письмо с токеном подтверждения email
func (p *SMTPProvider) SendVerification(to string, token string) error {
	body, err := p.templates.Render("verification", TemplateData{
		"VerifyURL": fmt.Sprintf("%s/verify-email?token=%s", p.cfg.Email.BaseURL, token),
	})
	if err != nil {
		return err
	}

	return p.send(to, "Подтверждение email", body)
}

// SendPasswordReset отправляет письмо со ссылкой для сброса пароля
func (p *SMTPProvider) SendPasswordReset(to string, token string) error {
	body, err := p.templates.Render("password_reset", TemplateData{
		"ResetURL": fmt.Sprintf("%s/reset-password?token=%s", p.cfg.Email.BaseURL, token),
	})
	if err != nil {
		return err
	}

	return p.send(to, "Сброс пароля", body)
}

func (p *SMTPProvider) send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", p.cfg.Email.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(
		p.cfg.Email.SMTPHost,
		p.cfg.Email.SMTPPort,
		p.cfg.Email.SMTPUsername,
		p.cfg.Email.SMTPPassword,
	)

	return d.DialAndSend(m)
}
