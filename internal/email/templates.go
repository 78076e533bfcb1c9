package email

import (
	"fmt"
	"html/template"
	"strings"
)

// Встроенные шаблоны писем. Директория с шаблонами не нужна:
// писем два, оба живут рядом с кодом.
var builtinTemplates = map[string]string{
	"verification": `
<h2>Подтверждение email</h2>
<p>Для подтверждения адреса перейдите по ссылке:</p>
<p><a href="{{.VerifyURL}}">{{.VerifyURL}}</a></p>
<p>Если вы не регистрировались - проигнорируйте это письмо.</p>`,

	"password_reset": `
<h2>Сброс пароля</h2>
<p>Для сброса пароля перейдите по ссылке:</p>
<p><a href="{{.ResetURL}}">{{.ResetURL}}</a></p>
<p>Ссылка действительна ограниченное время. Если вы не запрашивали сброс - проигнорируйте письмо.</p>`,
}

// TemplateData представляет данные для шаблонов писем
type TemplateData map[string]interface{}

type templateSet struct {
	templates map[string]*template.Template
}

func newTemplateSet() (*templateSet, error) {
	ts := &templateSet{templates: make(map[string]*template.Template)}
	for name, body := range builtinTemplates {
		tpl, err := template.New(name).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		ts.templates[name] = tpl
	}
	return ts, nil
}

// Render рендерит шаблон с данными
func (ts *templateSet) Render(name string, data TemplateData) (string, error) {
	tpl, ok := ts.templates[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}

	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
