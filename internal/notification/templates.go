package notification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"

	"github.com/linemk/toff-shop/internal/domain/models"
)

var ErrUnknownKind = errors.New("unknown notification kind")

// Message — готовое к отправке письмо
type Message struct {
	Subject string
	HTML    string
}

const layout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
<style>
body { margin: 0; padding: 0; background-color: #1F1F1F; font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; }
.container { max-width: 600px; margin: 40px auto; background-color: #242424; padding: 40px; border-radius: 8px; border: 1px solid #333; }
.logo { font-size: 24px; font-weight: bold; color: #EDEDED; letter-spacing: 2px; }
.content { color: #EDEDED; font-size: 16px; line-height: 1.6; }
.accent { color: #C08B5C; }
.footer { margin-top: 40px; padding-top: 20px; border-top: 1px solid #333; text-align: center; color: #6B7280; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<div style="text-align: center; margin-bottom: 30px;"><span class="logo">TOFF</span></div>
<div class="content">{{template "body" .}}</div>
<div class="footer"><p>Toff Mobilya Tasarım | İstanbul</p></div>
</div>
</body>
</html>{{end}}`

const orderConfirmationBody = `{{define "body"}}
<h2 style="margin-top: 0;">Siparişiniz alındı</h2>
<p>Merhaba <span class="accent">{{.FullName}}</span>,</p>
<p>#{{.OrderID}} numaralı siparişiniz onaylandı.</p>
<table style="width: 100%; color: #EDEDED;">
{{range .Items}}<tr><td>{{.Name}}</td><td>x{{.Quantity}}</td><td style="text-align: right;">{{.Price}} TL</td></tr>
{{end}}</table>
{{if ne .DiscountAmount "0.00"}}<p>İndirim: {{.DiscountAmount}} TL</p>{{end}}
<p><strong class="accent">Toplam: {{.TotalAmount}} TL</strong></p>
{{end}}`

const orderShippedBody = `{{define "body"}}
<h2 style="margin-top: 0;">Siparişiniz yola çıktı</h2>
<p>Merhaba <span class="accent">{{.FullName}}</span>,</p>
<p>#{{.OrderID}} numaralı siparişiniz kargoya verildi.</p>
<div style="background-color: #1F1F1F; padding: 15px; border-radius: 4px; border: 1px solid #333; margin: 20px 0;">
<p style="margin: 5px 0; color: #9CA3AF;">Takip numarası:</p>
<p style="margin: 0; font-size: 18px; font-weight: bold;">{{.TrackingNumber}}</p>
</div>
{{end}}`

const passwordResetBody = `{{define "body"}}
<h2 style="margin-top: 0;">Şifrenizi mi unuttunuz?</h2>
<p>Merhaba{{if .FullName}} <span class="accent">{{.FullName}}</span>{{end}},</p>
<p>Hesabınız için bir şifre sıfırlama talebi aldık. Bu işlemi siz yapmadıysanız bu e-postayı görmezden gelebilirsiniz.</p>
<p><a href="{{.ResetLink}}" style="display: inline-block; background-color: #C08B5C; color: #FFFFFF; padding: 12px 24px; text-decoration: none; border-radius: 4px; font-weight: bold;">Şifremi yenile</a></p>
<p style="font-size: 14px; color: #9CA3AF;">Link çalışmıyorsa: <a href="{{.ResetLink}}" style="color: #C08B5C;">{{.ResetLink}}</a></p>
{{end}}`

const contactFormBody = `{{define "body"}}
<h2 style="margin-top: 0;">Yeni iletişim mesajı</h2>
<p><strong class="accent">Gönderen:</strong> {{.Name}} ({{.Email}})</p>
<p><strong class="accent">Konu:</strong> {{.Subject}}</p>
<hr style="border: 0; border-top: 1px solid #333; margin: 20px 0;">
<p style="white-space: pre-line;">{{.Message}}</p>
{{end}}`

const contactResponseBody = `{{define "body"}}
<h2 style="margin-top: 0;">Mesajınızı aldık</h2>
<p>Merhaba <span class="accent">{{.Name}}</span>,</p>
<p>"{{.Subject}}" konulu mesajınız bize ulaştı. En kısa sürede size dönüş yapacağız.</p>
{{end}}`

var (
	orderConfirmationTmpl = newTemplate("order_confirmation", orderConfirmationBody)
	orderShippedTmpl      = newTemplate("order_shipped", orderShippedBody)
	passwordResetTmpl     = newTemplate("password_reset", passwordResetBody)
	contactFormTmpl       = newTemplate("contact_form", contactFormBody)
	contactResponseTmpl   = newTemplate("contact_response", contactResponseBody)
)

func newTemplate(name, body string) *template.Template {
	return template.Must(template.Must(template.New(name).Parse(layout)).Parse(body))
}

// Render собирает тему и HTML письма из данных outbox-записи
func Render(kind models.NotificationKind, data json.RawMessage) (*Message, error) {
	switch kind {
	case models.NotificationOrderConfirmation:
		var d OrderConfirmationData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", kind, err)
		}
		return execute(orderConfirmationTmpl, fmt.Sprintf("Siparişiniz alındı #%d", d.OrderID), d)
	case models.NotificationOrderShipped:
		var d OrderShippedData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", kind, err)
		}
		return execute(orderShippedTmpl, fmt.Sprintf("Siparişiniz kargoya verildi #%d", d.OrderID), d)
	case models.NotificationPasswordReset:
		var d PasswordResetData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", kind, err)
		}
		return execute(passwordResetTmpl, "Şifre sıfırlama talebi", d)
	case models.NotificationContactForm:
		var d ContactData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", kind, err)
		}
		return execute(contactFormTmpl, "İletişim formu: "+d.Subject, d)
	case models.NotificationContactResponse:
		var d ContactData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", kind, err)
		}
		return execute(contactResponseTmpl, "Mesajınızı aldık", d)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

func execute(t *template.Template, subject string, data any) (*Message, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, err
	}
	return &Message{Subject: subject, HTML: buf.String()}, nil
}
