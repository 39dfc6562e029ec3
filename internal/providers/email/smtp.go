package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	templatesOnce sync.Once
	templates     *template.Template
	templatesErr  error
)

var ErrNoRecipients = errors.New("email_no_recipients")

// subjects holds the default subject per template; data["subject"] overrides it.
var subjects = map[string]string{
	"invoice_created":          "New invoice {{.number}}",
	"invoice_payment_reminder": "Invoice {{.number}} is due on {{.due_date}}",
	"invoice_first_overdue":    "Invoice {{.number}} is overdue",
	"invoice_second_overdue":   "Second notice: invoice {{.number}} is overdue",
	"invoice_third_overdue":    "Final notice: invoice {{.number}} is overdue",
	"ticket_auto_closed":       "Your ticket \"{{.subject_line}}\" was closed",
	"ticket_admin_reminder":    "Ticket \"{{.subject_line}}\" is waiting for a reply",
	"ticket_feedback":          "How did we do on \"{{.subject_line}}\"?",
	"license_expiry_first":     "Your license for {{.domain}} expires on {{.expires_at}}",
	"license_expiry_second":    "Reminder: your license for {{.domain}} expires on {{.expires_at}}",
	"license_expired":          "Your license for {{.domain}} has expired",
	"billing_run_summary":      "Billing run {{.status}} for {{.date}}",
	"billing_watchdog_alert":   "Billing watchdog: {{.condition}}",
}

func loadTemplates() (*template.Template, error) {
	templatesOnce.Do(func() {
		templates, templatesErr = template.ParseFS(templateFS, "templates/*.html")
	})
	return templates, templatesErr
}

// Render executes templateName and returns the subject and html body.
func Render(templateName string, data map[string]any) (Message, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return Message{}, fmt.Errorf("parse templates: %w", err)
	}
	if tmpl.Lookup(templateName+".html") == nil {
		return Message{}, fmt.Errorf("unknown email template %q", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, templateName+".html", data); err != nil {
		return Message{}, fmt.Errorf("execute template %s: %w", templateName, err)
	}

	subject, _ := data["subject"].(string)
	if subject == "" {
		subject, err = renderSubject(templateName, data)
		if err != nil {
			return Message{}, err
		}
	}
	return Message{Subject: subject, HTML: body.String()}, nil
}

type Message struct {
	Subject string
	HTML    string
}

func renderSubject(templateName string, data map[string]any) (string, error) {
	raw, ok := subjects[templateName]
	if !ok {
		return "Notification", nil
	}
	t, err := texttemplate.New("subject").Option("missingkey=zero").Parse(raw)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := t.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render subject %s: %w", templateName, err)
	}
	return out.String(), nil
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))

	return p.send(addr, auth, p.cfg.From, to, buildMessage(p.cfg.From, to, subject, htmlBody, p.now()))
}

func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	msg, err := Render(templateName, data)
	if err != nil {
		return err
	}
	return p.Send(ctx, to, msg.Subject, msg.HTML)
}

func buildMessage(from string, to []string, subject, htmlBody string, at time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + at.UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
