package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Config holds SMTP settings for newsletter dispatch
type Config struct {
	SMTPServer string
	SMTPPort   int
	Username   string
	Password   string
	FromEmail  string
}

// Configured reports whether enough settings are present to send mail
func (c *Config) Configured() bool {
	return c.SMTPServer != "" && c.Username != "" && c.Password != "" && c.FromEmail != ""
}

// Data is one outbound newsletter
type Data struct {
	ToEmail string `json:"to_email"`
	ToName  string `json:"to_name"`
	Subject string `json:"subject"`
	Content string `json:"content"`
	Keyword string `json:"keyword"`
}

// Sender dispatches newsletter drafts over SMTP
type Sender struct {
	config *Config
	log    *logrus.Logger
}

// NewSender creates a sender; cfg may be incomplete, in which case Send fails
func NewSender(cfg *Config, log *logrus.Logger) *Sender {
	return &Sender{config: cfg, log: log}
}

const bodyTemplate = `<html>
<body style="font-family: sans-serif; max-width: 640px; margin: 0 auto;">
	<h2>Newsletter Draft: {{.Keyword}}</h2>
	<p>Hi {{.ToName}},</p>
	<div style="white-space: pre-wrap;">{{.Content}}</div>
	<hr>
	<p style="color: #888; font-size: 12px;">Generated by TopicScout on {{.Date}}</p>
</body>
</html>`

// SendNewsletter fires one SMTP send and reports success or failure. There is
// no retry; the caller decides whether to resubmit.
func (s *Sender) SendNewsletter(data Data) error {
	if !s.config.Configured() {
		return fmt.Errorf("email dispatch is not configured")
	}
	if !ValidateAddress(data.ToEmail) {
		return fmt.Errorf("invalid recipient address: %s", data.ToEmail)
	}

	if data.ToName == "" {
		data.ToName = "Subscriber"
	}
	subject := data.Subject
	if subject == "" {
		subject = fmt.Sprintf("Newsletter Draft: %s", data.Keyword)
	}

	body, err := s.renderBody(data)
	if err != nil {
		return fmt.Errorf("failed to render email body: %w", err)
	}

	msg := []byte(fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		data.ToEmail, s.config.FromEmail, subject, body))

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)

	if err := smtp.SendMail(addr, auth, s.config.FromEmail, []string{data.ToEmail}, msg); err != nil {
		return fmt.Errorf("failed to send newsletter: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"to":      data.ToEmail,
		"keyword": data.Keyword,
	}).Info("Newsletter sent")

	return nil
}

func (s *Sender) renderBody(data Data) (string, error) {
	tmpl, err := template.New("newsletter").Parse(bodyTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		Keyword string
		ToName  string
		Content string
		Date    string
	}{
		Keyword: data.Keyword,
		ToName:  data.ToName,
		Content: data.Content,
		Date:    time.Now().Format("Jan 2, 2006"),
	})
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// ValidateAddress checks an email address against the accepted shape
func ValidateAddress(addr string) bool {
	return emailPattern.MatchString(strings.TrimSpace(addr))
}
