package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"aiclub-bot/internal/infra/metrics"
)

// Client отправляет почту через SMTP с STARTTLS.
type Client struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewClient создаёт SMTP клиента.
func NewClient(host string, port int, username, password, from string) *Client {
	if port <= 0 {
		port = 587
	}
	return &Client{host: host, port: port, username: username, password: password, from: from}
}

// SendFiles отправляет одно письмо с вложенными файлами.
func (c *Client) SendFiles(ctx context.Context, to, subject, body string, paths []string) error {
	msg := gomail.NewMsg()
	if err := msg.From(c.from); err != nil {
		return fmt.Errorf("smtp: адрес отправителя: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("smtp: адрес получателя: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	for _, path := range paths {
		msg.AttachFile(path)
	}

	client, err := gomail.NewClient(c.host,
		gomail.WithPort(c.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(c.username),
		gomail.WithPassword(c.password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("smtp: создание клиента: %w", err)
	}

	start := time.Now()
	err = client.DialAndSendWithContext(ctx, msg)
	metrics.ObserveNetworkRequest("smtp", "send", c.host, start, err)
	if err != nil {
		return fmt.Errorf("smtp: отправка письма: %w", err)
	}
	return nil
}
