// pkg/email/email.go
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/mrz1836/postmark"
)

var ErrFailedToSendEmail = errors.New("failed to send email")

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To       string
	Subject  string
	Tag      string
	HTMLBody string
}

type EmailService struct {
	sender    Sender
	appName   string
	templates *template.Template
	log       *slog.Logger
}

// Template data structures
type SubscriptionStartedData struct {
	AppName       string
	Name          string
	PlanName      string
	Price         string
	AnalysesLimit int
	CycleEnd      time.Time
	IsRenewal     bool
}

type SubscriptionCancelledData struct {
	AppName     string
	Name        string
	PlanName    string
	AccessUntil time.Time
}

type SubscriptionExpiryWarningData struct {
	AppName    string
	Name       string
	PlanName   string
	DaysLeft   int
	ExpiryDate time.Time
}

type PaymentFailedData struct {
	AppName  string
	Name     string
	PlanName string
	Reason   string
}

func NewEmailService(sender Sender, appName string, log *slog.Logger) (*EmailService, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender is required")
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %w", err)
	}

	return &EmailService{
		sender:    sender,
		appName:   appName,
		templates: templates,
		log:       log,
	}, nil
}

func (s *EmailService) sendTemplateEmail(ctx context.Context, to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	s.log.Debug("sending email", "to", to, "template", templateName)

	return s.sender.Send(ctx, Message{
		To:       to,
		Subject:  subject,
		Tag:      tagFor(templateName),
		HTMLBody: body.String(),
	})
}

func tagFor(templateName string) string {
	return strings.TrimSuffix(templateName, ".html")
}

func (s *EmailService) SendSubscriptionStartedEmail(ctx context.Context, to string, data SubscriptionStartedData) error {
	data.AppName = s.appName
	subject := fmt.Sprintf("Welcome to %s %s! 💪", s.appName, data.PlanName)
	if data.IsRenewal {
		subject = fmt.Sprintf("Your %s Subscription Has Been Renewed 🔄", s.appName)
	}
	return s.sendTemplateEmail(ctx, to, subject, "subscription_started.html", data)
}

func (s *EmailService) SendSubscriptionCancelledEmail(ctx context.Context, to string, data SubscriptionCancelledData) error {
	data.AppName = s.appName
	return s.sendTemplateEmail(ctx, to, "Your Subscription Has Been Cancelled", "subscription_cancelled.html", data)
}

func (s *EmailService) SendSubscriptionExpiryWarning(ctx context.Context, to string, data SubscriptionExpiryWarningData) error {
	data.AppName = s.appName
	return s.sendTemplateEmail(ctx, to,
		fmt.Sprintf("Your Subscription Expires in %d Days ⚠️", data.DaysLeft),
		"subscription_expiry_warning.html",
		data,
	)
}

func (s *EmailService) SendPaymentFailedEmail(ctx context.Context, to string, data PaymentFailedData) error {
	data.AppName = s.appName
	return s.sendTemplateEmail(ctx, to, "Your Payment Didn't Go Through", "payment_failed.html", data)
}

// PostmarkSender sends through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	from   string
}

func NewPostmarkSender(serverToken, accountToken, from string) (*PostmarkSender, error) {
	if serverToken == "" {
		return nil, fmt.Errorf("postmark server token is required")
	}
	if from == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	return &PostmarkSender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}, nil
}

func (p *PostmarkSender) Send(ctx context.Context, msg Message) error {
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:       p.from,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTMLBody,
		TrackOpens: true,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSendEmail, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

// LogSender records messages instead of delivering them. Used when no
// Postmark token is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (l *LogSender) Send(ctx context.Context, msg Message) error {
	l.log.Info("email not sent, delivery disabled", "to", msg.To, "subject", msg.Subject, "tag", msg.Tag)
	return nil
}
