package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sender delivers rendered messages to one customer.
type Sender interface {
	SendEmail(ctx context.Context, toEmail, toName, subject, body string) error
	SendSMS(ctx context.Context, toNumber, body string) error
}

type SenderConfig struct {
	SendgridAPIKey   string
	FromEmail        string
	FromName         string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// ProviderSender sends email through SendGrid and SMS through Twilio. A channel
// without credentials is skipped with a warning.
type ProviderSender struct {
	cfg    SenderConfig
	email  *sendgrid.Client
	sms    *twilio.RestClient
	logger *zap.Logger
}

func NewProviderSender(cfg SenderConfig, logger *zap.Logger) *ProviderSender {
	s := &ProviderSender{cfg: cfg, logger: logger}
	if cfg.SendgridAPIKey != "" && cfg.FromEmail != "" {
		s.email = sendgrid.NewSendClient(cfg.SendgridAPIKey)
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		s.sms = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   cfg.TwilioAccountSID,
			Password:   cfg.TwilioAuthToken,
			AccountSid: cfg.TwilioAccountSID,
		})
	}
	return s
}

func (s *ProviderSender) SendEmail(ctx context.Context, toEmail, toName, subject, body string) error {
	if s.email == nil {
		s.logger.Warn("sendgrid not configured, email skipped", zap.String("to", toEmail))
		return nil
	}
	from := mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail)
	to := mail.NewEmail(toName, strings.TrimSpace(toEmail))
	message := mail.NewSingleEmail(from, subject, to, body, strings.ReplaceAll(body, "\n", "<br>"))

	response, err := s.email.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", toEmail, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	s.logger.Debug("email sent", zap.String("to", toEmail), zap.String("subject", subject))
	return nil
}

func (s *ProviderSender) SendSMS(ctx context.Context, toNumber, body string) error {
	if s.sms == nil {
		s.logger.Warn("twilio not configured, sms skipped", zap.String("to", toNumber))
		return nil
	}
	if !strings.HasPrefix(toNumber, "+") {
		s.logger.Warn("destination number is not E.164", zap.String("to", toNumber))
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(s.cfg.TwilioFromNumber)
	params.SetBody(body)

	resp, err := s.sms.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send to %s: %w", toNumber, err)
	}
	if resp != nil && resp.Sid != nil {
		s.logger.Debug("sms sent", zap.String("to", toNumber), zap.String("sid", *resp.Sid))
	}
	return nil
}

// Deliver renders ev and sends it over every channel the customer gave us.
func Deliver(ctx context.Context, sender Sender, ev Event) error {
	msg := Compose(ev)
	var errs error
	if ev.GuestEmail != "" {
		errs = multierr.Append(errs, sender.SendEmail(ctx, ev.GuestEmail, ev.GuestName, msg.Subject, msg.Body))
	}
	if ev.GuestPhone != "" {
		errs = multierr.Append(errs, sender.SendSMS(ctx, ev.GuestPhone, msg.SMS))
	}
	if errs != nil {
		return fmt.Errorf("deliver %s for reservation %s: %w", ev.Kind, ev.ReservationID, errs)
	}
	return nil
}
