// Package sms delivers short text messages through Twilio.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/logger"
)

// ErrNotConfigured is returned when Twilio credentials are absent.
var ErrNotConfigured = errors.New("sms delivery not configured")

// Sender sends a text message to a phone number in E.164 form.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type messageAPI interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioSender is the production Sender.
type TwilioSender struct {
	api  messageAPI
	from string
	logg *logger.Logger
}

// NewSender returns a Twilio-backed sender, or a Noop sender when credentials
// are missing so callers never need to branch on configuration.
func NewSender(cfg config.TwilioConfig, logg *logger.Logger) Sender {
	if !cfg.Enabled() {
		return Noop{}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: strings.TrimSpace(cfg.AccountSID),
		Password: strings.TrimSpace(cfg.AuthToken),
	})
	return &TwilioSender{
		api:  client.Api,
		from: strings.TrimSpace(cfg.FromNumber),
		logg: logg,
	}
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("sms recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if s.logg != nil && msg != nil && msg.Sid != nil {
		s.logg.Debug(s.logg.WithField(ctx, "sms_sid", *msg.Sid), "sms sent")
	}
	return nil
}

// Noop drops every message.
type Noop struct{}

func (Noop) Send(context.Context, string, string) error {
	return ErrNotConfigured
}
