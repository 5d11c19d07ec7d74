package mailgate

import (
	"errors"
	"io"

	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog/log"

	pkgerrors "mailpanel/internal/pkg/errors"
	"mailpanel/internal/pkg/validator"
	"mailpanel/internal/platform/config"
)

// Backend hands each inbound SMTP connection its own session backed by the
// shared gatekeeper.
type Backend struct {
	gatekeeper *Gatekeeper
}

func NewBackend(gatekeeper *Gatekeeper) *Backend {
	return &Backend{gatekeeper: gatekeeper}
}

func (b *Backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &Session{gatekeeper: b.gatekeeper}, nil
}

// Session carries one mail transaction. Recipients that fail validation are
// rejected at RCPT and never reach the accepted list; the transaction only
// dies when every recipient is rejected, which go-smtp enforces by refusing
// DATA without accepted recipients.
type Session struct {
	gatekeeper *Gatekeeper
	sender     string
	recipients []string
}

func (s *Session) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *Session) Rcpt(to string, _ *smtp.RcptOptions) error {
	err := s.gatekeeper.ValidateRecipient(to)
	switch {
	case err == nil:
		s.recipients = append(s.recipients, to)
		log.Info().Str("recipient", to).Msg("recipient accepted")
		return nil
	case errors.Is(err, validator.ErrMalformedAddress):
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 3},
			Message:      "Malformed address",
		}
	case errors.Is(err, ErrUnknownDomain):
		log.Warn().Str("recipient", to).Msg("recipient rejected, unknown domain")
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Domain not served here",
		}
	default:
		log.Error().Err(err).Str("recipient", to).Msg("recipient validation failed")
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Temporary server error, try again later",
		}
	}
}

func (s *Session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Failed to read message",
		}
	}

	stored, err := s.gatekeeper.CommitMessage(s.sender, s.recipients, raw)
	if err != nil && errors.Is(err, pkgerrors.ErrTransientStore) {
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Temporary storage error, try again later",
		}
	}

	log.Info().Str("sender", s.sender).Int("stored", stored).Msg("message accepted for delivery")
	return nil
}

func (s *Session) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *Session) Logout() error {
	return nil
}

// NewServer builds the inbound SMTP listener around the gatekeeper.
func NewServer(cfg config.SMTPConfig, gatekeeper *Gatekeeper) *smtp.Server {
	srv := smtp.NewServer(NewBackend(gatekeeper))

	srv.Domain = cfg.Hostname
	srv.ReadTimeout = cfg.ReadTimeout
	srv.WriteTimeout = cfg.WriteTimeout
	srv.MaxMessageBytes = cfg.MaxMessageSize
	srv.MaxRecipients = cfg.MaxRecipients

	return srv
}
