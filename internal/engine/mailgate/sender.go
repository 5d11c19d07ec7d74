package mailgate

import (
	"errors"
	"fmt"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	pkgerrors "mailpanel/internal/pkg/errors"
	"mailpanel/internal/platform/config"
	"mailpanel/internal/platform/models"
	"mailpanel/internal/platform/repositories"
)

// Sender composes outbound mail. A recipient inside a registered tenant
// domain is filed straight through the inbound commit path; anything else
// goes out fire-and-forget through the configured relay.
type Sender struct {
	cfg         config.MailerConfig
	gatekeeper  *Gatekeeper
	mailboxRepo *repositories.MailboxRepository
}

func NewSender(cfg config.MailerConfig, gatekeeper *Gatekeeper, mailboxRepo *repositories.MailboxRepository) *Sender {
	return &Sender{cfg: cfg, gatekeeper: gatekeeper, mailboxRepo: mailboxRepo}
}

// Send delivers one message. The returned flag reports whether delivery was
// local: a local delivery already filed the recipient's inbox row, so the
// caller must not file another copy. A store failure during recipient
// resolution surfaces as the transient error, never as a silent fallthrough
// to the relay path.
func (s *Sender) Send(from, to, subject, body string) (bool, error) {
	raw := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, body))

	err := s.gatekeeper.ValidateRecipient(to)
	switch {
	case err == nil:
		_, err := s.gatekeeper.CommitMessage(from, []string{to}, raw)
		return true, err
	case errors.Is(err, pkgerrors.ErrTransientStore):
		return false, err
	case !errors.Is(err, ErrUnknownDomain):
		return false, err
	}

	if s.cfg.RelayHost == "" {
		return false, fmt.Errorf("no relay configured for remote recipient %s", to)
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", s.cfg.RelayHost, s.cfg.RelayPort)
		if err := smtp.SendMail(addr, nil, from, []string{to}, raw); err != nil {
			log.Error().Err(err).Str("to", to).Msg("relay delivery failed")
		}
	}()
	return false, nil
}

// FileSent archives a relayed message in the sender's tenant scope so the
// sent view still shows mail that left the panel. Locally delivered mail is
// already on record through the commit path and must not be filed again.
func (s *Sender) FileSent(tenantID, from, to, subject, body string) error {
	return s.mailboxRepo.Insert(&models.MailboxMessage{
		ID:         "msg_" + uuid.NewString(),
		TenantID:   tenantID,
		Sender:     from,
		Recipient:  to,
		Subject:    subject,
		Body:       body,
		Read:       true,
		ReceivedAt: time.Now().Unix(),
	})
}
