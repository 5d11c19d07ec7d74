package mailgate

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	pkgerrors "mailpanel/internal/pkg/errors"
	"mailpanel/internal/pkg/validator"
	"mailpanel/internal/platform/models"
	"mailpanel/internal/platform/repositories"
)

const defaultSubject = "(no subject)"

// ErrUnknownDomain is the permanent rejection for recipients outside every
// registered tenant domain.
var ErrUnknownDomain = errors.New("unknown domain")

// Gatekeeper validates inbound recipients against live tenant state and files
// accepted messages into per-user mailboxes. Validation runs at the RCPT
// phase, before any message body crosses the wire.
type Gatekeeper struct {
	tenantRepo  *repositories.TenantRepository
	userRepo    *repositories.UserRepository
	mailboxRepo *repositories.MailboxRepository
	now         func() time.Time
}

func NewGatekeeper(tenantRepo *repositories.TenantRepository, userRepo *repositories.UserRepository, mailboxRepo *repositories.MailboxRepository) *Gatekeeper {
	return &Gatekeeper{
		tenantRepo:  tenantRepo,
		userRepo:    userRepo,
		mailboxRepo: mailboxRepo,
		now:         time.Now,
	}
}

// ValidateRecipient accepts an address iff its domain belongs to an active
// tenant. A malformed address or unknown domain is a permanent rejection; a
// store failure is transient so the remote peer retries instead of bouncing.
func (g *Gatekeeper) ValidateRecipient(address string) error {
	_, domain, err := validator.SplitAddress(address)
	if err != nil {
		return err
	}

	tenant, err := g.tenantRepo.GetByDomain(domain)
	if err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrTransientStore, err)
	}
	if tenant == nil || !tenant.Active {
		return ErrUnknownDomain
	}
	return nil
}

// CommitMessage files one mailbox row per accepted recipient that still
// resolves to a user. Recipients that disappeared between RCPT and DATA are
// skipped silently, as are per-recipient storage errors. The returned count
// is the number of rows stored; if nothing was stored and a store failure
// occurred, the failure is surfaced so the session can signal a retry.
func (g *Gatekeeper) CommitMessage(sender string, recipients []string, raw []byte) (int, error) {
	subject := extractSubject(raw)
	body := string(raw)
	received := g.now().Unix()

	stored := 0
	var storeErr error

	for _, recipient := range recipients {
		_, domain, err := validator.SplitAddress(recipient)
		if err != nil {
			continue
		}

		tenant, err := g.tenantRepo.GetByDomain(domain)
		if err != nil {
			log.Error().Err(err).Str("recipient", recipient).Msg("tenant lookup failed during commit")
			storeErr = err
			continue
		}
		if tenant == nil || !tenant.Active {
			continue
		}

		user, err := g.userRepo.GetByEmail(recipient)
		if err != nil {
			log.Error().Err(err).Str("recipient", recipient).Msg("user lookup failed during commit")
			storeErr = err
			continue
		}
		if user == nil || !user.Active {
			log.Warn().Str("recipient", recipient).Msg("recipient has no mailbox, dropping")
			continue
		}

		msg := &models.MailboxMessage{
			ID:         "msg_" + uuid.NewString(),
			TenantID:   tenant.ID,
			Sender:     sender,
			Recipient:  recipient,
			Subject:    subject,
			Body:       body,
			Read:       false,
			ReceivedAt: received,
		}
		if err := g.mailboxRepo.Insert(msg); err != nil {
			log.Error().Err(err).Str("recipient", recipient).Msg("failed to store message")
			storeErr = err
			continue
		}

		log.Info().Str("recipient", recipient).Str("tenant_id", tenant.ID).Msg("message stored")
		stored++
	}

	if stored == 0 && storeErr != nil {
		return 0, fmt.Errorf("%w: %v", pkgerrors.ErrTransientStore, storeErr)
	}
	return stored, nil
}

// extractSubject pulls the Subject header out of the raw message, best
// effort. Unparseable content falls back to the sentinel subject.
func extractSubject(raw []byte) string {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return defaultSubject
	}
	subject := msg.Header.Get("Subject")
	if subject == "" {
		return defaultSubject
	}
	dec := new(mime.WordDecoder)
	if decoded, err := dec.DecodeHeader(subject); err == nil {
		return decoded
	}
	return subject
}
