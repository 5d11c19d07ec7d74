package mailgate

import (
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
)

func rcptCode(t *testing.T, err error) int {
	t.Helper()
	var smtpErr *smtp.SMTPError
	if !errors.As(err, &smtpErr) {
		t.Fatalf("Expected *smtp.SMTPError, got %v", err)
	}
	return smtpErr.Code
}

func TestSession_Rcpt(t *testing.T) {
	gk, db := setupGatekeeper(t)
	defer db.Close()

	s := &Session{gatekeeper: gk}

	if err := s.Mail("sender@remote.test", nil); err != nil {
		t.Fatalf("Mail failed: %v", err)
	}

	if err := s.Rcpt("alice@acme.test", nil); err != nil {
		t.Fatalf("Expected known recipient to be accepted, got %v", err)
	}
	if len(s.recipients) != 1 {
		t.Fatalf("Expected 1 accepted recipient, got %d", len(s.recipients))
	}

	if code := rcptCode(t, s.Rcpt("bob@nowhere.test", nil)); code != 550 {
		t.Errorf("Expected 550 for unknown domain, got %d", code)
	}
	if code := rcptCode(t, s.Rcpt("not-an-address", nil)); code != 550 {
		t.Errorf("Expected 550 for malformed address, got %d", code)
	}

	// Rejections never land in the accepted list.
	if len(s.recipients) != 1 {
		t.Errorf("Expected rejected recipients to be dropped, got %d accepted", len(s.recipients))
	}

	s.Reset()
	if s.sender != "" || s.recipients != nil {
		t.Error("Expected Reset to clear the transaction")
	}
}

func TestSession_Rcpt_StoreFailureIsTransient(t *testing.T) {
	gk, db := setupGatekeeper(t)
	db.Close()

	s := &Session{gatekeeper: gk}
	if code := rcptCode(t, s.Rcpt("alice@acme.test", nil)); code != 451 {
		t.Errorf("Expected 451 on store failure, got %d", code)
	}
}

func TestSession_Data(t *testing.T) {
	gk, db := setupGatekeeper(t)
	defer db.Close()

	s := &Session{gatekeeper: gk}
	if err := s.Mail("sender@remote.test", nil); err != nil {
		t.Fatalf("Mail failed: %v", err)
	}
	if err := s.Rcpt("alice@acme.test", nil); err != nil {
		t.Fatalf("Rcpt failed: %v", err)
	}

	raw := "Subject: Ping\r\n\r\nping\r\n"
	if err := s.Data(strings.NewReader(raw)); err != nil {
		t.Fatalf("Data failed: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM mailbox_messages WHERE recipient = 'alice@acme.test'`).Scan(&count); err != nil {
		t.Fatalf("Failed to count messages: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 stored message, got %d", count)
	}
}
