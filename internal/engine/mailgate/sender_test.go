package mailgate

import (
	"errors"
	"testing"

	"mailpanel/internal/platform/config"
	"mailpanel/internal/platform/repositories"
	pkgerrors "mailpanel/internal/pkg/errors"
)

func TestSender_Send_LocalDelivery(t *testing.T) {
	gk, db := setupGatekeeper(t)
	defer db.Close()

	mailboxRepo := repositories.NewMailboxRepository(db)
	sender := NewSender(config.MailerConfig{}, gk, mailboxRepo)

	local, err := sender.Send("bob@acme.test", "alice@acme.test", "Hello", "hi there")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !local {
		t.Error("Expected delivery to be reported as local")
	}

	// Exactly one row lands in the recipient's inbox, unread.
	msgs, err := mailboxRepo.ListForRecipient("alice@acme.test", 0)
	if err != nil {
		t.Fatalf("ListForRecipient failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 inbox row, got %d", len(msgs))
	}
	if msgs[0].Read {
		t.Error("Expected delivered message to be unread")
	}

	// The same row doubles as the sender's sent view; no second copy exists.
	sent, err := mailboxRepo.ListForSender("bob@acme.test", 0)
	if err != nil {
		t.Fatalf("ListForSender failed: %v", err)
	}
	if len(sent) != 1 {
		t.Errorf("Expected 1 sent row, got %d", len(sent))
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM mailbox_messages`).Scan(&total); err != nil {
		t.Fatalf("Failed to count messages: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected 1 row total, got %d", total)
	}
}

func TestSender_Send_RemoteWithoutRelay(t *testing.T) {
	gk, db := setupGatekeeper(t)
	defer db.Close()

	sender := NewSender(config.MailerConfig{}, gk, repositories.NewMailboxRepository(db))

	local, err := sender.Send("bob@acme.test", "carol@remote.test", "Hello", "hi")
	if err == nil {
		t.Fatal("Expected error for remote recipient without a relay")
	}
	if local {
		t.Error("Expected remote recipient not to be reported as local")
	}
}

func TestSender_Send_TransientStoreFailure(t *testing.T) {
	gk, db := setupGatekeeper(t)
	db.Close()

	sender := NewSender(config.MailerConfig{RelayHost: "relay.test", RelayPort: 25}, gk, repositories.NewMailboxRepository(db))

	// A store outage must surface as transient, never fall through to the
	// relay as if the recipient were remote.
	local, err := sender.Send("bob@acme.test", "alice@acme.test", "Hello", "hi")
	if !errors.Is(err, pkgerrors.ErrTransientStore) {
		t.Errorf("Expected ErrTransientStore, got %v", err)
	}
	if local {
		t.Error("Expected failed delivery not to be reported as local")
	}
}

func TestSender_FileSent(t *testing.T) {
	gk, db := setupGatekeeper(t)
	defer db.Close()

	mailboxRepo := repositories.NewMailboxRepository(db)
	sender := NewSender(config.MailerConfig{}, gk, mailboxRepo)

	if err := sender.FileSent("tnt_acme", "bob@acme.test", "carol@remote.test", "Hello", "hi"); err != nil {
		t.Fatalf("FileSent failed: %v", err)
	}

	sent, err := mailboxRepo.ListForSender("bob@acme.test", 0)
	if err != nil {
		t.Fatalf("ListForSender failed: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("Expected 1 sent row, got %d", len(sent))
	}
	if !sent[0].Read {
		t.Error("Expected archived copy to be marked read")
	}

	// The archive never shows up in any local inbox.
	msgs, err := mailboxRepo.ListForRecipient("alice@acme.test", 0)
	if err != nil {
		t.Fatalf("ListForRecipient failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected no inbox rows, got %d", len(msgs))
	}
}
