package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/aptscout/aptscout/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func sample(address string, rent int) *models.Listing {
	return &models.Listing{
		Address:      address,
		Bedrooms:     intPtr(2),
		Bathrooms:    floatPtr(1),
		Rent:         intPtr(rent),
		Neighborhood: "Mission",
		SourceURL:    "http://rentals.test/listings",
	}
}

func TestRenderSummary(t *testing.T) {
	listings := []*models.Listing{
		sample("123 Fake St", 3200),
		{Bedrooms: intPtr(0), SourceURL: "http://rentals.test/listings"},
	}

	body := RenderSummary("rentals", listings)

	for _, fragment := range []string{
		"Site: rentals",
		"Matching listings: 2",
		"- 123 Fake St",
		"rent: $3200/mo",
		"neighborhood: Mission",
		"- (address unknown)",
		"beds: 0",
		"rent: call for pricing",
		"http://rentals.test/listings",
	} {
		if !strings.Contains(body, fragment) {
			t.Errorf("summary missing %q:\n%s", fragment, body)
		}
	}
}

func TestAlertSendsOnlyFreshListings(t *testing.T) {
	n, err := NewNotifier(SMTPConfig{Host: "smtp.test", From: "a@test", To: []string{"b@test"}}, 16)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	var sent []string
	n.send = func(cfg SMTPConfig, subject, body string) error {
		sent = append(sent, subject)
		return nil
	}

	first := []*models.Listing{sample("123 Fake St", 3200), sample("644 Oak St", 2100)}
	count, err := n.Alert("rentals", first)
	if err != nil {
		t.Fatalf("alert: %v", err)
	}
	if count != 2 {
		t.Fatalf("first alert count = %d, want 2", count)
	}

	// A repeat batch with one already-announced unit only reports the new one.
	second := []*models.Listing{sample("123 Fake St", 3200), sample("9 Pine Ave", 2400)}
	count, err = n.Alert("rentals", second)
	if err != nil {
		t.Fatalf("alert: %v", err)
	}
	if count != 1 {
		t.Fatalf("second alert count = %d, want 1", count)
	}

	// Everything announced already: no mail at all.
	count, err = n.Alert("rentals", first)
	if err != nil {
		t.Fatalf("alert: %v", err)
	}
	if count != 0 {
		t.Fatalf("third alert count = %d, want 0", count)
	}

	if len(sent) != 2 {
		t.Fatalf("sent %d mails, want 2: %v", len(sent), sent)
	}
	if sent[0] != "2 new listing(s) from rentals" || sent[1] != "1 new listing(s) from rentals" {
		t.Fatalf("unexpected subjects: %v", sent)
	}
}

func TestAlertPriceChangeIsFresh(t *testing.T) {
	n, err := NewNotifier(SMTPConfig{Host: "smtp.test"}, 16)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	n.send = func(cfg SMTPConfig, subject, body string) error { return nil }

	if count, _ := n.Alert("rentals", []*models.Listing{sample("123 Fake St", 3200)}); count != 1 {
		t.Fatalf("first alert count = %d, want 1", count)
	}
	// Same unit at a new price has a new identity key.
	if count, _ := n.Alert("rentals", []*models.Listing{sample("123 Fake St", 3100)}); count != 1 {
		t.Fatalf("price-change alert count = %d, want 1", count)
	}
}

func TestAlertPropagatesSendError(t *testing.T) {
	n, err := NewNotifier(SMTPConfig{Host: "smtp.test"}, 16)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	boom := errors.New("relay refused")
	n.send = func(cfg SMTPConfig, subject, body string) error { return boom }

	if _, err := n.Alert("rentals", []*models.Listing{sample("123 Fake St", 3200)}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestLoadSMTPFromEnv(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.test")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("SMTP_USERNAME", "user")
	t.Setenv("SMTP_PASSWORD", "pass")
	t.Setenv("SMTP_FROM", "alerts@test")
	t.Setenv("SMTP_TO", "a@test, b@test,,")

	cfg := LoadSMTPFromEnv()
	if cfg.Host != "smtp.test" {
		t.Errorf("host = %q", cfg.Host)
	}
	if cfg.Port != "587" {
		t.Errorf("port = %q, want default 587", cfg.Port)
	}
	if len(cfg.To) != 2 || cfg.To[0] != "a@test" || cfg.To[1] != "b@test" {
		t.Errorf("recipients = %v", cfg.To)
	}
}
