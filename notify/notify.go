// Package notify renders and delivers email summaries of matching listings.
package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/joho/godotenv"

	"github.com/aptscout/aptscout/models"
)

// SMTPConfig carries delivery settings. An empty Host means "preview only":
// summaries are printed instead of sent.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	To       []string
}

// LoadSMTPFromEnv reads SMTP settings from the environment, loading a .env
// file first when one exists.
func LoadSMTPFromEnv() SMTPConfig {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("no .env file loaded", slog.Any("error", err))
	}

	cfg := SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     os.Getenv("SMTP_PORT"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if to := os.Getenv("SMTP_TO"); to != "" {
		for _, addr := range strings.Split(to, ",") {
			if trimmed := strings.TrimSpace(addr); trimmed != "" {
				cfg.To = append(cfg.To, trimmed)
			}
		}
	}
	return cfg
}

// Notifier delivers listing summaries, remembering which identity keys it
// already alerted so repeated per-site batches in one process do not
// re-announce the same unit.
type Notifier struct {
	cfg     SMTPConfig
	alerted *lru.Cache[string, struct{}]

	// send is swappable for tests.
	send func(cfg SMTPConfig, subject, body string) error
}

// NewNotifier builds a notifier with room for cacheSize remembered units.
func NewNotifier(cfg SMTPConfig, cacheSize int) (*Notifier, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	alerted, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create alert cache: %w", err)
	}
	return &Notifier{
		cfg:     cfg,
		alerted: alerted,
		send:    sendSMTP,
	}, nil
}

// Alert sends a summary of the not-yet-announced listings in the batch.
// It returns the number of fresh listings included.
func (n *Notifier) Alert(site string, listings []*models.Listing) (int, error) {
	fresh := make([]*models.Listing, 0, len(listings))
	for _, listing := range listings {
		key := listing.IdentityKey()
		if _, seen := n.alerted.Get(key); seen {
			continue
		}
		n.alerted.Add(key, struct{}{})
		fresh = append(fresh, listing)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	subject := fmt.Sprintf("%d new listing(s) from %s", len(fresh), site)
	body := RenderSummary(site, fresh)

	if n.cfg.Host == "" {
		fmt.Println("=== EMAIL PREVIEW ===")
		fmt.Println(body)
		fmt.Println("=== END EMAIL ===")
		return len(fresh), nil
	}

	if err := n.send(n.cfg, subject, body); err != nil {
		return 0, fmt.Errorf("send alert for %s: %w", site, err)
	}
	slog.Info("alert sent", slog.String("site", site), slog.Int("listings", len(fresh)))
	return len(fresh), nil
}

// RenderSummary formats a plain-text digest, one block per listing.
func RenderSummary(site string, listings []*models.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site: %s\n", site)
	fmt.Fprintf(&b, "Matching listings: %d\n\n", len(listings))

	for _, listing := range listings {
		address := listing.Address
		if address == "" {
			address = "(address unknown)"
		}
		fmt.Fprintf(&b, "- %s\n", address)
		fmt.Fprintf(&b, "  beds: %s  baths: %s  rent: %s\n",
			formatInt(listing.Bedrooms),
			formatFloat(listing.Bathrooms),
			formatRent(listing.Rent),
		)
		if listing.Neighborhood != "" {
			fmt.Fprintf(&b, "  neighborhood: %s\n", listing.Neighborhood)
		}
		fmt.Fprintf(&b, "  %s\n", listing.SourceURL)
	}
	return b.String()
}

func sendSMTP(cfg SMTPConfig, subject, body string) error {
	if len(cfg.To) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	msg := strings.Join([]string{
		"From: " + cfg.From,
		"To: " + strings.Join(cfg.To, ", "),
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := cfg.Host + ":" + cfg.Port
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, cfg.From, cfg.To, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func formatInt(v *int) string {
	if v == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return "?"
	}
	return fmt.Sprintf("%g", *v)
}

func formatRent(v *int) string {
	if v == nil {
		return "call for pricing"
	}
	return fmt.Sprintf("$%d/mo", *v)
}
