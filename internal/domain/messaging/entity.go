// internal/domain/messaging/entity.go
package messaging

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Channel string

const (
	ChannelSMS               Channel = "sms"
	ChannelEmail             Channel = "email"
	ChannelWhatsApp          Channel = "whatsapp"
	ChannelFacebookMessenger Channel = "facebook-messenger"
	ChannelFacebookPagePost  Channel = "facebook-page-post"
)

// ParseChannel accepts the channel identifiers used by the dashboard.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelSMS, ChannelEmail, ChannelWhatsApp, ChannelFacebookMessenger, ChannelFacebookPagePost:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported channel %q", s)
	}
}

// UsesEmail reports whether recipients are addressed by email.
func (c Channel) UsesEmail() bool { return c == ChannelEmail }

// IsFacebook reports whether the channel needs a page access token.
func (c Channel) IsFacebook() bool {
	return c == ChannelFacebookMessenger || c == ChannelFacebookPagePost
}

var phonePattern = regexp.MustCompile(`^\+?[\d\s-]+$`)

// Recipient carries a name plus exactly one address. For Messenger the
// phone field holds the page-scoped recipient id.
type Recipient struct {
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Address returns the identifier used for the channel.
func (r Recipient) Address(c Channel) string {
	if c.UsesEmail() {
		return r.Email
	}
	return r.PhoneNumber
}

// ValidFor applies the lightweight pattern checks of each channel.
func (r Recipient) ValidFor(c Channel) error {
	if strings.TrimSpace(r.PhoneNumber) != "" && strings.TrimSpace(r.Email) != "" {
		return fmt.Errorf("recipient has both a phone number and an email")
	}
	addr := strings.TrimSpace(r.Address(c))
	switch c {
	case ChannelEmail:
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("invalid email %q", r.Email)
		}
	case ChannelSMS, ChannelWhatsApp:
		if !phonePattern.MatchString(addr) {
			return fmt.Errorf("invalid phone number %q", r.PhoneNumber)
		}
	default:
		if addr == "" {
			return fmt.Errorf("recipient id is required")
		}
	}
	return nil
}

// DeliveryResult is the outcome for one recipient.
type DeliveryResult struct {
	Recipient Recipient       `json:"recipient"`
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// BulkResult aggregates a bulk send. Results are in input order.
type BulkResult struct {
	JobID          string           `json:"job_id"`
	Channel        Channel          `json:"channel"`
	Results        []DeliveryResult `json:"results"`
	Succeeded      int              `json:"succeeded"`
	Total          int              `json:"total"`
	LengthExceeded bool             `json:"length_exceeded"`
	Warnings       []string         `json:"warnings,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
}

// Failed lists the addresses whose delivery failed.
func (b *BulkResult) Failed() []string {
	var out []string
	for _, r := range b.Results {
		if !r.Success {
			out = append(out, r.Recipient.Address(b.Channel))
		}
	}
	return out
}
