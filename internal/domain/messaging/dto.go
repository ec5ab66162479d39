// internal/domain/messaging/dto.go
package messaging

// BulkSendRequest is one message body sent through one channel to many
// recipients.
type BulkSendRequest struct {
	Channel    Channel     `json:"channel" binding:"required"`
	Message    string      `json:"message"`
	Subject    string      `json:"subject,omitempty"`
	Recipients []Recipient `json:"recipients"`

	// Facebook only; fall back to the stored secret bundle when empty.
	AccessToken string `json:"accessToken,omitempty"`
	PageID      string `json:"pageId,omitempty"`
	MediaURL    string `json:"mediaUrl,omitempty"`
	MediaType   string `json:"mediaType,omitempty"`
}

// SendRequest is the single-recipient convenience form.
type SendRequest struct {
	Channel     Channel   `json:"channel" binding:"required"`
	Message     string    `json:"message"`
	Subject     string    `json:"subject,omitempty"`
	Recipient   Recipient `json:"recipient"`
	AccessToken string    `json:"accessToken,omitempty"`
	PageID      string    `json:"pageId,omitempty"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	MediaType   string    `json:"mediaType,omitempty"`
}

// ToBulk wraps the single send into a one-recipient bulk request.
func (r SendRequest) ToBulk() BulkSendRequest {
	return BulkSendRequest{
		Channel:     r.Channel,
		Message:     r.Message,
		Subject:     r.Subject,
		Recipients:  []Recipient{r.Recipient},
		AccessToken: r.AccessToken,
		PageID:      r.PageID,
		MediaURL:    r.MediaURL,
		MediaType:   r.MediaType,
	}
}

// Outbound is what a Sender receives for one delivery attempt.
type Outbound struct {
	Channel     Channel
	Recipient   Recipient
	Message     string
	Subject     string
	AccessToken string
	PageID      string
	MediaURL    string
	MediaType   string
	// BackendToken authenticates the operator against the messaging backend.
	BackendToken string
}
