package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"cpaas-console/internal/domain/messaging"
)

type sendTextPayload struct {
	Channel          string `json:"channel"`
	ServiceName      string `json:"service_name"`
	NotificationType string `json:"notification_type"`
	PhoneNumber      string `json:"phone_number"`
	Email            string `json:"email,omitempty"`
	MessageType      string `json:"message_type"`
	MessageDetails   string `json:"message_details"`
}

type whatsAppPayload struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type facebookPayload struct {
	Text      string `json:"text"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	To        string `json:"to"`
}

// Send performs one delivery attempt through the messaging backend.
func (c *Client) Send(ctx context.Context, msg messaging.Outbound) (json.RawMessage, error) {
	switch msg.Channel {
	case messaging.ChannelSMS:
		return c.SendSMS(ctx, msg.BackendToken, msg.Recipient.PhoneNumber, msg.Message)
	case messaging.ChannelEmail:
		return c.SendEmail(ctx, msg.BackendToken, msg.Recipient.Email, msg.Subject, msg.Message)
	case messaging.ChannelWhatsApp:
		return c.SendWhatsApp(ctx, msg.BackendToken, msg.Recipient.PhoneNumber, msg.Message)
	case messaging.ChannelFacebookMessenger:
		return c.SendFacebookMessage(ctx, msg.AccessToken, msg.Recipient.PhoneNumber, facebookPayload{
			Text: msg.Message, MediaURL: msg.MediaURL, MediaType: msg.MediaType, To: msg.Recipient.PhoneNumber,
		})
	case messaging.ChannelFacebookPagePost:
		return c.PostToFacebookPage(ctx, msg.AccessToken, msg.PageID, facebookPayload{
			Text: msg.Message, MediaURL: msg.MediaURL, MediaType: msg.MediaType, To: msg.PageID,
		})
	default:
		return nil, fmt.Errorf("unsupported channel %q", msg.Channel)
	}
}

func (c *Client) SendSMS(ctx context.Context, token, phone, message string) (json.RawMessage, error) {
	return c.do(ctx, request{
		op:     "send sms",
		method: http.MethodPost,
		url:    c.cfg.MessagingURL + "/auth/sendText",
		bearer: token,
		body: sendTextPayload{
			Channel:          "sms",
			ServiceName:      c.cfg.SMSServiceName,
			NotificationType: "P",
			PhoneNumber:      phone,
			MessageType:      "P",
			MessageDetails:   message,
		},
		accept: acceptedSend,
	})
}

// SendEmail uses the subject as service_name, which is how the backend
// titles outgoing mail.
func (c *Client) SendEmail(ctx context.Context, token, to, subject, message string) (json.RawMessage, error) {
	return c.do(ctx, request{
		op:     "send email",
		method: http.MethodPost,
		url:    c.cfg.MessagingURL + "/auth/sendEmail",
		bearer: token,
		body: sendTextPayload{
			Channel:          "email",
			ServiceName:      subject,
			NotificationType: "P",
			PhoneNumber:      "",
			Email:            to,
			MessageType:      "P",
			MessageDetails:   message,
		},
		accept: acceptedSend,
	})
}

func (c *Client) SendWhatsApp(ctx context.Context, token, phone, message string) (json.RawMessage, error) {
	return c.do(ctx, request{
		op:     "send whatsapp",
		method: http.MethodPost,
		url:    c.cfg.MessagingURL + "/api/auth/whatsapp/sendMessage",
		bearer: token,
		body:   whatsAppPayload{PhoneNumber: phone, Message: message},
		accept: acceptedSend,
	})
}

// SendFacebookMessage passes the page access token verbatim in Authorization.
func (c *Client) SendFacebookMessage(ctx context.Context, accessToken, recipientID string, p facebookPayload) (json.RawMessage, error) {
	return c.do(ctx, request{
		op:      "send facebook message",
		method:  http.MethodPost,
		url:     c.cfg.MessagingURL + "/api/facebook/send-message/" + url.PathEscape(recipientID),
		rawAuth: accessToken,
		body:    p,
		accept:  acceptedSend,
	})
}

func (c *Client) PostToFacebookPage(ctx context.Context, accessToken, pageID string, p facebookPayload) (json.RawMessage, error) {
	return c.do(ctx, request{
		op:      "post to facebook page",
		method:  http.MethodPost,
		url:     c.cfg.MessagingURL + "/api/facebook/post?page-id=" + url.QueryEscape(pageID),
		rawAuth: accessToken,
		body:    p,
		accept:  acceptedSend,
	})
}
