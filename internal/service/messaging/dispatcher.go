// Package messaging fans a message out to many recipients through the
// messaging backend and aggregates the per-recipient outcomes.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"cpaas-console/internal/domain/messaging"
	"cpaas-console/internal/domain/secrets"
	"cpaas-console/internal/domain/websocket"
	xerrors "cpaas-console/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultSMSMaxLength = 160

// Sender performs one delivery attempt.
type Sender interface {
	Send(ctx context.Context, msg messaging.Outbound) (json.RawMessage, error)
}

// SecretsReader returns the operator's stored bundle, nil when there is none.
type SecretsReader interface {
	GetBundle(ctx context.Context, operatorID string) (secrets.Bundle, error)
}

type ProgressNotifier interface {
	BroadcastDispatchProgress(operatorID string, data websocket.DispatchProgressData)
	BroadcastDispatchCompleted(operatorID string, data websocket.DispatchCompletedData)
}

type HistoryRecorder interface {
	RecordDispatch(ctx context.Context, job *messaging.DispatchJob, records []messaging.DispatchRecord) error
}

type Config struct {
	SMSMaxLength int
	// MaxInFlight bounds concurrent sends; 0 means one goroutine per recipient.
	MaxInFlight int
}

// Caller identifies who a dispatch runs for.
type Caller struct {
	OperatorID   string
	BackendToken string
}

type Dispatcher struct {
	sender   Sender
	secrets  SecretsReader
	notifier ProgressNotifier
	history  HistoryRecorder
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewDispatcher wires a dispatcher. secrets, notifier and history may be nil.
func NewDispatcher(
	sender Sender,
	secretsReader SecretsReader,
	notifier ProgressNotifier,
	history HistoryRecorder,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.SMSMaxLength <= 0 {
		cfg.SMSMaxLength = DefaultSMSMaxLength
	}
	return &Dispatcher{
		sender:   sender,
		secrets:  secretsReader,
		notifier: notifier,
		history:  history,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// plan is a validated bulk request.
type plan struct {
	channel     messaging.Channel
	message     string
	subject     string
	recipients  []messaging.Recipient
	accessToken string
	pageID      string
	mediaURL    string
	mediaType   string

	// recipients dropped because the channel has a single target
	ignored int
}

// Dispatch validates req, then sends to every recipient concurrently. Only
// validation problems are returned as errors; delivery failures end up in
// the per-recipient results.
func (d *Dispatcher) Dispatch(ctx context.Context, caller Caller, req messaging.BulkSendRequest) (*messaging.BulkResult, error) {
	p, err := d.prepare(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	res := &messaging.BulkResult{
		JobID:     ulid.Make().String(),
		Channel:   p.channel,
		Total:     len(p.recipients),
		StartedAt: d.now(),
	}
	if p.channel == messaging.ChannelSMS {
		if n := utf8.RuneCountInString(p.message); n > d.cfg.SMSMaxLength {
			res.LengthExceeded = true
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"message is %d characters, longer than the %d character SMS limit; it was sent but may be split or truncated",
				n, d.cfg.SMSMaxLength))
		}
	}

	if p.ignored > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"a page post is published once to page %s; %d listed recipients were ignored", p.pageID, p.ignored))
	}

	res.Results = d.fanOut(ctx, caller, p, res.JobID)

	for _, r := range res.Results {
		if r.Success {
			res.Succeeded++
		}
	}
	res.FinishedAt = d.now()

	d.logger.Info("bulk dispatch finished",
		zap.String("job_id", res.JobID),
		zap.String("operator_id", caller.OperatorID),
		zap.String("channel", string(p.channel)),
		zap.Int("total", res.Total),
		zap.Int("succeeded", res.Succeeded),
		zap.Bool("length_exceeded", res.LengthExceeded),
		zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
	)

	if d.notifier != nil && caller.OperatorID != "" {
		d.notifier.BroadcastDispatchCompleted(caller.OperatorID, websocket.DispatchCompletedData{
			JobID:          res.JobID,
			Channel:        string(res.Channel),
			Succeeded:      res.Succeeded,
			Total:          res.Total,
			LengthExceeded: res.LengthExceeded,
		})
	}
	d.record(ctx, caller, p.message, res)

	return res, nil
}

// fanOut runs one unit per recipient. Each unit owns its slot in the
// result slice and never returns an error, so no unit can stop the others.
func (d *Dispatcher) fanOut(ctx context.Context, caller Caller, p *plan, jobID string) []messaging.DeliveryResult {
	results := make([]messaging.DeliveryResult, len(p.recipients))

	var g errgroup.Group
	if d.cfg.MaxInFlight > 0 {
		g.SetLimit(d.cfg.MaxInFlight)
	}

	var completed, succeeded atomic.Int64
	total := len(p.recipients)

	for i, rcpt := range p.recipients {
		i, rcpt := i, rcpt
		g.Go(func() error {
			raw, err := d.sender.Send(ctx, messaging.Outbound{
				Channel:      p.channel,
				Recipient:    rcpt,
				Message:      p.message,
				Subject:      p.subject,
				AccessToken:  p.accessToken,
				PageID:       p.pageID,
				MediaURL:     p.mediaURL,
				MediaType:    p.mediaType,
				BackendToken: caller.BackendToken,
			})

			out := messaging.DeliveryResult{Recipient: rcpt}
			if err != nil {
				out.Error = err.Error()
				d.logger.Debug("delivery failed",
					zap.String("job_id", jobID),
					zap.String("recipient", rcpt.Address(p.channel)),
					zap.Error(err),
				)
			} else {
				out.Success = true
				out.Result = raw
				succeeded.Add(1)
			}
			results[i] = out

			current := completed.Add(1)
			if d.notifier != nil && caller.OperatorID != "" {
				d.notifier.BroadcastDispatchProgress(caller.OperatorID, websocket.DispatchProgressData{
					JobID:     jobID,
					Channel:   string(p.channel),
					Current:   int(current),
					Succeeded: int(succeeded.Load()),
					Total:     total,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) prepare(ctx context.Context, caller Caller, req messaging.BulkSendRequest) (*plan, error) {
	channel, err := messaging.ParseChannel(string(req.Channel))
	if err != nil {
		return nil, xerrors.Validation("%v", err)
	}

	p := &plan{
		channel:     channel,
		message:     req.Message,
		subject:     strings.TrimSpace(req.Subject),
		recipients:  req.Recipients,
		accessToken: strings.TrimSpace(req.AccessToken),
		pageID:      strings.TrimSpace(req.PageID),
		mediaURL:    req.MediaURL,
		mediaType:   req.MediaType,
	}

	if strings.TrimSpace(p.message) == "" {
		return nil, xerrors.Validation("message is required")
	}
	if channel == messaging.ChannelEmail && p.subject == "" {
		return nil, xerrors.Validation("subject is required for email")
	}

	if channel.IsFacebook() {
		if err := d.fillFacebookSecrets(ctx, caller, p); err != nil {
			return nil, err
		}
		if p.accessToken == "" {
			return nil, xerrors.Validation("facebook access token is required")
		}
		if channel == messaging.ChannelFacebookPagePost {
			if p.pageID == "" {
				return nil, xerrors.Validation("facebook page id is required")
			}
			// a page post has one target whatever the list says: the page
			p.ignored = len(p.recipients)
			p.recipients = []messaging.Recipient{{Name: "page", PhoneNumber: p.pageID}}
		}
	}

	if len(p.recipients) == 0 {
		return nil, xerrors.Validation("at least one recipient is required")
	}
	for i, r := range p.recipients {
		if err := r.ValidFor(channel); err != nil {
			return nil, xerrors.Validation("recipient %d: %v", i+1, err)
		}
	}
	return p, nil
}

// fillFacebookSecrets falls back to the stored bundle for missing fields.
func (d *Dispatcher) fillFacebookSecrets(ctx context.Context, caller Caller, p *plan) error {
	if d.secrets == nil || caller.OperatorID == "" {
		return nil
	}
	if p.accessToken != "" && (p.pageID != "" || p.channel != messaging.ChannelFacebookPagePost) {
		return nil
	}

	bundle, err := d.secrets.GetBundle(ctx, caller.OperatorID)
	if err != nil {
		return fmt.Errorf("failed to load stored secrets: %w", err)
	}
	if p.accessToken == "" {
		p.accessToken = bundle.Get(secrets.KeyFacebookAccessToken)
	}
	if p.pageID == "" {
		p.pageID = bundle.Get(secrets.KeyFacebookPageID)
	}
	return nil
}

// record writes the job history. Failures are logged and swallowed.
func (d *Dispatcher) record(ctx context.Context, caller Caller, message string, res *messaging.BulkResult) {
	if d.history == nil || caller.OperatorID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	job, records := messaging.NewDispatchJob(caller.OperatorID, message, res)
	if err := d.history.RecordDispatch(ctx, job, records); err != nil {
		d.logger.Warn("failed to record dispatch history",
			zap.String("job_id", res.JobID),
			zap.Error(err),
		)
	}
}
