package messaging

import (
	"time"

	"github.com/lib/pq"
)

// DispatchJob is the persisted summary of one bulk send, used for the
// activity feed.
type DispatchJob struct {
	ID               string         `json:"id" db:"id"`
	OperatorID       string         `json:"operator_id" db:"operator_id"`
	Channel          Channel        `json:"channel" db:"channel"`
	MessageLength    int            `json:"message_length" db:"message_length"`
	Total            int            `json:"total" db:"total"`
	Succeeded        int            `json:"succeeded" db:"succeeded"`
	FailedRecipients pq.StringArray `json:"failed_recipients" db:"failed_recipients"`
	LengthExceeded   bool           `json:"length_exceeded" db:"length_exceeded"`
	StartedAt        time.Time      `json:"started_at" db:"started_at"`
	FinishedAt       time.Time      `json:"finished_at" db:"finished_at"`
}

// DispatchRecord is one per-recipient row of a job.
type DispatchRecord struct {
	JobID     string `db:"job_id"`
	Position  int    `db:"position"`
	Recipient string `db:"recipient"`
	Success   bool   `db:"success"`
	Detail    string `db:"detail"`
}

// NewDispatchJob summarises a finished bulk result.
func NewDispatchJob(operatorID, message string, res *BulkResult) (*DispatchJob, []DispatchRecord) {
	job := &DispatchJob{
		ID:               res.JobID,
		OperatorID:       operatorID,
		Channel:          res.Channel,
		MessageLength:    len([]rune(message)),
		Total:            res.Total,
		Succeeded:        res.Succeeded,
		FailedRecipients: pq.StringArray(res.Failed()),
		LengthExceeded:   res.LengthExceeded,
		StartedAt:        res.StartedAt,
		FinishedAt:       res.FinishedAt,
	}
	if job.FailedRecipients == nil {
		job.FailedRecipients = pq.StringArray{}
	}

	records := make([]DispatchRecord, len(res.Results))
	for i, r := range res.Results {
		detail := r.Error
		if r.Success {
			detail = string(r.Result)
		}
		records[i] = DispatchRecord{
			JobID:     res.JobID,
			Position:  i,
			Recipient: r.Recipient.Address(res.Channel),
			Success:   r.Success,
			Detail:    detail,
		}
	}
	return job, records
}
