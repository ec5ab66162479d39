package messaging

import (
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientValidFor(t *testing.T) {
	assert.NoError(t, Recipient{PhoneNumber: "+1 555-123-4567"}.ValidFor(ChannelSMS))
	assert.NoError(t, Recipient{PhoneNumber: "0712345678"}.ValidFor(ChannelWhatsApp))
	assert.Error(t, Recipient{PhoneNumber: "call me"}.ValidFor(ChannelSMS))
	assert.Error(t, Recipient{PhoneNumber: "+15551234567", Email: "ops@example.com"}.ValidFor(ChannelSMS))
	assert.Error(t, Recipient{PhoneNumber: "+15551234567", Email: "ops@example.com"}.ValidFor(ChannelEmail))
	assert.Error(t, Recipient{}.ValidFor(ChannelSMS))

	assert.NoError(t, Recipient{Email: "ops@example.com"}.ValidFor(ChannelEmail))
	assert.Error(t, Recipient{Email: "ops.example.com"}.ValidFor(ChannelEmail))

	assert.NoError(t, Recipient{PhoneNumber: "2456789012"}.ValidFor(ChannelFacebookMessenger))
	assert.Error(t, Recipient{}.ValidFor(ChannelFacebookMessenger))
}

func TestParseChannel(t *testing.T) {
	c, err := ParseChannel(" SMS ")
	require.NoError(t, err)
	assert.Equal(t, ChannelSMS, c)

	_, err = ParseChannel("telegram")
	assert.Error(t, err)
}

func TestParseRecipientsCSV(t *testing.T) {
	in := "name,contact\nAlice,+15551234567\nBob,not-a-number!\n\nCarol, 0722 000 111\n"

	res, err := ParseRecipientsCSV(strings.NewReader(in), ChannelSMS)
	require.NoError(t, err)
	require.Len(t, res.Recipients, 2)
	assert.Equal(t, "Alice", res.Recipients[0].Name)
	assert.Equal(t, "0722 000 111", res.Recipients[1].PhoneNumber)
	assert.Equal(t, 1, res.Skipped)
}

func TestParseRecipientsCSVEmail(t *testing.T) {
	in := "name,contact\nAlice,alice@example.com\nBob,+15551234567\nEve\n"

	res, err := ParseRecipientsCSV(strings.NewReader(in), ChannelEmail)
	require.NoError(t, err)
	require.Len(t, res.Recipients, 1)
	assert.Equal(t, "alice@example.com", res.Recipients[0].Email)
	assert.Equal(t, 2, res.Skipped)
}

func TestNewDispatchJob(t *testing.T) {
	res := &BulkResult{
		JobID:   "job-1",
		Channel: ChannelSMS,
		Results: []DeliveryResult{
			{Recipient: Recipient{PhoneNumber: "+1"}, Success: true, Result: []byte(`{"id":"m1"}`)},
			{Recipient: Recipient{PhoneNumber: "+2"}, Error: "backend returned 500"},
		},
		Succeeded: 1,
		Total:     2,
	}

	job, records := NewDispatchJob("op-1", "héllo", res)
	assert.Equal(t, 5, job.MessageLength)
	assert.Equal(t, []string{"+2"}, []string(job.FailedRecipients))
	require.Len(t, records, 2)
	assert.Equal(t, `{"id":"m1"}`, records[0].Detail)
	assert.Equal(t, "backend returned 500", records[1].Detail)
	assert.Equal(t, 1, records[1].Position)

	// text[] literal written to dispatch_jobs.failed_recipients
	v, err := job.FailedRecipients.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"+2"}`, v)

	var back pq.StringArray
	require.NoError(t, back.Scan([]byte(`{"+2","a,b"}`)))
	assert.Equal(t, []string{"+2", "a,b"}, []string(back))
}

func TestNewDispatchJobWithoutFailures(t *testing.T) {
	job, _ := NewDispatchJob("op-1", "hi", &BulkResult{JobID: "job-2", Channel: ChannelSMS})
	require.NotNil(t, job.FailedRecipients)

	v, err := job.FailedRecipients.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}
