package messaging

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSVImport is the outcome of parsing a recipients file.
type CSVImport struct {
	Recipients []Recipient `json:"recipients"`
	Skipped    int         `json:"skipped"`
}

// ParseRecipientsCSV reads "name,contact" rows after a header row. Rows whose
// contact does not fit the channel are skipped and counted.
func ParseRecipientsCSV(r io.Reader, channel Channel) (*CSVImport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	out := &CSVImport{}
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}

		rec := Recipient{Name: strings.TrimSpace(record[0])}
		contact := ""
		if len(record) > 1 {
			contact = strings.TrimSpace(record[1])
		}
		if channel.UsesEmail() {
			rec.Email = contact
		} else {
			rec.PhoneNumber = contact
		}

		if rec.ValidFor(channel) != nil {
			out.Skipped++
			continue
		}
		out.Recipients = append(out.Recipients, rec)
	}
	return out, nil
}
