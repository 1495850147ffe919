package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"purchase-anomaly-alerts/internal/network"
)

// FlaggedRecord is one output line. Field order is part of the format.
type FlaggedRecord struct {
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	ID        json.RawMessage `json:"id"`
	Amount    string `json:"amount"`
	Mean      string `json:"mean"`
	SD        string `json:"sd"`
}

// NewFlaggedRecord renders an anomaly for output. The id keeps its input
// token, so a quoted id stays quoted; purchases built in code write a number.
func NewFlaggedRecord(a network.Anomaly) FlaggedRecord {
	id := a.Purchase.IDToken
	if id == "" || !gjson.Valid(id) {
		id = strconv.FormatInt(a.Purchase.UserID, 10)
	}
	return FlaggedRecord{
		EventType: "purchase",
		Timestamp: a.Purchase.Timestamp.Format(network.TimestampLayout),
		ID:        json.RawMessage(id),
		Amount:    a.Purchase.DisplayAmount(),
		Mean:      a.Mean(),
		SD:        a.StdDev(),
	}
}

// UserID parses the id, written either as a JSON string or a number.
func (r FlaggedRecord) UserID() (int64, error) {
	if !gjson.ValidBytes(r.ID) {
		return 0, fmt.Errorf("%w: id %q", ErrMalformedRecord, r.ID)
	}
	return strconv.ParseInt(strings.TrimSpace(gjson.ParseBytes(r.ID).String()), 10, 64)
}

// Time parses the record timestamp.
func (r FlaggedRecord) Time() (time.Time, error) {
	return time.Parse(network.TimestampLayout, r.Timestamp)
}

// Writer appends flagged records as JSON lines.
type Writer struct {
	buf *bufio.Writer
	enc *json.Encoder
	n   int
}

// NewWriter wraps w. Call Flush before closing w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{buf: buf, enc: enc}
}

// Write appends one anomaly line.
func (w *Writer) Write(a network.Anomaly) error {
	if err := w.enc.Encode(NewFlaggedRecord(a)); err != nil {
		return fmt.Errorf("encode flagged purchase: %w", err)
	}
	w.n++
	return nil
}

// Written counts records written so far.
func (w *Writer) Written() int { return w.n }

// Flush writes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return w.buf.Flush()
}

// ReadFlagged decodes a previously written output log.
func ReadFlagged(r io.Reader) ([]FlaggedRecord, error) {
	sc := NewScanner(r)
	var records []FlaggedRecord
	for {
		raw, err := sc.nextLine()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		var rec FlaggedRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", sc.Line(), ErrMalformedRecord, err)
		}
		records = append(records, rec)
	}
}
