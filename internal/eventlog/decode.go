// Package eventlog reads and writes the line-delimited JSON logs consumed and
// produced by the detector.
package eventlog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"purchase-anomaly-alerts/internal/network"
)

// ErrMalformedRecord marks lines that are not valid, fully keyed records.
var ErrMalformedRecord = errors.New("eventlog: malformed record")

// Params are the network parameters carried on the first batch line.
type Params struct {
	Degree      int
	HistorySize int
}

// ParseParams decodes {"D": ..., "T": ...}; both accept a string or a number.
func ParseParams(line []byte) (Params, error) {
	if !gjson.ValidBytes(line) {
		return Params{}, fmt.Errorf("%w: invalid json", ErrMalformedRecord)
	}
	res := gjson.ParseBytes(line)

	d, err := intField(res, "D")
	if err != nil {
		return Params{}, err
	}
	t, err := intField(res, "T")
	if err != nil {
		return Params{}, err
	}
	if d < 0 || t < 0 {
		return Params{}, fmt.Errorf("%w: D and T must not be negative", ErrMalformedRecord)
	}
	return Params{Degree: int(d), HistorySize: int(t)}, nil
}

// ParseEvent decodes one event line. Unrecognised event_type values wrap
// network.ErrUnknownEventKind.
func ParseEvent(line []byte) (network.Event, error) {
	if !gjson.ValidBytes(line) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedRecord)
	}
	res := gjson.ParseBytes(line)

	kind, err := stringField(res, "event_type")
	if err != nil {
		return nil, err
	}

	switch kind {
	case "purchase":
		return parsePurchase(res)
	case "befriend", "unfriend":
		id1, err := intField(res, "id1")
		if err != nil {
			return nil, err
		}
		id2, err := intField(res, "id2")
		if err != nil {
			return nil, err
		}
		if kind == "befriend" {
			return network.BefriendEvent{User1: id1, User2: id2}, nil
		}
		return network.UnfriendEvent{User1: id1, User2: id2}, nil
	default:
		return nil, fmt.Errorf("%w: %q", network.ErrUnknownEventKind, kind)
	}
}

func parsePurchase(res gjson.Result) (network.Event, error) {
	id, err := intField(res, "id")
	if err != nil {
		return nil, err
	}

	rawTS, err := stringField(res, "timestamp")
	if err != nil {
		return nil, err
	}
	ts, err := time.Parse(network.TimestampLayout, rawTS)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp %q: %v", ErrMalformedRecord, rawTS, err)
	}

	amountText, err := scalarField(res, "amount")
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", ErrMalformedRecord, amountText, err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount %q is negative", ErrMalformedRecord, amountText)
	}

	return network.PurchaseEvent{
		UserID:     id,
		Timestamp:  ts,
		Amount:     amount,
		AmountText: amountText,
		IDToken:    res.Get("id").Raw,
	}, nil
}

// scalarField returns the field's text for either a JSON string or number,
// keeping numbers exactly as written.
func scalarField(res gjson.Result, key string) (string, error) {
	field := res.Get(key)
	switch field.Type {
	case gjson.String:
		return strings.TrimSpace(field.Str), nil
	case gjson.Number:
		return field.Raw, nil
	default:
		if !field.Exists() {
			return "", fmt.Errorf("%w: missing %q", ErrMalformedRecord, key)
		}
		return "", fmt.Errorf("%w: %q must be a string or number", ErrMalformedRecord, key)
	}
}

func stringField(res gjson.Result, key string) (string, error) {
	field := res.Get(key)
	if !field.Exists() {
		return "", fmt.Errorf("%w: missing %q", ErrMalformedRecord, key)
	}
	if field.Type != gjson.String {
		return "", fmt.Errorf("%w: %q must be a string", ErrMalformedRecord, key)
	}
	return field.Str, nil
}

func intField(res gjson.Result, key string) (int64, error) {
	text, err := scalarField(res, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer: %q", ErrMalformedRecord, key, text)
	}
	return v, nil
}
