package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var errNullRecord = errors.New("record is null")

// Fault records a list element or section that could not be read as a record.
type Fault struct {
	Path string
	Err  error
}

func (f Fault) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

func (f Fault) Unwrap() error {
	return f.Err
}

// Dataset is the portfolio snapshot sent with a single request. Elements
// that are not JSON objects are dropped from their list and reported in
// Faults instead of failing the decode.
type Dataset struct {
	Buyers       []Buyer
	Orders       []Order
	Payouts      []Payout
	PaymentLinks []PaymentLink
	Faults       []Fault
}

type rawDataset struct {
	Buyers       json.RawMessage `json:"buyers"`
	Orders       json.RawMessage `json:"orders"`
	Payouts      json.RawMessage `json:"payouts"`
	PaymentLinks json.RawMessage `json:"payment_links"`
}

func (d *Dataset) UnmarshalJSON(data []byte) error {
	*d = Dataset{}
	if isNull(data) {
		return nil
	}
	var raw rawDataset
	if err := json.Unmarshal(data, &raw); err != nil {
		d.Faults = append(d.Faults, Fault{Path: "context", Err: err})
		return nil
	}
	d.Buyers = decodeList[Buyer](raw.Buyers, "buyers", &d.Faults)
	d.Orders = decodeList[Order](raw.Orders, "orders", &d.Faults)
	d.Payouts = decodeList[Payout](raw.Payouts, "payouts", &d.Faults)
	d.PaymentLinks = decodeList[PaymentLink](raw.PaymentLinks, "payment_links", &d.Faults)
	return nil
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Buyers       []Buyer       `json:"buyers"`
		Orders       []Order       `json:"orders"`
		Payouts      []Payout      `json:"payouts"`
		PaymentLinks []PaymentLink `json:"payment_links"`
	}{d.Buyers, d.Orders, d.Payouts, d.PaymentLinks})
}

// Err returns the first record fault, or nil when every record was readable.
func (d Dataset) Err() error {
	if len(d.Faults) == 0 {
		return nil
	}
	return d.Faults[0]
}

func decodeList[T any](raw json.RawMessage, name string, faults *[]Fault) []T {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		*faults = append(*faults, Fault{Path: name, Err: err})
		return nil
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("%s[%d]", name, i)
		if isNull(item) {
			*faults = append(*faults, Fault{Path: path, Err: errNullRecord})
			continue
		}
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			*faults = append(*faults, Fault{Path: path, Err: err})
			continue
		}
		out = append(out, v)
	}
	return out
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
