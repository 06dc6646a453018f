// callback.go describes the asynchronous confirmation the gateway POSTs to
// our callback URL. Metadata arrives as an unordered list of name/value
// items, so fields are looked up by name rather than position.
package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CallbackEnvelope is the outer shape of the Daraja confirmation body.
type CallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// StkCallback carries the payment outcome. ResultCode 0 means the payer
// authorized the payment; anything else is a business decline (cancelled,
// insufficient funds, timeout on the handset).
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata is the loosely-typed item list. Values are numbers or
// strings depending on the item, so they are kept raw until looked up.
type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem is one name/value pair from the callback metadata.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// Amount returns the paid amount. Daraja sends it as a JSON number
// (occasionally with a decimal point for whole shillings).
func (m *CallbackMetadata) Amount() (int64, error) {
	raw, ok := m.lookup("Amount")
	if !ok {
		return 0, fmt.Errorf("callback metadata missing item %q", "Amount")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		// some sandboxes quote the number
		var s string
		if err2 := json.Unmarshal(raw, &s); err2 != nil {
			return 0, fmt.Errorf("non-numeric Amount value: %w", err)
		}
		f2, err2 := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err2 != nil {
			return 0, fmt.Errorf("non-numeric Amount value %q", s)
		}
		f = f2
	}
	return int64(f), nil
}

// PhoneNumber returns the payer's phone number as a string regardless of
// whether the gateway sent it as a number or a string.
func (m *CallbackMetadata) PhoneNumber() (string, error) {
	raw, ok := m.lookup("PhoneNumber")
	if !ok {
		return "", fmt.Errorf("callback metadata missing item %q", "PhoneNumber")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	return "", fmt.Errorf("unreadable PhoneNumber value %s", string(raw))
}

// ReceiptNumber returns the M-Pesa receipt if present. It is optional:
// declined payments and some sandbox callbacks omit it.
func (m *CallbackMetadata) ReceiptNumber() string {
	raw, ok := m.lookup("MpesaReceiptNumber")
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (m *CallbackMetadata) lookup(name string) (json.RawMessage, bool) {
	for _, item := range m.Item {
		if item.Name == name {
			return item.Value, true
		}
	}
	return nil, false
}
