package record

import (
	"bytes"
	"encoding/json"
)

// Defaults returned by record accessors when a field is absent.
const (
	PlaceholderName = "Sin nombre"
	StatusUnknown   = "unknown"
)

// Approval statuses known to the credit program.
const (
	StatusActive    = "active"
	StatusPending   = "pending"
	StatusRejected  = "rejected"
	StatusSuspended = "suspended"
)

// Order payment statuses.
const (
	PaymentDue             = "due"
	PaymentCompletedOnTime = "completed_on_time"
	PaymentCompletedLate   = "completed_late"
)

// Credit is a buyer's credit line.
type Credit struct {
	Limit Amount `json:"credit_limit"`
	Used  Amount `json:"credit_used"`
}

// UnmarshalJSON reads anything other than an object as zero credit.
func (c *Credit) UnmarshalJSON(data []byte) error {
	*c = Credit{}
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	type plain Credit
	var p plain
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	*c = Credit(p)
	return nil
}

// Buyer is a merchant's end customer in the credit program.
type Buyer struct {
	Account         Text            `json:"buyer_account"`
	DisplayName     Text            `json:"display_name"`
	Email           Text            `json:"email"`
	ApprovalStatus  Text            `json:"approval_status"`
	SubStatus       Text            `json:"sub_status"`
	Credit          *Credit         `json:"credit"`
	Address         json.RawMessage `json:"address,omitempty"`
	TaxID           Text            `json:"tax_id"`
	FoundingYear    Text            `json:"founding_year"`
	RequestedAmount Amount          `json:"requested_amount"`
	Revenue         Amount          `json:"revenue"`
}

// Name returns the display name, or PlaceholderName when absent.
func (b Buyer) Name() string {
	return b.DisplayName.Or(PlaceholderName)
}

// Status returns the approval status as given, or StatusUnknown when absent.
func (b Buyer) Status() string {
	return b.ApprovalStatus.Or(StatusUnknown)
}

// CreditLine returns the buyer's credit, zero-valued when absent.
func (b Buyer) CreditLine() Credit {
	if b.Credit == nil {
		return Credit{}
	}
	return *b.Credit
}

// Order is a transaction placed by a buyer. BuyerAccount need not resolve.
type Order struct {
	BuyerAccount    Text   `json:"buyer_account"`
	Amount          Amount `json:"amount"`
	PaymentStatus   Text   `json:"payment_status"`
	Created         Text   `json:"created"`
	ExternalOrderID Text   `json:"external_order_id"`
	Currency        Text   `json:"currency"`
	PayoutAmount    Amount `json:"payout_amount"`
}

// IsDue reports whether the order is in "due" payment status.
func (o Order) IsDue() bool {
	return o.PaymentStatus.String() == PaymentDue
}

// Payout is a payment received by the merchant.
type Payout struct {
	Amount     Amount `json:"amount"`
	PayoutDate Text   `json:"payout_date"`
	Status     Text   `json:"status"`
	Currency   Text   `json:"currency"`
	PayoutID   Text   `json:"payout_id"`
}

// PaymentLink is an outstanding link in the sales pipeline.
type PaymentLink struct {
	CartTotal    Amount `json:"cart_total"`
	Expires      Text   `json:"expires"`
	Created      Text   `json:"created"`
	BuyerAccount Text   `json:"buyer_account"`
	Status       Text   `json:"status"`
	Description  Text   `json:"description"`
}
