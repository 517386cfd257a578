package chat

import (
	"bytes"
	"encoding/json"

	"github.com/stupiduntilnot/kontempo/internal/record"
)

// Request is the body of POST /chat.
type Request struct {
	Query               record.Text    `json:"query"`
	Context             record.Dataset `json:"context"`
	User                User           `json:"user"`
	ConversationHistory record.Turns   `json:"conversation_history"`
}

// User describes who is asking. Anything other than an object decodes as
// an empty User.
type User struct {
	Role record.Text `json:"role"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	*u = User{}
	var raw struct {
		Role record.Text `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	u.Role = raw.Role
	return nil
}

// DecodeRequest decodes a chat request. Only a body that is not a JSON
// object is an error; malformed fields fall back to their defaults.
func DecodeRequest(body []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// testRequest is the body of POST /test.
type testRequest struct {
	Query               record.Text  `json:"query"`
	Role                record.Text  `json:"role"`
	ConversationHistory record.Turns `json:"conversation_history"`
}

const defaultTestQuery = "¿Cómo va mi programa de crédito?"

// decodeTestRequest accepts an empty body.
func decodeTestRequest(body []byte) (testRequest, error) {
	var req testRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return testRequest{}, err
	}
	return req, nil
}

// MockDataset is the fixed portfolio served by POST /test.
func MockDataset() record.Dataset {
	return record.Dataset{
		Buyers: []record.Buyer{{
			Account:        "buy_123",
			DisplayName:    "Test Client",
			ApprovalStatus: record.StatusActive,
			Credit:         &record.Credit{Limit: 100000, Used: 50000},
		}},
		Orders: []record.Order{{
			BuyerAccount:  "buy_123",
			Amount:        50000,
			PaymentStatus: "pristine",
		}},
		Payouts: []record.Payout{{
			Amount:     45000,
			PayoutDate: "1234567890",
		}},
		PaymentLinks: []record.PaymentLink{{
			CartTotal: 25000,
			Expires:   "1234567890",
		}},
	}
}

func (t testRequest) chatRequest() Request {
	return Request{
		Query:               record.Text(t.Query.Or(defaultTestQuery)),
		Context:             MockDataset(),
		User:                User{Role: t.Role},
		ConversationHistory: t.ConversationHistory,
	}
}
