package chat

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the response body of the chat endpoints. A success carries
// response, timestamp and model; an error carries only error.
type Envelope struct {
	Response  string `json:"response"`
	Timestamp int64  `json:"timestamp"`
	Model     string `json:"model"`
	Error     string `json:"error"`
	Status    string `json:"status"`
}

func successEnvelope(r Reply) Envelope {
	return Envelope{
		Response:  r.Text,
		Timestamp: r.Timestamp.Unix(),
		Model:     r.Model,
		Status:    StatusSuccess,
	}
}

func errorEnvelope(err error) Envelope {
	return Envelope{Error: err.Error(), Status: StatusError}
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Status == StatusError {
		return json.Marshal(struct {
			Error  string `json:"error"`
			Status string `json:"status"`
		}{e.Error, e.Status})
	}
	return json.Marshal(struct {
		Response  string `json:"response"`
		Timestamp int64  `json:"timestamp"`
		Model     string `json:"model"`
		Status    string `json:"status"`
	}{e.Response, e.Timestamp, e.Model, e.Status})
}
