package record

import "encoding/json"

// Turn is one raw conversation entry as received from the client.
type Turn struct {
	Role    Text `json:"role"`
	Content Text `json:"content"`
}

// Turns is a raw conversation list. Elements that are not objects decode as
// empty turns so that positions are preserved.
type Turns []Turn

func (ts *Turns) UnmarshalJSON(data []byte) error {
	*ts = nil
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make(Turns, len(items))
	for i, item := range items {
		var t Turn
		if err := json.Unmarshal(item, &t); err == nil {
			out[i] = t
		}
	}
	*ts = out
	return nil
}
