package main

import (
	"encoding/json"

	eventdb "github.com/stupiduntilnot/kontempo/internal/db"
)

// Request outcomes.
const (
	outcomeReplied  = "replied"
	outcomeFailed   = "failed"
	outcomeInFlight = "in_flight"
)

type node struct {
	eventdb.Event
	fields   map[string]any
	request  *requestOutcome
	children []*node
}

// requestOutcome sums up a request.received subtree.
type requestOutcome struct {
	RequestID  string `json:"request_id"`
	Outcome    string `json:"outcome"`
	ErrorClass string `json:"error_class,omitempty"`
	Attempts   int    `json:"attempts"`
	ModelMs    int64  `json:"model_ms"`
}

// buildTree links events into a tree rooted at rootID. Events arrive in id
// order, so children keep that order.
func buildTree(events []eventdb.Event, rootID int64) *node {
	byID := make(map[int64]*node, len(events))
	nodes := make([]*node, 0, len(events))
	for _, ev := range events {
		n := &node{Event: ev}
		if len(ev.Payload) > 0 {
			// Unreadable payloads render without fields.
			_ = json.Unmarshal(ev.Payload, &n.fields)
		}
		byID[ev.ID] = n
		nodes = append(nodes, n)
	}
	for _, n := range nodes {
		if n.ParentID == nil || *n.ParentID == n.ID {
			continue
		}
		if parent, ok := byID[*n.ParentID]; ok {
			parent.children = append(parent.children, n)
		}
	}
	for _, n := range nodes {
		if n.Type == eventdb.EventRequestReceived {
			n.request = summarizeRequest(n)
		}
	}
	return byID[rootID]
}

func summarizeRequest(n *node) *requestOutcome {
	out := &requestOutcome{
		RequestID: stringField(n.fields, "request_id"),
		Outcome:   outcomeInFlight,
	}
	for _, c := range n.children {
		switch c.Type {
		case eventdb.EventTurnStarted:
			out.Attempts++
		case eventdb.EventTurnCompleted, eventdb.EventTurnFailed:
			out.ModelMs += intField(c.fields, "latency_ms")
		case eventdb.EventReplySent:
			out.Outcome = outcomeReplied
		case eventdb.EventRequestFailed:
			out.Outcome = outcomeFailed
			out.ErrorClass = stringField(c.fields, "error_class")
		}
	}
	return out
}

// dropReplied removes answered requests below n.
func (n *node) dropReplied() {
	kept := n.children[:0]
	for _, c := range n.children {
		if c.request != nil && c.request.Outcome == outcomeReplied {
			continue
		}
		c.dropReplied()
		kept = append(kept, c)
	}
	n.children = kept
}

// descendants counts every node below n.
func (n *node) descendants() int {
	total := len(n.children)
	for _, c := range n.children {
		total += c.descendants()
	}
	return total
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func intField(fields map[string]any, key string) int64 {
	f, _ := fields[key].(float64)
	return int64(f)
}
