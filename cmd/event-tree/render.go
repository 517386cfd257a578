package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

const maxValueRunes = 80

type textWriter struct {
	w    io.Writer
	opts options
	err  error
}

// writeText renders the tree with box-drawing connectors, one event per line.
func writeText(w io.Writer, root *node, opts options) error {
	tw := &textWriter{w: w, opts: opts}
	tw.println(tw.line(root))
	tw.walk(root, "", 1)
	return tw.err
}

func (tw *textWriter) walk(n *node, indent string, depth int) {
	if tw.opts.maxDepth > 0 && depth >= tw.opts.maxDepth {
		if hidden := n.descendants(); hidden > 0 {
			tw.println(fmt.Sprintf("%s└── [... %d hidden]", indent, hidden))
		}
		return
	}
	for i, c := range n.children {
		branch, next := "├── ", "│   "
		if i == len(n.children)-1 {
			branch, next = "└── ", "    "
		}
		tw.println(indent + branch + tw.line(c))
		tw.walk(c, indent+next, depth+1)
	}
}

func (tw *textWriter) println(s string) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintln(tw.w, s)
}

// line formats one event: [id] time  type  outcome  key=value ...
func (tw *textWriter) line(n *node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] %s  %s", n.ID, time.Unix(n.Timestamp, 0).UTC().Format(time.DateTime), n.Type)
	if r := n.request; r != nil {
		sb.WriteString("  " + describeRequest(r))
	}
	if tw.opts.noPayload {
		return sb.String()
	}
	for _, k := range slices.Sorted(maps.Keys(n.fields)) {
		if n.request != nil && k == "request_id" {
			continue
		}
		sb.WriteString("  " + k + "=" + formatValue(n.fields[k]))
	}
	return sb.String()
}

func describeRequest(r *requestOutcome) string {
	id := r.RequestID
	if id == "" {
		id = "-"
	}
	outcome := r.Outcome
	if r.ErrorClass != "" {
		outcome += "(" + r.ErrorClass + ")"
	}
	return fmt.Sprintf("%s → %s  attempts=%d  model_ms=%d", id, outcome, r.Attempts, r.ModelMs)
}

// formatValue renders a payload value, quoting text with spaces and
// truncating long text.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if runes := []rune(val); len(runes) > maxValueRunes {
			return strconv.Quote(string(runes[:maxValueRunes]) + "...")
		}
		if val == "" || strings.ContainsAny(val, " \t\n\"") {
			return strconv.Quote(val)
		}
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return "null"
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

type jsonNode struct {
	ID        int64           `json:"id"`
	Timestamp int64           `json:"timestamp"`
	EventType string          `json:"event_type"`
	Request   *requestOutcome `json:"request,omitempty"`
	Payload   map[string]any  `json:"payload,omitempty"`
	Hidden    int             `json:"hidden,omitempty"`
	Children  []jsonNode      `json:"children,omitempty"`
}

func toJSONNode(n *node, depth int, opts options) jsonNode {
	out := jsonNode{
		ID:        n.ID,
		Timestamp: n.Timestamp,
		EventType: n.Type,
		Request:   n.request,
	}
	if !opts.noPayload {
		out.Payload = n.fields
	}
	if opts.maxDepth > 0 && depth >= opts.maxDepth {
		out.Hidden = n.descendants()
		return out
	}
	for _, c := range n.children {
		out.Children = append(out.Children, toJSONNode(c, depth+1, opts))
	}
	return out
}

func writeJSON(w io.Writer, root *node, opts options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toJSONNode(root, 1, opts)); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
