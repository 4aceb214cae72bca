package claude

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// streamLine is the wire shape of one line of stream-json output.
type streamLine struct {
	Type          string          `json:"type"`
	Subtype       string          `json:"subtype,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	Message       *messagePayload `json:"message,omitempty"`
	Error         *errorInfo      `json:"error,omitempty"`
	Result        string          `json:"result,omitempty"`
	DurationMS    int64           `json:"duration_ms,omitempty"`
	DurationAPIMS int64           `json:"duration_api_ms,omitempty"`
	IsError       bool            `json:"is_error,omitempty"`
	NumTurns      int             `json:"num_turns,omitempty"`
	TotalCostUSD  float64         `json:"total_cost_usd,omitempty"`
	Usage         map[string]any  `json:"usage,omitempty"`
}

type messagePayload struct {
	Role    string         `json:"role,omitempty"`
	Content []contentBlock `json:"content,omitempty"`
}

type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	Name    string          `json:"name,omitempty"`
	Input   map[string]any  `json:"input,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
}

type errorInfo struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// StreamParser parses Claude Code stream-json output into Events.
type StreamParser struct {
	onEvent   func(Event)
	onError   func(error)
	lineCount int

	// errMessage records the first error event seen on the stream.
	errMessage string
}

// NewStreamParser creates a parser with event callbacks. Either
// callback may be nil.
func NewStreamParser(onEvent func(Event), onError func(error)) *StreamParser {
	return &StreamParser{
		onEvent: onEvent,
		onError: onError,
	}
}

// ParseLine parses a single line of stream-json output and emits the
// resulting events. A message line with several content blocks emits
// one event per block.
func (p *StreamParser) ParseLine(line string) []Event {
	p.lineCount++
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var raw streamLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		if p.onError != nil {
			p.onError(fmt.Errorf("parse stream line: %w", err))
		}
		return nil
	}

	events := p.convert(&raw, line)
	for i := range events {
		if p.onEvent != nil {
			p.onEvent(events[i])
		}
	}
	return events
}

func (p *StreamParser) convert(raw *streamLine, line string) []Event {
	switch raw.Type {
	case "assistant", "user":
		if raw.Message == nil {
			return []Event{{Type: EventUnknown, MessageKind: raw.Type, SessionID: raw.SessionID, Raw: line}}
		}
		events := make([]Event, 0, len(raw.Message.Content))
		for i := range raw.Message.Content {
			events = append(events, blockEvent(raw, &raw.Message.Content[i], line))
		}
		return events

	case "result":
		return []Event{{
			Type:        EventResult,
			MessageKind: raw.Type,
			SessionID:   raw.SessionID,
			Raw:         line,
			Summary: &ResultSummary{
				SessionID:     raw.SessionID,
				Subtype:       raw.Subtype,
				Result:        raw.Result,
				DurationMS:    raw.DurationMS,
				DurationAPIMS: raw.DurationAPIMS,
				IsError:       raw.IsError,
				NumTurns:      raw.NumTurns,
				TotalCostUSD:  raw.TotalCostUSD,
				Usage:         raw.Usage,
			},
		}}

	case "error":
		msg := "unknown stream error"
		if raw.Error != nil && raw.Error.Message != "" {
			msg = raw.Error.Message
		}
		if p.errMessage == "" {
			p.errMessage = msg
		}
		return []Event{{Type: EventUnknown, MessageKind: raw.Type, SessionID: raw.SessionID, Content: msg, IsError: true, Raw: line}}

	default:
		// system/init lines and anything we don't recognize
		return []Event{{Type: EventUnknown, MessageKind: raw.Type, SessionID: raw.SessionID, Raw: line}}
	}
}

func blockEvent(raw *streamLine, block *contentBlock, line string) Event {
	ev := Event{
		MessageKind: raw.Type,
		SessionID:   raw.SessionID,
		Raw:         line,
	}
	switch block.Type {
	case "text":
		ev.Type = EventText
		ev.Text = block.Text
	case "tool_use":
		ev.Type = EventToolUse
		ev.ToolName = block.Name
		ev.ToolInput = block.Input
	case "tool_result":
		ev.Type = EventToolResult
		ev.Content = toolResultText(block.Content)
		ev.IsError = block.IsError
	default:
		ev.Type = EventUnknown
	}
	return ev
}

// toolResultText flattens tool result content, which arrives either as
// a plain string or as a list of content blocks.
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for i := range blocks {
			if blocks[i].Text != "" {
				parts = append(parts, blocks[i].Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}

// ParseReader reads and parses stream-json from r until EOF.
func (p *StreamParser) ParseReader(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	// Long tool results can produce very long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		p.ParseLine(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// LineCount returns the number of lines parsed.
func (p *StreamParser) LineCount() int {
	return p.lineCount
}

// StreamError returns the first error event message seen, or "" if the
// stream carried no error.
func (p *StreamParser) StreamError() string {
	return p.errMessage
}
