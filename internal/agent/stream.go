package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jorge-barreto/ok/internal/ux"
)

// streamResult accumulates what the stream reports before the final result.
type streamResult struct {
	text       strings.Builder
	final      string
	hasFinal   bool
	structured json.RawMessage
	costUSD    float64
	turns      int
	durationMS int64
	isError    bool
	errors     []string
	sessionID  string
}

func (s *streamResult) toResult() *Result {
	text := s.text.String()
	if s.hasFinal {
		text = s.final
	}
	return &Result{
		Text:       text,
		Structured: s.structured,
		CostUSD:    s.costUSD,
		Turns:      s.turns,
		Duration:   time.Duration(s.durationMS) * time.Millisecond,
		IsError:    s.isError,
		Errors:     s.errors,
		SessionID:  s.sessionID,
	}
}

// streamEvent is the top-level JSON structure of one stream-json line.
type streamEvent struct {
	Type      string       `json:"type"`
	Subtype   string       `json:"subtype"`
	SessionID string       `json:"session_id"`
	Message   *messageBody `json:"message"`

	// Fields for "result" type
	Result           json.RawMessage `json:"result"`
	StructuredOutput json.RawMessage `json:"structured_output"`
	TotalCostUSD     float64         `json:"total_cost_usd"`
	NumTurns         int             `json:"num_turns"`
	DurationMS       int64           `json:"duration_ms"`
	IsError          bool            `json:"is_error"`
	Errors           []string        `json:"errors"`
}

type messageBody struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// processStream reads stream-json lines, echoes assistant text to display
// and the log, prints tool uses inline, and extracts the final result.
// A nil display runs quietly.
func processStream(ctx context.Context, stdout io.Reader, display io.Writer, logFile io.Writer) (*streamResult, error) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)

	var res streamResult
	for scanner.Scan() {
		if ctx.Err() != nil {
			return &res, ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			// Not every line is an event; keep it in the transcript.
			if logFile != nil {
				fmt.Fprintf(logFile, "%s\n", line)
			}
			continue
		}
		if event.SessionID != "" {
			res.sessionID = event.SessionID
		}

		switch event.Type {
		case "assistant":
			handleAssistantEvent(&event, &res, display, logFile)
		case "result":
			handleResultEvent(&event, &res)
		}
	}

	if err := scanner.Err(); err != nil {
		return &res, fmt.Errorf("reading stream: %w", err)
	}
	return &res, nil
}

func handleAssistantEvent(event *streamEvent, res *streamResult, display, logFile io.Writer) {
	if event.Message == nil {
		return
	}
	for _, block := range event.Message.Content {
		switch block.Type {
		case "text":
			text := block.Text
			if !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
			res.text.WriteString(text)
			if display != nil {
				fmt.Fprint(display, text)
			}
			if logFile != nil {
				fmt.Fprint(logFile, text)
			}
		case "tool_use":
			summary := toolUseSummary(block.Name, string(block.Input))
			if display != nil {
				ux.ToolUse(block.Name, summary)
			}
			if logFile != nil {
				fmt.Fprintf(logFile, "> %s %s\n", block.Name, summary)
			}
		}
	}
}

func handleResultEvent(event *streamEvent, res *streamResult) {
	var final string
	if len(event.Result) > 0 && json.Unmarshal(event.Result, &final) == nil {
		res.final = final
		res.hasFinal = true
	}
	if len(event.StructuredOutput) > 0 && string(event.StructuredOutput) != "null" {
		res.structured = event.StructuredOutput
	}
	res.costUSD = event.TotalCostUSD
	res.turns = event.NumTurns
	res.durationMS = event.DurationMS
	res.isError = event.IsError
	res.errors = event.Errors
	if event.IsError && len(res.errors) == 0 && event.Subtype != "" && event.Subtype != "success" {
		res.errors = []string{event.Subtype}
	}
}

// toolUseSummary extracts the most informative field from tool input JSON.
func toolUseSummary(toolName, rawJSON string) string {
	if rawJSON == "" {
		return ""
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(rawJSON), &obj); err != nil {
		return rawJSON
	}

	var key string
	switch toolName {
	case "Bash":
		key = "command"
	case "Read", "Write", "Edit":
		key = "file_path"
	case "Grep", "Glob":
		key = "pattern"
	default:
		for _, v := range obj {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return rawJSON
	}

	s, ok := obj[key].(string)
	if !ok {
		return rawJSON
	}
	switch key {
	case "command":
		first, _, more := strings.Cut(s, "\n")
		if more {
			first += " ..."
		}
		return first
	case "file_path":
		return relPath(s)
	}
	return s
}

// relPath shortens paths under the working directory.
func relPath(p string) string {
	cwd, err := os.Getwd()
	if err != nil || !filepath.IsAbs(p) {
		return p
	}
	if rel, err := filepath.Rel(cwd, p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return p
}
