package agent

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func streamLines(lines ...string) *bytes.Reader {
	return bytes.NewReader([]byte(strings.Join(lines, "\n") + "\n"))
}

func TestProcessStream_AssistantText(t *testing.T) {
	input := streamLines(
		`{"type":"system","subtype":"init","session_id":"sess-1"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"Hello"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"world\n"}]}}`,
	)

	var display, log bytes.Buffer
	res, err := processStream(context.Background(), input, &display, &log)
	if err != nil {
		t.Fatal(err)
	}
	got := res.toResult()
	if got.Text != "Hello\nworld\n" {
		t.Fatalf("Text = %q", got.Text)
	}
	if display.String() != "Hello\nworld\n" {
		t.Fatalf("display = %q", display.String())
	}
	if !strings.Contains(log.String(), "world") {
		t.Fatalf("log = %q", log.String())
	}
	if got.SessionID != "sess-1" {
		t.Fatalf("SessionID = %q", got.SessionID)
	}
}

func TestProcessStream_ResultEvent(t *testing.T) {
	input := streamLines(
		`{"type":"assistant","message":{"content":[{"type":"text","text":"thinking"}]}}`,
		`{"type":"result","subtype":"success","is_error":false,"duration_ms":2500,"num_turns":4,"result":"done","total_cost_usd":0.12,"session_id":"s2","structured_output":{"assertions":["a"]}}`,
	)

	res, err := processStream(context.Background(), input, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := res.toResult()
	if got.Text != "done" {
		t.Fatalf("final result should win over streamed text, got %q", got.Text)
	}
	if got.Turns != 4 || got.CostUSD != 0.12 {
		t.Fatalf("Turns=%d CostUSD=%f", got.Turns, got.CostUSD)
	}
	if got.Duration.Milliseconds() != 2500 {
		t.Fatalf("Duration = %v", got.Duration)
	}
	if string(got.Structured) != `{"assertions":["a"]}` {
		t.Fatalf("Structured = %s", got.Structured)
	}
	if got.Failed() {
		t.Fatal("result should not be failed")
	}
}

func TestProcessStream_ErrorResult(t *testing.T) {
	input := streamLines(
		`{"type":"result","subtype":"error_max_turns","is_error":true,"num_turns":1}`,
	)
	res, err := processStream(context.Background(), input, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := res.toResult()
	if !got.Failed() {
		t.Fatal("expected failed result")
	}
	if got.ErrorSummary() != "error_max_turns" {
		t.Fatalf("ErrorSummary = %q", got.ErrorSummary())
	}
}

func TestProcessStream_NullStructuredIgnored(t *testing.T) {
	input := streamLines(`{"type":"result","result":"x","structured_output":null}`)
	res, err := processStream(context.Background(), input, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.toResult().Structured != nil {
		t.Fatal("null structured output should be dropped")
	}
}

func TestProcessStream_MalformedLinesSkipped(t *testing.T) {
	input := streamLines(
		`not json`,
		`{"type":"result","result":"ok"}`,
	)
	var log bytes.Buffer
	res, err := processStream(context.Background(), input, nil, &log)
	if err != nil {
		t.Fatal(err)
	}
	if res.toResult().Text != "ok" {
		t.Fatalf("Text = %q", res.toResult().Text)
	}
	if !strings.Contains(log.String(), "not json") {
		t.Fatal("malformed line should be kept in the transcript")
	}
}

func TestProcessStream_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := processStream(ctx, streamLines(`{"type":"result"}`), nil, nil)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestToolUseSummary(t *testing.T) {
	cases := []struct {
		tool, input, want string
	}{
		{"Bash", `{"command":"npm install"}`, "npm install"},
		{"Bash", `{"command":"cd app\nnpm test"}`, "cd app ..."},
		{"Write", `{"file_path":"app/start.sh","content":"x"}`, "app/start.sh"},
		{"Grep", `{"pattern":"TODO"}`, "TODO"},
		{"Custom", `{"only":"value"}`, "value"},
		{"Read", `not json`, "not json"},
		{"Read", ``, ""},
	}
	for _, c := range cases {
		if got := toolUseSummary(c.tool, c.input); got != c.want {
			t.Errorf("toolUseSummary(%s, %s) = %q, want %q", c.tool, c.input, got, c.want)
		}
	}
}
