package agentstream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Emitter receives the semantic events a stream-json line translates into
// (spec.md §4.4). All fields are optional; a nil callback is simply not
// invoked. Emitter methods must not block — writing to a slow terminal must
// never back-pressure stream parsing.
type Emitter struct {
	OnText      func(text string)
	OnToolUse   func(summary string)
	OnSessionID func(sessionID string)
	OnTokens    func(inputTokens, outputTokens int)
}

func (e Emitter) text(s string) {
	if e.OnText != nil && s != "" {
		e.OnText(s)
	}
}

func (e Emitter) toolUse(s string) {
	if e.OnToolUse != nil {
		e.OnToolUse(s)
	}
}

func (e Emitter) sessionID(s string) {
	if e.OnSessionID != nil && s != "" {
		e.OnSessionID(s)
	}
}

func (e Emitter) tokens(in, out int) {
	if e.OnTokens != nil && (in != 0 || out != 0) {
		e.OnTokens(in, out)
	}
}

// contentBlock is one entry of an assistant/user message's content array.
type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// deltaBlock is the delta payload of a content_block_delta event.
type deltaBlock struct {
	Text string `json:"text"`
}

// usage is the token-count shape shared by result and message events.
type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// streamLine is the union of every event shape this runner understands
// (spec.md §4.4's stream grammar table).
type streamLine struct {
	Type string `json:"type"`

	Message *struct {
		Content []contentBlock `json:"content"`
		Usage   usage          `json:"usage"`
	} `json:"message"`

	Delta *deltaBlock `json:"delta"`

	SessionID  string `json:"session_id"`
	Result     string `json:"result"`
	Usage      usage  `json:"usage"`
	TotalUsage usage  `json:"total_usage"`
}

// stdoutSummary accumulates the data the caller needs out of the stream that
// isn't just a live UX emission: the raw text (for status/rate-limit
// scanning), the final "result" answer, the captured session id, and
// cumulative token deltas.
type stdoutSummary struct {
	Raw             string
	FinalResultText string
	SessionID       string
	InputTokens     int
	OutputTokens    int
}

// consumeStdout reads newline-delimited events from r, routing each to emit
// for live display, and returns a summary of the whole stream. Non-JSON
// lines pass through as raw text.
func consumeStdout(r io.Reader, emit Emitter) (stdoutSummary, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)

	var raw strings.Builder
	var summary stdoutSummary

	for scanner.Scan() {
		line := scanner.Text()
		if raw.Len() > 0 {
			raw.WriteByte('\n')
		}
		raw.WriteString(line)

		if strings.TrimSpace(line) == "" {
			continue
		}

		var ev streamLine
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			emit.text(line)
			continue
		}
		handleLine(&ev, emit, &summary)
	}

	summary.Raw = raw.String()
	if err := scanner.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func handleLine(ev *streamLine, emit Emitter, summary *stdoutSummary) {
	switch ev.Type {
	case "assistant":
		if ev.Message == nil {
			return
		}
		for _, block := range ev.Message.Content {
			switch block.Type {
			case "text":
				emit.text(block.Text)
			case "tool_use":
				emit.toolUse(summarizeToolUse(block.Name, block.Input))
			}
		}
		addTokens(summary, emit, ev.Message.Usage)

	case "content_block_delta":
		if ev.Delta != nil {
			emit.text(ev.Delta.Text)
		}

	case "result":
		if ev.SessionID != "" {
			summary.SessionID = ev.SessionID
			emit.sessionID(ev.SessionID)
		}
		if ev.Result != "" {
			summary.FinalResultText = ev.Result
			emit.text(ev.Result)
		}
		addTokens(summary, emit, ev.Usage)
		addTokens(summary, emit, ev.TotalUsage)

	case "message":
		addTokens(summary, emit, ev.Usage)

	default:
		// unknown event types are ignored (spec.md §4.4).
	}
}

func addTokens(summary *stdoutSummary, emit Emitter, u usage) {
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		return
	}
	summary.InputTokens += u.InputTokens
	summary.OutputTokens += u.OutputTokens
	emit.tokens(u.InputTokens, u.OutputTokens)
}

// consumeStderr reads text chunks from r and reports the full concatenation.
func consumeStderr(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	return string(data), err
}
