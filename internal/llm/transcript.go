package llm

import "encoding/json"

// Role of a transcript message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one action requested by the reasoner
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of a Transcript
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolSpec describes an action the reasoner may request
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON schema object.
	Parameters map[string]interface{}
}

// Reply is the reasoner's answer for one round. No tool calls means the
// content is the final explanation.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Final reports whether the reply ends the conversation.
func (r *Reply) Final() bool {
	return len(r.ToolCalls) == 0
}

// Transcript is an append-only conversation log. The zero value is empty and ready to use.
type Transcript struct {
	messages []Message
}

// NewTranscript starts a transcript with a system and a user message.
func NewTranscript(system, user string) *Transcript {
	t := &Transcript{}
	t.append(Message{Role: RoleSystem, Content: system})
	t.append(Message{Role: RoleUser, Content: user})
	return t
}

func (t *Transcript) append(m Message) {
	if len(m.ToolCalls) > 0 {
		m.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	t.messages = append(t.messages, m)
}

// AppendAssistant records a reasoner reply.
func (t *Transcript) AppendAssistant(r *Reply) {
	t.append(Message{Role: RoleAssistant, Content: r.Content, ToolCalls: r.ToolCalls})
}

// AppendObservation records the result of a tool call.
func (t *Transcript) AppendObservation(call ToolCall, content json.RawMessage) {
	t.append(Message{Role: RoleTool, ToolCallID: call.ID, Name: call.Name, Content: string(content)})
}

// Messages returns a copy of the messages in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}
