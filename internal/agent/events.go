// Package agent runs the tool-calling loop over an Eino chat model and
// exposes each turn as a stream of execution events.
package agent

// Kind discriminates execution events.
type Kind int

const (
	// KindTokenDelta carries a fragment of assistant text.
	KindTokenDelta Kind = iota
	// KindToolStart marks the beginning of one tool invocation.
	KindToolStart
	// KindToolEnd marks the end of one tool invocation.
	KindToolEnd
	// KindError is terminal. No further events follow it.
	KindError
)

// Event is one step of a turn's execution. Exactly one of Text, Tool and
// Err is meaningful, selected by Kind.
type Event struct {
	Kind Kind
	Text string
	Tool string
	Err  error
}

// TokenDelta builds a text fragment event.
func TokenDelta(text string) Event { return Event{Kind: KindTokenDelta, Text: text} }

// ToolStart builds a tool invocation start event.
func ToolStart(name string) Event { return Event{Kind: KindToolStart, Tool: name} }

// ToolEnd builds a tool invocation end event.
func ToolEnd(name string) Event { return Event{Kind: KindToolEnd, Tool: name} }

// Error builds a terminal error event.
func Error(err error) Event { return Event{Kind: KindError, Err: err} }
