package agent

// Request represents a task given to an agent
type Request struct {
	// SystemPrompt is the system prompt to set context
	SystemPrompt string

	// UserMessage is the user's message/task
	UserMessage string

	// MaxIterations is the maximum number of tool-calling iterations
	// Default: 10
	MaxIterations int
}

// Result represents the result from an agent execution
type Result struct {
	// Content is the final text response from the agent
	Content string

	// ToolCalls contains a record of all tool calls made during execution
	ToolCalls []ToolCallRecord

	// Iterations is the number of LLM calls made
	Iterations int
}

// ToolCallRecord records a single tool call and its result
type ToolCallRecord struct {
	ToolName  string
	Arguments string
	Result    string
	IsError   bool
}
