package types

// Category represents service categories
type Category string

const (
	CategorySystem Category = "system"
)

// Service represents a service definition
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities"`
	Tools        []Tool   `json:"tools"`
}

// Tool represents a service tool
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// ParamType is the JSON type a tool parameter accepts
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

// Parameter represents a tool parameter
type Parameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
}

// Context carries per-call metadata from the transport to the provider
type Context struct {
	RequestID string `json:"request_id,omitempty"`
	Transport string `json:"transport,omitempty"`
	Client    string `json:"client,omitempty"`
}

// Result represents a service execution result. Text is the human-readable
// rendering returned to MCP clients; Data carries the same outcome as
// structured fields for HTTP callers.
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Text    string                 `json:"text,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

// Failure builds an unsuccessful result carrying msg
func Failure(msg string) *Result {
	return &Result{Success: false, Text: "ERROR: " + msg, Error: &msg}
}
