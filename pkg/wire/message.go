package wire

import "encoding/json"

// Stream message types.
const (
	TypeAuthChallenge  = "auth_challenge"
	TypeAuthSuccess    = "auth_success"
	TypeAuthError      = "auth_error"
	TypeCommandMenu    = "command_menu"
	TypeExecuteCommand = "execute_command"
)

// Result and response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// AuthChallenge is the first message of every stream session.
type AuthChallenge struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`

	// Timestamp is the issue time in Unix seconds, encoded as a string.
	Timestamp string `json:"timestamp"`
}

// AuthResponse carries the agent's answer to an AuthChallenge.
type AuthResponse struct {
	Response string `json:"response"`
}

// AuthResult acknowledges the handshake outcome (auth_success or auth_error).
type AuthResult struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CommandDescriptor describes one entry of the command catalog.
type CommandDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CommandMenu offers the command catalog to the agent.
type CommandMenu struct {
	Type     string              `json:"type"`
	Commands []CommandDescriptor `json:"commands"`
}

// Selection is the agent's choice from a CommandMenu.
type Selection struct {
	Command string `json:"command"`
}

// ExecuteCommand asks the agent to run a catalog command.
type ExecuteCommand struct {
	Type      string `json:"type"`
	Command   string `json:"command"`
	Timestamp int64  `json:"timestamp"`
}

// Result is the agent's reply to an ExecuteCommand.
type Result struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Data      Fields `json:"data"`
}

// TelemetryRequest is an unsolicited push from an agent.
type TelemetryRequest struct {
	Type      string `json:"type"`
	DeviceID  string `json:"device_id"`
	Timestamp int64  `json:"timestamp"`
	Data      Fields `json:"data"`

	// Raw is the request body as received. Set by DecodeTelemetry.
	Raw json.RawMessage `json:"-"`
}

// NextCommand is the follow-up action suggested to a pushing agent.
type NextCommand struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// TelemetryResponse acknowledges a TelemetryRequest.
type TelemetryResponse struct {
	Status      string      `json:"status"`
	Message     string      `json:"message"`
	Timestamp   int64       `json:"timestamp"`
	NextCommand NextCommand `json:"next_command"`
}

// ErrorResponse is returned by the intake when a request cannot be processed.
type ErrorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
