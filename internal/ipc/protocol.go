package ipc

// CommandStatus is answered by the owner process itself, not forwarded to the
// host method surface.
const CommandStatus = "bridge.status"

// Request is one method-channel call.
type Request struct {
	ID        string         `json:"id,omitempty"`
	Command   string         `json:"command"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Response carries exactly one outcome for a Request.
type Response struct {
	ID             string `json:"id,omitempty"`
	OK             bool   `json:"ok"`
	Result         any    `json:"result,omitempty"`
	Code           string `json:"code,omitempty"`
	Error          string `json:"error,omitempty"`
	NotImplemented bool   `json:"not_implemented,omitempty"`
}
