package api

// VMOnlineResponse is the payload for GET /proxy/hypervisor/vm/{vmid}/online.
// UpstreamStatus and Error are set only when the upstream answer was unusable.
type VMOnlineResponse struct {
	VMID           string `json:"vmid"`
	Node           string `json:"node"`
	Online         bool   `json:"online"`
	Status         string `json:"status"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body accepted by POST /proxy/chat.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Model    string        `json:"model,omitempty"`
}

// ChatResponse is the payload returned by POST /proxy/chat.
type ChatResponse struct {
	Reply string `json:"reply"`
	Model string `json:"model"`
}

// PublicEnv is the object assigned to window.__STATUSDECK__ by /env.js.
// It is built only from config.PublicConfig and upstream presence flags.
type PublicEnv struct {
	Title      string           `json:"title"`
	Nodes      []string         `json:"nodes"`
	VMs        []string         `json:"vms"`
	RefreshMS  map[string]int64 `json:"refresh_ms"`
	Configured map[string]bool  `json:"configured"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// OpenAI-compatible chat completion wire types.
type completionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}
