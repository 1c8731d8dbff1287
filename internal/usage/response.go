package usage

import "encoding/json"

// responseEnvelope is the shape the execution logger archives under
// response.json: the provider and model the caller resolved, plus the
// raw provider response. Streaming callers record the chunk list
// instead of a single body.
type responseEnvelope struct {
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Usage    json.RawMessage `json:"usage"`
	Chunks   json.RawMessage `json:"chunks"`
}

// ExtractResponse pulls provider, model and the raw usage payload out
// of an archived response envelope. ok=false means the response carries
// no attributable usage, which leaves the log unenriched.
func ExtractResponse(raw []byte) (provider, model string, usage json.RawMessage, ok bool) {
	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", "", nil, false
	}

	if env.Provider == "" || env.Model == "" {
		return "", "", nil, false
	}

	payload := env.Usage
	if len(payload) == 0 {
		payload = env.Chunks
	}
	if len(payload) == 0 {
		return "", "", nil, false
	}

	return env.Provider, env.Model, payload, true
}
