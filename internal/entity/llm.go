package entity

// GenerateRequest is the body sent to a plain HTTP generation service.
type GenerateRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature"`
}

type GenerateResponse struct {
	Text     string `json:"text"`
	Response string `json:"response"`
}

// Result returns whichever text field the service filled.
func (r *GenerateResponse) Result() string {
	if r.Text != "" {
		return r.Text
	}
	return r.Response
}

// OllamaEmbedRequest is the body of the Ollama /api/embed call.
type OllamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}
