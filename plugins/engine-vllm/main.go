// Command engine-vllm is an out-of-process engine plugin that proxies
// generation requests to a vLLM server's OpenAI-compatible completions
// endpoint. The vLLM process itself is expected to already be running;
// Init only records where it lives and waits for it to answer.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/JackRipper1888/GPUFabric/pkg/pluginsdk"
)

func main() {
	pluginsdk.Serve(newEngine())
}

type engine struct {
	mu        sync.Mutex
	client    *http.Client
	baseURL   string
	modelID   string
	modelPath string
	ready     bool
}

func newEngine() *engine {
	baseURL := os.Getenv("VLLM_BASE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	return &engine{
		client:  &http.Client{Timeout: 2 * time.Minute},
		baseURL: baseURL,
	}
}

func (e *engine) Init(req pluginsdk.InitRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modelPath = req.ModelPath

	resp, err := e.client.Get(e.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("vllm server unreachable at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vllm server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (e *engine) Load(req pluginsdk.LoadRequest) (pluginsdk.LoadResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	resp, err := e.client.Get(e.baseURL + "/v1/models")
	if err != nil {
		return pluginsdk.LoadResponse{Loaded: false, Detail: err.Error()}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pluginsdk.LoadResponse{Loaded: false, Detail: fmt.Sprintf("vllm /v1/models returned %d", resp.StatusCode)}, nil
	}

	e.modelID = req.ModelID
	e.ready = true
	return pluginsdk.LoadResponse{Loaded: true}, nil
}

func (e *engine) Unload(modelID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = false
	e.modelID = ""
	return nil
}

func (e *engine) Generate(req pluginsdk.GenerateRequest) (pluginsdk.GenerateResponse, error) {
	e.mu.Lock()
	ready, baseURL := e.ready, e.baseURL
	e.mu.Unlock()
	if !ready {
		return pluginsdk.GenerateResponse{}, fmt.Errorf("engine-vllm: no model loaded")
	}

	body, err := json.Marshal(map[string]interface{}{
		"prompt":     req.Prompt,
		"max_tokens": req.MaxTokens,
	})
	if err != nil {
		return pluginsdk.GenerateResponse{}, err
	}

	resp, err := e.client.Post(baseURL+"/v1/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		return pluginsdk.GenerateResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pluginsdk.GenerateResponse{}, fmt.Errorf("vllm completion request failed: status %d", resp.StatusCode)
	}

	var parsed struct {
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return pluginsdk.GenerateResponse{}, err
	}
	if len(parsed.Choices) == 0 {
		return pluginsdk.GenerateResponse{}, fmt.Errorf("vllm returned no choices")
	}
	return pluginsdk.GenerateResponse{Text: parsed.Choices[0].Text}, nil
}

func (e *engine) Status() (pluginsdk.StatusResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return pluginsdk.StatusResponse{Ready: e.ready, ModelID: e.modelID, ModelPath: e.modelPath}, nil
}
