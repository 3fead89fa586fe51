// Command engine-ollama is an out-of-process engine plugin that proxies
// generation requests to a local Ollama daemon's /api endpoints.
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
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
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

	resp, err := e.client.Get(e.baseURL + "/api/tags")
	if err != nil {
		return fmt.Errorf("ollama daemon unreachable at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama daemon unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (e *engine) Load(req pluginsdk.LoadRequest) (pluginsdk.LoadResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	body, err := json.Marshal(map[string]string{"name": req.ModelID})
	if err != nil {
		return pluginsdk.LoadResponse{}, err
	}
	resp, err := e.client.Post(e.baseURL+"/api/show", "application/json", bytes.NewReader(body))
	if err != nil {
		return pluginsdk.LoadResponse{Loaded: false, Detail: err.Error()}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pluginsdk.LoadResponse{Loaded: false, Detail: fmt.Sprintf("ollama /api/show returned %d for %q", resp.StatusCode, req.ModelID)}, nil
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
	ready, baseURL, modelID := e.ready, e.baseURL, e.modelID
	e.mu.Unlock()
	if !ready {
		return pluginsdk.GenerateResponse{}, fmt.Errorf("engine-ollama: no model loaded")
	}

	body, err := json.Marshal(map[string]interface{}{
		"model":  modelID,
		"prompt": req.Prompt,
		"stream": false,
		"options": map[string]int{
			"num_predict": req.MaxTokens,
		},
	})
	if err != nil {
		return pluginsdk.GenerateResponse{}, err
	}

	resp, err := e.client.Post(baseURL+"/api/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		return pluginsdk.GenerateResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pluginsdk.GenerateResponse{}, fmt.Errorf("ollama generate request failed: status %d", resp.StatusCode)
	}

	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return pluginsdk.GenerateResponse{}, err
	}
	return pluginsdk.GenerateResponse{Text: parsed.Response}, nil
}

func (e *engine) Status() (pluginsdk.StatusResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return pluginsdk.StatusResponse{Ready: e.ready, ModelID: e.modelID, ModelPath: e.modelPath}, nil
}
