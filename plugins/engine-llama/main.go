// Command engine-llama is an out-of-process engine plugin that drives a
// llama.cpp server instance directly: it launches the server subprocess
// against the requested GGUF file on Load and talks to its /completion
// endpoint for generation.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/JackRipper1888/GPUFabric/pkg/pluginsdk"
)

func main() {
	pluginsdk.Serve(newEngine())
}

type engine struct {
	mu         sync.Mutex
	client     *http.Client
	binPath    string
	baseURL    string
	port       int
	cmd        *exec.Cmd
	nCtx       uint32
	nGPULayers uint32
	modelID    string
	modelPath  string
	ready      bool
}

func newEngine() *engine {
	binPath := os.Getenv("LLAMA_SERVER_BIN")
	if binPath == "" {
		binPath = "llama-server"
	}
	port := 8910
	if v := os.Getenv("LLAMA_SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			port = n
		}
	}
	return &engine{
		client:  &http.Client{Timeout: 2 * time.Minute},
		binPath: binPath,
		port:    port,
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
	}
}

func (e *engine) Init(req pluginsdk.InitRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modelPath = req.ModelPath
	e.nCtx = req.ContextSize
	e.nGPULayers = req.GPULayers
	return nil
}

func (e *engine) Load(req pluginsdk.LoadRequest) (pluginsdk.LoadResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		_ = e.cmd.Process.Kill()
		e.cmd = nil
	}

	args := []string{
		"--model", req.ModelPath,
		"--port", strconv.Itoa(e.port),
		"--ctx-size", strconv.Itoa(int(e.nCtx)),
		"--n-gpu-layers", strconv.Itoa(int(e.nGPULayers)),
	}
	cmd := exec.Command(e.binPath, args...)
	if err := cmd.Start(); err != nil {
		return pluginsdk.LoadResponse{Loaded: false, Detail: err.Error()}, nil
	}
	e.cmd = cmd

	if err := e.waitForHealth(20 * time.Second); err != nil {
		return pluginsdk.LoadResponse{Loaded: false, Detail: err.Error()}, nil
	}

	e.modelID = req.ModelID
	e.ready = true
	return pluginsdk.LoadResponse{Loaded: true}, nil
}

func (e *engine) waitForHealth(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.client.Get(e.baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("llama-server did not become healthy within %s", timeout)
}

func (e *engine) Unload(modelID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		_ = e.cmd.Process.Kill()
		e.cmd = nil
	}
	e.ready = false
	e.modelID = ""
	return nil
}

func (e *engine) Generate(req pluginsdk.GenerateRequest) (pluginsdk.GenerateResponse, error) {
	e.mu.Lock()
	ready, baseURL := e.ready, e.baseURL
	e.mu.Unlock()
	if !ready {
		return pluginsdk.GenerateResponse{}, fmt.Errorf("engine-llama: no model loaded")
	}

	body, err := json.Marshal(map[string]interface{}{
		"prompt":    req.Prompt,
		"n_predict": req.MaxTokens,
	})
	if err != nil {
		return pluginsdk.GenerateResponse{}, err
	}

	resp, err := e.client.Post(baseURL+"/completion", "application/json", bytes.NewReader(body))
	if err != nil {
		return pluginsdk.GenerateResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pluginsdk.GenerateResponse{}, fmt.Errorf("llama-server completion request failed: status %d", resp.StatusCode)
	}

	var parsed struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return pluginsdk.GenerateResponse{}, err
	}
	return pluginsdk.GenerateResponse{Text: parsed.Content}, nil
}

func (e *engine) Status() (pluginsdk.StatusResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return pluginsdk.StatusResponse{Ready: e.ready, ModelID: e.modelID, ModelPath: e.modelPath}, nil
}
