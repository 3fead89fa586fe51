// Package engine holds the process-wide local inference engine: one model
// loaded at a time, behind a single plugin-backed backend.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/JackRipper1888/GPUFabric/pkg/logger"
	"github.com/JackRipper1888/GPUFabric/pkg/pluginsdk"
)

// Status is the engine's lifecycle state.
type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoading  Status = "loading"
	StatusLoaded   Status = "loaded"
	StatusError    Status = "error"
)

var ErrNotReady = errors.New("engine: no model loaded")

// OnLoadedFunc is invoked once a model finishes loading successfully.
type OnLoadedFunc func(modelID string)

// Engine is a singleton holding at most one loaded model. Generate takes
// the read lock; LoadModel and Unload take the write lock, so generation
// never races a model swap.
type Engine struct {
	mu       sync.RWMutex
	status   Status
	modelID  string
	path     string
	lastErr  error
	service  pluginsdk.EngineService
	logger   *logger.Logger
	onLoaded OnLoadedFunc
}

func New(l *logger.Logger, onLoaded OnLoadedFunc) *Engine {
	return &Engine{status: StatusUnloaded, logger: l, onLoaded: onLoaded}
}

// LoadModel unloads any prior model, then initializes and loads the new one
// against the given plugin-backed service. Loading is synchronous within
// this call but the status is visible to concurrent readers as "loading"
// for its duration, matching the unloaded -> loading -> loaded|error state
// machine.
func (e *Engine) LoadModel(ctx context.Context, svc pluginsdk.EngineService, modelID, modelPath string, nCtx, nGPULayers uint32) error {
	e.mu.Lock()
	if e.status == StatusLoaded && e.service != nil {
		if err := e.service.Unload(e.modelID); err != nil {
			e.logger.Warn("unload before swap failed", "model_id", e.modelID, "error", err)
		}
	}
	e.status = StatusLoading
	e.mu.Unlock()

	if err := svc.Init(pluginsdk.InitRequest{ModelPath: modelPath, ContextSize: nCtx, GPULayers: nGPULayers}); err != nil {
		e.setError(err)
		return err
	}

	resp, err := svc.Load(pluginsdk.LoadRequest{ModelID: modelID, ModelPath: modelPath})
	if err != nil {
		e.setError(err)
		return err
	}
	if !resp.Loaded {
		err := errors.New("engine: plugin reported load failure: " + resp.Detail)
		e.setError(err)
		return err
	}

	e.mu.Lock()
	e.status = StatusLoaded
	e.modelID = modelID
	e.path = modelPath
	e.service = svc
	e.lastErr = nil
	e.mu.Unlock()

	if e.onLoaded != nil {
		e.onLoaded(modelID)
	}
	return nil
}

func (e *Engine) setError(err error) {
	e.mu.Lock()
	e.status = StatusError
	e.lastErr = err
	e.mu.Unlock()
}

// Unload releases the current model, if any. Unloading an already-unloaded
// engine is a no-op.
func (e *Engine) Unload() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusLoaded || e.service == nil {
		e.status = StatusUnloaded
		return nil
	}

	err := e.service.Unload(e.modelID)
	e.status = StatusUnloaded
	e.modelID = ""
	e.path = ""
	e.service = nil
	return err
}

// Generate requires a loaded model; otherwise it returns ErrNotReady.
func (e *Engine) Generate(prompt string, maxTokens int) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.status != StatusLoaded || e.service == nil {
		return "", ErrNotReady
	}

	resp, err := e.service.Generate(pluginsdk.GenerateRequest{Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (e *Engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status == StatusLoaded
}

func (e *Engine) CurrentModel() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.modelID
}

func (e *Engine) LoadingStatus() (Status, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status, e.lastErr
}
