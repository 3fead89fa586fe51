// Package notifier announces a device's newly loaded model to the control
// plane: NATS first, an HTTP POST if the bus publish itself fails.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JackRipper1888/GPUFabric/pkg/bus"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

// Publisher is the subset of *bus.Bus the notifier depends on.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Model describes one loaded model in the OpenAI-style listing shape the
// control plane expects in a ModelStatus payload.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelStatus is published after a successful model load.
type ModelStatus struct {
	ClientID         string   `json:"client_id"`
	Models           []Model  `json:"models"`
	AutoModelsDevice []string `json:"auto_models_device"`
}

// NewModel builds the listing entry for a model a device just loaded.
func NewModel(id, clientID string, loadedAt time.Time) Model {
	return Model{ID: id, Object: "model", Created: loadedAt.Unix(), OwnedBy: clientID}
}

// Notifier announces model-load outcomes. A nil Publisher means offline
// mode: every Notify call is skipped silently, per the control-plane
// contract.
type Notifier struct {
	bus        Publisher
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

func New(b Publisher, baseURL string, l *logger.Logger) *Notifier {
	return &Notifier{
		bus:        b,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		logger:     l,
	}
}

// Notify never returns an error to its caller: failures are logged, never
// fatal to the load that triggered them.
func (n *Notifier) Notify(ctx context.Context, clientID string, models []Model, autoModelsDevice []string) {
	if n.bus == nil {
		n.logger.Debug("notifier offline, skipping model-status notification", "client_id", clientID)
		return
	}

	payload, err := json.Marshal(ModelStatus{
		ClientID:         clientID,
		Models:           models,
		AutoModelsDevice: autoModelsDevice,
	})
	if err != nil {
		n.logger.Error("failed to encode model-status payload", "error", err)
		return
	}

	subject := bus.SubjectDeviceModel + "." + clientID
	if err := n.bus.Publish(ctx, subject, payload); err != nil {
		n.logger.Warn("model-status publish failed, falling back to http", "client_id", clientID, "error", err)
		n.httpFallback(ctx, clientID, payload)
		return
	}
}

func (n *Notifier) httpFallback(ctx context.Context, clientID string, payload []byte) {
	if n.baseURL == "" {
		n.logger.Error("model-status notification failed and no http fallback is configured", "client_id", clientID)
		return
	}

	url := fmt.Sprintf("%s/v1/devices/%s/model", n.baseURL, clientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error("failed to build model-status http fallback request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("model-status http fallback failed", "client_id", clientID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Error("model-status http fallback rejected", "client_id", clientID, "status", resp.StatusCode)
	}
}
