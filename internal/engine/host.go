package engine

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/pelletier/go-toml/v2"

	"github.com/JackRipper1888/GPUFabric/pkg/logger"
	"github.com/JackRipper1888/GPUFabric/pkg/pluginsdk"
)

// manifest is the subset of a plugin's plugin.toml the host needs to
// identify it; engine plugins are laid out one directory per backend,
// named after the plugin binary it holds (engine-vllm, engine-ollama,
// engine-llama).
type manifest struct {
	Plugin struct {
		ID   string `toml:"id"`
		Name string `toml:"name"`
	} `toml:"plugin"`
}

// Host spawns and reuses one subprocess per engine backend. A backend is
// started on first use and kept alive across calls: generation latency
// must not include process startup.
type Host struct {
	mu        sync.Mutex
	logger    *logger.Logger
	pluginDir string
	clients   map[string]*plugin.Client
	services  map[string]pluginsdk.EngineService
}

func NewHost(l *logger.Logger, pluginDir string) *Host {
	return &Host{
		logger:    l,
		pluginDir: pluginDir,
		clients:   make(map[string]*plugin.Client),
		services:  make(map[string]pluginsdk.EngineService),
	}
}

// Get returns the running plugin client for the named engine backend,
// spawning its subprocess on first request.
func (h *Host) Get(engineName string) (pluginsdk.EngineService, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if svc, ok := h.services[engineName]; ok {
		return svc, nil
	}

	binPath := filepath.Join(h.pluginDir, engineName, engineName)
	if _, err := os.Stat(binPath); err != nil {
		return nil, fmt.Errorf("engine plugin %q not found at %s: %w", engineName, binPath, err)
	}

	manifestPath := filepath.Join(h.pluginDir, engineName, "plugin.toml")
	if data, err := os.ReadFile(manifestPath); err == nil {
		var m manifest
		if err := toml.Unmarshal(data, &m); err != nil {
			h.logger.Warn("failed to decode engine plugin manifest", "path", manifestPath, "error", err)
		}
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: pluginsdk.HandshakeConfig,
		Plugins: map[string]plugin.Plugin{
			"engine": &pluginsdk.EnginePlugin{},
		},
		Cmd:              exec.Command(binPath),
		Logger:           hclog.New(&hclog.LoggerOptions{Name: engineName, Level: hclog.Info}),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("connect to engine plugin %q: %w", engineName, err)
	}

	raw, err := rpcClient.Dispense("engine")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense engine plugin %q: %w", engineName, err)
	}

	svc, ok := raw.(pluginsdk.EngineService)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("engine plugin %q did not implement EngineService", engineName)
	}

	h.clients[engineName] = client
	h.services[engineName] = svc
	return svc, nil
}

// Shutdown terminates every spawned plugin subprocess.
func (h *Host) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for name, client := range h.clients {
		client.Kill()
		delete(h.clients, name)
		delete(h.services, name)
	}
}
