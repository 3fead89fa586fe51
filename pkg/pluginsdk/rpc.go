// Package pluginsdk defines the contract between the GPUFabric host process
// and out-of-process inference engine plugins (vLLM, Ollama, llama.cpp),
// transported over hashicorp/go-plugin's net/rpc backend.
package pluginsdk

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// InitRequest configures a freshly spawned engine plugin.
type InitRequest struct {
	ModelPath   string
	ContextSize uint32
	GPULayers   uint32
}

// LoadRequest asks the engine to make a specific catalog model resident.
type LoadRequest struct {
	ModelID   string
	ModelPath string
}

// LoadResponse reports the outcome of a Load call.
type LoadResponse struct {
	Loaded bool
	Detail string
}

// GenerateRequest is a single completion request against the loaded model.
type GenerateRequest struct {
	Prompt    string
	MaxTokens int
}

// GenerateResponse carries the model's completion text.
type GenerateResponse struct {
	Text string
}

// StatusResponse reports whether the engine has a model ready to serve.
type StatusResponse struct {
	Ready     bool
	ModelID   string
	ModelPath string
}

// EngineService is the interface every engine plugin implements. It is
// hosted over net/rpc: each method below becomes one RPC call between the
// host process and the plugin subprocess.
type EngineService interface {
	Init(req InitRequest) error
	Load(req LoadRequest) (LoadResponse, error)
	Unload(modelID string) error
	Generate(req GenerateRequest) (GenerateResponse, error)
	Status() (StatusResponse, error)
}

// EnginePlugin is the plugin.Plugin implementation shared by the host (via
// Client) and the plugin binary (via Server).
type EnginePlugin struct {
	Impl EngineService
}

func (p *EnginePlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &engineRPCServer{impl: p.Impl}, nil
}

func (p *EnginePlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &engineRPCClient{client: c}, nil
}

// engineRPCClient is the host-side stub: it satisfies EngineService by
// forwarding every call over the net/rpc connection to the plugin process.
type engineRPCClient struct{ client *rpc.Client }

func (c *engineRPCClient) Init(req InitRequest) error {
	return c.client.Call("Plugin.Init", req, &struct{}{})
}

func (c *engineRPCClient) Load(req LoadRequest) (LoadResponse, error) {
	var resp LoadResponse
	err := c.client.Call("Plugin.Load", req, &resp)
	return resp, err
}

func (c *engineRPCClient) Unload(modelID string) error {
	return c.client.Call("Plugin.Unload", modelID, &struct{}{})
}

func (c *engineRPCClient) Generate(req GenerateRequest) (GenerateResponse, error) {
	var resp GenerateResponse
	err := c.client.Call("Plugin.Generate", req, &resp)
	return resp, err
}

func (c *engineRPCClient) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.client.Call("Plugin.Status", struct{}{}, &resp)
	return resp, err
}

// engineRPCServer wraps the plugin's real EngineService implementation so
// net/rpc can dispatch to it; method names and signatures must match the
// shape net/rpc expects (exactly one argument, exactly one pointer reply).
type engineRPCServer struct{ impl EngineService }

func (s *engineRPCServer) Init(req InitRequest, _ *struct{}) error {
	return s.impl.Init(req)
}

func (s *engineRPCServer) Load(req LoadRequest, resp *LoadResponse) error {
	r, err := s.impl.Load(req)
	*resp = r
	return err
}

func (s *engineRPCServer) Unload(modelID string, _ *struct{}) error {
	return s.impl.Unload(modelID)
}

func (s *engineRPCServer) Generate(req GenerateRequest, resp *GenerateResponse) error {
	r, err := s.impl.Generate(req)
	*resp = r
	return err
}

func (s *engineRPCServer) Status(_ struct{}, resp *StatusResponse) error {
	r, err := s.impl.Status()
	*resp = r
	return err
}

// Serve starts the plugin-side handshake and blocks, handing control to
// go-plugin's RPC server loop. Engine plugin binaries call this from main().
func Serve(impl EngineService) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]plugin.Plugin{
			"engine": &EnginePlugin{Impl: impl},
		},
	})
}
