package pluginsdk

import (
	"errors"
	"net"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	initErr   error
	loadResp  LoadResponse
	loadErr   error
	genResp   GenerateResponse
	genErr    error
	statusErr error
	status    StatusResponse
}

func (f *fakeEngine) Init(req InitRequest) error                     { return f.initErr }
func (f *fakeEngine) Load(req LoadRequest) (LoadResponse, error)     { return f.loadResp, f.loadErr }
func (f *fakeEngine) Unload(modelID string) error                    { return nil }
func (f *fakeEngine) Generate(req GenerateRequest) (GenerateResponse, error) {
	return f.genResp, f.genErr
}
func (f *fakeEngine) Status() (StatusResponse, error) { return f.status, f.statusErr }

// dialedClient wires an engineRPCServer and engineRPCClient together over an
// in-memory net.Pipe, the way go-plugin's net/rpc transport connects host and
// plugin processes, minus the subprocess.
func dialedClient(t *testing.T, impl EngineService) *engineRPCClient {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("Plugin", &engineRPCServer{impl: impl}))
	go srv.ServeConn(serverConn)

	t.Cleanup(func() { clientConn.Close() })

	return &engineRPCClient{client: rpc.NewClient(clientConn)}
}

func TestEngineRPC_Init(t *testing.T) {
	impl := &fakeEngine{}
	client := dialedClient(t, impl)

	err := client.Init(InitRequest{ModelPath: "/models/llama", ContextSize: 4096, GPULayers: 32})
	assert.NoError(t, err)
}

func TestEngineRPC_Init_Error(t *testing.T) {
	impl := &fakeEngine{initErr: errors.New("gpu not found")}
	client := dialedClient(t, impl)

	err := client.Init(InitRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gpu not found")
}

func TestEngineRPC_Load(t *testing.T) {
	impl := &fakeEngine{loadResp: LoadResponse{Loaded: true, Detail: "ok"}}
	client := dialedClient(t, impl)

	resp, err := client.Load(LoadRequest{ModelID: "llama-3-8b", ModelPath: "/models/llama-3-8b.gguf"})
	require.NoError(t, err)
	assert.True(t, resp.Loaded)
	assert.Equal(t, "ok", resp.Detail)
}

func TestEngineRPC_Generate(t *testing.T) {
	impl := &fakeEngine{genResp: GenerateResponse{Text: "hello world"}}
	client := dialedClient(t, impl)

	resp, err := client.Generate(GenerateRequest{Prompt: "say hi", MaxTokens: 16})
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Text)
}

func TestEngineRPC_Status(t *testing.T) {
	impl := &fakeEngine{status: StatusResponse{Ready: true, ModelID: "llama-3-8b"}}
	client := dialedClient(t, impl)

	resp, err := client.Status()
	require.NoError(t, err)
	assert.True(t, resp.Ready)
	assert.Equal(t, "llama-3-8b", resp.ModelID)
}

func TestEngineRPC_Unload(t *testing.T) {
	impl := &fakeEngine{}
	client := dialedClient(t, impl)

	err := client.Unload("llama-3-8b")
	assert.NoError(t, err)
}

func TestHandshakeConfig(t *testing.T) {
	assert.Equal(t, uint(1), HandshakeConfig.ProtocolVersion)
	assert.Equal(t, "GPUFABRIC_ENGINE_PLUGIN", HandshakeConfig.MagicCookieKey)
	assert.NotEmpty(t, HandshakeConfig.MagicCookieValue)
}
