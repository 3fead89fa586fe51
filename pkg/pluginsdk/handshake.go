package pluginsdk

import "github.com/hashicorp/go-plugin"

// HandshakeConfig is the contract shared between the engine host and the
// engine plugins to ensure they are compatible.
var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "GPUFABRIC_ENGINE_PLUGIN",
	MagicCookieValue: "gpufabric-engine-protocol-v1",
}
