package websocket

import (
	"reflect"
	"time"

	"github.com/c360/vssbroker/component"
	"github.com/c360/vssbroker/pkg/security"
)

// Config holds configuration for the WebSocket gateway component.
type Config struct {
	Port              int           `json:"port"               schema:"type:int,description:TCP port to listen on,category:basic"`
	Path              string        `json:"path"               schema:"type:string,description:WebSocket endpoint path,category:basic"`
	ReadTimeout       time.Duration `json:"read_timeout"       schema:"type:duration,description:Per-message read deadline,category:timing"`
	WriteTimeout      time.Duration `json:"write_timeout"      schema:"type:duration,description:Per-message write deadline,category:timing"`
	PingInterval      time.Duration `json:"ping_interval"      schema:"type:duration,description:Keepalive ping interval,category:timing"`
	MaxMessageBytes   int64         `json:"max_message_bytes"  schema:"type:int,description:Maximum inbound frame size in bytes,category:limits"`
	ReadBufferSize    int           `json:"read_buffer_size"   schema:"type:int,description:WebSocket read buffer size,category:advanced"`
	WriteBufferSize   int           `json:"write_buffer_size"  schema:"type:int,description:WebSocket write buffer size,category:advanced"`
	EnableCompression bool          `json:"enable_compression" schema:"type:bool,description:Enable per-message compression,category:advanced"`
}

// DefaultConfig returns the gateway's default configuration.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		Path:            "/ws",
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    5 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageBytes: 64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// ConstructorConfig holds everything New needs that does not belong in the
// JSON-facing Config: the platform security configuration and a name
// override for Meta.
type ConstructorConfig struct {
	Name     string
	Config   Config
	Security security.Config
}

// websocketSchema is generated from Config's struct tags via reflection,
// the same pattern the rest of the component tree uses for ConfigSchema().
var websocketSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))
