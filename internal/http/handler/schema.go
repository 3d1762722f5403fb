package handler

import (
	"net/http"
	"sync"

	"basegraph.app/livefeed/internal/hub"
	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"
)

var (
	protocolSchemaOnce sync.Once
	protocolSchema     map[string]*jsonschema.Schema
)

// ProtocolSchema describes every message a subscriber can receive, keyed by message type.
func ProtocolSchema() map[string]*jsonschema.Schema {
	protocolSchemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
		}
		protocolSchema = map[string]*jsonschema.Schema{
			string(hub.TypeRuns):      reflector.Reflect(&hub.RunsMessage{}),
			string(hub.TypeRunUpdate): reflector.Reflect(&hub.RunUpdateMessage{}),
			string(hub.TypeActivity):  reflector.Reflect(&hub.ActivityMessage{}),
			string(hub.TypePing):      reflector.Reflect(&hub.PingMessage{}),
		}
	})
	return protocolSchema
}

func Schema(c *gin.Context) {
	c.JSON(http.StatusOK, ProtocolSchema())
}
