// Package webserver serves a small read-only status API.
package webserver

import (
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/pkg/discordutils"
)

// GroupLister returns the voice groups of a guild
// together with their active channels.
type GroupLister interface {
	Groups(guildID string) ([]models.VoiceGroupResponse, error)
}

type WebServer struct {
	cfg    models.WebServerConfig
	groups GroupLister
	log    *log.Logger
	server *fasthttp.Server
}

func New(cfg models.WebServerConfig, groups GroupLister) *WebServer {
	ws := &WebServer{
		cfg:    cfg,
		groups: groups,
		log:    log.With("service", "webserver"),
	}

	r := router.New()
	r.GET("/health", ws.handleHealth)
	r.GET("/api/guilds/{guildID}/voicegroups", ws.handleVoiceGroups)
	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		ws.respondError(ctx, fasthttp.StatusNotFound, "not found")
	}
	r.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		ws.respondError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	}

	ws.server = &fasthttp.Server{
		Name:    "hearth",
		Handler: r.Handler,
	}

	return ws
}

// ListenAndServeBlocking serves requests on the configured
// address until Close is called.
func (ws *WebServer) ListenAndServeBlocking() error {
	ws.log.Info("Web server listening", "addr", ws.cfg.Addr)
	return ws.server.ListenAndServe(ws.cfg.Addr)
}

func (ws *WebServer) Close() error {
	return ws.server.Shutdown()
}

func (ws *WebServer) handleHealth(ctx *fasthttp.RequestCtx) {
	ws.respondJSON(ctx, fasthttp.StatusOK, models.Ok)
}

func (ws *WebServer) handleVoiceGroups(ctx *fasthttp.RequestCtx) {
	guildID, _ := ctx.UserValue("guildID").(string)
	if !discordutils.IsSnowflake(guildID) {
		ws.respondError(ctx, fasthttp.StatusBadRequest, "invalid guild ID")
		return
	}

	groups, err := ws.groups.Groups(guildID)
	if err != nil {
		ws.log.Error("Failed listing voice groups", "guild", guildID, "err", err)
		ws.respondError(ctx, fasthttp.StatusInternalServerError, "internal server error")
		return
	}

	if groups == nil {
		groups = []models.VoiceGroupResponse{}
	}

	ws.respondJSON(ctx, fasthttp.StatusOK, models.ListResponse[models.VoiceGroupResponse]{
		N:    len(groups),
		Data: groups,
	})
}

func (ws *WebServer) respondError(ctx *fasthttp.RequestCtx, status int, msg string) {
	ws.respondJSON(ctx, status, models.Error{
		Error: msg,
		Code:  status,
	})
}

func (ws *WebServer) respondJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)

	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		ws.log.Error("Failed encoding response", "err", err)
	}
}
