package api

import (
	"net/http"
	"time"
)

type ServerInfoHandler struct {
	serverName      string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewServerInfoHandler(name string, accessTTL, refreshTTL time.Duration) *ServerInfoHandler {
	return &ServerInfoHandler{
		serverName:      name,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
	}
}

type ServerInfoResponse struct {
	Name                   string `json:"name"`
	AccessTokenTTLSeconds  int64  `json:"accessTokenTtlSeconds"`
	RefreshTokenTTLSeconds int64  `json:"refreshTokenTtlSeconds"`
}

// GET /api/v1/server/info
func (h *ServerInfoHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServerInfoResponse{
		Name:                   h.serverName,
		AccessTokenTTLSeconds:  int64(h.accessTokenTTL / time.Second),
		RefreshTokenTTLSeconds: int64(h.refreshTokenTTL / time.Second),
	})
}
