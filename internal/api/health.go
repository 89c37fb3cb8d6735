package api

import (
	"net/http"

	"usersvc/internal/db"
)

type HealthHandler struct {
	database *db.DB
}

func NewHealthHandler(database *db.DB) *HealthHandler {
	return &HealthHandler{database: database}
}

// Check always answers 200 while the process is up; a failing database only
// downgrades the reported status.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	result := "ok"

	if err := h.database.PingContext(r.Context()); err != nil {
		dbStatus = "error"
		result = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": result,
		"checks": map[string]string{
			"database": dbStatus,
		},
	})
}
