package httpapi

import "net/http"

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Storage != nil {
		if err := r.deps.Storage.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	writeJSON(w, http.StatusOK, r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter))
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	payload := map[string]any{
		"name":        "trapper",
		"version":     r.deps.Version,
		"environment": r.deps.Config.Environment,
		"storage":     r.deps.Config.Storage,
		"learning":    r.deps.Config.LearnMessages,
	}
	if r.deps.Registry != nil {
		payload["chats"] = r.deps.Registry.Len()
	}
	if r.deps.Aliases != nil {
		payload["aliases"] = r.deps.Aliases.Len()
	}
	writeJSON(w, http.StatusOK, payload)
}
