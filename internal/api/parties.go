package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"party-map/internal/coord"
	"party-map/internal/logger"
	"party-map/internal/metrics"
	"party-map/internal/party"
)

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

// GET /parties/{id}[?viewer=&coord=]
func (s *Server) handleGetParty(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad parameter: id")
		return
	}
	sys, err := coord.ParseSystem(r.URL.Query().Get("coord"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.Store.Get(r.Context(), id, r.URL.Query().Get("viewer"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pos := coord.FromWGS84(p.Position(), sys)
	p.Lng, p.Lat = pos.Lon(), pos.Lat()
	writeJSON(w, http.StatusOK, p)
}

// POST /parties[?coord=]：请求体为聚会数组，整体写入一个事务
func (s *Server) handleUpsertParties(w http.ResponseWriter, r *http.Request) {
	sys, err := coord.ParseSystem(r.URL.Query().Get("coord"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var ps []*party.Party
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&ps); err != nil {
		writeError(w, http.StatusBadRequest, "bad body: "+err.Error())
		return
	}
	for i, p := range ps {
		if p == nil {
			writeError(w, http.StatusBadRequest, "bad body: null party at "+strconv.Itoa(i))
			return
		}
		pos := coord.ToWGS84(p.Position(), sys)
		p.Lng, p.Lat = pos.Lon(), pos.Lat()
		if err := p.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	n, err := s.Store.UpsertBatch(r.Context(), ps)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.Clusterer.Invalidate(r.Context())
	logger.L().Info("parties_upserted", "count", n, "coord", sys)
	writeJSON(w, http.StatusOK, map[string]int{"upserted": n})
}

// DELETE /parties?id=
func (s *Server) handleDeleteParty(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad parameter: id")
		return
	}
	found, err := s.Store.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "party not found")
		return
	}
	s.Clusterer.Invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type joinRequest struct {
	UserID     string `json:"user_id"`
	JoinStatus int    `json:"join_status"`
}

// PUT /parties/{id}/join
func (s *Server) handleSetJoin(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad parameter: id")
		return
	}
	var req joinRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad body")
		return
	}
	if _, err := s.Store.Get(r.Context(), id, ""); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.Store.SetJoin(r.Context(), id, req.UserID, req.JoinStatus); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.Clusterer.Invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// GET /stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	t, err := s.Store.Count(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	metrics.PartiesVisible.Set(float64(t.Visible))
	writeJSON(w, http.StatusOK, t)
}
