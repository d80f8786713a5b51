package api

import (
	"net/http"
	"strconv"

	"party-map/internal/coord"
	"party-map/internal/locate"
	"party-map/internal/service"
)

// GET /clusters?lng=&lat=&zoom=&w=&h=&coord=&viewer=[&grid=&max_zoom=&min_size=&avg=&distance_km=]
func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	v, err := service.ParseView(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	snap, err := s.Clusterer.Cluster(r.Context(), v)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// POST /clusters/click?...&index=
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v, err := service.ParseView(q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	idx, err := strconv.Atoi(q.Get("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad parameter: index")
		return
	}
	res, err := s.Clusterer.Click(r.Context(), v, idx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type locateResponse struct {
	IP     string  `json:"ip"`
	Lng    float64 `json:"lng"`
	Lat    float64 `json:"lat"`
	Zoom   int     `json:"zoom"`
	Coord  string  `json:"coord"`
	Source string  `json:"source"`
	City   string  `json:"city,omitempty"`
}

// GET /locate[?ip=&coord=]：访问者的初始视野
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sys, err := coord.ParseSystem(q.Get("coord"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ip := q.Get("ip")
	if ip == "" {
		ip = locate.ClientIP(r)
	}
	res := locate.Default()
	if s.Locator != nil {
		res = s.Locator.Locate(r.Context(), ip)
	}
	c := coord.FromWGS84(res.Center, sys)
	writeJSON(w, http.StatusOK, locateResponse{
		IP:     ip,
		Lng:    c.Lon(),
		Lat:    c.Lat(),
		Zoom:   res.Zoom,
		Coord:  string(sys),
		Source: res.Source,
		City:   res.City,
	})
}
