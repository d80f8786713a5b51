// 包 api：集中注册 HTTP API 路由，主入口把返回的 ServeMux 挂载到 API_BASE 之下
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"party-map/internal/locate"
	"party-map/internal/logger"
	"party-map/internal/service"
	"party-map/internal/store"
)

// 写接口请求体上限
const maxBodyBytes = 4 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServiceError：参数错误 400，聚合不存在 404，其余 500（只记录日志，不向外暴露细节）
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrBadParam):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoCluster), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logger.L().Error("api_error", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Server：路由依赖；AdminToken 非空时写接口需携带 x-admin-token
type Server struct {
	Clusterer  *service.Clusterer
	Store      *store.Store
	Locator    *locate.Manager
	AdminToken string
}

// BuildRoutes：构建 API 路由
func BuildRoutes(svc *service.Clusterer, st *store.Store, loc *locate.Manager, adminToken string) *http.ServeMux {
	s := &Server{Clusterer: svc, Store: st, Locator: loc, AdminToken: adminToken}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /clusters", s.handleClusters)
	mux.HandleFunc("POST /clusters/click", s.handleClick)
	mux.HandleFunc("GET /locate", s.handleLocate)
	mux.HandleFunc("GET /parties/{id}", s.handleGetParty)
	mux.HandleFunc("POST /parties", s.admin(s.handleUpsertParties))
	mux.HandleFunc("DELETE /parties", s.admin(s.handleDeleteParty))
	mux.HandleFunc("PUT /parties/{id}/join", s.admin(s.handleSetJoin))
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminToken != "" && r.Header.Get("x-admin-token") != s.AdminToken {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	}
}
