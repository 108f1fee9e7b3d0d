package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"proxy-checker/internal/domain"
	"proxy-checker/internal/endpoint"
	"proxy-checker/internal/service"
	"proxy-checker/internal/storage"
)

const maxBodyBytes = 1 << 20

type healthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type batchResponse struct {
	Message         string                  `json:"message"`
	BatchID         string                  `json:"batch_id"`
	TotalChecked    int                     `json:"total_checked"`
	ActiveProxies   int                     `json:"active_proxies"`
	InactiveProxies int                     `json:"inactive_proxies"`
	Results         []domain.EnrichedResult `json:"results"`
}

type updateResponse struct {
	Message string `json:"message"`
	domain.UpdateReport
}

type listMetadata struct {
	GeneratedAt     time.Time `json:"generated_at"`
	TotalProxies    int       `json:"total_proxies"`
	LastCheckWithin string    `json:"last_check_within"`
	Sort            string    `json:"sort"`
	Order           string    `json:"order"`
}

type listResponse struct {
	Metadata listMetadata         `json:"metadata"`
	Proxies  []domain.ActiveProxy `json:"proxies"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Message:   "Proxy checker is running",
		Timestamp: s.now().UTC(),
	})
}

// handleCheckQuery accepts ?proxy=ip:port or ?ip=&port=.
func (s *Server) handleCheckQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		ep  domain.ProxyEndpoint
		err error
	)
	switch {
	case q.Get("proxy") != "":
		ep, err = endpoint.Parse(q.Get("proxy"))
	case q.Get("ip") != "" && q.Get("port") != "":
		port, convErr := strconv.Atoi(q.Get("port"))
		if convErr != nil {
			writeRequestError(w, &requestError{Message: "Invalid proxy format", Details: "port must be a number"})
			return
		}
		ep, err = endpoint.New(q.Get("ip"), port)
	default:
		writeRequestError(w, &requestError{Message: "Proxy parameter required", Details: "use ?proxy=ip:port or ?ip=&port="})
		return
	}

	s.checkSingle(w, r, ep, err)
}

func (s *Server) handleCheckPath(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("proxy")
	if !strings.Contains(raw, ":") {
		writeRequestError(w, &requestError{Message: "Invalid proxy format"})
		return
	}
	ep, err := endpoint.Parse(raw)
	s.checkSingle(w, r, ep, err)
}

func (s *Server) checkSingle(w http.ResponseWriter, r *http.Request, ep domain.ProxyEndpoint, parseErr error) {
	if parseErr != nil {
		writeRequestError(w, &requestError{Message: "Invalid proxy format", Details: parseErr.Error()})
		return
	}

	includeGeo := r.URL.Query().Get("include_geoip") != "false"
	result := s.svc.CheckOne(r.Context(), r.URL.Query().Get("user_id"), ep, includeGeo)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCheckBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBatch(w, r)
	if !ok {
		return
	}

	report := s.svc.CheckMany(r.Context(), req)
	writeJSON(w, http.StatusOK, batchResponse{
		Message:         "Proxy check completed",
		BatchID:         report.Summary.BatchID,
		TotalChecked:    report.Summary.TotalChecked,
		ActiveProxies:   report.Summary.ActiveProxies,
		InactiveProxies: report.Summary.InactiveProxies,
		Results:         report.Results,
	})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBatch(w, r)
	if !ok {
		return
	}
	if req.UserID == "" {
		writeRequestError(w, &requestError{Message: "User ID is required"})
		return
	}

	report := s.svc.UpdateStatuses(r.Context(), req)
	writeJSON(w, http.StatusOK, updateResponse{
		Message:      "Proxy statuses updated",
		UpdateReport: report,
	})
}

func (s *Server) handleListProxies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sortBy := q.Get("sort")
	if sortBy == "" {
		sortBy = "checked_at"
	}
	if !storage.IsSortable(sortBy) {
		writeRequestError(w, &requestError{
			Message: "Invalid sort column",
			Details: "sort must be one of checked_at, response_time, ip, port, country_code",
		})
		return
	}

	order := strings.ToLower(q.Get("order"))
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		writeRequestError(w, &requestError{Message: "Invalid order", Details: "order must be asc or desc"})
		return
	}

	limit := storage.DefaultListLimit
	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			writeRequestError(w, &requestError{Message: "Invalid limit", Details: "limit must be a positive number"})
			return
		}
		limit = min(parsed, storage.MaxListLimit)
	}

	proxies, err := s.svc.ListActive(r.Context(), domain.ListFilter{
		Country: q.Get("country"),
		UserID:  q.Get("user_id"),
		SortBy:  sortBy,
		Desc:    order == "desc",
		Limit:   limit,
	})
	if err != nil {
		s.internalError(w, "failed to list proxies", err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Metadata: listMetadata{
			GeneratedAt:     s.now().UTC(),
			TotalProxies:    len(proxies),
			LastCheckWithin: "1 hour",
			Sort:            sortBy,
			Order:           order,
		},
		Proxies: proxies,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stats, err := s.svc.Stats(r.Context(), q.Get("user_id"), service.NormalizePeriod(q.Get("period")))
	if err != nil {
		s.internalError(w, "failed to compute stats", err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) decodeBatch(w http.ResponseWriter, r *http.Request) (domain.BatchRequest, bool) {
	var body batchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeRequestError(w, &requestError{Message: "Invalid request format", Details: "invalid JSON body"})
		return domain.BatchRequest{}, false
	}

	req, err := body.toDomain(s.cfg.Checker)
	if err != nil {
		writeRequestError(w, err)
		return domain.BatchRequest{}, false
	}
	return req, true
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeRequestError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeJSON(w, http.StatusBadRequest, reqErr)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
