package server

import "net/http"

// applyCORS writes CORS response headers. With no allow-list configured the
// endpoint is open; otherwise the request origin is reflected only when it
// is listed, and caches are told responses vary by origin.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		h.Set("Access-Control-Allow-Origin", "*")
		return
	}

	origin := r.Header.Get("Origin")
	if s.originAllowed(origin) {
		h.Set("Access-Control-Allow-Origin", origin)
	} else {
		h.Set("Access-Control-Allow-Origin", "null")
	}
	h.Set("Vary", "Origin")
}

// originAllowed reports whether origin passes the allow-list. With a list
// configured, a request without an Origin header is rejected along with
// unlisted origins.
func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// preflightHandler answers CORS preflight for the action endpoint.
func (s *Server) preflightHandler(w http.ResponseWriter, r *http.Request) {
	s.applyCORS(w, r)
	h := w.Header()
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}
