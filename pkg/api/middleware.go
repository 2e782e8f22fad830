package api

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"inventory/pkg/logger"
)

type ctxKeyRequestID struct{}

var RequestIDKey = ctxKeyRequestID{}

// Caller-supplied IDs end up in the visitor log, so only short tokens
// without markup or line breaks are kept.
var requestIDRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID != "" && !requestIDRe.MatchString(reqID) {
			log.Debugf("[requestIDMiddleware] replacing malformed request ID from %v", r.RemoteAddr)
			reqID = ""
		}
		if reqID == "" {
			id, err := uuid.NewV4()
			if err != nil {
				log.Errorf("[requestIDMiddleware] failed to generate request ID for %v: %v", r.RemoteAddr, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			reqID = id.String()
		}

		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// headerMiddleware sets the hardening headers every response carries.
func (api *API) headerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; object-src 'none'; frame-ancestors 'self'")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-XSS-Protection", "0")

		next.ServeHTTP(w, r)
	})
}

func (api *API) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := logger.New(w)

		next.ServeHTTP(lw, r)

		log.WithFields(log.Fields{
			"request_id": GetRequestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     lw.Status(),
			"bytes":      lw.Size(),
			"duration":   time.Since(start).Seconds(),
		}).Debug("[accessLogMiddleware] request served")
	})
}
