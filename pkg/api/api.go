package api

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"inventory/pkg/config"
	"inventory/pkg/storage"
	"inventory/pkg/visitlog"
)

const (
	AdminTokenHeader = "X-Admin-Token"
	AdminTokenQuery  = "token"

	downloadName = "visitors.log"
)

type API struct {
	Player string
	DB     storage.Storage
	Visits *visitlog.Logger

	r          *mux.Router
	adminToken []byte
	maxBody    int64
}

func New(cfg config.Config, db storage.Storage, visits *visitlog.Logger) *API {
	api := API{
		Player:     cfg.Player,
		DB:         db,
		Visits:     visits,
		r:          mux.NewRouter(),
		adminToken: []byte(cfg.AdminToken),
		maxBody:    cfg.MaxBodyBytes,
	}
	api.endpoints()

	return &api
}

func (api *API) Router() *mux.Router {
	return api.r
}

func (api *API) endpoints() {
	api.r.Use(api.requestIDMiddleware)
	api.r.Use(api.accessLogMiddleware)
	api.r.Use(api.headerMiddleware)

	api.r.HandleFunc("/", api.homeHandler).Methods(http.MethodGet, http.MethodHead)
	api.r.HandleFunc("/inventory", api.inventoryHandler).Methods(http.MethodGet, http.MethodHead)
	api.r.HandleFunc("/inventory-upload", api.uploadHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/logs", api.logsHandler).Methods(http.MethodGet, http.MethodHead)
	api.r.HandleFunc("/download-logs", api.downloadLogsHandler).Methods(http.MethodGet, http.MethodHead)
	api.r.HandleFunc("/health", api.healthHandler).Methods(http.MethodGet, http.MethodHead)

	// A known path with the wrong method is still an unmatched route.
	api.r.NotFoundHandler = api.headerMiddleware(http.HandlerFunc(notFoundHandler))
	api.r.MethodNotAllowedHandler = api.headerMiddleware(http.HandlerFunc(notFoundHandler))
}

func (api *API) homeHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	entry := api.visitEntry(r)
	entry.Host = r.Host
	api.Visits.Record(r.Context(), entry)
	log.Infof("[homeHandler][%s] visit ip:%s ua:%s", sID, entry.IP, entry.UserAgent)

	api.render(w, r, http.StatusOK, homePage, nil)
}

func (api *API) inventoryHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	entry := api.visitEntry(r)
	entry.Action = visitlog.ActionInventoryView
	entry.Target = api.Player
	api.Visits.Record(r.Context(), entry)
	log.Infof("[inventoryHandler][%s] view target:%s ip:%s ua:%s", sID, api.Player, entry.IP, entry.UserAgent)

	inv, err := api.DB.Inventory(r.Context(), api.Player)
	if err != nil {
		if errors.Is(err, storage.ErrInventoryNotFound) {
			log.Warnf("[inventoryHandler][%s] inventory of %s is missing", sID, api.Player)
			api.render(w, r, http.StatusServiceUnavailable, unavailablePage, api.Player)
			return
		}
		log.Errorf("[inventoryHandler][%s] failed to load inventory of %s: %v", sID, api.Player, err)
		api.render(w, r, http.StatusInternalServerError, loadFailedPage, nil)
		return
	}

	api.render(w, r, http.StatusOK, inventoryPage, newInventoryView(api.Player, inv))
}

func (api *API) uploadHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	if !api.authorized(r) {
		log.Warnf("[uploadHandler][%s] invalid admin token from %s", sID, visitlog.ClientIP(r))
		writeJSON(w, http.StatusForbidden, uploadResponse{Error: errForbidden})
		return
	}

	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, api.maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			log.Warnf("[uploadHandler][%s] payload exceeds %d bytes", sID, maxErr.Limit)
			writeJSON(w, http.StatusRequestEntityTooLarge, uploadResponse{Error: errTooLarge})
			return
		}
		log.Errorf("[uploadHandler][%s] failed to read request body: %v", sID, err)
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: errBadPayload})
		return
	}
	r.Body.Close()

	b = bytes.TrimSpace(b)
	items, err := api.validateUpload(b)
	if err != nil {
		log.Debugf("[uploadHandler][%s] rejected payload: %v", sID, err)
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: errBadPayload})
		return
	}

	var doc bytes.Buffer
	if err := json.Indent(&doc, b, "", "  "); err != nil {
		log.Errorf("[uploadHandler][%s] failed to format payload: %v", sID, err)
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: errBadPayload})
		return
	}

	if err := api.DB.SaveInventory(r.Context(), api.Player, doc.Bytes()); err != nil {
		log.Errorf("[uploadHandler][%s] failed to save inventory file: %v", sID, err)
		writeJSON(w, http.StatusInternalServerError, uploadResponse{})
		return
	}

	entry := api.visitEntry(r)
	entry.Action = visitlog.ActionInventoryUpload
	entry.Target = api.Player
	api.Visits.Record(r.Context(), entry)
	log.Infof("[uploadHandler][%s] received inventory upload for %s from %s items:%d", sID, api.Player, entry.IP, items)

	writeJSON(w, http.StatusOK, uploadResponse{OK: true})
}

// validateUpload checks that b is an object naming the tracked player with
// an items array, and returns the number of items.
func (api *API) validateUpload(b []byte) (int, error) {
	var p uploadPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return 0, err
	}
	if p.Player == nil || *p.Player != api.Player {
		return 0, errWrongPlayer
	}

	var items []json.RawMessage
	raw := bytes.TrimSpace(p.Items)
	if len(raw) == 0 || raw[0] != '[' {
		return 0, errItemsNotArray
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0, err
	}

	return len(items), nil
}

func (api *API) logsHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	if !api.authorized(r) {
		log.Warnf("[logsHandler][%s] invalid admin token from %s", sID, visitlog.ClientIP(r))
		http.Error(w, "Forbidden - invalid token", http.StatusForbidden)
		return
	}

	entries, err := api.Visits.Entries()
	if err != nil {
		if errors.Is(err, visitlog.ErrNoLogs) {
			api.render(w, r, http.StatusOK, noLogsPage, nil)
			return
		}
		log.Errorf("[logsHandler][%s] failed to read logs: %v", sID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	api.render(w, r, http.StatusOK, logsPage, newLogsView(entries))
}

func (api *API) downloadLogsHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	if !api.authorized(r) {
		log.Warnf("[downloadLogsHandler][%s] invalid admin token from %s", sID, visitlog.ClientIP(r))
		http.Error(w, "Forbidden - invalid token", http.StatusForbidden)
		return
	}

	f, err := api.Visits.Open()
	if err != nil {
		if errors.Is(err, visitlog.ErrNoLogs) {
			http.Error(w, "No logs.", http.StatusNotFound)
			return
		}
		log.Errorf("[downloadLogsHandler][%s] failed to open logs: %v", sID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		log.Errorf("[downloadLogsHandler][%s] failed to stat logs: %v", sID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	http.ServeContent(w, r, downloadName, fi.ModTime(), f)
	log.Debugf("[downloadLogsHandler][%s] sent %d bytes to %v", sID, fi.Size(), r.RemoteAddr)
}

func (api *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not found", http.StatusNotFound)
}

// visitEntry describes r for the visitor log.
func (api *API) visitEntry(r *http.Request) visitlog.Entry {
	entry := visitlog.FromRequest(r)
	entry.RequestID = GetRequestID(r.Context())
	return entry
}

// authorized reports whether r carries the admin token, in the header or
// in the query string. An unset token never matches.
func (api *API) authorized(r *http.Request) bool {
	token := r.Header.Get(AdminTokenHeader)
	if token == "" {
		token = r.URL.Query().Get(AdminTokenQuery)
	}
	if token == "" || len(api.adminToken) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), api.adminToken) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("[writeJSON] failed to encode response: %v", err)
	}
}

// GetRequestID extracts the request ID from the context.
// It returns the request ID as a string if present, otherwise returns an empty string.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
