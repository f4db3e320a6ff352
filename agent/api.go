package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"printwatch/agent/scanner"
	"printwatch/agent/storage"
	"printwatch/common/logger"
	"printwatch/common/snmp"
	"printwatch/common/ws"
)

const maxRequestBody = 1 << 20

// loggingResponseWriter captures status code and byte count for diagnostics
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytes += n
	return n, err
}

// Flush proxies Flush to the underlying writer when supported
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required by the websocket upgrader.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter { return lrw.ResponseWriter }

type targetRequest struct {
	IP        string `json:"ip"`
	Brand     string `json:"brand"`
	Community string `json:"community,omitempty"`
}

type scanRequest struct {
	Ranges []string `json:"ranges"`
}

type syncResponse struct {
	*scanner.SyncResult
	MaintenanceLogs []storage.MaintenanceLog `json:"maintenanceLogs,omitempty"`
}

type errorResponse struct {
	Error     string             `json:"error"`
	IP        string             `json:"ip,omitempty"`
	Diagnosis *scanner.Diagnosis `json:"diagnosis,omitempty"`
}

// routes registers the HTTP API.
func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scan", a.handleScan)
	mux.HandleFunc("POST /api/query", a.handleQuery)
	mux.HandleFunc("POST /api/sync", a.handleSync)
	mux.HandleFunc("POST /api/supplies", a.handleSupplies)
	mux.HandleFunc("GET /api/printers", a.handleListPrinters)
	mux.HandleFunc("GET /api/printers/{id}", a.handleGetPrinter)
	mux.HandleFunc("GET /api/printers/{id}/maintenance", a.handleListMaintenance)
	mux.HandleFunc("POST /api/printers/{id}/maintenance", a.handleAddMaintenance)
	mux.HandleFunc("GET /api/events", a.handleEvents)
	mux.HandleFunc("GET /api/logs", a.handleLogs)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/version", a.handleVersion)
	return a.logRequests(mux)
}

func (a *app) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lrw, r)
		if logger.Global != nil {
			logger.Global.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", lrw.status,
				"bytes", lrw.bytes,
				"duration_ms", time.Since(start).Milliseconds())
		}
	})
}

// handleScan streams discovery events as NDJSON and mirrors them to
// websocket subscribers.
func (a *app) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Ranges) == 0 {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "ranges required"})
		return
	}
	if _, err := scanner.ExpandRanges(req.Ranges, a.cfg.Discovery.MaxAddresses); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	sink := scanner.MultiSink(scanner.NewNDJSONSink(w), a.hubSink())
	found, err := a.scanner.Scan(r.Context(), req.Ranges, sink)
	if err != nil && !errors.Is(err, context.Canceled) && logger.Global != nil {
		logger.Global.Warn("Scan ended with error", "ranges", strings.Join(req.Ranges, ","), "error", err)
	}
	if logger.Global != nil {
		logger.Global.Info("Scan finished", "ranges", strings.Join(req.Ranges, ","), "found", len(found))
	}
}

func (a *app) hubSink() scanner.EventSink {
	return scanner.EventSinkFunc(func(ev scanner.Event) error {
		a.hub.Broadcast(ws.NewScanEvent(ev.ScanID, ev))
		return nil
	})
}

func (a *app) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := a.engine.Query(r.Context(), a.target(req))
	if err != nil {
		writeEngineError(w, req.IP, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSync refreshes a known printer, following a DHCP move through its
// hostname, and records the snapshot. An unreachable device is marked
// OFFLINE and reported with the address that was last attempted.
func (a *app) handleSync(w http.ResponseWriter, r *http.Request) {
	var req scanner.SyncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Community == "" {
		req.Community = a.cfg.SNMP.Community
	}
	if a.store != nil && req.IP != "" && (req.Hostname == "" || req.Brand == "") {
		if known, err := a.store.GetPrinterByIP(r.Context(), req.IP); err == nil {
			if req.Hostname == "" {
				req.Hostname = known.Hostname
			}
			if req.Brand == "" {
				req.Brand = known.Brand
			}
		}
	}

	res, err := a.engine.Sync(r.Context(), req)
	if err != nil {
		var ue *scanner.UnreachableError
		if errors.As(err, &ue) && a.store != nil {
			if merr := a.store.MarkOffline(r.Context(), req.IP); merr != nil && !errors.Is(merr, storage.ErrNotFound) && logger.Global != nil {
				logger.Global.Warn("Failed to mark printer offline", "ip", req.IP, "error", merr)
			}
		}
		writeEngineError(w, req.IP, err)
		return
	}

	resp := syncResponse{SyncResult: res}
	if a.store != nil {
		logs, err := a.store.RecordSnapshot(r.Context(), storage.FromQueryResult(res.QueryResult), res.PreviousIP)
		if err != nil {
			if logger.Global != nil {
				logger.Global.Error("Failed to record snapshot", "ip", res.IP, "error", err)
			}
			writeError(w, http.StatusInternalServerError, errorResponse{Error: "failed to store printer snapshot"})
			return
		}
		resp.MaintenanceLogs = logs
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *app) handleSupplies(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := a.engine.Supplies(r.Context(), a.target(req))
	if err != nil {
		writeEngineError(w, req.IP, err)
		return
	}
	if st.Status == scanner.StatusOffline {
		if a.store != nil {
			_ = a.store.MarkOffline(r.Context(), req.IP)
		}
		writeError(w, http.StatusBadGateway, errorResponse{Error: "could not reach device via SNMP", IP: req.IP})
		return
	}
	if a.store != nil {
		if err := a.store.UpdateSupplies(r.Context(), req.IP, st.Levels, st.Status); err != nil && !errors.Is(err, storage.ErrNotFound) && logger.Global != nil {
			logger.Global.Warn("Failed to update stored supplies", "ip", req.IP, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *app) handleListPrinters(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	printers, err := a.store.ListPrinters(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if printers == nil {
		printers = []*storage.Printer{}
	}
	writeJSON(w, http.StatusOK, printers)
}

func (a *app) handleGetPrinter(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	p, err := a.store.GetPrinter(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *app) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := a.store.ListMaintenanceLogs(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if logs == nil {
		logs = []storage.MaintenanceLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (a *app) handleAddMaintenance(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	var entry storage.MaintenanceLog
	if !decodeBody(w, r, &entry) {
		return
	}
	if strings.TrimSpace(entry.Type) == "" {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "type required"})
		return
	}
	entry.ID = ""
	entry.PrinterID = r.PathValue("id")
	if err := a.store.AddMaintenanceLog(r.Context(), &entry); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *app) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws.Serve(a.hub, w, r)
}

type logLine struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

func newLogLine(e logger.LogEntry) logLine {
	return logLine{Timestamp: e.Timestamp, Level: logger.LevelToString(e.Level), Message: e.Message, Context: e.Context}
}

// handleLogs returns the in-memory log buffer, optionally filtered to a
// minimum severity with ?level=warn.
func (a *app) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines := []logLine{}
	if logger.Global != nil {
		maxLevel := logger.TRACE
		if lv := r.URL.Query().Get("level"); lv != "" {
			maxLevel = logger.LevelFromString(lv)
		}
		for _, e := range logger.Global.GetBuffer() {
			if e.Level <= maxLevel {
				lines = append(lines, newLogLine(e))
			}
		}
	}
	writeJSON(w, http.StatusOK, lines)
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":      "ok",
		"subscribers": a.hub.Subscribers(),
	}
	if a.store != nil {
		status["database"] = a.store.Dialect().Name()
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *app) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	})
}

func (a *app) target(req targetRequest) snmp.Target {
	community := req.Community
	if community == "" {
		community = a.cfg.SNMP.Community
	}
	return snmp.Target{IP: req.IP, Brand: req.Brand, Community: community}
}

func (a *app) requireStore(w http.ResponseWriter) bool {
	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "storage disabled"})
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func writeEngineError(w http.ResponseWriter, ip string, err error) {
	var ue *scanner.UnreachableError
	switch {
	case errors.Is(err, scanner.ErrIPRequired):
		writeError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &ue):
		writeError(w, http.StatusBadGateway, errorResponse{
			Error:     "could not reach device via SNMP",
			IP:        ue.IP,
			Diagnosis: ue.Diagnosis,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error(), IP: ip})
	default:
		writeError(w, http.StatusBadGateway, errorResponse{Error: err.Error(), IP: ip})
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeError(w http.ResponseWriter, code int, body errorResponse) {
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil && logger.Global != nil {
		logger.Global.Debug("Failed to write response", "error", err)
	}
}
