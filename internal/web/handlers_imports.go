package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gradebook/internal/core"
	"github.com/JonMunkholm/gradebook/internal/logging"
)

// importListResponse is the body of GET /imports.
type importListResponse struct {
	Imports []core.ImportStatus      `json:"imports"`
	Limiter core.ImportLimiterStatus `json:"limiter"`
}

// handleStartImport parses an uploaded CSV and starts a background import
// into the subject. The response carries the import ID to follow.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	maxSize := s.cfg.Import.MaxFileSize
	if r.ContentLength > maxSize {
		writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", maxSize))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", maxSize))
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	rows, err := core.ParseStudentCSV(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if limit := s.cfg.Import.MaxRows; limit > 0 && len(rows) > limit {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("file has %d rows, the limit is %d", len(rows), limit))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	importID, err := s.svc.Imports.Start(ctx, code, header.Filename, rows)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("import accepted",
		"import_id", importID,
		"subject", code,
		"file", header.Filename,
		"rows", len(rows),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"import_id": importID})
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	imports := s.svc.Imports.List()
	if imports == nil {
		imports = []core.ImportStatus{}
	}
	writeJSON(w, http.StatusOK, importListResponse{
		Imports: imports,
		Limiter: s.svc.Imports.Limiter().Status(),
	})
}

// handleImportStatus returns the progress, or the result once finished.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Imports.Status(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleImportProgress streams import progress via Server-Sent Events.
//
// Each progress event carries the completion percentage as its event ID. A
// reconnecting client passes the last ID it saw (Last-Event-ID header or
// lastEventId query parameter) and only receives later events. The stream
// ends with a complete event holding the final status, read back from the
// tracker when the subscription missed it.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	lastEventID := -1
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			lastEventID = n
		}
	}

	updates, err := s.svc.Imports.Subscribe(importID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// The stream may outlive the server's write timeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Error("progress stream not supported", "error", err)
		return
	}

	var last core.ImportStatus
	for {
		select {
		case status, ok := <-updates:
			if !ok {
				if final, err := s.svc.Imports.Status(importID); err == nil && final.Done() {
					last = final
				}
				writeEvent(w, "complete", -1, last)
				_ = rc.Flush()
				return
			}
			last = status

			pct := status.Progress.Percent()
			if pct <= lastEventID && !status.Done() {
				continue
			}
			lastEventID = pct
			writeEvent(w, "progress", pct, status)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// writeEvent writes one SSE frame. A negative id omits the id field.
func writeEvent(w http.ResponseWriter, event string, id int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte("{}")
	}
	if id >= 0 {
		fmt.Fprintf(w, "id: %d\n", id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Imports.Cancel(chi.URLParam(r, "importID")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "canceling"})
}
