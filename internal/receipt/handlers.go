package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/zombor/soa-tracker/internal/scanning"
)

const (
	maxFormSize   = int64(50 << 20) // 50MB
	defaultOrigin = "web"
	tooLarge      = "File is too large. Maximum size is 50MB. Please compress or resize your image."
)

// uploadResponse acknowledges accepted documents; extraction results arrive as reports
type uploadResponse struct {
	BurstID  string   `json:"burst_id,omitempty"`
	Origin   string   `json:"origin"`
	Accepted int      `json:"accepted"`
	Rejected []string `json:"rejected,omitempty"`
}

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes {"error": message} with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// contentTypeFor determines the declared media type of an uploaded part
func contentTypeFor(header *multipart.FileHeader) string {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".webp":
			contentType = "image/webp"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		}
	}
	// Preserve HEIC/HEIF so conversion can detect them
	return strings.ToLower(strings.TrimSpace(contentType))
}

// handleUploadDocuments accepts one or more files. Several files in one request form an album
// and share a burst id, generated when the client does not send one.
func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = tooLarge
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		jsonError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return
	}

	burstID := r.FormValue("burst_id")
	if burstID == "" && len(files) > 1 {
		burstID = uuid.NewString()
	}
	origin := r.FormValue("origin")
	if origin == "" {
		origin = defaultOrigin
	}

	resp := uploadResponse{BurstID: burstID, Origin: origin}
	for _, header := range files {
		if header.Size > maxFormSize {
			jsonError(w, tooLarge, http.StatusBadRequest)
			return
		}

		data, err := readPart(header)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
			return
		}

		err = s.service.Receive(r.Context(), Delivery{
			Origin:   origin,
			BurstID:  burstID,
			Caption:  r.FormValue("caption"),
			ReplyTo:  r.FormValue("reply_to"),
			Filename: header.Filename,
			MimeType: contentTypeFor(header),
			Data:     data,
		})
		switch {
		case err == nil:
			resp.Accepted++
		case errors.Is(err, scanning.ErrUnsupportedKind):
			resp.Rejected = append(resp.Rejected, header.Filename)
		case errors.Is(err, ErrClosed):
			jsonError(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		default:
			slog.Error("Error receiving document", "filename", header.Filename, "error", err)
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	setCORSHeaders(w)
	if resp.Accepted == 0 {
		jsonError(w, unsupportedMessage, http.StatusUnsupportedMediaType)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// handleListReports returns the reports, optionally for one origin
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.service.ListReports(r.URL.Query().Get("origin"))
	if err != nil {
		slog.Error("Error listing reports", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	writeJSON(w, http.StatusOK, reports)
}

// handleListLineItems returns the ledger
func (s *Server) handleListLineItems(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListLineItems()
	if err != nil {
		slog.Error("Error listing line items", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary()
	if err != nil {
		slog.Error("Error computing summary", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	writeJSON(w, http.StatusOK, summary)
}

// handleExportSOA serves the statement of account workbook
func (s *Server) handleExportSOA(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportSOA()
	if err != nil {
		slog.Error("Error exporting statement", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="soa.xlsx"`)
	w.Write(data)
}
