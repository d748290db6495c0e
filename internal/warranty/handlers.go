package warranty

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zombor/warrantysafe/internal/lifecycle"
	"github.com/zombor/warrantysafe/internal/scanning"
)

// maxFormSize bounds the whole multipart body; the upload policy checks the file itself
const maxFormSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes {"error": message} with the given status
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeServiceError maps service errors to HTTP statuses
func writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		jsonError(w, "Authentication required", http.StatusUnauthorized)
	case errors.Is(err, ErrNoCredits):
		jsonError(w, "No upload credits left. Upgrade to keep adding warranties.", http.StatusPaymentRequired)
	case errors.Is(err, ErrUpgradeRequired):
		jsonError(w, "This feature needs the premium plan.", http.StatusPaymentRequired)
	case errors.Is(err, ErrNotFound):
		jsonError(w, "Warranty not found", http.StatusNotFound)
	case errors.Is(err, ErrTooLarge):
		jsonError(w, "File is too large. Maximum size is 5MB.", http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrUnsupportedType):
		jsonError(w, "Unsupported file type. Upload an image, a PDF or a text file.", http.StatusUnsupportedMediaType)
	default:
		slog.Error("Error handling request", "operation", op, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// readDocument reads the "file" form field into a Document
func readDocument(w http.ResponseWriter, r *http.Request) (scanning.Document, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File is too large. Maximum size is 5MB.", http.StatusRequestEntityTooLarge)
			return scanning.Document{}, false
		}
		slog.Error("Error parsing multipart form", "error", err)
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return scanning.Document{}, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return scanning.Document{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return scanning.Document{}, false
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" {
		contentType = scanning.MediaTypeFromExt(header.Filename)
	}

	doc := scanning.NewDocument(header.Filename, contentType, data)
	if header.Size > doc.Size {
		doc.Size = header.Size
	}
	return doc, true
}

// revealParam reads ?reveal=true
func revealParam(r *http.Request) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get("reveal"))
	return b
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScan extracts a warranty without saving it
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	doc, ok := readDocument(w, r)
	if !ok {
		return
	}

	res, err := s.service.Scan(r.Context(), callerFrom(r), doc, revealParam(r))
	if err != nil {
		writeServiceError(w, err, "scan")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUpload extracts and saves a warranty
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	doc, ok := readDocument(w, r)
	if !ok {
		return
	}

	view, err := s.service.Upload(r.Context(), callerFrom(r), doc)
	if err != nil {
		writeServiceError(w, err, "upload")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// handleListWarranties returns the caller's warranties, optionally filtered by ?status=
func (s *Server) handleListWarranties(w http.ResponseWriter, r *http.Request) {
	filter, err := lifecycle.ParseFilter(r.URL.Query().Get("status"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	views, err := s.service.List(r.Context(), callerFrom(r), filter)
	if err != nil {
		writeServiceError(w, err, "list")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// handleGetWarranty returns a single warranty
func (s *Server) handleGetWarranty(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Get(r.Context(), callerFrom(r), r.PathValue("id"), revealParam(r))
	if err != nil {
		writeServiceError(w, err, "get")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleReveal asks for the concealed fields of a warranty
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Reveal(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "reveal")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleGetFile returns the archived original document
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetFile(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "get file")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteWarranty deletes a warranty
func (s *Server) handleDeleteWarranty(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), callerFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err, "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport returns the caller's warranties as a spreadsheet
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportXLSX(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, err, "export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="warranties.xlsx"`)
	w.Write(data)
}

// handleAccount returns the caller's plan and upload allowance
func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Account(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, err, "account")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
