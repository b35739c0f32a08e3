package response

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/futig/docchat-backend/internal/entity"
)

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		// Headers are already sent, nothing more to report
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes an error response in the {"detail": "..."} shape the client expects
func Error(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, entity.ErrorResponse{Detail: detail})
}

// Success writes a success response
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Attachment writes a downloadable payload
func Attachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
