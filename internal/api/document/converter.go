package document

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

// filenameParam returns the decoded {filename} route parameter. chi routes on
// URL.RawPath when it is set, leaving the value percent-escaped.
func filenameParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

// readUpload loads a multipart file into memory under its sanitized name.
func readUpload(fh *multipart.FileHeader) (entity.UploadFile, error) {
	f, err := fh.Open()
	if err != nil {
		return entity.UploadFile{}, fmt.Errorf("%w: open %s: %v", entity.ErrInvalidFile, fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return entity.UploadFile{}, fmt.Errorf("%w: read %s: %v", entity.ErrInvalidFile, fh.Filename, err)
	}

	return entity.UploadFile{
		Filename:    validator.SanitizeFilename(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

func toDocumentDTO(d *entity.Document) entity.DocumentDTO {
	return entity.DocumentDTO{
		Filename:   d.Filename,
		Status:     d.Status,
		ByteSize:   d.ByteSize,
		UploadedAt: d.UploadedAt,
		Error:      d.Error,
	}
}

func toListDocumentsResponse(docs []*entity.Document) *entity.ListDocumentsResponse {
	resp := &entity.ListDocumentsResponse{
		Files:     make([]string, 0, len(docs)),
		Documents: make([]entity.DocumentDTO, 0, len(docs)),
	}
	for _, d := range docs {
		resp.Files = append(resp.Files, d.Filename)
		resp.Documents = append(resp.Documents, toDocumentDTO(d))
	}
	return resp
}

func toReprocessResponse(res *entity.ReprocessResult) *entity.ReprocessResponse {
	resp := &entity.ReprocessResponse{
		DocumentCount:  res.DocumentCount,
		FilesProcessed: res.FilesProcessed,
		FailedCount:    len(res.FailedFiles),
		FailedFiles:    res.FailedFiles,
	}

	switch {
	case res.DocumentCount == 0:
		resp.Message = "No documents found to reprocess"
		resp.Status = "no_documents"
	case len(res.FilesProcessed) == 0:
		resp.Message = "Failed to reprocess documents"
		resp.Status = "error"
	default:
		resp.Message = fmt.Sprintf("Successfully reprocessed %d documents", len(res.FilesProcessed))
		resp.Status = "success"
	}

	return resp
}
