// internal/middleware/upload.go
//
// Upload ceilings.
//
// Two limits apply to every request:
//
//   • PostMaxSize        –  the whole body, checked against Content-Length
//                            up front and enforced while reading
//   • UploadMaxFileSize  –  each file part of a multipart/form-data body
//
// A multipart body is parsed here, so handlers find r.MultipartForm ready.
// Either limit answers 413; a malformed multipart body answers 400.

package middleware

import (
	"errors"
	"mime"
	"net/http"

	"github.com/yanizio/sisconf/internal/directive"
)

// formMemory is how much of a multipart body is held in memory before file
// parts spill to disk.
const formMemory = 32 << 20

// ErrFileTooLarge reports a file part above UploadMaxFileSize.
var ErrFileTooLarge = errors.New("middleware: uploaded file exceeds the per-file limit")

// LimitUploads enforces d.PostMaxSize and d.UploadMaxFileSize.
func LimitUploads(d directive.Directives) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > d.PostMaxSize {
				tooLarge(w)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, d.PostMaxSize)
			}

			if isMultipart(r) {
				err := CheckFiles(r, d.UploadMaxFileSize)
				var mbe *http.MaxBytesError
				switch {
				case err == nil:
				case errors.Is(err, ErrFileTooLarge), errors.As(err, &mbe):
					tooLarge(w)
					return
				default:
					http.Error(w, "malformed multipart body", http.StatusBadRequest)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CheckFiles parses r's multipart form and rejects any file part larger
// than limit.
func CheckFiles(r *http.Request, limit int64) error {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(formMemory); err != nil {
			return err
		}
	}
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			if fh.Size > limit {
				return ErrFileTooLarge
			}
		}
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func tooLarge(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
}
