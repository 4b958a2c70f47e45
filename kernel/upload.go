package kernel

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"git.sr.ht/~aondrejcak/policy-console/backend"
)

// uploadOverhead leaves room for the form fields and multipart boundaries
// next to the files themselves.
const uploadOverhead = 1 << 20

var ErrUploadTooLarge = errors.New("upload too large")

// Uploads reads the named multipart file field into memory. The request body
// is capped at limit bytes plus overhead before anything is parsed, larger
// bodies fail with ErrUploadTooLarge. A request without a multipart body has
// no uploads. Call it before other form accessors so the cap applies to the
// whole body.
func (rt *RequestRuntime) Uploads(field string, limit int64) ([]backend.File, error) {
	c := rt.RequestContext
	if c.Request.MultipartForm == nil && c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+uploadOverhead)
	}

	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if tooLarge(err) {
		return nil, ErrUploadTooLarge
	}
	if err != nil {
		return nil, fmt.Errorf("could not read upload: %w", err)
	}

	var files []backend.File
	for _, fh := range form.File[field] {
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("could not open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", fh.Filename, err)
		}
		files = append(files, backend.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// mime/multipart does not wrap every read error, so the message is checked too.
func tooLarge(err error) bool {
	if err == nil {
		return false
	}
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}
