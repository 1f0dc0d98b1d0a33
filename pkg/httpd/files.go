package httpd

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/storage"
	"github.com/rhuss/httpd/pkg/transport"
)

// ChunkSize is the read size of the file streamer.
const ChunkSize = 4096

// NotFoundPage is the body of a download that does not exist.
const NotFoundPage = "<center><h1>404 Not Found</h1></center>"

// LargeFile streams DocumentRoot + request path in fixed-size chunks. It
// runs as a background task. A failed read cuts the connection; a failed
// write stops the loop and ends gracefully.
func (s *Service) LargeFile(req *api.Request, w *transport.Writer) {
	if w.Begin() != nil {
		return
	}

	f, size, err := s.open(req.Path)
	if err != nil {
		notFound(w)
		return
	}
	defer f.Close()

	w.WriteHeader("Content-Type", contentTypeOf(f.Name()))
	w.WriteHeader("Content-Length", strconv.FormatInt(size, 10))
	if w.EndHeaders() != nil {
		w.End()
		return
	}

	buf := make([]byte, ChunkSize)
	var total int64
	for total < size {
		n, _ := f.Read(buf)
		if n <= 0 {
			s.logger.Warn("download read failed", "path", req.Path, "sent", humanize.Bytes(uint64(total)))
			w.Close()
			break
		}
		if _, err := w.WriteBody(buf[:n]); err != nil {
			break
		}
		total += int64(n)
	}
	w.End()

	s.logger.Debug("download finished",
		"path", req.Path,
		"sent", humanize.Bytes(uint64(total)),
		"size", humanize.Bytes(uint64(size)),
		"aborted", w.Aborted(),
	)
}

// UploadedFile streams an upload back out of the upload store. Missing
// uploads get the same 404 page as downloads.
func (s *Service) UploadedFile(req *api.Request, w *transport.Writer) {
	if w.Begin() != nil {
		return
	}
	if s.uploads == nil {
		api.Status(w.Response(), http.StatusServiceUnavailable, "uploads disabled")
		w.WriteStatus(http.StatusServiceUnavailable)
		w.End()
		return
	}

	name := req.GetParam("name", "")
	content, err := s.uploads.Load(req.Context(), name)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidName):
		notFound(w)
		return
	case err != nil:
		s.logger.Error("loading upload", "name", name, "error", err)
		api.Status(w.Response(), http.StatusInternalServerError, "loading upload failed")
		w.WriteStatus(http.StatusInternalServerError)
		w.End()
		return
	}

	w.WriteHeader("Content-Type", contentTypeOf(name))
	w.WriteHeader("Content-Length", strconv.Itoa(len(content)))
	if w.EndHeaders() != nil {
		w.End()
		return
	}
	for off := 0; off < len(content); off += ChunkSize {
		end := min(off+ChunkSize, len(content))
		if _, err := w.WriteBody(content[off:end]); err != nil {
			break
		}
	}
	w.End()
	s.logger.Debug("upload served", "name", name, "size", humanize.Bytes(uint64(len(content))))
}

func notFound(w *transport.Writer) {
	w.WriteStatus(http.StatusNotFound)
	w.WriteHeader("Content-Type", api.TextHTML)
	w.Response().SetBody(api.TextHTML, []byte(NotFoundPage))
	w.End()
}

// contentTypeOf picks a content type from the file suffix, falling back to
// application/octet-stream.
func contentTypeOf(name string) string {
	if ct := api.ContentTypeBySuffix(filepath.Ext(name)); ct != "" {
		return ct
	}
	return api.ApplicationOctetStream
}

// open resolves a request path under the document root. Directories and
// anything unreadable count as missing.
func (s *Service) open(reqPath string) (*os.File, int64, error) {
	name := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+reqPath)))
	f, err := os.Open(name)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, 0, os.ErrNotExist
	}
	return f, info.Size(), nil
}

// Upload saves the multipart "file" field to the upload store under its
// file name.
func (s *Service) Upload(req *api.Request, resp *api.Response) int {
	if req.ContentType != api.MultipartFormData {
		return api.Status(resp, http.StatusBadRequest, "")
	}
	file, ok := req.Form().Get("file")
	if !ok || len(file.Content) == 0 {
		return api.Status(resp, http.StatusBadRequest, "")
	}
	if s.uploads == nil {
		return api.Status(resp, http.StatusServiceUnavailable, "uploads disabled")
	}

	err := s.uploads.Save(req.Context(), file.Filename, file.Content)
	if errors.Is(err, storage.ErrInvalidName) {
		return api.Fail(resp, api.NewClientInputError(http.StatusBadRequest, "invalid file name"))
	}
	if err != nil {
		s.logger.Error("saving upload", "filename", file.Filename, "error", err)
		return api.Fail(resp, api.NewServerError("saving upload failed"))
	}

	s.logger.Info("upload saved", "filename", file.Filename, "size", humanize.Bytes(uint64(len(file.Content))))
	api.Status(resp, 0, "OK")
	return http.StatusOK
}
