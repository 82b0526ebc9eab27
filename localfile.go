package httpproxy

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// handleLocalFile serves a filesystem path for rules whose target is not an
// absolute http/https URL. Directories resolve to their index.html.
func (p *Proxy) handleLocalFile(w http.ResponseWriter, r *http.Request, path string) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = filepath.Clean(path)
	p.Logger.Debug("local file", "path", path)

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		path = filepath.Join(path, "index.html")
		info, err = os.Stat(path)
	}
	if err != nil {
		p.respondFileError(w, path, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		p.respondFileError(w, path, err)
		return
	}
	defer func() { _ = f.Close() }()

	if p.Metrics != nil {
		p.Metrics.RecordRequest(r.Method, modeLocal)
	}

	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}

	out, finish := p.wrapCompression(w, r)
	defer finish()

	out.Header().Set("Content-Type", ct)
	if out == w {
		// Compression rewrites the body, so the on-disk size only
		// holds for the plain path.
		out.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	out.WriteHeader(http.StatusOK)
	_, _ = io.Copy(out, f)
}

func (p *Proxy) respondFileError(w http.ResponseWriter, path string, err error) {
	switch {
	case os.IsNotExist(err):
		p.respondError(w, http.StatusNotFound, "file not found: "+path)
	case os.IsPermission(err):
		p.respondError(w, http.StatusForbidden, "permission denied: "+path)
	default:
		p.respondError(w, http.StatusInternalServerError, "read file: "+err.Error())
	}
}
