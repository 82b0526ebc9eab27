package httpproxy

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression encoding constants.
const (
	EncodingGzip   = "gzip"
	EncodingZstd   = "zstd"
	EncodingBrotli = "br"
)

// Compression controls transparent compression of locally synthesized
// responses (files and the welcome page). Forwarded upstream responses are
// relayed verbatim and never re-encoded.
type Compression struct {
	// MinSize is the minimum response size to compress (default 256).
	// Smaller responses are sent uncompressed.
	MinSize int

	// Level is the compression level. Zero uses each codec's default.
	Level int

	// ContentTypes lists content-type prefixes eligible for compression.
	// Empty means common text types.
	ContentTypes []string

	// PreferOrder is the preferred encoding order when the client
	// accepts several. Default: br, zstd, gzip.
	PreferOrder []string
}

// NewCompression returns a Compression with sensible defaults.
func NewCompression() *Compression {
	return &Compression{
		MinSize:     256,
		PreferOrder: []string{EncodingBrotli, EncodingZstd, EncodingGzip},
	}
}

var compressibleTypes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"application/xml",
	"image/svg+xml",
}

// Wrap returns a ResponseWriter that compresses the body with the best
// encoding the client accepts, and a finish func that must run after the
// handler completes. When the client accepts none, w is returned as-is.
func (c *Compression) Wrap(w http.ResponseWriter, r *http.Request) (http.ResponseWriter, func()) {
	encoding := c.selectEncoding(r.Header.Get("Accept-Encoding"))
	if encoding == "" {
		return w, func() {}
	}

	cw := &compressWriter{dst: w, cfg: c, encoding: encoding, status: http.StatusOK}
	return cw, func() { _ = cw.finish() }
}

func (c *Compression) selectEncoding(acceptEncoding string) string {
	if acceptEncoding == "" {
		return ""
	}

	accepted := make(map[string]bool)
	for _, part := range strings.Split(acceptEncoding, ",") {
		enc := strings.TrimSpace(part)
		if i := strings.IndexByte(enc, ';'); i >= 0 {
			enc = strings.TrimSpace(enc[:i])
		}
		if enc != "" {
			accepted[strings.ToLower(enc)] = true
		}
	}

	order := c.PreferOrder
	if len(order) == 0 {
		order = []string{EncodingBrotli, EncodingZstd, EncodingGzip}
	}
	for _, enc := range order {
		if accepted[enc] {
			return enc
		}
	}
	return ""
}

func (c *Compression) compressible(contentType string) bool {
	types := c.ContentTypes
	if len(types) == 0 {
		types = compressibleTypes
	}
	for _, t := range types {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

// compressWriter buffers the response until it knows whether compression is
// worthwhile, then either streams through an encoder or passes bytes along
// unchanged.
type compressWriter struct {
	dst      http.ResponseWriter
	cfg      *Compression
	encoding string

	status  int
	decided bool
	buf     []byte
	enc     io.WriteCloser
}

func (cw *compressWriter) Header() http.Header {
	return cw.dst.Header()
}

func (cw *compressWriter) WriteHeader(status int) {
	cw.status = status
}

func (cw *compressWriter) Write(p []byte) (int, error) {
	if cw.decided {
		if cw.enc != nil {
			return cw.enc.Write(p)
		}
		return cw.dst.Write(p)
	}

	cw.buf = append(cw.buf, p...)
	minSize := cw.cfg.MinSize
	if minSize == 0 {
		minSize = 256
	}
	if len(cw.buf) >= minSize {
		if err := cw.decide(true); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// decide picks compressed vs. plain output, sends headers, and drains the
// buffer.
func (cw *compressWriter) decide(compress bool) error {
	cw.decided = true

	if compress && cw.cfg.compressible(cw.dst.Header().Get("Content-Type")) {
		enc, err := cw.newEncoder()
		if err == nil {
			cw.enc = enc
			cw.dst.Header().Set("Content-Encoding", cw.encoding)
			cw.dst.Header().Del("Content-Length")
			cw.dst.Header().Add("Vary", "Accept-Encoding")
		}
	}

	cw.dst.WriteHeader(cw.status)

	var err error
	if cw.enc != nil {
		_, err = cw.enc.Write(cw.buf)
	} else if len(cw.buf) > 0 {
		_, err = cw.dst.Write(cw.buf)
	}
	cw.buf = nil
	return err
}

func (cw *compressWriter) newEncoder() (io.WriteCloser, error) {
	switch cw.encoding {
	case EncodingGzip:
		if cw.cfg.Level > 0 {
			return gzip.NewWriterLevel(cw.dst, cw.cfg.Level)
		}
		return gzip.NewWriter(cw.dst), nil
	case EncodingZstd:
		if cw.cfg.Level > 0 {
			return zstd.NewWriter(cw.dst, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cw.cfg.Level)))
		}
		return zstd.NewWriter(cw.dst)
	case EncodingBrotli:
		level := cw.cfg.Level
		if level == 0 {
			level = brotli.DefaultCompression
		}
		return brotli.NewWriterLevel(cw.dst, level), nil
	}
	return nil, io.ErrClosedPipe
}

// finish flushes anything still buffered. Responses under MinSize go out
// uncompressed.
func (cw *compressWriter) finish() error {
	if !cw.decided {
		return cw.decide(false)
	}
	if cw.enc != nil {
		return cw.enc.Close()
	}
	return nil
}
