// Package gziphttp provides middleware for transparent gzip handling:
// decompression of compressed request bodies and compression of responses
// for clients that accept it.
package gziphttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var writerPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

type decompressingReader struct {
	body io.ReadCloser
	zr   *gzip.Reader
}

func newDecompressingReader(body io.ReadCloser) (*decompressingReader, error) {
	zr, err := gzip.NewReader(body)
	if err != nil {
		return nil, err
	}

	return &decompressingReader{
		body: body,
		zr:   zr,
	}, nil
}

func (r *decompressingReader) Read(p []byte) (int, error) {
	return r.zr.Read(p)
}

func (r *decompressingReader) Close() error {
	if err := r.body.Close(); err != nil {
		return err
	}
	return r.zr.Close()
}

type compressingResponseWriter struct {
	response http.ResponseWriter
	zw       *gzip.Writer
}

func newCompressingResponseWriter(response http.ResponseWriter) *compressingResponseWriter {
	zw := writerPool.Get().(*gzip.Writer)
	zw.Reset(response)

	return &compressingResponseWriter{
		response: response,
		zw:       zw,
	}
}

func (w *compressingResponseWriter) Header() http.Header {
	return w.response.Header()
}

func (w *compressingResponseWriter) WriteHeader(statusCode int) {
	if statusCode < 300 {
		w.response.Header().Set("Content-Encoding", "gzip")
	}
	w.response.WriteHeader(statusCode)
}

func (w *compressingResponseWriter) Write(p []byte) (int, error) {
	return w.zw.Write(p)
}

func (w *compressingResponseWriter) close() error {
	err := w.zw.Close()
	if err != nil {
		return err
	}
	writerPool.Put(w.zw)
	return nil
}

// CompressResponse compresses the response body when the client's
// Accept-Encoding allows gzip.
func CompressResponse(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.Header.Get("Accept-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		compressing := newCompressingResponseWriter(response)
		defer compressing.close()

		h.ServeHTTP(compressing, request)
	}

	return http.HandlerFunc(middleware)
}

// DecompressRequest replaces a gzip-encoded request body with a
// decompressing reader before the request reaches the handler chain.
func DecompressRequest(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if strings.Contains(request.Header.Get("Content-Encoding"), "gzip") {
			decompressing, err := newDecompressingReader(request.Body)
			if err != nil {
				response.WriteHeader(http.StatusInternalServerError)
				return
			}
			request.Body = decompressing
			defer decompressing.Close()
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
