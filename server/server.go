// Package server exposes CUBIT compression over HTTP.
//
// Routes:
//
//	POST /compress    multipart field "file"; returns <name>.cubit
//	POST /decompress  multipart field "file"; returns <name> without .cubit
//	POST /info        multipart field "file"; returns the container header
//
// /info answers in JSON unless the request accepts application/x-msgpack.
// Errors are JSON objects of the form {"error": "..."}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mrjoshuak/go-cubit"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack"
)

const (
	// DefaultMaxUpload bounds the size of an uploaded file.
	DefaultMaxUpload = 64 << 20

	// MsgpackType is the media type that selects msgpack /info responses.
	MsgpackType = "application/x-msgpack"

	fileField = "file"
	extension = ".cubit"
)

// Info describes a container without decoding it.
type Info struct {
	OriginalSize   uint32 `json:"original_size" msgpack:"original_size"`
	MetadataLength uint32 `json:"metadata_length" msgpack:"metadata_length"`
	PaddingLength  uint32 `json:"padding_length" msgpack:"padding_length"`
	Blocks         int    `json:"blocks" msgpack:"blocks"`
	ContainerSize  int    `json:"container_size" msgpack:"container_size"`
}

// Server handles CUBIT requests. Options apply to every request; the
// "codec", "seed" and "trials" form values override them per request.
type Server struct {
	Options   cubit.Options
	MaxUpload int64

	router *mux.Router
}

// New returns a Server with its routes registered.
func New(opts cubit.Options) *Server {
	s := &Server{Options: opts, MaxUpload: DefaultMaxUpload}
	r := mux.NewRouter()
	r.HandleFunc("/compress", s.handleCompress).Methods(http.MethodPost)
	r.HandleFunc("/decompress", s.handleDecompress).Methods(http.MethodPost)
	r.HandleFunc("/info", s.handleInfo).Methods(http.MethodPost)
	r.Use(logRequests)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, opts cubit.Options) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           New(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("cubit: listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	opts, err := s.requestOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := cubit.CompressContext(r.Context(), data, opts)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeAttachment(w, name+extension, out)
}

func (s *Server) handleDecompress(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	opts, err := s.requestOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := cubit.DecompressContext(r.Context(), data, opts)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeAttachment(w, strings.TrimSuffix(name, extension), out)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	_, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	h, err := cubit.GetInfo(data)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	info := Info{
		OriginalSize:   h.OriginalSize,
		MetadataLength: h.MetadataLength,
		PaddingLength:  h.PaddingLength,
		Blocks:         h.NumBlocks(),
		ContainerSize:  len(data),
	}

	if acceptsMsgpack(r) {
		buf, err := msgpack.Marshal(&info)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", MsgpackType)
		w.WriteHeader(http.StatusOK)
		w.Write(buf)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// readUpload returns the name and content of the uploaded file. On failure
// it has already written the error response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	limit := s.MaxUpload
	if limit <= 0 {
		limit = DefaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, hdr, err := r.FormFile(fileField)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("no file provided"))
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", nil, false
	}
	return hdr.Filename, data, true
}

func (s *Server) requestOptions(r *http.Request) (cubit.Options, error) {
	opts := s.Options
	if v := r.FormValue("codec"); v != "" {
		c, err := cubit.ParseCodec(v)
		if err != nil {
			return opts, err
		}
		opts.Codec = c
	}
	if v := r.FormValue("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return opts, fmt.Errorf("seed: %w", err)
		}
		opts.Seed = seed
	}
	if v := r.FormValue("trials"); v != "" {
		trials, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("trials: %w", err)
		}
		opts.Trials = trials
	}
	return opts, nil
}

// statusFor maps structural errors caused by the request to 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, cubit.ErrEmptyInput),
		errors.Is(err, cubit.ErrInvalidHeader),
		errors.Is(err, cubit.ErrCorruptContainer),
		errors.Is(err, cubit.ErrInvalidCodec),
		errors.Is(err, cubit.ErrDataTooLarge):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func acceptsMsgpack(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == MsgpackType {
			return true
		}
	}
	return false
}

func writeAttachment(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("cubit: write response")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"duration": time.Since(start),
		}).Info("cubit: request")
	})
}
