package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cuesight/cuesight-app/geometry"
	"github.com/cuesight/cuesight-app/pipeline"
	"github.com/cuesight/cuesight-app/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

// respond encodes the data and ResponseError to JSON and responds with it and
// the http code. If the encoding fails, sets an InternalServerError.
func respond(w http.ResponseWriter, data interface{}, httpCode int) {
	var resp interface{}
	if v, ok := data.(error); ok {
		resp = errorResponse{Error: v.Error()}
	} else {
		resp = data
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)

	if resp != nil {
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// ErrBadRequest marks caller mistakes in an upload or form.
type ErrBadRequest struct {
	error
}

func (err ErrBadRequest) Is(target error) bool {
	_, ok := target.(ErrBadRequest)
	return ok
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest{}),
		errors.Is(err, pipeline.ErrImageDecode{}),
		errors.Is(err, pipeline.ErrInvalidConfig{}),
		errors.Is(err, geometry.ErrInsufficientPoints{}),
		errors.Is(err, geometry.ErrDegenerateTransform):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrDetectionService{}):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrProfileNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps the MJPEG stream working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type ctxKey int

const loggerKey ctxKey = iota

// logRequests tags every request with an id and logs its outcome.
func logRequests(logger logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		id := uuid.NewString()

		entry := logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     req.Method,
			"path":       req.URL.Path,
		})

		w.Header().Set("X-Request-Id", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req.WithContext(withLogger(req.Context(), entry)))

		entry.WithFields(logrus.Fields{
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("handled request")
	})
}
