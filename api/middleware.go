package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/log"
)

// DisabledLogging turns off request logging and the debug dumps of
// response bodies.
var DisabledLogging = false

// looksLikeJSON matches bodies starting with an object or an array.
var looksLikeJSON = regexp.MustCompile(`^\s*[\[{]`)

// statusRecorder remembers the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

// skipLogging reports whether r must not be logged. Requests are only
// logged at debug level, and never for the excluded path prefixes.
func skipLogging(r *http.Request, excluded []string) bool {
	if DisabledLogging || log.Level() != log.LogLevelDebug {
		return true
	}
	for _, prefix := range excluded {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// loggingMiddleware logs each request and its response at debug level.
func loggingMiddleware(maxBodyLog int, excluded ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipLogging(r, excluded) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			var body string
			if r.Body != nil && r.ContentLength > 0 {
				raw, err := io.ReadAll(r.Body)
				if err != nil {
					log.Errorw(err, "unable to read request body", "url", r.URL.String())
					http.Error(w, "unable to read request body", http.StatusInternalServerError)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(raw))
				if looksLikeJSON.Match(raw) {
					if len(raw) > maxBodyLog {
						raw = append(raw[:maxBodyLog:maxBodyLog], "..."...)
					}
					body = strings.ReplaceAll(string(raw), `"`, "")
				}
			}

			rec := &statusRecorder{ResponseWriter: w}
			id := r.Header.Get(RequestIDHeader)
			log.Debugw("api request", "id", id, "method", r.Method, "url", r.URL.String(), "body", body)
			next.ServeHTTP(rec, r)
			log.Debugw("api response",
				"id", id,
				"status", rec.status,
				"took", time.Since(start).String(),
			)
		})
	}
}

type contextKey string

const electionIDKey contextKey = "electionID"

// RequestIDHeader carries the identifier assigned to every request.
const RequestIDHeader = "X-Request-Id"

// requestIDMiddleware tags each request with a random UUID, echoed in the
// response headers, unless the client already supplied one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// electionIDMiddleware parses the "eid" URL parameter and stores it in the
// request context. Requests with a malformed election ID are rejected with
// 400 before reaching the handler.
func electionIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eidStr := chi.URLParam(r, ElectionURLParam)
		if eidStr == "" {
			next.ServeHTTP(w, r)
			return
		}
		eid, err := strconv.ParseUint(eidStr, 10, 64)
		if err != nil || eid == 0 {
			ErrMalformedElectionID.Withf("invalid election ID %q", eidStr).Write(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), electionIDKey, eid)))
	})
}

// electionID returns the election ID parsed by electionIDMiddleware.
func electionID(r *http.Request) ledger.ElectionID {
	eid, _ := r.Context().Value(electionIDKey).(uint64)
	return eid
}
