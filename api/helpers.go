package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/log"
)

// maxRequestBody bounds every request body. Shares records are the largest
// payload, two points per ballot.
const maxRequestBody = 256 << 20

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
		return
	}
	if !DisabledLogging && log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// decodeBody unmarshals the JSON request body into out. On failure the
// error reply has already been written and false is returned.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		ErrMalformedBody.Withf("could not read request body: %v", err).Write(w)
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return false
	}
	return true
}

// uintParam parses the decimal URL parameter key.
func uintParam(r *http.Request, key string, bits int) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, key), 10, bits)
}

// nullifierParam parses the hex nullifier URL parameter.
func nullifierParam(w http.ResponseWriter, r *http.Request) (hash.Nullifier, bool) {
	nf, err := hash.NullifierFromHex(chi.URLParam(r, NullifierURLParam))
	if err != nil {
		ErrMalformedNullifier.WithErr(err).Write(w)
		return hash.Nullifier{}, false
	}
	return nf, true
}
