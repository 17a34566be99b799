package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/matzehuels/patchaug/pkg/augment"
	"github.com/matzehuels/patchaug/pkg/buildinfo"
	"github.com/matzehuels/patchaug/pkg/cache"
	"github.com/matzehuels/patchaug/pkg/errors"
	"github.com/matzehuels/patchaug/pkg/imageio"
	"github.com/matzehuels/patchaug/pkg/observability"
	"github.com/matzehuels/patchaug/pkg/pipeline"
	"github.com/matzehuels/patchaug/pkg/transform"
)

// Response headers set by POST /v1/augment.
const (
	HeaderTenant    = "X-Tenant"
	HeaderPatchGrid = "X-Patch-Grid"
	HeaderCache     = "X-Cache"
)

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// TransformInfo describes one registered transformation.
type TransformInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleTransforms(w http.ResponseWriter, r *http.Request) {
	defaults := make(map[string]bool)
	for _, t := range transform.Default() {
		defaults[t.Name()] = true
	}
	var out []TransformInfo
	for _, name := range transform.Names() {
		t, _ := transform.Lookup(name)
		out = append(out, TransformInfo{
			Name:        name,
			Description: transform.Describe(t),
			Default:     defaults[name],
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAugment(w http.ResponseWriter, r *http.Request) {
	opts, err := s.parseOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	runner := s.runner
	if tenant := r.Header.Get(HeaderTenant); tenant != "" {
		if !tenantPattern.MatchString(tenant) {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid tenant %q", tenant))
			return
		}
		runner = &pipeline.Runner{
			Cache:  s.runner.Cache,
			Keyer:  cache.NewScopedKeyer(s.runner.Keyer, "tenant:"+tenant+":"),
			Logger: s.runner.Logger,
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeStatusError(w, r, http.StatusRequestEntityTooLarge, string(errors.ErrCodeInvalidInput),
				"image exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body"))
		return
	}

	res, err := runner.Execute(r.Context(), body, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set(HeaderPatchGrid, augment.Grid{Cols: res.Stats.Cols, Rows: res.Stats.Rows}.String())
	if res.CacheHit {
		h.Set(HeaderCache, "hit")
	} else {
		h.Set(HeaderCache, "miss")
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, res)
		return
	}
	h.Set("Content-Type", imageio.ContentType(res.Format))
	h.Set("Content-Length", strconv.Itoa(len(res.Image)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Image)
}

// parseOptions overlays query parameters on the server defaults.
func (s *Server) parseOptions(r *http.Request) (pipeline.Options, error) {
	d := s.defaults
	opts := pipeline.Options{
		PatchSize:          d.PatchSize,
		NumTransformations: d.NumTransformations,
		TransformNames:     d.TransformNames,
		Transforms:         d.Transforms,
		Seed:               d.Seed,
		Format:             d.Format,
		Quality:            d.Quality,
	}
	q := r.URL.Query()

	if v := q.Get("patch"); v != "" {
		size, err := augment.ParsePatchSize(v)
		if err != nil {
			return opts, err
		}
		opts.PatchSize = size
	}
	if v := q.Get("n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidConfiguration, "n must be an integer, got %q", v)
		}
		opts.NumTransformations = n
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidConfiguration, "seed must be an unsigned integer, got %q", v)
		}
		opts.Seed = pipeline.Seed(seed)
	}
	if v := q.Get("format"); v != "" {
		opts.Format = v
	}
	if v := q.Get("quality"); v != "" {
		quality, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidConfiguration, "quality must be an integer, got %q", v)
		}
		opts.Quality = quality
	}
	if v := q.Get("transforms"); v != "" {
		opts.Transforms = nil
		opts.TransformNames = strings.Split(v, ",")
	}
	if v := q.Get("refresh"); v != "" {
		refresh, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidConfiguration, "refresh must be a boolean, got %q", v)
		}
		opts.Refresh = refresh
	}
	opts.Trace = wantsJSON(r)
	return opts, nil
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	status := errors.HTTPStatus(err)
	msg := errors.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "id", RequestIDFromContext(r.Context()), "err", err)
		observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, err)
		msg = "internal error"
	}
	s.writeStatusError(w, r, status, code, msg)
}

func (s *Server) writeStatusError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Code:      code,
		Message:   msg,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func notFound(path string) error {
	return errors.New(errors.ErrCodeNotFound, "no route for %s", path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
