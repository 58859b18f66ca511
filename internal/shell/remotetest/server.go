// Package remotetest provides an in-memory fake of the hosted runtime and the
// configuration registry for tests.
package remotetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/flexdeploy/internal/core/domain"
	"github.com/artpar/flexdeploy/internal/shell/flex"
)

// Upload records one asset version upload.
type Upload struct {
	AssetSid     string
	FriendlyName string
	Path         string
	Visibility   string
	Size         int
}

// Server is a fake remote. Exported fields may be set before the first request
// and inspected after the test; use Lock/Unlock when reading during requests.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// Remote state
	Service       *domain.Service
	Environment   *domain.Environment
	Builds        map[string]*domain.Build
	Configuration flex.Configuration
	Accounts      map[string]bool

	// Behavior knobs
	BuildStatuses []string // Status sequence reported while polling; "completed" once exhausted
	FailUploadAt  string   // Upload to this path responds 500

	// Recorded calls
	Uploads       []Upload
	CreatedBuilds []domain.BuildData
	Deployments   []string
	Requests      []string

	assetNames map[string]string
	versions   map[string]domain.VersionRecord
	seq        int
}

// New starts a fake remote with an empty service named "default".
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Service: &domain.Service{
			Sid:        "ZS00000000000000000000000000000001",
			AccountSid: "AC00000000000000000000000000000001",
			UniqueName: "default",
		},
		Builds:     map[string]*domain.Build{},
		Accounts:   map[string]bool{},
		assetNames: map[string]string{},
		versions:   map[string]domain.VersionRecord{},
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/v1/Services", s.listServices)
	r.Route("/v1/Services/{serviceSid}", func(r chi.Router) {
		r.Get("/Environments", s.listEnvironments)
		r.Post("/Environments/{environmentSid}/Deployments", s.createDeployment)
		r.Post("/Builds", s.createBuild)
		r.Get("/Builds/{buildSid}", s.getBuild)
		r.Get("/Builds/{buildSid}/Status", s.getBuildStatus)
		r.Post("/Assets", s.createAsset)
		r.Post("/Assets/{assetSid}/Versions", s.createAssetVersion)
	})
	r.Get("/2010-04-01/Accounts/{accountSid}.json", s.getAccount)
	r.Get("/v1/Configuration", s.getConfiguration)
	r.Post("/v1/Configuration", s.updateConfiguration)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// WithEnvironment adds an environment, optionally serving an existing build.
func (s *Server) WithEnvironment(domainName string, build *domain.Build) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Environment = &domain.Environment{
		Sid:        "ZE00000000000000000000000000000001",
		DomainName: domainName,
	}
	if build != nil {
		if build.Sid == "" {
			build.Sid = s.nextSid("ZB")
		}
		s.Builds[build.Sid] = build
		s.Environment.BuildSid = build.Sid
		for _, v := range build.AssetVersions {
			s.versions[v.Sid] = v
		}
		for _, v := range build.FunctionVersions {
			s.versions[v.Sid] = v
		}
	}
	return s
}

// Lock guards reads of recorded fields while requests may be in flight.
func (s *Server) Lock() { s.mu.Lock() }

// Unlock releases Lock.
func (s *Server) Unlock() { s.mu.Unlock() }

// Count returns how many requests matched "METHOD path-prefix".
func (s *Server) Count(method, prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.Requests {
		if strings.HasPrefix(r, method+" "+prefix) {
			n++
		}
	}
	return n
}

func (s *Server) nextSid(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%032d", prefix, s.seq)
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.Requests = append(s.Requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	services := []map[string]string{}
	if s.Service != nil {
		services = append(services, map[string]string{
			"sid":         s.Service.Sid,
			"account_sid": s.Service.AccountSid,
			"unique_name": s.Service.UniqueName,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *Server) listEnvironments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	envs := []map[string]string{}
	if s.Environment != nil {
		envs = append(envs, map[string]string{
			"sid":         s.Environment.Sid,
			"domain_name": s.Environment.DomainName,
			"build_sid":   s.Environment.BuildSid,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"environments": envs})
}

func (s *Server) getBuild(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	build, ok := s.Builds[chi.URLParam(r, "buildSid")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "build not found"})
		return
	}
	writeJSON(w, http.StatusOK, build)
}

func (s *Server) getBuildStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "completed"
	if len(s.BuildStatuses) > 0 {
		status = s.BuildStatuses[0]
		s.BuildStatuses = s.BuildStatuses[1:]
	}
	writeJSON(w, http.StatusOK, map[string]string{"sid": chi.URLParam(r, "buildSid"), "status": status})
}

func (s *Server) createBuild(w http.ResponseWriter, r *http.Request) {
	var data domain.BuildData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	build := &domain.Build{Sid: s.nextSid("ZB"), Dependencies: data.Dependencies}
	for _, sid := range data.AssetVersionSids {
		v, ok := s.versions[sid]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "unknown asset version " + sid})
			return
		}
		build.AssetVersions = append(build.AssetVersions, v)
	}
	for _, sid := range data.FunctionVersionSids {
		build.FunctionVersions = append(build.FunctionVersions, s.versions[sid])
	}
	s.Builds[build.Sid] = build
	s.CreatedBuilds = append(s.CreatedBuilds, data)

	status := "building"
	if len(s.BuildStatuses) == 0 {
		status = "completed"
	}
	writeJSON(w, http.StatusCreated, map[string]string{"sid": build.Sid, "status": status})
}

func (s *Server) createDeployment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuildSid string `json:"build_sid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Environment == nil || s.Environment.Sid != chi.URLParam(r, "environmentSid") {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "environment not found"})
		return
	}
	s.Deployments = append(s.Deployments, req.BuildSid)
	s.Environment.BuildSid = req.BuildSid
	writeJSON(w, http.StatusCreated, map[string]string{"sid": s.nextSid("ZD"), "build_sid": req.BuildSid})
}

func (s *Server) createAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FriendlyName string `json:"friendly_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sid := s.nextSid("ZH")
	s.assetNames[sid] = req.FriendlyName
	writeJSON(w, http.StatusCreated, map[string]string{"sid": sid, "friendly_name": req.FriendlyName})
}

func (s *Server) createAssetVersion(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	path := r.FormValue("Path")
	visibility := r.FormValue("Visibility")
	file, _, err := r.FormFile("Content")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUploadAt != "" && s.FailUploadAt == path {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "upload failed"})
		return
	}

	assetSid := chi.URLParam(r, "assetSid")
	v := domain.VersionRecord{Sid: s.nextSid("ZN"), Path: path}
	s.versions[v.Sid] = v
	s.Uploads = append(s.Uploads, Upload{
		AssetSid:     assetSid,
		FriendlyName: s.assetNames[assetSid],
		Path:         path,
		Visibility:   visibility,
		Size:         len(content),
	})
	writeJSON(w, http.StatusCreated, map[string]string{"sid": v.Sid, "path": v.Path, "visibility": visibility})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid := chi.URLParam(r, "accountSid")
	if !s.Accounts[sid] {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "account not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sid": sid})
}

func (s *Server) getConfiguration(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.Configuration)
}

func (s *Server) updateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountSid            string   `json:"account_sid"`
		ServerlessServiceSids []string `json:"serverless_service_sids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Configuration.ServerlessServiceSids = slices.Clone(req.ServerlessServiceSids)
	writeJSON(w, http.StatusOK, s.Configuration)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
