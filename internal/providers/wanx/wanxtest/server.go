// Package wanxtest runs an in-process fake of the DashScope task API for tests.
package wanxtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Step is one scripted answer to a task query.
type Step struct {
	Status  string
	Message string
	Code    string
	// Images are names registered with AddImage or FailImage, or absolute URLs.
	Images []string
	// HTTPStatus and Body, when set, replace the JSON envelope entirely.
	HTTPStatus int
	Body       string
}

// Submission records one creation request received by the server.
type Submission struct {
	Header http.Header
	Body   map[string]any
}

// Server is a scripted DashScope stand-in. Task queries consume Steps in
// order; the final step repeats once the script is exhausted.
type Server struct {
	*httptest.Server

	APIKey string
	TaskID string

	mu          sync.Mutex
	steps       []Step
	queries     int
	reject      *Step
	submissions []Submission
	images      map[string][]byte
	downloads   map[string]int
}

// New starts a server that accepts apiKey and closes it when the test ends.
func New(tb testing.TB, apiKey string) *Server {
	tb.Helper()
	s := &Server{
		APIKey:    apiKey,
		TaskID:    "task-0001",
		images:    map[string][]byte{},
		downloads: map[string]int{},
	}
	r := chi.NewRouter()
	r.Post("/api/v1/services/aigc/text2image/image-synthesis", s.handleSubmit)
	r.Get("/api/v1/tasks/{taskID}", s.handleTask)
	r.Get("/images/{name}", s.handleImage)
	s.Server = httptest.NewServer(r)
	tb.Cleanup(s.Close)
	return s
}

// QueueSteps appends scripted task query answers.
func (s *Server) QueueSteps(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, steps...)
}

// RejectSubmissions makes every creation request answer 200 with an error
// envelope instead of a task id.
func (s *Server) RejectSubmissions(code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = &Step{Code: code, Message: message}
}

// AddImage serves data under name and returns its URL.
func (s *Server) AddImage(name string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[name] = data
	return s.ImageURL(name)
}

// FailImage makes name answer 500 and returns its URL.
func (s *Server) FailImage(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, name)
	return s.ImageURL(name)
}

// ImageURL returns the download URL for name.
func (s *Server) ImageURL(name string) string {
	return s.URL + "/images/" + name + "?Expires=1700000000&Signature=abc"
}

// Submissions returns the creation requests received so far.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Submission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// Queries returns the number of task queries received so far.
func (s *Server) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// Downloads returns how many times name was requested.
func (s *Server) Downloads(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[name]
}

func (s *Server) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+s.APIKey
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	s.mu.Lock()
	s.submissions = append(s.submissions, Submission{Header: r.Header.Clone(), Body: body})
	reject := s.reject
	s.mu.Unlock()

	if !s.authorized(r) {
		writeJSON(w, http.StatusOK, map[string]any{
			"request_id": "req-submit",
			"code":       "InvalidApiKey",
			"message":    "Invalid API-key provided.",
		})
		return
	}
	if reject != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"request_id": "req-submit",
			"code":       reject.Code,
			"message":    reject.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": "req-submit",
		"output": map[string]any{
			"task_id":     s.TaskID,
			"task_status": "PENDING",
		},
	})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"code":    "InvalidApiKey",
			"message": "Invalid API-key provided.",
		})
		return
	}
	taskID := chi.URLParam(r, "taskID")
	if taskID != s.TaskID {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    "InvalidParameter",
			"message": fmt.Sprintf("task %s not found", taskID),
		})
		return
	}

	s.mu.Lock()
	s.queries++
	step := Step{Status: "SUCCEEDED"}
	if len(s.steps) > 0 {
		step = s.steps[0]
		if len(s.steps) > 1 {
			s.steps = s.steps[1:]
		}
	}
	s.mu.Unlock()

	if step.Body != "" || step.HTTPStatus != 0 {
		status := step.HTTPStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, step.Body)
		return
	}

	output := map[string]any{
		"task_id":     taskID,
		"task_status": step.Status,
	}
	if step.Message != "" {
		output["message"] = step.Message
	}
	if step.Code != "" {
		output["code"] = step.Code
	}
	if len(step.Images) > 0 {
		results := make([]map[string]any, 0, len(step.Images))
		for _, img := range step.Images {
			url := img
			if !strings.HasPrefix(img, "http://") && !strings.HasPrefix(img, "https://") {
				url = s.ImageURL(img)
			}
			results = append(results, map[string]any{"url": url})
		}
		output["results"] = results
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": fmt.Sprintf("req-query-%d", s.Queries()),
		"output":     output,
		"usage":      map[string]any{"image_count": len(step.Images)},
	})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	s.downloads[name]++
	data, ok := s.images[name]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
