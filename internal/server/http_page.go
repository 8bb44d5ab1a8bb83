package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"smartats/internal/analysis"
	"smartats/internal/ats"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// pageData is what the form template renders
type pageData struct {
	Version             string
	JobDescription      string
	JobDescriptionError string
	ResumeError         string

	// Failure is set for non-field errors
	Failure *ats.Failure
	View    *analysis.View
}

// newPageData maps an outcome onto the page. Validation failures appear next
// to their fields; every other failure shows in the error block.
func newPageData(version, jobDescription string, outcome *ats.Outcome) pageData {
	data := pageData{Version: version, JobDescription: jobDescription}
	if outcome == nil {
		return data
	}

	data.View = outcome.View
	f := outcome.Failure
	if f == nil {
		return data
	}

	if len(f.Violations) > 0 {
		data.JobDescriptionError = outcome.FieldMessage(ats.FieldJobDescription)
		data.ResumeError = outcome.FieldMessage(ats.FieldResume)
		return data
	}
	if f.Field == ats.FieldResume && !f.HasRawReply {
		data.ResumeError = f.Message
		return data
	}
	data.Failure = f
	return data
}

// formHandler serves the empty form
func (s *Server) formHandler(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, newPageData(s.Version, "", nil))
}

// formSubmitHandler runs a browser submission and re-renders the page with
// results, field messages or the error block
func (s *Server) formSubmitHandler(w http.ResponseWriter, r *http.Request) {
	submission, reqErr := s.readSubmission(r)
	if reqErr != nil {
		s.Logger.Info("Rejected form submission", "code", reqErr.code, "error", reqErr.err)
		data := newPageData(s.Version, submission.JobDescription, nil)
		data.ResumeError = reqErr.message
		s.renderPage(w, reqErr.status, data)
		return
	}

	outcome := s.analyze(r, submission, "form")
	s.renderPage(w, http.StatusOK, newPageData(s.Version, submission.JobDescription, outcome))
}

// renderPage executes into a buffer so a template failure never leaves a
// half-written page
func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.Logger.LogError(err, "Failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.Logger.Warn("Failed to write page", "error", err)
	}
}
