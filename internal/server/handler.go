package server

import (
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"smartats/internal/ats"
	"smartats/internal/errors"
	"smartats/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxMemory is how much of a multipart form is kept in memory before
// spilling to temporary files
const maxMemory = 8 << 20

// requestError is a submission that could not be read off the wire
type requestError struct {
	status  int
	code    string
	message string
	err     error
}

func (e *requestError) Error() string {
	return fmt.Sprintf("%s: %v", e.message, e.err)
}

// readSubmission decodes the multipart form. A missing resume part is not an
// error here; the analyzer rejects it during validation.
func (s *Server) readSubmission(r *http.Request) (types.Submission, *requestError) {
	var submission types.Submission

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return submission, &requestError{
				status:  http.StatusRequestEntityTooLarge,
				code:    errors.ErrCodeFileTooLarge,
				message: fmt.Sprintf("Request body too large (limit is %d bytes)", maxBytesErr.Limit),
				err:     err,
			}
		}
		if !stderrors.Is(err, http.ErrNotMultipart) {
			return submission, &requestError{
				status:  http.StatusBadRequest,
				code:    errors.ErrCodeInvalidRequest,
				message: "Invalid form submission",
				err:     err,
			}
		}
		// Plain url-encoded forms carry no file; read what is there
		if err := r.ParseForm(); err != nil {
			return submission, &requestError{
				status:  http.StatusBadRequest,
				code:    errors.ErrCodeInvalidRequest,
				message: "Invalid form submission",
				err:     err,
			}
		}
	}
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				s.Logger.Warn("Failed to remove multipart temp files", "error", err)
			}
		}()
	}

	submission.JobDescription = r.FormValue(ats.FieldJobDescription)

	file, header, err := r.FormFile(ats.FieldResume)
	switch {
	case err == nil:
		defer func() {
			if err := file.Close(); err != nil {
				s.Logger.Warn("Failed to close uploaded file", "error", err)
			}
		}()
		data, err := readPart(file, header)
		if err != nil {
			return submission, &requestError{
				status:  http.StatusBadRequest,
				code:    errors.ErrCodeFileNotReadable,
				message: "Could not read the uploaded file",
				err:     err,
			}
		}
		submission.ResumePDF = data
		submission.ResumeFilename = header.Filename
	case stderrors.Is(err, http.ErrMissingFile), stderrors.Is(err, http.ErrNotMultipart):
	default:
		return submission, &requestError{
			status:  http.StatusBadRequest,
			code:    errors.ErrCodeInvalidRequest,
			message: "Invalid resume upload",
			err:     err,
		}
	}

	return submission, nil
}

// readPart reads an uploaded part. A part with no name and no bytes is what
// browsers send for an empty file input.
func readPart(file multipart.File, header *multipart.FileHeader) ([]byte, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if header.Filename == "" && len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// analyze runs one submission within a request span
func (s *Server) analyze(r *http.Request, submission types.Submission, operation string) *ats.Outcome {
	ctx, span := s.observability.Tracer("smartats.api").Start(r.Context(), "api."+operation)
	defer span.End()

	span.SetAttributes(
		attribute.Int("request.resume_bytes", len(submission.ResumePDF)),
		attribute.Int("request.job_length", len(submission.JobDescription)),
		attribute.String("operation", operation),
	)

	outcome := s.analyzer.Analyze(ctx, submission)

	span.SetAttributes(
		attribute.String("submission.id", outcome.ID),
		attribute.String("submission.state", string(outcome.State)),
	)
	if f := outcome.Failure; f != nil {
		span.SetAttributes(attribute.String("error.type", string(f.Kind)))
		span.SetStatus(codes.Error, f.Code)
	}
	return outcome
}

// statusForOutcome maps a finished submission to an HTTP status for the JSON API
func statusForOutcome(outcome *ats.Outcome) int {
	if outcome.Failure == nil {
		return http.StatusOK
	}
	switch outcome.Failure.Kind {
	case errors.ErrorTypeValidation:
		if outcome.Failure.Code == errors.ErrCodeFileTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.ErrorTypeDocumentParse:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeAI:
		if outcome.Failure.Code == errors.ErrCodeMissingAPIKey || outcome.Failure.Code == errors.ErrCodeAICircuitOpen {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case errors.ErrorTypeJSONDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// apiAnalyzeHandler accepts the form fields and answers with the outcome as JSON
func (s *Server) apiAnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	submission, reqErr := s.readSubmission(r)
	if reqErr != nil {
		s.Logger.Info("Rejected API submission", "code", reqErr.code, "error", reqErr.err)
		writeErrorResponse(w, reqErr.message, reqErr.code, reqErr.status)
		return
	}

	outcome := s.analyze(r, submission, "analyze")
	writeJSON(w, statusForOutcome(outcome), outcome)
}
