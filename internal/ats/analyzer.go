package ats

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"smartats/internal/ai"
	"smartats/internal/analysis"
	"smartats/internal/errors"
	"smartats/internal/extract"
	"smartats/internal/observability"
	"smartats/internal/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PromptBuilder fills the evaluator template
type PromptBuilder interface {
	Build(resumeText, jobDescription string) string
}

// Observer is called on every state transition of a submission
type Observer func(id string, from, to State)

// Options tunes an Analyzer. Zero limits disable the corresponding check.
type Options struct {
	MaxFileSize int64
	MaxJDLength int
	Observer    Observer
	Metrics     *observability.Metrics
}

// Analyzer runs submissions through extract, prompt, call and parse.
// It holds no per-submission state and is safe for concurrent use.
type Analyzer struct {
	extractor extract.Extractor
	builder   PromptBuilder
	gateway   ai.Gateway
	logger    *errors.Logger
	opts      Options
}

// NewAnalyzer creates an analyzer from its collaborators
func NewAnalyzer(extractor extract.Extractor, builder PromptBuilder, gateway ai.Gateway, logger *errors.Logger, opts Options) *Analyzer {
	return &Analyzer{
		extractor: extractor,
		builder:   builder,
		gateway:   gateway,
		logger:    logger,
		opts:      opts,
	}
}

// Gateway returns the model gateway in use
func (a *Analyzer) Gateway() ai.Gateway {
	return a.gateway
}

// submission tracks one run through the state machine
type submission struct {
	a    *Analyzer
	out  *Outcome
	span trace.Span
}

// Analyze processes one submission. It never panics; every failure is
// reported through the returned outcome. No step is retried.
func (a *Analyzer) Analyze(ctx context.Context, in types.Submission) (out *Outcome) {
	start := time.Now()
	out = &Outcome{
		ID:      uuid.NewString(),
		State:   StateIdle,
		Visited: []State{StateIdle},
	}

	tracer := otel.Tracer("smartats.ats")
	ctx, span := tracer.Start(ctx, "ats.analyze", trace.WithAttributes(
		attribute.String("submission.id", out.ID),
	))
	defer span.End()

	s := &submission{a: a, out: out, span: span}

	defer func() {
		if r := recover(); r != nil {
			a.logger.LogError(fmt.Errorf("panic: %v", r), "Recovered from panic while processing submission",
				"id", out.ID, "state", out.State)
			out.View = nil
			s.fail(&Failure{
				Kind:    errors.ErrorTypeInternal,
				Code:    errors.ErrCodeUnexpected,
				Message: fmt.Sprintf(msgUnexpected, r),
			})
		}
		out.Duration = time.Since(start)
		s.finish(ctx)
	}()

	s.run(ctx, in)
	return out
}

func (s *submission) run(ctx context.Context, in types.Submission) {
	s.transition(StateValidating)
	if violations := s.a.validate(in); len(violations) > 0 {
		s.fail(&Failure{
			Kind:       errors.ErrorTypeValidation,
			Code:       violations[0].Code,
			Message:    violations[0].Message,
			Field:      violations[0].Field,
			Violations: violations,
		})
		return
	}

	metrics := s.a.opts.Metrics
	metrics.RecordContentSize(ctx, "resume_pdf", len(in.ResumePDF))
	metrics.RecordContentSize(ctx, "job_description", len(in.JobDescription))

	s.transition(StateExtracting)
	doc, err := s.extract(ctx, in.ResumePDF)
	if err != nil {
		appErr, ok := errors.As(err)
		if !ok {
			appErr = errors.NewDocumentParseError(errors.ErrCodeInvalidPDF, "the PDF could not be read", err)
		}
		s.a.logger.LogError(appErr, "Resume extraction failed", "id", s.out.ID)
		s.fail(&Failure{
			Kind:    appErr.Type,
			Code:    appErr.Code,
			Message: fmt.Sprintf(msgDocumentError, describe(appErr)),
			Field:   FieldResume,
		})
		return
	}
	s.out.PageCount = doc.PageCount
	metrics.RecordContentSize(ctx, "resume_text", len(doc.Text))

	s.transition(StatePrompting)
	prompt := s.a.builder.Build(doc.Text, in.JobDescription)

	s.transition(StateCalling)
	reply, err := s.call(ctx, prompt)
	if err != nil {
		appErr, ok := errors.As(err)
		if !ok {
			appErr = errors.NewAIError(errors.ErrCodeAIServiceFailed, "AI service call failed", err)
		}
		s.fail(&Failure{
			Kind:    appErr.Type,
			Code:    appErr.Code,
			Message: fmt.Sprintf(msgAPIError, describe(appErr)),
		})
		return
	}
	s.out.Model = reply.Model
	s.out.TokenUsage = reply.TokenUsage

	s.transition(StateParsing)
	parsed := analysis.Parse(reply.Text)
	if !parsed.Decoded() {
		s.a.logger.LogError(parsed.Err, "Model reply was not valid JSON", "id", s.out.ID, "reply_length", len(reply.Text))
		s.fail(&Failure{
			Kind:        parsed.Err.Type,
			Code:        parsed.Err.Code,
			Message:     MsgInvalidJSON,
			RawReply:    parsed.Raw,
			HasRawReply: true,
		})
		return
	}
	for _, w := range parsed.Warnings {
		s.a.logger.Warn("Model reply field ignored", "id", s.out.ID, "warning", w)
	}

	view := analysis.RenderOutcome(parsed)
	s.out.View = &view
	s.transition(StateRendered)
}

func (s *submission) extract(ctx context.Context, data []byte) (*extract.Document, error) {
	_, span := otel.Tracer("smartats.ats").Start(ctx, "ats.extract")
	defer span.End()

	doc, err := s.a.extractor.Extract(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("resume.pages", doc.PageCount),
		attribute.Int("resume.empty_pages", doc.EmptyPages),
		attribute.Int("resume.text_length", len(doc.Text)),
	)
	return doc, nil
}

func (s *submission) call(ctx context.Context, prompt string) (*ai.Reply, error) {
	var reply *ai.Reply
	err := s.a.opts.Metrics.TrackAICall(ctx, s.a.gateway.Model(), func(ctx context.Context) (*types.TokenUsage, error) {
		r, err := s.a.gateway.Generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		reply = r
		return r.TokenUsage, nil
	})
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, errors.NewAIError(errors.ErrCodeAIEmptyResponse, "AI service returned no reply", nil)
	}
	return reply, nil
}

// validate checks both inputs before any work is done.
// A nil ResumePDF means no file was supplied; an empty one is left to the extractor.
func (a *Analyzer) validate(in types.Submission) []Violation {
	var violations []Violation

	if strings.TrimSpace(in.JobDescription) == "" {
		violations = append(violations, Violation{
			Field:   FieldJobDescription,
			Code:    errors.ErrCodeMissingJobDescription,
			Message: MsgMissingJobDescription,
		})
	} else if n := utf8.RuneCountInString(in.JobDescription); a.opts.MaxJDLength > 0 && n > a.opts.MaxJDLength {
		violations = append(violations, Violation{
			Field:   FieldJobDescription,
			Code:    errors.ErrCodeInvalidRequest,
			Message: fmt.Sprintf("The Job Description is too long (%d characters, maximum %d).", n, a.opts.MaxJDLength),
		})
	}

	if in.ResumePDF == nil {
		violations = append(violations, Violation{
			Field:   FieldResume,
			Code:    errors.ErrCodeMissingResume,
			Message: MsgMissingResume,
		})
	} else if a.opts.MaxFileSize > 0 && int64(len(in.ResumePDF)) > a.opts.MaxFileSize {
		violations = append(violations, Violation{
			Field:   FieldResume,
			Code:    errors.ErrCodeFileTooLarge,
			Message: fmt.Sprintf("The resume is too large (%d bytes, maximum %d).", len(in.ResumePDF), a.opts.MaxFileSize),
		})
	}

	return violations
}

func (s *submission) transition(to State) {
	from := s.out.State
	s.out.State = to
	s.out.Visited = append(s.out.Visited, to)

	s.a.logger.Debug("Submission state changed", "id", s.out.ID, "from", from, "to", to)
	s.span.AddEvent(string(to))
	if s.a.opts.Observer != nil {
		s.a.opts.Observer(s.out.ID, from, to)
	}
}

func (s *submission) fail(f *Failure) {
	s.out.Failure = f
	s.transition(StateErrorShown)
}

func (s *submission) finish(ctx context.Context) {
	label := string(StateRendered)
	if s.out.Failure != nil {
		label = string(s.out.Failure.Kind)
		s.span.SetStatus(codes.Error, s.out.Failure.Code)
		s.span.SetAttributes(
			attribute.String("error.type", string(s.out.Failure.Kind)),
			attribute.String("error.code", s.out.Failure.Code),
		)
	}
	s.span.SetAttributes(
		attribute.String("state", string(s.out.State)),
		attribute.Bool("success", s.out.Failure == nil),
	)
	s.a.opts.Metrics.RecordAnalysis(ctx, label)

	s.a.logger.Info("Submission finished",
		"id", s.out.ID,
		"state", s.out.State,
		"outcome", label,
		"duration", s.out.Duration)
}

// describe renders an AppError for display without its code prefix
func describe(err *errors.AppError) string {
	if err.Cause != nil {
		return fmt.Sprintf("%s: %v", err.Message, err.Cause)
	}
	return err.Message
}
