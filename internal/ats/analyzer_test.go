package ats

import (
	"context"
	"strings"
	"sync"
	"testing"

	"smartats/internal/ai"
	"smartats/internal/errors"
	"smartats/internal/extract"
	"smartats/internal/prompt"
	"smartats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	doc   *extract.Document
	err   error
}

func (f *fakeExtractor) Extract(data []byte) (*extract.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.doc, f.err
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   *ai.Reply
	err     error
	panic   any
}

func (f *fakeGateway) Generate(ctx context.Context, prompt string) (*ai.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.panic != nil {
		panic(f.panic)
	}
	return f.reply, f.err
}

func (f *fakeGateway) Model() string                              { return "fake-model" }
func (f *fakeGateway) GetModelInfo(context.Context) *ai.ModelInfo { return &ai.ModelInfo{Name: "fake-model"} }
func (f *fakeGateway) Stats() map[string]any                      { return map[string]any{} }
func (f *fakeGateway) Close() error                               { return nil }

const goodReply = `{"JD Match":"82%","MissingKeywords":["SQL","Docker"],"Profile Summary":"Strong backend skills."}`

type harness struct {
	extractor *fakeExtractor
	gateway   *fakeGateway
	analyzer  *Analyzer

	mu          sync.Mutex
	transitions []State
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	builder, err := prompt.NewBuilder("R={text}|J={jd}")
	require.NoError(t, err)

	h := &harness{
		extractor: &fakeExtractor{doc: &extract.Document{Text: "Go developer, Kubernetes", PageCount: 1}},
		gateway: &fakeGateway{reply: &ai.Reply{
			Text:       goodReply,
			Model:      "fake-model",
			TokenUsage: &types.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		}},
	}
	if opts.Observer == nil {
		opts.Observer = func(id string, from, to State) {
			h.mu.Lock()
			h.transitions = append(h.transitions, to)
			h.mu.Unlock()
		}
	}
	h.analyzer = NewAnalyzer(h.extractor, builder, h.gateway, errors.NewNopLogger(), opts)
	return h
}

func validSubmission() types.Submission {
	return types.Submission{
		JobDescription: "Backend engineer: Go, SQL, Docker",
		ResumePDF:      []byte("%PDF-1.4 fake"),
		ResumeFilename: "resume.pdf",
	}
}

func TestAnalyzeRendersWellFormedReply(t *testing.T) {
	h := newHarness(t, Options{})

	out := h.analyzer.Analyze(context.Background(), validSubmission())

	require.True(t, out.Succeeded(), "failure: %+v", out.Failure)
	assert.Nil(t, out.Failure)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, StateRendered, out.State)
	assert.True(t, out.State.Terminal())
	assert.Equal(t, []State{
		StateIdle, StateValidating, StateExtracting, StatePrompting, StateCalling, StateParsing, StateRendered,
	}, out.Visited)
	assert.Equal(t, out.Visited[1:], h.transitions)

	require.NotNil(t, out.View.Progress)
	assert.InDelta(t, 0.82, *out.View.Progress, 1e-9)
	assert.Equal(t, []string{"SQL", "Docker"}, out.View.MissingKeywords)
	assert.Equal(t, "Strong backend skills.", out.View.Summary)
	assert.Equal(t, "fake-model", out.Model)
	assert.Equal(t, int64(15), out.TokenUsage.TotalTokens)
	assert.Equal(t, 1, out.PageCount)

	require.Len(t, h.gateway.prompts, 1)
	assert.Equal(t, "R=Go developer, Kubernetes|J=Backend engineer: Go, SQL, Docker", h.gateway.prompts[0])
}

func TestAnalyzeValidation(t *testing.T) {
	tests := []struct {
		name       string
		submission types.Submission
		opts       Options
		field      string
		code       string
		message    string
		violations int
	}{
		{
			name:       "empty job description",
			submission: types.Submission{JobDescription: "", ResumePDF: []byte("x")},
			field:      FieldJobDescription,
			code:       errors.ErrCodeMissingJobDescription,
			message:    MsgMissingJobDescription,
			violations: 1,
		},
		{
			name:       "whitespace job description",
			submission: types.Submission{JobDescription: " \n\t ", ResumePDF: []byte("x")},
			field:      FieldJobDescription,
			code:       errors.ErrCodeMissingJobDescription,
			message:    MsgMissingJobDescription,
			violations: 1,
		},
		{
			name:       "missing resume",
			submission: types.Submission{JobDescription: "Go"},
			field:      FieldResume,
			code:       errors.ErrCodeMissingResume,
			message:    MsgMissingResume,
			violations: 1,
		},
		{
			name:       "both missing reports job description first",
			submission: types.Submission{},
			field:      FieldJobDescription,
			code:       errors.ErrCodeMissingJobDescription,
			message:    MsgMissingJobDescription,
			violations: 2,
		},
		{
			name:       "job description too long",
			submission: types.Submission{JobDescription: strings.Repeat("é", 11), ResumePDF: []byte("x")},
			opts:       Options{MaxJDLength: 10},
			field:      FieldJobDescription,
			code:       errors.ErrCodeInvalidRequest,
			message:    "The Job Description is too long (11 characters, maximum 10).",
			violations: 1,
		},
		{
			name:       "resume too large",
			submission: types.Submission{JobDescription: "Go", ResumePDF: make([]byte, 11)},
			opts:       Options{MaxFileSize: 10},
			field:      FieldResume,
			code:       errors.ErrCodeFileTooLarge,
			message:    "The resume is too large (11 bytes, maximum 10).",
			violations: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts)

			out := h.analyzer.Analyze(context.Background(), tt.submission)

			assert.False(t, out.Succeeded())
			assert.Nil(t, out.View)
			assert.Equal(t, StateErrorShown, out.State)
			assert.Equal(t, []State{StateIdle, StateValidating, StateErrorShown}, out.Visited)
			require.NotNil(t, out.Failure)
			assert.Equal(t, errors.ErrorTypeValidation, out.Failure.Kind)
			assert.Equal(t, tt.field, out.Failure.Field)
			assert.Equal(t, tt.code, out.Failure.Code)
			assert.Equal(t, tt.message, out.Failure.Message)
			assert.Len(t, out.Failure.Violations, tt.violations)
			assert.Equal(t, tt.message, out.FieldMessage(tt.field))

			assert.Zero(t, h.extractor.calls, "extraction must not run")
			assert.Zero(t, h.gateway.calls, "gateway must not be called")
		})
	}
}

func TestAnalyzeDocumentParseFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.extractor.err = errors.NewDocumentParseError(errors.ErrCodeInvalidPDF, "the file is not a valid PDF", nil)

	out := h.analyzer.Analyze(context.Background(), validSubmission())

	require.NotNil(t, out.Failure)
	assert.Equal(t, errors.ErrorTypeDocumentParse, out.Failure.Kind)
	assert.Equal(t, errors.ErrCodeInvalidPDF, out.Failure.Code)
	assert.Equal(t, FieldResume, out.Failure.Field)
	assert.Contains(t, out.Failure.Message, "the file is not a valid PDF")
	assert.Equal(t, []State{StateIdle, StateValidating, StateExtracting, StateErrorShown}, out.Visited)
	assert.Zero(t, h.gateway.calls)
}

func TestAnalyzeGatewayFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.gateway.err = errors.NewAIError(errors.ErrCodeAIQuotaExceeded, "AI service returned 429: quota exhausted", nil)

	out := h.analyzer.Analyze(context.Background(), validSubmission())

	require.NotNil(t, out.Failure)
	assert.Equal(t, errors.ErrorTypeAI, out.Failure.Kind)
	assert.Equal(t, errors.ErrCodeAIQuotaExceeded, out.Failure.Code)
	assert.Equal(t, "Error during API call: AI service returned 429: quota exhausted", out.Failure.Message)
	assert.False(t, out.Failure.HasRawReply)
	assert.Equal(t, StateErrorShown, out.State)
	assert.NotContains(t, out.Visited, StateParsing)
	assert.Equal(t, 1, h.gateway.calls, "no retry")
}

func TestAnalyzeWithDisabledGateway(t *testing.T) {
	builder, err := prompt.NewBuilder("")
	require.NoError(t, err)
	extractor := &fakeExtractor{doc: &extract.Document{Text: "resume", PageCount: 1}}
	analyzer := NewAnalyzer(extractor, builder, ai.NewDisabledGateway("gemini-2.0-flash"), errors.NewNopLogger(), Options{})

	out := analyzer.Analyze(context.Background(), validSubmission())

	require.NotNil(t, out.Failure)
	assert.Equal(t, errors.ErrorTypeAI, out.Failure.Kind)
	assert.Equal(t, errors.ErrCodeMissingAPIKey, out.Failure.Code)
	assert.True(t, strings.HasPrefix(out.Failure.Message, "Error during API call: "))
}

func TestAnalyzeNonJSONReplyShowsRawText(t *testing.T) {
	h := newHarness(t, Options{})
	prose := "The candidate looks like a good match for the role."
	h.gateway.reply = &ai.Reply{Text: prose, Model: "fake-model"}

	out := h.analyzer.Analyze(context.Background(), validSubmission())

	require.NotNil(t, out.Failure)
	assert.Equal(t, errors.ErrorTypeJSONDecode, out.Failure.Kind)
	assert.Equal(t, MsgInvalidJSON, out.Failure.Message)
	assert.True(t, out.Failure.HasRawReply)
	assert.Equal(t, prose, out.Failure.RawReply)
	assert.Equal(t, StateErrorShown, out.State)
	assert.Contains(t, out.Visited, StateParsing)
	assert.Nil(t, out.View)
}

func TestAnalyzeMissingSummaryUsesPlaceholder(t *testing.T) {
	h := newHarness(t, Options{})
	h.gateway.reply = &ai.Reply{Text: `{"JD Match":"60%","MissingKeywords":[]}`}

	out := h.analyzer.Analyze(context.Background(), validSubmission())

	require.True(t, out.Succeeded())
	assert.Equal(t, types.DefaultProfileSummary, out.View.Summary)
	assert.NotEmpty(t, out.View.NoMissingMessage)
}

func TestAnalyzeRecoversFromPanic(t *testing.T) {
	h := newHarness(t, Options{})
	h.gateway.panic = "nil map write"

	var out *Outcome
	require.NotPanics(t, func() {
		out = h.analyzer.Analyze(context.Background(), validSubmission())
	})

	require.NotNil(t, out.Failure)
	assert.Equal(t, errors.ErrorTypeInternal, out.Failure.Kind)
	assert.Equal(t, errors.ErrCodeUnexpected, out.Failure.Code)
	assert.Contains(t, out.Failure.Message, "An unexpected error occurred")
	assert.Contains(t, out.Failure.Message, "nil map write")
	assert.Equal(t, StateErrorShown, out.State)
}

func TestAnalyzeSubmissionsAreIndependent(t *testing.T) {
	h := newHarness(t, Options{Observer: func(string, State, State) {}})

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := h.analyzer.Analyze(context.Background(), validSubmission())
			assert.True(t, out.Succeeded())
			ids <- out.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate submission id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, h.gateway.calls)
}
