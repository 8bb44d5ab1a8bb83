package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"smartats/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContainsInputsVerbatim(t *testing.T) {
	b, err := NewBuilder("")
	require.NoError(t, err)

	resume := "Jane Doe\nGo, Kubernetes, PostgreSQL\n\"quoted\" & <tagged>"
	jd := "Senior Backend Engineer: Go, SQL, Docker. {curly} braces stay."

	got := b.Build(resume, jd)

	assert.Contains(t, got, "resume:\n"+resume+"\n")
	assert.Contains(t, got, "description:\n"+jd+"\n")
	assert.Contains(t, got, `{"JD Match": "%", "MissingKeywords": [], "Profile Summary": ""}`)
	assert.NotContains(t, got, ResumePlaceholder)
	assert.NotContains(t, got, JobDescriptionPlaceholder)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(got), "Hey Act Like a skilled"))
}

func TestBuildDoesNotRescanSubstitutedText(t *testing.T) {
	b, err := NewBuilder("R={text} J={jd}")
	require.NoError(t, err)

	tests := []struct {
		name     string
		resume   string
		jd       string
		expected string
	}{
		{name: "plain", resume: "r", jd: "j", expected: "R=r J=j"},
		{name: "resume mentions jd placeholder", resume: "see {jd}", jd: "j", expected: "R=see {jd} J=j"},
		{name: "jd mentions text placeholder", resume: "r", jd: "{text}!", expected: "R=r J={text}!"},
		{name: "empty resume text", resume: "", jd: "j", expected: "R= J=j"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, b.Build(tt.resume, tt.jd))
		})
	}
}

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		errorMsg string
	}{
		{name: "default", template: DefaultTemplate},
		{name: "both placeholders", template: "{jd} then {text}"},
		{name: "blank", template: "  \n", errorMsg: "prompt template is empty"},
		{name: "missing jd", template: "only {text}", errorMsg: "missing placeholder(s): {jd}"},
		{name: "missing both", template: "nothing", errorMsg: "missing placeholder(s): {text}, {jd}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTemplate(tt.template)
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errorMsg)
		})
	}
}

func TestSetTemplateKeepsPreviousOnError(t *testing.T) {
	b, err := NewBuilder("A {text} {jd}")
	require.NoError(t, err)

	require.Error(t, b.SetTemplate("broken {text}"))
	assert.Equal(t, "A {text} {jd}", b.Template())
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(path, []byte("v1 {text} {jd}"), 0600))

	b, err := NewBuilder("v1 {text} {jd}")
	require.NoError(t, err)
	w := NewWatcher(path, b, 10*time.Millisecond, errors.NewNopLogger())

	require.NoError(t, os.WriteFile(path, []byte("v2 {text} {jd}"), 0600))
	require.NoError(t, w.Reload())
	assert.Equal(t, "v2 {text} {jd}", b.Template())

	require.NoError(t, os.WriteFile(path, []byte("v3 without placeholders"), 0600))
	assert.Error(t, w.Reload())
	assert.Equal(t, "v2 {text} {jd}", b.Template())

	require.NoError(t, os.Remove(path))
	assert.Error(t, w.Reload())
	assert.Equal(t, "v2 {text} {jd}", b.Template())
}

func TestWatcherPicksUpFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(path, []byte("v1 {text} {jd}"), 0600))

	b, err := NewBuilder("v1 {text} {jd}")
	require.NoError(t, err)

	var mu sync.Mutex
	reloads := 0
	w := NewWatcher(path, b, 20*time.Millisecond, errors.NewNopLogger())
	w.onReload = func(error) {
		mu.Lock()
		reloads++
		mu.Unlock()
	}

	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start())

	require.NoError(t, os.WriteFile(path, []byte("v2 {text} {jd}"), 0600))

	assert.Eventually(t, func() bool {
		return b.Template() == "v2 {text} {jd}"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, reloads, 1)
}
