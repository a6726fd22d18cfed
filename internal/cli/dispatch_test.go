package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangfeiyang-123/arxiv-relay/internal/config"
)

// TestDispatchCommandHonorsAPIBaseURL tests that the CLI dispatch path talks
// to the configured API host rather than the hardcoded default
func TestDispatchCommandHonorsAPIBaseURL(t *testing.T) {
	var gotPath, gotAuth string

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	t.Setenv("GITHUB_OWNER", "octo")
	t.Setenv("GITHUB_REPO", "papers")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GITHUB_API_BASE_URL", api.URL)
	t.Setenv("RELAY_WORKFLOWS_FILE", "")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"dispatch", "update"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "/repos/octo/papers/actions/workflows/"+config.DefaultUpdateWorkflow+"/dispatches", gotPath)
	assert.Equal(t, "Bearer ghp_test", gotAuth)
	assert.Contains(t, out.String(), `"ok": true`)
}
