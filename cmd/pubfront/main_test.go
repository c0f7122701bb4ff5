package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeCMS serves three pages of one post each.
func newFakeCMS(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/v2" {
			fmt.Fprint(w, `{"refs":[{"id":"master","ref":"m","isMasterRef":true}]}`)
			return
		}
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}
		next := "null"
		if page != "3" {
			n := map[string]string{"1": "2", "2": "3"}[page]
			next = fmt.Sprintf("%q", srv.URL+"/api/v2/documents/search?page="+n+"&ref=m")
		}
		fmt.Fprintf(w, `{"next_page":%s,"results":[{"uid":"post-%s","first_publication_date":"2021-03-2%sT10:00:00+0000","data":{"title":"Post %s","author":"Ana"}}]}`,
			next, page, page, page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPostsCommand(t *testing.T) {
	srv := newFakeCMS(t)
	t.Setenv("CMS_API_ENDPOINT", srv.URL+"/api/v2")
	t.Setenv("LOCALE", "pt-BR")

	out, err := run(t, "posts", "--pages", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "post-1")
	assert.Contains(t, out, "post-2")
	assert.NotContains(t, out, "post-3")
	assert.Contains(t, out, "21 mar 21")
	assert.Contains(t, out, "2 posts shown, more available")

	out, err = run(t, "posts", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "post-3")
	assert.Contains(t, out, "\n3 posts\n")
	assert.Less(t, strings.Index(out, "post-1"), strings.Index(out, "post-3"))
}

func TestPostsCommandRequiresEndpoint(t *testing.T) {
	t.Setenv("CMS_API_ENDPOINT", "")
	_, err := run(t, "posts")
	assert.ErrorContains(t, err, "CMS_API_ENDPOINT")
}

func TestPostsCommandRejectsZeroPages(t *testing.T) {
	_, err := run(t, "posts", "--pages", "0")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pubfront dev\n", out)
}
