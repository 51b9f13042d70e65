package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want FileRef
		ok   bool
	}{
		{
			name: "browser blob url",
			url:  "https://github.com/user/repo/blob/main/dir/file.txt",
			want: FileRef{User: "user", Repo: "repo", Path: "main/dir/file.txt"},
			ok:   true,
		},
		{
			name: "raw url",
			url:  "https://raw.githubusercontent.com/user/repo/main/dir/file.txt",
			want: FileRef{User: "user", Repo: "repo", Path: "main/dir/file.txt"},
			ok:   true,
		},
		{
			name: "tree url is not a file",
			url:  "https://github.com/user/repo/tree/main/dir",
			ok:   false,
		},
		{
			name: "repo root without file",
			url:  "https://github.com/user/repo",
			ok:   false,
		},
		{
			name: "not github",
			url:  "https://example.com/user/repo/blob/main/f",
			ok:   false,
		},
		{
			name: "raw url missing path",
			url:  "https://raw.githubusercontent.com/user/repo",
			ok:   false,
		},
		{
			name: "empty",
			url:  "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := ParseFileURL(tt.url)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, ref)
			}
		})
	}
}

func TestRawURL(t *testing.T) {
	ref := FileRef{User: "u", Repo: "r", Path: "main/f.txt"}
	assert.Equal(t, "https://raw.githubusercontent.com/u/r/main/f.txt", ref.RawURL())
}

func TestLookupRepoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/user/repo", r.URL.Path)
		w.Write([]byte(`{"id": 424242, "full_name": "user/repo"}`))
	}))
	defer srv.Close()

	client := NewClientWith(srv.Client(), srv.URL)
	id, err := client.LookupRepoID(context.Background(), "user", "repo")
	require.NoError(t, err)
	assert.Equal(t, int64(424242), id)
}

func TestLookupRepoIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClientWith(srv.Client(), srv.URL)
	_, err := client.LookupRepoID(context.Background(), "user", "gone")
	assert.Error(t, err)
}

func TestFetchRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("file content"))
	}))
	defer srv.Close()

	client := NewClientWith(srv.Client(), srv.URL)
	text, err := client.FetchRaw(context.Background(), srv.URL+"/user/repo/main/f")
	require.NoError(t, err)
	assert.Equal(t, "file content", text)
}

func TestFetchRawRejectsBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte{0xff, 0xfe, 0x00, 0x80})
	}))
	defer srv.Close()

	client := NewClientWith(srv.Client(), srv.URL)
	_, err := client.FetchRaw(context.Background(), srv.URL+"/f")
	assert.ErrorIs(t, err, ErrNotText)
}
