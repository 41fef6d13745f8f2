package uploader_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cis-timetable/uploader"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

var artifacts = []uploader.Artifact{
	{Name: "index.html", ContentType: "text/html; charset=utf-8", Data: []byte("<h1>Stundenplan</h1>")},
	{Name: "stundenplan.ics", Data: []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")},
}

func TestWriteArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public")
	require.NoError(t, uploader.WriteArtifacts(dir, artifacts))

	for _, a := range artifacts {
		got, err := os.ReadFile(filepath.Join(dir, a.Name))
		require.NoError(t, err)
		require.Equal(t, a.Data, got)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "no temp files may remain")
}

func TestWriteArtifacts_OverwritesPrevious(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("old"), 0o644))

	require.NoError(t, uploader.WriteArtifacts(dir, artifacts[:1]))
	got, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	require.Equal(t, artifacts[0].Data, got)
}

func TestWriteArtifacts_RollsBackOnFailedMove(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("old"), 0o644))
	// A non-empty directory cannot be replaced by a file.
	blocked := filepath.Join(dir, "stundenplan.ics")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "keep"), 0o755))

	err := uploader.WriteArtifacts(dir, artifacts)
	require.ErrorContains(t, err, "stundenplan.ics")

	got, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	require.Equal(t, "old", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "no temp or backup files may remain")
}

func TestWriteArtifacts_NewFilesRemovedOnFailedMove(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "stundenplan.ics", "keep"), 0o755))

	require.Error(t, uploader.WriteArtifacts(dir, artifacts))
	_, err := os.Stat(filepath.Join(dir, "index.html"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestGitHubPublisher(t *testing.T) {
	var puts []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			if r.URL.Path == "/repos/owner/site/contents/docs/index.html" {
				w.Write([]byte(`{"sha":"abc123"}`))
				return
			}
			http.NotFound(w, r)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			var req map[string]string
			require.NoError(t, json.Unmarshal(body, &req))
			req["path"] = r.URL.Path
			puts = append(puts, req)
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer server.Close()

	pub := &uploader.GitHubPublisher{Token: "token", Repo: "owner/site", Path: "docs", BaseURL: server.URL}
	require.NoError(t, pub.Publish(context.Background(), artifacts))

	require.Len(t, puts, 2)
	require.Equal(t, "/repos/owner/site/contents/docs/index.html", puts[0]["path"])
	require.Equal(t, "abc123", puts[0]["sha"])
	require.Equal(t, base64.StdEncoding.EncodeToString(artifacts[0].Data), puts[0]["content"])
	require.Empty(t, puts[1]["sha"])
}

func TestGitHubPublisher_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.NotFound(w, r)
			return
		}
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	pub := &uploader.GitHubPublisher{Token: "bad", Repo: "owner/site", BaseURL: server.URL}
	err := pub.Publish(context.Background(), artifacts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status code: 401")
}

type fakePutter struct {
	inputs []*s3.PutObjectInput
	err    error
}

func (f *fakePutter) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, input)
	return &manager.UploadOutput{}, nil
}

func TestS3Publisher(t *testing.T) {
	fake := &fakePutter{}
	pub := uploader.NewS3PublisherWith(fake, "timetable-bucket", "iktf")
	require.NoError(t, pub.Publish(context.Background(), artifacts))

	require.Len(t, fake.inputs, 2)
	require.Equal(t, "timetable-bucket", *fake.inputs[0].Bucket)
	require.Equal(t, "iktf/index.html", *fake.inputs[0].Key)
	require.Equal(t, "text/html; charset=utf-8", *fake.inputs[0].ContentType)
	require.Equal(t, "iktf/stundenplan.ics", *fake.inputs[1].Key)
	require.Equal(t, "text/calendar; charset=utf-8", *fake.inputs[1].ContentType)

	fake.err = errors.New("access denied")
	require.ErrorContains(t, pub.Publish(context.Background(), artifacts), "access denied")
}
