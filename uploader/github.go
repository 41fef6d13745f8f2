package uploader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"cis-timetable/logger"
)

// Publisher pushes written artifacts to a hosting platform.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, artifacts []Artifact) error
}

type gitHubUploadRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type gitHubContent struct {
	SHA string `json:"sha"`
}

// GitHubPublisher commits artifacts through the GitHub contents API, e.g.
// into the branch a Pages site is built from.
type GitHubPublisher struct {
	Token  string
	Repo   string
	Path   string
	Branch string
	// BaseURL defaults to https://api.github.com.
	BaseURL string
	Client  *http.Client
}

func (g *GitHubPublisher) Name() string { return "github" }

func (g *GitHubPublisher) Publish(ctx context.Context, artifacts []Artifact) error {
	for _, a := range artifacts {
		if err := g.upload(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (g *GitHubPublisher) contentsURL(name string) string {
	base := g.BaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	return fmt.Sprintf("%s/repos/%s/contents/%s", strings.TrimRight(base, "/"), g.Repo, path.Join(g.Path, name))
}

func (g *GitHubPublisher) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (g *GitHubPublisher) upload(ctx context.Context, a Artifact) error {
	uploadURL := g.contentsURL(a.Name)
	log := logger.Log.WithField("url", uploadURL)

	sha, err := g.existingSHA(ctx, uploadURL)
	if err != nil {
		return err
	}

	body := gitHubUploadRequest{
		Message: "Update " + a.Name,
		Content: base64.StdEncoding.EncodeToString(a.Data),
		SHA:     sha,
		Branch:  g.Branch,
	}
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	g.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client().Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("error uploading %s to GitHub, status code: %d, response: %s", a.Name, resp.StatusCode, string(respBody))
	}

	log.Info("Uploaded artifact to GitHub")
	return nil
}

// existingSHA returns the blob SHA of the current file, or "" if it does
// not exist yet. GitHub rejects updates without it.
func (g *GitHubPublisher) existingSHA(ctx context.Context, contentsURL string) (string, error) {
	target := contentsURL
	if g.Branch != "" {
		target += "?ref=" + g.Branch
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	g.authorize(req)

	resp, err := g.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode >= 400:
		return "", fmt.Errorf("error reading %s from GitHub, status code: %d", contentsURL, resp.StatusCode)
	}

	var content gitHubContent
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return "", fmt.Errorf("error decoding GitHub response: %w", err)
	}
	return content.SHA, nil
}

func (g *GitHubPublisher) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
}
