package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	gh "github.com/google/go-github/v75/github"
	"github.com/phrazzld/whatsapp-assistant/internal/config"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
)

// ErrNotConfigured is returned when no token is configured.
var ErrNotConfigured = errors.New("github token is not configured")

// File is a file to commit.
type File struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
}

// Repository is the subset of repository data the application keeps.
type Repository struct {
	ID            int64
	Name          string
	FullName      string
	HTMLURL       string
	DefaultBranch string
}

// Client creates repositories and commits for the configured account.
type Client struct {
	api      *gh.Client
	token    string
	username string
	logger   *slog.Logger
}

// NewClient creates a client. APIURL, when set, selects a GitHub Enterprise
// host. httpClient may be nil.
func NewClient(cfg config.GitHubConfig, log *slog.Logger, httpClient *http.Client) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	api := gh.NewClient(httpClient)
	if cfg.Token != "" {
		api = api.WithAuthToken(cfg.Token)
	}
	if cfg.APIURL != "" {
		var err error
		api, err = api.WithEnterpriseURLs(cfg.APIURL, cfg.APIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
	}
	return &Client{
		api:      api,
		token:    cfg.Token,
		username: cfg.Username,
		logger:   log.With(slog.String("component", "github_client")),
	}, nil
}

// CreateRepository creates a repository for the authenticated user,
// initialised with an empty commit so it has a default branch.
func (c *Client) CreateRepository(ctx context.Context, name, description string, private bool) (*Repository, error) {
	if c.token == "" {
		return nil, ErrNotConfigured
	}
	repo, _, err := c.api.Repositories.Create(ctx, "", &gh.Repository{
		Name:        gh.Ptr(name),
		Description: gh.Ptr(description),
		Private:     gh.Ptr(private),
		AutoInit:    gh.Ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create repository %s: %w", name, err)
	}

	out := toRepository(repo)
	logger.FromContextOrDefault(ctx, c.logger).Info("repository created",
		slog.String("repo", out.FullName))
	return out, nil
}

// CommitFiles writes files to the repository's default branch as a single
// commit and returns the new commit SHA. repo is either "owner/name" or a
// bare name owned by the configured user.
func (c *Client) CommitFiles(ctx context.Context, repo string, files []File, message string) (string, error) {
	if c.token == "" {
		return "", ErrNotConfigured
	}
	if len(files) == 0 {
		return "", errors.New("no files to commit")
	}
	owner, name := c.splitRepo(repo)

	r, _, err := c.api.Repositories.Get(ctx, owner, name)
	if err != nil {
		return "", fmt.Errorf("failed to get repository: %w", err)
	}
	ref := "heads/" + r.GetDefaultBranch()

	head, _, err := c.api.Git.GetRef(ctx, owner, name, ref)
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", ref, err)
	}
	parentSHA := head.GetObject().GetSHA()

	entries, err := c.createBlobs(ctx, owner, name, files)
	if err != nil {
		return "", err
	}

	tree, _, err := c.api.Git.CreateTree(ctx, owner, name, parentSHA, entries)
	if err != nil {
		return "", fmt.Errorf("failed to create tree: %w", err)
	}

	commit, _, err := c.api.Git.CreateCommit(ctx, owner, name, gh.Commit{
		Message: gh.Ptr(message),
		Tree:    &gh.Tree{SHA: tree.SHA},
		Parents: []*gh.Commit{{SHA: gh.Ptr(parentSHA)}},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create commit: %w", err)
	}

	if _, _, err := c.api.Git.UpdateRef(ctx, owner, name, ref, gh.UpdateRef{SHA: commit.GetSHA()}); err != nil {
		return "", fmt.Errorf("failed to update %s: %w", ref, err)
	}

	logger.FromContextOrDefault(ctx, c.logger).Info("files committed",
		slog.String("repo", owner+"/"+name),
		slog.Int("files", len(files)),
		slog.String("sha", commit.GetSHA()))
	return commit.GetSHA(), nil
}

// createBlobs uploads file contents concurrently and returns tree entries in
// the order of files.
func (c *Client) createBlobs(ctx context.Context, owner, repo string, files []File) ([]*gh.TreeEntry, error) {
	entries := make([]*gh.TreeEntry, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			blob, _, err := c.api.Git.CreateBlob(ctx, owner, repo, gh.Blob{
				Content:  gh.Ptr(base64.StdEncoding.EncodeToString([]byte(f.Content))),
				Encoding: gh.Ptr("base64"),
			})
			if err != nil {
				errs[i] = fmt.Errorf("failed to create blob for %s: %w", f.Path, err)
				return
			}
			entries[i] = &gh.TreeEntry{
				Path: gh.Ptr(f.Path),
				Mode: gh.Ptr("100644"),
				Type: gh.Ptr("blob"),
				SHA:  blob.SHA,
			}
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) splitRepo(repo string) (owner, name string) {
	if o, n, ok := strings.Cut(repo, "/"); ok {
		return o, n
	}
	return c.username, repo
}

func toRepository(r *gh.Repository) *Repository {
	return &Repository{
		ID:            r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		HTMLURL:       r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
	}
}
