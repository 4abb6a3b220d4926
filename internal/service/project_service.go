package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/events"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/github"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
)

// Defaults applied to a project spec.
const (
	DefaultProjectName       = "project"
	DefaultRepoDescription   = "Generated by WhatsApp AI Assistant"
	DefaultReadmeDescription = "Project generated by AI"
	InitialCommitMessage     = "Initial commit from AI Assistant"
)

var repoNameUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ProjectSpec describes a repository to generate.
type ProjectSpec struct {
	Name        string        `json:"name,omitempty" validate:"omitempty,max=80"`
	Description string        `json:"description,omitempty" validate:"omitempty,max=350"`
	IsPrivate   bool          `json:"isPrivate,omitempty"`
	Files       []github.File `json:"files,omitempty" validate:"omitempty,dive"`
}

// BuildPayload is the payload of a github-build task.
type BuildPayload struct {
	UserID      uuid.UUID   `json:"userId"`
	SessionID   uuid.UUID   `json:"sessionId"`
	ProjectSpec ProjectSpec `json:"projectSpec"`
}

// BuildResult is returned once the repository has its first commit.
type BuildResult struct {
	ArtifactID uuid.UUID `json:"artifactId"`
	RepoURL    string    `json:"repoUrl"`
	RepoName   string    `json:"repoName"`
	CommitSHA  string    `json:"commitSha"`
}

// ProjectService builds GitHub repositories in the background.
type ProjectService interface {
	// RequestBuild queues a build for a session owned by userID and returns
	// the job id.
	RequestBuild(ctx context.Context, userID, sessionID uuid.UUID, spec ProjectSpec) (uuid.UUID, error)

	BuildProject(ctx context.Context, payload BuildPayload) (*BuildResult, error)
}

// ProjectServiceImpl implements ProjectService and is the github-build
// queue handler.
type ProjectServiceImpl struct {
	sessions  store.SessionStore
	artifacts store.ArtifactStore
	repos     RepositoryHost
	emitter   events.EventEmitter
	logger    *slog.Logger
	now       func() time.Time
}

// NewProjectService creates a ProjectService.
func NewProjectService(
	sessions store.SessionStore,
	artifacts store.ArtifactStore,
	repos RepositoryHost,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *ProjectServiceImpl {
	return &ProjectServiceImpl{
		sessions:  sessions,
		artifacts: artifacts,
		repos:     repos,
		emitter:   emitter,
		logger:    logger.With("component", "project_service"),
		now:       time.Now,
	}
}

func (s *ProjectServiceImpl) RequestBuild(
	ctx context.Context,
	userID, sessionID uuid.UUID,
	spec ProjectSpec,
) (uuid.UUID, error) {
	if _, err := s.sessions.GetForUser(ctx, sessionID, userID); err != nil {
		return uuid.Nil, err
	}

	jobID, err := emitTask(ctx, s.emitter, task.QueueGitHubBuild, TaskBuildProject, BuildPayload{
		UserID:      userID,
		SessionID:   sessionID,
		ProjectSpec: spec,
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("github build queued", "job_id", jobID, "session_id", sessionID)
	return jobID, nil
}

// BuildProject creates the repository, records it as an artifact and
// commits the spec's files. A failed commit leaves the artifact failed.
func (s *ProjectServiceImpl) BuildProject(ctx context.Context, payload BuildPayload) (*BuildResult, error) {
	spec := payload.ProjectSpec
	repoName := s.repoName(spec.Name)
	log := logger.FromContextOrDefault(ctx, s.logger).With("repo", repoName)

	description := spec.Description
	if description == "" {
		description = DefaultRepoDescription
	}

	repo, err := s.repos.CreateRepository(ctx, repoName, description, spec.IsPrivate)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	artifact, err := domain.NewArtifact(payload.UserID, payload.SessionID, domain.ArtifactTypeRepository, repoName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	artifact.Description = spec.Description
	artifact.URL = repo.HTMLURL
	artifact.Metadata = map[string]any{
		"repoFullName": repo.FullName,
		"repoId":       repo.ID,
	}
	artifact.Status = domain.ArtifactStatusInProgress
	if err := s.artifacts.Create(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}

	files := spec.Files
	if len(files) == 0 {
		readme := spec.Description
		if readme == "" {
			readme = DefaultReadmeDescription
		}
		files = []github.File{{Path: "README.md", Content: "# " + repoName + "\n\n" + readme}}
	}

	sha, err := s.repos.CommitFiles(ctx, repo.FullName, files, InitialCommitMessage)
	if err != nil {
		artifact.SetStatus(domain.ArtifactStatusFailed)
		if uerr := s.artifacts.Update(ctx, artifact); uerr != nil {
			log.Error("failed to mark artifact failed", "error", uerr, "artifact_id", artifact.ID)
		}
		return nil, fmt.Errorf("failed to commit files: %w", err)
	}

	artifact.SetStatus(domain.ArtifactStatusCompleted)
	artifact.Metadata["commitSha"] = sha
	if err := s.artifacts.Update(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to update artifact: %w", err)
	}

	log.Info("project built", "url", repo.HTMLURL, "files", len(files))
	return &BuildResult{
		ArtifactID: artifact.ID,
		RepoURL:    repo.HTMLURL,
		RepoName:   repoName,
		CommitSHA:  sha,
	}, nil
}

// Handle implements task.Handler for the github-build queue.
func (s *ProjectServiceImpl) Handle(ctx context.Context, t *task.Task) (any, error) {
	var payload BuildPayload
	if err := t.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	res, err := s.BuildProject(ctx, payload)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":    true,
		"artifactId": res.ArtifactID,
		"repoUrl":    res.RepoURL,
	}, nil
}

// repoName appends a millisecond timestamp so repeated builds never clash.
func (s *ProjectServiceImpl) repoName(name string) string {
	name = strings.Trim(repoNameUnsafe.ReplaceAllString(strings.TrimSpace(name), "-"), "-.")
	if name == "" {
		name = DefaultProjectName
	}
	return fmt.Sprintf("%s-%d", name, s.now().UnixMilli())
}

var (
	_ ProjectService = (*ProjectServiceImpl)(nil)
	_ task.Handler   = (*ProjectServiceImpl)(nil)
)
