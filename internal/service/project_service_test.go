package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/github"
	"github.com/phrazzld/whatsapp-assistant/internal/service"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProjectService(f *fixture) *service.ProjectServiceImpl {
	return service.NewProjectService(f.sessions, f.artifacts, f.repos, f.emitter, testLogger())
}

func TestProjectService_BuildProject(t *testing.T) {
	t.Run("default spec commits a README", func(t *testing.T) {
		f := newFixture()
		svc := newProjectService(f)
		payload := service.BuildPayload{UserID: uuid.New(), SessionID: uuid.New()}

		res, err := svc.BuildProject(context.Background(), payload)
		require.NoError(t, err)

		require.Len(t, f.repos.Created, 1)
		name := f.repos.Created[0]
		assert.Regexp(t, `^project-\d+$`, name)
		assert.Equal(t, name, res.RepoName)
		assert.Equal(t, "https://github.com/octocat/"+name, res.RepoURL)
		assert.Equal(t, "abc123", res.CommitSHA)

		require.Len(t, f.repos.Committed, 1)
		assert.Equal(t, "README.md", f.repos.Committed[0].Path)
		assert.Equal(t, "# "+name+"\n\n"+service.DefaultReadmeDescription, f.repos.Committed[0].Content)
		assert.Equal(t, service.InitialCommitMessage, f.repos.Message)

		require.Len(t, f.artifacts.Artifacts, 1)
		artifact := f.artifacts.Artifacts[0]
		assert.Equal(t, res.ArtifactID, artifact.ID)
		assert.Equal(t, domain.ArtifactTypeRepository, artifact.Type)
		assert.Equal(t, payload.SessionID, artifact.SessionID)
		assert.Equal(t, "octocat/"+name, artifact.Metadata["repoFullName"])
		assert.Equal(t, "abc123", artifact.Metadata["commitSha"])
		assert.Equal(t,
			[]domain.ArtifactStatus{domain.ArtifactStatusInProgress, domain.ArtifactStatusCompleted},
			f.artifacts.History[artifact.ID])
	})

	t.Run("name is sanitized and files are committed as given", func(t *testing.T) {
		f := newFixture()
		svc := newProjectService(f)
		files := []github.File{
			{Path: "main.go", Content: "package main"},
			{Path: "go.mod", Content: "module demo"},
		}

		res, err := svc.BuildProject(context.Background(), service.BuildPayload{
			UserID:    uuid.New(),
			SessionID: uuid.New(),
			ProjectSpec: service.ProjectSpec{
				Name:        " My App! ",
				Description: "A demo",
				Files:       files,
			},
		})
		require.NoError(t, err)
		assert.Regexp(t, `^My-App-\d+$`, res.RepoName)
		assert.Equal(t, files, f.repos.Committed)
		assert.Equal(t, "A demo", f.artifacts.Artifacts[0].Description)
	})

	t.Run("commit failure marks the artifact failed", func(t *testing.T) {
		f := newFixture()
		f.repos.CommitErr = errors.New("403 forbidden")
		svc := newProjectService(f)

		_, err := svc.BuildProject(context.Background(), service.BuildPayload{UserID: uuid.New(), SessionID: uuid.New()})
		require.Error(t, err)
		require.Len(t, f.artifacts.Artifacts, 1)
		id := f.artifacts.Artifacts[0].ID
		assert.Equal(t,
			[]domain.ArtifactStatus{domain.ArtifactStatusInProgress, domain.ArtifactStatusFailed},
			f.artifacts.History[id])
	})

	t.Run("repository creation failure leaves no artifact", func(t *testing.T) {
		f := newFixture()
		f.repos.CreateErr = errors.New("name already exists")
		svc := newProjectService(f)

		_, err := svc.BuildProject(context.Background(), service.BuildPayload{UserID: uuid.New(), SessionID: uuid.New()})
		require.Error(t, err)
		assert.Empty(t, f.artifacts.Artifacts)
	})
}

func TestProjectService_RequestBuild(t *testing.T) {
	f := newFixture()
	svc := newProjectService(f)
	userID := uuid.New()
	s := seedSession(t, f, userID, time.Now())

	jobID, err := svc.RequestBuild(context.Background(), userID, s.ID, service.ProjectSpec{Name: "demo"})
	require.NoError(t, err)

	emitted := f.emitter.emitted()
	require.Len(t, emitted, 1)
	assert.Equal(t, jobID, emitted[0].ID)
	assert.Equal(t, task.QueueGitHubBuild, emitted[0].Queue)
	assert.Equal(t, service.TaskBuildProject, emitted[0].Type)

	var payload service.BuildPayload
	require.NoError(t, emitted[0].UnmarshalPayload(&payload))
	assert.Equal(t, userID, payload.UserID)
	assert.Equal(t, s.ID, payload.SessionID)
	assert.Equal(t, "demo", payload.ProjectSpec.Name)

	t.Run("another user's session", func(t *testing.T) {
		_, err := svc.RequestBuild(context.Background(), uuid.New(), s.ID, service.ProjectSpec{})
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
		assert.Len(t, f.emitter.emitted(), 1)
	})

	t.Run("queue full", func(t *testing.T) {
		f.emitter.err = task.ErrQueueFull
		_, err := svc.RequestBuild(context.Background(), userID, s.ID, service.ProjectSpec{})
		assert.ErrorIs(t, err, task.ErrQueueFull)
	})
}

func TestProjectService_Handle(t *testing.T) {
	f := newFixture()
	svc := newProjectService(f)

	job, err := task.New(uuid.New(), task.QueueGitHubBuild, service.TaskBuildProject, service.BuildPayload{
		UserID:      uuid.New(),
		SessionID:   uuid.New(),
		ProjectSpec: service.ProjectSpec{Name: "svc"},
	}, 3)
	require.NoError(t, err)

	result, err := svc.Handle(context.Background(), job)
	require.NoError(t, err)
	out, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, f.artifacts.Artifacts[0].ID, out["artifactId"])
	assert.Contains(t, out["repoUrl"], "https://github.com/octocat/svc-")

	t.Run("malformed payload", func(t *testing.T) {
		bad := &task.Task{ID: uuid.New(), Type: service.TaskBuildProject, Payload: []byte("{")}
		_, err := svc.Handle(context.Background(), bad)
		assert.Error(t, err)
	})
}
