package handler

import (
	"context"
	"io"
	"log/slog"
	"sort"

	"github.com/iconidentify/vodgrabba/internal/domain"
	"github.com/iconidentify/vodgrabba/internal/repository"
	"github.com/iconidentify/vodgrabba/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockJobRepository is a test implementation of repository.JobRepository.
type mockJobRepository struct {
	stats    *repository.QueueStats
	statsErr error
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{
		stats: &repository.QueueStats{},
	}
}

func (m *mockJobRepository) Enqueue(ctx context.Context, job *domain.Job) error { return nil }

func (m *mockJobRepository) Dequeue(ctx context.Context) (*domain.Job, error) {
	return nil, domain.ErrNoJobs
}

func (m *mockJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	return nil, domain.ErrJobNotFound
}

func (m *mockJobRepository) Update(ctx context.Context, job *domain.Job) error { return nil }

func (m *mockJobRepository) List(ctx context.Context, status *domain.JobStatus, limit int) ([]*domain.Job, error) {
	return nil, nil
}

func (m *mockJobRepository) Stats(ctx context.Context) (*repository.QueueStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

// mockDownloadQueue is a test implementation of DownloadQueue.
type mockDownloadQueue struct {
	jobs      map[domain.JobID]*domain.Job
	submitted []service.DownloadRequest
	submitErr error
	getErr    error
	listErr   error
	lastLimit int
}

func newMockDownloadQueue() *mockDownloadQueue {
	return &mockDownloadQueue{
		jobs: make(map[domain.JobID]*domain.Job),
	}
}

func (m *mockDownloadQueue) Submit(ctx context.Context, req service.DownloadRequest) (*domain.Job, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	m.submitted = append(m.submitted, req)
	job := domain.NewJob("job_test", "123", "downloads/123.mp4")
	job.Input = req.Input
	job.AuthToken = req.AuthToken
	m.jobs[job.ID] = job
	return job, nil
}

func (m *mockDownloadQueue) GetJob(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (m *mockDownloadQueue) ListJobs(ctx context.Context, status *domain.JobStatus, limit int) ([]*domain.Job, *repository.QueueStats, error) {
	if m.listErr != nil {
		return nil, nil, m.listErr
	}
	m.lastLimit = limit

	var jobs []*domain.Job
	stats := &repository.QueueStats{}
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusQueued {
			stats.Queued++
		}
		if status != nil && job.Status != *status {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, stats, nil
}

// mockTokenStore is a test implementation of TokenStore.
type mockTokenStore struct {
	token  string
	getErr error
	setErr error
}

func (m *mockTokenStore) SetAuthToken(ctx context.Context, token string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if token == "" {
		return domain.ErrEmptyAuthToken
	}
	m.token = token
	return nil
}

func (m *mockTokenStore) AuthToken(ctx context.Context) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	if m.token == "" {
		return "", domain.ErrSettingNotFound
	}
	return m.token, nil
}

func (m *mockTokenStore) ClearAuthToken(ctx context.Context) error {
	m.token = ""
	return nil
}
