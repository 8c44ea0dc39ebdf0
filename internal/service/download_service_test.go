package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/iconidentify/vodgrabba/internal/config"
	"github.com/iconidentify/vodgrabba/internal/domain"
	"github.com/iconidentify/vodgrabba/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePlaybackClient struct {
	mu          sync.Mutex
	bearers     []string
	authErr     error
	manifest    string
	manifestErr error
}

func (f *fakePlaybackClient) Authorize(ctx context.Context, id domain.VideoID, bearer string) (*domain.PlaybackAuthorization, error) {
	f.mu.Lock()
	f.bearers = append(f.bearers, bearer)
	f.mu.Unlock()
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &domain.PlaybackAuthorization{Signature: "sig", Value: "value"}, nil
}

func (f *fakePlaybackClient) FetchManifest(ctx context.Context, id domain.VideoID, auth *domain.PlaybackAuthorization) (io.ReadCloser, error) {
	if f.manifestErr != nil {
		return nil, f.manifestErr
	}
	return io.NopCloser(strings.NewReader(f.manifest)), nil
}

func (f *fakePlaybackClient) lastBearer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bearers) == 0 {
		return "<none>"
	}
	return f.bearers[len(f.bearers)-1]
}

type fakeConverter struct {
	mu       sync.Mutex
	requests []domain.ConversionRequest
	err      error
}

func (f *fakeConverter) Convert(ctx context.Context, req domain.ConversionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.err
}

type memorySettings struct {
	values map[string]string
	getErr error
}

func newMemorySettings() *memorySettings {
	return &memorySettings{values: make(map[string]string)}
}

func (m *memorySettings) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrSettingNotFound
	}
	return v, nil
}

func (m *memorySettings) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memorySettings) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

type serviceFixture struct {
	svc       *DownloadService
	client    *fakePlaybackClient
	converter *fakeConverter
	settings  *memorySettings
	jobs      *repository.InMemoryJobRepository
	outputDir string
}

func setupDownloadService(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		client: &fakePlaybackClient{
			manifest: "#EXTM3U\n#EXT-X-MEDIA:TYPE=VIDEO,AUTOSELECT=NO,DEFAULT=NO\n",
		},
		converter: &fakeConverter{},
		settings:  newMemorySettings(),
		jobs:      repository.NewInMemoryJobRepository(),
		outputDir: t.TempDir(),
	}
	cfg := config.StorageConfig{
		OutputDir:     f.outputDir,
		DefaultOutput: "ttv_vod.mp4",
	}
	f.svc = NewDownloadService(f.client, f.converter, f.settings, f.jobs, cfg, testLogger())
	return f
}

func TestDownloadService_Download(t *testing.T) {
	f := setupDownloadService(t)
	dest := filepath.Join(t.TempDir(), "out dir", "My Video.mp4")

	result, err := f.svc.Download(context.Background(), DownloadRequest{
		Input:      "https://www.twitch.tv/videos/123456789",
		OutputPath: dest,
		InputArgs:  []string{"-ss", "10"},
		OutputArgs: []string{"-c", "copy"},
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if result.VideoID != "123456789" {
		t.Errorf("VideoID = %q, want %q", result.VideoID, "123456789")
	}
	wantDest := strings.ReplaceAll(dest, " ", "_")
	if result.OutputPath != wantDest {
		t.Errorf("OutputPath = %q, want %q", result.OutputPath, wantDest)
	}

	if len(f.converter.requests) != 1 {
		t.Fatalf("expected 1 conversion, got %d", len(f.converter.requests))
	}
	req := f.converter.requests[0]
	if !strings.Contains(string(req.Manifest), "AUTOSELECT=YES,DEFAULT=YES") {
		t.Errorf("manifest was not patched: %q", req.Manifest)
	}
	if strings.Join(req.InputArgs, " ") != "-ss 10" {
		t.Errorf("InputArgs = %v", req.InputArgs)
	}
	if strings.Join(req.OutputArgs, " ") != "-c copy" {
		t.Errorf("OutputArgs = %v", req.OutputArgs)
	}
	if req.Destination != wantDest {
		t.Errorf("Destination = %q, want %q", req.Destination, wantDest)
	}
}

func TestDownloadService_Download_DefaultOutput(t *testing.T) {
	f := setupDownloadService(t)

	result, err := f.svc.Download(context.Background(), DownloadRequest{Input: "42"})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if result.OutputPath != "ttv_vod.mp4" {
		t.Errorf("OutputPath = %q, want %q", result.OutputPath, "ttv_vod.mp4")
	}
}

func TestDownloadService_Download_InvalidInput(t *testing.T) {
	f := setupDownloadService(t)

	_, err := f.svc.Download(context.Background(), DownloadRequest{Input: "not-a-vod"})
	if !errors.Is(err, domain.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
	if len(f.client.bearers) != 0 {
		t.Error("no network call should be made for invalid input")
	}
}

func TestDownloadService_BearerPrecedence(t *testing.T) {
	f := setupDownloadService(t)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "a.mp4")

	if _, err := f.svc.Download(ctx, DownloadRequest{Input: "1", OutputPath: out}); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if got := f.client.lastBearer(); got != "" {
		t.Errorf("bearer without saved token = %q, want empty", got)
	}

	if err := f.svc.SetAuthToken(ctx, "saved"); err != nil {
		t.Fatalf("SetAuthToken failed: %v", err)
	}
	f.svc.Download(ctx, DownloadRequest{Input: "1", OutputPath: out})
	if got := f.client.lastBearer(); got != "saved" {
		t.Errorf("bearer = %q, want %q", got, "saved")
	}

	f.svc.Download(ctx, DownloadRequest{Input: "1", OutputPath: out, AuthToken: "override"})
	if got := f.client.lastBearer(); got != "override" {
		t.Errorf("bearer = %q, want %q", got, "override")
	}
}

func TestDownloadService_BearerReadFailureIsAnonymous(t *testing.T) {
	f := setupDownloadService(t)
	f.settings.getErr = errors.New("database is locked")

	_, err := f.svc.Download(context.Background(), DownloadRequest{
		Input:      "1",
		OutputPath: filepath.Join(t.TempDir(), "a.mp4"),
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if got := f.client.lastBearer(); got != "" {
		t.Errorf("bearer = %q, want empty", got)
	}
}

func TestDownloadService_StageErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *serviceFixture)
		want   error
		wantOp string
	}{
		{
			name:   "authorize",
			setup:  func(f *serviceFixture) { f.client.authErr = domain.ErrAuthRequestFailed },
			want:   domain.ErrAuthRequestFailed,
			wantOp: "authorize",
		},
		{
			name:   "manifest",
			setup:  func(f *serviceFixture) { f.client.manifestErr = domain.ErrManifestFetchFailed },
			want:   domain.ErrManifestFetchFailed,
			wantOp: "fetch manifest",
		},
		{
			name:   "convert",
			setup:  func(f *serviceFixture) { f.converter.err = &domain.ConversionError{ExitCode: 1} },
			want:   domain.ErrConversionFailed,
			wantOp: "convert",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupDownloadService(t)
			tt.setup(f)

			_, err := f.svc.Download(context.Background(), DownloadRequest{
				Input:      "99",
				OutputPath: filepath.Join(t.TempDir(), "a.mp4"),
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			var dlErr *domain.DownloadError
			if !errors.As(err, &dlErr) {
				t.Fatalf("expected DownloadError, got %T", err)
			}
			if dlErr.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", dlErr.Op, tt.wantOp)
			}
			if dlErr.VideoID != "99" {
				t.Errorf("VideoID = %q, want %q", dlErr.VideoID, "99")
			}
		})
	}
}

func TestDownloadService_AuthToken(t *testing.T) {
	f := setupDownloadService(t)
	ctx := context.Background()

	if _, err := f.svc.AuthToken(ctx); !errors.Is(err, domain.ErrSettingNotFound) {
		t.Fatalf("expected ErrSettingNotFound, got %v", err)
	}

	if err := f.svc.SetAuthToken(ctx, "   "); !errors.Is(err, domain.ErrEmptyAuthToken) {
		t.Errorf("expected ErrEmptyAuthToken, got %v", err)
	}

	if err := f.svc.SetAuthToken(ctx, "  abc123  "); err != nil {
		t.Fatalf("SetAuthToken failed: %v", err)
	}
	got, err := f.svc.AuthToken(ctx)
	if err != nil {
		t.Fatalf("AuthToken failed: %v", err)
	}
	if got != "abc123" {
		t.Errorf("AuthToken() = %q, want %q", got, "abc123")
	}

	if err := f.svc.ClearAuthToken(ctx); err != nil {
		t.Fatalf("ClearAuthToken failed: %v", err)
	}
	if _, err := f.svc.AuthToken(ctx); !errors.Is(err, domain.ErrSettingNotFound) {
		t.Errorf("expected ErrSettingNotFound after clear, got %v", err)
	}
}

func TestDownloadService_Submit(t *testing.T) {
	f := setupDownloadService(t)
	ctx := context.Background()

	job, err := f.svc.Submit(ctx, DownloadRequest{
		Input:      "https://twitch.tv/videos/555",
		OutputPath: "../../etc/evil name.mkv",
		AuthToken:  "override",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if !strings.HasPrefix(job.ID.String(), "job_") {
		t.Errorf("job ID %q should start with job_", job.ID)
	}
	if job.VideoID != "555" {
		t.Errorf("VideoID = %q, want %q", job.VideoID, "555")
	}
	want := filepath.Join(f.outputDir, "evil name.mkv")
	if job.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", job.OutputPath, want)
	}
	if job.Status != domain.JobStatusQueued {
		t.Errorf("Status = %q, want %q", job.Status, domain.JobStatusQueued)
	}

	stored, err := f.svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stored.AuthToken != "override" {
		t.Errorf("stored AuthToken = %q, want %q", stored.AuthToken, "override")
	}
}

func TestDownloadService_Submit_RejectsExtraOutputs(t *testing.T) {
	f := setupDownloadService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  DownloadRequest
	}{
		{
			name: "output file in output args",
			req: DownloadRequest{
				Input:      "123",
				OutputPath: "../../etc/x.mp4",
				OutputArgs: []string{"-c", "copy", "/tmp/outside.mp4"},
			},
		},
		{
			name: "relative output file",
			req:  DownloadRequest{Input: "123", OutputArgs: []string{"-an", "side.mp4"}},
		},
		{
			name: "second input",
			req:  DownloadRequest{Input: "123", InputArgs: []string{"-i", "/etc/passwd"}},
		},
		{
			name: "filter graph",
			req:  DownloadRequest{Input: "123", OutputArgs: []string{"-vf", "movie=/etc/x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tt.req)
			if !errors.Is(err, domain.ErrConverterArgNotAllowed) {
				t.Fatalf("expected ErrConverterArgNotAllowed, got %v", err)
			}
		})
	}

	stats, _ := f.jobs.Stats(ctx)
	if stats.Queued != 0 {
		t.Errorf("Queued = %d, want 0", stats.Queued)
	}

	job, err := f.svc.Submit(ctx, DownloadRequest{
		Input:      "123",
		InputArgs:  []string{"-ss", "00:10:00"},
		OutputArgs: []string{"-t", "60", "-c:v", "copy", "-an"},
	})
	if err != nil {
		t.Fatalf("Submit with allowed args failed: %v", err)
	}
	if len(job.OutputArgs) != 5 {
		t.Errorf("OutputArgs = %v", job.OutputArgs)
	}
}

func TestDownloadService_DownloadKeepsLocalArgs(t *testing.T) {
	f := setupDownloadService(t)

	_, err := f.svc.Download(context.Background(), DownloadRequest{
		Input:      "123",
		OutputPath: filepath.Join(f.outputDir, "a.mp4"),
		OutputArgs: []string{"-vf", "scale=1280:-2"},
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	got := f.converter.requests[0].OutputArgs
	if strings.Join(got, " ") != "-vf scale=1280:-2" {
		t.Errorf("OutputArgs = %v", got)
	}
}

func TestDownloadService_Submit_DefaultName(t *testing.T) {
	f := setupDownloadService(t)

	job, err := f.svc.Submit(context.Background(), DownloadRequest{Input: "777"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	want := filepath.Join(f.outputDir, "777.mp4")
	if job.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", job.OutputPath, want)
	}
}

func TestDownloadService_Submit_InvalidInput(t *testing.T) {
	f := setupDownloadService(t)

	if _, err := f.svc.Submit(context.Background(), DownloadRequest{Input: "abc"}); !errors.Is(err, domain.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
	stats, _ := f.jobs.Stats(context.Background())
	if stats.Queued != 0 {
		t.Errorf("Queued = %d, want 0", stats.Queued)
	}
}

func TestDownloadService_Process(t *testing.T) {
	f := setupDownloadService(t)
	ctx := context.Background()

	job, err := f.svc.Submit(ctx, DownloadRequest{Input: "321", AuthToken: "job-token"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := f.svc.Process(ctx, job); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := f.client.lastBearer(); got != "job-token" {
		t.Errorf("bearer = %q, want %q", got, "job-token")
	}
	if len(f.converter.requests) != 1 {
		t.Fatalf("expected 1 conversion, got %d", len(f.converter.requests))
	}
	if got := f.converter.requests[0].Destination; got != filepath.Join(f.outputDir, "321.mp4") {
		t.Errorf("Destination = %q", got)
	}
}

func TestDownloadService_ListJobs(t *testing.T) {
	f := setupDownloadService(t)
	ctx := context.Background()

	f.svc.Submit(ctx, DownloadRequest{Input: "1"})
	f.svc.Submit(ctx, DownloadRequest{Input: "2"})

	jobs, stats, err := f.svc.ListJobs(ctx, nil, 10)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("len(jobs) = %d, want 2", len(jobs))
	}
	if stats.Queued != 2 {
		t.Errorf("Queued = %d, want 2", stats.Queued)
	}
}

func TestDownloadService_WithoutQueue(t *testing.T) {
	svc := NewDownloadService(&fakePlaybackClient{}, &fakeConverter{}, newMemorySettings(), nil, config.StorageConfig{}, testLogger())
	ctx := context.Background()

	if _, err := svc.Submit(ctx, DownloadRequest{Input: "1"}); err == nil {
		t.Error("Submit without a queue should fail")
	}
	if _, err := svc.GetJob(ctx, "job_x"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
