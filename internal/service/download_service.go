package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/vodgrabba/internal/config"
	"github.com/iconidentify/vodgrabba/internal/domain"
	"github.com/iconidentify/vodgrabba/internal/repository"
	"github.com/iconidentify/vodgrabba/pkg/ffmpeg"
	"github.com/iconidentify/vodgrabba/pkg/twitch"
)

const fallbackOutput = "ttv_vod.mp4"

// PlaybackClient obtains playback authorizations and signed manifests.
type PlaybackClient interface {
	Authorize(ctx context.Context, id domain.VideoID, bearer string) (*domain.PlaybackAuthorization, error)
	FetchManifest(ctx context.Context, id domain.VideoID, auth *domain.PlaybackAuthorization) (io.ReadCloser, error)
}

// Converter turns a patched manifest into an output file.
type Converter interface {
	Convert(ctx context.Context, req domain.ConversionRequest) error
}

// DownloadService runs the VOD pipeline and manages the saved auth token.
type DownloadService struct {
	client    PlaybackClient
	converter Converter
	settings  repository.SettingsRepository
	jobRepo   repository.JobRepository
	cfg       config.StorageConfig
	logger    *slog.Logger
}

// NewDownloadService creates a new download service. jobRepo may be nil when
// the service is only used for direct downloads.
func NewDownloadService(
	client PlaybackClient,
	converter Converter,
	settings repository.SettingsRepository,
	jobRepo repository.JobRepository,
	cfg config.StorageConfig,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		client:    client,
		converter: converter,
		settings:  settings,
		jobRepo:   jobRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

// DownloadRequest describes one VOD download.
type DownloadRequest struct {
	// Input is a VOD URL or a bare numeric ID.
	Input      string
	OutputPath string
	// AuthToken overrides the saved token for this request only.
	AuthToken  string
	InputArgs  []string
	OutputArgs []string
}

// DownloadResult is returned after a successful download.
type DownloadResult struct {
	VideoID       domain.VideoID
	OutputPath    string
	ManifestBytes int
	Duration      time.Duration
}

// Download resolves the input and runs the full pipeline synchronously.
func (s *DownloadService) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	id, err := twitch.ParseVideoID(req.Input)
	if err != nil {
		return nil, err
	}

	output := req.OutputPath
	if output == "" {
		output = s.defaultOutput()
	}

	return s.run(ctx, pipelineInput{
		videoID:    id,
		bearer:     req.AuthToken,
		output:     output,
		inputArgs:  req.InputArgs,
		outputArgs: req.OutputArgs,
	})
}

// Submit validates a request and queues it for the worker pool. The output
// name is reduced to its base name and placed in the configured output dir,
// and converter arguments are limited to an allow-list of ffmpeg options.
func (s *DownloadService) Submit(ctx context.Context, req DownloadRequest) (*domain.Job, error) {
	if s.jobRepo == nil {
		return nil, errors.New("job queue is not configured")
	}

	id, err := twitch.ParseVideoID(req.Input)
	if err != nil {
		return nil, err
	}
	if err := validateServerArgs(req.InputArgs); err != nil {
		return nil, fmt.Errorf("input args: %w", err)
	}
	if err := validateServerArgs(req.OutputArgs); err != nil {
		return nil, fmt.Errorf("output args: %w", err)
	}

	jobID := domain.JobID("job_" + uuid.New().String()[:8])
	job := domain.NewJob(jobID, id, s.serverOutputPath(id, req.OutputPath))
	job.Input = req.Input
	job.AuthToken = req.AuthToken
	job.InputArgs = req.InputArgs
	job.OutputArgs = req.OutputArgs

	if err := s.jobRepo.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("download submitted",
		"job_id", jobID,
		"video_id", id,
		"output", job.OutputPath,
	)

	return job, nil
}

// Process runs a queued job. Status bookkeeping belongs to the caller.
func (s *DownloadService) Process(ctx context.Context, job *domain.Job) error {
	_, err := s.run(ctx, pipelineInput{
		videoID:    job.VideoID,
		bearer:     job.AuthToken,
		output:     job.OutputPath,
		inputArgs:  job.InputArgs,
		outputArgs: job.OutputArgs,
	})
	return err
}

// GetJob returns a queued or finished job.
func (s *DownloadService) GetJob(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	if s.jobRepo == nil {
		return nil, domain.ErrJobNotFound
	}
	return s.jobRepo.Get(ctx, id)
}

// ListJobs returns jobs newest first.
func (s *DownloadService) ListJobs(ctx context.Context, status *domain.JobStatus, limit int) ([]*domain.Job, *repository.QueueStats, error) {
	if s.jobRepo == nil {
		return nil, &repository.QueueStats{}, nil
	}

	jobs, err := s.jobRepo.List(ctx, status, limit)
	if err != nil {
		return nil, nil, err
	}
	stats, err := s.jobRepo.Stats(ctx)
	if err != nil {
		return nil, nil, err
	}
	return jobs, stats, nil
}

// SetAuthToken saves the OAuth token used when no override is given.
func (s *DownloadService) SetAuthToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrEmptyAuthToken
	}
	if err := s.settings.Set(ctx, repository.SettingAuthToken, token); err != nil {
		return fmt.Errorf("save auth token: %w", err)
	}
	s.logger.Info("auth token saved")
	return nil
}

// AuthToken returns the saved token or domain.ErrSettingNotFound.
func (s *DownloadService) AuthToken(ctx context.Context) (string, error) {
	return s.settings.Get(ctx, repository.SettingAuthToken)
}

// ClearAuthToken removes the saved token.
func (s *DownloadService) ClearAuthToken(ctx context.Context) error {
	if err := s.settings.Delete(ctx, repository.SettingAuthToken); err != nil {
		return fmt.Errorf("clear auth token: %w", err)
	}
	s.logger.Info("auth token cleared")
	return nil
}

type pipelineInput struct {
	videoID    domain.VideoID
	bearer     string
	output     string
	inputArgs  []string
	outputArgs []string
}

func (s *DownloadService) run(ctx context.Context, in pipelineInput) (*DownloadResult, error) {
	start := time.Now()
	id := in.videoID
	logger := s.logger.With("video_id", id)

	bearer := s.resolveBearer(ctx, in.bearer)

	logger.Info("requesting playback access token", "authenticated", bearer != "")
	auth, err := s.client.Authorize(ctx, id, bearer)
	if err != nil {
		return nil, domain.NewDownloadError(id, "authorize", err)
	}

	logger.Info("downloading manifest")
	body, err := s.client.FetchManifest(ctx, id, auth)
	if err != nil {
		return nil, domain.NewDownloadError(id, "fetch manifest", err)
	}
	defer body.Close()

	manifest, err := twitch.PatchManifest(body)
	if err != nil {
		return nil, domain.NewDownloadError(id, "read manifest",
			fmt.Errorf("%w: %v", domain.ErrManifestFetchFailed, err))
	}
	logger.Debug("patched manifest", "manifest", string(manifest))

	dest := ffmpeg.SanitizeOutputPath(in.output)
	if err := s.prepareDestination(logger, dest); err != nil {
		return nil, domain.NewDownloadError(id, "prepare output", err)
	}

	logger.Info("starting conversion", "output", dest)
	err = s.converter.Convert(ctx, domain.ConversionRequest{
		Manifest:    manifest,
		InputArgs:   in.inputArgs,
		OutputArgs:  in.outputArgs,
		Destination: dest,
	})
	if err != nil {
		return nil, domain.NewDownloadError(id, "convert", err)
	}

	result := &DownloadResult{
		VideoID:       id,
		OutputPath:    dest,
		ManifestBytes: len(manifest),
		Duration:      time.Since(start),
	}
	logger.Info("download completed", "output", dest, "duration", result.Duration)

	return result, nil
}

// resolveBearer prefers the per-request override over the saved token. A
// failed read is logged and treated as no token.
func (s *DownloadService) resolveBearer(ctx context.Context, override string) string {
	if override != "" {
		return override
	}
	if s.settings == nil {
		return ""
	}

	token, err := s.settings.Get(ctx, repository.SettingAuthToken)
	if err != nil {
		if !errors.Is(err, domain.ErrSettingNotFound) {
			s.logger.Warn("could not read saved auth token", "error", err)
		}
		return ""
	}
	return token
}

func (s *DownloadService) prepareDestination(logger *slog.Logger, dest string) error {
	dir := filepath.Dir(dest)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	if free, err := freeDiskSpace(dir); err == nil {
		logger.Debug("free disk space", "dir", dir, "bytes", free)
	}
	return nil
}

func (s *DownloadService) defaultOutput() string {
	if s.cfg.DefaultOutput != "" {
		return s.cfg.DefaultOutput
	}
	return fallbackOutput
}

func (s *DownloadService) serverOutputPath(id domain.VideoID, requested string) string {
	name := filepath.Base(filepath.Clean("/" + requested))
	if requested == "" || name == "/" || name == "." || name == ".." {
		name = id.String() + ".mp4"
	}
	dir := s.cfg.OutputDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name)
}
