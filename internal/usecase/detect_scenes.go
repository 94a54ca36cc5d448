package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shotmark/shotmark-detection-service/internal/domain/entity"
	"github.com/shotmark/shotmark-detection-service/internal/domain/port"
	"github.com/shotmark/shotmark-detection-service/internal/infra/metrics"
	"github.com/shotmark/shotmark-detection-service/internal/transnet"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type DetectScenesUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	decoder   port.FrameDecoder
	scorer    transnet.WindowScorer
	archiver  port.ResultArchiver
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
	maxRetry  int
	threshold float64
}

type DetectScenesConfig struct {
	TempDir    string
	MaxRetries int
	Threshold  float64
}

func NewDetectScenesUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	decoder port.FrameDecoder,
	scorer transnet.WindowScorer,
	archiver port.ResultArchiver,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg DetectScenesConfig,
) *DetectScenesUseCase {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = transnet.DefaultThreshold
	}
	return &DetectScenesUseCase{
		repo:      repo,
		storage:   storage,
		decoder:   decoder,
		scorer:    scorer,
		archiver:  archiver,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
		maxRetry:  cfg.MaxRetries,
		threshold: threshold,
	}
}

func (uc *DetectScenesUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "DetectScenesUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.VideoDetectionMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewDetectionJob(msg.UserID, msg.VideoKey, msg.FileSize, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if job.Done() {
		log.Info("job already completed, skipping", zap.String("result_key", job.ResultKey))
		metrics.JobsProcessedTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	// The job row can be lost while the archive survives (e.g. a redelivery
	// after a restore); the result object is the source of truth.
	if exists, err := uc.storage.ResultExists(ctx, resultKeyFor(msg)); err != nil {
		log.Warn("could not check for existing result archive", zap.Error(err))
	} else if exists {
		log.Info("result archive already present, skipping", zap.String("result_key", resultKeyFor(msg)))
		metrics.JobsProcessedTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.detectScenesPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *DetectScenesUseCase) detectScenesPipeline(
	ctx context.Context,
	job *entity.DetectionJob,
	msg entity.VideoDetectionMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download video from MinIO
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Decode to raw frames at the model resolution
	decStart := time.Now()
	ctx3, spanDec := tracer.Start(ctx, "decode_frames")
	decoded, err := uc.decoder.DecodeFrames(ctx3, videoPath)
	if err != nil {
		spanDec.End()
		log.Error("frame decode failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "decode_frames: "+err.Error(), log)
	}
	spanDec.End()
	metrics.JobProcessingDuration.WithLabelValues("decode").Observe(time.Since(decStart).Seconds())
	metrics.FramesDecodedTotal.Add(float64(decoded.Frames.Len()))

	// Score every frame in overlapping model windows
	scStart := time.Now()
	ctx4, spanSc := tracer.Start(ctx, "score_frames")
	preds, err := transnet.Predict(ctx4, countWindows{uc.scorer}, decoded.Frames)
	if err != nil {
		spanSc.End()
		log.Error("frame scoring failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "score_frames: "+err.Error(), log)
	}
	spanSc.End()
	metrics.JobProcessingDuration.WithLabelValues("score").Observe(time.Since(scStart).Seconds())

	// Collapse predictions into scenes
	scenes, err := transnet.Scenes(preds.Single, uc.threshold)
	if err != nil {
		log.Error("segmentation failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "segment_scenes: "+err.Error(), log)
	}
	metrics.ScenesDetectedTotal.Add(float64(len(scenes)))

	// Write result files and bundle them
	arStart := time.Now()
	ctx5, spanAr := tracer.Start(ctx, "archive_results")
	predsPath := filepath.Join(workDir, "predictions.txt")
	scenesPath := filepath.Join(workDir, "scenes.txt")
	if err := writePredictions(predsPath, preds); err != nil {
		spanAr.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "write_predictions: "+err.Error(), log)
	}
	if err := writeScenes(scenesPath, scenes); err != nil {
		spanAr.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "write_scenes: "+err.Error(), log)
	}
	archivePath := filepath.Join(workDir, "detections.zip")
	if err := uc.archiver.CreateArchive(ctx5, []string{predsPath, scenesPath}, archivePath); err != nil {
		spanAr.End()
		log.Error("archive creation failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "create_archive: "+err.Error(), log)
	}
	spanAr.End()
	metrics.JobProcessingDuration.WithLabelValues("archive").Observe(time.Since(arStart).Seconds())

	// Upload result archive to MinIO
	upStart := time.Now()
	ctx6, spanUp := tracer.Start(ctx, "upload_results")
	resultKey := resultKeyFor(msg)
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "open_archive: "+err.Error(), log)
	}
	archiveStat, err := archiveFile.Stat()
	if err != nil {
		archiveFile.Close()
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "stat_archive: "+err.Error(), log)
	}
	if err := uc.storage.UploadResult(ctx6, resultKey, archiveFile, archiveStat.Size()); err != nil {
		archiveFile.Close()
		spanUp.End()
		log.Error("result upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_results: "+err.Error(), log)
	}
	archiveFile.Close()
	spanUp.End()
	metrics.JobProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	// Mark completed
	job.MarkCompleted(resultKey, decoded.Frames.Len(), len(scenes), decoded.VideoDuration)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", decoded.Frames.Len()),
		zap.Int("scene_count", len(scenes)),
		zap.Float64("duration_secs", decoded.VideoDuration),
		zap.String("result_key", resultKey),
	)

	return nil
}

func (uc *DetectScenesUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.DetectionJob,
	msg entity.VideoDetectionMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *DetectScenesUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.DetectionJob,
	msg entity.VideoDetectionMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *DetectScenesUseCase) publishStatus(ctx context.Context, job *entity.DetectionJob, log *zap.Logger) {
	statusMsg := entity.VideoStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		VideoKey:     job.VideoKey,
		ResultKey:    job.ResultKey,
		FrameCount:   job.FrameCount,
		SceneCount:   job.SceneCount,
		Duration:     job.VideoDuration,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// resultKeyFor is deterministic per job, so a redelivered message maps to
// the same archive it may already have produced.
func resultKeyFor(msg entity.VideoDetectionMessage) string {
	return fmt.Sprintf("%s/detections_%s.zip", msg.UserID, msg.JobID.String())
}

// countWindows increments the scored-windows counter around the real scorer.
type countWindows struct {
	inner transnet.WindowScorer
}

func (c countWindows) ScoreWindow(ctx context.Context, window []byte) ([]float64, []float64, error) {
	metrics.WindowsScoredTotal.Inc()
	return c.inner.ScoreWindow(ctx, window)
}
