package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shotmark/shotmark-detection-service/internal/domain/entity"
	"github.com/shotmark/shotmark-detection-service/internal/domain/port"
	"github.com/shotmark/shotmark-detection-service/internal/infra/ffmpeg"
	"github.com/shotmark/shotmark-detection-service/internal/transnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memRepo struct {
	jobs map[uuid.UUID]*entity.DetectionJob
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: map[uuid.UUID]*entity.DetectionJob{}}
}

func (r *memRepo) Create(_ context.Context, job *entity.DetectionJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *memRepo) Update(_ context.Context, job *entity.DetectionJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.DetectionJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	return job, nil
}

type memStorage struct {
	videoData    []byte
	resultExists bool
	downloads    int
	uploads      int
}

func (s *memStorage) DownloadVideo(_ context.Context, _ string, destPath string) error {
	s.downloads++
	return os.WriteFile(destPath, s.videoData, 0644)
}

func (s *memStorage) UploadResult(_ context.Context, _ string, reader io.Reader, _ int64) error {
	s.uploads++
	_, err := io.Copy(io.Discard, reader)
	return err
}

func (s *memStorage) ResultExists(_ context.Context, _ string) (bool, error) {
	return s.resultExists, nil
}

// rawFileDecoder treats the downloaded file as already-decoded rgb24 frames.
type rawFileDecoder struct{}

func (rawFileDecoder) DecodeFrames(_ context.Context, videoPath string) (*port.DecodeResult, error) {
	pix, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, err
	}
	frames, err := transnet.NewFrameSequence(pix)
	if err != nil {
		return nil, err
	}
	return &port.DecodeResult{Frames: frames, VideoDuration: float64(frames.Len()) / 25.0}, nil
}

// cutMarkerScorer flags any frame whose first byte is 255 as a transition.
type cutMarkerScorer struct{}

func (cutMarkerScorer) ScoreWindow(_ context.Context, window []byte) ([]float64, []float64, error) {
	single := make([]float64, transnet.WindowSize)
	many := make([]float64, transnet.WindowSize)
	for i := 0; i < transnet.WindowSize; i++ {
		logit := -4.0
		if window[i*transnet.FrameBytes] == 255 {
			logit = 4.0
		}
		single[i] = logit
		many[i] = logit
	}
	return single, many, nil
}

type memPublisher struct {
	msgs [][]byte
}

func (p *memPublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

type memDLQ struct {
	msgs [][]byte
}

func (p *memDLQ) PublishToDLQ(_ context.Context, msg []byte, _ string) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

type nopNotifier struct{}

func (nopNotifier) NotifyFailure(context.Context, string, string, string, string) error {
	return nil
}

func newTestUseCase(t *testing.T, repo *memRepo, storage *memStorage) (*DetectScenesUseCase, *memPublisher) {
	t.Helper()
	pub := &memPublisher{}
	uc := NewDetectScenesUseCase(
		repo, storage, rawFileDecoder{}, cutMarkerScorer{}, ffmpeg.NewArchiver(),
		pub, &memDLQ{}, nopNotifier{},
		zap.NewNop(),
		DetectScenesConfig{
			TempDir:    t.TempDir(),
			MaxRetries: 3,
			Threshold:  transnet.DefaultThreshold,
		},
	)
	return uc, pub
}

func detectionMsg(t *testing.T, jobID uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(entity.VideoDetectionMessage{
		JobID:    jobID,
		UserID:   "user1",
		VideoKey: "user1/test.raw",
		FileSize: int64(120 * transnet.FrameBytes),
	})
	require.NoError(t, err)
	return body
}

// markedVideo builds 120 raw frames with a two-frame cut at 40..41.
func markedVideo() []byte {
	pix := make([]byte, 120*transnet.FrameBytes)
	pix[40*transnet.FrameBytes] = 255
	pix[41*transnet.FrameBytes] = 255
	return pix
}

func TestExecuteRunsFullPipeline(t *testing.T) {
	repo := newMemRepo()
	storage := &memStorage{videoData: markedVideo()}
	uc, pub := newTestUseCase(t, repo, storage)

	jobID := uuid.New()
	require.NoError(t, uc.Execute(context.Background(), detectionMsg(t, jobID)))

	assert.Equal(t, 1, storage.downloads)
	assert.Equal(t, 1, storage.uploads)

	job, err := repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 120, job.FrameCount)
	assert.Equal(t, 2, job.SceneCount)
	assert.Equal(t, "user1/detections_"+jobID.String()+".zip", job.ResultKey)

	require.Len(t, pub.msgs, 1)
	var status entity.VideoStatusMessage
	require.NoError(t, json.Unmarshal(pub.msgs[0], &status))
	assert.Equal(t, entity.JobStatusCompleted, status.Status)
	assert.Equal(t, 2, status.SceneCount)
}

// TestExecuteSkipsWhenArchiveExists covers a redelivery whose job row was
// lost: the result archive in storage alone must prevent a rerun.
func TestExecuteSkipsWhenArchiveExists(t *testing.T) {
	repo := newMemRepo()
	storage := &memStorage{videoData: markedVideo(), resultExists: true}
	uc, pub := newTestUseCase(t, repo, storage)

	require.NoError(t, uc.Execute(context.Background(), detectionMsg(t, uuid.New())))

	assert.Zero(t, storage.downloads, "existing archive must short-circuit the pipeline")
	assert.Zero(t, storage.uploads)
	assert.Empty(t, pub.msgs)
}

func TestExecuteSkipsCompletedJob(t *testing.T) {
	repo := newMemRepo()
	storage := &memStorage{videoData: markedVideo()}
	uc, pub := newTestUseCase(t, repo, storage)

	jobID := uuid.New()
	job := entity.NewDetectionJob("user1", "user1/test.raw", 0, 3)
	job.ID = jobID
	job.MarkCompleted("user1/detections_"+jobID.String()+".zip", 120, 2, 4.8)
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, uc.Execute(context.Background(), detectionMsg(t, jobID)))

	assert.Zero(t, storage.downloads)
	assert.Empty(t, pub.msgs)
}
