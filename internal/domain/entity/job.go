package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type DetectionJob struct {
	ID            uuid.UUID
	UserID        string
	VideoKey      string
	ResultKey     string
	Status        JobStatus
	FrameCount    int
	SceneCount    int
	FileSize      int64
	VideoDuration float64
	Attempt       int
	MaxAttempts   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewDetectionJob(userID, videoKey string, fileSize int64, maxAttempts int) *DetectionJob {
	now := time.Now().UTC()
	return &DetectionJob{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *DetectionJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *DetectionJob) MarkCompleted(resultKey string, frameCount, sceneCount int, duration float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ResultKey = resultKey
	j.FrameCount = frameCount
	j.SceneCount = sceneCount
	j.VideoDuration = duration
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *DetectionJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *DetectionJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}

// Done reports whether the job already produced its result, so a redelivered
// message can be acked without rework.
func (j *DetectionJob) Done() bool {
	return j.Status == JobStatusCompleted
}
