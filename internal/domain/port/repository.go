package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/shotmark/shotmark-detection-service/internal/domain/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.DetectionJob) error
	Update(ctx context.Context, job *entity.DetectionJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.DetectionJob, error)
}
