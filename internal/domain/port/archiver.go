package port

import "context"

type ResultArchiver interface {
	CreateArchive(ctx context.Context, filePaths []string, outputPath string) error
}
