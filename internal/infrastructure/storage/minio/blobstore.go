package minio

import (
	"context"

	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
)

// DocumentArchive stores raw submitted documents in the documents bucket,
// keyed by content hash. Re-archiving the same content overwrites the same
// object, so duplicate submissions cost one object.
type DocumentArchive struct {
	repo   ObjectStorageRepository
	bucket string
	logger logging.Logger
}

func NewDocumentArchive(repo ObjectStorageRepository, bucket string, log logging.Logger) *DocumentArchive {
	if bucket == "" {
		bucket = "rxgraph-documents"
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DocumentArchive{
		repo:   repo,
		bucket: bucket,
		logger: log.Named("document_archive"),
	}
}

// PutDocument archives the document bytes under its content-hash key.
func (a *DocumentArchive) PutDocument(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := a.repo.Upload(ctx, &UploadRequest{
		Bucket:      a.bucket,
		ObjectKey:   objectKey(key),
		Data:        content,
		ContentType: contentType,
		Tags:        map[string]string{"content_key": key},
	})
	if err != nil {
		return err
	}
	a.logger.Debug("document archived",
		logging.String("content_key", key),
		logging.Int("bytes", len(content)))
	return nil
}

// GetDocument fetches archived document bytes by content-hash key.
func (a *DocumentArchive) GetDocument(ctx context.Context, key string) ([]byte, string, error) {
	res, err := a.repo.Download(ctx, a.bucket, objectKey(key))
	if err != nil {
		return nil, "", err
	}
	return res.Data, res.ContentType, nil
}

// HasDocument reports whether the content key is already archived.
func (a *DocumentArchive) HasDocument(ctx context.Context, key string) (bool, error) {
	return a.repo.Exists(ctx, a.bucket, objectKey(key))
}

func objectKey(key string) string {
	return "documents/" + key
}
