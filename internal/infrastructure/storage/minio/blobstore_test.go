package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDocumentArchive_PutDocument(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("PutObject", mock.Anything, "rxgraph-documents", "documents/abc123", mock.Anything, int64(9), mock.Anything).
		Return(minio.UploadInfo{Bucket: "rxgraph-documents", Key: "documents/abc123", Size: 9}, nil)

	archive := NewDocumentArchive(NewMinIORepositoryWithAPI(api, nil), "", nil)

	err := archive.PutDocument(context.Background(), "abc123", []byte("test data"), "text/plain")
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestDocumentArchive_HasDocument(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("StatObject", mock.Anything, "docs", "documents/abc123", mock.Anything).
		Return(minio.ObjectInfo{Key: "documents/abc123"}, nil)

	archive := NewDocumentArchive(NewMinIORepositoryWithAPI(api, nil), "docs", nil)

	ok, err := archive.HasDocument(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
}
