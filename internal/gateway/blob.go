package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// BlobSink uploads rendered deltas to Azure blob storage.
type BlobSink struct {
	uploader blobUploader
}

// NewBlobSink connects to serviceURL. Access is granted by a SAS token in
// the URL query; no other credential is attached.
func NewBlobSink(serviceURL string) (*BlobSink, error) {
	client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &BlobSink{uploader: client}, nil
}

// Upload writes content to container/path as a block blob.
func (s *BlobSink) Upload(ctx context.Context, container, path, content string) error {
	name := strings.TrimLeft(path, "/")
	contentType := "text/plain; charset=utf-8"
	_, err := s.uploader.UploadBuffer(ctx, container, name, []byte(content), &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("upload blob %s/%s: %w", container, name, err)
	}
	return nil
}
