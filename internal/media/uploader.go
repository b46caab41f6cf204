package media

import (
	"context"
	"io"
)

// Kind classifies an uploaded asset. The remote store treats audio and image
// uploads differently, so callers must classify before uploading.
type Kind string

const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// UploadResult is the durable reference returned by the remote store.
type UploadResult struct {
	URL      string
	PublicID string
}

// Uploader is the remote media store as the import pipeline needs it:
// upload bytes into a folder and get back a URL plus an id usable for
// later deletion.
type Uploader interface {
	Upload(ctx context.Context, kind Kind, r io.Reader, folder string) (*UploadResult, error)
	Delete(ctx context.Context, kind Kind, publicID string) error
}
