package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// CloudinaryUploader stores media in Cloudinary. Audio files go up with the
// "video" resource type, which is how Cloudinary models non-image binaries.
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryUploader(cloudinaryURL string) (*CloudinaryUploader, error) {
	if strings.TrimSpace(cloudinaryURL) == "" {
		return nil, errors.New("cloudinary url is empty")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryUploader{cld: cld}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, kind Kind, r io.Reader, folder string) (*UploadResult, error) {
	resp, err := u.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       folder,
		PublicID:     uuid.NewString(),
		ResourceType: resourceType(kind),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", kind, err)
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("upload %s: %s", kind, resp.Error.Message)
	}
	return &UploadResult{
		URL:      resp.SecureURL,
		PublicID: resp.PublicID,
	}, nil
}

func (u *CloudinaryUploader) Delete(ctx context.Context, kind Kind, publicID string) error {
	if strings.TrimSpace(publicID) == "" {
		return errors.New("public id is empty")
	}
	_, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType(kind),
	})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	return nil
}

func resourceType(kind Kind) string {
	if kind == KindAudio {
		return "video"
	}
	return "image"
}
