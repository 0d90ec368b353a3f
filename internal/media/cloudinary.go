package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"thepresent-be/internal/config"
	"thepresent-be/internal/errs"
)

// CloudinaryStore stores assets in Cloudinary. A single instance is
// shared by all requests; every remote call carries a bounded timeout.
type CloudinaryStore struct {
	client  *cloudinary.Cloudinary
	folder  string
	timeout time.Duration
}

func NewCloudinaryStore(cfg *config.Config) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(
		cfg.CloudinaryCloudName,
		cfg.CloudinaryAPIKey,
		cfg.CloudinaryAPISecret,
	)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}

	return &CloudinaryStore{
		client:  cld,
		folder:  cfg.CloudinaryFolder,
		timeout: cfg.MediaTimeout,
	}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, r io.Reader, filename string) (Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder: s.folder,
	})
	if err != nil {
		return Asset{}, classify("media store upload failed", err)
	}
	if resp.Error.Message != "" {
		return Asset{}, errs.Upstream("media store rejected upload", errors.New(resp.Error.Message), false)
	}

	return Asset{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, publicID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID: publicID,
	})
	if err != nil {
		return classify("media store delete failed", err)
	}
	// "not found" means the asset is already gone, which is the outcome
	// the caller wanted
	if resp.Result != "ok" && resp.Result != "not found" {
		return errs.Upstream("media store refused delete", fmt.Errorf("result %q", resp.Result), false)
	}

	return nil
}

func classify(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Upstream(msg, err, true)
	}
	return errs.Upstream(msg, err, false)
}
