package product

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"thepresent-be/internal/errs"
	"thepresent-be/internal/logger"
	"thepresent-be/internal/media"
)

// MaxImageFiles bounds how many files one create/update may carry.
const MaxImageFiles = 5

type Upload struct {
	Filename string
	Content  io.Reader
}

type CreateInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
	// Pre-existing hosted images to attach alongside the uploads.
	ImageURLs []string
}

// UpdateInput has partial-update semantics: nil pointers keep the prior
// value. ReplacementURLs is only consulted when no files are uploaded;
// nil leaves the image list untouched, non-nil replaces it verbatim.
type UpdateInput struct {
	Name            *string
	Description     *string
	Price           *float64
	Category        *string
	ReplacementURLs []string
}

type Service interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, in CreateInput, files []Upload) (Product, error)
	Update(ctx context.Context, id string, in UpdateInput, files []Upload) (Product, *CleanupReport, error)
	Delete(ctx context.Context, id string) (*CleanupReport, error)
}

type service struct {
	repo  Repository
	store media.Store
}

func NewService(repo Repository, store media.Store) Service {
	return &service{repo: repo, store: store}
}

func (s *service) List(ctx context.Context) ([]Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to fetch products", zap.Error(err))
		return nil, errs.Internal("Failed to fetch products", err)
	}
	return products, nil
}

func (s *service) GetByID(ctx context.Context, id string) (Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, errs.NotFound("Product not found")
		}
		logger.FromCtx(ctx).Error("failed to fetch product", zap.String("product_id", id), zap.Error(err))
		return Product{}, errs.Internal("Failed to fetch product", err)
	}
	return p, nil
}

func (s *service) Create(ctx context.Context, in CreateInput, files []Upload) (Product, error) {
	log := logger.FromCtx(ctx)

	if err := validateCreate(in, files); err != nil {
		return Product{}, err
	}

	uploaded, err := s.uploadAll(ctx, files)
	if err != nil {
		return Product{}, err
	}

	images := make([]Image, 0, len(uploaded)+len(in.ImageURLs))
	for _, a := range uploaded {
		images = append(images, Image{URL: a.URL, PublicID: a.PublicID})
	}
	for _, u := range in.ImageURLs {
		images = append(images, Image{URL: u})
	}

	p, err := s.repo.Create(ctx, Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Category:    strings.TrimSpace(in.Category),
		Images:      images,
	})
	if err != nil {
		log.Error("failed to create product", zap.Error(err))
		return Product{}, errs.Internal("Failed to create product", err)
	}

	log.Info("product created",
		zap.String("product_id", p.ID),
		zap.Int("images", len(p.Images)),
	)
	return p, nil
}

func (s *service) Update(ctx context.Context, id string, in UpdateInput, files []Upload) (Product, *CleanupReport, error) {
	log := logger.FromCtx(ctx)

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, nil, errs.NotFound("Product not found")
		}
		return Product{}, nil, errs.Internal("Failed to update product", err)
	}

	if err := validateUpdate(in, files); err != nil {
		return Product{}, nil, err
	}

	next := existing
	if in.Name != nil {
		next.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		next.Price = *in.Price
	}
	if in.Category != nil {
		next.Category = strings.TrimSpace(*in.Category)
	}

	var report *CleanupReport
	switch {
	case len(files) > 0:
		uploaded, err := s.uploadAll(ctx, files)
		if err != nil {
			return Product{}, nil, err
		}
		// old assets are removed best-effort, resolving unidentified
		// images by URL; a failed delete never blocks the update
		report = s.deleteAssets(ctx, existing.Images)
		next.Images = make([]Image, 0, len(uploaded))
		for _, a := range uploaded {
			next.Images = append(next.Images, Image{URL: a.URL, PublicID: a.PublicID})
		}
	case in.ReplacementURLs != nil:
		// caller-managed image set, old assets stay where they are
		next.Images = make([]Image, 0, len(in.ReplacementURLs))
		for _, u := range in.ReplacementURLs {
			next.Images = append(next.Images, Image{URL: u})
		}
	}

	p, err := s.repo.Update(ctx, next)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, nil, errs.NotFound("Product not found")
		}
		log.Error("failed to update product", zap.String("product_id", id), zap.Error(err))
		return Product{}, nil, errs.Internal("Failed to update product", err)
	}

	log.Info("product updated", zap.String("product_id", id))
	return p, report, nil
}

func (s *service) Delete(ctx context.Context, id string) (*CleanupReport, error) {
	log := logger.FromCtx(ctx)

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errs.NotFound("Product not found")
		}
		return nil, errs.Internal("Failed to delete product", err)
	}

	report := s.deleteAssets(ctx, existing.Images)

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errs.NotFound("Product not found")
		}
		log.Error("failed to delete product", zap.String("product_id", id), zap.Error(err))
		return nil, errs.Internal("Failed to delete product", err)
	}

	log.Info("product deleted",
		zap.String("product_id", id),
		zap.Int("assets_attempted", report.Attempted),
		zap.Int("assets_failed", len(report.Failures)),
	)
	return report, nil
}

func (s *service) uploadAll(ctx context.Context, files []Upload) ([]media.Asset, error) {
	assets := make([]media.Asset, 0, len(files))
	for _, f := range files {
		a, err := s.store.Upload(ctx, f.Content, f.Filename)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// deleteAssets removes backing assets best-effort. Images without a
// storage identifier fall back to parsing the URL; unparseable URLs are
// skipped silently.
func (s *service) deleteAssets(ctx context.Context, images []Image) *CleanupReport {
	log := logger.FromCtx(ctx)
	report := &CleanupReport{}

	for _, img := range images {
		publicID := img.PublicID
		if publicID == "" {
			id, ok := media.PublicIDFromURL(img.URL)
			if !ok {
				continue
			}
			publicID = id
		}

		report.Attempted++
		if err := s.store.Delete(ctx, publicID); err != nil {
			log.Warn("asset cleanup failed",
				zap.String("public_id", publicID),
				zap.Error(err),
			)
			report.Failures = append(report.Failures, SideFailure{Ref: publicID, Err: err})
		}
	}

	return report
}

func validateCreate(in CreateInput, files []Upload) error {
	fields := map[string]string{}

	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "Product name is required"
	}
	if strings.TrimSpace(in.Description) == "" {
		fields["description"] = "Description is required"
	}
	if in.Price <= 0 {
		fields["price"] = "Valid price is required"
	}
	if strings.TrimSpace(in.Category) == "" {
		fields["category"] = "Category is required"
	}
	if len(files) > MaxImageFiles {
		fields["images"] = "Too many image files"
	}

	if len(fields) > 0 {
		return errs.ValidationFields("Invalid product data", fields)
	}
	return nil
}

func validateUpdate(in UpdateInput, files []Upload) error {
	fields := map[string]string{}

	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		fields["name"] = "Product name cannot be empty"
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		fields["description"] = "Description cannot be empty"
	}
	if in.Price != nil && *in.Price <= 0 {
		fields["price"] = "Valid price is required"
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) == "" {
		fields["category"] = "Category cannot be empty"
	}
	if len(files) > MaxImageFiles {
		fields["images"] = "Too many image files"
	}

	if len(fields) > 0 {
		return errs.ValidationFields("Invalid product data", fields)
	}
	return nil
}
