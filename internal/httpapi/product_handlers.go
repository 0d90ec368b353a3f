package httpapi

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"thepresent-be/internal/product"
)

const maxImageSize = 5 << 20 // 5MB

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.products.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if products == nil {
		products = []product.Product{}
	}
	c.JSON(http.StatusOK, products)
}

func (s *Server) getProduct(c *gin.Context) {
	p, err := s.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) createProduct(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid multipart form"})
		return
	}

	files := form.File["images"]
	if fieldErrors := validateImageFiles(files); len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid file upload", Errors: fieldErrors})
		return
	}

	in := product.CreateInput{
		Name:        formValue(form, "name"),
		Description: formValue(form, "description"),
		Category:    formValue(form, "category"),
		ImageURLs:   form.Value["imageUrls"],
	}
	if raw := formValue(form, "price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody{
				Message: "Invalid product data",
				Errors:  map[string]string{"price": "Valid price is required"},
			})
			return
		}
		in.Price = price
	}

	uploads, closeAll, err := openUploads(files)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid file upload"})
		return
	}
	defer closeAll()

	p, err := s.products.Create(c.Request.Context(), in, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) updateProduct(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid multipart form"})
		return
	}

	files := form.File["images"]
	if fieldErrors := validateImageFiles(files); len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid file upload", Errors: fieldErrors})
		return
	}

	in := product.UpdateInput{
		Name:        formPtr(form, "name"),
		Description: formPtr(form, "description"),
		Category:    formPtr(form, "category"),
	}
	if raw := formPtr(form, "price"); raw != nil {
		price, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody{
				Message: "Invalid product data",
				Errors:  map[string]string{"price": "Valid price is required"},
			})
			return
		}
		in.Price = &price
	}
	// the key being present at all selects the replace-by-URL branch
	if urls, ok := form.Value["imageUrls"]; ok {
		in.ReplacementURLs = urls
	}

	uploads, closeAll, err := openUploads(files)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid file upload"})
		return
	}
	defer closeAll()

	p, _, err := s.products.Update(c.Request.Context(), c.Param("id"), in, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProduct(c *gin.Context) {
	report, err := s.products.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"message": "Product deleted successfully"}
	if report.Degraded() {
		body["cleanup"] = report
	}
	c.JSON(http.StatusOK, body)
}

func formValue(form *multipart.Form, key string) string {
	if vals, ok := form.Value[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func formPtr(form *multipart.Form, key string) *string {
	if vals, ok := form.Value[key]; ok && len(vals) > 0 {
		return &vals[0]
	}
	return nil
}

func validateImageFiles(files []*multipart.FileHeader) map[string]string {
	if len(files) > product.MaxImageFiles {
		return map[string]string{"images": "Too many image files"}
	}
	for _, fh := range files {
		if !allowedImageTypes[fh.Header.Get("Content-Type")] {
			return map[string]string{"file": "Only JPG, PNG and GIF images are allowed"}
		}
		if fh.Size > maxImageSize {
			return map[string]string{"file": "File size must be less than 5MB"}
		}
	}
	return nil
}

func openUploads(files []*multipart.FileHeader) ([]product.Upload, func(), error) {
	uploads := make([]product.Upload, 0, len(files))
	opened := make([]multipart.File, 0, len(files))

	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		opened = append(opened, f)
		uploads = append(uploads, product.Upload{Filename: fh.Filename, Content: f})
	}

	return uploads, closeAll, nil
}
