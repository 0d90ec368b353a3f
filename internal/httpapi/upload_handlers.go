package httpapi

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
)

// uploadImage stores a standalone asset and returns its URL, for
// workflows that host an image first and attach it to a product later.
func (s *Server) uploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Message: "No file uploaded",
			Errors:  map[string]string{"file": "Image file is required"},
		})
		return
	}

	if fieldErrors := validateImageFiles([]*multipart.FileHeader{fh}); len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid file upload", Errors: fieldErrors})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid file upload"})
		return
	}
	defer f.Close()

	asset, err := s.store.Upload(c.Request.Context(), f, fh.Filename)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": asset.URL, "publicId": asset.PublicID})
}
