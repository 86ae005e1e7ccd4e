package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mandir-backend/importer"
)

// UploadHandler accepts the registration sheet export and runs the bulk
// import.
type UploadHandler struct {
	importer *importer.Importer
}

func NewUploadHandler(im *importer.Importer) *UploadHandler {
	return &UploadHandler{importer: im}
}

// Upload takes a multipart CSV file, imports it row by row and reports the
// per-row outcome. The uploaded file is spooled to a temp path and removed
// afterwards.
func (h *UploadHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Please upload a file"})
		return
	}

	tmp := filepath.Join(os.TempDir(), uuid.NewString()+".csv")
	if err := c.SaveUploadedFile(fh, tmp); err != nil {
		respondError(c, err)
		return
	}
	defer os.Remove(tmp)

	f, err := os.Open(tmp)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	summary, err := h.importer.ImportCSV(c, f)
	if err != nil {
		log.Error().Err(err).Msg("csv import failed")
		respondError(c, err)
		return
	}

	log.Info().Int("imported", summary.Imported).Int("failed", len(summary.Failures)).
		Str("file", fh.Filename).Msg("csv import finished")
	c.JSON(http.StatusOK, summary)
}
