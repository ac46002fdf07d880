package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/fruitstock/internal/service/inventory"
)

const (
	spoilageForm = "spoilage_form.html"
	imagesField  = "images"
)

// ListSpoilages renders every spoilage, oldest first.
func (h *CatalogHandler) ListSpoilages(c *gin.Context) {
	spoilages, err := h.svc.ListSpoilages(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "spoilage_list.html", "Spoilage List", gin.H{"Spoilages": spoilages})
}

func (h *CatalogHandler) ShowSpoilage(c *gin.Context) {
	detail, err := h.svc.GetSpoilage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "spoilage_detail.html", "Spoilage of "+detail.Spoilage.DateFormatted(), gin.H{"Detail": detail})
}

// NewSpoilage renders the spoilage form for the fruit instance given by :id.
func (h *CatalogHandler) NewSpoilage(c *gin.Context) {
	detail, err := h.svc.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	form := inventory.SpoilageForm{Date: h.now().Format("2006-01-02")}
	h.render(c, http.StatusOK, spoilageForm, "Record Spoilage", gin.H{"Form": form, "Batch": detail.BatchView})
}

// RecordSpoilage deducts the spoilt amount and uploads up to five evidence images.
func (h *CatalogHandler) RecordSpoilage(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.svc.GetBatch(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var form inventory.SpoilageForm
	data := gin.H{"Form": &form, "Batch": detail.BatchView}
	if err := bindForm(c, &form); err != nil {
		h.renderForm(c, spoilageForm, "Record Spoilage", data, err)
		return
	}

	images, closeImages, err := readImages(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer closeImages()

	if _, err := h.svc.RecordSpoilage(ctx, c.Param("id"), form, images); err != nil {
		h.renderForm(c, spoilageForm, "Record Spoilage", data, err)
		return
	}
	h.redirect(c, detail.Batch.URL())
}

func (h *CatalogHandler) EditSpoilage(c *gin.Context) {
	detail, err := h.svc.GetSpoilage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, spoilageForm, "Update Spoilage", gin.H{
		"Form":  inventory.SpoilageFormFrom(detail.Spoilage),
		"Batch": detail.Batch,
	})
}

// UpdateSpoilage keeps the listed existing images and appends new uploads.
func (h *CatalogHandler) UpdateSpoilage(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.svc.GetSpoilage(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var form inventory.SpoilageForm
	data := gin.H{"Form": &form, "Batch": detail.Batch}
	if err := bindForm(c, &form); err != nil {
		h.renderForm(c, spoilageForm, "Update Spoilage", data, err)
		return
	}

	images, closeImages, err := readImages(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer closeImages()

	spoilage, err := h.svc.UpdateSpoilage(ctx, c.Param("id"), form, images)
	if err != nil {
		h.renderForm(c, spoilageForm, "Update Spoilage", data, err)
		return
	}
	h.redirect(c, spoilage.URL())
}

func (h *CatalogHandler) ConfirmDeleteSpoilage(c *gin.Context) {
	detail, err := h.svc.GetSpoilage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderDelete(c, http.StatusOK, "spoilage", "Spoilage of "+detail.Spoilage.DateFormatted(), detail.Spoilage.URL(), nil)
}

func (h *CatalogHandler) DeleteSpoilage(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.svc.GetSpoilage(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.svc.DeleteSpoilage(ctx, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, batchURL(detail.Batch))
}

// readImages opens the uploaded evidence files. Empty file inputs are skipped.
// The returned func closes every opened file.
func readImages(c *gin.Context) ([]inventory.Image, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, closeAll, nil
	}
	if err != nil {
		return nil, closeAll, fmt.Errorf("read multipart form: %w", err)
	}

	images := make([]inventory.Image, 0, len(form.File[imagesField]))
	for _, fh := range form.File[imagesField] {
		if fh.Size == 0 || fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		files = append(files, f)
		images = append(images, inventory.Image{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}
	return images, closeAll, nil
}
