package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/fruitstock/internal/service/inventory"
)

const batchForm = "batch_form.html"

// ListBatches renders every fruit instance.
func (h *CatalogHandler) ListBatches(c *gin.Context) {
	batches, err := h.svc.ListBatches(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "batch_list.html", "Fruit Instance List", gin.H{"Batches": batches})
}

// ShowBatch renders a fruit instance with its sales and spoilages.
func (h *CatalogHandler) ShowBatch(c *gin.Context) {
	detail, err := h.svc.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "batch_detail.html", "Fruit instance: "+detail.Label(), gin.H{"Detail": detail})
}

func (h *CatalogHandler) NewBatch(c *gin.Context) {
	form := inventory.BatchForm{
		Fruit:   c.Query("fruit"),
		Arrival: h.now().Format("2006-01-02"),
		Unit:    "mass",
	}
	h.renderBatchForm(c, "Create Fruit Instance", form, nil)
}

func (h *CatalogHandler) CreateBatch(c *gin.Context) {
	var form inventory.BatchForm
	if err := bindForm(c, &form); err != nil {
		h.renderBatchForm(c, "Create Fruit Instance", form, err)
		return
	}

	batch, err := h.svc.CreateBatch(c.Request.Context(), form)
	if err != nil {
		h.renderBatchForm(c, "Create Fruit Instance", form, err)
		return
	}
	h.redirect(c, batch.URL())
}

func (h *CatalogHandler) EditBatch(c *gin.Context) {
	detail, err := h.svc.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderBatchForm(c, "Update Fruit Instance", inventory.BatchFormFrom(detail.Batch), nil)
}

// UpdateBatch keeps the recorded sales and spoilages and recomputes the
// available quantity from the new receiving data.
func (h *CatalogHandler) UpdateBatch(c *gin.Context) {
	var form inventory.BatchForm
	if err := bindForm(c, &form); err != nil {
		h.renderBatchForm(c, "Update Fruit Instance", form, err)
		return
	}

	batch, err := h.svc.UpdateBatch(c.Request.Context(), c.Param("id"), form)
	if err != nil {
		h.renderBatchForm(c, "Update Fruit Instance", form, err)
		return
	}
	h.redirect(c, batch.URL())
}

func (h *CatalogHandler) ConfirmDeleteBatch(c *gin.Context) {
	detail, err := h.svc.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderDelete(c, http.StatusOK, "fruit instance", detail.Label(), detail.Batch.URL(), detail.References())
}

func (h *CatalogHandler) DeleteBatch(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.svc.GetBatch(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	outcome, err := h.svc.DeleteBatch(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if outcome.Blocked {
		h.renderDelete(c, http.StatusConflict, "fruit instance", detail.Label(), detail.Batch.URL(), outcome.References)
		return
	}
	h.redirect(c, "/catalog/fruitinstances")
}

func (h *CatalogHandler) renderBatchForm(c *gin.Context, title string, form inventory.BatchForm, err error) {
	fruits, listErr := h.svc.ListFruits(c.Request.Context())
	if listErr != nil {
		h.fail(c, listErr)
		return
	}

	data := gin.H{"Form": form, "Fruits": fruits}
	if err != nil {
		h.renderForm(c, batchForm, title, data, err)
		return
	}
	h.render(c, http.StatusOK, batchForm, title, data)
}
