package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/fruitstock/internal/service/inventory"
)

const saleForm = "sale_form.html"

// ListSales renders every sale, newest first.
func (h *CatalogHandler) ListSales(c *gin.Context) {
	sales, err := h.svc.ListSales(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "sale_list.html", "Sale List", gin.H{"Sales": sales})
}

func (h *CatalogHandler) ShowSale(c *gin.Context) {
	detail, err := h.svc.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "sale_detail.html", "Sale of "+detail.Sale.DateFormatted(), gin.H{"Detail": detail})
}

// NewSale renders the sale form for the fruit instance given by :id.
func (h *CatalogHandler) NewSale(c *gin.Context) {
	detail, err := h.svc.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	form := inventory.SaleForm{Date: h.now().Format("2006-01-02")}
	h.render(c, http.StatusOK, saleForm, "Record Sale", gin.H{"Form": form, "Batch": detail.BatchView})
}

// RecordSale deducts the sold amount from the fruit instance given by :id.
// An amount above the available stock re-renders the form.
func (h *CatalogHandler) RecordSale(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.svc.GetBatch(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var form inventory.SaleForm
	data := gin.H{"Form": &form, "Batch": detail.BatchView}
	if err := bindForm(c, &form); err != nil {
		h.renderForm(c, saleForm, "Record Sale", data, err)
		return
	}

	if _, err := h.svc.RecordSale(ctx, c.Param("id"), form); err != nil {
		h.renderForm(c, saleForm, "Record Sale", data, err)
		return
	}
	h.redirect(c, detail.Batch.URL())
}

func (h *CatalogHandler) EditSale(c *gin.Context) {
	detail, err := h.svc.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, saleForm, "Update Sale", gin.H{
		"Form":  inventory.SaleFormFrom(detail.Sale),
		"Batch": detail.Batch,
	})
}

func (h *CatalogHandler) UpdateSale(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.svc.GetSale(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var form inventory.SaleForm
	data := gin.H{"Form": &form, "Batch": detail.Batch}
	if err := bindForm(c, &form); err != nil {
		h.renderForm(c, saleForm, "Update Sale", data, err)
		return
	}

	sale, err := h.svc.UpdateSale(ctx, c.Param("id"), form)
	if err != nil {
		h.renderForm(c, saleForm, "Update Sale", data, err)
		return
	}
	h.redirect(c, sale.URL())
}

func (h *CatalogHandler) ConfirmDeleteSale(c *gin.Context) {
	detail, err := h.svc.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderDelete(c, http.StatusOK, "sale", "Sale of "+detail.Sale.DateFormatted(), detail.Sale.URL(), nil)
}

// DeleteSale removes the sale and returns its amount to the fruit instance.
func (h *CatalogHandler) DeleteSale(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.svc.GetSale(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.svc.DeleteSale(ctx, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, batchURL(detail.Batch))
}

// batchURL falls back to the listing when the fruit instance is gone.
func batchURL(view inventory.BatchView) string {
	if view.Batch.ID.IsZero() {
		return "/catalog/fruitinstances"
	}
	return view.Batch.URL()
}
