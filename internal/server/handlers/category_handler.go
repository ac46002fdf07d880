package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/fruitstock/internal/service/inventory"
)

// ListCategories renders every category.
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "category_list.html", "Category List", gin.H{"Categories": categories})
}

// ShowCategory renders a category and its fruits.
func (h *CatalogHandler) ShowCategory(c *gin.Context) {
	detail, err := h.svc.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "category_detail.html", "Category: "+detail.Category.Name, gin.H{"Detail": detail})
}

func (h *CatalogHandler) NewCategory(c *gin.Context) {
	h.render(c, http.StatusOK, "category_form.html", "Create Category", gin.H{"Form": inventory.CategoryForm{}})
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var form inventory.CategoryForm
	if err := bindForm(c, &form); err != nil {
		h.renderForm(c, "category_form.html", "Create Category", gin.H{"Form": form}, err)
		return
	}

	category, err := h.svc.CreateCategory(c.Request.Context(), form)
	if err != nil {
		h.renderForm(c, "category_form.html", "Create Category", gin.H{"Form": form}, err)
		return
	}
	h.redirect(c, category.URL())
}

func (h *CatalogHandler) EditCategory(c *gin.Context) {
	detail, err := h.svc.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "category_form.html", "Update Category", gin.H{
		"Form": inventory.CategoryFormFrom(detail.Category),
	})
}

func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	var form inventory.CategoryForm
	if err := bindForm(c, &form); err != nil {
		h.renderForm(c, "category_form.html", "Update Category", gin.H{"Form": form}, err)
		return
	}

	category, err := h.svc.UpdateCategory(c.Request.Context(), c.Param("id"), form)
	if err != nil {
		h.renderForm(c, "category_form.html", "Update Category", gin.H{"Form": form}, err)
		return
	}
	h.redirect(c, category.URL())
}

// ConfirmDeleteCategory shows the fruits that would block the deletion, if any.
func (h *CatalogHandler) ConfirmDeleteCategory(c *gin.Context) {
	detail, err := h.svc.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderDelete(c, http.StatusOK, "category", detail.Category.Name, detail.Category.URL(), detail.References())
}

func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.svc.GetCategory(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	outcome, err := h.svc.DeleteCategory(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if outcome.Blocked {
		h.renderDelete(c, http.StatusConflict, "category", detail.Category.Name, detail.Category.URL(), outcome.References)
		return
	}
	h.redirect(c, "/catalog/categories")
}
