package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/fruitstock/internal/service/inventory"
)

const fruitForm = "fruit_form.html"

// ListFruits renders every fruit.
func (h *CatalogHandler) ListFruits(c *gin.Context) {
	fruits, err := h.svc.ListFruits(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "fruit_list.html", "Fruit List", gin.H{"Fruits": fruits})
}

// ShowFruit renders a fruit with its category and instances.
func (h *CatalogHandler) ShowFruit(c *gin.Context) {
	detail, err := h.svc.GetFruit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "fruit_detail.html", "Fruit: "+detail.Fruit.Name, gin.H{"Detail": detail})
}

func (h *CatalogHandler) NewFruit(c *gin.Context) {
	h.renderFruitForm(c, "Create Fruit", inventory.FruitForm{}, nil)
}

func (h *CatalogHandler) CreateFruit(c *gin.Context) {
	var form inventory.FruitForm
	if err := bindForm(c, &form); err != nil {
		h.renderFruitForm(c, "Create Fruit", form, err)
		return
	}

	fruit, err := h.svc.CreateFruit(c.Request.Context(), form)
	if err != nil {
		h.renderFruitForm(c, "Create Fruit", form, err)
		return
	}
	h.redirect(c, fruit.URL())
}

func (h *CatalogHandler) EditFruit(c *gin.Context) {
	detail, err := h.svc.GetFruit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderFruitForm(c, "Update Fruit", inventory.FruitFormFrom(detail.Fruit), nil)
}

func (h *CatalogHandler) UpdateFruit(c *gin.Context) {
	var form inventory.FruitForm
	if err := bindForm(c, &form); err != nil {
		h.renderFruitForm(c, "Update Fruit", form, err)
		return
	}

	fruit, err := h.svc.UpdateFruit(c.Request.Context(), c.Param("id"), form)
	if err != nil {
		h.renderFruitForm(c, "Update Fruit", form, err)
		return
	}
	h.redirect(c, fruit.URL())
}

func (h *CatalogHandler) ConfirmDeleteFruit(c *gin.Context) {
	detail, err := h.svc.GetFruit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderDelete(c, http.StatusOK, "fruit", detail.Fruit.Name, detail.Fruit.URL(), detail.References())
}

func (h *CatalogHandler) DeleteFruit(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.svc.GetFruit(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	outcome, err := h.svc.DeleteFruit(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if outcome.Blocked {
		h.renderDelete(c, http.StatusConflict, "fruit", detail.Fruit.Name, detail.Fruit.URL(), outcome.References)
		return
	}
	h.redirect(c, "/catalog/fruits")
}

// renderFruitForm loads the category choices. A nil err renders the page as
// is; otherwise the submission errors are shown.
func (h *CatalogHandler) renderFruitForm(c *gin.Context, title string, form inventory.FruitForm, err error) {
	categories, listErr := h.svc.ListCategories(c.Request.Context())
	if listErr != nil {
		h.fail(c, listErr)
		return
	}

	data := gin.H{"Form": form, "Categories": categories}
	if err != nil {
		h.renderForm(c, fruitForm, title, data, err)
		return
	}
	h.render(c, http.StatusOK, fruitForm, title, data)
}
