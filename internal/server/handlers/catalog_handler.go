package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
	"github.com/mamadbah2/fruitstock/internal/server/middleware"
	"github.com/mamadbah2/fruitstock/internal/service/inventory"
)

// ReportBuilder produces the stock report page.
type ReportBuilder interface {
	BuildStockReport(ctx context.Context) (models.StockReport, error)
}

// CatalogHandler serves the HTML catalog pages.
type CatalogHandler struct {
	svc     *inventory.Service
	reports ReportBuilder
	logger  *zap.Logger
	now     func() time.Time
}

// NewCatalogHandler constructs the HTTP handler adapter.
func NewCatalogHandler(svc *inventory.Service, reports ReportBuilder, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{svc: svc, reports: reports, logger: logger, now: time.Now}
}

// Index renders the dashboard with the catalog counts.
func (h *CatalogHandler) Index(c *gin.Context) {
	counts, err := h.svc.Counts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "index.html", "Fruit Inventory Home", gin.H{"Counts": counts})
}

// Report renders the stock report of every fruit instance.
func (h *CatalogHandler) Report(c *gin.Context) {
	report, err := h.reports.BuildStockReport(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "report.html", "Stock report", gin.H{"Report": report})
}

func (h *CatalogHandler) render(c *gin.Context, status int, page, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	c.HTML(status, page, data)
}

// renderForm re-renders a form page after a failed submission. Validation and
// capacity errors are shown on the form; anything else goes through fail.
func (h *CatalogHandler) renderForm(c *gin.Context, page, title string, data gin.H, err error) {
	messages, ok := formErrors(err)
	if !ok {
		h.fail(c, err)
		return
	}
	data["Errors"] = messages
	h.render(c, http.StatusUnprocessableEntity, page, title, data)
}

func (h *CatalogHandler) renderDelete(c *gin.Context, status int, kind, name, url string, refs []inventory.Reference) {
	h.render(c, status, "delete.html", "Delete "+kind, gin.H{
		"Kind":       kind,
		"Name":       name,
		"Blocked":    len(refs) > 0,
		"References": refs,
		"Action":     url + "/delete",
		"Back":       url,
	})
}

func (h *CatalogHandler) redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

func (h *CatalogHandler) fail(c *gin.Context, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", middleware.GetRequestID(c)))
	}
	h.render(c, status, "error.html", http.StatusText(status), gin.H{"Message": message})
}

func errorStatus(err error) (int, string) {
	var notFound *models.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, fmt.Sprintf("The requested %s does not exist.", notFound.Kind)
	case errors.Is(err, models.ErrVersionConflict):
		return http.StatusConflict, "This fruit instance was changed by another request. Reload the page and try again."
	case errors.Is(err, models.ErrDataIntegrity):
		return http.StatusInternalServerError, "The stock ledger of this fruit instance holds an unreadable entry."
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
}

func formErrors(err error) ([]string, bool) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr.Messages(), true
	}
	var capErr *models.CapacityExceededError
	if errors.As(err, &capErr) {
		return []string{fmt.Sprintf("Amount cannot exceed available quantity (%d available).", capErr.Available)}, true
	}
	if errors.Is(err, models.ErrQuantityOverflow) {
		return []string{"The resulting stock quantity is too large."}, true
	}
	return nil, false
}

// bindForm decodes the posted form into dst. A body that cannot be decoded is
// reported like any other invalid submission.
func bindForm(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBind(dst); err != nil {
		return models.NewValidationError("form", "The submitted form could not be read.")
	}
	return nil
}
