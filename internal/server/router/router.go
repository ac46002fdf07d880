package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/server/handlers"
	"github.com/mamadbah2/fruitstock/internal/server/middleware"
	"github.com/mamadbah2/fruitstock/internal/server/views"
)

// maxMultipartMemory bounds the in-memory part of spoilage uploads.
const maxMultipartMemory = 32 << 20

// New wires the Gin engine with required routes and middlewares.
// A nil limiter disables rate limiting.
func New(catalog *handlers.CatalogHandler, limiter *middleware.RateLimiter, logger *zap.Logger) (*gin.Engine, error) {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	tmpl, err := views.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.SetHTMLTemplate(tmpl)

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(zapLoggerMiddleware(logger))
	if limiter != nil {
		r.Use(limiter.Middleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/catalog")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	g := r.Group("/catalog")
	g.GET("", catalog.Index)
	g.GET("/report", catalog.Report)

	g.GET("/category/create", catalog.NewCategory)
	g.POST("/category/create", catalog.CreateCategory)
	g.GET("/category/:id/update", catalog.EditCategory)
	g.POST("/category/:id/update", catalog.UpdateCategory)
	g.GET("/category/:id/delete", catalog.ConfirmDeleteCategory)
	g.POST("/category/:id/delete", catalog.DeleteCategory)
	g.GET("/category/:id", catalog.ShowCategory)
	g.GET("/categories", catalog.ListCategories)

	g.GET("/fruit/create", catalog.NewFruit)
	g.POST("/fruit/create", catalog.CreateFruit)
	g.GET("/fruit/:id/update", catalog.EditFruit)
	g.POST("/fruit/:id/update", catalog.UpdateFruit)
	g.GET("/fruit/:id/delete", catalog.ConfirmDeleteFruit)
	g.POST("/fruit/:id/delete", catalog.DeleteFruit)
	g.GET("/fruit/:id", catalog.ShowFruit)
	g.GET("/fruits", catalog.ListFruits)

	g.GET("/fruitinstance/create", catalog.NewBatch)
	g.POST("/fruitinstance/create", catalog.CreateBatch)
	g.GET("/fruitinstance/:id/update", catalog.EditBatch)
	g.POST("/fruitinstance/:id/update", catalog.UpdateBatch)
	g.GET("/fruitinstance/:id/delete", catalog.ConfirmDeleteBatch)
	g.POST("/fruitinstance/:id/delete", catalog.DeleteBatch)
	g.GET("/fruitinstance/:id", catalog.ShowBatch)
	g.GET("/fruitinstances", catalog.ListBatches)

	g.GET("/sale/create/:id", catalog.NewSale)
	g.POST("/sale/create/:id", catalog.RecordSale)
	g.GET("/sale/:id/update", catalog.EditSale)
	g.POST("/sale/:id/update", catalog.UpdateSale)
	g.GET("/sale/:id/delete", catalog.ConfirmDeleteSale)
	g.POST("/sale/:id/delete", catalog.DeleteSale)
	g.GET("/sale/:id", catalog.ShowSale)
	g.GET("/sales", catalog.ListSales)

	g.GET("/spoilage/create/:id", catalog.NewSpoilage)
	g.POST("/spoilage/create/:id", catalog.RecordSpoilage)
	g.GET("/spoilage/:id/update", catalog.EditSpoilage)
	g.POST("/spoilage/:id/update", catalog.UpdateSpoilage)
	g.GET("/spoilage/:id/delete", catalog.ConfirmDeleteSpoilage)
	g.POST("/spoilage/:id/delete", catalog.DeleteSpoilage)
	g.GET("/spoilage/:id", catalog.ShowSpoilage)
	g.GET("/spoilages", catalog.ListSpoilages)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r, nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", middleware.GetRequestID(c)))
	}
}
