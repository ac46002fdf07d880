package router

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/repository/memory"
	"github.com/mamadbah2/fruitstock/internal/server/handlers"
	"github.com/mamadbah2/fruitstock/internal/server/middleware"
	"github.com/mamadbah2/fruitstock/internal/service/inventory"
	"github.com/mamadbah2/fruitstock/internal/service/reporting"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(t *testing.T, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()

	store := memory.NewStore()
	svc := inventory.NewService(store, zap.NewNop())
	reports := reporting.NewService(store, zap.NewNop())

	r, err := New(handlers.NewCatalogHandler(svc, reports, zap.NewNop()), limiter, zap.NewNop())
	require.NoError(t, err)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func postForm(r *gin.Engine, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type upload struct {
	name        string
	contentType string
	body        []byte
}

func postMultipart(t *testing.T, r *gin.Engine, path string, values url.Values, files []upload) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, vals := range values {
		for _, v := range vals {
			require.NoError(t, mw.WriteField(key, v))
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// created posts a form, expects a redirect and returns the id at the end of the location.
func created(t *testing.T, r *gin.Engine, path string, values url.Values) string {
	t.Helper()
	w := postForm(r, path, values)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	loc := w.Header().Get("Location")
	return loc[strings.LastIndex(loc, "/")+1:]
}

func seedBatch(t *testing.T, r *gin.Engine) (fruitID, batchID string) {
	t.Helper()
	categoryID := created(t, r, "/catalog/category/create", url.Values{"name": {"Tropical"}})
	fruitID = created(t, r, "/catalog/fruit/create", url.Values{
		"name":     {"Mango"},
		"origin":   {"Guinea"},
		"category": {categoryID},
	})
	batchID = created(t, r, "/catalog/fruitinstance/create", url.Values{
		"fruit":             {fruitID},
		"arrival":           {"2024-03-01"},
		"unit":              {"count"},
		"size":              {"24"},
		"quantity_received": {"30"},
	})
	return fruitID, batchID
}

func TestRouter_HealthAndRoot(t *testing.T) {
	r := newTestEngine(t, nil)

	w := get(r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = get(r, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/catalog", w.Header().Get("Location"))
}

func TestRouter_SaleFlow(t *testing.T) {
	r := newTestEngine(t, nil)
	_, batchID := seedBatch(t, r)

	w := get(r, "/catalog/fruitinstance/"+batchID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "720 pieces")

	w = postForm(r, "/catalog/sale/create/"+batchID, url.Values{
		"date": {"2024-03-02"}, "amount": {"1"}, "price": {"2.50"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/catalog/fruitinstance/"+batchID, w.Header().Get("Location"))

	w = get(r, "/catalog/fruitinstance/"+batchID)
	assert.Contains(t, w.Body.String(), "719 pieces")
	assert.Contains(t, w.Body.String(), "2.50")

	w = postForm(r, "/catalog/sale/create/"+batchID, url.Values{
		"date": {"2024-03-02"}, "amount": {"1000"}, "price": {"2.50"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Amount cannot exceed available quantity (719 available).")

	w = get(r, "/catalog")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>Sales:</strong> 1")
}

func TestRouter_DeleteGuards(t *testing.T) {
	r := newTestEngine(t, nil)
	fruitID, batchID := seedBatch(t, r)

	w := postForm(r, "/catalog/sale/create/"+batchID, url.Values{
		"date": {"2024-03-02"}, "amount": {"5"}, "price": {"1"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = get(r, "/catalog/fruitinstance/"+batchID+"/delete")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Cannot delete")

	w = postForm(r, "/catalog/fruitinstance/"+batchID+"/delete", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Sale of Mar 2, 2024")

	w = postForm(r, "/catalog/fruit/"+fruitID+"/delete", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Mango batch of Mar 1, 2024")
}

func TestRouter_ValidationRerendersForm(t *testing.T) {
	r := newTestEngine(t, nil)

	w := postForm(r, "/catalog/category/create", url.Values{"name": {"ab"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Name must contain at least 3 characters.")
	assert.Contains(t, w.Body.String(), `value="ab"`)

	w = postForm(r, "/catalog/fruitinstance/create", url.Values{
		"fruit": {primitive.NewObjectID().Hex()}, "arrival": {"2024-03-01"},
		"unit": {"count"}, "size": {"1"}, "quantity_received": {"1"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Fruit does not exist.")
}

func TestRouter_NotFound(t *testing.T) {
	r := newTestEngine(t, nil)

	for _, path := range []string{
		"/catalog/fruit/not-a-hex-id",
		"/catalog/category/" + primitive.NewObjectID().Hex(),
		"/catalog/fruitinstance/" + primitive.NewObjectID().Hex() + "/update",
		"/catalog/sale/create/" + primitive.NewObjectID().Hex(),
		"/catalog/spoilage/" + primitive.NewObjectID().Hex(),
	} {
		w := get(r, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestRouter_SpoilageUploads(t *testing.T) {
	r := newTestEngine(t, nil)
	_, batchID := seedBatch(t, r)

	w := postMultipart(t, r, "/catalog/spoilage/create/"+batchID, url.Values{
		"date": {"2024-03-03"}, "amount": {"2"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	w = postMultipart(t, r, "/catalog/spoilage/create/"+batchID, url.Values{
		"date": {"2024-03-03"}, "amount": {"2"},
	}, []upload{{name: "rot.jpg", contentType: "image/jpeg", body: []byte("jpeg")}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Image uploads are not configured.")

	w = get(r, "/catalog/fruitinstance/"+batchID)
	assert.Contains(t, w.Body.String(), "718 pieces")
}

func TestRouter_Report(t *testing.T) {
	r := newTestEngine(t, nil)
	seedBatch(t, r)

	w := get(r, "/catalog/report")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mango")
	assert.Contains(t, w.Body.String(), "720 pieces")
}

func TestRouter_RateLimitsPosts(t *testing.T) {
	r := newTestEngine(t, middleware.NewRateLimiter(0.001, 1, zap.NewNop()))

	w := postForm(r, "/catalog/category/create", url.Values{"name": {"Citrus"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = postForm(r, "/catalog/category/create", url.Values{"name": {"Berries"}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = get(r, "/catalog/categories")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Citrus")
}
