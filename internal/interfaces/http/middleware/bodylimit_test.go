package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// echoLength replies with the number of body bytes it could read, or 413
// when the body reader hit its cap.
func echoLength(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.String(http.StatusRequestEntityTooLarge, "capped at %d", tooLarge.Limit)
		return
	}
	c.String(http.StatusOK, "%d", len(raw))
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(BodyLimit(64))
	router.POST("/api/v1/catalog/products", echoLength)
	router.GET("/api/v1/catalog/products", echoLength)

	tests := []struct {
		name       string
		method     string
		body       string
		chunked    bool
		wantStatus int
		wantBody   string
	}{
		{
			name:       "product payload under the limit",
			method:     http.MethodPost,
			body:       `{"sku":"ESP-1","name":"Espresso","price":2.5}`,
			wantStatus: http.StatusOK,
			wantBody:   "45",
		},
		{
			name:       "declared length over the limit",
			method:     http.MethodPost,
			body:       strings.Repeat("a", 65),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantBody:   "REQUEST_TOO_LARGE",
		},
		{
			name:       "undeclared length is capped while reading",
			method:     http.MethodPost,
			body:       strings.Repeat("a", 200),
			chunked:    true,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantBody:   "capped at 64",
		},
		{
			name:       "request without a body",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
			wantBody:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, "/api/v1/catalog/products", body)
			if tt.chunked {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
