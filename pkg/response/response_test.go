package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name    string
		write   func(*gin.Context)
		status  int
		success bool
		errMsg  string
	}{
		{"ok", func(c *gin.Context) { OK(c, gin.H{"a": 1}) }, http.StatusOK, true, ""},
		{"created", func(c *gin.Context) { Created(c, "x") }, http.StatusCreated, true, ""},
		{"bad request", func(c *gin.Context) { BadRequest(c, "nope") }, http.StatusBadRequest, false, "nope"},
		{"not found", func(c *gin.Context) { NotFound(c, "Job not found") }, http.StatusNotFound, false, "Job not found"},
		{"unavailable", func(c *gin.Context) { ServiceUnavailable(c, "down") }, http.StatusServiceUnavailable, false, "down"},
		{"internal", func(c *gin.Context) { Internal(c, "boom") }, http.StatusInternalServerError, false, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.write(c)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var body Body
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Success != tt.success || body.Error != tt.errMsg {
				t.Fatalf("body = %+v", body)
			}
		})
	}
}
