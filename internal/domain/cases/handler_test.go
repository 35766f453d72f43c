package cases

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/opidose/opidose/internal/platform/auth"
)

func TestHandler_Create_UserIDFromAuthContext(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc)

	body := `{"user_id":"dr-other","procedure_id":"test_proc",` +
		`"patient":{"age":40,"sex":"male","weight_kg":75,"height_cm":175,"asa":1}}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, "dr-authenticated"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var created Case
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if created.UserID != "dr-authenticated" {
		t.Errorf("user_id = %q, want the authenticated subject", created.UserID)
	}
}
