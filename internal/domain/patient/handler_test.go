package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc := NewService(newMockRepo())
	return NewHandler(svc), svc, echo.New()
}

func TestHandler_Create(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"first_name":"Maria","first_last_name":"Gomez",` +
		`"document_type_id":1,"document_number":"1012345678","habeas_data":true}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID == uuid.Nil {
		t.Error("expected assigned id")
	}
}

func TestHandler_Create_MissingName(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"document_type_id":1,"document_number":"1012345678"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_GetByDocument(t *testing.T) {
	h, svc, e := newTestHandler()
	p := testPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	target := "/?document_type_id=1&document_number=" + p.DocumentNumber
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetByDocument(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("expected patient %s, got %s", p.ID, got.ID)
	}
}

func TestHandler_GetByDocument_MissingNumber(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?document_type_id=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetByDocument(c); err == nil {
		t.Error("expected error for missing document_number")
	}
}

func TestHandler_Update(t *testing.T) {
	h, svc, e := newTestHandler()
	p := testPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := `{"first_name":"Mariana","first_last_name":"Gomez",` +
		`"document_type_id":1,"document_number":"1012345678"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.Update(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.FirstName != "Mariana" {
		t.Errorf("expected updated first name, got %s", got.FirstName)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, svc, e := newTestHandler()
	p := testPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, err := svc.Get(context.Background(), p.ID); err == nil {
		t.Error("expected patient to be gone")
	}
}

func TestHandler_Search(t *testing.T) {
	h, svc, e := newTestHandler()
	if err := svc.Create(context.Background(), testPatient()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?name=gomez", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Patient `json:"data"`
		Total int       `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 match, got %d", resp.Total)
	}
}

func TestHandler_Search_BadDocumentType(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?document_type_id=abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Search(c); err == nil {
		t.Error("expected error for non-numeric document_type_id")
	}
}
