package http

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusOK).
		JSON([]string{"Egg", "HSBC"}).
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != contentTypeJSON {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := w.Body.String(); got != `["Egg","HSBC"]` {
		t.Errorf("Body = %q", got)
	}
}

func TestResponseBuilder_NullJSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(nil).Write(w)

	if got := w.Body.String(); got != "null" {
		t.Errorf("Body = %q, want null", got)
	}
}

func TestResponseBuilder_HTML(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().HTML("<tr></tr>").Header("Cache-Control", "no-store").Write(w)

	if ct := w.Header().Get("Content-Type"); ct != contentTypeHTML {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if got := w.Body.String(); got != "<tr></tr>" {
		t.Errorf("Body = %q", got)
	}
}

func TestResponseBuilder_EncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()
	b := NewResponse().JSON(math.Inf(1))
	if b.Err() == nil {
		t.Fatal("expected encoding error")
	}
	b.Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
	if got := w.Body.String(); got != `{"ERROR":"Internal error"}` {
		t.Errorf("Body = %q", got)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *ResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("Invalid request body"), http.StatusBadRequest, `{"ERROR":"Invalid request body"}`},
		{"not found", NotFoundError("Unknown action"), http.StatusNotFound, `{"ERROR":"Unknown action"}`},
		{"internal", InternalServerError("boom"), http.StatusInternalServerError, `{"ERROR":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Body.String(); got != tt.wantBody {
				t.Errorf("Body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedError("POST").Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if allow := w.Header().Get("Allow"); allow != "POST" {
		t.Errorf("Allow header = %q, want %q", allow, "POST")
	}
}

func TestTooManyRequestsError(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequestsError(60).Write(w)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Status code = %d, want 429", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra != "60" {
		t.Errorf("Retry-After = %q, want 60", ra)
	}
}
