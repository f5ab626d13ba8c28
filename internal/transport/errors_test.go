package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashko-guz/thumbnailerd/internal/handler"
)

func TestStatusForMapsEveryReasonClass(t *testing.T) {
	cases := []struct {
		class handler.ReasonClass
		want  int
	}{
		{handler.ReasonPolicyDenied, http.StatusForbidden},
		{handler.ReasonNotFound, http.StatusNotFound},
		{handler.ReasonDecodeError, http.StatusUnprocessableEntity},
		{handler.ReasonTransientNetwork, http.StatusServiceUnavailable},
		{handler.ReasonInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.class); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.class, got, tc.want)
		}
	}
}

func TestWriteErrorUnwrapsHandlerError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &handler.Error{Class: handler.ReasonNotFound, Err: errors.New("no such file")})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	if body.Domain != errorDomain {
		t.Errorf("Domain = %q, want %q", body.Domain, errorDomain)
	}
	if body.Message != handler.ReasonNotFound.Message() {
		t.Errorf("Message = %q, want %q", body.Message, handler.ReasonNotFound.Message())
	}
}

func TestWriteErrorDefaultsToInternalForPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("unexpected"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
