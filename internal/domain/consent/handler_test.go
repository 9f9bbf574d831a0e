package consent

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/platform/fhir"
	"github.com/healthshare/healthshare/internal/platform/kvstore"
)

func newTestHandler(kv kvstore.Store) (*Handler, *echo.Echo) {
	h := NewHandler(newTestService(kv, &fakeCapability{granted: true}))
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1"), e.Group("/fhir"))
	return h, e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ConsentLifecycle(t *testing.T) {
	_, e := newTestHandler(kvstore.NewMemoryStore())

	if rec := do(e, http.MethodGet, "/api/v1/consent", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 before consent, got %d", rec.Code)
	}

	rec := do(e, http.MethodPut, "/api/v1/consent", `{"dataTypes":["steps","bloodPressure"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var saved SaveResult
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !saved.PermissionRequested || len(saved.Record.ConsentedDataTypes) != 2 {
		t.Errorf("unexpected save result %+v", saved)
	}

	rec = do(e, http.MethodGet, "/api/v1/consent", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SchemaVersion != SchemaVersion || got.ConsentedDataTypes[1] != observation.BloodPressure {
		t.Errorf("unexpected record %+v", got)
	}

	if rec := do(e, http.MethodDelete, "/api/v1/consent", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on revoke, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/consent", ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 after revoke, got %d", rec.Code)
	}
}

func TestHandler_SaveConsentValidation(t *testing.T) {
	_, e := newTestHandler(kvstore.NewMemoryStore())

	cases := map[string]int{
		`{"dataTypes":["steps","mood"]}`: http.StatusUnprocessableEntity,
		`{}`:                             http.StatusUnprocessableEntity,
		`{"dataTypes":`:                  http.StatusBadRequest,
	}
	for body, want := range cases {
		rec := do(e, http.MethodPut, "/api/v1/consent", body)
		if rec.Code != want {
			t.Errorf("body %s: expected %d, got %d", body, want, rec.Code)
		}
	}

	rec := do(e, http.MethodPut, "/api/v1/consent", `{"dataTypes":["mood"]}`)
	var outcome fhir.OperationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if outcome.ResourceType != "OperationOutcome" || len(outcome.Issue) != 1 || outcome.Issue[0].Severity != fhir.IssueSeverityError {
		t.Errorf("expected error OperationOutcome, got %+v", outcome)
	}
}

func TestHandler_SaveConsentStorageFailure(t *testing.T) {
	kv := newFailingStore()
	kv.setErr = errors.New("disk full")
	_, e := newTestHandler(kv)

	rec := do(e, http.MethodPut, "/api/v1/consent", `{"dataTypes":["steps"]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestHandler_ListDataTypes(t *testing.T) {
	_, e := newTestHandler(kvstore.NewMemoryStore())
	do(e, http.MethodPut, "/api/v1/consent", `{"dataTypes":["weight"]}`)

	rec := do(e, http.MethodGet, "/api/v1/data-types", "")
	var out []dataTypeInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(observation.KnownDataTypes) {
		t.Fatalf("expected %d types, got %d", len(observation.KnownDataTypes), len(out))
	}
	for _, info := range out {
		if info.Consented != (info.DataType == observation.Weight) {
			t.Errorf("unexpected consented flag for %s", info.DataType)
		}
	}
	if out[1].Code != "8867-4" || out[1].DisplayName != "Heart Rate" {
		t.Errorf("unexpected heart rate entry %+v", out[1])
	}
}

func TestHandler_ObservationsAreGated(t *testing.T) {
	_, e := newTestHandler(kvstore.NewMemoryStore())

	rec := do(e, http.MethodGet, "/api/v1/observations", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected no observations without consent, got %s", rec.Body.String())
	}

	do(e, http.MethodPut, "/api/v1/consent", `{"dataTypes":["sleep"]}`)
	rec = do(e, http.MethodGet, "/api/v1/observations", "")
	var out []observationView
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].DataType != observation.Sleep || out[0].Formatted != "7h 25m" {
		t.Errorf("unexpected observations %+v", out)
	}
}

func TestHandler_SearchObservationsFHIR(t *testing.T) {
	_, e := newTestHandler(kvstore.NewMemoryStore())

	rec := do(e, http.MethodGet, "/fhir/Observation", "")
	if !strings.Contains(rec.Body.String(), `"entry":[]`) {
		t.Errorf("expected empty entry list, got %s", rec.Body.String())
	}

	do(e, http.MethodPut, "/api/v1/consent", `{"dataTypes":["steps","heartRate","bloodGlucose"]}`)
	rec = do(e, http.MethodGet, "/fhir/Observation?code=http%3A%2F%2Floinc.org%7C8867-4,41653-7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var bundle fhir.Bundle
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bundle.Type != fhir.BundleTypeCollection || bundle.Total == nil || *bundle.Total != 2 {
		t.Fatalf("unexpected bundle %+v", bundle)
	}
	if bundle.Entry[0].Resource.Code.FirstCoding().Code != "8867-4" {
		t.Errorf("expected heart rate first, got %+v", bundle.Entry[0].Resource.Code)
	}
	if len(bundle.Link) != 1 || bundle.Link[0].Relation != "self" {
		t.Errorf("expected self link, got %+v", bundle.Link)
	}
}

func TestHandler_Metadata(t *testing.T) {
	_, e := newTestHandler(kvstore.NewMemoryStore())
	rec := do(e, http.MethodGet, "/fhir/metadata", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"CapabilityStatement"`) {
		t.Errorf("unexpected metadata response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Dashboard(t *testing.T) {
	_, e := newTestHandler(kvstore.NewMemoryStore())
	do(e, http.MethodPut, "/api/v1/consent", `{"dataTypes":["heartRate"]}`)

	rec := do(e, http.MethodGet, "/api/v1/dashboard", "")
	var d Dashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !d.Connected || len(d.Items) != 1 || d.Items[0].Latest != "72 bpm" {
		t.Errorf("unexpected dashboard %+v", d)
	}
}

func TestErrorResponse_ValidationError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := &observation.ValidationError{DataType: observation.Steps, Field: "value", Reason: "is required"}
	if rerr := ErrorResponse(c, err); rerr != nil {
		t.Fatalf("unexpected error: %v", rerr)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}
