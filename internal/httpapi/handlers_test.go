package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dapurlima/backend/internal/cache"
	"dapurlima/backend/internal/cloudsync"
	"dapurlima/backend/internal/domain"
	"dapurlima/backend/internal/service"
	"dapurlima/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	auth := NewAuthManager("test-secret-key", time.Hour, repo)
	queue := cloudsync.NewQueue(cloudsync.NoopSender{}, 16)
	t.Cleanup(func() { _ = queue.Close() })
	svc := service.New(repo, cache.NoopMovementCache{}, queue, auth, "outlet-pusat", 20*time.Second)

	return New(svc, auth, "*", queue.FailedCount)
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
	if _, present := body["sync_failed"]; !present {
		t.Fatalf("expected sync_failed in health payload, got %v", body)
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "kasir1",
		"password": "cashier123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.AccessToken == "" {
		t.Fatalf("expected access_token in response")
	}
	if body.OutletID != "outlet-pusat" {
		t.Fatalf("expected outlet-pusat in login response, got %q", body.OutletID)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "kasir1",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleInventory_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleInventory_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "kasir1", "cashier123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["items"] == nil {
		t.Fatalf("expected items key in response, got %v", body)
	}
}

func TestHandleClosings_ForbiddenForCashier(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "kasir1", "cashier123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/closings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier on closings, got %d", rec.Code)
	}
}

func TestHandleProduction_InsufficientStockConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "kasir1", "cashier123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]any{
		"result_item_name": "Ayam Ungkep",
		"result_quantity":  1,
		"components": []map[string]any{
			{"item_name": "Ayam Potong", "quantity": 999},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/production", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleTransferRespond_NotFound(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "kasir2", "cashier123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]any{"accept": true})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers/trf-missing/respond", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown transfer, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleMovement_InvalidDate(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "kasir1", "cashier123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/movement?date=not-a-date", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid date, got %d", rec.Code)
	}
}

func TestHandleTransferFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	senderToken := loginAs(t, api, "kasir1", "cashier123")
	receiverToken := loginAs(t, api, "kasir2", "cashier123")
	csrf := fetchCSRFToken(t, api)

	initiatePayload, _ := json.Marshal(map[string]any{
		"to_outlet_id": "outlet-cabang",
		"item_name":    "Sirup Gula",
		"quantity":     1.5,
	})
	initReq := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewReader(initiatePayload))
	initReq.Header.Set("Content-Type", "application/json")
	initReq.Header.Set("Authorization", "Bearer "+senderToken)
	initReq.Header.Set("X-CSRF-Token", csrf)
	initRec := httptest.NewRecorder()
	handler.ServeHTTP(initRec, initReq)

	if initRec.Code != http.StatusCreated {
		t.Fatalf("initiate expected 201, got %d (body: %s)", initRec.Code, initRec.Body.String())
	}
	var initBody domain.TransferResponse
	if err := json.NewDecoder(initRec.Body).Decode(&initBody); err != nil {
		t.Fatalf("decode initiate response: %v", err)
	}
	if initBody.Transfer.Status != domain.TransferPending {
		t.Fatalf("expected pending transfer, got %s", initBody.Transfer.Status)
	}

	respondPayload, _ := json.Marshal(map[string]any{"accept": true})
	respondReq := httptest.NewRequest(http.MethodPost, "/api/v1/transfers/"+initBody.Transfer.ID+"/respond", bytes.NewReader(respondPayload))
	respondReq.Header.Set("Content-Type", "application/json")
	respondReq.Header.Set("Authorization", "Bearer "+receiverToken)
	respondReq.Header.Set("X-CSRF-Token", csrf)
	respondRec := httptest.NewRecorder()
	handler.ServeHTTP(respondRec, respondReq)

	if respondRec.Code != http.StatusOK {
		t.Fatalf("respond expected 200, got %d (body: %s)", respondRec.Code, respondRec.Body.String())
	}
	var respondBody domain.TransferResponse
	if err := json.NewDecoder(respondRec.Body).Decode(&respondBody); err != nil {
		t.Fatalf("decode respond response: %v", err)
	}
	if respondBody.Transfer.Status != domain.TransferAccepted {
		t.Fatalf("expected accepted transfer, got %s", respondBody.Transfer.Status)
	}
}

func loginAs(t *testing.T, api *API, username string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login as %s failed, status %d", username, res.Code)
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if payload.AccessToken == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}
