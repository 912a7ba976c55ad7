package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"snipe-console/internal/domain"
)

func TestClient_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/status" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"botRunning": true,
			"settings": {
				"basic": {"tokenPageDestination": "axiom", "soundEnabled": true},
				"globalSnipe": {"amount": "0.5", "fees": "15", "priorityFee": "0.001"}
			},
			"twitter": {"loggedIn": true, "username": "kol"}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	st, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	if !st.BotRunning {
		t.Error("expected bot running")
	}
	settings, ok, err := st.SettingsOver(domain.DefaultSettings())
	if err != nil || !ok {
		t.Fatalf("SettingsOver: ok=%v err=%v", ok, err)
	}
	if settings.Basic.TokenPageDestination != domain.DestinationAxiom {
		t.Errorf("expected axiom destination, got %s", settings.Basic.TokenPageDestination)
	}
	if !settings.GlobalSnipe.Amount.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("expected amount 0.5, got %s", settings.GlobalSnipe.Amount)
	}
	if st.Twitter.Username != "kol" {
		t.Errorf("expected twitter user kol, got %s", st.Twitter.Username)
	}
}

func TestClient_UnsuccessfulReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error": "invalid private key"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	key := "bad"
	err := client.SaveBasic(context.Background(), domain.BasicPatch{PrivateKey: &key})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrUnsuccessful) {
		t.Errorf("expected ErrUnsuccessful, got %v", err)
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Op != "save_basic" {
		t.Errorf("expected op save_basic, got %s", apiErr.Op)
	}
	if apiErr.Message != "invalid private key" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestClient_RetryOnServerErrorForGet(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "sounds": ["alert.mp3", "chime.wav"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetryDelay(10*time.Millisecond), WithMaxRetries(3))

	sounds, err := client.Sounds(context.Background())
	if err != nil {
		t.Fatalf("Sounds: %v", err)
	}
	if len(sounds) != 2 {
		t.Errorf("expected 2 sounds, got %d", len(sounds))
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestClient_WritesNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetryDelay(10*time.Millisecond), WithMaxRetries(3))

	if err := client.StartBot(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestClient_SaveGlobalSnipeCarriesPropagationMode(t *testing.T) {
	var got map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/settings/global-snipe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	amount := decimal.RequireFromString("0.25")
	err := client.SaveGlobalSnipe(context.Background(), domain.GlobalSnipePatch{Amount: &amount}, domain.PropagateAllExisting)
	if err != nil {
		t.Fatalf("SaveGlobalSnipe: %v", err)
	}

	if got["amount"] != "0.25" {
		t.Errorf("expected amount \"0.25\", got %v", got["amount"])
	}
	if got["propagationMode"] != "all_existing" {
		t.Errorf("expected all_existing, got %v", got["propagationMode"])
	}
	if got["applyToExisting"] != true {
		t.Errorf("expected applyToExisting true, got %v", got["applyToExisting"])
	}
	if _, ok := got["fees"]; ok {
		t.Error("untouched fields must not be sent")
	}
}

func TestClient_ResolveToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TokenAddress string `json:"tokenAddress"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.TokenAddress != "MINT1" {
			t.Errorf("expected MINT1, got %s", req.TokenAddress)
		}
		w.Write([]byte(`{"success": true, "bondingCurveAddress": "BC1", "pairAddress": "PAIR1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	res, err := client.ResolveToken(context.Background(), "MINT1")
	if err != nil {
		t.Fatalf("ResolveToken: %v", err)
	}
	if res.BondingCurve != "BC1" || res.Pair != "PAIR1" {
		t.Errorf("unexpected resolution %+v", res)
	}
}

func TestClient_AdminsPathAndList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/admins/secondary":
			w.Write([]byte(`{"success": true, "admins": [{"id": "1", "value": "@dev"}]}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/admins/secondary/a b":
			w.Write([]byte(`{"success": true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	admins, err := client.Admins(ctx, domain.ListSecondary)
	if err != nil {
		t.Fatalf("Admins: %v", err)
	}
	if len(admins) != 1 || admins[0].List != domain.ListSecondary {
		t.Errorf("unexpected admins %+v", admins)
	}

	if err := client.RemoveAdmin(ctx, domain.ListSecondary, "a b"); err != nil {
		t.Fatalf("RemoveAdmin: %v", err)
	}

	if _, err := client.Admins(ctx, domain.AdminList("tertiary")); err == nil {
		t.Error("expected error for unknown list")
	}
}

func TestClient_NotFoundIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success": false, "message": "no such sound"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.DeleteSound(context.Background(), "missing.mp3")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", apiErr.Status)
	}
}
