package fmcsa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestVerifyDemoModeAllowsUnknownCarriers(t *testing.T) {
	client := NewClient(Config{})

	v, err := client.Verify(context.Background(), "123456")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !v.IsValid || v.Status != "ACTIVE" {
		t.Fatalf("Verify() = %+v, want valid/ACTIVE", v)
	}
	if v.CompanyName == "" || v.DOTNumber == "" {
		t.Fatalf("Verify() missing identity fields: %+v", v)
	}
}

func TestVerifyRequiresMCNumber(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Verify(context.Background(), "  "); err == nil {
		t.Fatalf("Verify(empty) error = nil, want error")
	}
}

func TestVerifyParsesRegistryResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("webKey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"carrier":{
			"legalName":"ABC Trucking LLC",
			"dotNumber":987654,
			"allowedToOperate":"Y",
			"statusCode":"A"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{WebKey: "test-key"}).WithBaseURL(srv.URL)

	v, err := client.Verify(context.Background(), "123456")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !v.IsValid {
		t.Fatalf("Verify() valid = false, want true")
	}
	if v.CompanyName != "ABC Trucking LLC" || v.DOTNumber != "987654" {
		t.Fatalf("Verify() = %+v, want parsed identity", v)
	}
}

func TestVerifyUnknownCarrierFailsVerification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(Config{WebKey: "test-key"}).WithBaseURL(srv.URL)

	v, err := client.Verify(context.Background(), "999999")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if v.IsValid {
		t.Fatalf("Verify() valid = true, want false")
	}
	if v.Status != "NOT_FOUND" {
		t.Fatalf("Verify() status = %q, want NOT_FOUND", v.Status)
	}
}

func TestVerifyCachesResults(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"content":[{"carrier":{
			"legalName":"XYZ Transport Inc",
			"dotNumber":555666,
			"allowedToOperate":"Y"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{WebKey: "test-key"}).WithBaseURL(srv.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.Verify(ctx, "789012"); err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("registry hits = %d, want 1 (cached)", got)
	}
}
