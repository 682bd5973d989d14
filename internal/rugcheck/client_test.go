package rugcheck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetReportSummaryParsesRisks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Summary{
			Score: 1500,
			Risks: []Risk{
				{Name: "LP Unlocked", Level: "warning"},
				{Name: "Mint authority active", Level: "critical", Description: "can mint more supply"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	c.baseURL = srv.URL

	summary, err := c.GetReportSummary(context.Background(), "MINT123")
	if err != nil {
		t.Fatalf("GetReportSummary: %v", err)
	}
	if summary.Score != 1500 {
		t.Fatalf("score = %d", summary.Score)
	}
	critical := summary.CriticalRisks()
	if len(critical) != 1 || critical[0].Name != "Mint authority active" {
		t.Fatalf("unexpected critical risks: %+v", critical)
	}
}

func TestGetReportSummaryErrorsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	c.baseURL = srv.URL

	if _, err := c.GetReportSummary(context.Background(), "NOPE"); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestToPolicyResultNilSummary(t *testing.T) {
	if ToPolicyResult(nil) != nil {
		t.Fatal("expected nil policy result for nil summary")
	}
}
