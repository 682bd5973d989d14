package restapi

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"slopesniper/internal/coreerr"
)

func TestStatusForMapsErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{coreerr.User("bad input", nil), fiber.StatusBadRequest},
		{coreerr.Config("bad config", nil), fiber.StatusUnprocessableEntity},
		{coreerr.Remote("upstream down", nil), fiber.StatusBadGateway},
		{coreerr.State("conflict", nil), fiber.StatusConflict},
		{coreerr.FatalErr("boom", nil), fiber.StatusInternalServerError},
		{errors.New("plain error"), fiber.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestHealthRouteRespondsOK(t *testing.T) {
	s := NewServer(nil)

	req, _ := http.NewRequest("GET", "/health", nil)
	resp, err := s.app.Test(req, 1000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
