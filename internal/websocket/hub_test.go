package websocket

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"mediquiz-backend/internal/middleware"
)

func TestHandleWebSocketRejectsMissingToken(t *testing.T) {
	hub := NewHub(nil, middleware.NewJWTAuth("secret"))

	rr := httptest.NewRecorder()
	hub.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHandleWebSocketRejectsForeignToken(t *testing.T) {
	hub := NewHub(nil, middleware.NewJWTAuth("secret"))
	token, err := middleware.NewJWTAuth("other-secret").GenerateAccessToken(uuid.New(), "someone", false)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	rr := httptest.NewRecorder()
	hub.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if hub.ConnectionCount(uuid.Nil) != 0 {
		t.Fatalf("expected no registered connections")
	}
}

func TestSendToUserWithoutConnections(t *testing.T) {
	hub := NewHub(nil, middleware.NewJWTAuth("secret"))
	hub.SendToUser(uuid.New(), map[string]string{"type": "ping"})
	hub.Close()
}
