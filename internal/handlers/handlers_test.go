package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pliu/cipherchat/internal/middleware"
	"github.com/pliu/cipherchat/internal/store/sqlstore"
	"github.com/pliu/cipherchat/internal/ws"
)

// newTestServer wires the same router as main against an in-memory
// store and a running hub.
func newTestServer(t *testing.T) (*httptest.Server, *sqlstore.SQLStore, *ws.Hub) {
	t.Helper()

	store, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}

	hub := ws.NewHub()
	go hub.Run()

	authHandler := &AuthHandler{Store: store}
	roomHandler := &RoomHandler{Store: store, Hub: hub}
	friendHandler := &FriendHandler{Hub: hub}

	r := mux.NewRouter()
	r.HandleFunc("/user/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/user/login", authHandler.Login).Methods("POST")

	authed := r.NewRoute().Subrouter()
	authed.Use(middleware.Auth(store))
	authed.HandleFunc("/room", roomHandler.CreateRoom).Methods("POST")
	authed.HandleFunc("/rooms", roomHandler.GetRooms).Methods("GET")
	authed.HandleFunc("/room", roomHandler.GetRoomDetail).Methods("GET")
	authed.HandleFunc("/room/chat/{roomId}", roomHandler.PostChat).Methods("POST")
	authed.HandleFunc("/friend/send", friendHandler.SendKey).Methods("POST")
	authed.HandleFunc("/friend/request", friendHandler.RequestKey).Methods("POST")

	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(hub, w, req)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store, hub
}

// registerUser signs a user up through the API and returns its token.
func registerUser(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()
	status, body := doJSON(t, srv, "POST", "/user/register", "", map[string]string{
		"name":     name,
		"password": "password123",
	})
	if status != http.StatusOK {
		t.Fatalf("Failed to register %s: status %d", name, status)
	}
	return body["token"].(string)
}

// doJSON issues a request with an optional token header and decodes the
// JSON response into a generic map.
func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
	}

	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(reqBody))
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("token", token)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

// dialWS opens a channel, binds the given identity and waits until the
// hub sees it online.
func dialWS(t *testing.T, srv *httptest.Server, hub *ws.Hub, name string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(srv.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteJSON(map[string]string{"type": "register", "name": name}); err != nil {
		t.Fatalf("Failed to send register frame: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsOnline(name) {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s to come online", name)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func roomPath(roomID int) string {
	return "/room?roomId=" + strconv.Itoa(roomID)
}

func chatPath(roomID int) string {
	return "/room/chat/" + strconv.Itoa(roomID)
}

// readWS reads one frame with a deadline and decodes it.
func readWS(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]interface{}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read websocket frame: %v", err)
	}
	return frame
}
