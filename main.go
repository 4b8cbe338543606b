package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/pliu/cipherchat/internal/handlers"
	"github.com/pliu/cipherchat/internal/middleware"
	"github.com/pliu/cipherchat/internal/store/sqlstore"
	"github.com/pliu/cipherchat/internal/ws"
)

var (
	addr   = flag.String("addr", envOr("CIPHERCHAT_ADDR", ":5050"), "http service address")
	driver = flag.String("driver", envOr("CIPHERCHAT_DRIVER", "sqlite3"), "sql driver (sqlite3 or postgres)")
	dsn    = flag.String("dsn", envOr("CIPHERCHAT_DSN", "cipherchat.db"), "data source name")
)

const shutdownTimeout = 5 * time.Second

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional; flags and environment win.
	godotenv.Load()
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	store, err := sqlstore.New(*driver, *dsn)
	if err != nil {
		log.Fatal(err)
	}

	hub := ws.NewHub()
	go hub.Run()

	authHandler := &handlers.AuthHandler{Store: store}
	roomHandler := &handlers.RoomHandler{Store: store, Hub: hub}
	friendHandler := &handlers.FriendHandler{Hub: hub}

	r := mux.NewRouter()
	r.Use(middleware.Logging)

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

	// Identity binding happens after the upgrade, via the register frame.
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(hub, w, req)
	})

	srv := &http.Server{Addr: *addr, Handler: r}

	go func() {
		log.Println("Starting server on", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
