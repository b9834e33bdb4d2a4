package main

import (
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-code/api"
	"github.com/tcriess/lightspeed-code/auth"
	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/persistence"
	"github.com/tcriess/lightspeed-code/room"
	"github.com/tcriess/lightspeed-code/runner"
	"github.com/tcriess/lightspeed-code/types"
	"github.com/tcriess/lightspeed-code/ws"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key (optional)")

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	guard     *auth.Guard
	directory *room.Directory
	registry  *ws.Registry
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		globals.AppLogger.Info("interrupted, shutting down")
		os.Exit(0)
	}()

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	cfg, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if cfg.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
	}

	persister, err := persistence.NewPersister(cfg)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		// no persistence configured, run on an in-memory store
		cfg.PersistenceConfig = config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"}
		persister, err = persistence.NewBuntPersister(cfg)
		if err != nil {
			panic(err)
		}
	}
	defer persister.Close()

	guard, err = auth.NewGuard(cfg)
	if err != nil {
		panic(err)
	}
	directory = room.NewDirectory(persister)
	registry = ws.NewRegistry(cfg, persister)
	defer registry.Close()

	router := mux.NewRouter()
	apiHandler := api.NewHandler(guard, directory, persister, runner.NewRunner(cfg), registry)
	apiHandler.AddRoutes(router)
	router.HandleFunc("/rooms/{roomId}/ws", websocketHandler).Methods(http.MethodGet)

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, router)
	} else {
		err = http.ListenAndServe(*addr, router)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}

// websocketHandler authenticates the connecting user, records the visit and
// attaches a new session to the room's hub.
func websocketHandler(w http.ResponseWriter, r *http.Request) {
	roomId := mux.Vars(r)["roomId"]
	rm, err := directory.ResolveRoom(roomId)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// websocket clients cannot set headers, the token travels in the query
	userId, err := guard.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	hub := registry.GetHub(rm)
	user := &types.User{Id: userId}
	if err := hub.Persister.GetUser(user); err != nil {
		globals.AppLogger.Error("could not get user", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	user.LastOnline = time.Now()
	if err := hub.Persister.StoreUser(*user); err != nil {
		globals.AppLogger.Error("could not store user", "error", err)
	}
	if err := directory.RecordVisit(user.Id, rm.Id); err != nil {
		globals.AppLogger.Error("could not record visit", "error", err)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close() //nolint

	doneChan := make(chan struct{})
	c := ws.NewClient(hub, conn, user, doneChan)

	// the hub queues the room snapshot on registration, before any live
	// event reaches this session
	hub.Register <- c
	defer func() {
		hub.Unregister <- c
	}()
	c.Add(2)
	go c.ReadLoop()
	go c.WriteLoop()

	<-doneChan
	globals.AppLogger.Debug("session done", "user", user.Id, "room", rm.Id)
}
