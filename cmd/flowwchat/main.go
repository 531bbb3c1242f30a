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

	"github.com/gorilla/handlers"

	"github.com/floww-app/chatkit/internal/annotations"
	"github.com/floww-app/chatkit/internal/auth"
	"github.com/floww-app/chatkit/internal/config"
	"github.com/floww-app/chatkit/internal/directory"
	"github.com/floww-app/chatkit/internal/stats"
	"github.com/floww-app/chatkit/internal/store"
	"github.com/floww-app/chatkit/internal/transport"
)

var (
	configName string
	roomId     string
)

func main() {
	flag.StringVar(&configName, "config", "chatkit", "config file name (yaml, without extension)")
	flag.StringVar(&roomId, "room", "", "room to connect to on startup")
	flag.Parse()

	logger := log.New(os.Stderr, "[chatkit] ", log.LstdFlags)

	v, err := config.LoadConfig(configName)
	if err != nil {
		logger.Fatal("config:", err)
	}

	cfg, err := config.ParseConfig(v)
	if err != nil {
		logger.Fatal("config:", err)
	}

	ident, err := auth.ParseIdentity(cfg.Token)
	if err != nil {
		logger.Fatal("token:", err)
	}
	logger.Printf("running as %s", ident.EmployeeId)

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	dir, err := directory.NewRestDirectory(cfg.ApiURL, cfg.Token, logger)
	if err != nil {
		logger.Fatal("directory:", err)
	}

	tc, err := transport.NewClient(transport.Params{
		ApiURL:     cfg.ApiURL,
		SocketURL:  cfg.SocketURL,
		AuthType:   transport.AuthType(cfg.AuthType),
		Token:      cfg.Token,
		AdminToken: cfg.AdminToken,
	}, logger, statsUpdater)
	if err != nil {
		logger.Fatal("transport:", err)
	}

	st, err := store.NewStore(store.Params{
		Transport:      tc,
		LocalUserId:    ident.EmployeeId,
		ResyncInterval: cfg.ResyncInterval,
		PendingTimeout: cfg.PendingTimeout,
	}, logger, statsUpdater)
	if err != nil {
		logger.Fatal("store:", err)
	}

	pins := annotations.NewManager(logger, statsUpdater)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dir.Refresh(ctx); err != nil {
		logger.Println("directory refresh:", err)
	}

	if err := st.LoadConversations(ctx); err != nil {
		logger.Println("load conversations:", err)
	}

	go st.Run(ctx)
	go pins.Run(ctx)

	if roomId != "" {
		if err := st.LoadMessages(ctx, roomId); err != nil {
			logger.Println("load messages:", err)
		}
		tc.Connect(roomId)
	}

	var diagSrv *http.Server
	if cfg.DiagnosticsAddr != "" {
		h := handlers.CORS(
			handlers.MaxAge(3600),
			handlers.AllowedOrigins(cfg.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		)(mux)

		diagSrv = &http.Server{
			Addr:    cfg.DiagnosticsAddr,
			Handler: h,
		}

		go func() {
			logger.Printf("diagnostics on %s", cfg.DiagnosticsAddr)
			if err := diagSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Println("diagnostics server:", err)
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigs
	logger.Printf("received signal: %s\n", sig)

	tc.Disconnect()
	cancel()

	if diagSrv != nil {
		shutDownCtx, cancelShutdown := context.WithTimeout(
			context.Background(),
			10*time.Second,
		)
		defer cancelShutdown()

		if err := diagSrv.Shutdown(shutDownCtx); err != nil {
			logger.Fatalln("diagnostics server shutdown:", err)
		}
	}

	logger.Println("shutdown complete")
}
