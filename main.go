package main

import (
	"caption-studio/config"
	"caption-studio/core"
	"caption-studio/handlers/api/exports"
	"caption-studio/handlers/api/scenes"
	searchapi "caption-studio/handlers/api/search"
	"caption-studio/handlers/api/suggest"
	"caption-studio/handlers/auth"
	"caption-studio/handlers/websocket"
	authMiddleware "caption-studio/middleware"
	"caption-studio/scene"
	"caption-studio/search"
	"caption-studio/stores"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func setupRouter(reg *scene.Registry, hub *websocket.Hub, searcher search.Searcher, store core.ExportStore, captioner suggest.Captioner) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/search", searchapi.HandleSearch(searcher))

		r.Route("/scenes", func(r chi.Router) {
			r.Post("/", scenes.HandleCreate(reg))
			r.Get("/", scenes.HandleList(reg, hub))
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", scenes.HandleDelete(reg))
				r.Put("/background", scenes.HandleLoadBackground(reg))
				r.Post("/shapes", scenes.HandleAddShape(reg))
				r.Post("/text", scenes.HandleAddText(reg))
				r.Get("/layers", scenes.HandleLayers(reg))
				r.Patch("/layers/{index}", scenes.HandleTransform(reg))
				r.Put("/layers/{index}/text", scenes.HandleEditText(reg))
				r.Get("/export", scenes.HandleExport(reg))

				r.Group(func(r chi.Router) {
					r.Use(authMiddleware.AuthJWT)
					r.Post("/exports", exports.HandleSave(reg, store))
					r.Post("/suggest", suggest.HandleSuggest(reg, captioner))
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Route("/exports", func(r chi.Router) {
				r.Get("/", exports.HandleList(store))
				r.Get("/{id}", exports.HandleGet(store))
				r.Delete("/{id}", exports.HandleDelete(store))
			})
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	return r
}

func waitForShutdown(hub *websocket.Hub, reg *scene.Registry) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)

	s := <-signals
	logrus.WithField("signal", s.String()).Info("Shutting down")
	hub.Close()
	reg.Close()
	os.Exit(0)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Unsplash.AccessKey == "" {
		logrus.Warn("UNSPLASH_ACCESS_KEY is not set. Image search will fail with 401.")
	}

	auth.InitAuth(cfg.Auth)
	store := stores.GetStore(cfg.Storage)
	searcher := search.NewClient(cfg.Unsplash.APIURL, cfg.Unsplash.AccessKey, nil)
	captioner := suggest.NewClient(cfg.OpenAI)

	// The hub needs the registry to resolve joins and the registry needs
	// the hub to publish changes.
	var hub *websocket.Hub
	reg := scene.NewRegistry(scene.WithObserver(func(sceneID string, layers []scene.LayerDescriptor) {
		hub.Publish(sceneID, layers)
	}))
	hub = websocket.NewHub(reg)

	r := setupRouter(reg, hub, searcher, store, captioner)
	r.Mount("/socket.io/", hub.Server().ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(hub, reg)
}
