// Command campusdesk runs the scheduling core of the learning portal: the
// availability editor, the calendar-event synchronizer, and the local API
// the portal UI talks to.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"campusdesk/api"
	"campusdesk/handlers"
	"campusdesk/internal/config"
	"campusdesk/internal/querycache"
	"campusdesk/services/availability"
	"campusdesk/services/calendarapi"
	"campusdesk/services/calendarsync"
	"campusdesk/services/icsfeed"
	"campusdesk/services/notify"
	"campusdesk/utils"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	// Log to stderr and a rotated file under the storage dir.
	log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   filepath.Join(cfg.StorageDir, "campusdesk.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
	}))

	client := calendarapi.NewClient(cfg.BackendURL, cfg.AuthToken)
	toasts := notify.NewService()

	// Toasts also land in the log, so failures stay visible when no UI
	// subscriber is connected.
	toastCh, _ := toasts.Subscribe()
	go func() {
		for toast := range toastCh {
			log.Printf("[notify] %s: %s", toast.Level, toast.Message)
		}
	}()

	cache := querycache.New()
	if cfg.PersistCache {
		store, err := querycache.OpenSQLiteStore(filepath.Join(cfg.StorageDir, "cache.db"))
		if err != nil {
			log.Printf("[main] cache persistence disabled: %v", err)
		} else {
			defer store.Close()
			cache = querycache.NewWithStore(store, querycache.TagEvents)
			log.Printf("[main] cache persistence enabled, warmed %d views", len(cache.KeysForTag(querycache.TagEvents)))
		}
	}

	availabilitySvc := availability.NewService(client, toasts)
	availabilitySvc.StrictIntervals = cfg.StrictIntervals

	syncSvc := calendarsync.New(client, cache, toasts)
	syncSvc.RangeAware = cfg.RangeAwarePatches

	// Re-warm invalidated views in the background instead of waiting for
	// each view's next read.
	stopWatch := syncSvc.WatchInvalidations(context.Background())
	defer stopWatch()

	feedSvc := icsfeed.NewService(syncSvc, cfg.FeedHorizon())

	router := utils.NewRouter(cfg.AllowedOrigins)
	if cfg.MutationsPerMinute > 0 {
		router.Use(api.NewMutationLimiter(cfg.MutationsPerMinute).Middleware())
	}
	handlers.NewAvailabilityHandler(availabilitySvc).RegisterRoutes(router)
	handlers.NewEventsHandler(syncSvc, feedSvc).RegisterRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s (backend %s)", cfg.Listen, cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("[main] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}
