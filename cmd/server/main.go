package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/silver-mush/gopennmush/pkg/boltstore"
	"github.com/silver-mush/gopennmush/pkg/server"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("MUSH_CONF", ""), "Path to game config file (env: MUSH_CONF)")
	boltPath := flag.String("bolt", envDefault("MUSH_BOLT", ""), "Path to bbolt database, overrides config (env: MUSH_BOLT)")
	port := flag.Int("port", 0, "TCP port to listen on, overrides config (env: MUSH_PORT)")
	godPass := flag.String("godpass", envDefault("MUSH_GODPASS", ""), "Set God's password and exit (env: MUSH_GODPASS)")
	flag.Parse()

	var gc *server.GameConf
	if *confFile != "" {
		var err error
		gc, err = server.LoadGameConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading game config: %v", err)
		}
		log.Printf("CONF: loaded %s", *confFile)
	} else {
		gc = server.DefaultGameConf()
	}
	if *boltPath != "" {
		gc.DBFile = *boltPath
	}
	if *port != 0 {
		gc.Port = *port
	}

	store, err := boltstore.Open(gc.DBFile)
	if err != nil {
		log.Fatalf("Error opening database %s: %v", gc.DBFile, err)
	}
	defer store.Close()

	game := server.NewGame(store, gc)
	if store.HasData() {
		if err := store.LoadAll(); err != nil {
			log.Fatalf("Error loading database: %v", err)
		}
	} else if err := game.Seed(); err != nil {
		log.Fatalf("Error seeding new world: %v", err)
	}

	if *godPass != "" {
		if err := game.SetGodPassword(*godPass); err != nil {
			log.Fatalf("Error setting God password: %v", err)
		}
		log.Printf("God password updated, exiting.")
		return
	}

	// Hot-reload runtime settings when the config file changes.
	if *confFile != "" {
		watcher, err := server.WatchGameConf(*confFile, game.ApplyConf)
		if err != nil {
			log.Printf("CONF: watch disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	srv := server.NewServer(game)

	var web *server.WebServer
	if gc.WebEnabled {
		web = server.NewWebServer(game, srv)
		go func() {
			if err := web.Start(); err != nil {
				log.Printf("WEB: %v", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("NET: shutdown signal received")
		if web != nil {
			web.Shutdown()
		}
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
