package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/cheese-board/internal/pairing"
	"github.com/park285/cheese-board/internal/viewhttp"
)

func main() {
	redisURL := os.Getenv("REDIS_URL")
	viewURL := os.Getenv("VIEW_BASE_URL")

	if redisURL == "" && viewURL == "" {
		log.Fatal("REDIS_URL or VIEW_BASE_URL is required")
	}

	if redisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lobby, err := pairing.OpenLobby(ctx, redisURL, 0)
		if err != nil {
			cancel()
			log.Fatalf("redis error: %v", err)
		}
		entries, err := lobby.List(ctx)
		cancel()
		if err != nil {
			log.Printf("lobby list error: %v", err)
		} else {
			log.Printf("lobby ok: %d open host(s)", len(entries))
			for _, e := range entries {
				fmt.Printf("%s\t%s\t%s\n", e.Code, e.URL, e.CreatedAt.Format(time.RFC3339))
			}
		}
		if len(os.Args) > 1 {
			rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
			e, err := lobby.Resolve(rctx, os.Args[1])
			rcancel()
			if err != nil {
				log.Printf("resolve %s: %v", os.Args[1], err)
			} else {
				log.Printf("resolve %s -> %s", e.Code, e.URL)
			}
		}
		_ = lobby.Close()
	}

	if viewURL == "" {
		log.Println("VIEW_BASE_URL not set; skipping view check")
		return
	}
	client := viewhttp.NewClient(viewURL, viewhttp.WithClientTimeout(5*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		log.Printf("view health error: %v", err)
		return
	}
	snap, err := client.Snapshot(ctx)
	if err != nil {
		log.Printf("view snapshot error: %v", err)
		return
	}
	log.Printf("view ok: %s status=%q side=%q records=%d", snap.PairingLabel, snap.Status, snap.SideText, len(snap.Records))
}
