package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ViewHTTPAddr string

	PeerListenAddr    string
	PeerPublicURL     string
	PeerAcceptTimeout time.Duration

	RedisURL string
	LobbyTTL time.Duration

	StockfishPath     string
	EngineMoveTimeMS  int
	OpeningBookPath   string
	OpeningBookPlies  int
	ComputerHumanSide string

	GameOverPolicy string
	MessagesDir    string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ViewHTTPAddr:      ":8088",
		PeerListenAddr:    ":8089",
		PeerAcceptTimeout: 120 * time.Second,
		LobbyTTL:          10 * time.Minute,
		EngineMoveTimeMS:  300,
		OpeningBookPlies:  16,
		ComputerHumanSide: "white",
		GameOverPolicy:    "reset",
	}

	if v := strings.TrimSpace(os.Getenv("VIEW_HTTP_ADDR")); v != "" {
		cfg.ViewHTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("PEER_LISTEN_ADDR")); v != "" {
		cfg.PeerListenAddr = v
	}
	cfg.PeerPublicURL = strings.TrimSpace(os.Getenv("PEER_PUBLIC_URL"))
	if v := strings.TrimSpace(os.Getenv("PEER_ACCEPT_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PeerAcceptTimeout = time.Duration(n) * time.Second
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("LOBBY_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LobbyTTL = time.Duration(n) * time.Second
		}
	}

	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_MOVETIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineMoveTimeMS = n
		}
	}
	cfg.OpeningBookPath = strings.TrimSpace(os.Getenv("OPENING_BOOK_PATH"))
	if v := strings.TrimSpace(os.Getenv("OPENING_BOOK_PLIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OpeningBookPlies = n
		}
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("COMPUTER_HUMAN_SIDE"))); v != "" {
		cfg.ComputerHumanSide = v
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("GAME_OVER_POLICY"))); v != "" {
		cfg.GameOverPolicy = v
	}
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if cfg.PeerPublicURL == "" {
		cfg.PeerPublicURL = derivePeerURL(cfg.PeerListenAddr)
	}

	if cfg.ViewHTTPAddr == "" {
		return nil, errors.New("VIEW_HTTP_ADDR is required")
	}
	switch cfg.ComputerHumanSide {
	case "white", "black":
	default:
		return nil, fmt.Errorf("COMPUTER_HUMAN_SIDE must be white or black, got %q", cfg.ComputerHumanSide)
	}
	switch cfg.GameOverPolicy {
	case "reset", "stay":
	default:
		return nil, fmt.Errorf("GAME_OVER_POLICY must be reset or stay, got %q", cfg.GameOverPolicy)
	}
	return cfg, nil
}

// derivePeerURL turns a listen address into the URL a joiner dials.
func derivePeerURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "ws://" + net.JoinHostPort(host, port) + "/peer"
}
