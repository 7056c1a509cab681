package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/park285/cheese-board/internal/boardctl"
	appcfg "github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/msgcat"
	"github.com/park285/cheese-board/internal/obslog"
	"github.com/park285/cheese-board/internal/pairing"
	"github.com/park285/cheese-board/internal/viewhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	texts, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog", zap.Error(err))
	}

	var lobby *pairing.Lobby
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lobby, err = pairing.OpenLobby(ctx, cfg.RedisURL, cfg.LobbyTTL)
		cancel()
		if err != nil {
			logger.Fatal("lobby init", zap.Error(err))
		}
	}

	chooser := newChooser(cfg, logger)
	factory := pairing.NewFactory(pairing.FactoryConfig{
		PeerListenAddr: cfg.PeerListenAddr,
		PeerPublicURL:  cfg.PeerPublicURL,
		AcceptTimeout:  cfg.PeerAcceptTimeout,
		HumanSide:      domain.ParseSide(cfg.ComputerHumanSide),
	}, chooser, lobby)

	notices := boardctl.NewNoticeQueue(64)
	prompter := boardctl.NewRendezvousPrompter()
	ctrl := boardctl.New(boardctl.Options{
		Texts:            texts,
		Prompter:         prompter,
		Notifier:         notices,
		Policy:           boardctl.PolicyFromName(cfg.GameOverPolicy, texts),
		DefaultAuthority: factory.Player,
	})

	first, err := factory.Player()
	if err != nil {
		logger.Fatal("default pairing", zap.Error(err))
	}
	startCtx, startCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = ctrl.Start(startCtx, first)
	startCancel()
	if err != nil {
		logger.Fatal("controller start", zap.Error(err))
	}

	srv := viewhttp.New(cfg.ViewHTTPAddr, viewhttp.Deps{
		Controller: ctrl,
		Prompter:   prompter,
		Notices:    notices,
		Factory:    factory,
	})
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	logger.Info("board_started",
		zap.String("view_addr", cfg.ViewHTTPAddr),
		zap.String("peer_url", cfg.PeerPublicURL),
		zap.Bool("lobby", lobby != nil),
		zap.String("game_over_policy", cfg.GameOverPolicy),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("board_signal", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			logger.Error("view_http_stopped", zap.Error(err))
		}
	}

	if err := shutdown(srv, ctrl, factory); err != nil {
		logger.Warn("board_shutdown", zap.Error(err))
		os.Exit(1)
	}
}

// newChooser prefers Stockfish and falls back to random play. An opening
// book, when configured, answers the first plies.
func newChooser(cfg *appcfg.AppConfig, logger *zap.Logger) engine.Chooser {
	var c engine.Chooser = engine.NewRandomChooser(time.Now().UnixNano())
	if cfg.StockfishPath != "" {
		uc, err := engine.NewUCIChooser(cfg.StockfishPath, cfg.EngineMoveTimeMS)
		if err != nil {
			logger.Warn("engine_unavailable", zap.String("path", cfg.StockfishPath), zap.Error(err))
		} else {
			c = uc
		}
	}
	if cfg.OpeningBookPath != "" {
		book, err := engine.LoadBook(cfg.OpeningBookPath)
		if err != nil {
			logger.Warn("opening_book_unavailable", zap.String("path", cfg.OpeningBookPath), zap.Error(err))
			return c
		}
		c = engine.NewBookChooser(book, c, cfg.OpeningBookPlies, 0)
	}
	return c
}

func shutdown(srv *viewhttp.Server, ctrl *boardctl.Controller, factory *pairing.Factory) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var result *multierror.Error
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		result = multierror.Append(result, err)
	}
	if err := ctrl.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := factory.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
