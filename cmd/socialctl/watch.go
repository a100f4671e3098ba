package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	social "github.com/Ariedam64/MagicGarden-modMenu-sub000"
	"github.com/spf13/cobra"
)

var watchTransport string

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchTransport, "transport", "t", "", "Push transport: ws, sse or webhook (default from config)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live pushes and print what changes",
	Long:  "Connect to the push stream, keep a local hub in sync and print presence, messages and unread counters until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		hub, cfg, err := loadHub(loadCtx)
		cancel()
		if err != nil {
			return err
		}
		defer hub.Destroy()

		unsubs := printEvents(hub)
		defer func() {
			for _, u := range unsubs {
				u()
			}
		}()

		router := social.NewRouter(hub.Bus(), logger)
		transport := watchTransport
		if transport == "" {
			transport = valueOrDefault(cfg.Push.Transport, "ws")
		}
		if transport == "webhook" {
			return serveWebhook(ctx, cfg, router)
		}

		rc := social.RealtimeConfig{
			Token:                cfg.Auth.Token,
			PlayerID:             cfg.Default.PlayerID,
			AutoReconnect:        true,
			MaxReconnectAttempts: -1,
			Logger:               logger,
		}
		baseURL := valueOrDefault(cfg.Default.BaseURL, social.DefaultBaseURL)

		var src interface {
			social.PushSource
			OnReconnecting(func(int, time.Duration))
		}
		switch transport {
		case "ws":
			src = social.NewPushWSClient(baseURL, rc, router)
		case "sse":
			src = social.NewPushSSEClient(baseURL, rc, router)
		default:
			return fmt.Errorf("unknown transport %q", transport)
		}
		src.OnReconnecting(func(attempt int, delay time.Duration) {
			fmt.Fprintf(os.Stderr, "reconnecting (attempt %d) in %s\n", attempt, delay.Round(time.Millisecond))
		})
		if err := src.Connect(ctx); err != nil {
			return fmt.Errorf("cannot connect: %w", err)
		}
		defer src.Disconnect()

		hub.Open()
		fmt.Printf("Watching via %s. Press Ctrl+C to stop.\n", transport)
		<-ctx.Done()
		return nil
	},
}

func serveWebhook(ctx context.Context, cfg *Config, router *social.Router) error {
	wh, err := social.NewPushWebhook(cfg.Push.WebhookSecret, router, logger)
	if err != nil {
		return err
	}
	addr := valueOrDefault(cfg.Push.WebhookAddr, ":8787")
	srv := &http.Server{Addr: addr, Handler: wh.HTTPHandler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Listening for pushes on %s. Press Ctrl+C to stop.\n", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func printEvents(hub *social.Hub) []func() {
	bus := hub.Bus()
	cache := hub.Cache()
	lastTotal := hub.Totals().Total
	printTotals := func() {
		if t := hub.Totals(); t.Total != lastTotal {
			lastTotal = t.Total
			fmt.Printf("  unread: friends %d, groups %d, requests %d (total %d)\n", t.Friends, t.Groups, t.Requests, t.Total)
		}
	}
	return []func(){
		social.Subscribe(bus, social.TopicPresence, func(ev social.Event[social.PresenceEvent]) {
			name := ev.Payload.PlayerID
			if f, ok := cache.Friend(name); ok {
				name = f.Name
			}
			logger.Debug().Str("player", name).Bool("online", ev.Payload.Online).Msg("presence")
		}),
		social.Subscribe(bus, social.TopicMessage, func(ev social.Event[social.IncomingMessage]) {
			in := ev.Payload
			fmt.Printf("[%s %s] %s: %s\n", in.Kind, in.ID, in.Message.SenderID, in.Message.Body)
			printTotals()
		}),
		social.Subscribe(bus, social.TopicFriendRequestsRefresh, func(social.Event[social.RefreshSignal]) {
			fmt.Println("friend requests changed")
		}),
		social.Subscribe(bus, social.TopicReadReceipt, func(ev social.Event[social.ReadReceipt]) {
			logger.Debug().Str("reader", ev.Payload.ReaderID).Int64("message_id", ev.Payload.MessageID).Msg("read receipt")
		}),
	}
}
