// streamtest connects to a realtime endpoint and prints received frames to
// the console.
//
// Usage:
//
//	go run ./cmd/streamtest -url wss://stream.example.com/ws -channel ticks:AAPL -channel orderbook:BTC
//
// The access token is read from the STREAM_TOKEN environment variable when
// set.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nuniesmith/fks-realtime/internal/channels"
	"github.com/nuniesmith/fks-realtime/internal/credentials"
	"github.com/nuniesmith/fks-realtime/internal/transport"
)

type channelList []string

func (c *channelList) String() string { return fmt.Sprint(*c) }

func (c *channelList) Set(v string) error {
	*c = append(*c, v)
	return nil
}

func main() {
	url := flag.String("url", "", "WebSocket endpoint (ws:// or wss://)")
	verbose := flag.Bool("verbose", false, "pretty-print frame JSON")
	var subs channelList
	flag.Var(&subs, "channel", "channel to subscribe (repeatable)")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *url == "" {
		logger.Error("missing -url")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cfg := transport.DefaultConfig()
	cfg.URL = *url

	source := credentials.NewStaticSource(os.Getenv("STREAM_TOKEN"))
	client := transport.NewClient(cfg, source, logger)

	client.OnStatusChange(func(st transport.Status) {
		logger.Info("status", "status", st)
	})

	for _, channel := range subs {
		channel := channel
		client.Subscribe(channel, func(msg channels.Message) {
			printFrame(channel, msg, *verbose)
		})
	}

	// Frames with no channel subscription land here.
	client.OnMessage(func(msg channels.Message) {
		printFrame("(unrouted)", msg, *verbose)
	})

	if err := client.Connect(ctx); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("stats", "status", client.Status())
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	client.Disconnect()
	logger.Info("shutdown complete")
}

func printFrame(channel string, msg channels.Message, verbose bool) {
	if verbose {
		var out map[string]any
		if json.Unmarshal(msg.Data, &out) == nil {
			pretty, _ := json.MarshalIndent(out, "", "  ")
			fmt.Printf("[%s] %s\n", channel, pretty)
			return
		}
	}
	fmt.Printf("[%s] %s\n", channel, msg.Data)
}
