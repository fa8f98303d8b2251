package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adpulse/adpulse/internal/config"
	"github.com/adpulse/adpulse/internal/eventhub"
	"github.com/adpulse/adpulse/internal/logging"
	"github.com/adpulse/adpulse/internal/rtclient"
	"github.com/adpulse/adpulse/internal/wire"
)

var (
	tailURL      string
	tailToken    string
	tailEntities []string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream live events from an adpulse server",
	Long: `Stream live events from an adpulse server to stdout.

Connects over WebSocket, optionally subscribes to specific entities, and
prints every received event as one JSON line.

Example:
  adpulse tail --url http://localhost:3000 --entity campaign:4f6c...`,
	RunE: runTail,
}

func runTail(cmd *cobra.Command, _ []string) error {
	if tailURL == "" {
		return fmt.Errorf("--url is required")
	}

	subs := make([]wire.Control, 0, len(tailEntities))
	for _, arg := range tailEntities {
		entityType, entityID, err := parseEntityArg(arg)
		if err != nil {
			return err
		}
		subs = append(subs, wire.Subscribe(entityType, entityID))
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.L()
	hub := eventhub.New(logger)

	client, err := rtclient.New(rtclient.Options{
		BaseURL:           tailURL,
		Endpoint:          cfg.Realtime.Endpoint,
		PingInterval:      cfg.Realtime.PingInterval,
		ReconnectInterval: cfg.Realtime.ReconnectInterval,
		ReconnectAttempts: cfg.Realtime.ReconnectAttempts,
		AckTimeout:        cfg.Realtime.AckTimeout,
		AckEnabled:        true,
		RefreshThreshold:  cfg.Realtime.RefreshThreshold,
		TokenURL:          strings.TrimRight(tailURL, "/") + "/api/auth/refresh",
		Logger:            logger,
		Hub:               hub,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if tailToken != "" {
		client.SetAuthToken(tailToken, 0, nil)
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	hub.On(rtclient.EventMessage, func(data any) {
		switch v := data.(type) {
		case wire.Envelope:
			_ = out.Encode(v)
		case []byte:
			fmt.Fprintln(cmd.OutOrStdout(), string(v))
		}
	})

	fatal := make(chan struct{}, 1)
	hub.On(rtclient.EventReconnectFailed, func(data any) {
		logger.Error("connection lost for good", "details", data)
		select {
		case fatal <- struct{}{}:
		default:
		}
	})

	if err := client.Connect(cmd.Context()); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	for _, sub := range subs {
		if err := client.SubscribeToEntity(sub.EntityType, sub.EntityID); err != nil {
			return err
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		client.Disconnect(1000, "client shutdown")
		return nil
	case <-fatal:
		return fmt.Errorf("reconnect attempts exhausted")
	}
}

// parseEntityArg splits "type:id" subscription arguments.
func parseEntityArg(arg string) (wire.EntityType, string, error) {
	entityType, entityID, found := strings.Cut(arg, ":")
	if !found || entityType == "" || entityID == "" {
		return "", "", fmt.Errorf("invalid --entity %q, expected type:id", arg)
	}
	t := wire.EntityType(entityType)
	if !t.Valid() {
		return "", "", fmt.Errorf("unknown entity type %q", entityType)
	}
	return t, entityID, nil
}

func init() {
	tailCmd.Flags().StringVar(&tailURL, "url", "", "Base URL of the adpulse server (required)")
	tailCmd.Flags().StringVar(&tailToken, "token", "", "Bearer token for authentication")
	tailCmd.Flags().StringArrayVar(&tailEntities, "entity", nil, "Entity subscription as type:id (repeatable)")
	RootCmd.AddCommand(tailCmd)
}
