package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/koopa0/kiosk/internal/app"
	"github.com/koopa0/kiosk/internal/config"
	"github.com/koopa0/kiosk/internal/tui"
)

// runChat initializes and starts the interactive terminal client.
func runChat() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Identity is optional in chat mode: anonymous sessions can still
	// browse products and ask policy questions.
	customerID := os.Getenv("KIOSK_CUSTOMER_ID")

	if err := tui.Run(ctx, a.Assistant, customerID); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}
