package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/walletbot/ingress/internal/pipeline"
)

// newRouter registers the built-in command handlers.
func newRouter() *pipeline.Router {
	router := pipeline.NewRouter(pipeline.HandlerFunc(handleMessage))
	router.Register("/start", pipeline.HandlerFunc(handleStart))
	router.Register("/balance", pipeline.HandlerFunc(handleBalance))
	router.Register("/help", pipeline.HandlerFunc(func(ctx context.Context, req pipeline.Request) (string, error) {
		return helpText(router.Commands()), nil
	}))
	return router
}

func handleStart(_ context.Context, req pipeline.Request) (string, error) {
	return fmt.Sprintf("Welcome! Your wallet #%d is ready.\nReceive address: %s",
		req.Account.AccountNumber, req.Account.DerivedAddress), nil
}

func handleBalance(_ context.Context, req pipeline.Request) (string, error) {
	return fmt.Sprintf("Wallet #%d (%s)\nBalance: 0.00",
		req.Account.AccountNumber, req.Account.DerivedAddress), nil
}

func handleMessage(_ context.Context, req pipeline.Request) (string, error) {
	if req.Command != "" {
		return pipeline.MessageUnknownCommand, nil
	}
	return "", nil
}

func helpText(commands []string) string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, cmd := range commands {
		b.WriteString("\n")
		b.WriteString(cmd)
	}
	return b.String()
}
