// Package cmd provides CLI commands for kiosk.
//
// Commands:
//   - serve: HTTP API server for the storefront front end
//   - chat: Interactive terminal client with Bubble Tea TUI
//   - mcp: Model Context Protocol server over stdio
//   - ingest: Help-center crawler and business-rule seeder
//
// Signal handling and graceful shutdown are implemented for all commands
// via context cancellation.
package cmd

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the kiosk CLI.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "chat":
		return runChat()
	case "mcp":
		return runMCP()
	case "ingest":
		return runIngest()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("kiosk - AI shopping assistant for the storefront")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  kiosk serve [addr]         Start the HTTP API server (default: :8080)")
	fmt.Println("  kiosk chat                 Start the interactive terminal client")
	fmt.Println("  kiosk mcp                  Start the MCP server (stdio transport)")
	fmt.Println("  kiosk ingest crawl <url>   Crawl a help center into the knowledge base")
	fmt.Println("  kiosk ingest rules <dir>   Seed business rules from YAML documents")
	fmt.Println("  kiosk --version            Show version information")
	fmt.Println("  kiosk --help               Show this help")
	fmt.Println()
	fmt.Println("Chat commands (in interactive mode):")
	fmt.Println("  /help                      Show available commands")
	fmt.Println("  /new                       Start a fresh session")
	fmt.Println("  /clear                     Clear conversation history")
	fmt.Println("  /exit, /quit               Exit kiosk")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY             Required: embedding API key (googleai provider)")
	fmt.Println("  DATABASE_URL               Optional: overrides postgres_* config")
	fmt.Println("  KIOSK_CUSTOMER_ID          Optional: customer identity for chat mode")
}
