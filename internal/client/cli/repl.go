package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Vehicles(ctx context.Context) error
	AddVehicle(ctx context.Context) error
	DeleteVehicle(ctx context.Context, args []string) error
	Logs(ctx context.Context, args []string) error
	AddLog(ctx context.Context, args []string) error
	Documents(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the carnet CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and the rest as arguments, and dispatches to methods on 'a'.
// Unknown commands are reported back to the user. The loop exits on scanner
// EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help            - show available commands
//	  - login           - authenticate with an access token
//	  - (v)ehicles      - list vehicles
//	  - addvehicle      - add a vehicle
//	  - status          - show sync status
//	  - exit | quit     - leave the program
//
//	Logged in additionally:
//	  - delvehicle <id> - delete a vehicle and everything under it
//	  - logs <vehicle> [category] - list maintenance logs, optionally one category
//	  - addlog <vehicle> - add a maintenance log
//	  - docs <vehicle>  - list documents for a vehicle
//	  - sync            - synchronize with the backend
//	  - logout          - sign out and wipe local data
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("carnet> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (v)ehicles, addvehicle, delvehicle, logs, addlog, docs, sync, status, logout, exit")
			} else {
				printlnFn("Available commands: login, (v)ehicles, addvehicle, status, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "v", "vehicles":
			_ = a.Vehicles(ctx)

		case "addvehicle":
			_ = a.AddVehicle(ctx)

		case "delvehicle":
			_ = a.DeleteVehicle(ctx, args)

		case "logs":
			_ = a.Logs(ctx, args)

		case "addlog":
			_ = a.AddLog(ctx, args)

		case "docs":
			_ = a.Documents(ctx, args)

		case "sync":
			_ = a.Sync(ctx)

		case "status":
			_ = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
