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
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Sync(ctx context.Context) error
	Users(ctx context.Context) error
	Groups(ctx context.Context) error
	AddGroup(ctx context.Context, args []string) error
	AddMember(ctx context.Context, args []string) error
	Pay(ctx context.Context, args []string) error
	Archive(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
	Reauth(ctx context.Context, args []string) error
}

const (
	helpLoggedOut = "Available commands: register, login, exit"
	helpLoggedIn  = "Available commands: status, sync, users, (l)ist, addgroup <name> <currency>, " +
		"addmember <group> <user>, pay <group> <amount> [description], archive <group>, " +
		"restore <group>, reauth <bank account>, logout, exit"
)

// runREPL reads commands from scanner until EOF, "exit" or "quit".
//
// The first token selects the command; the rest are passed to commands that
// take arguments. Ids in arguments are local ids as printed by "list" and
// "users". Commands other than help, register and login require a session.
// A failing command prints its error and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("split (%s)> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
			continue

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if cmd == "register" || cmd == "login" {
			report(err)
			continue
		}

		if !a.isLoggedIn() {
			if isKnown(cmd) {
				printlnFn("Please login first")
			} else {
				printlnFn("Unknown command:", cmd)
			}
			continue
		}

		switch cmd {
		case "logout":
			err = a.Logout(ctx)
		case "status":
			err = a.Status(ctx)
		case "sync":
			err = a.Sync(ctx)
		case "users":
			err = a.Users(ctx)
		case "l", "list":
			err = a.Groups(ctx)
		case "addgroup":
			err = a.AddGroup(ctx, args)
		case "addmember":
			err = a.AddMember(ctx, args)
		case "pay":
			err = a.Pay(ctx, args)
		case "archive":
			err = a.Archive(ctx, args)
		case "restore":
			err = a.Restore(ctx, args)
		case "reauth":
			err = a.Reauth(ctx, args)
		default:
			printlnFn("Unknown command:", cmd)
		}
		report(err)
	}
}

var sessionCommands = map[string]bool{
	"logout": true, "status": true, "sync": true, "users": true, "l": true, "list": true,
	"addgroup": true, "addmember": true, "pay": true, "archive": true, "restore": true, "reauth": true,
}

func isKnown(cmd string) bool { return sessionCommands[cmd] }

func report(err error) {
	if err != nil {
		printlnFn("Error:", err)
	}
}
