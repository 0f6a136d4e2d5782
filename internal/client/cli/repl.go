package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Put(ctx context.Context, table, id, payload string) error
	Get(ctx context.Context, table, id string) error
	List(ctx context.Context, table string, pendingOnly bool) error
	Delete(ctx context.Context, table, id string) error
	Sync(ctx context.Context, force bool) error
	Resync(ctx context.Context) error
	Status(ctx context.Context) error
	Queue(ctx context.Context) error
	Export(ctx context.Context, name string) error
	Import(ctx context.Context, name string) error
}

const replHelp = `Available commands:
  put <table> [json]            create a record
  edit <table> <id> [json]      replace a record's payload
  get <table> <id>              show a record
  (l)ist <table> [pending]      list records
  delete <table> <id>           delete a record
  export <name> | import <name> back up or restore local data
  status | queue                sync state and retry queue
  sync [force] | resync         push and pull changes`

// runREPL starts a simple read–eval–print loop for the offsync CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Unknown commands and wrong argument counts are
// reported back to the user. The loop exits on EOF, when ctx ends, or when
// the user types "exit" or "quit".
//
// Commands that prompt for more input read from the same reader, so the loop
// never buffers past the current line.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("offsync %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		if err := dispatch(ctx, a, parts[0], parts[1:]); err != nil {
			if errors.Is(err, errQuit) {
				printlnFn("Bye!")
				return
			}
			printlnFn("Error:", err)
		}
	}
}

var errQuit = errors.New("quit")

type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

// rest joins the arguments from i on, so JSON payloads may contain spaces.
func rest(args []string, i int) string {
	if len(args) <= i {
		return ""
	}
	return strings.Join(args[i:], " ")
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn(replHelp + "\n  logout, exit")
		} else {
			printlnFn(replHelp + "\n  register, login, exit")
		}
		return nil

	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	case "logout":
		return a.Logout(ctx)

	case "put":
		if len(args) < 1 {
			return usageError("put <table> [json]")
		}
		return a.Put(ctx, args[0], "", rest(args, 1))
	case "edit":
		if len(args) < 2 {
			return usageError("edit <table> <id> [json]")
		}
		return a.Put(ctx, args[0], args[1], rest(args, 2))
	case "get":
		if len(args) != 2 {
			return usageError("get <table> <id>")
		}
		return a.Get(ctx, args[0], args[1])
	case "l", "list":
		if len(args) < 1 {
			return usageError("list <table> [pending]")
		}
		return a.List(ctx, args[0], len(args) > 1 && args[1] == "pending")
	case "delete":
		if len(args) != 2 {
			return usageError("delete <table> <id>")
		}
		return a.Delete(ctx, args[0], args[1])

	case "sync":
		return a.Sync(ctx, len(args) > 0 && args[0] == "force")
	case "resync":
		return a.Resync(ctx)
	case "status":
		return a.Status(ctx)
	case "queue":
		return a.Queue(ctx)

	case "export":
		if len(args) != 1 {
			return usageError("export <name>")
		}
		return a.Export(ctx, args[0])
	case "import":
		if len(args) != 1 {
			return usageError("import <name>")
		}
		return a.Import(ctx, args[0])

	case "exit", "quit":
		return errQuit
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}
