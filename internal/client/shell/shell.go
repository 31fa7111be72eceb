// Package shell is the interactive command line front end of the client.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Akash-kotagiri/book-haven/internal/client/catalog"
	"github.com/Akash-kotagiri/book-haven/internal/client/session"
	"github.com/Akash-kotagiri/book-haven/internal/validation"
)

// Prompt is printed before every command.
const Prompt = "bookhaven> "

const helpText = `Available commands:
  register                 create an account
  login                    sign in
  logout                   sign out
  me                       show your profile
  profile                  edit your profile
  books                    list your books
  add                      add a book
  edit <id>                edit one of your books
  delete <id>              delete one of your books
  search [query]           search the public catalog
  more                     show more search results
  show <volume-id>         show a catalog volume
  fav <volume-id>          add or remove a favorite
  favorites                list your favorites
  help                     show this help
  exit                     quit`

// Shell reads commands line by line and runs them against the injected
// session, library and catalog.
type Shell struct {
	Session *session.Session
	Library *session.Library
	Catalog *catalog.Catalog
	// OpenFile opens files picked for upload. Defaults to os.Open.
	OpenFile func(name string) (io.ReadCloser, error)

	out      io.Writer
	scanner  *bufio.Scanner
	validate *validation.Validator

	results []catalog.Volume
	shown   int
}

// New creates a shell reading from in and writing to out.
func New(in io.Reader, out io.Writer, s *session.Session, lib *session.Library, cat *catalog.Catalog) *Shell {
	return &Shell{
		Session:  s,
		Library:  lib,
		Catalog:  cat,
		OpenFile: func(name string) (io.ReadCloser, error) { return os.Open(name) },
		out:      out,
		scanner:  bufio.NewScanner(in),
		validate: validation.New(),
	}
}

// Run executes commands until exit, end of input or ctx cancellation.
func (sh *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(sh.out, Prompt)
		if !sh.scanner.Scan() {
			fmt.Fprintln(sh.out)
			return sh.scanner.Err()
		}
		if !sh.Exec(ctx, sh.scanner.Text()) {
			return nil
		}
	}
}

// Exec runs a single command line. It returns false when the shell should
// stop.
func (sh *Shell) Exec(ctx context.Context, line string) bool {
	args := strings.Fields(strings.TrimSpace(line))
	if len(args) == 0 {
		return true
	}

	switch args[0] {
	case "help":
		sh.println(helpText)
	case "register":
		sh.register(ctx)
	case "login":
		sh.login(ctx)
	case "logout":
		sh.logout(ctx)
	case "me":
		sh.me()
	case "profile":
		sh.profile(ctx)
	case "books":
		sh.books()
	case "add":
		sh.add(ctx)
	case "edit":
		if len(args) < 2 {
			sh.println("Usage: edit <id>")
			break
		}
		sh.edit(ctx, args[1])
	case "delete":
		if len(args) < 2 {
			sh.println("Usage: delete <id>")
			break
		}
		sh.delete(ctx, args[1])
	case "search":
		sh.search(ctx, strings.Join(args[1:], " "))
	case "more":
		sh.more()
	case "show":
		if len(args) < 2 {
			sh.println("Usage: show <volume-id>")
			break
		}
		sh.show(ctx, args[1])
	case "fav":
		if len(args) < 2 {
			sh.println("Usage: fav <volume-id>")
			break
		}
		sh.fav(ctx, args[1])
	case "favorites":
		sh.favorites(ctx)
	case "exit", "quit":
		sh.println("Bye")
		return false
	default:
		sh.println("Unknown command. Type 'help' for a list of commands.")
	}
	return true
}

func (sh *Shell) println(a ...any) {
	fmt.Fprintln(sh.out, a...)
}

func (sh *Shell) printf(format string, a ...any) {
	fmt.Fprintf(sh.out, format, a...)
}

// ask prints label and reads one line. ok is false at end of input.
func (sh *Shell) ask(label string) (string, bool) {
	fmt.Fprintf(sh.out, "%s: ", label)
	if !sh.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(sh.scanner.Text()), true
}

// askChange reads an optional replacement for current. Empty input keeps the
// value (nil), "-" clears it.
func (sh *Shell) askChange(label, current string) (*string, bool) {
	v, ok := sh.ask(fmt.Sprintf("%s [%s] (enter keeps, - clears)", label, current))
	if !ok {
		return nil, false
	}
	switch v {
	case "":
		return nil, true
	case "-":
		empty := ""
		return &empty, true
	default:
		return &v, true
	}
}

func (sh *Shell) requireUser() bool {
	if sh.Session.User() == nil {
		sh.println("Please log in first.")
		return false
	}
	return true
}
