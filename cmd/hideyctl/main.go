package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/h-vien/hidey/internal/control/client"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	fs := flag.NewFlagSet("hideyctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "path to hidey control socket")
	timeout := fs.Duration("timeout", 3*time.Second, "control request timeout")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <command> [args]\n", fs.Name())
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Commands:")
		fmt.Fprintln(fs.Output(), "  status\t\tshow daemon status as JSON")
		fmt.Fprintln(fs.Output(), "  toggle on|off\tenable or disable redaction globally")
		fmt.Fprintln(fs.Output(), "  delete-mode on|off\ttoggle delete mode")
		fmt.Fprintln(fs.Output(), "  reconcile\t\trun a full pass now")
		fmt.Fprintln(fs.Output(), "  reload\t\tre-read the rules file")
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return errors.New("missing subcommand")
	}

	c, err := client.New(*socket)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch args[0] {
	case "status":
		status, err := c.Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(status)
	case "toggle":
		enabled, err := onOff(args[1:])
		if err != nil {
			return err
		}
		status, err := c.Toggle(ctx, enabled)
		if err != nil {
			return err
		}
		return printJSON(status)
	case "delete-mode":
		active, err := onOff(args[1:])
		if err != nil {
			return err
		}
		return c.SetDeleteMode(ctx, active)
	case "reconcile":
		return c.Reconcile(ctx)
	case "reload":
		return c.Reload(ctx)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func onOff(args []string) (bool, error) {
	if len(args) != 1 {
		return false, errors.New("expected on or off")
	}
	switch args[0] {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", args[0])
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
