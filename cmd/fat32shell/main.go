// Command fat32shell is the interactive shell collaborator described in
// spec §6: it tokenizes one line at a time, dispatches to the session
// layer, and prints the fixed short strings the spec requires. Argument
// parsing for the single positional disk-path argument is done with
// urfave/cli/v2, the same framework the teacher's own cmd/main.go uses.
package main

import (
	"bufio"
	"fmt"
	stderrors "errors"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	ourerrors "fat32disk/errors"
	"fat32disk/session"
)

func main() {
	app := &cli.App{
		Name:      "fat32shell",
		Usage:     "Interactive shell over a FAT32 disk image",
		ArgsUsage: "DISK_PATH",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable diagnostic output for free-cluster scans and name comparisons",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	diskPath := c.Args().First()
	if diskPath == "" {
		return stderrors.New("usage: fat32shell [--debug] DISK_PATH")
	}

	sess, err := session.Open(diskPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", diskPath, err)
	}
	defer sess.Close()

	if c.Bool("debug") {
		sess.Diagnostics.Enable()
	}

	repl(sess, os.Stdin, os.Stdout)
	return nil
}

// repl is the command loop: prompt, read one line, split it into fields on
// whitespace, dispatch the command with its arguments, repeat. Commands use
// at most their first argument. Empty lines are no-ops.
func repl(sess *session.Session, in *os.File, out *os.File) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprintf(out, "%s>", sess.CurrentPath())

		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		if cmd == "exit" || cmd == "quit" {
			fmt.Fprintln(out, "Goodbye!")
			return
		}

		dispatch(sess, out, cmd, args)
	}
}

func dispatch(sess *session.Session, out *os.File, cmd string, args []string) {
	switch cmd {
	case "format":
		if err := sess.Format(); err != nil {
			fmt.Fprintln(out, "Format failed")
			return
		}
		fmt.Fprintln(out, "Ok")

	case "ls":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		lines, err := sess.Ls(path)
		if err != nil {
			if stderrors.Is(err, ourerrors.ErrInvalidImage) {
				fmt.Fprintln(out, "Unknown disk format")
				return
			}
			fmt.Fprintln(out, "ls failed")
			return
		}
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}

	case "mkdir":
		if len(args) < 1 {
			fmt.Fprintln(out, "usage: mkdir <name>")
			return
		}
		if err := sess.Mkdir(args[0]); err != nil {
			fmt.Fprintln(out, "mkdir failed")
			return
		}
		fmt.Fprintln(out, "Ok")

	case "touch":
		if len(args) < 1 {
			fmt.Fprintln(out, "usage: touch <name>")
			return
		}
		if err := sess.Touch(args[0]); err != nil {
			fmt.Fprintln(out, "touch failed")
			return
		}
		fmt.Fprintln(out, "Ok")

	case "cd":
		if len(args) < 1 {
			fmt.Fprintln(out, "usage: cd <path>")
			return
		}
		if err := sess.Cd(args[0]); err != nil {
			fmt.Fprintln(out, "cd failed")
			return
		}

	case "info":
		info, err := sess.Stat()
		if err != nil {
			fmt.Fprintln(out, "Unknown disk format")
			return
		}
		fmt.Fprintf(out, "clusters: %d total, %d free\npath: %s\n",
			info.TotalClusters, info.FreeClusters, info.CurrentPath)

	default:
		fmt.Fprintf(out, "Unknown command: %s\n", cmd)
	}
}
