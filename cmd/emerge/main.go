// Package main implements the emerge command line. It serves a node
// (emerge node start) and talks to a running node for everything else,
// reading the broker address from emerge.ini in the working directory.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/urfave/cli"
)

const (
	Version = "0.1.0"
	appName = "emerge"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	app := cli.NewApp()
	app.Name = appName
	app.Usage = "remote, path-addressed object store"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
		cli.StringFlag{
			Name:  "ini",
			Usage: "Path to the client configuration file",
			Value: "emerge.ini",
		},
	}
	app.Before = func(c *cli.Context) error {
		level := "info"
		if c.GlobalBool("debug") {
			level = "debug"
		}
		slog.SetDefault(setupLogger(level))
		return nil
	}
	app.Commands = []cli.Command{
		cli.Command{
			Name:  "init",
			Usage: "Write emerge.ini pointing the CLI at a node",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "host, H",
					Usage: "Broker hostname",
					Value: "localhost",
				},
				cli.IntFlag{
					Name:  "port, p",
					Usage: "Broker port",
					Value: 4222,
				},
			},
			Action: initCommand,
		},
		cli.Command{
			Name:  "node",
			Usage: "Node commands",
			Subcommands: []cli.Command{
				cli.Command{
					Name:  "start",
					Usage: "Start a node and serve until interrupted",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:  "config, c",
							Usage: "Path to the node configuration file",
						},
					},
					Action: nodeStartCommand,
				},
			},
		},
		cli.Command{
			Name:      "ls",
			Usage:     "List a directory",
			ArgsUsage: "[DIRECTORY]",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "long, l",
					Usage: "Show permissions, sizes and timestamps",
				},
			},
			Action: lsCommand,
		},
		cli.Command{
			Name:      "mkdir",
			Usage:     "Create a directory",
			ArgsUsage: "DIRECTORY",
			Action:    mkdirCommand,
		},
		cli.Command{
			Name:      "rm",
			Usage:     "Remove an object or directory",
			ArgsUsage: "PATH",
			Action:    rmCommand,
		},
		cli.Command{
			Name:      "cp",
			Usage:     "Copy an object to another path",
			ArgsUsage: "SOURCE DEST",
			Action:    cpCommand,
		},
		cli.Command{
			Name:      "cat",
			Usage:     "Print an object's payload",
			ArgsUsage: "PATH",
			Action:    catCommand,
		},
		cli.Command{
			Name:      "code",
			Usage:     "Print an object's type schema",
			ArgsUsage: "PATH",
			Action:    codeCommand,
		},
		cli.Command{
			Name:      "methods",
			Usage:     "List the callable methods of an object",
			ArgsUsage: "PATH",
			Action:    methodsCommand,
		},
		cli.Command{
			Name:      "call",
			Usage:     "Call an object method",
			ArgsUsage: "PATH METHOD",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "local, l",
					Usage: "Run against a transient copy, discarding state changes",
				},
			},
			Action: callCommand,
		},
		cli.Command{
			Name:      "query",
			Usage:     "Invoke the query method of an object",
			ArgsUsage: "PATH",
			Action:    queryCommand,
		},
		cli.Command{
			Name:      "search",
			Usage:     "Find objects whose field equals a value",
			ArgsUsage: "FIELD VALUE",
			Action:    searchCommand,
		},
		cli.Command{
			Name:      "hello",
			Usage:     "Greet the node and list its types",
			ArgsUsage: "[MESSAGE]",
			Action:    helloCommand,
		},
		cli.Command{
			Name:      "graphql",
			Usage:     "Run a GraphQL query against the node",
			ArgsUsage: "QUERY",
			Action:    graphqlCommand,
		},
		cli.Command{
			Name:      "register",
			Usage:     "Publish a type descriptor from a schema file",
			ArgsUsage: "NAME VERSION SCHEMA_FILE",
			Action:    registerCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug",
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
