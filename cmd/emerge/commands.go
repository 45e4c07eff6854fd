package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/radiantone/emerge/client"
	"github.com/radiantone/emerge/config"
	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/namespace"
	"github.com/radiantone/emerge/node"
)

const dialTimeout = 10 * time.Second

// dial connects to the node named by emerge.ini. The caller owns the
// returned client and must Close it.
func dial(c *cli.Context) (*client.Client, context.Context, context.CancelFunc, error) {
	cfg, err := config.LoadClientINI(c.GlobalString("ini"))
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	cl, err := client.Dial(ctx, cfg.URL())
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("connect to %s: %w", cfg.URL(), err)
	}
	return cl, ctx, cancel, nil
}

func initCommand(c *cli.Context) error {
	cfg := config.ClientConfig{
		Host: c.String("host"),
		Port: c.Int("port"),
	}
	path := c.GlobalString("ini")
	if err := config.WriteClientINI(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s pointing at %s\n", path, cfg.URL())
	return nil
}

func nodeStartCommand(c *cli.Context) error {
	cfg := config.DefaultNodeConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadNodeConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	n, err := node.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return n.Run(ctx)
}

func lsCommand(c *cli.Context) error {
	directory := c.Args().Get(0)
	if directory == "" {
		directory = "/"
	}

	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	entries, err := cl.List(ctx, directory, 0, 0)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !c.Bool("long") {
			fmt.Println(entry.Name)
			continue
		}
		fmt.Println(longRow(ctx, cl, entry))
	}
	return nil
}

// longRow renders one ls -l line. Directory entries carry no record, so
// their permission column is fixed.
func longRow(ctx context.Context, cl *client.Client, entry namespace.Entry) string {
	perms := "drwxrwxrwx"
	size := fmt.Sprintf("%d", entry.Size)
	if entry.Kind == namespace.KindObject {
		if rec, _, err := cl.Get(ctx, entry.Path, 0, 0); err == nil && rec != nil {
			perms = rec.Perms
		}
		size = humanSize(entry.Size)
	}
	return fmt.Sprintf("%s %-8s %s %s",
		perms, size, entry.Modified.Format(time.RFC3339), entry.Name)
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%dB", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func mkdirCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: emerge mkdir DIRECTORY", 1)
	}
	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	return cl.Mkdir(ctx, c.Args().First())
}

func rmCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: emerge rm PATH", 1)
	}
	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	return cl.Remove(ctx, c.Args().First())
}

func cpCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: emerge cp SOURCE DEST", 1)
	}
	src, dst := c.Args().Get(0), c.Args().Get(1)

	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	return cl.Copy(ctx, src, dst)
}

func catCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: emerge cat PATH", 1)
	}
	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	_, payload, err := cl.GetPayload(ctx, c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(payload)
}

func codeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: emerge code PATH", 1)
	}
	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	t, _, err := cl.GetPayload(ctx, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Printf("%s@%s\n", t.Name, t.Version)
	if len(t.Schema) == 0 {
		return nil
	}
	return printJSON(t.Schema)
}

func methodsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: emerge methods PATH", 1)
	}
	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	methods, err := cl.Describe(ctx, c.Args().First())
	if err != nil {
		return err
	}
	for _, m := range methods {
		fmt.Printf("%s()\n", m.Name)
	}
	return nil
}

func callCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: emerge call PATH METHOD", 1)
	}
	target, method := c.Args().Get(0), c.Args().Get(1)

	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	var result json.RawMessage
	if c.Bool("local") {
		result, err = cl.ExecuteMode(ctx, target, method, "transient")
	} else {
		result, err = cl.Execute(ctx, target, method)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

func queryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: emerge query PATH", 1)
	}
	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	result, err := cl.Query(ctx, c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(result)
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: emerge search FIELD VALUE", 1)
	}
	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	ids, err := cl.SearchText(ctx, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func helloCommand(c *cli.Context) error {
	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	resp, err := cl.Hello(ctx, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Printf("%s (node %s)\n", resp.Message, resp.Node)
	for _, t := range resp.Types {
		fmt.Println("  " + t)
	}
	return nil
}

func graphqlCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: emerge graphql QUERY", 1)
	}
	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	resp, err := cl.GraphQL(ctx, c.Args().First(), nil)
	if err != nil {
		return err
	}
	for _, msg := range resp.Errors {
		_, _ = fmt.Fprintln(os.Stderr, msg)
	}
	if len(resp.Data) > 0 {
		return printJSON(resp.Data)
	}
	return nil
}

func registerCommand(c *cli.Context) error {
	if c.NArg() != 3 {
		return cli.NewExitError("usage: emerge register NAME VERSION SCHEMA_FILE", 1)
	}
	schema, err := os.ReadFile(c.Args().Get(2))
	if err != nil {
		return err
	}
	if !json.Valid(schema) {
		return cli.NewExitError("schema file is not valid JSON", 1)
	}

	cl, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer cl.Close()

	path, err := cl.Register(ctx, envelope.Type{
		Name:    c.Args().Get(0),
		Version: c.Args().Get(1),
		Schema:  schema,
	})
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func printJSON(raw json.RawMessage) error {
	var buf []byte
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		buf, _ = json.MarshalIndent(v, "", "  ")
	} else {
		buf = raw
	}
	fmt.Println(string(buf))
	return nil
}
