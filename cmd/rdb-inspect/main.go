// Command rdb-inspect prints the contents of an RDB snapshot and checks a
// running server against it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	redisrdb "github.com/raniellyferreira/redis-rdb-server"
	"github.com/raniellyferreira/redis-rdb-server/rdb"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "rdb-inspect",
		Usage:   "Inspect Redis RDB snapshot files",
		Version: redisrdb.Version,
		Commands: []*cli.Command{
			{
				Name:      "dump",
				Usage:     "Print every record in file order",
				ArgsUsage: "FILE",
				Action:    dumpAction,
			},
			{
				Name:      "summary",
				Usage:     "Print header, auxiliary fields and per-database key counts",
				ArgsUsage: "FILE",
				Action:    summaryAction,
			},
			{
				Name:      "verify",
				Usage:     "Compare the values served by a running server with the snapshot",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Server address (host:port)",
						Value: "127.0.0.1:6379",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Overall timeout",
						Value: 30 * time.Second,
					},
				},
				Action: verifyAction,
			},
		},
	}
}

func fileArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one FILE argument, got %d", c.NArg())
	}
	return c.Args().First(), nil
}

// printer writes parser callbacks as they arrive
type printer struct {
	w    io.Writer
	keys int
}

func (p *printer) OnAux(field rdb.AuxField) error {
	_, err := fmt.Fprintf(p.w, "aux %s=%s\n", field.Key, field.Value)
	return err
}

func (p *printer) OnDatabase(number uint32) error {
	_, err := fmt.Fprintf(p.w, "db %d\n", number)
	return err
}

func (p *printer) OnResize(hint rdb.ResizeHint) error {
	_, err := fmt.Fprintf(p.w, "  resize keys=%d expires=%d\n", hint.HashTableSize, hint.ExpireHashTableSize)
	return err
}

func (p *printer) OnKey(entry rdb.Entry) error {
	p.keys++
	expiry := ""
	if entry.Expiry != nil {
		expiry = " expires=" + entry.Expiry.UTC().Format(time.RFC3339Nano)
	}
	_, err := fmt.Fprintf(p.w, "  %q => %q%s\n", entry.Key.String(), entry.Value.Data.String(), expiry)
	return err
}

func (p *printer) OnEnd() error {
	_, err := fmt.Fprintf(p.w, "end keys=%d\n", p.keys)
	return err
}

func dumpAction(c *cli.Context) error {
	path, err := fileArg(c)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	parser := rdb.NewParser(f, &printer{w: c.App.Writer})
	if err := parser.Parse(); err != nil {
		return err
	}
	return nil
}

func summaryAction(c *cli.Context) error {
	path, err := fileArg(c)
	if err != nil {
		return err
	}

	snapshot, err := rdb.Load(path, nil)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "version: %d\n", snapshot.Version)
	for _, aux := range snapshot.Aux {
		fmt.Fprintf(w, "aux: %s=%s\n", aux.Key, aux.Value)
	}
	for _, db := range snapshot.Databases {
		expiring := lo.CountBy(db.Entries, func(e rdb.Entry) bool { return e.Expiry != nil })
		fmt.Fprintf(w, "db%d: keys=%d,expires=%d\n", db.Number, len(db.Entries), expiring)
	}
	fmt.Fprintf(w, "total: %d\n", snapshot.Len())
	return nil
}

// mismatch is a key whose served value differs from the snapshot
type mismatch struct {
	key      string
	expected string
	actual   string
}

func verifyAction(c *cli.Context) error {
	path, err := fileArg(c)
	if err != nil {
		return err
	}

	snapshot, err := rdb.Load(path, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     c.String("addr"),
		Protocol: 2,
		PoolSize: 1,
	})
	defer client.Close()

	mismatches, checked, err := verify(ctx, client, snapshot, time.Now())
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Checked %d keys against %s\n", checked, c.String("addr"))
	if len(mismatches) == 0 {
		fmt.Fprintln(w, "All keys match")
		return nil
	}

	fmt.Fprintf(w, "%-30s %-30s %-30s\n", "KEY", "SNAPSHOT", "SERVER")
	for _, m := range mismatches {
		fmt.Fprintf(w, "%-30s %-30s %-30s\n", m.key, m.expected, m.actual)
	}
	return cli.Exit(fmt.Sprintf("%d keys differ", len(mismatches)), 2)
}

// verify GETs every live snapshot key. Keys whose deadline has passed at
// now are skipped.
func verify(ctx context.Context, client *redis.Client, snapshot *rdb.Snapshot, now time.Time) ([]mismatch, int, error) {
	keys := lo.Uniq(snapshot.Keys())
	sort.Strings(keys)

	var mismatches []mismatch
	checked := 0
	for _, key := range keys {
		entry, _ := snapshot.Get(key)
		if entry.Expiry != nil && !now.Before(*entry.Expiry) {
			continue
		}
		checked++

		expected := entry.Value.Data.String()
		actual, err := client.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			mismatches = append(mismatches, mismatch{key: key, expected: expected, actual: "(nil)"})
		case err != nil:
			return nil, checked, fmt.Errorf("GET %s: %w", key, err)
		case actual != expected:
			mismatches = append(mismatches, mismatch{key: key, expected: expected, actual: actual})
		}
	}
	return mismatches, checked, nil
}
