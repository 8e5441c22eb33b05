// Command favoritesctl manages a user's favorite books from the terminal.
//
//	favoritesctl login --username alice --password hunter22
//	export FAVORITES_TOKEN=<token>
//	favoritesctl list
//	favoritesctl add --comment "re-read every winter" B1
//	favoritesctl comment B1 "now with notes"
//	favoritesctl remove B1
//
// hash-password prints a bcrypt hash to paste into users.json.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/book-favorites/internal/auth"
	"github.com/sakif/book-favorites/internal/client"
	"github.com/sakif/book-favorites/internal/model"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "favoritesctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "favoritesctl",
		Usage: "manage favorite books",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "favorites server base URL",
				Value:   "http://localhost:8080",
				EnvVars: []string{"FAVORITES_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token from 'favoritesctl login'",
				EnvVars: []string{"FAVORITES_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "exchange a username and password for a token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "read from stdin when omitted"},
				},
				Action: runLogin,
			},
			{
				Name:   "list",
				Usage:  "list favorites",
				Action: runList,
			},
			{
				Name:      "add",
				Usage:     "add a book to favorites",
				ArgsUsage: "<bookId>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "comment", Aliases: []string{"c"}},
				},
				Action: runAdd,
			},
			{
				Name:      "remove",
				Usage:     "remove a book from favorites",
				ArgsUsage: "<bookId>",
				Action:    runRemove,
			},
			{
				Name:      "comment",
				Usage:     "replace the comment on a favorite (\"\" clears it)",
				ArgsUsage: "<bookId> <comment>",
				Action:    runComment,
			},
			{
				Name:      "hash-password",
				Usage:     "print a bcrypt hash for users.json",
				ArgsUsage: "[password]",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "cost", Value: bcrypt.DefaultCost},
				},
				Action: runHashPassword,
			},
		},
	}
}

// newStore builds a Store whose client carries the --token credential.
func newStore(c *cli.Context) (*client.Store, error) {
	token := c.String("token")
	if token == "" {
		return nil, errors.New("no token: run 'favoritesctl login' and set FAVORITES_TOKEN or --token")
	}
	return client.NewStore(client.New(c.String("url"), client.WithToken(token))), nil
}

func runLogin(c *cli.Context) error {
	password := c.String("password")
	if password == "" {
		p, err := readLine(c.App.Reader)
		if err != nil {
			return err
		}
		password = p
	}

	token, err := client.New(c.String("url")).Login(c.Context, c.String("username"), password)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func runList(c *cli.Context) error {
	store, err := newStore(c)
	if err != nil {
		return err
	}
	if err := store.FetchFavorites(c.Context); err != nil {
		return err
	}
	printFavorites(c.App.Writer, store.State().Items)
	return nil
}

func runAdd(c *cli.Context) error {
	bookID, err := requireArgs(c, 1)
	if err != nil {
		return err
	}
	return write(c, func(ctx context.Context, store *client.Store) error {
		return store.AddFavorite(ctx, model.Book{ID: bookID[0]}, c.String("comment"))
	}, "Book added to favorites")
}

func runRemove(c *cli.Context) error {
	bookID, err := requireArgs(c, 1)
	if err != nil {
		return err
	}
	return write(c, func(ctx context.Context, store *client.Store) error {
		return store.RemoveFavorite(ctx, bookID[0])
	}, "Book removed from favorites")
}

func runComment(c *cli.Context) error {
	args, err := requireArgs(c, 2)
	if err != nil {
		return err
	}
	return write(c, func(ctx context.Context, store *client.Store) error {
		return store.UpdateComment(ctx, args[0], args[1])
	}, "Comment updated")
}

func runHashPassword(c *cli.Context) error {
	password := c.Args().First()
	if password == "" {
		p, err := readLine(c.App.Reader)
		if err != nil {
			return err
		}
		password = p
	}

	hash, err := auth.NewPasswordServiceWithCost(c.Int("cost")).Hash(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}

// write runs one mutating Store call and prints msg on success.
func write(c *cli.Context, fn func(context.Context, *client.Store) error, msg string) error {
	store, err := newStore(c)
	if err != nil {
		return err
	}
	if err := fn(c.Context, store); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, msg)
	return nil
}

func requireArgs(c *cli.Context, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("%s: want %d argument(s), got %d (usage: %s %s)",
			c.Command.Name, n, c.NArg(), c.Command.Name, c.Command.ArgsUsage)
	}
	return c.Args().Slice(), nil
}

func printFavorites(w io.Writer, items []model.FavoriteView) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no favorites yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCOMMENT")
	for _, v := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Title, v.Author, v.Comment)
	}
	tw.Flush()
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}
