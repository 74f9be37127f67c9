// threadctl - консольный клиент треда: загружает посты через engine.Store и
// выполняет одну операцию.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ButyrinIA/thread/internal/client"
	"github.com/ButyrinIA/thread/internal/config"
	"github.com/ButyrinIA/thread/internal/edit"
	"github.com/ButyrinIA/thread/internal/engine"
	"github.com/ButyrinIA/thread/internal/models"
	"github.com/ButyrinIA/thread/internal/reaction"
	"github.com/ButyrinIA/thread/internal/retweet"
)

const usage = `usage: threadctl [flags] <command> [args]

commands:
  list                       показать лес постов
  post <text>                новый пост
  reply <post-id> <text>     ответ
  edit <post-id> <field> <text>
  delete <post-id>
  react <post-id> <emoji>
  repost <post-id>
  quote <post-id> <text>
  undo <post-id>
  thread <post-id>           предки и потомки поста
`

func main() {
	addr := flag.String("addr", "http://localhost:8080", "адрес сервера")
	userID := flag.String("user", "", "id пользователя")
	configPath := flag.String("config", "", "путь к файлу конфигурации")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	logger := config.NewLogger(cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := client.New(*addr, "")
	defer c.Close()

	var viewer *models.User
	if *userID != "" {
		viewer = &models.User{ID: *userID, Username: *userID}
		if _, err := c.Login(ctx, *viewer); err != nil {
			fmt.Fprintln(os.Stderr, models.UserMessage(err))
			os.Exit(1)
		}
	}

	store := engine.New(c, logger, engine.Options{
		Viewer:           viewer,
		ReactionCooldown: cfg.Engine.ReactionCooldown,
		PageSize:         cfg.Engine.PageSize,
	})
	if err := run(ctx, store, os.Stdout, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, models.UserMessage(err))
		os.Exit(1)
	}
}

var errUsage = fmt.Errorf("%w: bad arguments, see threadctl -h", models.ErrValidation)

func run(ctx context.Context, store *engine.Store, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := store.LoadPosts(ctx, models.PostFilter{}); err != nil {
		return err
	}

	cmd, args := args[0], args[1:]
	need := func(n int) error {
		if len(args) < n {
			return errUsage
		}
		return nil
	}

	switch cmd {
	case "list":
		printForest(out, store.Posts(), 0)
		return nil

	case "post":
		if err := need(1); err != nil {
			return err
		}
		post, err := store.AddPost(ctx, nil, []models.Section{models.NewTextSection("", strings.Join(args, " "))})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, post.ID)
		return nil

	case "reply":
		if err := need(2); err != nil {
			return err
		}
		post, err := store.AddPost(ctx, &args[0], []models.Section{models.NewTextSection("", strings.Join(args[1:], " "))})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, post.ID)
		return nil

	case "edit":
		if err := need(3); err != nil {
			return err
		}
		post, ok := store.GetPostByID(args[0])
		if !ok {
			return models.ErrNotFound
		}
		draft := edit.NewDraft(post)
		if err := draft.SetText(args[1], strings.Join(args[2:], " ")); err != nil {
			return err
		}
		_, err := store.EditPost(ctx, draft)
		return err

	case "delete":
		if err := need(1); err != nil {
			return err
		}
		return store.RemovePost(ctx, args[0])

	case "react":
		if err := need(2); err != nil {
			return err
		}
		if err := store.ReactToPost(ctx, args[0], args[1]); err != nil {
			return err
		}
		if summary, ok := store.ReactionSummary(args[0]); ok {
			printSummary(out, summary)
		}
		return nil

	case "repost", "quote", "undo":
		if err := need(1); err != nil {
			return err
		}
		res, err := store.RetweetPost(ctx, args[0], retweet.Action(cmd), strings.Join(args[1:], " "), "")
		if err != nil {
			return err
		}
		if res.Post != nil {
			fmt.Fprintln(out, res.Post.ID)
		}
		return nil

	case "thread":
		if err := need(1); err != nil {
			return err
		}
		ancestors := store.GetAncestors(args[0])
		if len(ancestors) == 0 {
			return models.ErrNotFound
		}
		for i := len(ancestors) - 1; i >= 0; i-- {
			fmt.Fprintf(out, "^ %s\n", line(ancestors[i]))
		}
		for _, p := range store.GetDescendants(args[0]) {
			fmt.Fprintf(out, "v %s\n", line(p))
		}
		return nil

	default:
		return errors.Join(errUsage, fmt.Errorf("unknown command %q", cmd))
	}
}

func printForest(out io.Writer, posts []*models.Post, depth int) {
	for _, p := range posts {
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth), line(p))
		printForest(out, p.Replies, depth+1)
	}
}

func line(p *models.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] @%s", p.ID, p.User.ID)
	if p.RetweetOf != nil {
		fmt.Fprintf(&b, " rt:%s", p.RetweetOf.ID)
	}
	for _, f := range edit.Dedupe(p.Sections) {
		if f.Text != "" {
			fmt.Fprintf(&b, " %q", f.Text)
		} else {
			fmt.Fprintf(&b, " <%s>", f.Type)
		}
	}
	if summary := reaction.Summarize(p); summary.Total > 0 {
		fmt.Fprintf(&b, " %d reactions", summary.Total)
	}
	return b.String()
}

func printSummary(out io.Writer, s reaction.Summary) {
	for _, pill := range s.Pills {
		mark := ""
		if pill.Selected {
			mark = "*"
		}
		fmt.Fprintf(out, "%s%s %d  ", mark, pill.Emoji, pill.Count)
	}
	if s.Overflow > 0 {
		fmt.Fprintf(out, "+%d", s.Overflow)
	}
	fmt.Fprintln(out)
}
