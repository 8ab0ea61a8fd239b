// Command chat is a terminal client for the relay. It keeps one conversation,
// streams replies with the reasoning segment dimmed, and stores transcripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"portfolio-ai/backend/internal/app"
	"portfolio-ai/backend/internal/config"
	"portfolio-ai/backend/internal/database"
	"portfolio-ai/backend/internal/model"
	"portfolio-ai/backend/internal/repository"
	"portfolio-ai/backend/internal/session"
)

const helpText = `Commands:
  /model           toggle between the chat and reasoning profiles
  /clear           start a new conversation
  /cancel          cancel the reply in progress (or press Ctrl-C while it streams)
  /history         list stored conversations
  /resume <id>     continue a stored conversation
  /delete <id>     delete a stored conversation
  /quit            exit`

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("chat", pflag.ContinueOnError)
	flags.String("relay-url", "", "relay completion endpoint (RELAY_URL)")
	flags.String("store", "", "transcript store: sqlite, redis or none (STORE_BACKEND)")
	flags.String("db", "", "sqlite database path (DATABASE_PATH)")
	flags.String("redis-addr", "", "redis address (REDIS_ADDR)")
	flags.String("log-level", "", "log level (LOG_LEVEL)")
	profileFlag := flags.String("profile", string(model.ProfileChat), "initial profile: chat or reasoner")
	resumeFlag := flags.String("resume", "", "transcript id to continue")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	for key, name := range map[string]string{
		"RELAY_URL":     "relay-url",
		"STORE_BACKEND": "store",
		"DATABASE_PATH": "db",
		"REDIS_ADDR":    "redis-addr",
		"LOG_LEVEL":     "log-level",
	} {
		if f := flags.Lookup(name); f.Changed {
			_ = viper.BindPFlag(key, f)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("failed to load configuration: "+err.Error()))
		return 1
	}
	// Logs go to stderr so they do not interleave with the conversation.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: app.ParseLevel(cfg.LogLevel)})))

	profile, err := model.LookupProfile(model.ProfileKind(*profileFlag))
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return 2
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("failed to open transcript store: "+err.Error()))
		return 1
	}
	defer closeStore()

	opts := []session.Option{}
	if store != nil {
		opts = append(opts, session.WithStore(store))
	}
	s := session.New(session.NewHTTPClient(cfg.RelayURL, nil), profile, opts...)

	if *resumeFlag != "" {
		if err := s.Resume(context.Background(), *resumeFlag); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
			return 1
		}
	}

	c := newChatCLI(s, store, os.Stdout)
	defer c.close()
	return c.loop()
}

// openStore returns the configured transcript store and its closer. A nil
// store means transcripts are not kept.
func openStore(cfg *config.Config) (repository.TranscriptStore, func(), error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "", "none":
		return nil, func() {}, nil
	case "sqlite":
		db, err := database.InitDB(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLiteRepository(db), func() {
			if err := db.Close(); err != nil {
				slog.Error("Failed to close database connection", "error", err)
			}
		}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("could not reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return repository.NewRedisRepository(rdb), func() { rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

type chatCLI struct {
	session     *session.Session
	store       repository.TranscriptStore
	line        *liner.State
	out         io.Writer
	historyFile string
}

func newChatCLI(s *session.Session, store repository.TranscriptStore, out io.Writer) *chatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &chatCLI{
		session:     s,
		store:       store,
		line:        line,
		out:         out,
		historyFile: filepath.Join(os.TempDir(), "portfolio-chat-history"),
	}
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return c
}

func (c *chatCLI) close() {
	if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		_, _ = c.line.WriteHistory(f)
		f.Close()
	}
	c.line.Close()
}

func (c *chatCLI) loop() int {
	fmt.Fprintln(c.out, infoStyle.Render(fmt.Sprintf("profile: %s, /help for commands", c.session.Snapshot().Profile.DisplayName)))

	for {
		input, err := c.line.Prompt(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl-C at the prompt or EOF.
			fmt.Fprintln(c.out)
			return 0
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		c.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if !c.command(input) {
				return 0
			}
			continue
		}

		if err := c.session.Send(context.Background(), input); err != nil {
			fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
			continue
		}
		c.follow()
	}
}

// follow renders the running exchange until it settles. Ctrl-C cancels it;
// the terminal is out of raw mode here, so the signal reaches us.
func (c *chatCLI) follow() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	r := newRenderer(c.out)
	if r.update(c.session.Snapshot()) {
		return
	}
	for {
		select {
		case <-sigCh:
			c.session.Cancel()
		case <-c.session.Changed():
		}
		if r.update(c.session.Snapshot()) {
			return
		}
	}
}

// command runs a slash command. It returns false when the CLI should exit.
func (c *chatCLI) command(input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch name {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Fprintln(c.out, helpText)
	case "/model":
		next := c.session.Toggle()
		fmt.Fprintln(c.out, infoStyle.Render("switched to "+next.DisplayName+", conversation cleared"))
	case "/clear":
		c.session.Clear()
		fmt.Fprintln(c.out, infoStyle.Render("conversation cleared"))
	case "/cancel":
		if !c.session.Cancel() {
			fmt.Fprintln(c.out, infoStyle.Render("nothing to cancel"))
		}
	case "/history":
		c.history(ctx)
	case "/resume":
		if c.requireStore() && c.requireArg(name, arg) {
			if err := c.session.Resume(ctx, arg); err != nil {
				fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
				break
			}
			c.replay()
		}
	case "/delete":
		if c.requireStore() && c.requireArg(name, arg) {
			if err := c.store.DeleteTranscript(ctx, arg); err != nil {
				fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
				break
			}
			fmt.Fprintln(c.out, infoStyle.Render("deleted "+arg))
		}
	default:
		fmt.Fprintln(c.out, warningStyle.Render("unknown command "+name+", /help for commands"))
	}
	return true
}

func (c *chatCLI) history(ctx context.Context) {
	if !c.requireStore() {
		return
	}
	summaries, err := c.store.ListTranscripts(ctx)
	if err != nil {
		fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
		return
	}
	if len(summaries) == 0 {
		fmt.Fprintln(c.out, infoStyle.Render("no stored conversations"))
		return
	}
	for _, s := range summaries {
		fmt.Fprintf(c.out, "%s  %-8s  %3d messages  %s\n",
			s.ID, s.Profile, s.MessageCount, s.UpdatedAt.Local().Format(time.DateTime))
	}
}

// replay prints a resumed conversation.
func (c *chatCLI) replay() {
	snap := c.session.Snapshot()
	fmt.Fprintln(c.out, infoStyle.Render("resumed "+snap.ID+" ("+snap.Profile.DisplayName+")"))
	for _, msg := range snap.Messages {
		switch msg.Role {
		case model.RoleUser:
			fmt.Fprintln(c.out, promptStyle.Render("you> ")+msg.Content)
		case model.RoleAssistant:
			fmt.Fprintln(c.out, msg.Content)
		}
	}
}

func (c *chatCLI) requireStore() bool {
	if c.store == nil {
		fmt.Fprintln(c.out, warningStyle.Render("no transcript store configured (STORE_BACKEND=none)"))
		return false
	}
	return true
}

func (c *chatCLI) requireArg(name, arg string) bool {
	if arg == "" {
		fmt.Fprintln(c.out, warningStyle.Render("usage: "+name+" <id>"))
		return false
	}
	return true
}
