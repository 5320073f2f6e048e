package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"artizen/internal/cli/chat"
	"artizen/internal/cli/client"
	"artizen/internal/cli/config"
	"artizen/internal/cli/feed"
	"artizen/internal/cli/output"
	"artizen/internal/cli/readstate"
	"artizen/internal/logging"
	"artizen/internal/models"
	"artizen/internal/realtime"
)

func main() {
	logging.Init(envOr("ARTIZEN_LOG_LEVEL", "warn"), "text")
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	switch args[0] {
	case "connect":
		return cmdConnect(args[1:])
	case "disconnect":
		return cmdDisconnect()
	case "status":
		return cmdStatus()
	case "signup":
		return cmdSignup(args[1:])
	case "login":
		return cmdLogin(args[1:])
	case "logout":
		return cmdLogout()
	case "whoami":
		return cmdWhoAmI()
	case "password":
		return cmdPassword(args[1:])
	case "delete-account":
		return cmdDeleteAccount(args[1:])
	case "profile":
		return cmdProfile(args[1:])
	case "follow":
		return cmdFollow(args[1:])
	case "feed":
		return cmdFeed(args[1:])
	case "posts":
		return cmdPosts(args[1:])
	case "like":
		return cmdLike(args[1:])
	case "comment":
		return cmdComment(args[1:])
	case "search":
		return cmdSearch(args[1:])
	case "notifications":
		return cmdNotifications(args[1:])
	case "chat":
		return cmdChat(args[1:])
	default:
		return usage()
	}
}

func cmdConnect(args []string) error {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	production := fs.String("production", "", "Production URL used when the local server does not answer")
	positionals, err := parseInterspersedFlags(fs, args)
	if err != nil {
		return err
	}
	if len(positionals) != 1 {
		return errors.New("usage: artizen connect <local-url> [--production url]")
	}
	localURL := strings.TrimSpace(positionals[0])
	prodURL := strings.TrimSpace(*production)
	for _, raw := range []string{localURL, prodURL} {
		if raw == "" {
			continue
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
	}

	cl := newClient(config.Server{LocalURL: localURL, ProductionURL: prodURL})
	ctx, cancel := commandContext()
	defer cancel()
	if _, err := cl.Status(ctx); err != nil {
		return fmt.Errorf("validate server: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.SetDefault(localURL, prodURL)
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Printf("connected to %s\n", cl.BaseURL())
	return nil
}

func cmdDisconnect() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if _, ok := cfg.Default(); !ok {
		fmt.Println("no active connection")
		return nil
	}
	cfg.ClearDefault()
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Println("disconnected")
	return nil
}

func cmdStatus() error {
	srv, err := connection()
	if err != nil {
		return err
	}
	cl := newClient(srv)
	ctx, cancel := commandContext()
	defer cancel()
	status, err := cl.Status(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"server":       cl.BaseURL(),
		"local":        srv.LocalURL,
		"production":   srv.ProductionURL,
		"email":        srv.Email,
		"connected_at": srv.ConnectedAt,
		"status":       status,
	})
}

func cmdSignup(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	name := fs.String("name", "", "Full name")
	email := fs.String("email", "", "Email")
	dob := fs.String("dob", "", "Date of birth (YYYY-MM-DD)")
	password := fs.String("password", os.Getenv("ARTIZEN_PASSWORD"), "Password")
	if _, err := parseInterspersedFlags(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" || strings.TrimSpace(*email) == "" || *password == "" {
		return errors.New("usage: artizen signup --name <name> --email <email> --password <password> [--dob date]")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	resp, err := cl.Signup(ctx, client.SignupRequest{
		FullName: strings.TrimSpace(*name),
		Email:    strings.TrimSpace(*email),
		DOB:      strings.TrimSpace(*dob),
		Password: *password,
	})
	if err != nil {
		return err
	}
	return storeIdentity(resp)
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	password := fs.String("password", os.Getenv("ARTIZEN_PASSWORD"), "Password")
	positionals, err := parseInterspersedFlags(fs, args)
	if err != nil {
		return err
	}
	if len(positionals) != 1 || *password == "" {
		return errors.New("usage: artizen login <email> --password <password>")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	resp, err := cl.Login(ctx, positionals[0], *password)
	if err != nil {
		return err
	}
	return storeIdentity(resp)
}

func storeIdentity(resp client.AuthResponse) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.SetIdentity(resp.User.Email, resp.Token); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Printf("signed in as %s\n", resp.User.Email)
	return nil
}

func cmdLogout() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ClearIdentity()
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

func cmdPassword(args []string) error {
	fs := flag.NewFlagSet("password", flag.ContinueOnError)
	current := fs.String("current", "", "Current password")
	next := fs.String("new", "", "New password")
	if _, err := parseInterspersedFlags(fs, args); err != nil {
		return err
	}
	if *current == "" || *next == "" {
		return errors.New("usage: artizen password --current <password> --new <password>")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	if err := cl.ChangePassword(ctx, *current, *next); err != nil {
		return err
	}
	fmt.Println("password updated")
	return nil
}

func cmdDeleteAccount(args []string) error {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	password := fs.String("password", "", "Account password")
	if _, err := parseInterspersedFlags(fs, args); err != nil {
		return err
	}
	if *password == "" {
		return errors.New("usage: artizen delete-account --password <password>")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	out, err := cl.DeleteAccount(ctx, *password)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ClearIdentity()
	if err := config.Save(cfg); err != nil {
		return err
	}
	return printJSON(out)
}

func cmdWhoAmI() error {
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	me, err := cl.Me(ctx)
	if err != nil {
		return err
	}
	return printJSON(me)
}

func cmdProfile(args []string) error {
	if len(args) > 1 {
		return errors.New("usage: artizen profile [email]")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	email := ""
	if len(args) == 1 {
		email = args[0]
	} else {
		me, err := cl.Me(ctx)
		if err != nil {
			return err
		}
		email = me.Email
	}
	profile, err := cl.Profile(ctx, email)
	if err != nil {
		return err
	}
	return printJSON(profile)
}

func cmdFollow(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: artizen follow <email>")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	following, err := cl.ToggleFollow(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"email": args[0], "following": following})
}

func cmdFeed(args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	limit := fs.Int("limit", feed.DefaultLimit, "Posts per page")
	pages := fs.Int("pages", 1, "Number of pages to load")
	format := fs.String("format", "", "Output format: json|yaml|table|plain|quiet")
	quiet := fs.Bool("quiet", false, "IDs only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pages <= 0 {
		return errors.New("--pages must be positive")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	pager := feed.NewPager(cl, *limit)
	for i := 0; i < *pages; i++ {
		loaded, err := pager.LoadMore(ctx)
		if err != nil {
			if client.IsTransient(err) && len(pager.Posts()) > 0 {
				logging.Log.Warn("feed page failed; showing what was loaded", "err", err)
				break
			}
			return err
		}
		if !loaded {
			break
		}
	}
	payload, err := output.Payload("posts", pager.Posts())
	if err != nil {
		return err
	}
	payload["hasMore"] = pager.HasMore()
	return output.Print(payload, *format, *quiet)
}

func cmdPosts(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: artizen posts <add|read|delete>")
	}
	switch args[0] {
	case "add":
		return cmdPostsAdd(args[1:])
	case "read":
		return cmdPostsRead(args[1:])
	case "delete":
		return cmdPostsDelete(args[1:])
	default:
		return errors.New("usage: artizen posts <add|read|delete>")
	}
}

func cmdPostsAdd(args []string) error {
	fs := flag.NewFlagSet("posts add", flag.ContinueOnError)
	title := fs.String("title", "", "Post title")
	fromFile := fs.String("from-file", "", "Read content from file")
	positionals, err := parseInterspersedFlags(fs, args)
	if err != nil {
		return err
	}
	content, err := resolveBodyInput(positionals, *fromFile)
	if err != nil {
		return err
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	post, err := cl.CreatePost(ctx, strings.TrimSpace(*title), content)
	if err != nil {
		return err
	}
	return printJSON(post)
}

func cmdPostsRead(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: artizen posts read <post-id>")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	var post models.Post
	if err := cl.Get(ctx, "/api/posts/"+url.PathEscape(args[0]), &post); err != nil {
		return err
	}
	return printJSON(post)
}

func cmdPostsDelete(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: artizen posts delete <post-id>")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	if err := cl.DeletePost(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func cmdLike(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: artizen like <post-id>")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	post, err := cl.ToggleLike(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"id": post.ID, "likes": post.Likes, "liked": post.Liked})
}

func cmdComment(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: artizen comment <add|delete>")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("comment add", flag.ContinueOnError)
		fromFile := fs.String("from-file", "", "Read comment from file")
		positionals, err := parseInterspersedFlags(fs, args[1:])
		if err != nil {
			return err
		}
		if len(positionals) == 0 {
			return errors.New("usage: artizen comment add <post-id> [content] [--from-file file]")
		}
		content, err := resolveBodyInput(positionals[1:], *fromFile)
		if err != nil {
			return err
		}
		post, err := cl.AddComment(ctx, positionals[0], content)
		if err != nil {
			return err
		}
		return printJSON(post.Comments)
	case "delete":
		if len(args) != 3 {
			return errors.New("usage: artizen comment delete <post-id> <index>")
		}
		index, err := strconv.Atoi(args[2])
		if err != nil || index < 0 {
			return errors.New("comment index must be a non-negative integer")
		}
		post, err := cl.DeleteComment(ctx, args[1], index)
		if err != nil {
			return err
		}
		return printJSON(post.Comments)
	default:
		return errors.New("usage: artizen comment <add|delete>")
	}
}

func cmdSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	format := fs.String("format", "", "Output format: json|yaml|table|plain|quiet")
	quiet := fs.Bool("quiet", false, "IDs only")
	positionals, err := parseInterspersedFlags(fs, args)
	if err != nil {
		return err
	}
	if len(positionals) < 2 {
		return errors.New("usage: artizen search <posts|users> <query>")
	}
	query := strings.Join(positionals[1:], " ")
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	var payload map[string]any
	switch positionals[0] {
	case "posts":
		results, err := cl.SearchPosts(ctx, query)
		if err != nil {
			return err
		}
		payload, err = output.Payload("results", results)
		if err != nil {
			return err
		}
	case "users":
		users, err := cl.SearchUsers(ctx, query)
		if err != nil {
			return err
		}
		payload, err = output.Payload("users", users)
		if err != nil {
			return err
		}
	default:
		return errors.New("usage: artizen search <posts|users> <query>")
	}
	return output.Print(payload, *format, *quiet)
}

func cmdNotifications(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "unread":
			return cmdNotificationsUnread()
		case "clear":
			return cmdNotificationsClear()
		}
	}
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	format := fs.String("format", "", "Output format: json|yaml|table|plain|quiet")
	quiet := fs.Bool("quiet", false, "IDs only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	list, err := cl.Notifications(ctx)
	if err != nil {
		return err
	}
	payload, err := output.Payload("notifications", list)
	if err != nil {
		return err
	}
	return output.Print(payload, *format, *quiet)
}

func cmdNotificationsUnread() error {
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	n, err := cl.UnreadNotifications(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]int{"count": n})
}

func cmdNotificationsClear() error {
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	n, err := cl.ClearNotifications(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("cleared %d notifications\n", n)
	return nil
}

func cmdChat(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: artizen chat <threads|open|history|send|watch>")
	}
	switch args[0] {
	case "threads":
		return cmdChatThreads(args[1:])
	case "open":
		return cmdChatOpen(args[1:])
	case "history":
		return cmdChatHistory(args[1:])
	case "send":
		return cmdChatSend(args[1:])
	case "watch":
		return cmdChatWatch(args[1:])
	default:
		return errors.New("usage: artizen chat <threads|open|history|send|watch>")
	}
}

func cmdChatThreads(args []string) error {
	fs := flag.NewFlagSet("chat threads", flag.ContinueOnError)
	format := fs.String("format", "", "Output format: json|yaml|table|plain|quiet")
	quiet := fs.Bool("quiet", false, "IDs only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	srv, err := connection()
	if err != nil {
		return err
	}
	cl := newClient(srv)
	ctx, cancel := commandContext()
	defer cancel()
	threads, err := cl.ListThreads(ctx)
	if err != nil {
		return err
	}
	store, err := openReadState(srv)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := readstate.NewThreadListState(srv.Email, store).Apply(readstate.PollTick{Threads: threads})
	if err != nil {
		return err
	}
	payload, err := output.Payload("", snap)
	if err != nil {
		return err
	}
	return output.Print(payload, *format, *quiet)
}

func cmdChatOpen(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: artizen chat open <email>")
	}
	cl, err := defaultClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()
	thread, err := cl.OpenThread(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(thread)
}

func cmdChatHistory(args []string) error {
	fs := flag.NewFlagSet("chat history", flag.ContinueOnError)
	take := fs.Int("take", chat.DefaultTake, "Messages per page")
	older := fs.Int("older", 0, "Older pages to load after the latest one")
	format := fs.String("format", "", "Output format: json|yaml|table|plain|quiet")
	positionals, err := parseInterspersedFlags(fs, args)
	if err != nil {
		return err
	}
	if len(positionals) != 1 {
		return errors.New("usage: artizen chat history <thread-id> [--take n] [--older n]")
	}
	srv, err := connection()
	if err != nil {
		return err
	}
	cl := newClient(srv)
	ctx, cancel := commandContext()
	defer cancel()

	pager := chat.NewThreadPager(cl, positionals[0], srv.Email, *take)
	if err := pager.LoadLatest(ctx); err != nil {
		return err
	}
	for i := 0; i < *older && pager.HasMore(); i++ {
		if _, err := pager.LoadOlder(ctx); err != nil {
			return err
		}
	}

	store, err := openReadState(srv)
	if err != nil {
		return err
	}
	defer store.Close()
	if _, err := readstate.NewThreadListState(srv.Email, store).Apply(readstate.ThreadOpened{ThreadID: positionals[0]}); err != nil {
		return err
	}

	payload, err := output.Payload("messages", pager.Messages())
	if err != nil {
		return err
	}
	payload["hasMore"] = pager.HasMore()
	return output.Print(payload, *format, false)
}

func cmdChatSend(args []string) error {
	fs := flag.NewFlagSet("chat send", flag.ContinueOnError)
	fromFile := fs.String("from-file", "", "Read message from file")
	positionals, err := parseInterspersedFlags(fs, args)
	if err != nil {
		return err
	}
	if len(positionals) == 0 {
		return errors.New("usage: artizen chat send <thread-id> [text] [--from-file file]")
	}
	text, err := resolveBodyInput(positionals[1:], *fromFile)
	if err != nil {
		return err
	}
	srv, err := connection()
	if err != nil {
		return err
	}
	cl := newClient(srv)
	ctx, cancel := commandContext()
	defer cancel()

	pager := chat.NewThreadPager(cl, positionals[0], srv.Email, chat.DefaultTake)
	pending := pager.AddOptimistic(text)
	msg, err := cl.SendMessage(ctx, positionals[0], text, pending.ClientID)
	if err != nil {
		pager.DropOptimistic(pending.ClientID)
		return err
	}
	logging.Log.Debug("message confirmed", "threadId", msg.ThreadID, "merge", pager.ApplyPush(msg).String())
	return printJSON(msg)
}

func cmdChatWatch(args []string) error {
	fs := flag.NewFlagSet("chat watch", flag.ContinueOnError)
	intervalRaw := fs.String("interval", "", "Thread list polling interval")
	maxEvents := fs.Int("count", 0, "Exit after this many messages (0 = run until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	srv, ok := cfg.Default()
	if !ok {
		return errNotConnected
	}
	interval := cfg.PollInterval()
	if strings.TrimSpace(*intervalRaw) != "" {
		interval, err = time.ParseDuration(*intervalRaw)
		if err != nil || interval <= 0 {
			return errors.New("invalid --interval")
		}
	}
	cl := newClient(srv)
	store, err := openReadState(srv)
	if err != nil {
		return err
	}
	defer store.Close()
	state := readstate.NewThreadListState(srv.Email, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pushes := make(chan models.Message, 16)
	if conn, _, err := websocket.DefaultDialer.DialContext(ctx, cl.WebSocketURL(), nil); err != nil {
		logging.Log.Warn("realtime unavailable; polling only", "err", err)
	} else {
		defer conn.Close()
		go readPushes(ctx, conn, pushes)
	}

	poll := func() (readstate.Snapshot, error) {
		threads, err := cl.ListThreads(ctx)
		if err != nil {
			return readstate.Snapshot{}, err
		}
		return state.Apply(readstate.PollTick{Threads: threads})
	}
	snap, err := poll()
	if err != nil {
		return err
	}
	if err := printJSON(map[string]any{"event": "unread", "threads": snap.Unread, "anyUnread": snap.AnyUnread}); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prev := snap.AnyUnread
			next, err := poll()
			if err != nil {
				if client.IsTransient(err) {
					logging.Log.Warn("thread poll failed", "err", err)
					continue
				}
				return err
			}
			snap = next
			if snap.AnyUnread != prev {
				if err := printJSON(map[string]any{"event": "unread", "threads": snap.Unread, "anyUnread": snap.AnyUnread}); err != nil {
					return err
				}
			}
		case msg, ok := <-pushes:
			if !ok {
				pushes = nil
				logging.Log.Warn("realtime connection closed; polling only")
				continue
			}
			next, err := state.Apply(readstate.PushMessage{Message: msg})
			if err != nil {
				return err
			}
			if next.Stale {
				if next, err = poll(); err != nil {
					return err
				}
			}
			snap = next
			if err := printJSON(map[string]any{"event": "message", "message": msg, "anyUnread": snap.AnyUnread}); err != nil {
				return err
			}
			seen++
			if *maxEvents > 0 && seen >= *maxEvents {
				return nil
			}
		}
	}
}

// readPushes forwards message:new-global frames until the socket closes.
func readPushes(ctx context.Context, conn *websocket.Conn, out chan<- models.Message) {
	defer close(out)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logging.Log.Debug("realtime read failed", "err", err)
			}
			return
		}
		var ev realtime.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Event != realtime.EventMessageNewGlobal {
			continue
		}
		var msg models.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func resolveBodyInput(args []string, fromFile string) (string, error) {
	if strings.TrimSpace(fromFile) != "" {
		if len(args) > 0 {
			return "", errors.New("provide content either inline or with --from-file, not both")
		}
		b, err := os.ReadFile(fromFile)
		if err != nil {
			return "", err
		}
		body := strings.TrimSpace(string(b))
		if body == "" {
			return "", errors.New("content is empty")
		}
		return body, nil
	}
	body := strings.TrimSpace(strings.Join(args, " "))
	if body == "" {
		return "", errors.New("content is required")
	}
	return body, nil
}

var errNotConnected = errors.New("not connected. run: artizen connect <local-url> [--production url]")

func connection() (config.Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Server{}, err
	}
	srv, ok := cfg.Default()
	if !ok {
		return config.Server{}, errNotConnected
	}
	return srv, nil
}

func defaultClient() (*client.Client, error) {
	srv, err := connection()
	if err != nil {
		return nil, err
	}
	return newClient(srv), nil
}

func newClient(srv config.Server) *client.Client {
	var cl *client.Client
	if srv.ProductionURL != "" {
		cl = client.NewWithFallback(client.NewFallback(srv.LocalURL, srv.ProductionURL), srv.Token)
	} else {
		cl = client.New(srv.LocalURL, srv.Token)
	}
	if srv.Token == "" {
		cl.WithEmail(srv.Email)
	}
	return cl
}

// openReadState opens the per-user read markers next to the config file.
func openReadState(srv config.Server) (*readstate.PebbleStore, error) {
	if srv.Email == "" {
		return nil, errors.New("not signed in. run: artizen login <email>")
	}
	p, err := config.Path()
	if err != nil {
		return nil, err
	}
	return readstate.OpenPebble(filepath.Join(filepath.Dir(p), "readstate"), srv.Email)
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseInterspersedFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	positionals := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := strings.TrimSpace(args[i])
		if arg == "" {
			continue
		}
		if arg == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positionals = append(positionals, arg)
			continue
		}

		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			positionals = append(positionals, arg)
			continue
		}
		f := fs.Lookup(name)
		if f == nil {
			return nil, fmt.Errorf("flag provided but not defined: -%s", name)
		}
		if !hasValue {
			if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
				value = "true"
			} else {
				if i+1 >= len(args) {
					return nil, fmt.Errorf("flag needs an argument: -%s", name)
				}
				i++
				value = args[i]
			}
		}
		if err := fs.Set(name, value); err != nil {
			return nil, err
		}
	}
	return positionals, nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func usage() error {
	return errors.New(`usage:
  artizen connect <local-url> [--production url]
  artizen disconnect
  artizen status
  artizen signup --name <name> --email <email> --password <password> [--dob date]
  artizen login <email> --password <password>
  artizen logout
  artizen whoami
  artizen password --current <password> --new <password>
  artizen delete-account --password <password>
  artizen profile [email]
  artizen follow <email>
  artizen feed [--limit n] [--pages n] [--format f] [--quiet]
  artizen posts add [content] [--title t] [--from-file file]
  artizen posts read <post-id>
  artizen posts delete <post-id>
  artizen like <post-id>
  artizen comment add <post-id> [content] [--from-file file]
  artizen comment delete <post-id> <index>
  artizen search <posts|users> <query> [--format f]
  artizen notifications [--format f]
  artizen notifications unread
  artizen notifications clear
  artizen chat threads [--format f]
  artizen chat open <email>
  artizen chat history <thread-id> [--take n] [--older n]
  artizen chat send <thread-id> [text] [--from-file file]
  artizen chat watch [--interval 5s] [--count n]`)
}
