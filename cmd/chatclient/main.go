package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livechat-client/internal/api"
	"livechat-client/internal/chat"
	"livechat-client/internal/config"
	"livechat-client/internal/invite"
	"livechat-client/internal/logger"
	"livechat-client/internal/models"
	"livechat-client/internal/session"
	"livechat-client/internal/socket"
	"livechat-client/internal/storage"
	"livechat-client/internal/throttle"
	"livechat-client/internal/view"
)

var configFile = flag.String("config", "", "optional config file (yaml, json, toml or env)")

type app struct {
	cfg     *config.Config
	term    *view.Terminal
	nav     *view.Navigator
	api     *api.Client
	conv    *chat.Conversation
	overlay *invite.Overlay
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	root := logger.New(cfg.LogLevel, nil)
	ctx, cancel := context.WithCancel(logger.NewContext(context.Background(), root))
	defer cancel()

	term := view.NewTerminal(os.Stdout)
	nav := view.NewNavigator(term)

	manager := socket.NewManager(logger.WithModule(root, "socket"))
	header := http.Header{}
	if cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}
	client, err := manager.GetOrCreate(socket.DefaultKey, socket.Options{
		URL:               cfg.SocketURL,
		Origin:            cfg.Origin,
		Path:              cfg.SocketPath,
		AffinityKey:       cfg.Username,
		Header:            header,
		ReconnectInterval: cfg.ReconnectInterval,
	})
	if err != nil {
		root.Warn().Err(err).Msg("live chat unavailable, continuing read-only")
		client = nil
	}

	backend, err := api.New(cfg.APIBaseURL, cfg.AuthToken, nil, logger.WithModule(root, "api"))
	if err != nil {
		log.Fatal("Failed to build API client:", err)
	}

	store, err := storage.Open(ctx, cfg.StorageURL)
	if err != nil {
		root.Warn().Err(err).Str("storage", config.MaskURL(cfg.StorageURL)).Msg("preference store unavailable, using memory")
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	conv := chat.NewConversation(chat.Config{
		Client:               client,
		Backend:              backend,
		Store:                store,
		View:                 term,
		Limiter:              throttle.NewLimiter(cfg.SendBurst, cfg.SendRefill),
		Roles:                cfg.Roles,
		ContactsRefreshDelay: cfg.ContactsRefreshDelay,
		Log:                  logger.WithModule(root, "chat"),
	})

	overlay := invite.NewOverlay(invite.Config{
		Client:        client,
		Navigator:     nav,
		Observer:      term,
		OnMatchRoute:  func() bool { return nav.OnRoute(cfg.MatchRoute) },
		MatchRoute:    cfg.MatchRoute,
		ToastDuration: cfg.ToastDuration,
		Log:           logger.WithModule(root, "invite"),
	})
	if client != nil {
		if err := overlay.Attach(); err != nil {
			root.Warn().Err(err).Msg("match invites disabled")
		}
	}

	if err := conv.Start(); err != nil {
		log.Fatal("Failed to start conversation:", err)
	}

	a := &app{cfg: cfg, term: term, nav: nav, api: backend, conv: conv, overlay: overlay}
	go a.resolveIdentity(ctx, backend)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	lines := make(chan string)
	go readLines(ctx, lines)

	term.Notice("type /help for commands")
	running := true
	for running {
		select {
		case <-stop:
			running = false
		case line, ok := <-lines:
			if !ok {
				running = false
				break
			}
			running = a.handle(ctx, line)
		}
	}

	fmt.Println("\nShutting down...")
	cancel()
	overlay.Close()
	conv.Close()
	if err := manager.Close(); err != nil {
		root.Warn().Err(err).Msg("event client close")
	}
	fmt.Println("Goodbye!")
}

func (a *app) resolveIdentity(ctx context.Context, src session.Source) {
	sessionLog := logger.WithModule(logger.FromContext(ctx), "session")
	resolver := &session.Resolver{
		Preset:  models.NewIdentity(a.cfg.Username, a.cfg.Role),
		Token:   a.cfg.AuthToken,
		AuthKey: a.cfg.AuthKey,
		Roles:   a.cfg.Roles,
		Log:     sessionLog,
		Poller: &session.Poller{
			Source:      src,
			Interval:    a.cfg.SessionPollInterval,
			MaxAttempts: a.cfg.SessionPollAttempts,
			Roles:       a.cfg.Roles,
			Log:         sessionLog,
		},
	}
	id, err := resolver.Resolve(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.term.Notice("not signed in: %v", err)
		}
		return
	}
	if err := a.conv.SetIdentity(id); err != nil {
		a.term.Notice("identity rejected: %v", err)
		return
	}
	a.term.Notice("signed in as %s (%s)", id.Username, id.Role)
	a.conv.RefreshContacts()
}

// handle runs one input line. It returns false when the user quits.
func (a *app) handle(ctx context.Context, line string) bool {
	cmd, err := view.ParseCommand(line)
	if err != nil {
		a.term.Notice("%v", err)
		return true
	}

	switch cmd.Kind {
	case view.CmdSay:
		if err := a.conv.Send(cmd.Arg); err != nil && !errors.Is(err, chat.ErrEmptyMessage) {
			a.term.Notice("not sent: %v", err)
		}
	case view.CmdTo:
		a.selectTarget(chat.ParseTarget(cmd.Arg))
	case view.CmdGlobal:
		a.selectTarget(chat.Global)
	case view.CmdContacts:
		a.conv.RefreshContacts()
	case view.CmdUsers:
		self, _ := a.conv.Identity()
		reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		users, err := a.api.SearchUsers(reqCtx, cmd.Arg, cmd.Query, self.Username)
		cancel()
		if err != nil {
			a.term.Notice("user search failed: %v", err)
			break
		}
		a.term.Users(cmd.Arg, users)
	case view.CmdOpen:
		a.report(a.overlay.Open())
	case view.CmdMinimize:
		a.report(a.overlay.Minimize())
	case view.CmdAccept:
		a.report(a.overlay.Accept())
	case view.CmdReject:
		a.report(a.overlay.Reject())
	case view.CmdDismiss:
		a.report(a.overlay.Dismiss())
	case view.CmdLeave:
		a.nav.Leave()
		a.term.Notice("left the live match")
	case view.CmdHelp:
		a.term.Notice("%s", view.Help)
	case view.CmdQuit:
		return false
	}
	return true
}

func (a *app) selectTarget(t chat.Target) {
	if err := a.conv.Select(t); err != nil {
		a.term.Notice("cannot open conversation: %v", err)
		return
	}
	name := string(t)
	if t.State() == chat.StateGlobal {
		name = "global room"
	}
	a.term.Notice("now chatting in %s", name)
}

func (a *app) report(err error) {
	if err != nil {
		a.term.Notice("%v", err)
	}
}

func readLines(ctx context.Context, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}
