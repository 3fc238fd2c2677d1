package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chatx/chatx-go/internal/client"
	"github.com/chatx/chatx-go/internal/config"
	"github.com/chatx/chatx-go/internal/logger"
	"github.com/chatx/chatx-go/internal/stubserver"
)

func main() {
	logger.SetPrefix("chatx")
	stub := flag.Bool("stub", false, "run against an in-process stub backend (no external server required)")
	flag.Parse()

	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	var stubSrv *http.Server
	if *stub {
		addr, srv, err := startStub()
		if err != nil {
			logger.Errorf("stub backend: %v", err)
			os.Exit(1)
		}
		stubSrv = srv
		cfg.APIBaseURL = "http://" + addr + "/api/v1"
		cfg.CredentialFile = "" // stub tokens die with the process
		logger.Infof("stub backend listening on %s", addr)
	}

	c := client.New(cfg, printNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println("chatx: type 'help' for commands")
loop:
	for {
		fmt.Print("> ")
		select {
		case <-quit:
			fmt.Println()
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if !dispatch(ctx, c, line) {
				break loop
			}
		}
	}

	cancel()
	wg.Wait()
	if stubSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		stubSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	logger.Info("bye")
}

func startStub() (string, *http.Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	s := stubserver.NewServer()
	// Немного демо-данных, чтобы было с кем переписываться.
	s.SeedUser("alice", "alice@example.com", "password1")
	s.SeedUser("bob", "bob@example.com", "password1")
	srv := &http.Server{Handler: s.Handler()}
	go srv.Serve(ln)
	return ln.Addr().String(), srv, nil
}

type printNotifier struct{}

func (printNotifier) Notice(kind client.NoticeKind, text string) {
	fmt.Fprintf(os.Stderr, "\n[%s] %s\n", kind, text)
}

// dispatch runs one REPL command; returning false ends the session.
func dispatch(ctx context.Context, c *client.Client, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	report := func(err error) {
		if err != nil {
			fmt.Println("error:", err)
		}
	}

	switch cmd {
	case "quit", "exit":
		return false
	case "help":
		printHelp()

	case "health":
		h, err := c.FetchHealth(ctx)
		if err != nil {
			report(err)
			return true
		}
		fmt.Printf("status=%s version=%s env=%s\n", h.Status, h.Version, h.Env)

	case "register":
		if len(args) != 3 {
			fmt.Println("usage: register <username> <email> <password>")
			return true
		}
		report(c.Register(ctx, args[0], args[1], args[2]))

	case "activate":
		if len(args) != 1 {
			fmt.Println("usage: activate <token>")
			return true
		}
		report(c.Activate(ctx, args[0]))

	case "login":
		if len(args) != 2 {
			fmt.Println("usage: login <email> <password>")
			return true
		}
		report(c.Login(ctx, args[0], args[1]))

	case "logout":
		c.Logout()

	case "whoami":
		if id := c.Identity(); id != nil {
			fmt.Printf("#%d %s (push: %s)\n", id.UserID, id.Username, c.PushState())
		} else {
			fmt.Println("not logged in")
		}

	case "users":
		if err := c.RefreshUsers(ctx, rest); err != nil {
			report(err)
			return true
		}
		for _, u := range c.Users() {
			fmt.Printf("  #%d %s <%s>\n", u.ID, u.Username, u.Email)
		}

	case "chats":
		if err := c.RefreshChats(ctx, rest); err != nil {
			report(err)
			return true
		}
		for _, ch := range c.Chats() {
			marker := " "
			if ch.UnreadCount > 0 {
				marker = fmt.Sprintf("(%d)", ch.UnreadCount)
			}
			fmt.Printf("  #%d [%s] %s %s — %s\n", ch.ChatID, ch.ChatType, ch.ChatName, marker, ch.LastMessage)
		}

	case "select":
		id, ok := parseID(args, "select <chat_id>")
		if !ok {
			return true
		}
		if err := c.SelectChat(ctx, id); err != nil {
			report(err)
			return true
		}
		printMessages(c)

	case "messages":
		printMessages(c)

	case "send":
		if rest == "" {
			fmt.Println("usage: send <text>")
			return true
		}
		report(c.SendMessage(ctx, rest))

	case "edit":
		if len(args) < 2 {
			fmt.Println("usage: edit <message_id> <new text>")
			return true
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Println("usage: edit <message_id> <new text>")
			return true
		}
		report(c.EditMessage(ctx, id, strings.TrimSpace(strings.TrimPrefix(rest, args[0]))))

	case "rm":
		id, ok := parseID(args, "rm <message_id>")
		if !ok {
			return true
		}
		report(c.DeleteMessage(ctx, id))

	case "read":
		report(c.MarkRead(ctx))

	case "pm":
		id, ok := parseID(args, "pm <user_id>")
		if !ok {
			return true
		}
		report(c.CreatePrivateChat(ctx, id))

	case "group":
		if len(args) < 1 {
			fmt.Println("usage: group <name> [member_id ...]")
			return true
		}
		var members []int64
		for _, a := range args[1:] {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				fmt.Println("usage: group <name> [member_id ...]")
				return true
			}
			members = append(members, id)
		}
		report(c.CreateGroup(ctx, args[0], "", members))

	case "rename":
		if len(args) < 1 {
			fmt.Println("usage: rename <name> [description]")
			return true
		}
		desc := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		report(c.UpdateGroup(ctx, args[0], desc))

	case "members":
		users, err := c.Members(ctx)
		if err != nil {
			report(err)
			return true
		}
		for _, u := range users {
			fmt.Printf("  #%d %s <%s>\n", u.ID, u.Username, u.Email)
		}

	case "invite":
		id, ok := parseID(args, "invite <user_id>")
		if !ok {
			return true
		}
		report(c.AddMember(ctx, id))

	case "kick":
		id, ok := parseID(args, "kick <user_id>")
		if !ok {
			return true
		}
		report(c.RemoveMember(ctx, id))

	case "delchat":
		report(c.DeleteChat(ctx))

	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
	return true
}

func parseID(args []string, usage string) (int64, bool) {
	if len(args) != 1 {
		fmt.Println("usage:", usage)
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("usage:", usage)
		return 0, false
	}
	return id, true
}

func printMessages(c *client.Client) {
	selected := c.SelectedChat()
	if selected == nil {
		fmt.Println("no chat selected")
		return
	}
	fmt.Printf("— %s —\n", selected.ChatName)
	for _, m := range c.Messages() {
		flag := " "
		if m.Placeholder() {
			flag = "~"
		}
		fmt.Printf(" %s[%d] %s: %s\n", flag, m.ID, m.SenderName, m.Content)
	}
}

func printHelp() {
	fmt.Print(`commands:
  health                         backend liveness
  register <user> <email> <pw>   create an account
  activate <token>               activate an account
  login <email> <pw>             authenticate
  logout                         drop the session
  whoami                         current identity and push state
  users [search]                 list/search users
  chats [search]                 list chats
  select <chat_id>               open a chat
  messages                       reprint the open chat
  send <text>                    message the open chat
  edit <msg_id> <text>           edit an own message
  rm <msg_id>                    delete an own message
  read                           mark the open chat read
  pm <user_id>                   open a private chat
  group <name> [ids...]          create a group
  rename <name> [description]    rename the open group
  members / invite <id> / kick <id>
  delchat                        delete the open chat
  quit
`)
}
