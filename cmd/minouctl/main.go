package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/minouverse/minouchat/internal/config"
	"github.com/minouverse/minouchat/internal/model"
	"github.com/minouverse/minouchat/internal/rest"
	"github.com/minouverse/minouchat/internal/session"
	"github.com/minouverse/minouchat/internal/store"
	"go.uber.org/zap"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	rc := rest.New(cfg.Backend.APIURL, cfg.Identity.Token, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "conversations":
		cmdConversations(ctx, rc, cfg.Identity.UserID, *jsonFlag)
	case "history":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: minouctl history <conversation-id>")
			os.Exit(1)
		}
		cmdHistory(ctx, rc, args[1], *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: minouctl send <conversation-id> <text>")
			os.Exit(1)
		}
		cmdSend(ctx, rc, cfg.Identity.UserID, args[1], args[2], *jsonFlag)
	case "search":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: minouctl search <query>")
			os.Exit(1)
		}
		cmdSearch(sessionName, args[1], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: minouctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  conversations           List conversations")
	fmt.Fprintln(os.Stderr, "  history <conv-id>       Show conversation history")
	fmt.Fprintln(os.Stderr, "  send <conv-id> <text>   Send a message over HTTP")
	fmt.Fprintln(os.Stderr, "  search <query>          Full-text search the local cache")
}

func cmdConversations(ctx context.Context, rc *rest.Client, selfID string, jsonOut bool) {
	convs, err := rc.ListConversations(ctx, selfID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(convs)
		return
	}
	for _, c := range convs {
		peer := c.Other(selfID)
		name := peer.Username
		if name == "" {
			name = peer.ID
		}
		marker := " "
		if c.UnreadCount > 0 {
			marker = "*"
		}
		fmt.Printf("%s %-24s %-40s %s\n", marker, name, truncate(c.LastMessage, 40), c.ID)
	}
}

func cmdHistory(ctx context.Context, rc *rest.Client, conversationID string, jsonOut bool) {
	msgs, err := rc.ListMessages(ctx, conversationID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		fmt.Printf("%s  %-16s %s\n", m.SentAt.Format("2006-01-02 15:04"), m.SenderID, m.Content)
	}
}

func cmdSend(ctx context.Context, rc *rest.Client, selfID, conversationID, text string, jsonOut bool) {
	convs, err := rc.ListConversations(ctx, selfID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var recipient string
	for _, c := range convs {
		if c.ID == conversationID {
			recipient = c.Other(selfID).ID
			break
		}
	}
	if recipient == "" {
		fmt.Fprintf(os.Stderr, "error: unknown conversation %q\n", conversationID)
		os.Exit(1)
	}

	created, err := rc.SendMessage(ctx, model.Draft{
		ConversationID: conversationID,
		SenderID:       selfID,
		RecipientID:    recipient,
		Content:        text,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(created)
		return
	}
	fmt.Printf("sent %s\n", created.ID)
}

// cmdSearch reads the session cache directly. The cache is opened in WAL
// mode, so a running client and this reader coexist.
func cmdSearch(sessionName, query string, jsonOut bool) {
	db, err := store.Open(session.CacheDBPath(sessionName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open cache: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if _, _, err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	results, err := db.Search(query, 50)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(results)
		return
	}
	if len(results) == 0 {
		fmt.Println("no matches")
		return
	}
	for _, r := range results {
		fmt.Printf("%s  %-16s %s\n", r.SentAt.Format("2006-01-02 15:04"), r.SenderID, r.Snippet)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
