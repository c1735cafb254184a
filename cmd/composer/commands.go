package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fathima-sithara/dm-service/internal/composer"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func open(ctx context.Context, client *composer.APIClient, thread *composer.Thread, comp *composer.Composer, peerID string) {
	history, err := client.Messages(ctx, peerID)
	if err != nil {
		fmt.Printf("! could not load messages: %v\n", err)
		return
	}
	comp.SetPeer(peerID)
	fmt.Printf("--- conversation with %s ---\n", peerID)
	thread.Open(peerID, history)
}

// handle runs one input line and reports whether the user asked to quit.
func handle(ctx context.Context, line string, client *composer.APIClient, thread *composer.Thread, comp *composer.Composer) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return false
	case "/quit":
		return true
	case "/help":
		fmt.Println(help)
	case "/users":
		users, err := client.Users(ctx)
		if err != nil {
			fmt.Printf("! could not load users: %v\n", err)
			return false
		}
		for _, u := range users {
			fmt.Printf("  %s  %s (%s)\n", u.ID, u.FullName, u.PreferredLanguage("en"))
		}
	case "/open":
		if arg == "" {
			fmt.Println("! usage: /open <user id>")
			return false
		}
		open(ctx, client, thread, comp, arg)
	case "/image":
		data, err := os.ReadFile(arg)
		if err != nil {
			fmt.Printf("! %v\n", err)
			return false
		}
		if err := comp.AttachImage(data); err != nil {
			fmt.Printf("! %v\n", err)
			return false
		}
		fmt.Println("* image attached")
	case "/noimage":
		comp.RemoveImage()
	case "/clear":
		comp.SetText("")
		comp.RemoveImage()
	case "/voice":
		fmt.Println("* listening...")
		if err := comp.Dictate(ctx); err != nil {
			fmt.Printf("! %v\n", err)
			return false
		}
		fmt.Printf("* heard: %q (type /send to send it)\n", comp.Draft().Text)
	case "/send":
		send(ctx, comp)
	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Printf("! unknown command %s\n", cmd)
			return false
		}
		comp.SetText(line)
		send(ctx, comp)
	}
	return false
}

func send(ctx context.Context, comp *composer.Composer) {
	_, err := comp.Send(ctx)
	switch {
	case err == nil:
	case errors.Is(err, composer.ErrEmptyDraft), errors.Is(err, composer.ErrNoPeer):
		fmt.Printf("! %v\n", err)
	default:
		fmt.Printf("! %v (draft kept, /send to retry)\n", err)
	}
}
