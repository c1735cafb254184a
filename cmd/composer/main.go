package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/composer"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/utils"
)

const help = `commands:
  /users          list people you can message
  /open <id>      open the conversation with <id>
  /image <path>   attach an image to the draft
  /noimage        remove the attached image
  /voice          dictate: the next line you type is taken as speech
  /send           send the draft as it is
  /clear          discard the draft
  /quit           exit
anything else is sent as a message`

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("DM_SERVER", "http://localhost:5001"), "service base URL")
	token := flag.String("token", os.Getenv("DM_TOKEN"), "session token")
	peer := flag.String("peer", "", "user id to open on start")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	logger, err := utils.NewLogger(*debug, "warn")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if *token == "" {
		log.Fatal("a session token is required (-token or DM_TOKEN)")
	}
	self, err := composer.UserIDFromToken(*token)
	if err != nil {
		log.Fatalf("token: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := composer.NewAPIClient(*server, *token, 30*time.Second)
	thread := composer.NewThread(self, os.Stdout)
	lines := composer.ReadLines(os.Stdin)
	comp := composer.New(client, composer.NewLineRecognizer(lines), thread)

	live, err := composer.NewLiveClient(*server, *token, logger)
	if err != nil {
		log.Fatalf("live client: %v", err)
	}
	go func() {
		err := live.Run(ctx, composer.LiveHandlers{
			OnMessage: func(m *domain.Message) { thread.Append(m) },
			OnOnline: func(ids []string) {
				fmt.Printf("* online: %s\n", strings.Join(ids, ", "))
			},
		})
		if err != nil {
			logger.Warn("live updates stopped", zap.Error(err))
		}
	}()

	if *peer != "" {
		open(ctx, client, thread, comp, *peer)
	} else {
		fmt.Println(help)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handle(ctx, line, client, thread, comp); quit {
				return
			}
		}
	}
}
