package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"tasksync/internal/config"
)

// Blocking func, returns when its work is done or ctx is cancelled
type command func(ctx context.Context) error

type commandRegistry map[string]command

var commands = commandRegistry{
	"noop":   noopCmd,
	"sync":   syncCmd,
	"daemon": daemonCmd,
	"check":  checkCmd,
}

func Run() {
	cmd := config.Gist().String(config.CMD)
	cmdFn, ok := commands[cmd]
	if !ok {
		help()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := cmdFn(ctx); err != nil {
		log.Err(err).Str("cmd", cmd).Msg("command failed")
		cancel()
		os.Exit(1)
	}
}

func help() {
	fmt.Println("Usage: tasksync --cmd [command]")
	fmt.Println("Commands: noop, sync, daemon, check")
	fmt.Println("Example: tasksync --cmd sync --caldav.url https://dav.example.com/ --caldav.user me")
	fmt.Println("Config params (name|required|default):\v")
	fmt.Println(config.Sprint())
}
