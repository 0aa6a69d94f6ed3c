// Command terminal draws a match in the terminal.
//
// By default it runs its own match. With -attach it follows a running server
// through the snapshot feed instead.
//
// Keys: r resets a local match, q / Esc / Ctrl-C quits.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"lane-clash/internal/config"
	"lane-clash/internal/game"
	"lane-clash/internal/ipc"
	"lane-clash/internal/render"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
)

const drawInterval = 50 * time.Millisecond

type snapshotSource interface {
	GetSnapshot() *game.GameSnapshot
}

func main() {
	attach := flag.Bool("attach", false, "follow a running server instead of simulating locally")
	socket := flag.String("socket", "", "snapshot feed socket (default from FEED_SOCKET)")
	flag.Parse()

	_ = godotenv.Load(".env")

	// The screen owns stdout; logs go to LOG_FILE or nowhere
	log.SetOutput(io.Discard)
	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fatalf("open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	appConfig, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}

	var (
		source snapshotSource
		engine *game.Engine
	)
	if *attach {
		path := *socket
		if path == "" {
			path = appConfig.Server.FeedSocket
		}
		sub := ipc.NewSubscriber(path)
		sub.Start()
		defer sub.Stop()
		source = sub
	} else {
		engine = game.NewEngine(game.EngineConfigFrom(appConfig))
		engine.Start()
		defer engine.Stop()
		source = engine
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fatalf("terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		fatalf("terminal init: %v", err)
	}
	defer screen.Fini()

	view := render.NewTerminalRenderer(screen)
	quit := make(chan struct{})
	resets := make(chan struct{}, 1)

	go func() {
		defer close(quit)
		for {
			switch ev := screen.PollEvent().(type) {
			case nil:
				return
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				isRune := ev.Key() == tcell.KeyRune
				switch {
				case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC, isRune && ev.Rune() == 'q':
					return
				case isRune && ev.Rune() == 'r':
					select {
					case resets <- struct{}{}:
					default:
					}
				}
			}
		}
	}()

	ticker := time.NewTicker(drawInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-resets:
			if engine == nil {
				continue
			}
			engine.Reset()
		case <-ticker.C:
			view.Draw(source.GetSnapshot())
		}
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
