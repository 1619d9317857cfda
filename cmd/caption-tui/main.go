// Command caption-tui searches for photos and composes captioned images in
// the terminal. The canvas is rendered off-screen and saved as PNG.
package main

import (
	"caption-studio/config"
	"caption-studio/handlers/api/scenes"
	"caption-studio/scene"
	"caption-studio/search"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	logFile := flag.String("log", "caption-tui.log", "File that receives log output.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	output := flag.String("out", scenes.ExportFilename, "Where exported images are written.")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	logrus.SetOutput(f)
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	editor := scene.NewEditor()
	editor.Mount()
	defer editor.Unmount()

	searcher := search.NewClient(cfg.Unsplash.APIURL, cfg.Unsplash.AccessKey, nil)

	p := tea.NewProgram(newModel(searcher, editor, *output), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logrus.WithError(err).Error("TUI exited with error")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
