package main

import (
	"flag"
	"fmt"
	"os"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/monitor/alerts"
	"hyperwatch/internal/tui"
)

var (
	agentURL  = flag.String("agent", "http://127.0.0.1:9190", "Base URL of the hyperwatch agent")
	container = flag.String("container", alerts.NodeContainer, "Notification container to follow")
	logFile   = flag.String("log-file", logging.DefaultLogPath(), "Console log file")
	token     = flag.String("token", os.Getenv("HYPERWATCH_TOKEN"), "API token for changing settings")
)

func main() {
	flag.Parse()

	logger, err := logging.NewFileLogger(*logFile)
	if err != nil {
		// The console still works without a log file
		logger = logging.NewDiscardLogger()
	}
	defer logger.Close()

	client := tui.NewClient(*agentURL, *container).WithToken(*token)
	if err := tui.Run(client, logger); err != nil {
		fmt.Printf("Error running program: %v", err)
		os.Exit(1)
	}
}
