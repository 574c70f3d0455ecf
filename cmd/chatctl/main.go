package main

import (
	"os"

	"github.com/lakehouse-apps/chat-config-manager/internal/chatcli"
)

func main() {
	if err := chatcli.Execute(); err != nil {
		os.Exit(1)
	}
}
