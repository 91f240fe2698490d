package main

import (
	"os"

	"settings-portal/logger"
)

var log = logger.Get()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
