package main

import (
	"fmt"

	"github.com/fatih/color"

	"imagevault/internal/config"
)

func printSignature(cfg *config.Config, version string) {
	cyan := color.New(color.FgHiCyan, color.Bold).SprintFunc()
	white := color.New(color.FgWhite).SprintFunc()

	fmt.Println()
	fmt.Printf("%s : %s\n", cyan("Service    "), white(cfg.App.Name))
	fmt.Printf("%s : %s\n", cyan("Version    "), white(version))
	fmt.Printf("%s : %s\n", cyan("Objects    "), white(cfg.Storage.Backend+" ("+cfg.Storage.Bucket+")"))
	fmt.Printf("%s : %s\n", cyan("Metadata   "), white(cfg.Metadata.Backend))
	fmt.Println()
}
