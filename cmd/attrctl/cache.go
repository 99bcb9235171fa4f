package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Administrative cache operations",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the server's definition cache",
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	client := newClient()

	var result map[string]string
	if err := client.postJSON("/api/v1/admin/cache/clear", nil, &result); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(result)
	}
	fmt.Println("cache cleared")
	return nil
}
