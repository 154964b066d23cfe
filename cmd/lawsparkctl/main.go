// Package main 是 lawsparkctl 命令行工具：迁移数据库、生成向量、检索与问答。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "lawsparkctl",
	Short:         "LawSpark AI maintenance and retrieval tool",
	Long:          "Command line access to the LawSpark embedding pipeline, similarity search and answer synthesis.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline logs")
}

func main() {
	// Ctrl-C 取消正在进行的向量化或检索
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
