package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sfcls/internal/lsp"
)

var lspTrace bool

var lspCmd = &cobra.Command{
	Use:          "lsp",
	Short:        "Run the component language server over stdio",
	SilenceUsage: true,
	RunE:         runLSP,
}

func init() {
	lspCmd.Flags().BoolVar(&lspTrace, "trace-lsp", false, "log analysis scheduling to stderr")
}

func runLSP(cmd *cobra.Command, _ []string) error {
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	// Движки подключаются только во встраиваемом режиме; автономный сервер
	// отдаёт структурные диагностики.
	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		MaxDiagnostics:    maxDiagnostics,
		IncludeSideEffect: true,
		Trace:             lspTrace,
	})
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}
