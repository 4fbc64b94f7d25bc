package main

import (
	"fmt"
	"os"
	"path/filepath"

	"secure_chat_service/internal/client/api"
	clientconfig "secure_chat_service/internal/client/config"
	"secure_chat_service/internal/client/offlinequeue"
	"secure_chat_service/internal/client/transport"
	"secure_chat_service/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagServer string
	flagToken  string
	flagQueue  string
	flagDebug  bool

	cfg     *clientconfig.Client
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:           "chat_client",
	Short:         "End-to-end encrypted chat client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := flagConfig
		if path == "" {
			p, err := clientconfig.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		c, err := clientconfig.Load(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		// flags 優先於設定檔
		if flagServer != "" {
			c.ServerURL = flagServer
		}
		if flagToken != "" {
			c.Token = flagToken
		}
		if flagQueue != "" {
			c.QueueDB = flagQueue
		}
		cfg, cfgPath = c, path

		if cfg.LogDir != "" {
			logger.Log = logger.Initialize("chat_client", cfg.LogDir, logger.WithoutConsole())
			logger.Log.SetDebugMode(flagDebug)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.secure_chat/client.toml)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "chat server base URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token")
	rootCmd.PersistentFlags().StringVar(&flagQueue, "queue-db", "", "offline queue sqlite file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "debug logging")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current settings (file + flags) to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := clientconfig.Save(cfgPath, cfg); err != nil {
			return err
		}
		fmt.Println("wrote", cfgPath)
		return nil
	},
}

func main() {
	defer logger.Log.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newAPI() *api.Client {
	return api.New(cfg.ServerURL, cfg.Token)
}

func newTransport() *transport.Client {
	return transport.New(transport.Config{
		URL:              cfg.ServerURL,
		Token:            cfg.Token,
		ReconnectInitial: cfg.Reconnect.Initial.Duration,
		ReconnectMax:     cfg.Reconnect.Max.Duration,
	})
}

func openQueue() (*offlinequeue.Queue, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.QueueDB), 0700); err != nil {
		return nil, nil, err
	}
	db, err := offlinequeue.Open(cfg.QueueDB)
	if err != nil {
		return nil, nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return offlinequeue.New(db, cfg.MaxRetries), func() { _ = db.Close() }, nil
}

func requireConversation(id string) error {
	if id == "" {
		return fmt.Errorf("--conversation is required")
	}
	return nil
}
