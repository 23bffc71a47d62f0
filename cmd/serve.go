package cmd

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/api"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/config"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/supervisor"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/transcribe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detect/upload pipeline and the trigger endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	static, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	s, err := store.Open(static.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persisted, err := s.GetConfig(ctx)
	if err != nil {
		return err
	}
	cfg := store.Resolve(persisted, nil)

	transcriber := transcribe.New(
		transcribe.NewCloudProvider(3, 60*time.Second),
		transcribe.NewLocalProvider(static.DockerContainer),
	)

	detectQueue := queue.NewQueue(256)
	uploadQueue := queue.NewQueue(256)

	var notifier supervisor.Notifier
	if cfg.NotifyWebhook != "" {
		notifier = supervisor.NewWebhookNotifier(cfg.NotifyWebhook)
	}
	sv := supervisor.New(s, nil, nil, notifier, logger)

	notify := func(taskID int, filename, kind, reason string) {
		if kind == "uploaded" && !cfg.NotifyUploadSuccess {
			return
		}
		if (kind == "dirty" || kind == "error") && !cfg.NotifyErrors {
			return
		}
		sv.Dispatch(ctx, supervisor.Event{TaskID: taskID, Filename: filename, Kind: kind, Reason: reason})
	}

	detectRunner := &queue.DetectRunner{
		Store:       s,
		Transcriber: transcriber,
		FFmpegPath:  static.FFmpegPath,
		FFprobePath: static.FFprobePath,
		RclonePath:  static.RclonePath,
	}
	detectPool := queue.NewPool("detect", s, detectQueue, detectRunner, cfg.ConcurrencyDetect, store.StageDetect, logger)
	detectPool.Notify = notify

	uploadRunner := &queue.UploadRunner{
		Store:       s,
		FFmpegPath:  static.FFmpegPath,
		FFprobePath: static.FFprobePath,
		RclonePath:  static.RclonePath,
		ScanRoot:    static.ScanRoot,
		RemoteDest:  api.RemoteDest(static.ScanRoot, cfg.RcloneRemote),
		Notify:      notify,
	}
	uploadPool := queue.NewPool("upload", s, uploadQueue, uploadRunner, cfg.ConcurrencyUpload, store.StageUpload, logger)
	uploadPool.Notify = notify

	sv.Detect, sv.Upload = detectPool, uploadPool

	adapter := api.New(s, detectPool, uploadPool, logger)

	host, portStr, err := net.SplitHostPort(static.ListenAddr)
	if err != nil {
		host, portStr = "127.0.0.1", "8733"
	}
	serverCfg := api.DefaultConfig()
	serverCfg.Host = host
	if p, err := strconv.Atoi(portStr); err == nil {
		serverCfg.Port = p
	}
	serverCfg.Token = static.APIToken

	srv, err := api.NewServer(serverCfg, adapter, logger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Shutdown()

	logger.Info().Int("port", srv.GetPort()).Msg("mediagate serving")
	return sv.Start(ctx)
}
