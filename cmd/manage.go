package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/api"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/config"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/media"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

// retryCmd, cancelCmd and statusCmd operate on the store directly rather
// than through the trigger endpoint: §6 only defines a submit protocol,
// so these are local administration commands. Against a live `serve`
// process, a retry/cancel here updates the durable row immediately but
// only takes visible effect in that process once it's next picked up —
// on its own queue poll for a cancel (Stop here only reaches the CLI's own
// unstarted pools, not a worker running inside serve) or at the next
// restart's recovery pass for a retry issued while the row isn't
// currently in-flight anywhere.
var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Reset a task's checkpoint state and re-queue it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		return withAdapter(func(ctx context.Context, a *api.Adapter) error {
			return a.Retry(ctx, id)
		}, cmd.Context())
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Stop a task's in-flight worker and mark it cancelled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		return withAdapter(func(ctx context.Context, a *api.Adapter) error {
			return a.Cancel(ctx, id)
		}, cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show one task's state, or every task if no id is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		static, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		s, err := store.Open(static.DBPath)
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		if len(args) == 1 {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			task, err := s.Load(ctx, id)
			if err != nil {
				return err
			}
			printTask(task)
			return nil
		}

		tasks, err := s.ListAll(ctx)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			printTask(t)
		}
		return nil
	},
}

func printTask(t store.Task) {
	var rendered string
	switch t.Status {
	case store.StatusUploaded:
		rendered = color.Green.Sprint(string(t.Status))
	case store.StatusDirty, store.StatusError:
		rendered = color.Red.Sprint(string(t.Status))
	case store.StatusProcessing, store.StatusUploading:
		rendered = color.Blue.Sprint(string(t.Status))
	default:
		rendered = string(t.Status)
	}

	fmt.Printf("#%-5d %-40s %s", t.ID, t.Filename, rendered)
	if t.Stage != "" {
		fmt.Printf(" (%s)", t.Stage)
	}
	if t.Status == store.StatusUploading {
		fmt.Printf(" %d%% %s eta %s", t.Progress, media.HumanBytesPerSec(t.UploadSpeed), media.HumanSeconds(t.UploadETA))
	}
	if t.RetryCount > 0 {
		fmt.Printf(" retries=%d", t.RetryCount)
	}
	fmt.Println()
}

// withAdapter wires a minimal Adapter (store plus two unstarted pools,
// just enough to reach Stop/Enqueue) around the configured store and
// runs fn against it.
func withAdapter(fn func(ctx context.Context, a *api.Adapter) error, ctx context.Context) error {
	static, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	s, err := store.Open(static.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	detectPool := queue.NewPool("detect", s, queue.NewQueue(1), nil, 1, store.StageDetect, logger)
	uploadPool := queue.NewPool("upload", s, queue.NewQueue(1), nil, 1, store.StageUpload, logger)
	a := api.New(s, detectPool, uploadPool, logger)

	return fn(ctx, a)
}
