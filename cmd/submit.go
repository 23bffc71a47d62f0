package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	triggerURL   string
	triggerToken string
)

// submitCmd speaks the exact §6 trigger protocol over HTTP, the same
// path an external watcher hitting a running `mediagate serve` would
// use — it is not a local shortcut into the store.
var submitCmd = &cobra.Command{
	Use:   "submit <path>",
	Short: "POST a file path to a running mediagate serve instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return postTrigger(args[0])
	},
}

func init() {
	submitCmd.Flags().StringVar(&triggerURL, "url", "http://127.0.0.1:8733/trigger/submit", "trigger endpoint URL")
	submitCmd.Flags().StringVar(&triggerToken, "token", "", "bearer token for the trigger endpoint")
}

func postTrigger(path string) error {
	body, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, triggerURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if triggerToken != "" {
		req.Header.Set("Authorization", "Bearer "+triggerToken)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trigger submit failed: %v", out)
	}
	fmt.Printf("submitted: task_id=%v\n", out["task_id"])
	return nil
}
