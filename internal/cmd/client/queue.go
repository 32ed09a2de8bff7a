// Package client contains Cobra CLI commands for leasedkeyq.
package client

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

// NewQueueCommand constructs the `queue` command group and subcommands.
// apiURL yields the server base URL (e.g. http://127.0.0.1:8080).
func NewQueueCommand(apiURL func() string) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q"},
		Short:   "Queue operations (keyed items with lease-based checkout)",
		Long: `Queue operations against a running leasedkeyq server.

Item Lifecycle:
  Available → [get/take] → InFlight → [ack] → Gone
                              ↓ (release or lease expiry)
                          Available

Core Operations:
  put       Insert or update a value under a key
  get       Check out the next item (FIFO) under a lease
  take      Check out a specific key under a lease
  ack       Resolve a lease permanently
  release   Return a leased item to the queue

Inspection:
  peek      Show a key's available value without checking it out
  stats     Show queue counters and key sets
  list      List queues
  create    Create a queue explicitly`,
	}

	queueCmd.AddCommand(
		newQueueCreateCommand(apiURL),
		newQueueListCommand(apiURL),
		newQueuePutCommand(apiURL),
		newQueueGetCommand(apiURL),
		newQueueTakeCommand(apiURL),
		newQueueAckCommand(apiURL),
		newQueueReleaseCommand(apiURL),
		newQueuePeekCommand(apiURL),
		newQueueStatsCommand(apiURL),
	)
	return queueCmd
}

// postJSON posts body to path and decodes the JSON response into out (when
// out is non-nil and the response has a body).
func postJSON(apiURL func() string, path string, body, out any) (int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	resp, err := http.Post(apiURL()+path, "application/json", bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func getJSON(apiURL func() string, path string, out any) error {
	resp, err := http.Get(apiURL() + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newQueueCreateCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			_, err := postJSON(apiURL, "/v1/queues/create", map[string]string{"queue": name}, nil)
			if err != nil {
				return err
			}
			fmt.Println("created:", name)
			return nil
		},
	}
	cmd.Flags().String("name", "default", "Queue name")
	return cmd
}

func newQueueListCommand(apiURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queues",
		RunE: func(_ *cobra.Command, _ []string) error {
			var out struct {
				Queues []string `json:"queues"`
			}
			if err := getJSON(apiURL, "/v1/queues", &out); err != nil {
				return err
			}
			for _, q := range out.Queues {
				fmt.Println(q)
			}
			return nil
		},
	}
}

func newQueuePutCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Insert or update a value under a key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			key, _ := cmd.Flags().GetString("key")
			value, _ := cmd.Flags().GetString("value")
			policy, _ := cmd.Flags().GetString("policy")
			body := map[string]string{
				"queue":  queue,
				"key":    key,
				"value":  base64.StdEncoding.EncodeToString([]byte(value)),
				"policy": policy,
			}
			_, err := postJSON(apiURL, "/v1/queues/put", body, nil)
			return err
		},
	}
	cmd.Flags().String("queue", "default", "Queue name")
	cmd.Flags().String("key", "", "Item key (required)")
	cmd.Flags().String("value", "", "Item value")
	cmd.Flags().String("policy", "update", "In-flight policy: update|reject|buffer")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

type itemOut struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Token string `json:"token"`
}

func printItem(item itemOut) {
	value, err := base64.StdEncoding.DecodeString(item.Value)
	if err != nil {
		value = []byte(item.Value)
	}
	fmt.Printf("key: %s\nvalue: %s\ntoken: %s\n", item.Key, value, item.Token)
}

func newQueueGetCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Check out the next item (FIFO) under a lease",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			waitMs, _ := cmd.Flags().GetInt64("wait-ms")
			leaseMs, _ := cmd.Flags().GetInt64("lease-ttl-ms")
			body := map[string]any{"queue": queue, "wait_ms": waitMs, "lease_ttl_ms": leaseMs}
			var item itemOut
			status, err := postJSON(apiURL, "/v1/queues/get", body, &item)
			if err != nil {
				return err
			}
			if status == http.StatusNoContent {
				fmt.Println("no item available")
				return nil
			}
			printItem(item)
			return nil
		},
	}
	cmd.Flags().String("queue", "default", "Queue name")
	cmd.Flags().Int64("wait-ms", 0, "Wait bound in ms (0 = server default)")
	cmd.Flags().Int64("lease-ttl-ms", 0, "Lease timeout in ms (0 = queue default, negative = none)")
	return cmd
}

func newQueueTakeCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Check out a specific key under a lease",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			key, _ := cmd.Flags().GetString("key")
			waitMs, _ := cmd.Flags().GetInt64("wait-ms")
			leaseMs, _ := cmd.Flags().GetInt64("lease-ttl-ms")
			body := map[string]any{"queue": queue, "key": key, "wait_ms": waitMs, "lease_ttl_ms": leaseMs}
			var item itemOut
			status, err := postJSON(apiURL, "/v1/queues/take", body, &item)
			if err != nil {
				return err
			}
			if status == http.StatusNoContent {
				fmt.Println("key not available")
				return nil
			}
			printItem(item)
			return nil
		},
	}
	cmd.Flags().String("queue", "default", "Queue name")
	cmd.Flags().String("key", "", "Item key (required)")
	cmd.Flags().Int64("wait-ms", 0, "Wait bound in ms (0 = server default)")
	cmd.Flags().Int64("lease-ttl-ms", 0, "Lease timeout in ms (0 = queue default, negative = none)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newQueueAckCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ack",
		Short: "Resolve a lease permanently",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			key, _ := cmd.Flags().GetString("key")
			token, _ := cmd.Flags().GetString("token")
			body := map[string]string{"queue": queue, "key": key, "token": token}
			_, err := postJSON(apiURL, "/v1/queues/ack", body, nil)
			return err
		},
	}
	cmd.Flags().String("queue", "default", "Queue name")
	cmd.Flags().String("key", "", "Item key (required)")
	cmd.Flags().String("token", "", "Lease token (required)")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newQueueReleaseCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Return a leased item to the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			key, _ := cmd.Flags().GetString("key")
			token, _ := cmd.Flags().GetString("token")
			front, _ := cmd.Flags().GetBool("front")
			body := map[string]any{"queue": queue, "key": key, "token": token, "front": front}
			_, err := postJSON(apiURL, "/v1/queues/release", body, nil)
			return err
		},
	}
	cmd.Flags().String("queue", "default", "Queue name")
	cmd.Flags().String("key", "", "Item key (required)")
	cmd.Flags().String("token", "", "Lease token (required)")
	cmd.Flags().Bool("front", false, "Requeue to the front instead of the back")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newQueuePeekCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peek",
		Short: "Show a key's available value without checking it out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			key, _ := cmd.Flags().GetString("key")
			var out struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			path := fmt.Sprintf("/v1/queues/peek?queue=%s&key=%s", queue, key)
			if err := getJSON(apiURL, path, &out); err != nil {
				return err
			}
			value, err := base64.StdEncoding.DecodeString(out.Value)
			if err != nil {
				value = []byte(out.Value)
			}
			fmt.Printf("%s\n", value)
			return nil
		},
	}
	cmd.Flags().String("queue", "default", "Queue name")
	cmd.Flags().String("key", "", "Item key (required)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newQueueStatsCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters and key sets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			var out map[string]any
			if err := getJSON(apiURL, "/v1/queues/stats?queue="+queue, &out); err != nil {
				return err
			}
			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}
	cmd.Flags().String("queue", "default", "Queue name")
	return cmd
}
