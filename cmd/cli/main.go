package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "subsync",
		Short: "Subsync CLI - media library sync and offline downloads",
		Long:  `A command-line interface for the subsync daemon: search the synchronized library, queue downloads, and inspect the transfer pipeline.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:4533", "Daemon URL")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(stopAllCmd)
	rootCmd.AddCommand(offlineCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [kind] [query]",
	Short: "Search the library (songs, albums, artists, playlists)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		kind, query := args[0], args[1]
		offset, _ := cmd.Flags().GetInt("offset")
		noRefresh, _ := cmd.Flags().GetBool("cached-only")

		url := fmt.Sprintf("%s/api/v1/library/%s?q=%s&offset=%d", serverURL, kind, query, offset)
		if noRefresh {
			url += "&refresh=false"
		}

		body := getJSON(url)
		var result struct {
			State     string                   `json:"state"`
			Data      []map[string]interface{} `json:"data"`
			EndOfList bool                     `json:"end_of_list"`
			Error     string                   `json:"error"`
		}
		json.Unmarshal(body, &result)

		if result.Error != "" {
			fmt.Fprintf(os.Stderr, "Warning: %s (showing cached results)\n", result.Error)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE/NAME\tARTIST")
		for _, row := range result.Data {
			title := str(row["title"])
			if title == "" {
				title = str(row["name"])
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", str(row["id"]), truncate(title, 40), str(row["artist"]))
		}
		w.Flush()
		if result.EndOfList {
			fmt.Println("(end of list)")
		}
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [song-id]",
	Short: "Queue a song for offline download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		payload, _ := json.Marshal(map[string]string{"song_id": args[0]})
		resp, err := http.Post(serverURL+"/api/v1/downloads", "application/json", bytes.NewBuffer(payload))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusCreated {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var task map[string]interface{}
		json.Unmarshal(body, &task)
		fmt.Printf("Download queued\n")
		fmt.Printf("Task ID: %s\n", task["id"])
		fmt.Printf("Status:  %s\n", task["status"])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List download tasks",
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")

		url := serverURL + "/api/v1/downloads"
		if status != "" {
			url += "?status=" + status
		}

		body := getJSON(url)
		var tasks []map[string]interface{}
		json.Unmarshal(body, &tasks)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSONG\tSTATUS\tRETRIES\tFILE")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
				truncate(str(t["id"]), 8),
				str(t["song_id"]),
				str(t["status"]),
				t["retry_count"],
				str(t["file_path"]))
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "status",
	Short: "Show library and download statistics",
	Run: func(cmd *cobra.Command, args []string) {
		var lib, dl map[string]interface{}
		json.Unmarshal(getJSON(serverURL+"/api/v1/library/stats"), &lib)
		json.Unmarshal(getJSON(serverURL+"/api/v1/downloads/stats"), &dl)

		fmt.Println("Library:")
		for _, k := range []string{"songs", "albums", "artists", "playlists", "downloaded"} {
			fmt.Printf("  %-11s %v\n", k+":", lib[k])
		}
		fmt.Println("Downloads:")
		for _, k := range []string{"total", "queued", "running", "retry_wait", "completed", "failed"} {
			fmt.Printf("  %-11s %v\n", k+":", dl[k])
		}
	},
}

var stopAllCmd = &cobra.Command{
	Use:   "stop-all",
	Short: "Cancel all queued downloads",
	Run: func(cmd *cobra.Command, args []string) {
		req, _ := http.NewRequest(http.MethodDelete, serverURL+"/api/v1/downloads", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}
		fmt.Println("All queued downloads cancelled. The running download, if any, will finish on its own.")
	},
}

var offlineCmd = &cobra.Command{
	Use:   "offline [kind]",
	Short: "List offline-available entries (songs, albums, artists, playlists)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		url := fmt.Sprintf("%s/api/v1/library/%s?offline=true&refresh=false", serverURL, args[0])
		body := getJSON(url)

		var result struct {
			Data []map[string]interface{} `json:"data"`
		}
		json.Unmarshal(body, &result)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE/NAME\tARTIST")
		for _, row := range result.Data {
			title := str(row["title"])
			if title == "" {
				title = str(row["name"])
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", str(row["id"]), truncate(title, 40), str(row["artist"]))
		}
		w.Flush()
	},
}

func getJSON(url string) []byte {
	resp, err := http.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
		os.Exit(1)
	}
	return body
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	searchCmd.Flags().Int("offset", 0, "Pagination offset")
	searchCmd.Flags().Bool("cached-only", false, "Serve from cache without a remote fetch")
	listCmd.Flags().String("status", "", "Filter by status (queued, running, retry_wait, completed, permanent_failure)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
