// Command achewctl is a thin cobra-based dev CLI against a running
// achewd instance: one process owns pipeline state, this one pokes it
// over HTTP for local testing.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var baseURL string

func main() {
	root := &cobra.Command{
		Use:   "achewctl",
		Short: "drive a running achewd instance from the command line",
	}
	root.PersistentFlags().StringVar(&baseURL, "addr", "http://localhost:8080", "achewd base URL")

	root.AddCommand(
		newCreateCmd(),
		newStateCmd(),
		newCueSourceCmd(),
		newCueSetCmd(),
		newConfigureASRCmd(),
		newChaptersCmd(),
		newSubmitCmd(),
		newExportCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCreateCmd() *cobra.Command {
	var itemID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "start a pipeline run for a library item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/pipeline", map[string]string{"item_id": itemID}, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&itemID, "item", "", "library item id")
	return cmd
}

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "print the current pipeline state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/pipeline", os.Stdout)
		},
	}
}

func newCueSourceCmd() *cobra.Command {
	var sourceID string
	cmd := &cobra.Command{
		Use:   "cue-source",
		Short: "select which cue source drives detection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/cue-source", map[string]string{"source_id": sourceID}, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&sourceID, "id", "", "cue source id")
	return cmd
}

func newCueSetCmd() *cobra.Command {
	var cardinality int
	cmd := &cobra.Command{
		Use:   "cue-set",
		Short: "select a clustered cue set by cardinality",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/cue-set", map[string]int{"cardinality": cardinality}, os.Stdout)
		},
	}
	cmd.Flags().IntVar(&cardinality, "n", 0, "cue set cardinality")
	return cmd
}

func newConfigureASRCmd() *cobra.Command {
	var transcribeOn bool
	var asrID string
	cmd := &cobra.Command{
		Use:   "configure-asr",
		Short: "configure (or skip) transcription before chapter editing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/configure-asr", map[string]any{
				"transcribe_on": transcribeOn, "asr_id": asrID,
			}, os.Stdout)
		},
	}
	cmd.Flags().BoolVar(&transcribeOn, "transcribe", true, "run ASR over every segment")
	cmd.Flags().StringVar(&asrID, "backend", "", "ASR backend id (empty: registry default)")
	return cmd
}

func newChaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chapters",
		Short: "list the current chapter set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/chapters", os.Stdout)
		},
	}
}

func newSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "submit the selected chapters back to the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/submit", nil, os.Stdout)
		},
	}
}

func newExportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "export the current chapter list",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(baseURL + "/api/export/" + format)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, err = io.Copy(os.Stdout, resp.Body)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv, json, or cue")
	return cmd
}

func postJSON(path string, body any, out io.Writer) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	resp, err := http.Post(baseURL+path, "application/json", reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(out, resp.Body)
	fmt.Fprintf(out, "\n%s\n", resp.Status)
	return err
}

func getJSON(path string, out io.Writer) error {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}
