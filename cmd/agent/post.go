package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shubh-37/multipost-agent/internal/fanout"
	"github.com/shubh-37/multipost-agent/internal/models"
	"github.com/spf13/cobra"
)

var (
	postPlatforms []string
	postMedia     string
	postPrompt    bool
)

var (
	errAllFailed = errors.New("no platform accepted the post")
	errTimedOut  = errors.New("post timed out before every platform answered")
)

var postCmd = &cobra.Command{
	Use:   "post [text]",
	Short: "Publish one post to several platforms and print the results",
	Long: `Publishes the given text to every platform in --platforms concurrently.

With --prompt the text is treated as a natural-language request and the
platforms, media and hashtags are extracted from it.

Example:
  agent post --platforms twitter,threads "Shipping v2 today"
  agent post --prompt "share shipping v2 today on x #launch"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPost,
}

func init() {
	postCmd.Flags().StringSliceVarP(&postPlatforms, "platforms", "p", []string{"twitter", "threads"}, "platforms to publish to")
	postCmd.Flags().StringVar(&postMedia, "media", "", "image URL or data: URL to attach")
	postCmd.Flags().BoolVar(&postPrompt, "prompt", false, "parse the text as a natural-language request")
}

func runPost(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	text := strings.Join(args, " ")

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	req := models.PostRequest{
		Text:      text,
		Platforms: fanout.NormalizePlatforms(postPlatforms),
		MediaRef:  postMedia,
	}
	if postPrompt {
		parsed, err := a.parser.Parse(ctx, text)
		if err != nil {
			return err
		}
		req = *parsed
		if postMedia != "" {
			req.MediaRef = postMedia
		}
	}

	if _, err := fanout.NormalizeRequest(req); err != nil {
		return err
	}

	report := a.orchestrator.PublishToAll(ctx, req)
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), report.Summary); err != nil {
		return err
	}

	return reportError(report)
}

// reportError turns a batch with nothing published into a non-zero exit
func reportError(report *models.AggregatedReport) error {
	switch {
	case report.TimedOut:
		return errTimedOut
	case report.SuccessCount == 0:
		return errAllFailed
	default:
		return nil
	}
}
