package fanout

import (
	"fmt"
	"strings"
	"time"

	"github.com/shubh-37/multipost-agent/internal/models"
)

const (
	divider         = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
	timestampLayout = "Jan 02, 2006 at 3:04:05 PM MST"

	AllSucceededLine = "All platforms posted successfully."
	AllFailedLine    = "All posts failed. Check API configurations."
)

// BuildSummary renders the human-readable result of a settled batch
func BuildSummary(report *models.AggregatedReport, at time.Time) string {
	total := len(report.Outcomes)

	var b strings.Builder
	b.WriteString("🚀 Multi-Platform Posting Results\n")
	b.WriteString(divider + "\n\n")
	b.WriteString("📊 Quick Summary:\n")
	fmt.Fprintf(&b, "• Successful: %d/%d\n", report.SuccessCount, total)
	fmt.Fprintf(&b, "• Failed: %d/%d\n\n", report.FailureCount, total)

	for _, outcome := range report.Outcomes {
		if outcome.Success {
			fmt.Fprintf(&b, "✅ %s: Posted successfully\n", outcome.Platform.DisplayName())
		} else {
			fmt.Fprintf(&b, "❌ %s: %s\n", outcome.Platform.DisplayName(), preview(outcome.Message, 50))
		}
	}

	switch batchStatus(report) {
	case BatchAllSucceeded:
		b.WriteString("\n🎉 " + AllSucceededLine + "\n")
	case BatchPartial:
		fmt.Fprintf(&b, "\n⚠️ Partial success: %d/%d platforms.\n", report.SuccessCount, total)
	default:
		b.WriteString("\n💥 " + AllFailedLine + "\n")
	}

	fmt.Fprintf(&b, "\n⏰ Completed at: %s", at.Format(timestampLayout))
	return b.String()
}

// BuildTimeoutSummary renders the response for a batch that hit the deadline
func BuildTimeoutSummary(req models.PostRequest, report *models.AggregatedReport, timeout time.Duration, startedAt time.Time) string {
	var b strings.Builder
	b.WriteString("⏱️ Multi-Platform Posting Timeout\n")
	b.WriteString(divider + "\n\n")
	fmt.Fprintf(&b, "🚀 Not every platform answered within %s.\n\n", timeout)
	b.WriteString("📊 Status:\n")
	fmt.Fprintf(&b, "• Target Platforms: %s\n", joinPlatforms(req.Platforms))
	fmt.Fprintf(&b, "• Settled: %d (%d succeeded)\n", len(report.Outcomes), report.SuccessCount)
	if len(report.Pending) > 0 {
		fmt.Fprintf(&b, "• Cancelled: %s\n", joinPlatforms(report.Pending))
	}
	writeRequestDetails(&b, req)
	b.WriteString("\n⚠️ Note: Cancelled posts may still have reached the platform and may still be processing.\n")
	b.WriteString("Check your social media accounts to confirm successful posting.\n\n")
	fmt.Fprintf(&b, "⏰ Initiated at: %s", startedAt.Format(timestampLayout))
	return b.String()
}

// BuildAcknowledgement renders the immediate reply for a background batch
func BuildAcknowledgement(req models.PostRequest, timeout time.Duration, at time.Time) string {
	var b strings.Builder
	b.WriteString("🚀 Multi-Platform Post Initiated!\n")
	b.WriteString(divider + "\n\n")
	b.WriteString("📊 Processing:\n")
	fmt.Fprintf(&b, "• Platforms: %s\n", joinPlatforms(req.Platforms))
	writeRequestDetails(&b, req)
	fmt.Fprintf(&b, "• Timeout: %s\n", timeout)
	b.WriteString("\n⚡ Posts are being created now...\n")
	b.WriteString("Check your social media accounts in a few moments.\n\n")
	fmt.Fprintf(&b, "⏰ Initiated at: %s", at.Format(timestampLayout))
	return b.String()
}

// BuildErrorSummary renders the reply for a request that could not be dispatched
func BuildErrorSummary(err error, at time.Time) string {
	return fmt.Sprintf("❌ Error in multi-platform posting: %v\n\n"+
		"Please check your API configurations and try again.\n\n"+
		"⏰ Error at: %s", err, at.Format(timestampLayout))
}

func writeRequestDetails(b *strings.Builder, req models.PostRequest) {
	fmt.Fprintf(b, "• Text: %q\n", preview(req.Text, 100))
	fmt.Fprintf(b, "• Length: %d characters\n", len([]rune(req.Text)))
	if req.HasMedia() {
		b.WriteString("• Media: ✅ Included\n")
	} else {
		b.WriteString("• Media: ❌ None\n")
	}
}

func joinPlatforms(ids []models.PlatformID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}

func preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
