package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"operating-hours/internal/pipeline"
	"operating-hours/internal/report"
)

// maxMessageLen is the Telegram sendMessage text limit.
const maxMessageLen = 4096

// Notifier delivers run summaries.
type Notifier interface {
	Notify(ctx context.Context, run pipeline.Summary) error
}

// TelegramNotifier posts run summaries through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// Notify calls the sendMessage API with the rendered summary.
func (n *TelegramNotifier) Notify(ctx context.Context, run pipeline.Summary) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(run),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("run_id", run.RunID.String()).
		Int("meters", len(run.Outcomes)).
		Msg("run summary sent (Telegram)")
	return nil
}

// RenderMessage formats a run summary as plain text, truncated to the API limit.
func RenderMessage(run pipeline.Summary) string {
	builder := strings.Builder{}
	builder.WriteString("[Operating Hours]\n")
	builder.WriteString(fmt.Sprintf("Run: %s\n", run.RunID))
	builder.WriteString(fmt.Sprintf("Finished: %s UTC\n", run.FinishedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Estimated: %d, no pattern: %d, skipped: %d, failed: %d\n",
		run.Count(pipeline.StatusEstimated),
		run.Count(pipeline.StatusNoPattern),
		run.Count(pipeline.StatusSkipped),
		run.Count(pipeline.StatusFailed)))
	for _, o := range run.Outcomes {
		builder.WriteString(report.Line(o))
		builder.WriteString("\n")
	}

	text := builder.String()
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen-4] + "\n..."
	}
	return text
}

var _ Notifier = (*TelegramNotifier)(nil)
