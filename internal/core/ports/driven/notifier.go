package driven

import "context"

// Notifier posts a formatted message to a chat destination.
// A nil notifier means chat delivery is disabled; reports still reach the
// console and the archive.
type Notifier interface {
	// Post sends text to the channel and returns the message timestamp/id.
	Post(ctx context.Context, channel, text string) (string, error)

	// Close releases resources.
	Close() error
}

// PRFilesFetcher returns short per-file change summaries for a pull request
// ("path (+adds/-dels)"). Used to enrich PR summaries with diff stats without
// ever feeding raw PR description text into a prompt.
type PRFilesFetcher interface {
	FileSummaries(ctx context.Context, owner, repo string, number int) ([]string, error)
}
