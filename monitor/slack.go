package monitor

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/pricemesh/pricemesh/config"
)

const fullLogInterval = 24 * time.Hour

type SlackClient struct {
	logger      zerolog.Logger
	lastFullLog time.Time
	client      *slack.Client
	config      config.SlackConfig
}

func NewSlackClient(logger zerolog.Logger, cfg config.SlackConfig) *SlackClient {
	return &SlackClient{
		logger: logger.With().Str("module", "slack").Logger(),
		client: slack.New(cfg.SlackToken),
		config: cfg,
	}
}

// Notify posts critical price errors to the configured channel. Once per
// fullLogInterval the non-critical results are included as a health summary.
func (sc *SlackClient) Notify(priceErrors []PriceError) {
	fullLog := false
	messages := []string{}
	if sc.lastFullLog.Add(fullLogInterval).Before(time.Now()) {
		sc.lastFullLog = time.Now()
		fullLog = true
	}

	for _, priceError := range priceErrors {
		if fullLog || priceError.IsCritical() {
			messages = append(messages, priceError.Message)
		}
	}

	if len(messages) == 0 {
		return
	}

	message := strings.Join(messages, "\n")
	sc.logger.Info().Msg(message)

	if sc.config.SlackToken == "" || sc.config.SlackChannel == "" {
		return
	}
	if _, _, err := sc.client.PostMessage(
		sc.config.SlackChannel, slack.MsgOptionText(message, false),
	); err != nil {
		sc.logger.Err(err).Msg("failed to post slack message")
	}
}
