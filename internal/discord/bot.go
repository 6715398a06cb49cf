package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/veilguard/doppel/internal/detection"
	"go.uber.org/zap"
)

// Slash command names.
const (
	AltCheckCommandName   = "altcheck"
	AltReportsCommandName = "altreports"
)

// scanTimeout bounds one slash-command-initiated scan.
const scanTimeout = 10 * time.Minute

// defaultReportDays is the /altreports lookback when the caller omits one.
const defaultReportDays = 7

// Bot connects the detection engine to the Discord gateway and serves the
// moderation slash commands.
type Bot struct {
	client  bot.Client
	scanner *detection.Scanner
	logger  *zap.Logger
}

// New builds the Discord client with the gateway intents and event listeners
// the scan commands need.
func New(token string, scanner *detection.Scanner, logger *zap.Logger) (*Bot, error) {
	b := &Bot{
		scanner: scanner,
		logger:  logger.Named("bot"),
	}

	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		}),
	)
	if err != nil {
		return nil, err
	}

	b.client = client

	return b, nil
}

// Start registers the slash commands globally and opens the gateway.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	_, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        AltCheckCommandName,
			Description: "Scan this server for suspected alt-account groups",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "threshold",
					Description: "Minimum confidence (0-100) for a group to be reported",
				},
				discord.ApplicationCommandOptionBool{
					Name:        "detailed",
					Description: "Include per-member account and tenure details",
				},
				discord.ApplicationCommandOptionBool{
					Name:        "fresh",
					Description: "Ignore cached analysis and run everything fresh",
				},
				discord.ApplicationCommandOptionBool{
					Name:        "stored",
					Description: "Re-analyse the last stored snapshot instead of fetching from Discord",
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        AltReportsCommandName,
			Description: "List flagged alt-account groups from recent scans",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "days",
					Description: "How many days back to look (default 7)",
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	return b.client.OpenGateway(ctx)
}

// Close gracefully shuts down the gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
}

// handleApplicationCommandInteraction defers the response and dispatches the
// command in a goroutine so the gateway loop never blocks on a scan.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		commandName := event.SlashCommandInteractionData().CommandName()
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in command handler",
					zap.String("command", commandName),
					zap.Any("panic", r))
				b.respondEmbed(event, buildErrorEmbed("Internal error. Please report this to an administrator."))
			}

			b.logger.Debug("Command handled",
				zap.String("command", commandName),
				zap.Duration("duration", time.Since(start)))
		}()

		switch commandName {
		case AltCheckCommandName:
			b.handleAltCheck(event)
		case AltReportsCommandName:
			b.handleAltReports(event)
		default:
			b.respondEmbed(event, buildErrorEmbed("This command is not available."))
		}
	}()
}

// handleAltCheck runs a full guild scan and renders its report.
func (b *Bot) handleAltCheck(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		b.respondEmbed(event, buildErrorEmbed("This command only works inside a server."))
		return
	}

	if event.Member() == nil || !event.Member().Permissions.Has(discord.PermissionManageGuild) {
		b.respondEmbed(event, buildErrorEmbed("You need the Manage Server permission to run a scan."))
		return
	}

	data := event.SlashCommandInteractionData()
	detailed, _ := data.OptBool("detailed")
	fresh, _ := data.OptBool("fresh")
	stored, _ := data.OptBool("stored")

	var threshold *int
	if value, ok := data.OptInt("threshold"); ok {
		threshold = &value
	}

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	opts := detection.ScanOptions{
		Threshold:   threshold,
		BypassCache: fresh,
		Detailed:    detailed,
		Progress: func(phase detection.Phase) {
			b.respondContent(event, fmt.Sprintf("Scanning: %s…", phase))
		},
	}

	run := b.scanner.Scan
	if stored {
		run = b.scanner.Rescan
	}

	rep, err := run(ctx, uint64(*guildID), opts)
	if err != nil {
		b.logger.Warn("Scan failed",
			zap.Uint64("guildID", uint64(*guildID)),
			zap.Error(err))
		b.respondEmbed(event, buildErrorEmbed(scanErrorMessage(err)))

		return
	}

	b.respondEmbed(event, buildReportEmbed(rep))
}

// handleAltReports lists stored groups from recent scans.
func (b *Bot) handleAltReports(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		b.respondEmbed(event, buildErrorEmbed("This command only works inside a server."))
		return
	}

	days, ok := event.SlashCommandInteractionData().OptInt("days")
	if !ok || days <= 0 {
		days = defaultReportDays
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	groups, err := b.scanner.RecentReports(ctx, uint64(*guildID), time.Duration(days)*24*time.Hour)
	if err != nil {
		b.logger.Error("Failed to list recent reports",
			zap.Uint64("guildID", uint64(*guildID)),
			zap.Error(err))
		b.respondEmbed(event, buildErrorEmbed("Failed to load recent reports. Please try again."))

		return
	}

	b.respondEmbed(event, buildRecentReportsEmbed(groups, days))
}

// scanErrorMessage maps engine errors onto moderator-friendly text.
func scanErrorMessage(err error) string {
	switch {
	case errors.Is(err, detection.ErrScanBusy):
		return "A scan is already running for this server. Try again in a few minutes."
	case errors.Is(err, detection.ErrNotEnoughMembers):
		return "This server has too few non-bot members to analyse."
	case errors.Is(err, detection.ErrInvalidThreshold):
		return "The confidence threshold must be between 0 and 100."
	case errors.Is(err, detection.ErrPermissionDenied):
		return "The bot is missing permission to read the member list."
	case errors.Is(err, detection.ErrTransportFailure):
		return "Discord did not return the member list. Please try again later."
	case errors.Is(err, detection.ErrPersistenceFailed):
		return "Failed to store the member snapshot. Please try again later."
	case errors.Is(err, detection.ErrNoStoredSnapshot):
		return "No stored snapshot yet. Run a full scan first."
	default:
		return "The scan failed unexpectedly. Please try again."
	}
}

func (b *Bot) respondEmbed(event *events.ApplicationCommandInteractionCreate, embed discord.Embed) {
	_, err := b.client.Rest().UpdateInteractionResponse(
		event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().SetContent("").SetEmbeds(embed).Build(),
	)
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

func (b *Bot) respondContent(event *events.ApplicationCommandInteractionCreate, content string) {
	_, err := b.client.Rest().UpdateInteractionResponse(
		event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().SetContent(content).Build(),
	)
	if err != nil {
		b.logger.Debug("Failed to push progress update", zap.Error(err))
	}
}
