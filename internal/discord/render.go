package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/veilguard/doppel/internal/database/types"
	"github.com/veilguard/doppel/internal/detection/report"
)

// Embed colours by risk band.
const (
	colorHighRisk   = 0xE74C3C
	colorMediumRisk = 0xE67E22
	colorLowRisk    = 0xF1C40F
	colorNeutral    = 0x3498DB
	colorError      = 0x992D22
)

// fieldValueLimit is Discord's per-field character cap.
const fieldValueLimit = 1024

// riskColor picks the embed colour from the highest group confidence.
func riskColor(confidence int) int {
	switch {
	case confidence >= 90:
		return colorHighRisk
	case confidence >= 80:
		return colorMediumRisk
	default:
		return colorLowRisk
	}
}

// buildReportEmbed renders a scan report.
func buildReportEmbed(rep *report.Report) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("Alt Account Scan").
		SetTimestamp(rep.GeneratedAt)

	if len(rep.Groups) == 0 {
		builder.SetColor(colorNeutral).
			SetDescription("No suspected alt-account groups above the confidence threshold.")
	} else {
		builder.SetColor(riskColor(rep.Groups[0].Confidence)).
			SetDescription(fmt.Sprintf("Found **%d** suspected alt-account group(s).", rep.TotalGroups))

		for i, group := range rep.Groups {
			builder.AddField(
				fmt.Sprintf("Group %d — %d%% confidence (%s)", i+1, group.Confidence, group.Risk),
				formatGroup(group, rep.Detailed),
				false,
			)
		}

		if rep.TotalGroups > len(rep.Groups) {
			builder.SetFooterText(fmt.Sprintf("Showing top %d of %d groups", len(rep.Groups), rep.TotalGroups))
		}
	}

	summary := fmt.Sprintf("%d members scanned, %d bots skipped, %d members with sampled activity, took %s",
		rep.Stats.MembersScanned, rep.Stats.BotsSkipped, rep.Stats.MembersSampled,
		rep.Stats.Elapsed.Round(100*time.Millisecond))
	builder.AddField("Scan summary", summary, false)

	if rep.Degraded {
		builder.AddField("Partial results",
			"Some channels or data could not be read; results may be incomplete.", false)
	}

	return builder.Build()
}

// shownEvidenceLimit caps the evidence lines rendered per group; the rest
// collapse into an overflow count.
const shownEvidenceLimit = 5

// shownMemberLimit caps the per-member detail lines rendered per group.
const shownMemberLimit = 5

// formatGroup renders one group's members and evidence, truncated to the
// field limit.
func formatGroup(group report.Group, detailed bool) string {
	var sb strings.Builder

	if detailed && len(group.Members) > 0 {
		for i, member := range group.Members {
			if i == shownMemberLimit {
				sb.WriteString(fmt.Sprintf("… and %d more member(s)\n", len(group.Members)-shownMemberLimit))
				break
			}

			sb.WriteString(fmt.Sprintf("<@%d> `%s` — account %d d old, member for %d d\n",
				member.ID, member.Username, member.AccountAgeDays, member.TenureDays))
		}
	} else {
		mentions := make([]string, len(group.MemberIDs))
		for i, id := range group.MemberIDs {
			mentions[i] = fmt.Sprintf("<@%d>", id)
		}

		sb.WriteString(strings.Join(mentions, ", "))
		sb.WriteString("\n")
	}

	for i, line := range group.Evidence {
		if i == shownEvidenceLimit {
			sb.WriteString(fmt.Sprintf("• … and %d more\n", len(group.Evidence)-shownEvidenceLimit))
			break
		}

		entry := "• " + line + "\n"
		if sb.Len()+len(entry) > fieldValueLimit-32 {
			sb.WriteString("• …")
			break
		}

		sb.WriteString(entry)
	}

	return sb.String()
}

// buildRecentReportsEmbed renders stored groups from earlier scans.
func buildRecentReportsEmbed(groups []*types.AnalysisResult, days int) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("Recent Alt Account Reports")

	if len(groups) == 0 {
		return builder.SetColor(colorNeutral).
			SetDescription(fmt.Sprintf("No flagged groups in the last %d day(s).", days)).
			Build()
	}

	builder.SetColor(riskColor(groups[0].Confidence)).
		SetDescription(fmt.Sprintf("Flagged groups from the last %d day(s).", days))

	for i, group := range groups {
		if i == 10 {
			builder.SetFooterText(fmt.Sprintf("Showing 10 of %d groups", len(groups)))
			break
		}

		mentions := make([]string, len(group.MemberIDs))
		for j, id := range group.MemberIDs {
			mentions[j] = fmt.Sprintf("<@%d>", id)
		}

		builder.AddField(
			fmt.Sprintf("%d%% confidence — <t:%d:R>", group.Confidence, group.CreatedAt.Unix()),
			strings.Join(mentions, ", "),
			false,
		)
	}

	return builder.Build()
}

// buildErrorEmbed renders a command failure.
func buildErrorEmbed(message string) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("Scan Failed").
		SetDescription(message).
		SetColor(colorError).
		Build()
}
