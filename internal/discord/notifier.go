package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/NgigiN/fintrack/internal/budget"
)

// Notifier posts budget alerts and monthly reports to a channel.
type Notifier struct {
	sender    Sender
	channelID string
}

func NewNotifier(sender Sender, channelID string) *Notifier {
	return &Notifier{sender: sender, channelID: channelID}
}

func (n *Notifier) SendBudgetAlert(ctx context.Context, alert budget.Alert) error {
	name := alert.UserName
	if name == "" {
		name = alert.UserID
	}
	msg := fmt.Sprintf("**Budget Alert for %s**\nHi %s, you have used %s%% of your monthly budget.\n%s",
		alert.AccountName, name, alert.Status.PercentageUsed.StringFixed(1), formatStatus(alert.AccountName, &alert.Status))
	return n.send(ctx, msg)
}

func (n *Notifier) SendMonthlyReport(ctx context.Context, report *budget.Report) error {
	return n.send(ctx, formatReport(report))
}

func (n *Notifier) send(ctx context.Context, msg string) error {
	if _, err := n.sender.ChannelMessageSend(n.channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to post to channel %s: %w", n.channelID, err)
	}
	return nil
}
