package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// crawlNotifier pushes crawl lifecycle events to Discord. It is
// entirely optional: a nil notifier (token or channels unset) makes
// every method a no-op, so callers never have to guard against it.
type crawlNotifier struct {
	session    *discordgo.Session
	channelIDs []string
}

// newCrawlNotifier builds a notifier from DISCORD_BOT_TOKEN and
// DISCORD_CHANNEL_IDS. Returns nil when either is unset, which is the
// normal non-Discord configuration.
func newCrawlNotifier() *crawlNotifier {
	botToken := os.Getenv("DISCORD_BOT_TOKEN")
	channelIDsStr := os.Getenv("DISCORD_CHANNEL_IDS")

	if botToken == "" || channelIDsStr == "" {
		return nil
	}

	var channelIDs []string
	for _, id := range strings.Split(channelIDsStr, ",") {
		trimmedID := strings.TrimSpace(id)
		if trimmedID != "" {
			channelIDs = append(channelIDs, trimmedID)
		}
	}
	if len(channelIDs) == 0 {
		log.Println("⚠️ [Discord] No valid channel IDs found in DISCORD_CHANNEL_IDS. Notifications disabled.")
		return nil
	}

	dg, err := discordgo.New("Bot " + botToken)
	if err != nil {
		log.Printf("❌ [Discord] Error creating Discord session: %v", err)
		return nil
	}
	if err := dg.Open(); err != nil {
		log.Printf("❌ [Discord] Error opening connection: %v", err)
		return nil
	}

	log.Printf("🤖 [Discord] Crawl notifications enabled on %d channel(s).", len(channelIDs))
	return &crawlNotifier{session: dg, channelIDs: channelIDs}
}

func (n *crawlNotifier) close() {
	if n == nil {
		return
	}
	if err := n.session.Close(); err != nil {
		log.Printf("⚠️ [Discord] Error closing Discord connection: %v", err)
	}
}

func (n *crawlNotifier) broadcast(msg string) {
	if n == nil {
		return
	}
	for _, channelID := range n.channelIDs {
		if _, err := n.session.ChannelMessageSend(channelID, msg); err != nil {
			log.Printf("⚠️ [Discord] Failed to send notification to channel %s: %v", channelID, err)
		}
	}
}

func (n *crawlNotifier) crawlStarted(startID, endID, count int) {
	n.broadcast(fmt.Sprintf("🚀 Crawl started: %d species in range [%d, %d].", count, startID, endID))
}

func (n *crawlNotifier) crawlHalted(fatal *FatalCrawlError) {
	n.broadcast(fmt.Sprintf("🛑 Crawl halted on %s: %v\nResume with `%s`", fatal.Resource, fatal.Err, fatal.ResumeCommand))
}

func (n *crawlNotifier) crawlFinished(progress *CrawlProgress) {
	n.broadcast(fmt.Sprintf("✅ Crawl complete: %d species processed, %d encounters added, %d per-item errors.",
		progress.TotalProcessed, progress.TotalAdded, len(progress.Errors)))
}
