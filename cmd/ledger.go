package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bennuttall/meme-overflow/internal/config"
	"github.com/bennuttall/meme-overflow/internal/ledger"
	"github.com/bennuttall/meme-overflow/internal/meme"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.LedgerPath()
		db, err := ledger.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer db.Close()

		total, size, err := db.Stats(dbPath)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}
		counts, err := db.SiteCounts()
		if err != nil {
			return fmt.Errorf("reading site counts: %w", err)
		}

		fmt.Println(headerStyle.Render("Ledger"), dimStyle.Render(dbPath))
		fmt.Printf("Published: %d\n", total)
		sites := make([]string, 0, len(counts))
		for site := range counts {
			sites = append(sites, site)
		}
		sort.Strings(sites)
		for _, site := range sites {
			fmt.Printf("  %s: %d\n", site, counts[site])
		}
		fmt.Printf("Size: %s\n", formatBytes(size))
		return nil
	},
}

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage the meme template blacklist",
	Long:  "Blacklisted templates are excluded from random selection. The ledger keeps the list, so it survives restarts.",
}

var blacklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blacklisted templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := ledger.Open(config.LedgerPath())
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer db.Close()

		names, err := db.Blacklist()
		if err != nil {
			return fmt.Errorf("reading blacklist: %w", err)
		}
		if len(names) == 0 {
			fmt.Println("Blacklist is empty.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var blacklistAddCmd = &cobra.Command{
	Use:   "add TEMPLATE",
	Short: "Blacklist a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToUpper(args[0])
		if !meme.IsKnown(name) {
			return fmt.Errorf("unknown template %q (try: meme-overflow blacklist search %s)", name, args[0])
		}
		if meme.HasTrigger(name) {
			return fmt.Errorf("%s is selected by a text trigger and cannot be blacklisted", name)
		}

		db, err := ledger.Open(config.LedgerPath())
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer db.Close()

		if err := db.BlacklistAdd(name); err != nil {
			return err
		}
		fmt.Printf("Blacklisted %s.\n", name)
		return nil
	},
}

var blacklistRemoveCmd = &cobra.Command{
	Use:   "remove TEMPLATE",
	Short: "Remove a template from the blacklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToUpper(args[0])

		db, err := ledger.Open(config.LedgerPath())
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer db.Close()

		removed, err := db.BlacklistRemove(name)
		if err != nil {
			return err
		}
		if !removed {
			fmt.Printf("%s was not blacklisted.\n", name)
			return nil
		}
		fmt.Printf("Removed %s from the blacklist.\n", name)
		return nil
	},
}

var blacklistSearchCmd = &cobra.Command{
	Use:   "search TERM",
	Short: "Search the template catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := ledger.Open(config.LedgerPath())
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer db.Close()

		names, err := db.Blacklist()
		if err != nil {
			return fmt.Errorf("reading blacklist: %w", err)
		}
		blacklisted := make(map[string]bool, len(names))
		for _, name := range names {
			blacklisted[name] = true
		}

		term := strings.ToUpper(args[0])
		found := 0
		for _, name := range meme.Names() {
			if !strings.Contains(name, term) {
				continue
			}
			found++
			if blacklisted[name] {
				fmt.Println(name, dimStyle.Render("(blacklisted)"))
			} else {
				fmt.Println(name)
			}
		}
		if found == 0 {
			fmt.Printf("No templates matching %q.\n", args[0])
		}
		return nil
	},
}

func init() {
	blacklistCmd.AddCommand(blacklistListCmd)
	blacklistCmd.AddCommand(blacklistAddCmd)
	blacklistCmd.AddCommand(blacklistRemoveCmd)
	blacklistCmd.AddCommand(blacklistSearchCmd)
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
