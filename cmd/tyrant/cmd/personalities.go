package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tyrant/src/config"
	"tyrant/src/options"
)

var showPrompt bool

// personalitiesCmd represents the personalities command
var personalitiesCmd = &cobra.Command{
	Use:     "personalities",
	Aliases: []string{"personality", "p"},
	Short:   "Inspect available personalities",
	Long: `Inspect built-in and user personalities.

User packs are TOML files in ` + config.GetPersonalitiesDir() + `.

Examples:
  tyrant personalities list
  tyrant personalities show drill-sergeant --prompt`,
}

var personalitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List personalities in registration order",
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range loadRegistry().List() {
			fmt.Printf("%s %s\n", voiceStyle(p).Render(fmt.Sprintf("%-16s", p.ID)), p.Description)
		}
	},
}

var personalitiesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one personality",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadRegistry().Lookup(args[0])
		if err != nil {
			return err
		}

		fmt.Println(voiceLabel(p))
		fmt.Printf("  id:          %s\n", p.ID)
		fmt.Printf("  description: %s\n", p.Description)
		fmt.Printf("  multiplier:  %.1f\n", p.Multiplier())
		fmt.Printf("  transform:   %v\n", p.Transformer != nil)
		if len(p.RecommendedProviders) > 0 {
			tags := make([]string, 0, len(p.RecommendedProviders))
			for _, tag := range p.RecommendedProviders {
				tags = append(tags, string(tag))
			}
			fmt.Printf("  providers:   %s\n", strings.Join(tags, ", "))
		}
		if p.Version != "" {
			fmt.Printf("  version:     %s (%s)\n", p.Version, p.Author)
		}

		if showPrompt {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			opts := options.Defaults().Merge(settings.Overrides())
			if p.DefaultOptions != nil {
				opts = opts.Merge(*p.DefaultOptions)
			}
			fmt.Println()
			fmt.Println(dimStyle.Render(p.SystemPrompt(opts).Content))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(personalitiesCmd)
	personalitiesCmd.AddCommand(personalitiesListCmd)
	personalitiesCmd.AddCommand(personalitiesShowCmd)

	personalitiesShowCmd.Flags().BoolVar(&showPrompt, "prompt", false, "Print the system prompt rendered with current settings")
}
