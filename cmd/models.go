package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/forgecode/internal/config"
)

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print the configured LLM provider and the client's model catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(), nil)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sys, err := buildSystem(cfg)
			if err != nil {
				return fmt.Errorf("wire system: %w", err)
			}

			// buildProviderClient passes no model catalog to
			// providers.NewClient, so the loop below prints nothing and
			// only the configured llm_provider line appears.
			fmt.Printf("active: %s\n", cfg.LLM.Provider)
			for name, families := range sys.llmClientModels() {
				fmt.Printf("%s:\n", name)
				for _, fam := range families {
					fmt.Printf("  %s: %v\n", fam.Family, fam.Models)
				}
			}
			return nil
		},
	}
}
