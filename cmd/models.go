package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/llm"
)

var (
	modelsProvider string
	modelsCheckKey bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models a provider offers",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().StringVar(&modelsProvider, "provider", "", "Provider: openai, anthropic, google (default from config)")
	modelsCmd.Flags().BoolVar(&modelsCheckKey, "check-key", false, "Only check whether the API key is accepted")
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	vendor, err := llm.ParseVendor(firstNonEmpty(modelsProvider, cfg.LLM.Provider))
	if err != nil {
		exit(exitUsage, err)
	}
	provider, err := providerFactory(cfg)(vendor)
	if err != nil {
		exit(exitUsage, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if modelsCheckKey {
		ok, err := provider.TestKey(ctx)
		switch {
		case err != nil:
			exit(exitUsage, fmt.Errorf("%s", llm.UserMessage(err)))
		case !ok:
			exit(exitUsage, fmt.Errorf("%s rejected the API key", vendor.DisplayName()))
		}
		fmt.Println(successStyle.Render(vendor.DisplayName() + " accepted the API key."))
		return nil
	}

	models, _, err := llm.NewModelLoader(log).Load(ctx, provider)
	if err != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render("Could not fetch models: "+llm.UserMessage(err)))
		fmt.Fprintln(os.Stderr, dimStyle.Render("Showing the built-in list instead."))
		models = llm.FallbackModels(vendor)
	}

	fmt.Println(headingStyle.Render(vendor.DisplayName()))
	def := vendor.DefaultModel()
	for _, m := range models {
		if m == def {
			fmt.Println(m + dimStyle.Render(" (default)"))
			continue
		}
		fmt.Println(m)
	}
	return nil
}
