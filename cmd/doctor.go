package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nervosnetwork/nervos-bot/internal/brain"
	"github.com/nervosnetwork/nervos-bot/internal/config"
	"github.com/nervosnetwork/nervos-bot/internal/githubapp"
	"github.com/nervosnetwork/nervos-bot/internal/telegram"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify credentials and connectivity",
	Long: `Checks that the configuration loads, the App private key signs, the
App is reachable on the GitHub API, and the Telegram token works.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	allOK := true

	fmt.Println("=== nervos-bot doctor ===")
	fmt.Println()

	fmt.Print("Config ................... ")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		return fmt.Errorf("loading config: %w", err)
	}
	fmt.Println("OK")

	fmt.Print("Reviewer routing ......... ")
	if _, err := brain.New(cfg.Projects); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Printf("OK (%d projects with reviewers)\n", len(cfg.Projects.Reviewers))
	}

	fmt.Print("GitHub App ............... ")
	key, err := cfg.GitHub.PrivateKeyPEM()
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else if provider, err := githubapp.NewClientProvider(cfg.GitHub.AppID, key, cfg.GitHub.APIBaseURL); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else if app, _, err := provider.AppClient().Apps.Get(ctx, ""); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Printf("OK (app %q, id %d)\n", app.GetSlug(), cfg.GitHub.AppID)
	}

	fmt.Print("Telegram ................. ")
	if cfg.Telegram.Token == "" {
		fmt.Println("disabled (no token configured)")
	} else {
		var tgOpts []telegram.Option
		if cfg.Telegram.APIBaseURL != "" {
			tgOpts = append(tgOpts, telegram.WithBaseURL(cfg.Telegram.APIBaseURL))
		}
		tg := telegram.New(cfg.Telegram.Token, tgOpts...)
		if me, err := tg.GetMe(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (@%s)\n", me)
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println("All checks passed.")
		return nil
	}
	return fmt.Errorf("some checks failed")
}
