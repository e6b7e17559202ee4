// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/journal-checker/internal/lookup"
	"github.com/pdiddy/journal-checker/internal/ui"
	"github.com/pdiddy/journal-checker/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check [journal name]",
	Short: "Look up one journal",
	Long: `Check resolves a journal name against the cached table (exact,
case-insensitive) or, with --mode search, runs a substring search against the
data store. The lookup is counted like an API lookup.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("mode", "exact", "match mode: exact or search")
	checkCmd.Flags().Bool("first", false, "in search mode, print only the first match")
	checkCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	modeFlag, _ := cmd.Flags().GetString("mode")
	first, _ := cmd.Flags().GetBool("first")
	asJSON, _ := cmd.Flags().GetBool("json")

	mode, err := lookup.ParseMode(modeFlag)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(viper.GetViper(), false)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	a.warm(cmd.Context())

	name := strings.Join(args, " ")
	res, err := a.svc.Check(cmd.Context(), lookup.Query{Name: name, Mode: mode, First: first})
	if errors.Is(err, lookup.ErrNotFound) {
		return fmt.Errorf("%q: %s", name, ui.MsgNotInList)
	}
	if err != nil {
		return err
	}

	journals := res.Matches
	if res.Journal != nil {
		journals = []types.Journal{*res.Journal}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if res.Journal != nil {
			return enc.Encode(res.Journal)
		}
		return enc.Encode(journals)
	}
	for _, j := range journals {
		printJournal(j)
	}
	return nil
}

func printJournal(j types.Journal) {
	fmt.Printf("%s\n", j.Name)
	fmt.Printf("  SJR:        %s (%s)\n", ui.FormatSJR(j.SJR), ui.SJRClass(j.SJR))
	fmt.Printf("  Category:   %s\n", j.Category)
	if j.BestQuartile != "" {
		fmt.Printf("  Quartile:   %s (%s)\n", j.BestQuartile, ui.QuartileClass(j.BestQuartile))
	}
}
