// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the most searched journals",
	Long: `Top reads the per-journal search counters from the key-value store and
prints them, most searched first.`,
	RunE: runTop,
}

func init() {
	topCmd.Flags().IntP("limit", "n", 10, "number of journals to list (0 for all)")
	topCmd.Flags().Bool("json", false, "output as JSON")
	topCmd.Flags().Bool("yaml", false, "output as YAML")
	rootCmd.AddCommand(topCmd)
}

func runTop(cmd *cobra.Command, args []string) error {
	n, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")
	asYAML, _ := cmd.Flags().GetBool("yaml")
	if asJSON && asYAML {
		return fmt.Errorf("--json and --yaml are mutually exclusive")
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

	top, err := a.svc.TopSearches(cmd.Context(), n)
	if err != nil {
		return err
	}

	switch {
	case asJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(top)
	case asYAML:
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(top)
	}

	if len(top) == 0 {
		fmt.Println("No searches recorded.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COUNT\tJOURNAL")
	for _, s := range top {
		fmt.Fprintf(w, "%d\t%s\n", s.Count, s.Name)
	}
	return w.Flush()
}
