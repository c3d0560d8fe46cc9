package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/searchagent/config"
	"github.com/mohammad-safakhou/searchagent/internal/app"
	"github.com/mohammad-safakhou/searchagent/internal/searcher"
)

func askCMD() *cobra.Command {
	var showTrace bool
	var ask = &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cfg, log.New(os.Stderr, "", log.LstdFlags))
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			emit := func(step searcher.Step) {
				switch step.Kind {
				case searcher.StepThought:
					fmt.Fprintf(os.Stderr, "* %s\n", step.Text)
				case searcher.StepSearchResults:
					fmt.Fprintf(os.Stderr, "* reviewed %d search results\n", len(step.Results))
				}
			}

			result, err := a.Ask(cmd.Context(), question, emit)
			if err != nil {
				return err
			}

			fmt.Println(result.ConciseAnswer)
			fmt.Println()
			fmt.Println(result.DetailedAnswer)
			if len(result.References) > 0 {
				fmt.Println()
				ids := make([]int, 0, len(result.References))
				for id := range result.References {
					ids = append(ids, id)
				}
				sort.Ints(ids)
				for _, id := range ids {
					ref := result.References[id]
					fmt.Printf("[[%d]] %s (%s)\n", id, ref.Title, ref.URL)
				}
			}
			if showTrace {
				raw, err := json.MarshalIndent(result.Trace, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println()
				fmt.Println(string(raw))
			}
			return nil
		},
	}
	ask.Flags().BoolVar(&showTrace, "trace", false, "print the evidence graph trace as JSON")
	return ask
}
