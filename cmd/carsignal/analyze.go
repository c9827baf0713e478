package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/irfndi/carprice-ai-go/internal/models"
	"github.com/irfndi/carprice-ai-go/internal/services"
)

// DefaultQuestion is analysed when neither a question nor a vehicle is given.
const DefaultQuestion = "Should I buy a 2018 Toyota Camry with 45,000 miles in good condition in California?"

// analyzer is the part of the orchestrator the command drives.
type analyzer interface {
	Run(ctx context.Context, q models.VehicleQuery) (*models.AnalysisResult, error)
	RunQuestion(ctx context.Context, question string) (*models.AnalysisResult, error)
}

type analyzeOptions struct {
	query    models.VehicleQuery
	question string
	jsonOut  bool
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one buy-signal analysis",
		Long: `Run the full analysis for a vehicle and print the recommendation with
the output of every action the run invoked. The result cache is bypassed.

Give either --make/--model/--year (with optional listing attributes) or a
free-form --question.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := c.container(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Close()

			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), container.Orchestrator, container.Recommendations, opts)
		},
	}

	cmd.Flags().StringVar(&opts.query.Make, "make", "", "vehicle make")
	cmd.Flags().StringVar(&opts.query.Model, "model", "", "vehicle model")
	cmd.Flags().IntVar(&opts.query.Year, "year", 0, "model year")
	cmd.Flags().IntVar(&opts.query.Mileage, "mileage", services.DefaultMileage, "odometer reading in miles")
	cmd.Flags().StringVar(&opts.query.Condition, "condition", services.DefaultCondition, "excellent, good, fair or poor")
	cmd.Flags().StringVar(&opts.query.Region, "region", services.DefaultRegion, "region of the listing")
	cmd.Flags().StringVarP(&opts.question, "question", "q", "", "free-form question instead of a vehicle")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the full result as JSON")
	cmd.MarkFlagsMutuallyExclusive("question", "make")
	return cmd
}

// queryValidator normalizes a query before it is analysed.
type queryValidator interface {
	Validate(q models.VehicleQuery) (models.VehicleQuery, error)
}

func runAnalyze(ctx context.Context, out io.Writer, a analyzer, v queryValidator, opts analyzeOptions) error {
	var (
		result *models.AnalysisResult
		err    error
	)
	if opts.query.Make != "" {
		q, verr := v.Validate(services.WithDefaults(opts.query))
		if verr != nil {
			return verr
		}
		result, err = a.Run(ctx, q)
	} else {
		question := opts.question
		if question == "" {
			question = DefaultQuestion
		}
		result, err = a.RunQuestion(ctx, question)
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeSummary(out, result)
}

func writeSummary(out io.Writer, r *models.AnalysisResult) error {
	p := message.NewPrinter(language.English)
	rec := r.Recommendation

	p.Fprintf(out, "Recommendation:  %s (%s confidence)\n", rec.Signal, rec.Confidence)
	p.Fprintf(out, "Predicted price: $%.2f\n", rec.PredictedPrice)
	p.Fprintf(out, "30-day forecast: $%.2f\n", rec.Forecast30d)
	p.Fprintf(out, "90-day forecast: $%.2f\n", rec.Forecast90d)
	p.Fprintf(out, "Forecast method: %s\n", rec.ForecastMethod)
	p.Fprintf(out, "Rounds:          %d (%s)\n", r.Rounds, r.Terminated)
	if rec.Rationale != "" {
		p.Fprintf(out, "\n%s\n", rec.Rationale)
	}
	if r.Explanation != "" {
		p.Fprintf(out, "\n%s\n", r.Explanation)
	}

	if len(r.ActionOutputs) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.ActionOutputs))
	for name := range r.ActionOutputs {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "\nAction outputs:")
	for _, name := range names {
		body, err := json.MarshalIndent(r.ActionOutputs[name], "  ", "  ")
		if err != nil {
			return fmt.Errorf("failed to render %s output: %w", name, err)
		}
		fmt.Fprintf(out, "  %s: %s\n", name, body)
	}
	return nil
}
