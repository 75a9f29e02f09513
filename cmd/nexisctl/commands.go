package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/nexis/internal/assessment"
	"github.com/opensource-finance/nexis/internal/auth"
	"github.com/opensource-finance/nexis/internal/config"
	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/rules"
)

const localTenant = "local"

var scoreCmd = &cobra.Command{
	Use:   "score <file>",
	Short: "Score a behavioral record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := assess(cmd, args[0])
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), a.ToResponse(), func(w io.Writer) {
			fmt.Fprintf(w, "Subject:\t%s\n", a.SubjectID)
			fmt.Fprintf(w, "Trust score:\t%d (%s risk)\n", a.TrustScore, a.RiskLevel)
			fmt.Fprintf(w, "Points:\t%d / %d\n", a.TotalPoints, a.MaxPoints)
			fmt.Fprintf(w, "Rules:\t%d satisfied, %d partial, %d not met\n", a.RulesSatisfied, a.RulesPartial, a.RulesNotMet)
			fmt.Fprintf(w, "Strength:\t%s\n", a.AssessmentStrength)
			fmt.Fprintf(w, "Rule match:\t%s\n", a.RuleMatchLevel)
			fmt.Fprintf(w, "Potential:\t%d\n", a.PotentialScore)
		})
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <file>",
	Short: "Show the ranked factors behind a score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := assess(cmd, args[0])
		if err != nil {
			return err
		}
		out := map[string]any{
			"trustScore": a.TrustScore,
			"factors":    a.Factors,
			"summary":    a.Summary,
			"metrics":    assessment.Metrics(&a.Record),
		}
		return render(cmd.OutOrStdout(), out, func(w io.Writer) {
			fmt.Fprintf(w, "Trust score %d\n\n", a.TrustScore)
			fmt.Fprintln(w, "#\tRULE\tTYPE\tIMPACT\tPOINTS\tTITLE")
			for _, f := range a.Factors {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\t%s\n", f.Rank, f.RuleID, f.Type, f.Impact, f.PointsEarned, f.MaxPoints, f.Title)
			}
			fmt.Fprintln(w)
			for _, f := range a.Factors {
				fmt.Fprintf(w, "%s\t%s\n", f.RuleID, f.Description)
			}
		})
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Show recommendations and the improvement roadmap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := assess(cmd, args[0])
		if err != nil {
			return err
		}
		steps := assessment.Roadmap(a)
		out := map[string]any{
			"currentScore":    a.TrustScore,
			"potentialScore":  a.PotentialScore,
			"recommendations": a.Recommendations,
			"roadmap":         steps,
		}
		return render(cmd.OutOrStdout(), out, func(w io.Writer) {
			fmt.Fprintf(w, "Current score:\t%d\n", a.TrustScore)
			fmt.Fprintf(w, "Potential score:\t%d\n\n", a.PotentialScore)
			if len(a.Recommendations) == 0 {
				fmt.Fprintln(w, "Every rule is fully satisfied.")
				return
			}
			fmt.Fprintln(w, "RULE\tIMPACT\tDIFFICULTY\tTIMEFRAME\tACTION")
			for _, r := range a.Recommendations {
				fmt.Fprintf(w, "%s\t+%d\t%s\t%s\t%s\n", r.RuleID, r.ScoreImpact, r.Difficulty, r.Timeframe, r.Action)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "STATUS\tRULE\tSTEP")
			for _, s := range steps {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Status, s.RuleID, s.Title)
			}
		})
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rule catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := rules.Default()
		out := map[string]any{
			"settings":  c.Settings(),
			"maxPoints": c.MaxPoints(),
			"rules":     c.Rules(),
		}
		return render(cmd.OutOrStdout(), out, func(w io.Writer) {
			s := c.Settings()
			fmt.Fprintf(w, "Catalog %s: %d rules, %d points, scores %d-%d\n\n", s.Version, c.Len(), c.MaxPoints(), s.ScoreMin, s.ScoreMax)
			fmt.Fprintln(w, "ID\tCATEGORY\tNAME\tPOLARITY\tTHRESHOLDS\tPOINTS")
			for _, d := range c.Rules() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g/%g/%g\t%d/%d/%d/%d\n",
					d.ID, d.Category, d.Name, d.Polarity,
					d.Thresholds.High, d.Thresholds.Medium, d.Thresholds.Low,
					d.Points.High, d.Points.Medium, d.Points.Low, d.Points.Minimum)
			}
		})
	},
}

var (
	tokenTenant string
	tokenLender string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a lender bearer token",
	Long: `Issue a bearer token for the /lender endpoints.

The signing secret and issuer come from NEXIS_AUTH_SECRET and
NEXIS_AUTH_ISSUER, read from the environment or a .env file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if !cfg.Auth.Enabled() {
			return fmt.Errorf("NEXIS_AUTH_SECRET is not set")
		}

		ttl := cfg.Auth.TokenTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}
		m, err := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer, ttl)
		if err != nil {
			return err
		}

		token, expires, err := m.IssueToken(tokenTenant, tokenLender)
		if err != nil {
			return err
		}
		out := map[string]any{
			"token":     token,
			"tenantId":  tokenTenant,
			"lenderId":  tokenLender,
			"expiresAt": expires.UTC().Format(time.RFC3339),
		}
		return render(cmd.OutOrStdout(), out, func(w io.Writer) {
			fmt.Fprintln(w, token)
		})
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenTenant, "tenant", "", "tenant the lender acts for")
	tokenCmd.Flags().StringVar(&tokenLender, "lender", "", "lender id")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime, defaults to NEXIS_AUTH_TOKEN_TTL")
	_ = tokenCmd.MarkFlagRequired("tenant")
	_ = tokenCmd.MarkFlagRequired("lender")
}

// assess reads a record file and runs it through a local processor.
func assess(cmd *cobra.Command, path string) (*domain.Assessment, error) {
	req, err := readRequest(path, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	if req.SubjectID == "" {
		req.SubjectID = subjectFlag
	}
	if req.SubjectID == "" {
		req.SubjectID = "local-subject"
	}

	p := assessment.NewProcessor(rules.Default(), 0)
	return p.Process(context.Background(), &assessment.Input{
		TenantID:            localTenant,
		SubjectID:           req.SubjectID,
		Record:              req.Record,
		DocumentationMonths: req.DocumentationMonths,
	})
}

// render writes v in the selected output format, or calls text with a
// tab-aligned writer.
func render(w io.Writer, v any, text func(w io.Writer)) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Round-trip through JSON so keys keep their API names.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		text(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}
