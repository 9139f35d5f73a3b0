package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/model"
	"github.com/spigell/job-matcher/internal/recommend"
)

const (
	PromptNextPage = "Next page"
	PromptPrevPage = "Previous page"
	PromptDetails  = "Show applicant details"
	PromptExit     = "Exit"
	PromptBack     = "back"
)

var rankCmd = &cobra.Command{
	Use:   "rank <job-id>",
	Short: "Show the applicants of a job ordered by match score",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, config := setup()

		query, err := rankQuery(cmd, args[0])
		if err != nil {
			logger.Fatal("parsing flags", zap.Error(err))
		}

		p, err := newPipeline(ctx, config, logger, false)
		if err != nil {
			logger.Fatal("preparing the matching pipeline", zap.Error(err))
		}
		defer p.Close()

		ranker := p.ranker()

		interactive, _ := cmd.Flags().GetBool("interactive")
		if !interactive {
			page, err := ranker.Rank(ctx, query)
			if err != nil {
				logger.Fatal("ranking applicants", zap.Error(err))
			}
			printRankPage(cmd.OutOrStdout(), page)
			return
		}

		if err := browse(ctx, ranker, query, cmd.OutOrStdout()); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().Int("page", 1, "page number, starting at 1")
	rankCmd.Flags().Int("limit", 0, "applicants per page (default is matching.ranker.default-limit)")
	rankCmd.Flags().String("sort", string(recommend.SortScore), "sort field: score, applied_at, experience or name")
	rankCmd.Flags().String("order", string(recommend.Desc), "sort order: asc or desc")
	rankCmd.Flags().BoolP("interactive", "i", false, "browse pages interactively")
}

func rankQuery(cmd *cobra.Command, jobID string) (recommend.RankQuery, error) {
	flags := cmd.Flags()

	page, _ := flags.GetInt("page")
	limit, _ := flags.GetInt("limit")
	sortFlag, _ := flags.GetString("sort")
	orderFlag, _ := flags.GetString("order")

	sort, err := recommend.ParseSortField(sortFlag)
	if err != nil {
		return recommend.RankQuery{}, err
	}
	order, err := recommend.ParseSortOrder(orderFlag)
	if err != nil {
		return recommend.RankQuery{}, err
	}

	return recommend.RankQuery{JobID: jobID, Page: page, Limit: limit, Sort: sort, Order: order}, nil
}

// browse pages through the ranking until the user exits.
func browse(ctx context.Context, ranker *recommend.Ranker, query recommend.RankQuery, w io.Writer) error {
	var page *recommend.RankPage
	reload := true

	for {
		if reload {
			var err error
			page, err = ranker.Rank(ctx, query)
			if err != nil {
				return err
			}
			printRankPage(w, page)
		}
		reload = true

		items := make([]string, 0, 4)
		if page.Page < page.Pages {
			items = append(items, PromptNextPage)
		}
		if page.Page > 1 {
			items = append(items, PromptPrevPage)
		}
		if len(page.Items) > 0 {
			items = append(items, PromptDetails)
		}
		items = append(items, PromptExit)

		prompt := promptui.Select{
			Label: fmt.Sprintf("Page %d of %d", page.Page, max(page.Pages, 1)),
			Items: items,
		}

		_, action, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}

		switch action {
		case PromptNextPage:
			query.Page = page.Page + 1
		case PromptPrevPage:
			query.Page = page.Page - 1
		case PromptDetails:
			if err := showDetails(w, page); err != nil {
				return err
			}
			reload = false
		case PromptExit:
			return nil
		default:
			return fmt.Errorf("invalid action: %s", action)
		}
	}
}

func showDetails(w io.Writer, page *recommend.RankPage) error {
	for {
		items := make([]string, 0, len(page.Items)+1)
		for _, a := range page.Items {
			items = append(items, applicantLabel(a))
		}

		prompt := promptui.Select{
			Label: "Choose an applicant and press ENTER",
			Items: append(items, PromptBack),
		}

		idx, selected, err := prompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		printDetails(w, page.Items[idx])
	}
}

func printRankPage(w io.Writer, page *recommend.RankPage) {
	fmt.Fprintf(w, "job %s: %d applicants, page %d of %d\n", page.JobID, page.Total, page.Page, max(page.Pages, 1))
	if page.Backfilled > 0 || page.BackfillFailed > 0 {
		fmt.Fprintf(w, "scored %d unscored applicants, %d could not be scored\n", page.Backfilled, page.BackfillFailed)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCANDIDATE\tNAME\tSCORE\tEXPERIENCE\tSTATUS\tAPPLIED")
	offset := (page.Page - 1) * page.Limit
	for i, a := range page.Items {
		rec := a.Record
		cand := a.Candidate
		if cand == nil {
			cand = &model.CandidateProfile{}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			offset+i+1,
			rec.CandidateID,
			cand.FullName(),
			rec.MatchScore,
			cand.ExperienceYears,
			rec.Status,
			rec.AppliedAt.Format(time.DateOnly),
		)
	}
	tw.Flush()
}

func printDetails(w io.Writer, a model.Applicant) {
	d := a.Record.Details
	fmt.Fprintf(w, "%s\n", applicantLabel(a))
	fmt.Fprintf(w, "  score:          %d\n", a.Record.MatchScore)
	fmt.Fprintf(w, "  skills match:   %d%%\n", d.SkillsMatch)
	fmt.Fprintf(w, "  location match: %d%%\n", d.LocationMatch)
	fmt.Fprintf(w, "  matched skills: %s\n", strings.Join(d.MatchedSkills, ", "))
	fmt.Fprintf(w, "  missing skills: %s\n", strings.Join(d.MissingSkills, ", "))
	if d.Notes != "" {
		fmt.Fprintf(w, "  notes:          %s\n", d.Notes)
	}
	if a.Record.ResumeURI != "" {
		fmt.Fprintf(w, "  resume:         %s\n", a.Record.ResumeURI)
	}
}

func applicantLabel(a model.Applicant) string {
	name := ""
	if a.Candidate != nil {
		name = a.Candidate.FullName()
	}
	return fmt.Sprintf("%s %s / score %d", a.Record.CandidateID, name, a.Record.MatchScore)
}
