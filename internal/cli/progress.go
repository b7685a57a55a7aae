package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/signcheck/internal/app"
	"github.com/ayusman/signcheck/internal/store"
)

// NewProgressCmd creates the 'progress' command that prints a learner's
// completed lessons and passed assessments.
func NewProgressCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <subject>",
		Short: "Show a learner's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd.Context())
			if err != nil {
				return err
			}

			st, err := store.Open(store.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN, QueryTimeout: cfg.StoreTimeout()})
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			p, err := st.Progress().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			catalog, err := app.LoadCatalog(cfg)
			if err != nil {
				return err
			}
			type lesson struct {
				ID    int    `json:"id"`
				Title string `json:"title"`
			}
			resp := struct {
				SubjectID        string   `json:"subject_id"`
				CompletedLessons []lesson `json:"completed_lessons"`
				AssessmentsTaken []string `json:"assessments_taken"`
			}{SubjectID: p.SubjectID, CompletedLessons: []lesson{}, AssessmentsTaken: p.PassedAssessments}
			for _, id := range p.CompletedLessons {
				resp.CompletedLessons = append(resp.CompletedLessons, lesson{ID: id, Title: catalog.LessonTitle(id)})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
}
