package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-scorer/internal/storage"
)

var applicantCmd = &cobra.Command{
	Use:   "applicant",
	Short: "Manage applicants",
}

var applicantAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an applicant with references to its documents under documents.root",
	Run: func(cmd *cobra.Command, _ []string) {
		addApplicant(cmd)
	},
}

func init() {
	rootCmd.AddCommand(applicantCmd)
	applicantCmd.AddCommand(applicantAddCmd)

	flags := applicantAddCmd.Flags()
	flags.Int64("id", 0, "explicit applicant id (default is assigned by the database)")
	flags.String("name", "", "applicant name")
	flags.String("role", "", "role applied for")
	flags.String("location", "", "applicant location")
	flags.Float64("years", -1, "years of experience (negative means unknown)")
	flags.String("compensation", "", "expected compensation")
	flags.String("resume", "", "resume document reference")
	flags.String("cover-letter", "", "cover letter document reference")
	applicantAddCmd.MarkFlagRequired("name")
}

func addApplicant(cmd *cobra.Command) {
	ctx := context.Background()
	logger := newLogger()
	config := loadConfig(logger)

	flags := cmd.Flags()
	str := func(name string) string {
		v, _ := flags.GetString(name)
		return strings.TrimSpace(v)
	}

	applicant := &storage.Applicant{
		Name:                 str("name"),
		AppliedRole:          str("role"),
		Location:             str("location"),
		ExpectedCompensation: str("compensation"),
		ResumeRef:            str("resume"),
		CoverLetterRef:       str("cover-letter"),
	}
	applicant.ID, _ = flags.GetInt64("id")
	if years, _ := flags.GetFloat64("years"); years >= 0 {
		applicant.YearsExperience = &years
	}

	store, err := openStore(ctx, config.Database)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer store.Close()

	id, err := store.CreateApplicant(ctx, applicant)
	if err != nil {
		logger.Fatal("creating applicant", zap.Error(err))
	}

	logger.Info("applicant created", zap.Int64("applicant_id", id), zap.Bool("has_documents", applicant.HasMaterials()))
}
