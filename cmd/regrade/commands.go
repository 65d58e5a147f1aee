package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/config"
	"github.com/noah-isme/gema-grading/internal/database"
	"github.com/noah-isme/gema-grading/internal/repository"
	"github.com/noah-isme/gema-grading/internal/service"
	"github.com/noah-isme/gema-grading/pkg/logger"
)

// runtime carries what a subcommand needs once configuration is resolved.
type runtime struct {
	grading service.GradingService
	logger  zerolog.Logger
	close   func()
}

type runtimeFactory func(cmd *cobra.Command) (*runtime, error)

func newRootCommand() *cobra.Command {
	return newRootCommandWithFactory(loadRuntime)
}

func newRootCommandWithFactory(factory runtimeFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "regrade",
		Short:         "Re-run automatic grading outside the HTTP API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().Uint("actor-id", 0, "user id recorded in the activity log")

	root.AddCommand(&cobra.Command{
		Use:   "submission <id>",
		Short: "Grade a single finished submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rt, err := factory(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.grading.GradeSubmission(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("grade submission %d: %w", id, err)
			}
			rt.logger.Info().Uint("submission_id", id).Float64("score", result.Score).Msg("submission graded")
			return writeJSON(cmd.OutOrStdout(), result)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "assessment <id>",
		Short: "Re-grade every finished submission of an assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			actorID, err := cmd.Flags().GetUint("actor-id")
			if err != nil {
				return err
			}
			rt, err := factory(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.grading.RegradeAssessment(cmd.Context(), id, service.ActivityActor{ID: actorID, Role: "system"})
			if err != nil {
				return fmt.Errorf("regrade assessment %d: %w", id, err)
			}
			rt.logger.Info().
				Uint("assessment_id", id).
				Int("graded", result.Graded).
				Int("failed", result.Failed).
				Msg("assessment regraded")
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d submissions failed to grade", result.Failed)
			}
			return nil
		},
	})

	return root
}

func parseID(value string) (uint, error) {
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid identifier %q", value)
	}
	return uint(parsed), nil
}

func writeJSON(out io.Writer, value interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.NewWithWriter(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Service: "regrade",
	}, cmd.ErrOrStderr())

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, "regrade")
		if err != nil {
			log.Warn().Err(err).Msg("nats unavailable, grading events disabled")
			natsConn = nil
		}
	}

	return &runtime{
		grading: newGradingService(db, natsConn, cfg, log),
		logger:  log,
		close: func() {
			if natsConn != nil {
				_ = natsConn.Drain()
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}, nil
}

func newGradingService(db *gorm.DB, conn *nats.Conn, cfg config.Config, log zerolog.Logger) service.GradingService {
	return service.NewGradingService(
		repository.NewSubmissionRepository(db),
		repository.NewAssessmentRepository(db),
		repository.NewGradeRepository(db),
		service.NewNATSEventPublisher(conn, cfg.NATSSubject),
		service.NewActivityService(repository.NewActivityLogRepository(db), log),
		service.GradingServiceConfig{BatchSize: cfg.RegradeBatchSize},
		log,
	)
}
