package main

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/draftzen/internal/model"
)

var batchFile string

// batchJob is one enrichment unit from the jobs file. Operations run in
// listed order against a freshly created draft.
type batchJob struct {
	Account     string   `yaml:"account"`
	Topic       string   `yaml:"topic"`
	URLs        []string `yaml:"urls"`
	SeedKeyword string   `yaml:"seed_keyword"`
	Operations  []string `yaml:"operations"`
}

type batchSpec struct {
	Jobs []batchJob `yaml:"jobs"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run enrichment jobs from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(batchFile)
		if err != nil {
			return eris.Wrap(err, "batch: read jobs file")
		}

		var spec batchSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return eris.Wrap(err, "batch: parse jobs file")
		}
		if len(spec.Jobs) == 0 {
			return eris.New("batch: jobs file has no jobs")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var failed atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrentAccounts)

		for _, job := range spec.Jobs {
			job := job
			g.Go(func() error {
				if err := runBatchJob(gctx, env, job); err != nil {
					failed.Add(1)
					zap.L().Error("batch job failed",
						zap.String("account", job.Account),
						zap.String("topic", job.Topic),
						zap.Error(err))
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		done := int64(len(spec.Jobs)) - failed.Load()
		zap.L().Info("batch complete", zap.Int64("succeeded", done), zap.Int64("failed", failed.Load()))
		if failed.Load() > 0 {
			return eris.Errorf("batch: %d of %d jobs failed", failed.Load(), len(spec.Jobs))
		}
		return nil
	},
}

func runBatchJob(ctx context.Context, env *appEnv, job batchJob) error {
	if job.Account == "" || job.Topic == "" {
		return eris.New("job needs account and topic")
	}

	if _, err := env.Ledger.EnsureAccount(ctx, job.Account); err != nil {
		return err
	}

	var candidates []model.CandidateDocument
	for i, u := range job.URLs {
		candidates = append(candidates, model.CandidateDocument{Reference: u, PriorityRank: i + 1})
	}

	draft, err := env.Store.CreateDraft(ctx, &model.Draft{
		AccountID:    job.Account,
		TopicKeyword: job.Topic,
		Candidates:   candidates,
	})
	if err != nil {
		return err
	}

	seed := job.SeedKeyword
	if seed == "" {
		seed = job.Topic
	}

	ops := job.Operations
	if len(ops) == 0 {
		ops = []string{"outline", "description"}
	}

	for _, op := range ops {
		switch op {
		case "outline":
			_, err = env.Orch.ExtractOutline(ctx, job.Account, draft.ID)
		case "description":
			_, err = env.Orch.GenerateDescription(ctx, job.Account, draft.ID)
		case "keywords":
			_, err = env.Orch.KeywordSuggestions(ctx, job.Account, draft.ID, seed)
		case "include":
			_, err = env.Orch.KeywordsToInclude(ctx, job.Account, draft.ID, seed)
		default:
			return eris.Errorf("unknown operation %q", op)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "jobs.yaml", "path to the YAML jobs file")
	rootCmd.AddCommand(batchCmd)
}
