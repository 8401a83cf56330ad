// Package orchestration runs the jobs of a parameter file: it loads both
// sides of each job, computes the delta and hands it to the configured
// actions.
package orchestration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JensKSuessmeyer/delta-kusto/internal/config"
	"github.com/JensKSuessmeyer/delta-kusto/internal/gateway"
	"github.com/JensKSuessmeyer/delta-kusto/internal/telemetry"
	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
	"github.com/JensKSuessmeyer/delta-kusto/pkg/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// BlobUploader stores a rendered delta in blob storage.
type BlobUploader interface {
	Upload(ctx context.Context, container, path, content string) error
}

// DeltaOrchestration wires gateways into delta jobs. Zero-valued fields fall
// back to the OS file system, stdout, the default logger and real gateways.
type DeltaOrchestration struct {
	Config  *config.Config
	Files   *gateway.FileGateway
	Console io.Writer
	Logger  *slog.Logger
	Tracer  trace.Tracer

	// NewKustoClient replaces the HTTP gateway, mostly for tests.
	NewKustoClient func(clusterURI, database string) (KustoClient, error)
	// NewBlobUploader replaces the azblob sink.
	NewBlobUploader func(serviceURL string) (BlobUploader, error)
}

// JobResult summarizes one finished job.
type JobResult struct {
	Name     string
	Delta    []command.Command
	DataLoss []command.Command
}

type run struct {
	*DeltaOrchestration
	params *config.Parameterization
	tokens gateway.TokenProvider
}

// Run loads the parameter file, applies overrides and runs every job by
// priority, then name. The first failing job stops the run.
func (o *DeltaOrchestration) Run(ctx context.Context, parameterPath string, overrides []string) ([]JobResult, error) {
	ctx, span := o.tracer().Start(ctx, "delta.run")
	defer span.End()

	file, err := o.files().ReadFile(parameterPath)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	params, err := config.ParseParameters([]byte(file.Content), overrides)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%s: %w", parameterPath, err)
	}
	r := &run{DeltaOrchestration: o, params: params, tokens: newTokenProvider(o.Config, params)}

	jobs := params.SortedJobs()
	o.logger().InfoContext(ctx, "starting delta run", "parameters", parameterPath, "jobs", len(jobs))
	results := make([]JobResult, 0, len(jobs))
	for _, job := range jobs {
		result, err := r.runJob(ctx, job)
		if err != nil {
			span.RecordError(err)
			return results, fmt.Errorf("job %s: %w", job.Name, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *run) runJob(ctx context.Context, job config.NamedJob) (JobResult, error) {
	ctx, span := r.tracer().Start(ctx, "delta.job", trace.WithAttributes(attribute.String("job", job.Name)))
	defer span.End()
	logger := r.logger().With("job", job.Name)

	var current, target loadedSource
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = r.loadSource(gctx, job.Current)
		if err != nil {
			return fmt.Errorf("current: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		target, err = r.loadSource(gctx, job.Target)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return JobResult{}, err
	}

	delta, err := model.ComputeDelta(current.model, target.model)
	if err != nil {
		span.RecordError(err)
		return JobResult{}, fmt.Errorf("compute delta: %w", err)
	}
	result := JobResult{
		Name:     job.Name,
		Delta:    delta,
		DataLoss: model.DataLoss(current.model, delta),
	}
	span.SetAttributes(attribute.Int("delta.commands", len(delta)), attribute.Int("delta.lossy", len(result.DataLoss)))
	logger.InfoContext(ctx, "delta computed", "commands", len(delta), "lossy", len(result.DataLoss))

	if len(result.DataLoss) > 0 {
		if r.params.FailIfDataLoss {
			err := &DataLossError{Job: job.Name, Commands: result.DataLoss}
			span.RecordError(err)
			return result, err
		}
		logger.WarnContext(ctx, "delta drops or reshapes data", "commands", len(result.DataLoss))
	}

	if err := r.runActions(ctx, job, result, current.client); err != nil {
		span.RecordError(err)
		return result, err
	}
	return result, nil
}

func (o *DeltaOrchestration) files() *gateway.FileGateway {
	if o.Files == nil {
		o.Files = gateway.NewFileGateway(nil)
	}
	return o.Files
}

func (o *DeltaOrchestration) console() io.Writer {
	if o.Console == nil {
		return os.Stdout
	}
	return o.Console
}

func (o *DeltaOrchestration) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *DeltaOrchestration) tracer() trace.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}
	service := "delta-kusto"
	if o.Config != nil && o.Config.Telemetry.ServiceName != "" {
		service = o.Config.Telemetry.ServiceName
	}
	return telemetry.Tracer(service)
}
