package orchestration

import (
	"context"
	"fmt"

	"github.com/JensKSuessmeyer/delta-kusto/internal/config"
	"github.com/JensKSuessmeyer/delta-kusto/internal/gateway"
	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
	"github.com/JensKSuessmeyer/delta-kusto/pkg/model"
	"github.com/JensKSuessmeyer/delta-kusto/pkg/snapshot"
)

// KustoClient is the live-cluster surface a job needs.
type KustoClient interface {
	DatabaseSchema(ctx context.Context) (*snapshot.DatabaseSchema, error)
	Execute(ctx context.Context, cmds []command.Command) error
}

// loadedSource is a database model plus the client it came from, if any.
type loadedSource struct {
	model  *model.DatabaseModel
	client KustoClient
}

func (r *run) loadSource(ctx context.Context, source *config.SourceParameterization) (loadedSource, error) {
	if source == nil {
		return loadedSource{model: model.Empty()}, nil
	}
	if source.Adx != nil {
		return r.loadCluster(ctx, source.Adx)
	}
	m, err := r.loadScripts(source.Scripts)
	if err != nil {
		return loadedSource{}, err
	}
	return loadedSource{model: m}, nil
}

func (r *run) loadCluster(ctx context.Context, adx *config.AdxSourceParameterization) (loadedSource, error) {
	ctx, span := r.tracer().Start(ctx, "source.cluster")
	defer span.End()

	client, err := r.kustoClient(adx)
	if err != nil {
		span.RecordError(err)
		return loadedSource{}, err
	}
	schema, err := client.DatabaseSchema(ctx)
	if err != nil {
		span.RecordError(err)
		return loadedSource{}, fmt.Errorf("read %s/%s: %w", adx.ClusterURI, adx.Database, err)
	}
	m, err := model.FromSnapshot(schema)
	if err != nil {
		span.RecordError(err)
		return loadedSource{}, fmt.Errorf("model %s/%s: %w", adx.ClusterURI, adx.Database, err)
	}
	return loadedSource{model: m, client: client}, nil
}

// loadScripts parses every file on its own, concatenates the commands in
// source order and folds them into one model.
func (r *run) loadScripts(scripts []config.SourceFileParameterization) (*model.DatabaseModel, error) {
	var commands []command.Command
	for _, script := range scripts {
		var files []gateway.ScriptFile
		if script.FilePath != "" {
			file, err := r.files().ReadFile(script.FilePath)
			if err != nil {
				return nil, err
			}
			files = append(files, file)
		} else {
			extensions := script.Extensions
			if len(extensions) == 0 && r.Config != nil {
				extensions = r.Config.Scripts.Extensions
			}
			listed, err := r.files().ListFolder(script.FolderPath, extensions)
			if err != nil {
				return nil, err
			}
			files = append(files, listed...)
		}
		for _, file := range files {
			parsed, err := command.ParseScript(file.Content)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", file.Path, err)
			}
			commands = append(commands, parsed...)
		}
	}
	m, err := model.FromCommands(commands)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	return m, nil
}

func (r *run) kustoClient(adx *config.AdxSourceParameterization) (KustoClient, error) {
	if r.NewKustoClient != nil {
		return r.NewKustoClient(adx.ClusterURI, adx.Database)
	}
	if r.tokens == nil {
		return nil, fmt.Errorf("%w: no tokenProvider configured", config.ErrInvalidParameters)
	}
	opts := gateway.KustoOptions{Logger: r.logger()}
	if r.Config != nil {
		opts.Timeout = r.Config.HTTP.Timeout
		opts.Retries = r.Config.HTTP.Retries
		opts.UserAgent = r.Config.HTTP.UserAgent
	}
	return gateway.NewKustoGateway(adx.ClusterURI, adx.Database, r.tokens, opts), nil
}

// newTokenProvider returns nil when the parameters configure none. One
// provider serves every job of a run so login tokens are shared.
func newTokenProvider(cfg *config.Config, params *config.Parameterization) gateway.TokenProvider {
	if params.TokenProvider == nil {
		return nil
	}
	if login := params.TokenProvider.Login; login != nil {
		authority := "https://login.microsoftonline.com"
		if cfg != nil && cfg.Login.Authority != "" {
			authority = cfg.Login.Authority
		}
		return gateway.NewLoginTokenProvider(authority, login.TenantID, login.ClientID, login.Secret, nil)
	}
	static := map[string]string{}
	if cfg != nil {
		for cluster, token := range cfg.Login.StaticTokens {
			static[cluster] = token
		}
	}
	for _, entry := range params.TokenProvider.Tokens {
		static[entry.ClusterURI] = entry.Token
	}
	return gateway.NewStaticTokenProvider(static)
}
