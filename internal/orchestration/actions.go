package orchestration

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/JensKSuessmeyer/delta-kusto/internal/config"
	"github.com/JensKSuessmeyer/delta-kusto/internal/gateway"
	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
	"github.com/jedib0t/go-pretty/v6/table"
)

// runActions sends the delta to every configured sink. Pushing to the
// current cluster runs last.
func (r *run) runActions(ctx context.Context, job config.NamedJob, result JobResult, current KustoClient) error {
	action := job.Action
	script := command.RenderScript(result.Delta)
	logger := r.logger().With("job", job.Name)

	if action.FilePath != "" {
		if err := r.files().WriteFile(action.FilePath, script); err != nil {
			return err
		}
		logger.InfoContext(ctx, "delta written", "file", action.FilePath)
	}
	if action.FolderPath != "" {
		files := FolderLayout(result.Delta)
		for _, rel := range sortedPaths(files) {
			if err := r.files().WriteFile(path.Join(action.FolderPath, rel), files[rel]); err != nil {
				return err
			}
		}
		logger.InfoContext(ctx, "delta written", "folder", action.FolderPath, "files", len(files))
	}
	if action.PushToConsole {
		if err := writeConsole(r.console(), job.Name, result, script); err != nil {
			return fmt.Errorf("console: %w", err)
		}
	}
	if action.Blob != nil {
		uploader, err := r.blobUploader(action.Blob.ServiceURL)
		if err != nil {
			return err
		}
		if err := uploader.Upload(ctx, action.Blob.Container, action.Blob.Path, script); err != nil {
			return err
		}
		logger.InfoContext(ctx, "delta uploaded", "container", action.Blob.Container, "path", action.Blob.Path)
	}
	if action.PushToCurrent && len(result.Delta) > 0 {
		if current == nil {
			return fmt.Errorf("pushToCurrent: current source is not a cluster")
		}
		ctx, span := r.tracer().Start(ctx, "delta.push")
		defer span.End()
		if err := current.Execute(ctx, result.Delta); err != nil {
			span.RecordError(err)
			return fmt.Errorf("push to current: %w", err)
		}
		logger.InfoContext(ctx, "delta pushed to current", "commands", len(result.Delta))
	}
	return nil
}

func (r *run) blobUploader(serviceURL string) (BlobUploader, error) {
	if r.NewBlobUploader != nil {
		return r.NewBlobUploader(serviceURL)
	}
	return gateway.NewBlobSink(serviceURL)
}

// FolderLayout splits a delta into one script per entity and action, keyed
// by relative path. Commands sharing a file keep their delta order.
func FolderLayout(delta []command.Command) map[string]string {
	files := map[string]string{}
	for _, cmd := range delta {
		rel := folderPath(cmd)
		if existing, ok := files[rel]; ok {
			files[rel] = existing + "\n\n" + cmd.Script()
		} else {
			files[rel] = cmd.Script()
		}
	}
	return files
}

func folderPath(cmd command.Command) string {
	switch c := cmd.(type) {
	case *command.CreateTable:
		return entityFile("tables/create", c.TableName)
	case *command.AlterMergeTableColumnDocStrings:
		return entityFile("tables/create", c.TableName)
	case *command.DropTable:
		return entityFile("tables/drop", c.TableName)
	case *command.DropTableColumns:
		return entityFile("tables/drop-columns", c.TableName)
	case *command.CreateFunction:
		return entityFile("functions/create", c.FunctionName)
	case *command.DropFunction:
		return entityFile("functions/drop", c.FunctionName)
	case *command.AlterRetentionPolicy:
		return policyFile("create", c.EntityType, c.EntityName)
	case *command.DeleteRetentionPolicy:
		return policyFile("delete", c.EntityType, c.EntityName)
	default:
		return strings.ReplaceAll(string(cmd.Kind()), "_", "-") + ".kql"
	}
}

func policyFile(verb string, entityType command.EntityType, name command.EntityName) string {
	if entityType == command.EntityTypeDatabase {
		return "db/policies/retention/" + verb + ".kql"
	}
	return entityFile("tables/policies/retention/"+verb, name)
}

func entityFile(dir string, name command.EntityName) string {
	return dir + "/" + safeFileName(name.Name()) + ".kql"
}

// safeFileName replaces path separators and characters invalid on common
// file systems.
func safeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return "_"
	}
	return out
}

func sortedPaths(files map[string]string) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func writeConsole(w io.Writer, job string, result JobResult, script string) error {
	if len(result.Delta) == 0 {
		_, err := fmt.Fprintf(w, "Job %s: no changes\n", job)
		return err
	}
	if _, err := fmt.Fprintf(w, "Job %s: %d command(s)\n\n%s\n\n", job, len(result.Delta), script); err != nil {
		return err
	}
	renderSummary(w, result)
	return nil
}

// renderSummary prints command counts per kind and flags lossy kinds.
func renderSummary(w io.Writer, result JobResult) {
	counts := map[command.Kind]int{}
	lossy := map[command.Kind]int{}
	for _, cmd := range result.Delta {
		counts[cmd.Kind()]++
	}
	for _, cmd := range result.DataLoss {
		lossy[cmd.Kind()]++
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"COMMAND", "COUNT", "DATA_LOSS"})
	for _, kind := range command.Kinds() {
		if counts[kind] == 0 {
			continue
		}
		loss := ""
		if lossy[kind] > 0 {
			loss = strconv.Itoa(lossy[kind])
		}
		t.AppendRow(table.Row{kind.FriendlyName(), counts[kind], loss})
	}
	t.Render()
}
