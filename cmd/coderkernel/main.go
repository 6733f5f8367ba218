// Command coderkernel is the CLI entrypoint for the coding-assistant
// kernel. It wires configuration into the kernel's stores and
// registries and exposes subcommands to run a one-shot agent aggregate,
// inspect the dependency graph, plan a version update, and manage
// sessions. It holds no orchestration logic of its own — every
// subcommand is a thin driver over the kernel's public Go API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/coderkernel/pkg/agentkernel"
	"github.com/kadirpekel/coderkernel/pkg/depgraph"
	"github.com/kadirpekel/coderkernel/pkg/hybridindex"
	"github.com/kadirpekel/coderkernel/pkg/kernelconfig"
	"github.com/kadirpekel/coderkernel/pkg/logger"
	"github.com/kadirpekel/coderkernel/pkg/sessionstore"
	"github.com/kadirpekel/coderkernel/pkg/version"
	"github.com/kadirpekel/coderkernel/pkg/versioncoord"
)

// CLI defines the top-level command-line interface.
type CLI struct {
	VersionCmd VersionCmd  `cmd:"" name:"version" help:"Show version information."`
	Validate   ValidateCmd `cmd:"" help:"Validate a kernel configuration file."`
	Graph      GraphCmd    `cmd:"" help:"Inspect the dependency graph declared in a project manifest."`
	Plan       PlanCmd     `cmd:"" help:"Plan a version update and its downstream propagation."`
	Session    SessionCmd  `cmd:"" help:"Manage persisted sessions."`
	Run        RunCmd      `cmd:"" help:"Run a one-shot agent aggregate over a task."`
	Index      IndexCmd    `cmd:"" help:"Chunk a directory and search it with the hybrid index."`

	Config    string `short:"c" help:"Path to kernel config file." type:"path" default:"coderkernel.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or custom)." default:"simple"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("coderkernel"),
		kong.Description("Agent-orchestration kernel for AI-assisted coding."),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		ctx.FatalIfErrorf(err)
	}
	output := os.Stderr
	var cleanup func()
	if cli.LogFile != "" {
		f, fn, err := logger.OpenLogFile(cli.LogFile)
		ctx.FatalIfErrorf(err)
		output = f
		cleanup = fn
	}
	logger.Init(level, output, cli.LogFormat)
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

// VersionCmd prints build version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	v := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			v = info.Main.Version
		}
	}
	fmt.Printf("coderkernel %s\n", v)
	return nil
}

// ValidateCmd validates a kernel config file without running anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := kernelconfig.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("validating %s: %w", cli.Config, err)
	}
	fmt.Printf("%s: ok (%d lsp servers, %d mcp servers, %d agents, %d permission rules)\n",
		cli.Config, len(cfg.LSPServers), len(cfg.MCPServers), len(cfg.Agents), len(cfg.Permission.Rules))
	return nil
}

// GraphCmd inspects a dependency graph manifest and reports topological
// order and any cycles.
type GraphCmd struct {
	Manifest string `arg:"" help:"Path to a JSON manifest of {projects:[...], dependencies:[...]}." type:"path"`
}

type graphManifest struct {
	Projects     []depgraph.Project    `json:"projects"`
	Dependencies []depgraph.Dependency `json:"dependencies"`
}

func (c *GraphCmd) Run(cli *CLI) error {
	data, err := os.ReadFile(c.Manifest)
	if err != nil {
		return err
	}
	var m graphManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}

	g := depgraph.New()
	for _, p := range m.Projects {
		if err := g.AddProject(p); err != nil {
			return err
		}
	}
	for _, d := range m.Dependencies {
		if err := g.AddDependency(d); err != nil {
			return err
		}
	}

	if err := g.DetectCycles(); err != nil {
		fmt.Println("cycle detected:", err)
		return err
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return err
	}
	fmt.Println("build order:")
	for i, name := range order {
		fmt.Printf("  %d. %s\n", i+1, name)
	}
	return nil
}

// PlanCmd plans a version update and shows the propagation order.
type PlanCmd struct {
	Manifest string `arg:"" help:"Path to the same graph manifest Graph accepts." type:"path"`
	Project  string `arg:"" help:"Project to bump."`
	NewVer   string `arg:"" name:"version" help:"New semantic version, e.g. 2.1.0."`
}

func (c *PlanCmd) Run(cli *CLI) error {
	data, err := os.ReadFile(c.Manifest)
	if err != nil {
		return err
	}
	var m graphManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	g := depgraph.New()
	for _, p := range m.Projects {
		if err := g.AddProject(p); err != nil {
			return err
		}
	}
	for _, d := range m.Dependencies {
		if err := g.AddDependency(d); err != nil {
			return err
		}
	}

	coord := versioncoord.New(g)
	for _, p := range m.Projects {
		v, err := version.Parse(p.Version)
		if err != nil {
			return fmt.Errorf("parsing current version of %s: %w", p.Name, err)
		}
		coord.RegisterProject(p.Name, v)
	}

	newVer, err := version.Parse(c.NewVer)
	if err != nil {
		return fmt.Errorf("parsing version: %w", err)
	}

	plan := coord.PlanVersionUpdates([]versioncoord.Update{{Project: c.Project, NewVersion: newVer}})
	if !plan.IsValid {
		for _, e := range plan.ValidationErrors {
			fmt.Println("error:", e)
		}
		return fmt.Errorf("plan invalid for %s", c.Project)
	}
	fmt.Printf("plan for %s -> %s (total affected: %d):\n", c.Project, c.NewVer, plan.TotalAffected)
	for i, step := range plan.Updates {
		fmt.Printf("  %d. %s -> %s (breaking=%v, dependents=%v)\n", i+1, step.Project, step.NewVersion, step.IsBreaking, step.Dependents)
	}
	return nil
}

// RunCmd executes a one-shot agent aggregate over a task description.
// No concrete agents are registered from the config in this kernel;
// callers embedding the kernel register their own agentkernel.Agent
// implementations before invoking Execute — this subcommand exists to
// exercise the Coordinator wiring end-to-end with zero agents registered.
type RunCmd struct {
	TaskType string `arg:"" help:"Task type to dispatch."`
	Content  string `arg:"" help:"Task content/description."`
}

func (c *RunCmd) Run(cli *CLI) error {
	registry := agentkernel.NewRegistry()
	coordinator := agentkernel.NewCoordinator(registry, 4)

	out, err := coordinator.Execute(context.Background(), agentkernel.Input{
		TaskType: agentkernel.TaskType(c.TaskType),
		Payload:  map[string]any{"content": c.Content},
	})
	if err != nil {
		return err
	}
	fmt.Printf("findings: %d, suggestions: %d\n", len(out.Findings), len(out.Suggestions))
	return nil
}

// SessionCmd groups session-management subcommands.
type SessionCmd struct {
	List   SessionListCmd   `cmd:"" help:"List persisted sessions."`
	Export SessionExportCmd `cmd:"" help:"Export a session as JSON."`
	Erase  SessionEraseCmd  `cmd:"" help:"Permanently delete a session."`
}

func openStore(cfg *kernelconfig.Config) *sessionstore.Store {
	dir := cfg.Session.Dir
	if dir == "" {
		dir = ".coderkernel/sessions"
	}
	store := sessionstore.New(dir)
	switch cfg.Session.Encryption {
	case "standard":
		store.EnableEncryption(cfg.Session.Password)
	case "enterprise":
		store.EnableEnterpriseEncryption(cfg.Session.Password)
	}
	if cfg.Session.MixedModeReads {
		store.EnableMixedModeReads()
	}
	return store
}

// SessionListCmd lists every persisted session ID.
type SessionListCmd struct{}

func (c *SessionListCmd) Run(cli *CLI) error {
	cfg, err := kernelconfig.Load(cli.Config)
	if err != nil {
		return err
	}
	ids, err := openStore(cfg).List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

// SessionExportCmd exports a session's decrypted JSON representation.
type SessionExportCmd struct {
	ID string `arg:"" help:"Session ID to export."`
}

func (c *SessionExportCmd) Run(cli *CLI) error {
	cfg, err := kernelconfig.Load(cli.Config)
	if err != nil {
		return err
	}
	data, err := openStore(cfg).Export(c.ID)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// SessionEraseCmd permanently deletes a persisted session.
type SessionEraseCmd struct {
	ID string `arg:"" help:"Session ID to erase."`
}

func (c *SessionEraseCmd) Run(cli *CLI) error {
	cfg, err := kernelconfig.Load(cli.Config)
	if err != nil {
		return err
	}
	return openStore(cfg).Erase(c.ID)
}

// IndexCmd chunks a directory tree (one chunk per file) into a Hybrid
// Index and runs a search against it. Embeddings are always an external
// input: this command never generates them itself, it only seeds and
// queries a vector store with embeddings supplied as JSON files.
type IndexCmd struct {
	Dir   string `arg:"" help:"Directory to chunk and index, recursively." type:"path"`
	Query string `arg:"" help:"Search query."`
	Limit int    `help:"Maximum hits to return." default:"10"`

	Embeddings     string `help:"Path to a JSON object mapping indexed file paths to pre-computed embeddings, used to seed the vector store." type:"path"`
	QueryEmbedding string `help:"Path to a JSON array holding the query's own pre-computed embedding." type:"path"`
}

func (c *IndexCmd) Run(cli *CLI) error {
	cfg, err := kernelconfig.Load(cli.Config)
	if err != nil {
		return err
	}

	chunks, err := chunkDirectory(c.Dir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	opts := []hybridindex.Option{hybridindex.WithWeights(cfg.HybridIdx.Weights())}

	useVectorStore := cfg.HybridIdx.VectorStore == "chromem" || c.Embeddings != ""
	if useVectorStore {
		store, err := hybridindex.OpenChromemVectorStore(cfg.HybridIdx.VectorDBPath, true, "chunks")
		if err != nil {
			return fmt.Errorf("opening vector store: %w", err)
		}
		if c.Embeddings != "" {
			embeddings, err := loadEmbeddings(c.Embeddings)
			if err != nil {
				return err
			}
			for _, chunk := range chunks {
				vec, ok := embeddings[chunk.FilePath]
				if !ok {
					continue
				}
				if err := store.Upsert(ctx, chunk.ID, vec); err != nil {
					return fmt.Errorf("seeding vector store for %s: %w", chunk.FilePath, err)
				}
			}
			if err := store.Persist(); err != nil {
				return fmt.Errorf("persisting vector store: %w", err)
			}
		}
		opts = append(opts, hybridindex.WithVectorStore(store))
	}

	idx := hybridindex.New(chunks, opts...)

	var queryEmbedding []float32
	if c.QueryEmbedding != "" {
		data, err := os.ReadFile(c.QueryEmbedding)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &queryEmbedding); err != nil {
			return fmt.Errorf("parsing query embedding: %w", err)
		}
	}

	result, err := idx.SearchWithEmbedding(ctx, c.Query, queryEmbedding, c.Limit)
	if err != nil {
		return err
	}
	for i, hit := range result.Hits {
		fmt.Printf("%d. %s:%d final=%.4f bm25=%.4f identifier=%.4f pmi=%.4f ngram=%.4f\n",
			i+1, hit.FilePath, hit.ChunkID, hit.FinalScore, hit.BM25Score, hit.IdentifierScore, hit.PMIScore, hit.NGramScore)
	}
	return nil
}

// chunkLanguages maps a recognized file extension to the Chunk.Language
// it's indexed under; unrecognized extensions are skipped.
var chunkLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".rs":   "rust",
	".rb":   "ruby",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".md":   "markdown",
}

// chunkDirectory walks dir and builds one Chunk per recognized source
// file, numbering chunks in walk order.
func chunkDirectory(dir string) ([]hybridindex.Chunk, error) {
	var chunks []hybridindex.Chunk
	var nextID uint64 = 1

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		lang, ok := chunkLanguages[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		text := string(data)
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		chunks = append(chunks, hybridindex.NewChunk(nextID, rel, lang, 1, strings.Count(text, "\n")+1, text))
		nextID++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return chunks, nil
}

// loadEmbeddings reads a JSON object mapping file paths to embedding
// vectors, the format produced externally and consumed by IndexCmd's
// --embeddings flag.
func loadEmbeddings(path string) (map[string][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var embeddings map[string][]float32
	if err := json.Unmarshal(data, &embeddings); err != nil {
		return nil, fmt.Errorf("parsing embeddings: %w", err)
	}
	return embeddings, nil
}
