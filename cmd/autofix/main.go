// Command autofix wires the six core components together for
// local/manual invocation: logging -> config -> cache -> memory ->
// sandbox -> planner -> rules -> orchestrator. It reads Python source
// from stdin (or a path given as the sole argument), optionally paired
// with a declared error on the first line prefixed "# error: ", and
// prints the resulting FixArtifact as JSON on stdout. It is not an HTTP
// surface and does no flag parsing beyond a single optional path
// argument.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"apex-autofix/internal/ai"
	"apex-autofix/internal/cache"
	"apex-autofix/internal/config"
	"apex-autofix/internal/logging"
	"apex-autofix/internal/memory"
	"apex-autofix/internal/orchestrator"
	"apex-autofix/internal/rules"
	"apex-autofix/internal/sandbox"
)

func main() {
	logging.Init()
	defer logging.Sync()
	log := logging.S()

	cfg := config.Load()

	input, declaredErr, err := readInput(os.Args)
	if err != nil {
		log.Fatalw("failed to read input source", "error", err)
	}

	fixCache, err := cache.New(cfg.CacheDir, cfg.CacheTTLDays, cfg.CacheMaxSizeMB, cfg.PlannerModel)
	if err != nil {
		log.Fatalw("failed to open fix cache", "error", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.MemoryDBPath), &gorm.Config{})
	if err != nil {
		log.Fatalw("failed to open fix memory database", "error", err)
	}
	mem, err := memory.Open(db)
	if err != nil {
		log.Fatalw("failed to migrate fix memory schema", "error", err)
	}

	sb := sandbox.New(cfg.SandboxTimeout)
	rulesReg := rules.NewRegistry()

	var planner orchestrator.Planner
	if cfg.PlannerAPIKey != "" {
		planner = ai.NewClaudePlanner(cfg.PlannerAPIKey, cfg.PlannerModel, 60)
	} else {
		log.Infow("no planner API key configured, AI strategy disabled")
	}

	orch := orchestrator.New(rulesReg, fixCache, mem, sb, planner)
	orch.MaxIterations = cfg.MaxIterations

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	artifact := orch.Fix(ctx, input, declaredErr)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact); err != nil {
		log.Fatalw("failed to encode fix artifact", "error", err)
	}
}

// readInput loads source from argv[1] if given, else stdin, extracting a
// leading "# error: ..." comment line as the declared error.
func readInput(argv []string) (source, declaredErr string, err error) {
	var raw []byte
	if len(argv) > 1 {
		raw, err = os.ReadFile(argv[1])
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return "", "", err
	}
	text := string(raw)
	if strings.HasPrefix(text, "# error: ") {
		nl := strings.IndexByte(text, '\n')
		if nl < 0 {
			nl = len(text)
		}
		declaredErr = strings.TrimPrefix(text[:nl], "# error: ")
		text = strings.TrimPrefix(text[nl:], "\n")
	}
	return text, declaredErr, nil
}
