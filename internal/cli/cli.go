package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/asynkron/patchsplit/internal/config"
	"github.com/asynkron/patchsplit/internal/logging"
	"github.com/asynkron/patchsplit/internal/report"
	"github.com/asynkron/patchsplit/pkg/patch"
)

// Run executes patchsplit using the provided CLI arguments.
// It returns a POSIX-style exit code indicating whether execution succeeded.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	errs := report.NewRenderer(stderr)

	flagSet := flag.NewFlagSet("patchsplit", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	profileName := flagSet.String("profile", "", "named split profile (built-in: default, utf16; env "+config.EnvProfile+")")
	configPath := flagSet.String("config", "", "profile file (default: "+config.DefaultFileName+" in the working directory, if present; env "+config.EnvConfig+")")
	input := flagSet.String("input", "", "patch file to split (overrides the profile)")
	marker := flagSet.String("marker", "", "line prefix where the split happens (overrides the profile)")
	encoding := flagSet.String("encoding", "", "input encoding: "+strings.Join(patch.EncodingNames, ", "))
	ours := flagSet.String("ours", "", "output for the lines before the marker")
	existing := flagSet.String("existing", "", "output for the lines from the marker on")
	dir := flagSet.String("dir", "", "working directory for relative paths and .env (default: current directory)")
	dryRun := flagSet.Bool("dry-run", false, "report where the split would happen without writing files")
	verbose := flagSet.Bool("v", false, "print a summary and debug logs")
	logLevel := flagSet.String("log-level", "", "minimum log level: debug, info, warn, error, off (env "+config.EnvLogLevel+")")
	listProfiles := flagSet.Bool("list-profiles", false, "list available profiles and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flagSet.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(flagSet.Args(), " "))
		return 2
	}

	workingDir := strings.TrimSpace(*dir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			errs.Error(fmt.Errorf("failed to determine working directory: %w", err))
			return 1
		}
		workingDir = wd
	}

	env, err := config.LoadEnv(workingDir)
	if err != nil {
		errs.Error(err)
		return 1
	}
	explicit := map[string]bool{}
	flagSet.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if !explicit["profile"] {
		*profileName = env.Profile
	}
	if !explicit["config"] {
		*configPath = env.ConfigPath
	}
	if !explicit["log-level"] {
		*logLevel = env.LogLevel
	}

	// Logging stays off unless asked for, so a successful run prints nothing.
	level, err := logging.ParseLevel(*logLevel, logging.LevelOff)
	if err != nil {
		errs.Error(err)
		return 2
	}
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(level, stderr)

	file, err := loadConfig(workingDir, *configPath)
	if err != nil {
		errs.Error(err)
		return 1
	}

	if *listProfiles {
		set := config.Profiles(file)
		lines := make([]string, 0, len(set))
		for _, name := range config.Names(set) {
			p := set[name]
			lines = append(lines, fmt.Sprintf("%s\tinput=%s marker=%q encoding=%s ours=%s existing=%s",
				name, p.Input, p.Marker, p.Encoding, p.OursOutput, p.ExistingOutput))
		}
		report.NewRenderer(stdout).Profiles(lines)
		return 0
	}

	profile, err := config.Resolve(file, *profileName, config.Overrides{
		Input:          *input,
		Marker:         *marker,
		Encoding:       *encoding,
		OursOutput:     *ours,
		ExistingOutput: *existing,
	})
	if err != nil {
		errs.Error(err)
		return 1
	}
	job, err := profile.Job()
	if err != nil {
		errs.Error(err)
		return 1
	}

	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)
	logger = logger.WithFields(logging.F("profile", profile.Name))
	logger.Debug(ctx, "splitting patch",
		logging.F("input", job.Input),
		logging.F("marker", job.Marker),
		logging.F("encoding", job.Encoding),
		logging.F("dir", workingDir))

	opts := patch.FilesystemOptions{WorkingDir: workingDir}
	summary := report.Summary{Profile: profile.Name, Job: job, DryRun: *dryRun}

	var split *patch.Split
	if *dryRun {
		split, err = patch.Plan(ctx, job, opts)
	} else {
		split, summary.Results, err = patch.SplitFilesystem(ctx, job, opts)
	}
	if err != nil {
		logger.Error(ctx, "split failed", err, logging.F("code", errorCode(err)))
		errs.Error(err)
		return 1
	}

	if split.Matches > 1 {
		logger.Warn(ctx, "marker matched more than one line, split at the first",
			logging.F("matches", split.Matches),
			logging.F("line", split.Line+1))
	}
	for _, r := range summary.Results {
		logger.Debug(ctx, "wrote output", logging.F("status", r.Status), logging.F("path", r.Path))
	}

	if *dryRun || *verbose {
		if err := report.NewRenderer(stdout).Report(report.Markdown(split, summary)); err != nil {
			errs.Error(err)
			return 1
		}
	}
	return 0
}

func loadConfig(workingDir, explicit string) (*config.File, error) {
	path := strings.TrimSpace(explicit)
	if path == "" {
		return config.LoadFile(filepath.Join(workingDir, config.DefaultFileName), true)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workingDir, path)
	}
	return config.LoadFile(path, false)
}

func errorCode(err error) string {
	var pe *patch.Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
