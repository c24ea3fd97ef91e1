package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/replog/replog-go"
	"github.com/replog/replog-go/replogbase"
	"github.com/replog/replog-go/replognum"
	"github.com/replog/replog-go/replogotel"
)

var (
	replayConfig   string
	replaySpeed    float64
	replayMinLevel string
	replayBackend  string
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replayConfig, "config", "", "Path to YAML config (optional)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1, "Pacing multiplier; 0 disables pacing")
	replayCmd.Flags().StringVar(&replayMinLevel, "min-level", "Trace", "Lowest level to replay (Trace|Debug|Info|Warn|Error)")
	replayCmd.Flags().StringVar(&replayBackend, "backend", "otel", "Backend to replay into (otel|null)")
}

var replayCmd = &cobra.Command{
	Use:   "replay <recording>",
	Short: "Replay a recording file into a backend",
	Long: "Reads a recorded trace log and replays it into the selected backend,\n" +
		"reproducing per-thread ordering and the recorded wall-clock pacing.",
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(replayConfig)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("speed") {
		cfg.Speed = replaySpeed
	}
	if cmd.Flags().Changed("min-level") {
		cfg.MinLevel = replayMinLevel
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = replayBackend
	}

	minLevel, err := replognum.LevelString(cfg.MinLevel)
	if err != nil {
		return err
	}

	backend, shutdown, err := buildBackend(cfg, minLevel)
	if err != nil {
		return err
	}
	defer shutdown()

	r := replog.New(backend, replog.WithSpeed(cfg.Speed))
	summary, replayErr := r.ReplayFile(args[0])
	if closeErr := r.Close(); replayErr == nil {
		replayErr = closeErr
	}
	if replayErr != nil {
		return replayErr
	}

	fmt.Printf("replayed %d records\n", summary.RecordCount)
	return nil
}

func buildBackend(cfg config, minLevel replognum.Level) (replogbase.Backend, func(), error) {
	switch cfg.Backend {
	case "otel":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, errors.Wrap(err, "cannot create stdout trace exporter")
		}
		provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		tracer := provider.Tracer("replog")
		shutdown := func() {
			_ = provider.Shutdown(context.Background())
		}
		return replogotel.New(tracer, replogotel.WithMinLevel(minLevel)), shutdown, nil
	case "null":
		return &nullBackend{}, func() {}, nil
	default:
		return nil, nil, errors.Errorf("'%s' does not name a backend", cfg.Backend)
	}
}

// nullBackend accepts everything and keeps nothing. Useful for timing
// a replay or validating a recording end to end.
type nullBackend struct {
	nextID uint64
}

func (b *nullBackend) RegisterCallsite(*replogbase.Callsite) {}

func (b *nullBackend) IsEnabled(*replogbase.Callsite) bool { return true }

func (b *nullBackend) NewSpan(*replogbase.Callsite, replogbase.Parent, []replogbase.FieldValue) replogbase.SpanID {
	return replogbase.SpanID(atomic.AddUint64(&b.nextID, 1))
}

func (b *nullBackend) Enter(replogbase.SpanID) {}

func (b *nullBackend) Exit(replogbase.SpanID) {}

func (b *nullBackend) TryClose(replogbase.SpanID) bool { return true }

func (b *nullBackend) AttachFields(replogbase.SpanID, *replogbase.Callsite, []replogbase.FieldValue) {
}

func (b *nullBackend) FollowsFrom(replogbase.SpanID, replogbase.SpanID) {}

func (b *nullBackend) Event(*replogbase.Callsite, replogbase.Parent, []replogbase.FieldValue) {}
