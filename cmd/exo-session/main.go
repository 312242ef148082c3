// Command exo-session runs one oral exam session in the terminal,
// wiring the system microphone and speaker to a voice transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/oralab/exo/pkg/core/types"
	"github.com/oralab/exo/pkg/exam"
	"github.com/oralab/exo/pkg/session"
	"github.com/oralab/exo/pkg/voice"
	"github.com/oralab/exo/pkg/voice/agentws"
	"github.com/oralab/exo/pkg/voice/audio"
	"github.com/oralab/exo/pkg/voice/realtime"
	exo "github.com/oralab/exo/sdk"
)

const micSampleRate = 24000

func main() {
	godotenv.Load()

	var (
		sectionFlag   = flag.String("section", "A", "exam section: A (phone call) or B (persuasion)")
		idFlag        = flag.Int("id", 0, "scenario id, 0 picks one at random")
		transportFlag = flag.String("transport", "agent", "voice transport: realtime or agent")
		gatewayFlag   = flag.String("gateway", "http://localhost:8090", "gateway base URL")
		voiceFlag     = flag.String("voice", "", "override the examiner voice")
		skipPrepFlag  = flag.Bool("skip-prep", false, "skip the 60 s preparation countdown")
		listFlag      = flag.Bool("list", false, "list the scenario catalogue and exit")
		verboseFlag   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *listFlag {
		listScenarios()
		return
	}

	section := types.Section(*sectionFlag)
	if section != types.SectionA && section != types.SectionB {
		fmt.Fprintln(os.Stderr, "section must be A or B")
		os.Exit(2)
	}

	var scenario types.Scenario
	if *idFlag > 0 {
		s, ok := exam.ScenarioByID(section, *idFlag)
		if !ok {
			fmt.Fprintf(os.Stderr, "no scenario %d in section %s\n", *idFlag, section)
			os.Exit(2)
		}
		scenario = s
	} else {
		scenario = exam.RandomScenario(section)
	}

	if err := run(scenario, *transportFlag, *gatewayFlag, *voiceFlag, *skipPrepFlag, logger); err != nil {
		logger.Error("session failed", "err", err)
		os.Exit(1)
	}
}

func listScenarios() {
	for _, section := range []types.Section{types.SectionA, types.SectionB} {
		for _, s := range exam.Scenarios(section) {
			fmt.Printf("%s %d  [%s]  %s\n", section, s.ID, s.Difficulty, s.Title)
		}
	}
}

func run(scenario types.Scenario, transport, gateway, voiceName string, skipPrep bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := exo.NewClient(gateway, exo.WithLogger(logger))
	stats := &types.DebugStats{}

	speaker, err := audio.NewSpeakerSink(micSampleRate)
	if err != nil {
		return err
	}
	defer speaker.Close()

	newProvider := func() voice.Provider {
		var p voice.Provider
		switch transport {
		case "realtime":
			p = realtime.New(client.RealtimeCredentials,
				realtime.WithLogger(logger), realtime.WithStats(stats))
		default:
			p = agentws.New(client.AgentConfig,
				agentws.WithLogger(logger), agentws.WithStats(stats))
		}
		p.SetAudioSink(speaker)
		return p
	}

	runner, err := session.NewRunner(session.Config{
		Scenario:    scenario,
		NewProvider: newProvider,
		OpenMic: func(ctx context.Context) (audio.Source, error) {
			return audio.NewMicSource(micSampleRate)
		},
		Facts:       client,
		Evaluator:   client,
		Transcriber: client,
		Results:     client,
		Voice:       voiceName,
		SkipPrep:    skipPrep,
		Logger:      logger,
		OnState: func(s types.ConnectionState) {
			fmt.Printf("\n[%s]\n", s)
		},
		OnTick: func(phase types.SessionPhase, remaining int) {
			if remaining%30 == 0 || remaining <= 10 {
				fmt.Printf("  (%s: %ds restantes)\n", phase, remaining)
			}
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Épreuve %s — %s\n", scenario.Task, scenario.Title)
	fmt.Println(scenario.Prompt)
	if len(scenario.SuggestedQuestions) > 0 {
		fmt.Println("Questions suggérées:")
		for _, q := range scenario.SuggestedQuestions {
			fmt.Println("  -", q)
		}
	}
	fmt.Println("\nCtrl+C termine l'épreuve.")

	if err := runner.Start(ctx); err != nil {
		return err
	}

	printed := 0
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			stop()
			runner.Stop(context.Background())
			printSummary(runner, stats)
			return nil
		case <-ticker.C:
			lines := runner.Transcript().Snapshot()
			for ; printed < len(lines); printed++ {
				line := lines[printed]
				fmt.Printf("%-10s %s\n", string(line.Role)+":", line.Text)
			}
			if runner.State() == types.StateStopped {
				printSummary(runner, stats)
				return nil
			}
			if runner.State() == types.StateError && runner.Phase() == types.PhaseNone {
				return runner.Err()
			}
		}
	}
}

func printSummary(r *session.Runner, stats *types.DebugStats) {
	summary := r.Summary()
	if summary == nil {
		return
	}
	fmt.Printf("\n--- Fin de l'épreuve (%s) ---\n", summary.Reason)
	if summary.EvalStatus == types.EvaluationDone {
		fmt.Println("Évaluation:")
		fmt.Println(string(summary.Evaluation))
	} else if summary.EvaluationError != "" {
		fmt.Println("Évaluation indisponible:", summary.EvaluationError)
	}
	if id := r.SessionID(); id != "" {
		fmt.Println("Session enregistrée:", id)
	}
	snap := stats.Snapshot()
	slog.Debug("transport counters",
		"events", snap.TransportEvents,
		"responses_created", snap.ResponsesCreated,
		"responses_done", snap.ResponsesDone,
		"audio_in", snap.AudioFramesIn,
		"audio_out", snap.AudioFramesOut)
}
