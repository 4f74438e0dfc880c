/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"govn/internal/crash"
	"govn/internal/dialogue"
	"govn/internal/export"
	applog "govn/internal/log"
	"govn/internal/player"
	"govn/internal/presenter"
	"govn/internal/script"
	"govn/internal/ui"
	"govn/internal/version"
)

func usage() {
	fmt.Println("govn - dialogue player")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  govn version|-v|--version                 Show version")
	fmt.Println("  govn parse <markup>                        Parse one line of dialogue markup and print its segments")
	fmt.Println("  govn check [-chars file] <script>          Validate a script, its markup and its speakers")
	fmt.Println("  govn play [flags] <script>                 Play a script in the terminal (-auto, -chars, -resume, -start)")
	fmt.Println("  govn export [flags] [session...]           Export transcripts (-preset, -format, -out)")
	fmt.Println("  govn sync                                  Sync seen lines with the shared database")
	fmt.Println("  govn ui [-chars file] <script>             Launch desktop UI (build with -tags fyne for full UI)")
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	defer crash.Recover(nil)

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("govn - dialogue player")
		fmt.Println(version.String())
		return
	case "parse":
		err = runParse(os.Stdout, args[2:])
	case "check":
		err = runCheck(os.Stdout, args[2:])
	case "play":
		err = runPlay(ctx, args[2:])
	case "export":
		err = runExport(ctx, args[2:])
	case "sync":
		err = runSync(ctx)
	case "ui":
		err = runUI(ctx, args[2:])
	default:
		usage()
		os.Exit(2)
	}

	var ue usageError
	switch {
	case err == nil:
	case errors.As(err, &ue):
		fmt.Println(ue.Error())
		usage()
		os.Exit(2)
	default:
		l.Error(args[1]+" failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func runParse(w io.Writer, args []string) error {
	if len(args) != 1 {
		return usageError("parse requires exactly one <markup> argument")
	}
	res, err := dialogue.Parse(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "text: %q\n", res.Text)
	if res.NoWait {
		fmt.Fprintln(w, "no-wait: true")
	}
	if res.SlowStart > 0 {
		fmt.Fprintf(w, "slow-start: %d\n", res.SlowStart)
	}
	for i, seg := range res.Segments {
		pause := "wait"
		if seg.Timed() {
			pause = seg.Duration().String()
		}
		fmt.Fprintf(w, "%2d [%d,%d) %-6s %q\n", i, seg.Start, seg.End, pause, res.Text[seg.Start:seg.End])
	}
	return nil
}

func runCheck(w io.Writer, args []string) error {
	flags := flag.NewFlagSet("check", flag.ContinueOnError)
	chars := flags.String("chars", "", "character definitions (default: characters.yaml next to the script)")
	if err := flags.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if flags.NArg() != 1 {
		return usageError("check requires <script>")
	}
	path := flags.Arg(0)
	sc, err := loadScript(path)
	if err != nil {
		return err
	}
	reg, err := loadCharacters(*chars, path, false)
	if err != nil {
		return err
	}
	known := map[string]bool{}
	for _, id := range reg.IDs() {
		known[id] = true
	}
	unknown := map[string]bool{}
	for _, ln := range sc.Spoken() {
		if ln.Type == script.LineDialogue && !known[ln.Character] && !unknown[ln.Character] {
			unknown[ln.Character] = true
			fmt.Fprintf(w, "%s:%d: %q has no character definition, a plain one is used\n", path, ln.LineNo, ln.Speaker)
		}
	}
	fmt.Fprintf(w, "%s: %d scenes, %d lines, ok\n", path, len(sc.Scenes), len(sc.Spoken()))
	return nil
}

func runPlay(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("play", flag.ContinueOnError)
	auto := flags.Bool("auto", false, "print lines to stdout without waiting for input")
	chars := flags.String("chars", "", "character definitions (default: characters.yaml next to the script)")
	resume := flags.Bool("resume", false, "continue from the last autosave of this script")
	startAt := flags.Int("start", 0, "index of the first spoken line")
	if err := flags.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if flags.NArg() != 1 {
		return usageError("play requires <script>")
	}
	path := flags.Arg(0)

	var console io.Writer
	if !*auto {
		console = io.Discard
	}
	e, err := openEngine(ctx, console)
	if err != nil {
		return err
	}
	defer e.Close()

	sc, err := loadScript(path)
	if err != nil {
		return err
	}
	reg, err := loadCharacters(*chars, path, !*auto)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	start := *startAt
	if *resume {
		start, err = resumePoint(e.dataDir, name)
		if err != nil {
			return err
		}
	}

	e.trySync(ctx)
	p := e.newPlayer(reg)
	defer crash.Recover(p)

	var term *presenter.Terminal
	if *auto {
		h := presenter.NewHeadless(true)
		h.Out = os.Stdout
		p.Sink = h
	} else {
		en := e.cfg.Engine
		afm := 0.0
		if en.AFMEnabled {
			afm = en.AFMTime
		}
		term, err = presenter.NewTerminal(nil, presenter.TerminalOptions{
			CharDelay:  en.TextSpeed(),
			AFMTime:    afm,
			OnSkip:     p.ToggleSkip,
			OnRollback: p.Rollback,
		})
		if err != nil {
			return err
		}
		p.Sink = term
	}

	res, err := p.Play(ctx, sc, name, start)
	if term != nil {
		term.Close()
	}
	if err != nil {
		if errors.Is(err, presenter.ErrQuit) || errors.Is(err, context.Canceled) {
			if at, serr := p.AutosaveCrash(); serr == nil {
				fmt.Println("Progress saved to", at)
			}
			e.trySync(context.Background())
			return nil
		}
		return err
	}
	e.trySync(ctx)
	fmt.Printf("Session %s: %d lines shown\n", res.Session, res.Shown)
	return nil
}

// resumePoint returns the autosaved position for script, or 0 when there is
// none or it belongs to another script.
func resumePoint(dataDir, name string) (int, error) {
	a, err := player.ReadAutosave(player.AutosavePath(dataDir))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if a.Script != name {
		return 0, nil
	}
	return a.Pos, nil
}

func runExport(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	preset := flags.String("preset", string(export.PresetScreen), "export preset: screen or archive")
	formats := flags.String("format", "", "comma separated formats: pdf, txt (default: preset formats)")
	out := flags.String("out", "", "output directory (default: <data dir>/exports/<preset>)")
	if err := flags.Parse(args); err != nil {
		return usageError(err.Error())
	}
	e, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer e.Close()

	opt := export.BatchOptions{Preset: export.PresetName(*preset), Sessions: flags.Args(), OutDir: *out}
	if *formats != "" {
		opt.Formats = strings.Split(*formats, ",")
	}
	files, err := export.BatchExport(ctx, e.index, opt)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Println(f)
	}
	fmt.Printf("Exported %d file(s)\n", len(files))
	return nil
}

func runSync(ctx context.Context) error {
	e, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer e.Close()
	if e.cfg.Backend.PGDSN == "" {
		return errors.New("no backend configured (backend.pg_dsn)")
	}
	st, err := e.sync(ctx, true)
	if err != nil {
		return err
	}
	fmt.Printf("Pushed %d, pulled %d seen line(s)\n", st.Pushed, st.Pulled)
	return nil
}

func runUI(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("ui", flag.ContinueOnError)
	chars := flags.String("chars", "", "character definitions (default: characters.yaml next to the script)")
	if err := flags.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if flags.NArg() != 1 {
		return usageError("ui requires <script>")
	}
	path := flags.Arg(0)
	e, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer e.Close()

	sc, err := loadScript(path)
	if err != nil {
		return err
	}
	reg, err := loadCharacters(*chars, path, true)
	if err != nil {
		return err
	}
	e.trySync(ctx)
	defer e.trySync(context.Background())

	en := e.cfg.Engine
	afm := 0.0
	if en.AFMEnabled {
		afm = en.AFMTime
	}
	err = ui.Run(ui.Session{
		Player:    e.newPlayer(reg),
		Script:    sc,
		Name:      filepath.Base(path),
		CharDelay: en.TextSpeed(),
		AFMTime:   afm,
	})
	if errors.Is(err, ui.ErrUnavailable) {
		fmt.Println("Tip: govn play", path, "plays the script in this terminal.")
	}
	return err
}
