package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/rs/zerolog"

	"github.com/tangiraiC/passl-dispatch/pkg/audit"
	"github.com/tangiraiC/passl-dispatch/pkg/config"
	"github.com/tangiraiC/passl-dispatch/pkg/cycle"
)

// runDashboard renders a live view of queue depth and recent audit events
// while the cycle runner ticks in the background, in the same vein as
// this codebase's flame-graph monitor TUI. Press q or Ctrl-C to exit.
func runDashboard(ctx context.Context, runner *cycle.Runner, auditLog *audit.Log, log zerolog.Logger, cycleCfg config.CycleConfig) error {
	if err := termui.Init(); err != nil {
		return fmt.Errorf("dashboard: init termui: %w", err)
	}
	defer termui.Close()

	stats := widgets.NewParagraph()
	stats.Title = "Queue"
	stats.Border = true

	events := widgets.NewList()
	events.Title = "Recent audit events"
	events.Border = true

	grid := termui.NewGrid()
	width, height := termui.TerminalDimensions()
	grid.SetRect(0, 0, width, height)
	grid.Set(
		termui.NewRow(0.2, stats),
		termui.NewRow(0.8, events),
	)
	termui.Render(grid)

	tickerUI := time.NewTicker(500 * time.Millisecond)
	defer tickerUI.Stop()
	cycleTicker := time.NewTicker(time.Duration(cycleCfg.TickIntervalMs) * time.Millisecond)
	defer cycleTicker.Stop()

	uiEvents := termui.PollEvents()
	cycleNum := 0

	for {
		select {
		case <-ctx.Done():
			runner.Wait()
			return nil

		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				runner.Wait()
				return nil
			case "<Resize>":
				width, height := termui.TerminalDimensions()
				grid.SetRect(0, 0, width, height)
				termui.Render(grid)
			}

		case <-cycleTicker.C:
			cycleNum++
			cycleID := fmt.Sprintf("cycle-%d", cycleNum)
			if err := runner.Tick(ctx, cycleID); err != nil {
				log.Error().Err(err).Str("cycle_id", cycleID).Msg("tick failed")
			}

		case <-tickerUI.C:
			s := runner.Queue.Stats(time.Now())
			stats.Text = fmt.Sprintf("RAW: %d\nBATCHING: %d\nREADY: %d", s.RawCount, s.BatchingCount, s.ReadyCount)

			recent, err := auditLog.Recent(20)
			if err == nil {
				rows := make([]string, 0, len(recent))
				for _, e := range recent {
					rows = append(rows, fmt.Sprintf("[%s] job=%s driver=%s wave=%d", e.EventKind, e.JobID, e.DriverID, e.Wave))
				}
				events.Rows = rows
			}

			termui.Render(grid)
		}
	}
}
