// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package ui is the status screen shown while a setup bundle is applied. It
// polls a pipeline.RunState on a ticker and never blocks on the pipeline
// itself. Once the run has finished, any key dismisses the screen.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/pipeline"
)

const (
	PollInterval = 200 * time.Millisecond
	barWidth     = 30
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00B2A9"))
	emptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A"))
	messageStyle = lipgloss.NewStyle().Width(barWidth + 8)
	errorStyle   = messageStyle.Foreground(lipgloss.Color("#E4572E"))
	frameStyle   = lipgloss.NewStyle().Padding(1, 2).Border(lipgloss.RoundedBorder())
)

const confirmText = "A setup bundle was found. Press any button to start, or Q to cancel."

type phase int

const (
	phaseConfirm phase = iota
	phaseRunning
	phaseFinished
)

type tickMsg time.Time

// Model implements tea.Model.
type Model struct {
	state *pipeline.RunState
	start func() //launches the pipeline; called once, after confirmation
	phase phase
	snap  pipeline.Snapshot
	dots  int

	cancelled bool
	dismissed bool
}

// New returns a Model polling state. If confirm is true, start is not called
// until a key is pressed; otherwise it is called from Init.
func New(state *pipeline.RunState, start func(), confirm bool) Model {
	m := Model{state: state, start: start, phase: phaseRunning}
	if confirm {
		m.phase = phaseConfirm
	}
	return m
}

// Cancelled is true if the user declined to start.
func (m Model) Cancelled() bool { return m.cancelled }

// Dismissed is true if the user acknowledged the final message.
func (m Model) Dismissed() bool { return m.dismissed }

func tick() tea.Cmd {
	return tea.Tick(PollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	if m.phase == phaseConfirm {
		return nil
	}
	m.launch()
	return tick()
}

func (m Model) launch() {
	if m.start != nil {
		go m.start()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		m.snap = m.state.Snapshot()
		m.dots = (m.dots + 1) % 4
		if m.snap.Finished {
			m.phase = phaseFinished
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.phase {
	case phaseConfirm:
		switch msg.String() {
		case "q", "Q", "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		}
		m.phase = phaseRunning
		m.launch()
		return m, tick()
	case phaseFinished:
		m.dismissed = true
		return m, tea.Quit
	}
	//the pipeline cannot be interrupted
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	switch m.phase {
	case phaseConfirm:
		b.WriteString(titleStyle.Render("pi-top USB setup"))
		b.WriteString("\n\n")
		b.WriteString(messageStyle.Render(confirmText))
	case phaseRunning:
		b.WriteString(titleStyle.Render(m.snap.Stage.Title() + strings.Repeat(".", m.dots)))
		b.WriteString("\n\n")
		b.WriteString(Bar(m.snap.Overall, barWidth))
		b.WriteString(fmt.Sprintf(" %3.0f%%", m.snap.Overall))
		b.WriteString("\n\n")
		b.WriteString(messageStyle.Render("Please wait"))
	case phaseFinished:
		style := messageStyle
		if m.snap.Stage == pipeline.StageFailed && !m.snap.Reboot {
			style = errorStyle
		}
		b.WriteString(style.Render(m.snap.Message()))
	}
	return frameStyle.Render(b.String())
}

// Bar renders pct as a bar of width cells.
func Bar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled < 0 {
		filled = 0
	} else if filled > width {
		filled = width
	}
	return barStyle.Render(strings.Repeat("█", filled)) + emptyStyle.Render(strings.Repeat("░", width-filled))
}

// Run shows the screen until it is dismissed or cancelled, returning the
// final model.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) (Model, error) {
	opts = append(opts, tea.WithContext(ctx))
	final, err := tea.NewProgram(m, opts...).Run()
	if fm, ok := final.(Model); ok {
		m = fm
	}
	return m, err
}
