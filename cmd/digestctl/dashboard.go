package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ossfeed/coordinator/internal/infra/digestctlconfig"
	"github.com/ossfeed/coordinator/internal/repository"
)

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Launch a live-polling terminal dashboard over the queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(s *cliServices) error {
				cfg, err := digestctlconfig.Load(cfgFile)
				if err != nil {
					return err
				}
				model := newDashboardModel(s, cfg.DashboardPoll)
				_, err = tea.NewProgram(model).Run()
				return err
			})
		},
	}
}

var (
	dashboardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dashboardLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dashboardErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dashboardHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

type dashboardStatsMsg struct {
	feeds repository.FeedSyncStats
	crawl repository.CrawlStats
	vec   map[string]int64
	err   error
}

type dashboardModel struct {
	svcs    *cliServices
	poll    time.Duration
	stats   dashboardStatsMsg
	fetched bool
}

func newDashboardModel(svcs *cliServices, poll time.Duration) dashboardModel {
	if poll <= 0 {
		poll = 3 * time.Second
	}
	return dashboardModel{svcs: svcs, poll: poll}
}

func (m dashboardModel) Init() tea.Cmd {
	return m.fetchCmd()
}

func (m dashboardModel) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		feedStats, err := m.svcs.FeedSync.Stats(ctx)
		if err != nil {
			return dashboardStatsMsg{err: err}
		}
		crawlStats, err := m.svcs.Crawl.Stats(ctx)
		if err != nil {
			return dashboardStatsMsg{err: err}
		}
		vecStats, err := m.svcs.Articles.VectorizationStats(ctx)
		if err != nil {
			return dashboardStatsMsg{err: err}
		}

		byName := make(map[string]int64, len(vecStats))
		for status, n := range vecStats {
			byName[string(status)] = n
		}

		return dashboardStatsMsg{feeds: feedStats, crawl: crawlStats, vec: byName}
	}
}

func (m dashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.poll, func(time.Time) tea.Msg { return tickMsg{} })
}

type tickMsg struct{}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		return m, m.fetchCmd()
	case dashboardStatsMsg:
		m.stats = msg
		m.fetched = true
		return m, m.tickCmd()
	}
	return m, nil
}

func (m dashboardModel) View() string {
	title := dashboardTitleStyle.Render("digestctl dashboard") + "  " + dashboardHintStyle.Render(fmt.Sprintf("refresh %s · q to quit", m.poll))

	if !m.fetched {
		return title + "\n\nloading…\n"
	}
	if m.stats.err != nil {
		return title + "\n\n" + dashboardErrStyle.Render("error: "+m.stats.err.Error()) + "\n"
	}

	f := m.stats.feeds
	c := m.stats.crawl

	body := fmt.Sprintf(
		"%s\n  total %d   active %d   disabled %d   leased %d   failing %d\n\n"+
			"%s\n  batches %d   success %d   failed %d   avg %.0fms\n\n"+
			"%s\n  pending %d   in_progress %d   ok %d   failed %d\n",
		dashboardLabelStyle.Render("feeds"), f.TotalFeeds, f.ActiveFeeds, f.DisabledFeeds, f.LeasedFeeds, f.FailingFeeds,
		dashboardLabelStyle.Render("crawl"), c.TotalBatches, c.SuccessBatches, c.FailedBatches, c.AvgProcessingTimeMs,
		dashboardLabelStyle.Render("vectorize"), m.stats.vec["pending"], m.stats.vec["in_progress"], m.stats.vec["ok"], m.stats.vec["failed"],
	)

	return title + "\n\n" + body
}
