package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/gasmorph/internal/application"
	"github.com/bnema/gasmorph/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 24

type RenderOptions struct {
	Now time.Time
	// SessionDuration scales the session bar. Zero hides the bar.
	SessionDuration time.Duration
	// TokenSymbol labels the balance, e.g. DEMO.
	TokenSymbol string
}

func renderView(status application.AccountStatus, opts RenderOptions, s styles) string {
	now := opts.Now
	if now.IsZero() {
		now = status.CapturedAt
	}

	lines := []string{
		s.title.Render("Gas Sponsorship"),
		s.account.Render(fmt.Sprintf("Account: %s", status.Account.Hex())),
		s.section.Render(verdictLine(status.Verdict, s)),
		balanceLine(status.Verdict, opts.TokenSymbol, s),
		sessionLine(status.Session, now, opts.SessionDuration, s),
		tasksLine(status.Completed.Size(), status.TaskTotal, s),
		sponsorshipLine(status, s),
		s.section.Render(s.label.Render(fmt.Sprintf("mints: %d", status.MintCount))),
	}

	lines = append(lines, recentLines(status.RecentMints, s)...)

	if !status.CapturedAt.IsZero() {
		lines = append(lines, s.section.Render(s.header.Render("updated "+status.CapturedAt.Format("15:04:05"))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func verdictLine(verdict domain.EligibilityVerdict, s styles) string {
	label := s.label.Render("eligibility:")
	if !verdict.Eligible {
		return label + " " + s.negative.Render("not eligible")
	}

	return label + " " + s.positive.Render("eligible") + " " + s.meta.Render(fmt.Sprintf("(%s)", verdict.Basis.Label()))
}

func balanceLine(verdict domain.EligibilityVerdict, symbol string, s styles) string {
	label := s.label.Render("balance:")
	if !verdict.BalanceKnown {
		return label + " " + s.warning.Render("unavailable")
	}

	amount := "0"
	if verdict.TokenBalance != nil {
		amount = verdict.TokenBalance.Dec()
	}
	if symbol != "" {
		amount += " " + symbol
	}

	return label + " " + s.detail.Render(amount)
}

func sessionLine(session domain.SessionStatus, now time.Time, duration time.Duration, s styles) string {
	label := s.label.Render("session:")

	switch session.State {
	case domain.SessionStateActive:
		remaining := session.Remaining(now)
		parts := []string{label, s.positive.Render("active")}
		if duration > 0 {
			parts = append(parts, renderProgressBar(fraction(remaining, duration), s))
		}
		countdown := lipgloss.NewStyle().Foreground(fadeColor(remaining, duration))
		parts = append(parts, countdown.Render(session.Countdown(now)+" left"))
		return strings.Join(parts, " ")
	case domain.SessionStateExpired:
		return label + " " + s.warning.Render("expired") + " " + s.meta.Render(fmt.Sprintf("(at %s)", session.ExpiresAt.Format("15:04:05")))
	default:
		return label + " " + s.empty.Render("none")
	}
}

func tasksLine(done, total int, s styles) string {
	label := s.label.Render("tasks:")
	if total <= 0 {
		return label + " " + s.empty.Render("no catalog")
	}

	return strings.Join([]string{
		label,
		renderProgressBar(float64(done)/float64(total), s),
		s.detail.Render(fmt.Sprintf("%d/%d", done, total)),
	}, " ")
}

func sponsorshipLine(status application.AccountStatus, s styles) string {
	label := s.label.Render("sponsorship:")
	if status.CanSponsor() {
		return label + " " + s.positive.Render("ready")
	}

	var missing []string
	if !status.Session.Active {
		missing = append(missing, "active session")
	}
	if !status.Completed.MeetsSponsorshipThreshold() {
		missing = append(missing, fmt.Sprintf("%d tasks", domain.MinTasksForSponsorship))
	}

	return label + " " + s.negative.Render("locked") + " " + s.meta.Render("(needs "+strings.Join(missing, " and ")+")")
}

func recentLines(records []domain.MintRecord, s styles) []string {
	if len(records) == 0 {
		return []string{s.empty.Render("  no mints yet")}
	}

	lines := make([]string, 0, len(records))
	for _, record := range records {
		path := "self-paid"
		if record.WasSponsored {
			path = "sponsored"
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s",
			s.meta.Render(record.Timestamp.Format("2006-01-02 15:04:05")),
			s.detail.Render(shortHash(record.TransactionHash.Hex())),
			s.label.Render(path),
		))
	}

	return lines
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:8] + "…" + hash[len(hash)-6:]
}

func fraction(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func renderProgressBar(filledFraction float64, s styles) string {
	if filledFraction < 0 {
		filledFraction = 0
	}
	if filledFraction > 1 {
		filledFraction = 1
	}

	filled := int(math.Round(float64(barWidth) * filledFraction))
	empty := barWidth - filled

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", empty)),
		s.barBracket.Render("]"),
	)
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// 240 (faded) to 255 (bright) on the ANSI greyscale ramp.
	colorCode := int(240.0 + 15.0*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}

// fadeColor brightens the countdown as the session runs out.
func fadeColor(remaining, duration time.Duration) lipgloss.Color {
	if duration <= 0 {
		return lipgloss.Color("255")
	}

	return interpolateColor(duration.Seconds()-remaining.Seconds(), 0, duration.Seconds())
}
