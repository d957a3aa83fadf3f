package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"icp-pipeline/internal/models"
	"icp-pipeline/internal/pipeline"
)

var (
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	stageStyle   = lipgloss.NewStyle().Faint(true)
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	// ErrorStyle renders the final error line of a failed command.
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func stageLine(s pipeline.Stage) string {
	if s.Kind() == pipeline.Completed {
		return okStyle.Render(s.Message())
	}
	return stageStyle.Render(s.Message())
}

func printCompanies(w io.Writer, companies []models.Company) {
	if len(companies) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Companies (%d)", len(companies))))
	for i, c := range companies {
		v := models.Present(c)
		fmt.Fprintf(w, "%2d. %s", i+1, v.Name)
		if v.Domain != "" {
			fmt.Fprintf(w, " (%s)", v.Domain)
		}
		fmt.Fprintln(w)
		if v.Employees > 0 {
			fmt.Fprintf(w, "    employees: %d\n", v.Employees)
		}
		if v.LinkedIn != "" {
			fmt.Fprintf(w, "    linkedin:  %s\n", v.LinkedIn)
		}
		if len(v.TechStack) > 0 {
			fmt.Fprintf(w, "    tech:      %s\n", strings.Join(v.TechStack, ", "))
		}
		for _, ct := range v.Contacts {
			fmt.Fprintf(w, "    contact:   %s, %s <%s>\n", ct.Name, ct.Role, ct.Email)
		}
	}
}

func printLeads(w io.Writer, leads []models.Lead) {
	if len(leads) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Leads (%d)", len(leads))))
	for i, l := range leads {
		fmt.Fprintf(w, "%2d. %s", i+1, l.FullName())
		if l.Title != "" {
			fmt.Fprintf(w, ", %s", l.Title)
		}
		if l.Company != "" {
			fmt.Fprintf(w, " @ %s", l.Company)
		}
		fmt.Fprintln(w)
		if l.Email != "" {
			fmt.Fprintf(w, "    email:   %s\n", l.Email)
		}
		if l.MatchedPersona != "" {
			fmt.Fprintf(w, "    persona: %s\n", l.MatchedPersona)
		}
	}
}
