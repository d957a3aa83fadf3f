// Package export renders companies and leads as CSV files.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/models"
)

type Kind string

const (
	KindCompanies Kind = "companies"
	KindLeads     Kind = "leads"
)

func (k Kind) Valid() bool {
	return k == KindCompanies || k == KindLeads
}

var CompanyHeaders = []string{
	"Organization ID",
	"Company Name",
	"Domain",
	"Industry",
	"Founded Year",
	"Headquarters",
	"Description",
	"Company LinkedIn",
	"Employee Count",
	"Revenue",
	"Technologies",
	"Tech Spend",
	"IT Budget",
	"Recent News",
	"Job Openings",
	"Growth Signals",
	"AI Org Signals",
	"AI Tech Signals",
	"AI Hiring Signals",
	"Intent Score",
	"Intent Horizon",
	"Signal Evidence",
	"CoreSignal Enriched",
	"Domain Source",
}

var LeadHeaders = []string{
	"First Name",
	"Last Name",
	"Title",
	"Company",
	"Email",
	"Phone",
	"LinkedIn",
	"Twitter",
	"Location",
	"Recent Activity",
	"Published Content",
	"Matched Persona",
}

// EscapeValue quotes v when it contains a comma, a double quote, CR or LF,
// doubling any embedded quotes.
func EscapeValue(v string) string {
	if strings.ContainsAny(v, ",\"\r\n") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}

// JoinList joins list values with "; ".
func JoinList(values []string) string {
	return strings.Join(values, "; ")
}

// FileName is the download name for an export made at now.
func FileName(kind Kind, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", kind, now.UTC().Format("2006-01-02"))
}

// WriteFile exports companies or leads into dir under FileName and returns
// the path written.
func WriteFile(dir string, kind Kind, now time.Time, companies []models.Company, leads []models.Lead) (string, error) {
	if !kind.Valid() {
		return "", apperrors.NewValidationError(fmt.Sprintf("Unknown export kind %q.", kind))
	}
	switch {
	case kind == KindCompanies && len(companies) == 0:
		return "", apperrors.NewEmptyResultError("No companies to export")
	case kind == KindLeads && len(leads) == 0:
		return "", apperrors.NewEmptyResultError("No leads to export")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.NewExportFailedError(err)
	}
	path := filepath.Join(dir, FileName(kind, now))
	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.NewExportFailedError(err)
	}

	if kind == KindCompanies {
		err = Companies(f, companies)
	} else {
		err = Leads(f, leads)
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = apperrors.NewExportFailedError(closeErr)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// Companies writes one header row and one row per company.
func Companies(w io.Writer, companies []models.Company) error {
	if len(companies) == 0 {
		return apperrors.NewEmptyResultError("No companies to export")
	}
	rows := make([][]string, 0, len(companies))
	for _, c := range companies {
		rows = append(rows, companyRow(c))
	}
	return writeRows(w, CompanyHeaders, rows)
}

// Leads writes one header row and one row per lead.
func Leads(w io.Writer, leads []models.Lead) error {
	if len(leads) == 0 {
		return apperrors.NewEmptyResultError("No leads to export")
	}
	rows := make([][]string, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, []string{
			l.FirstName,
			l.LastName,
			l.Title,
			l.Company,
			l.Email,
			l.Phone,
			l.LinkedInURL,
			l.Twitter,
			l.Location,
			l.RecentActivity,
			l.PublishedContent,
			l.MatchedPersona,
		})
	}
	return writeRows(w, LeadHeaders, rows)
}

func companyRow(c models.Company) []string {
	enriched := "No"
	if c.CoresignalEnriched {
		enriched = "Yes"
	}
	return []string{
		c.ID,
		c.Name,
		c.Domain,
		c.Industry,
		intText(c.FoundedYear),
		c.HQ(),
		c.Description,
		c.CompanyLinkedIn(),
		intText(c.EmployeeCount),
		c.RevenueText(),
		JoinList(c.Technologies),
		c.TechSpend,
		c.ITBudget,
		JoinList(c.RecentNews),
		intText(c.JobOpenings),
		JoinList(c.GrowthSignals),
		JoinList(c.AIOrgSignals),
		JoinList(c.AITechSignals),
		JoinList(c.AIHiringSignals),
		intentText(c.IntentScore),
		c.IntentHorizon,
		JoinList(c.SignalEvidence),
		enriched,
		c.DomainSource(),
	}
}

// intentText renders a 0..1 score as a rounded percentage. A missing or zero
// score is left blank.
func intentText(score *float64) string {
	if score == nil || *score == 0 {
		return ""
	}
	return strconv.FormatFloat(math.Round(*score*100), 'f', 0, 64) + "%"
}

func intText(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func writeRows(w io.Writer, headers []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	if err := writeLine(bw, headers); err != nil {
		return apperrors.NewExportFailedError(err)
	}
	for _, row := range rows {
		if _, err := bw.WriteString("\n"); err != nil {
			return apperrors.NewExportFailedError(err)
		}
		if err := writeLine(bw, row); err != nil {
			return apperrors.NewExportFailedError(err)
		}
	}
	if err := bw.Flush(); err != nil {
		return apperrors.NewExportFailedError(err)
	}
	return nil
}

func writeLine(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(EscapeValue(f)); err != nil {
			return err
		}
	}
	return nil
}
