package pipeline

import (
	"fmt"

	apperrors "icp-pipeline/internal/common/errors"
)

// StageKind names a step of the ICP journey.
type StageKind int

const (
	Idle StageKind = iota
	Conversing
	SearchingCompanies
	SearchingLeads
	Completed
	Failed
)

func (k StageKind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Conversing:
		return "conversing"
	case SearchingCompanies:
		return "searching_companies"
	case SearchingLeads:
		return "searching_leads"
	case Completed:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(k))
	}
}

// Stage is the current position of a run. Only a failed stage carries a
// reason, and only stages after company search carry counts.
type Stage struct {
	kind      StageKind
	reason    error
	companies int
	leads     int
}

func IdleStage() Stage       { return Stage{kind: Idle} }
func ConversingStage() Stage { return Stage{kind: Conversing} }

func SearchingCompaniesStage() Stage { return Stage{kind: SearchingCompanies} }

func SearchingLeadsStage(companies int) Stage {
	return Stage{kind: SearchingLeads, companies: companies}
}

func CompletedStage(companies, leads int) Stage {
	return Stage{kind: Completed, companies: companies, leads: leads}
}

func FailedStage(reason error) Stage {
	return Stage{kind: Failed, reason: reason}
}

func (s Stage) Kind() StageKind { return s.kind }
func (s Stage) Reason() error   { return s.reason }
func (s Stage) Companies() int  { return s.companies }
func (s Stage) Leads() int      { return s.leads }

// Done reports whether the stage is terminal.
func (s Stage) Done() bool {
	return s.kind == Completed || s.kind == Failed
}

// Message is the progress line shown to the user.
func (s Stage) Message() string {
	switch s.kind {
	case Conversing:
		return "Building your ICP..."
	case SearchingCompanies:
		return "Searching for companies..."
	case SearchingLeads:
		return fmt.Sprintf("Found %d companies. Generating leads...", s.companies)
	case Completed:
		return fmt.Sprintf("Complete! Found %d companies and %d leads", s.companies, s.leads)
	case Failed:
		if s.reason != nil {
			return apperrors.UserMessage(s.reason)
		}
		return "Failed"
	default:
		return ""
	}
}

// StageObserver is notified on every transition of a run.
type StageObserver func(Stage)
