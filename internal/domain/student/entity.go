package student

import (
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Department is the academic department a student belongs to.
type Department string

const (
	DepartmentIT    Department = "IT"
	DepartmentCSE   Department = "CSE"
	DepartmentADS   Department = "ADS"
	DepartmentME    Department = "ME"
	DepartmentCivil Department = "Civil"
	DepartmentCSBS  Department = "CSBS"
	DepartmentCSD   Department = "CSD"
	DepartmentECE   Department = "ECE"
	DepartmentEEE   Department = "EEE"
	DepartmentVLSI  Department = "VLSI"
)

// Departments lists every accepted department in display order.
var Departments = []Department{
	DepartmentIT,
	DepartmentCSE,
	DepartmentADS,
	DepartmentME,
	DepartmentCivil,
	DepartmentCSBS,
	DepartmentCSD,
	DepartmentECE,
	DepartmentEEE,
	DepartmentVLSI,
}

// IsValid reports whether d is one of the known departments.
func (d Department) IsValid() bool {
	for _, known := range Departments {
		if d == known {
			return true
		}
	}
	return false
}

// String returns the department label.
func (d Department) String() string {
	return string(d)
}

// Year is the study year of a student.
type Year string

const (
	YearFirst  Year = "First Year"
	YearSecond Year = "Second Year"
	YearThird  Year = "Third Year"
	YearFourth Year = "Fourth Year"
)

// Years lists every accepted study year in display order.
var Years = []Year{YearFirst, YearSecond, YearThird, YearFourth}

// IsValid reports whether y is one of the known years.
func (y Year) IsValid() bool {
	for _, known := range Years {
		if y == known {
			return true
		}
	}
	return false
}

// String returns the year label.
func (y Year) String() string {
	return string(y)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is a student on the leaderboard together with the last known
// number of solved problems.
//
// RegNo is the primary key and never changes after creation. SolvedCount
// mirrors the provider value exactly, so it may go down as well as up.
type Record struct {
	RegNo       string     `validate:"required"`
	Name        string     `validate:"required"`
	Department  Department `validate:"department"`
	Year        Year       `validate:"year"`
	ProfileURL  string     `validate:"required"`
	SolvedCount int        `validate:"gte=0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRecordParams contains the fields accepted from an intake submission.
type NewRecordParams struct {
	RegNo      string
	Name       string
	Department string
	Year       string
	ProfileURL string
}

// NewRecord builds a validated record with a zero solved count.
func NewRecord(p NewRecordParams) (Record, error) {
	r := Record{
		RegNo:      strings.TrimSpace(p.RegNo),
		Name:       strings.TrimSpace(p.Name),
		Department: Department(strings.TrimSpace(p.Department)),
		Year:       Year(strings.TrimSpace(p.Year)),
		ProfileURL: strings.TrimSpace(p.ProfileURL),
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// ProfileID returns the external username derived from ProfileURL.
func (r Record) ProfileID() string {
	return ExtractProfileID(r.ProfileURL)
}

// WithSolvedCount returns a copy of r carrying the given count.
func (r Record) WithSolvedCount(count int) Record {
	r.SolvedCount = count
	return r
}
