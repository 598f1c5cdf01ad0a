// Package student contains the domain model of a leaderboard participant.
//
// The package defines:
//
//   - Record: a student with the last known solved-problem count
//   - Department and Year: the closed sets accepted at intake
//   - Store: the persistence contract (postgres, sqlite and flat-file backends)
//   - StatsProvider: the contract of the external stats adapter
//   - ExtractProfileID: derives the external username from a profile URL
//
// The package has no infrastructure dependencies. Errors are the sentinels
// and DomainError values of package shared.
//
// Creating a record from a submission:
//
//	rec, err := student.NewRecord(student.NewRecordParams{
//	    RegNo:      "111722205001",
//	    Name:       "Asha",
//	    Department: "IT",
//	    Year:       "Third Year",
//	    ProfileURL: "https://leetcode.com/u/asha/",
//	})
//	username := rec.ProfileID() // "asha"
package student
