package core

// PortfolioSummary aggregates decorated loans by status.
type PortfolioSummary struct {
	TotalLoans     int
	TotalPrincipal int64
	ByStatus       map[Status]int
	// PrincipalByStatus sums principal per status.
	PrincipalByStatus map[Status]int64
}

// Summarize counts views per status. Every known status is present in the
// result, with zero counts where no loan matches.
func Summarize(views []LoanView) PortfolioSummary {
	s := PortfolioSummary{
		ByStatus:          make(map[Status]int, len(Statuses)),
		PrincipalByStatus: make(map[Status]int64, len(Statuses)),
	}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
		s.PrincipalByStatus[st] = 0
	}
	for _, v := range views {
		s.TotalLoans++
		s.TotalPrincipal += v.Principal
		s.ByStatus[v.Status]++
		s.PrincipalByStatus[v.Status] += v.Principal
	}
	return s
}
