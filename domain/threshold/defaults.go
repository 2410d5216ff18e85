package threshold

import "maintflow/domain"

const (
	// TaskBudgetDirectorThreshold is the largest task budget handled by the site engineer alone.
	TaskBudgetDirectorThreshold domain.Amount = 5_000_000
	// ExecutiveThreshold is the largest amount that does not involve executives.
	ExecutiveThreshold domain.Amount = 10_000_000

	DefaultBoundary = UpperInclusive
)

var (
	SiteEngineer        = domain.Recipient{Role: "site_engineer", Email: "site.engineer@maintflow.example", Name: "Site Engineer"}
	MaintenanceDirector = domain.Recipient{Role: "maintenance_director", Email: "maintenance.director@maintflow.example", Name: "Maintenance Director"}
	Executive           = domain.Recipient{Role: "executive", Email: "executive@maintflow.example", Name: "Executive Director"}
	FinancialManager    = domain.Recipient{Role: "financial_manager", Email: "financial.manager@maintflow.example", Name: "Financial Manager"}
	GeneralManager      = domain.Recipient{Role: "general_manager", Email: "general.manager@maintflow.example", Name: "General Manager"}
	Interventor         = domain.Recipient{Role: "interventor", Email: "interventor@maintflow.example", Name: "Interventor"}
	Accountant          = domain.Recipient{Role: "accountant", Email: "accounting@maintflow.example", Name: "Accounting"}
	QuotationReviewer   = domain.Recipient{Role: "quotation_reviewer", Email: "quotations@maintflow.example", Name: "Quotation Reviewer"}
	LegalReviewer       = domain.Recipient{Role: "legal_reviewer", Email: "legal@maintflow.example", Name: "Legal Reviewer"}
)

func amount(a domain.Amount) *domain.Amount {
	return &a
}

func fixed(kind domain.Kind, s domain.State, recipients ...domain.Recipient) Table {
	return Table{Kind: kind, State: s, Boundary: DefaultBoundary,
		Ranges: []Range{{Lower: 0, Severity: SeverityNormal, Recipients: recipients}}}
}

// DefaultTables returns the compiled-in recipient tables.
func DefaultTables() []Table {
	return []Table{
		{
			Kind: domain.KindTaskBudget, State: domain.StatePending, Boundary: DefaultBoundary,
			Ranges: []Range{
				{Lower: 0, Upper: amount(TaskBudgetDirectorThreshold), Severity: SeverityNormal,
					Recipients: []domain.Recipient{SiteEngineer}},
				{Lower: TaskBudgetDirectorThreshold, Upper: amount(ExecutiveThreshold), Severity: SeverityHigh,
					Recipients: []domain.Recipient{MaintenanceDirector}},
				{Lower: ExecutiveThreshold, Severity: SeverityCritical,
					Recipients: []domain.Recipient{Executive}},
			},
		},

		fixed(domain.KindMeasurementApproval, domain.StateTier1Approved, MaintenanceDirector),
		{
			Kind: domain.KindMeasurementApproval, State: domain.StateTier2Approved, Boundary: DefaultBoundary,
			Ranges: []Range{
				{Lower: 0, Upper: amount(ExecutiveThreshold), Severity: SeverityNormal,
					Recipients: []domain.Recipient{Interventor}},
				{Lower: ExecutiveThreshold, Severity: SeverityCritical,
					Recipients: []domain.Recipient{Executive, GeneralManager}},
			},
		},
		fixed(domain.KindMeasurementApproval, domain.StateTier3Approved, Accountant),

		fixed(domain.KindCutApproval, domain.StatePending, SiteEngineer),
		{
			Kind: domain.KindCutApproval, State: domain.StateTier1Approved, Boundary: DefaultBoundary,
			Ranges: []Range{
				{Lower: 0, Upper: amount(ExecutiveThreshold), Severity: SeverityNormal,
					Recipients: []domain.Recipient{MaintenanceDirector}},
				{Lower: ExecutiveThreshold, Severity: SeverityCritical,
					Recipients: []domain.Recipient{Executive}},
			},
		},
		fixed(domain.KindCutApproval, domain.StateTier2Approved, FinancialManager),
		fixed(domain.KindCutApproval, domain.StateTier3Approved, Accountant),

		fixed(domain.KindQuotationReview, domain.StatePending, QuotationReviewer),

		fixed(domain.KindContractLegalReview, domain.StateApproved, LegalReviewer),
	}
}
