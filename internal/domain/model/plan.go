package model

// Plan is a purchasable premium plan as shown on the pricing page.
type Plan struct {
	ID       PlanType `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Currency string   `json:"currency"`
	Interval string   `json:"interval"`
	Savings  string   `json:"savings,omitempty"`
	Popular  bool     `json:"popular,omitempty"`
	Features []string `json:"features"`
}

// Plans lists the pricing catalog.
func Plans() []Plan {
	return []Plan{
		{
			ID: PlanMonthly, Name: "Monthly", Price: 9.99, Currency: "USD", Interval: "month",
			Features: []string{
				"Unlimited Writing Tasks",
				"Unlimited Speaking Tasks",
				"AI-Powered Evaluation",
				"Detailed Feedback",
			},
		},
		{
			ID: PlanYearly, Name: "Yearly", Price: 79.99, Currency: "USD", Interval: "year",
			Savings: "33%", Popular: true,
			Features: []string{"Everything in Monthly", "Priority Support", "Save 33%"},
		},
		{
			ID: PlanLifetime, Name: "Lifetime", Price: 149.99, Currency: "USD", Interval: "one-time",
			Features: []string{"Everything Forever", "No Recurring Payments"},
		},
	}
}
