package model

// BillingPlan is the public description of a plan tier.
// DailyCredits is 0 for plans that bypass metering.
type BillingPlan struct {
	Name            string   `json:"name"`
	YearlyPrice     int      `json:"yearlyPrice"`
	HalfYearlyPrice int      `json:"halfYearlyPrice"`
	Features        []string `json:"features"`
	DailyCredits    int64    `json:"dailyCredits"`
	Unlimited       bool     `json:"unlimited"`
}

var BillingPlans = map[Plan]BillingPlan{
	PlanFree: {
		Name:            "Free",
		YearlyPrice:     0,
		HalfYearlyPrice: 0,
		Features: []string{
			"10 Credits per day",
			"Use on 1 Device",
			"Meaning with Example",
			"Related Links & Content",
		},
		DailyCredits: DefaultDailyCredits,
	},
	PlanPremium: {
		Name:            "Premium",
		YearlyPrice:     30,
		HalfYearlyPrice: 20,
		Features: []string{
			"Unlimited Credits",
			"Use on 3 Devices",
			"Meaning with Example",
			"Related Links & Content",
		},
		Unlimited: true,
	},
}
