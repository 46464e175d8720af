package catalog

// DefaultServices mirrors the production Khaja service catalog.
func DefaultServices() []Service {
	return []Service{
		{ID: ServiceTontePelouse, Name: "Tonte de pelouse", Unit: UnitSquareMeter, Eligibility: EligibilityImmediate},
		{ID: ServiceNettoyageInterieur, Name: "Nettoyage intérieur", Unit: UnitSquareMeter, Eligibility: EligibilityImmediate},
		{ID: ServicePetitsTravaux, Name: "Petits travaux", Unit: UnitCount, Eligibility: EligibilityImmediate},
		{ID: ServiceRefectionPeinture, Name: "Réfection peinture", Unit: UnitSquareMeter, Eligibility: EligibilityDelayed},
		{ID: ServiceDepannageSerrurier, Name: "Dépannage serrurier", Unit: UnitIntervention, Eligibility: EligibilityImmediate},
		{ID: ServiceDepannagePlomberie, Name: "Dépannage plomberie", Unit: UnitIntervention, Eligibility: EligibilityImmediate},
	}
}

// DefaultPlans mirrors the production Khaja plan tiers. Locksmith callouts
// only appear in forfait3 and forfait4; plumbing callouts only in forfait4.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:                PlanForfait1,
			MonthlyPriceCents: 4900,
			MaxTasks:          1,
			Limits: map[ServiceID]int{
				ServiceTontePelouse:       100,
				ServiceNettoyageInterieur: 15,
				ServicePetitsTravaux:      2,
			},
		},
		{
			ID:                PlanForfait2,
			MonthlyPriceCents: 9900,
			MaxTasks:          2,
			Limits: map[ServiceID]int{
				ServiceTontePelouse:       250,
				ServiceNettoyageInterieur: 40,
				ServicePetitsTravaux:      4,
				ServiceRefectionPeinture:  5,
			},
		},
		{
			ID:                PlanForfait3,
			MonthlyPriceCents: 17900,
			MaxTasks:          4,
			Limits: map[ServiceID]int{
				ServiceTontePelouse:       500,
				ServiceNettoyageInterieur: 80,
				ServicePetitsTravaux:      8,
				ServiceRefectionPeinture:  10,
				ServiceDepannageSerrurier: 1,
			},
		},
		{
			ID:                PlanForfait4,
			MonthlyPriceCents: 29900,
			MaxTasks:          8,
			Limits: map[ServiceID]int{
				ServiceTontePelouse:       Unlimited,
				ServiceNettoyageInterieur: 160,
				ServicePetitsTravaux:      16,
				ServiceRefectionPeinture:  20,
				ServiceDepannageSerrurier: 1,
				ServiceDepannagePlomberie: 1,
			},
		},
	}
}

// Default builds the catalog from the built-in reference data.
func Default() *Catalog {
	c, err := New(DefaultServices(), DefaultPlans())
	if err != nil {
		// Built-in data is validated by tests; a failure here is a defect.
		panic(err)
	}
	return c
}
