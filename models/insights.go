package models

// InsightReport holds computed statistics for the activities of one run
type InsightReport struct {
	TotalActivities int
	FreeActivities  int
	AverageCost     float64
	MinCost         float64
	MaxCost         float64
	MostExpensive   *Activity
	ByType          map[string]int
	ByStatus        map[RegistrationStatus]int
	ByAgeCategory   map[string]int
	ByCategory      map[string]int
}
