package services

import (
	"activity-sync/models"
	"activity-sync/utils"
)

// InsightService computes summary statistics over a run's activities
type InsightService struct {
	logger *utils.Logger
}

// NewInsightService creates a new InsightService
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes the insight report. Activities without a parsed cost are
// left out of the cost statistics; a zero cost counts as free.
func (s *InsightService) Generate(activities []*models.Activity) *models.InsightReport {
	report := &models.InsightReport{
		ByType:        make(map[string]int),
		ByStatus:      make(map[models.RegistrationStatus]int),
		ByAgeCategory: make(map[string]int),
		ByCategory:    make(map[string]int),
	}

	if len(activities) == 0 {
		s.logger.Warn("No activities to generate insights from")
		return report
	}

	var totalCost float64
	priced := 0
	for _, a := range activities {
		report.TotalActivities++
		report.ByType[a.Classification.Type]++
		report.ByStatus[a.RegistrationStatus]++
		if a.Classification.AgeCategory != "" {
			report.ByAgeCategory[a.Classification.AgeCategory]++
		}
		if len(a.CategoryPath) > 0 {
			report.ByCategory[a.CategoryPath[0]]++
		}

		if a.Cost == nil {
			continue
		}
		amount := a.Cost.Amount
		if amount == 0 {
			report.FreeActivities++
		}
		totalCost += amount
		if priced == 0 || amount < report.MinCost {
			report.MinCost = amount
		}
		if priced == 0 || amount > report.MaxCost {
			report.MaxCost = amount
			report.MostExpensive = a
		}
		priced++
	}

	if priced > 0 {
		report.AverageCost = totalCost / float64(priced)
	}
	return report
}
