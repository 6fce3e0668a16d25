package sim

import (
	"fmt"
	"time"

	"github.com/BaSui01/pitchsim/types"
)

// 定性评价的分数阈值
const (
	strengthScoreFloor  = 8.0
	weaknessScoreCeil   = 6.0
	resolutionRateFloor = 0.5
)

// buildReport 从回合序列合成训练报告。字段名与嵌套结构是对外 JSON 契约。
func buildReport(sessionID, personaID string, status types.RunStatus, turns []types.Turn, startedAt, finishedAt time.Time) *types.SimulationReport {
	report := &types.SimulationReport{
		SessionID:           sessionID,
		CustomerPersonality: personaID,
		TotalTurns:          len(turns),
		FinalStatus:         status,
		FinalSalesState:     types.StateOpening,
		Turns:               turns,
		Strengths:           []string{},
		Weaknesses:          []string{},
		Recommendations:     []string{},
		StartedAt:           startedAt,
		FinishedAt:          finishedAt,
	}
	if len(turns) > 0 {
		report.FinalSalesState = turns[len(turns)-1].SalesState
	}

	scoredTurns := 0
	scoreSum := 0.0
	bestScore, worstScore := 0.0, 0.0
	for i, t := range turns {
		if t.CustomerObjection {
			report.TotalObjections++
			// 异议在紧随其后的一轮未再出现即视为已化解
			if i+1 < len(turns) && !turns[i+1].CustomerObjection {
				report.ObjectionsResolved++
			}
		}
		if t.CustomerBuyingSignal {
			report.BuyingSignals++
		}
		if t.CoachScore == nil {
			continue
		}
		score := t.CoachScore.OverallScore
		scoreSum += score
		scoredTurns++
		if report.BestTurn == 0 || score > bestScore {
			bestScore = score
			report.BestTurn = t.TurnNumber
		}
		if report.WorstTurn == 0 || score < worstScore {
			worstScore = score
			report.WorstTurn = t.TurnNumber
		}
	}
	if scoredTurns > 0 {
		report.AverageScore = scoreSum / float64(scoredTurns)
	}

	appendQualitative(report, scoredTurns)
	return report
}

// appendQualitative 按最终状态与分数阈值填充优势/不足/建议。
func appendQualitative(r *types.SimulationReport, scoredTurns int) {
	switch r.FinalStatus {
	case types.RunCompleted:
		r.Strengths = append(r.Strengths, "Closed the deal: the customer committed within the turn budget.")
	case types.RunFailed:
		r.Weaknesses = append(r.Weaknesses, "The customer hard-rejected the pitch.")
		r.Recommendations = append(r.Recommendations, "Watch for rejection signals earlier and change approach before the customer shuts down.")
	case types.RunDeadlock:
		r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("Conversation stalled in the %s stage with no progress.", r.FinalSalesState))
		r.Recommendations = append(r.Recommendations, "Vary your technique when the conversation stops advancing instead of repeating the same move.")
	case types.RunMaxTurnsReached:
		r.Weaknesses = append(r.Weaknesses, "Ran out of turns without reaching a close.")
		r.Recommendations = append(r.Recommendations, "Move to trial closes sooner once needs are established.")
	case types.RunCancelled:
		r.Weaknesses = append(r.Weaknesses, "The run was cancelled before reaching a conclusion.")
	case types.RunCollaboratorError:
		r.Weaknesses = append(r.Weaknesses, "The run aborted on a collaborator failure; results are partial.")
	}

	if scoredTurns > 0 {
		if r.AverageScore >= strengthScoreFloor {
			r.Strengths = append(r.Strengths, fmt.Sprintf("Consistently strong delivery (average score %.1f).", r.AverageScore))
		} else if r.AverageScore < weaknessScoreCeil {
			r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("Below-par delivery overall (average score %.1f).", r.AverageScore))
		}
	}

	if r.TotalObjections > 0 {
		resolved := float64(r.ObjectionsResolved) / float64(r.TotalObjections)
		if resolved < resolutionRateFloor {
			r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("Resolved only %d of %d objections.", r.ObjectionsResolved, r.TotalObjections))
		}
	}
}
