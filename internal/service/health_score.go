package service

import (
	"math"
	"time"
)

// 健康分各项权重：基础 50，近 7 天打卡 +30，近 14 天 +15，
// 里程碑完成率最高 +30，任务完成率最高 +20，最终收敛到 [0,100]。
const (
	healthBaseScore          = 50
	healthRecencyWeekBonus   = 30
	healthRecencyBiweekBonus = 15
	healthMilestoneWeight    = 30
	healthTaskWeight         = 20
)

// healthScoreInput 汇总计算健康分所需的台账快照
type healthScoreInput struct {
	LastCheckInAt       *time.Time
	CompletedMilestones int
	TotalMilestones     int
	CompletedTasks      int
	TotalTasks          int
}

// computeHealthScore 按固定公式计算项目健康分。
// 没有打卡记录时近度加成为 0；没有里程碑/任务时对应项为 0，均不报错。
func computeHealthScore(input healthScoreInput, now time.Time) int {
	score := healthBaseScore

	if input.LastCheckInAt != nil {
		age := now.Sub(*input.LastCheckInAt)
		switch {
		case age <= 7*24*time.Hour:
			score += healthRecencyWeekBonus
		case age <= 14*24*time.Hour:
			score += healthRecencyBiweekBonus
		}
	}

	score += ratioBonus(input.CompletedMilestones, input.TotalMilestones, healthMilestoneWeight)
	score += ratioBonus(input.CompletedTasks, input.TotalTasks, healthTaskWeight)

	return clampScore(score, 0, 100)
}

func ratioBonus(completed, total, weight int) int {
	if total <= 0 {
		return 0
	}
	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}
	return int(math.Round(float64(weight) * float64(completed) / float64(total)))
}

func clampScore(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
