package grading

import "math"

// Assessment kinds used to partition course grades.
const (
	KindExam       = "exam"
	KindAssignment = "assignment"
)

// GradeInput is one per-assessment grade row of a student.
type GradeInput struct {
	Kind     string
	Score    float64
	MaxScore float64
	Weight   float64
}

// CourseScore is a student's course-level standing.
type CourseScore struct {
	TotalScorePct       int    `json:"total_score_pct"`
	ExamsScorePct       int    `json:"exams_score_pct"`
	AssignmentsScorePct int    `json:"assignments_score_pct"`
	LetterGrade         string `json:"letter_grade"`
}

// Contribution is (score/max_score)*weight, or 0 when score or max_score is zero.
// Weights are used as stored; they are not normalised against each other.
func Contribution(g GradeInput) float64 {
	if g.Score == 0 || g.MaxScore == 0 {
		return 0
	}
	return g.Score / g.MaxScore * g.Weight
}

// Aggregate combines a student's grades into course-level percentages.
func Aggregate(grades []GradeInput) CourseScore {
	var total, exams, assignments float64
	for _, grade := range grades {
		contribution := Contribution(grade)
		total += contribution
		switch grade.Kind {
		case KindExam:
			exams += contribution
		case KindAssignment:
			assignments += contribution
		}
	}

	score := CourseScore{
		TotalScorePct:       toPct(total),
		ExamsScorePct:       toPct(exams),
		AssignmentsScorePct: toPct(assignments),
	}
	score.LetterGrade = LetterGrade(float64(score.TotalScorePct))
	return score
}

func toPct(sum float64) int {
	return int(math.Round(100 * sum))
}
