package rating

// Classification is the letter grade of a final score
type Classification struct {
	Letter      string  `json:"letter"`
	ColorBand   string  `json:"colorBand"`
	Description string  `json:"description"`
	MinScore    float64 `json:"minScore"`
}

// ⭐ SSOT: 등급 스케일 (지표별 구간과 무관한 고정 스케일)
var gradeScale = []Classification{
	{Letter: "AAA", ColorBand: "green-500", Description: "Risco mínimo", MinScore: 90},
	{Letter: "AA", ColorBand: "green-400", Description: "Risco muito baixo", MinScore: 80},
	{Letter: "A", ColorBand: "lime-500", Description: "Risco baixo", MinScore: 70},
	{Letter: "BBB", ColorBand: "yellow-500", Description: "Risco moderado", MinScore: 60},
	{Letter: "BB", ColorBand: "orange-500", Description: "Risco elevado", MinScore: 50},
	{Letter: "B", ColorBand: "orange-600", Description: "Risco alto", MinScore: 40},
}

var gradeC = Classification{Letter: "C", ColorBand: "red-500", Description: "Risco crítico"}

// Classify converts a score to its grade. Any input is accepted; NaN and
// anything below 40 is C.
func Classify(score float64) Classification {
	for _, g := range gradeScale {
		if score >= g.MinScore {
			return g
		}
	}
	return gradeC
}

// GradeScale returns every grade from best to worst
func GradeScale() []Classification {
	out := make([]Classification, 0, len(gradeScale)+1)
	out = append(out, gradeScale...)
	return append(out, gradeC)
}
