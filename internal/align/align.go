// Package align maps an external cue source's chapter list onto a
// target audio file's timeline, which may be dilated or offset relative
// to the source. The affine-fit step uses gonum's linear algebra to
// solve the weighted least squares normal equations; the matching step
// is a dynamic program over candidate cue-to-chapter assignments.
package align

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	maxAnchorWindow = 120.0 // seconds; candidate anchor search radius
	maxDrift        = 120.0 // seconds; match_cost blows up beyond this
	noMatchCost     = 50.0
	driftPenalty    = 1000.0

	scaleMin = 0.90
	scaleMax = 1.10
	offsetMax = 300.0
)

// SourceChapter is one entry from the external cue source.
type SourceChapter struct {
	Time  float64
	Title string
}

// DetectedCue is one candidate cue timestamp with its originating
// silence span's duration.
type DetectedCue struct {
	Time     float64
	Silence  float64
}

// AlignedChapter is one source chapter mapped onto the target timeline.
type AlignedChapter struct {
	Title      string
	Timestamp  float64
	IsGuess    bool
	Confidence float64
}

// Align performs the full two-step alignment: an affine fit (scale and
// offset) followed by a dynamic-program match of chapters to cues.
func Align(sourceChapters []SourceChapter, detectedCues []DetectedCue, sourceDuration, actualDuration float64) []AlignedChapter {
	if len(detectedCues) == 0 {
		return alignWithoutCues(sourceChapters, sourceDuration, actualDuration)
	}

	scale, offset := fitAffine(sourceChapters, detectedCues, sourceDuration, actualDuration)
	expected := make([]float64, len(sourceChapters))
	for i, c := range sourceChapters {
		expected[i] = scale*c.Time + offset
	}

	assignments := matchDP(expected, detectedCues)

	out := make([]AlignedChapter, len(sourceChapters))
	for i, c := range sourceChapters {
		j := assignments[i]
		if j < 0 {
			out[i] = AlignedChapter{
				Title:      c.Title,
				Timestamp:  math.Max(0, expected[i]),
				IsGuess:    true,
				Confidence: 0.3,
			}
			continue
		}
		cue := detectedCues[j]
		dt := math.Abs(expected[i] - cue.Time)
		conf := clip01(0.65*math.Exp(-dt/30) + 0.35*math.Min(cue.Silence/4, 1))
		out[i] = AlignedChapter{
			Title:      c.Title,
			Timestamp:  cue.Time,
			IsGuess:    false,
			Confidence: conf,
		}
	}
	return out
}

func alignWithoutCues(sourceChapters []SourceChapter, sourceDuration, actualDuration float64) []AlignedChapter {
	s0 := baseScale(sourceDuration, actualDuration)
	out := make([]AlignedChapter, len(sourceChapters))
	for i, c := range sourceChapters {
		out[i] = AlignedChapter{
			Title:      c.Title,
			Timestamp:  math.Max(0, c.Time*s0),
			IsGuess:    true,
			Confidence: 0.2,
		}
	}
	return out
}

func baseScale(sourceDuration, actualDuration float64) float64 {
	if sourceDuration == 0 {
		return 1
	}
	return actualDuration / sourceDuration
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// anchorPair is a (source_time, cue_time) correspondence with its match
// weight, used as one row of the weighted least squares system.
type anchorPair struct {
	sourceTime float64
	cueTime    float64
	weight     float64
}

// fitAffine picks the best-scoring nearby cue for each source chapter
// as a weighted anchor, then solves for (scale, offset) via weighted
// least squares, with sanity clamps.
func fitAffine(sourceChapters []SourceChapter, detectedCues []DetectedCue, sourceDuration, actualDuration float64) (scale, offset float64) {
	s0 := baseScale(sourceDuration, actualDuration)

	var anchors []anchorPair
	for _, c := range sourceChapters {
		predicted := s0*c.Time + 0
		bestIdx := -1
		bestScore := -1.0
		for _, cue := range detectedCues {
			dt := math.Abs(predicted - cue.Time)
			if dt > maxAnchorWindow {
				continue
			}
			silenceScore := math.Min(cue.Silence/3, 1)
			timeScore := math.Max(0, 1-dt/60)
			score := 0.6*silenceScore + 0.4*timeScore
			if score > bestScore {
				bestScore = score
				bestIdx = findCueIndex(detectedCues, cue)
			}
		}
		if bestIdx >= 0 {
			anchors = append(anchors, anchorPair{
				sourceTime: c.Time,
				cueTime:    detectedCues[bestIdx].Time,
				weight:     bestScore,
			})
		}
	}

	if len(anchors) < 2 {
		return s0, 0
	}

	fitScale, fitOffset, ok := weightedLeastSquares(anchors)
	if !ok {
		return s0, 0
	}

	if fitScale < scaleMin || fitScale > scaleMax {
		return s0, 0
	}
	if math.Abs(fitOffset) > offsetMax {
		fitOffset = 0
	}
	return fitScale, fitOffset
}

func findCueIndex(cues []DetectedCue, target DetectedCue) int {
	for i, c := range cues {
		if c == target {
			return i
		}
	}
	return -1
}

// weightedLeastSquares solves for (scale, offset) minimizing
// sum w_i * (scale*t_i + offset - c_i)^2 via the normal equations
// (X^T W X) beta = X^T W y, solved with gonum.
func weightedLeastSquares(anchors []anchorPair) (scale, offset float64, ok bool) {
	ata := mat.NewDense(2, 2, nil)
	atb := mat.NewVecDense(2, nil)

	var a00, a01, a11, b0, b1 float64
	for _, p := range anchors {
		w := p.weight
		if w <= 0 {
			w = 1e-6
		}
		a00 += w * p.sourceTime * p.sourceTime
		a01 += w * p.sourceTime
		a11 += w
		b0 += w * p.sourceTime * p.cueTime
		b1 += w * p.cueTime
	}
	ata.Set(0, 0, a00)
	ata.Set(0, 1, a01)
	ata.Set(1, 0, a01)
	ata.Set(1, 1, a11)
	atb.SetVec(0, b0)
	atb.SetVec(1, b1)

	var beta mat.VecDense
	if err := beta.SolveVec(ata, atb); err != nil {
		return 0, 0, false
	}
	return beta.AtVec(0), beta.AtVec(1), true
}

// matchCost scores matching a detected cue against an expected chapter
// time: drift cost grows superlinearly, offset by a bonus for a longer
// originating silence span.
func matchCost(expected, cueTime, silence float64) float64 {
	dt := math.Abs(expected - cueTime)
	cost := math.Pow(dt/2, 1.5) - math.Min(7.5*silence, 25)
	if dt > maxDrift {
		cost += driftPenalty
	}
	return cost
}

// matchDP runs a dynamic program over candidate assignments and
// returns, for each source chapter index, the matched detected-cue
// index or -1.
func matchDP(expected []float64, cues []DetectedCue) []int {
	n := len(expected)
	m := len(cues)

	const inf = math.MaxFloat64 / 2

	dp := make([][]float64, n+1)
	back := make([][]int8, n+1) // 0=match, 1=skip-cue, 2=no-match
	for i := range dp {
		dp[i] = make([]float64, m+1)
		back[i] = make([]int8, m+1)
	}

	for j := 0; j <= m; j++ {
		dp[0][j] = 0
	}
	for i := 1; i <= n; i++ {
		dp[i][0] = dp[i-1][0] + noMatchCost
		back[i][0] = 2
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			matchC := dp[i-1][j-1] + matchCost(expected[i-1], cues[j-1].Time, cues[j-1].Silence)
			skipC := dp[i][j-1]
			noMatchC := dp[i-1][j] + noMatchCost

			best := matchC
			choice := int8(0)
			if skipC < best {
				best, choice = skipC, 1
			}
			if noMatchC < best {
				best, choice = noMatchC, 2
			}
			dp[i][j] = best
			back[i][j] = choice
		}
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	i, j := n, m
	for i > 0 {
		switch back[i][j] {
		case 0:
			assignments[i-1] = j - 1
			i--
			j--
		case 1:
			j--
		case 2:
			assignments[i-1] = -1
			i--
		}
		if j < 0 {
			j = 0
		}
	}
	return assignments
}
