package prompt

import (
	"fmt"
	"time"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
)

const (
	MinScore = 1
	MaxScore = 10
)

// ClampScore forces a collaborator-supplied score into [MinScore, MaxScore].
func ClampScore(score int) int {
	return min(max(score, MinScore), MaxScore)
}

// RecordTestRun prepends a new result to the active version's history.
func RecordTestRun(p models.Prompt, id, output string, now time.Time) models.Prompt {
	out, err := RecordTestRunOn(p, p.CurrentVersion, id, output, now)
	if err != nil {
		// Only reachable for a prompt whose currentVersion dangles.
		return p
	}
	return out
}

// RecordTestRunOn prepends a new result to the history of the given version.
// Every other version is left untouched.
func RecordTestRunOn(p models.Prompt, version int, id, output string, now time.Time) (models.Prompt, error) {
	if FindVersion(&p, version) == nil {
		return p, fmt.Errorf("%w: version %d does not exist", ErrInvalidVersion, version)
	}

	out := p.Clone()
	v := FindVersion(&out, version)
	result := models.TestResult{
		ID:        id,
		Output:    output,
		CreatedAt: now,
	}
	v.TestResults = append([]models.TestResult{result}, v.TestResults...)
	return out, nil
}

// AttachEvaluation sets the evaluation of a result in the active version. An
// existing evaluation is overwritten. The prompt is returned unchanged with
// ErrNotFound when the result does not exist.
func AttachEvaluation(p models.Prompt, testResultID string, ev models.Evaluation) (models.Prompt, error) {
	active := ActiveVersion(&p)
	if active == nil {
		return p, fmt.Errorf("%w: prompt %s has no active version", ErrNotFound, p.ID)
	}
	if findResult(active, testResultID) == nil {
		return p, fmt.Errorf("%w: test result %s in version %d", ErrNotFound, testResultID, active.Version)
	}

	out := p.Clone()
	r := findResult(ActiveVersion(&out), testResultID)
	ev.Score = ClampScore(ev.Score)
	r.Evaluation = &ev
	return out, nil
}

// FindTestResult searches every version for the result with the given id.
func FindTestResult(p *models.Prompt, testResultID string) (*models.PromptVersion, *models.TestResult) {
	if p == nil {
		return nil, nil
	}
	for i := range p.Versions {
		if r := findResult(&p.Versions[i], testResultID); r != nil {
			return &p.Versions[i], r
		}
	}
	return nil, nil
}

// BestTestResult returns the highest scored result across all versions, or
// nil when nothing has been evaluated. Ties keep the first one found.
func BestTestResult(p *models.Prompt) *models.TestResult {
	if p == nil {
		return nil
	}
	var best *models.TestResult
	for i := range p.Versions {
		for j := range p.Versions[i].TestResults {
			r := &p.Versions[i].TestResults[j]
			if r.Evaluation == nil {
				continue
			}
			if best == nil || r.Evaluation.Score > best.Evaluation.Score {
				best = r
			}
		}
	}
	return best
}

func findResult(v *models.PromptVersion, id string) *models.TestResult {
	if v == nil {
		return nil
	}
	for i := range v.TestResults {
		if v.TestResults[i].ID == id {
			return &v.TestResults[i]
		}
	}
	return nil
}
