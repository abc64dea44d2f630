package models

// Verdict is the final categorical output of one aggregation run
type Verdict string

const (
	VerdictPositive Verdict = "Positive"
	VerdictNegative Verdict = "Negative"
	VerdictNeutral  Verdict = "Neutral"
)

func (v Verdict) String() string {
	return string(v)
}

// Resolve applies the majority vote. Equal counts, including 0/0, are Neutral.
func Resolve(positive, negative int) Verdict {
	switch {
	case positive > negative:
		return VerdictPositive
	case negative > positive:
		return VerdictNegative
	default:
		return VerdictNeutral
	}
}

type SourceTally struct {
	Fetched  int `json:"fetched"`
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Filtered int `json:"filtered"`
}

// SentimentTally is owned by a single aggregation run and discarded after
// the verdict is produced. Counts only grow.
type SentimentTally struct {
	Positive  int                    `json:"positive"`
	Negative  int                    `json:"negative"`
	Filtered  int                    `json:"filtered"`
	PerSource map[Source]SourceTally `json:"per_source"`
}

func NewSentimentTally() *SentimentTally {
	return &SentimentTally{PerSource: make(map[Source]SourceTally)}
}

func (t *SentimentTally) Fetched(source Source, n int) {
	st := t.PerSource[source]
	st.Fetched += n
	t.PerSource[source] = st
}

// Accept counts a classification that passed the confidence filter
func (t *SentimentTally) Accept(source Source, label Label) {
	st := t.PerSource[source]
	switch label {
	case LabelPositive:
		t.Positive++
		st.Positive++
	case LabelNegative:
		t.Negative++
		st.Negative++
	}
	t.PerSource[source] = st
}

// Discard records a below-threshold classification. It never votes.
func (t *SentimentTally) Discard(source Source) {
	st := t.PerSource[source]
	t.Filtered++
	st.Filtered++
	t.PerSource[source] = st
}

func (t *SentimentTally) Verdict() Verdict {
	return Resolve(t.Positive, t.Negative)
}

// Report is the observable outcome of one run: the verdict plus the tally
// that produced it and any source that was skipped under best-effort policy.
type Report struct {
	Symbol        string          `json:"symbol"`
	UseSocial     bool            `json:"use_social"`
	Verdict       Verdict         `json:"verdict"`
	Tally         *SentimentTally `json:"tally"`
	FailedSources []Source        `json:"failed_sources,omitempty"`
}
