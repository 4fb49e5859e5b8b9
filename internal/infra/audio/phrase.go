package audio

import (
	"errors"
	"math"
	"time"
)

// ErrListenTimeout is returned when no speech starts within ListenOptions.ListenTimeout.
var ErrListenTimeout = errors.New("listening timed out while waiting for phrase to start")

// maxPhrase caps a single utterance when no phrase time limit is configured.
const maxPhrase = 60 * time.Second

// preRoll is the amount of quiet audio kept in front of a phrase so the first
// syllable is not clipped.
const preRoll = 500 * time.Millisecond

type ListenOptions struct {
	SampleRate      int
	EnergyThreshold int
	PauseThreshold  time.Duration
	PhraseTimeLimit time.Duration
	ListenTimeout   time.Duration
}

func DefaultListenOptions() ListenOptions {
	return ListenOptions{
		SampleRate:      16000,
		EnergyThreshold: 300,
		PauseThreshold:  800 * time.Millisecond,
	}
}

// PhraseRecorder turns a stream of PCM frames into a single utterance: it
// waits for a frame whose RMS energy exceeds the threshold, then records until
// the speaker pauses.
type PhraseRecorder struct {
	opts ListenOptions

	pending []int16
	samples []int16
	started bool
	waited  int
	quiet   int
}

func NewPhraseRecorder(opts ListenOptions) *PhraseRecorder {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	return &PhraseRecorder{opts: opts}
}

// Add feeds one frame. It reports true once the phrase is complete.
func (p *PhraseRecorder) Add(frame []int16) (bool, error) {
	loud := Energy(frame) > float64(p.opts.EnergyThreshold)

	if !p.started {
		if !loud {
			p.waited += len(frame)
			p.pending = append(p.pending, frame...)
			if keep := p.samplesFor(preRoll); len(p.pending) > keep {
				p.pending = p.pending[len(p.pending)-keep:]
			}
			if p.opts.ListenTimeout > 0 && p.waited >= p.samplesFor(p.opts.ListenTimeout) {
				return false, ErrListenTimeout
			}
			return false, nil
		}
		p.started = true
		p.samples = append(p.samples, p.pending...)
		p.pending = nil
	}

	p.samples = append(p.samples, frame...)

	if loud {
		p.quiet = 0
	} else {
		p.quiet += len(frame)
	}

	if p.quiet >= p.samplesFor(p.opts.PauseThreshold) {
		return true, nil
	}

	limit := maxPhrase
	if p.opts.PhraseTimeLimit > 0 && p.opts.PhraseTimeLimit < limit {
		limit = p.opts.PhraseTimeLimit
	}
	return len(p.samples) >= p.samplesFor(limit), nil
}

// Samples returns the recorded phrase, including the pre-roll.
func (p *PhraseRecorder) Samples() []int16 {
	return p.samples
}

func (p *PhraseRecorder) samplesFor(d time.Duration) int {
	return int(d.Seconds() * float64(p.opts.SampleRate))
}

// Energy is the root mean square of the frame.
func Energy(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
