package audio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jfreymuth/pulse"
)

// Cue is a short synthesized tone sequence.
type Cue int

const (
	CueListenStart Cue = iota + 1
	CueListenStop
	CueNotification
)

const cueSampleRate = 16000

type tone struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var cueTones = map[Cue][]tone{
	CueListenStart: {
		{frequencyHz: 880, duration: 70 * time.Millisecond, volume: 0.18},
		{frequencyHz: 1175, duration: 70 * time.Millisecond, volume: 0.18},
	},
	CueListenStop: {
		{frequencyHz: 620, duration: 120 * time.Millisecond, volume: 0.18},
	},
	CueNotification: {
		{frequencyHz: 740, duration: 65 * time.Millisecond, volume: 0.16},
		{frequencyHz: 988, duration: 90 * time.Millisecond, volume: 0.16},
	},
}

// Player plays cues on the default Pulse sink.
type Player struct{}

// Play renders cue and blocks until playback drains. Cues are short, so ctx
// is only checked before the stream opens.
func (Player) Play(ctx context.Context, cue Cue) error {
	samples := cueSamples(cue)
	if len(samples) == 0 {
		return fmt.Errorf("unknown cue %d", cue)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("glassbridge cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return nil
}

func cueSamples(cue Cue) []int16 {
	tones, ok := cueTones[cue]
	if !ok {
		return nil
	}
	return synthesize(tones)
}

// synthesize concatenates tones with a short silent gap between them.
func synthesize(tones []tone) []int16 {
	gap := samplesForDuration(22 * time.Millisecond)
	var pcm []int16
	for i, t := range tones {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, synthesizeTone(t)...)
	}
	return pcm
}

// synthesizeTone renders a sine with a linear attack/release of at most 5ms.
func synthesizeTone(t tone) []int16 {
	n := samplesForDuration(t.duration)
	if n <= 0 || t.frequencyHz <= 0 || t.volume <= 0 {
		return nil
	}

	ramp := min(n/10, cueSampleRate/200)
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := range n {
		envelope := min(1.0, float64(i)/float64(ramp), float64(n-i-1)/float64(ramp))
		sample := math.Sin(2 * math.Pi * t.frequencyHz * float64(i) / cueSampleRate)
		pcm[i] = int16(math.Round(sample * t.volume * envelope * 32767))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
