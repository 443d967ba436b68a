package marketdata

import (
	"time"

	"trend-scan/models"
)

// Resample derives a coarser series from a fine-grained one. Buckets
// are right-labeled and right-closed: the output bar at time T
// aggregates input bars with timestamps in (T-bucket, T]. The trailing
// bucket may be partial. Input must be time-ordered; resampling a
// series already at the target interval reproduces it unchanged.
func Resample(fine *models.Series, target models.Interval) *models.Series {
	bucket := target.Duration()

	out := make([]models.Bar, 0, len(fine.Bars))
	var current *models.Bar
	var currentLabel time.Time

	for _, bar := range fine.Bars {
		label := bucketLabel(bar.Timestamp, bucket)

		if current == nil || !label.Equal(currentLabel) {
			if current != nil {
				out = append(out, *current)
			}
			b := models.Bar{
				Timestamp:   label,
				Open:        bar.Open,
				High:        bar.High,
				Low:         bar.Low,
				Close:       bar.Close,
				Volume:      bar.Volume,
				VolumeSpike: bar.VolumeSpike,
			}
			current = &b
			currentLabel = label
			continue
		}

		if bar.High > current.High {
			current.High = bar.High
		}
		if bar.Low < current.Low {
			current.Low = bar.Low
		}
		current.Close = bar.Close
		current.Volume += bar.Volume
		current.VolumeSpike = current.VolumeSpike || bar.VolumeSpike
	}
	if current != nil {
		out = append(out, *current)
	}

	resampled := models.NewSeries(fine.Symbol, target, fine.Timezone, out)
	resampled.MarketOpen = fine.MarketOpen
	return resampled
}

// bucketLabel maps a timestamp onto its right-closed bucket boundary. A
// timestamp already on a boundary labels its own bucket.
func bucketLabel(t time.Time, bucket time.Duration) time.Time {
	truncated := t.Truncate(bucket)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(bucket)
}
