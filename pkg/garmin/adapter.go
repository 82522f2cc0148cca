package garmin

import (
	"fmt"
	"time"

	"github.com/yapay-ai/garmin-downloader/pkg/model"
)

// Raw response shapes. Readings arrive as [epochMillis, value] pairs where
// the value may be null.

type bodyBatteryReport struct {
	Date   string       `json:"date"`
	Values [][]*float64 `json:"bodyBatteryValuesArray"`
}

type heartRateResponse struct {
	HeartRateValues [][]*float64 `json:"heartRateValues"`
}

func adaptBodyBattery(reports []bodyBatteryReport) ([]model.Sample, error) {
	var samples []model.Sample
	for _, r := range reports {
		if r.Date == "" {
			return nil, fmt.Errorf("body battery report without date")
		}
		daySamples, err := adaptPairs(r.Values)
		if err != nil {
			return nil, fmt.Errorf("body battery %s: %w", r.Date, err)
		}
		samples = append(samples, daySamples...)
	}
	return samples, nil
}

func adaptHeartRate(resp heartRateResponse) ([]model.Sample, error) {
	samples, err := adaptPairs(resp.HeartRateValues)
	if err != nil {
		return nil, fmt.Errorf("heart rate: %w", err)
	}
	return samples, nil
}

// adaptPairs converts [epochMillis, value] pairs, skipping null values.
func adaptPairs(pairs [][]*float64) ([]model.Sample, error) {
	samples := make([]model.Sample, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("reading %d: expected [timestamp, value], got %d elements", i, len(pair))
		}
		if pair[0] == nil {
			return nil, fmt.Errorf("reading %d: missing timestamp", i)
		}
		if pair[1] == nil {
			continue
		}
		samples = append(samples, model.Sample{
			Timestamp: time.UnixMilli(int64(*pair[0])),
			Value:     *pair[1],
		})
	}
	return samples, nil
}
