package schedule

import (
	"time"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/model"
)

// Pricing resolves slot and batch prices.  The unit override wins over
// the sport default; a missing price is a configuration error and is
// never read as zero.
type Pricing struct {
	Granularity time.Duration
}

// HourlyRate returns the hourly price of unit in cents.  sport may be nil
// when the unit's sport has no row in the price table.
func (p Pricing) HourlyRate(unit model.Unit, sport *model.Sport) (int64, error) {
	rate := unit.HourlyPriceCents
	if rate == nil && sport != nil {
		rate = sport.DefaultHourlyPriceCents
	}
	if rate == nil {
		return 0, apperror.Validation("missing price configuration for unit %d (sport %q)", unit.ID, unit.SportType)
	}
	if *rate < 0 {
		return 0, apperror.Validation("negative price configured for unit %d", unit.ID)
	}
	return *rate, nil
}

// SlotPrice returns the price of one slot, i.e. half the hourly rate for
// 30 minute slots.
func (p Pricing) SlotPrice(unit model.Unit, sport *model.Sport) (int64, error) {
	rate, err := p.HourlyRate(unit, sport)
	if err != nil {
		return 0, err
	}
	return priceFor(rate, p.step()), nil
}

// BatchPrice returns the price of the whole batch at hourlyRate.  It is the
// sum of its slot prices, computed over the batch duration so odd hourly
// rates do not lose a cent per slot.
func (p Pricing) BatchPrice(b Batch, hourlyRate int64) int64 {
	return priceFor(hourlyRate, b.Duration())
}

func (p Pricing) step() time.Duration {
	if p.Granularity <= 0 {
		return DefaultGranularity
	}
	return p.Granularity
}

func priceFor(hourlyRate int64, d time.Duration) int64 {
	return hourlyRate * int64(d/time.Minute) / 60
}
