package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

func utcClock(c Clock) Clock {
	if c == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return func() time.Time { return c().UTC() }
}

// notFound maps gorm.ErrRecordNotFound to ErrNotFound naming the entity.
func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, entity)
	}
	return err
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Column scales of the stored decimals. Inputs finer than these would be
// rounded silently by the database.
const (
	moneyScale = 4
	shareScale = 4
	areaScale  = 2
)

// fitsScale reports whether d has no significant digits past places.
func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}
