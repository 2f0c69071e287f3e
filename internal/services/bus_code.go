package services

import (
	"context"
	"fmt"
)

const (
	busCodePrefix   = "BUS"
	busCodeAttempts = 5
	busCodeSpace    = 1000000
)

// generateBusCode returns an unused code of the form BUS + 6 digits. After
// busCodeAttempts collisions it falls back to a clock-derived suffix; the
// unique index still rejects a clash there.
func (s *BusService) generateBusCode(ctx context.Context) (string, error) {
	for i := 0; i < busCodeAttempts; i++ {
		code := formatBusCode(s.randN(busCodeSpace))
		exists, err := s.buses.ExistsByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return formatBusCode(int(s.now().UnixMilli() % busCodeSpace)), nil
}

func formatBusCode(n int) string {
	return fmt.Sprintf("%s%06d", busCodePrefix, n)
}
