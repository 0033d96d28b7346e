package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDefaultRetry(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"transient first attempt", ErrUnavailable, 0, true},
		{"transient second attempt", ErrUnavailable, 1, false},
		{"deadline first attempt", context.DeadlineExceeded, 0, true},
		{"unauthorized never", fmt.Errorf("%w: expired", ErrUnauthorized), 0, false},
		{"unclassified never", errors.New("boom"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := DefaultRetry(tt.err, tt.attempt)
			if dec.Retry != tt.want {
				t.Errorf("DefaultRetry(%v, %d).Retry = %v, want %v", tt.err, tt.attempt, dec.Retry, tt.want)
			}
		})
	}
}
