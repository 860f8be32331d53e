package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"worker not found", ErrWorkerNotFound, ErrCodeWorkerNotFound},
		{"worker not running", ErrWorkerNotRunning, ErrCodeWorkerNotRunning},
		{"invalid pattern", ErrInvalidPattern, ErrCodeInvalidPattern},
		{"shutdown in progress", ErrShutdownInProgress, ErrCodeShutdownInProgress},
		{"wrapped", fmt.Errorf("lookup: %w", ErrWorkerNotFound), ErrCodeWorkerNotFound},
		{"unknown error", errors.New("some error"), "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
