package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownExpected(t *testing.T) {
	assert.True(t, shutdownExpected(context.Canceled))
	assert.True(t, shutdownExpected(fmt.Errorf("serve: %w", context.Canceled)),
		"wrapped cancellation is still a clean shutdown")
	assert.False(t, shutdownExpected(context.DeadlineExceeded))
	assert.False(t, shutdownExpected(errors.New("listen tcp: address in use")))
}
