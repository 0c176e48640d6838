package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRunOrder(t *testing.T) {
	fees := &stubJob{name: "fee-generation"}
	settle := &stubJob{name: "period-settlement"}
	registry := NewRegistry(fees, nil)
	require.NoError(t, registry.Register(settle))

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, fees, jobs[0])
	assert.Same(t, settle, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "callers must not mutate the run order")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "fee-generation"})
	assert.Error(t, registry.Register(&stubJob{name: "fee-generation"}))
	assert.Error(t, registry.Register(nil))
	assert.Panics(t, func() {
		NewRegistry(&stubJob{name: "x"}, &stubJob{name: "x"})
	})
}
