package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangiraiC/passl-dispatch/pkg/clock"
	"github.com/tangiraiC/passl-dispatch/pkg/model"
)

func TestApplyAcceptance_DrainedCapacityGoesTransitToCollect(t *testing.T) {
	locks := NewInMemoryLockManager(clock.Real{})
	d, err := NewWaveDispatcher(DefaultPolicy(), locks, &recordingNotifier{}, clock.Real{}, nil)
	require.NoError(t, err)

	drv := model.Driver{ID: "d1", Status: model.DriverAvailable, MaxCapacity: 2}
	job := model.Job{ID: "j1", OrderIDs: []string{"o1", "o2"}}

	next := d.ApplyAcceptance(drv, job)
	assert.Equal(t, 0, next.MaxCapacity)
	assert.Equal(t, model.DriverTransitToCollect, next.Status)
}

func TestApplyAcceptance_ResidualCapacityStaysAvailableWithoutChaining(t *testing.T) {
	locks := NewInMemoryLockManager(clock.Real{})
	d, err := NewWaveDispatcher(DefaultPolicy(), locks, &recordingNotifier{}, clock.Real{}, nil)
	require.NoError(t, err)

	drv := model.Driver{ID: "d1", Status: model.DriverAvailable, MaxCapacity: 3}
	job := model.Job{ID: "j1", OrderIDs: []string{"o1"}}

	next := d.ApplyAcceptance(drv, job)
	assert.Equal(t, 2, next.MaxCapacity)
	assert.Equal(t, model.DriverAvailable, next.Status)
}

func TestApplyBreakdown_GoesOffline(t *testing.T) {
	drv := model.Driver{ID: "d1", Status: model.DriverTransitToCollect, MaxCapacity: 0}
	next := ApplyBreakdown(drv)
	assert.Equal(t, model.DriverOffline, next.Status)
}
