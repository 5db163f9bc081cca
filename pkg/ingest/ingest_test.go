package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
)

func TestReadOrders_ParsesValidRows(t *testing.T) {
	csv := "order_id,created_at,pickup_lat,pickup_lon,dropoff_lat,dropoff_lon,merchant_id\n" +
		"o1,2026-01-01T00:00:00Z,-17.82,31.03,-17.83,31.05,merchant-a\n" +
		"o2,2026-01-01T00:01:00Z,-17.80,31.00,-17.84,31.06,\n"

	orders, err := readOrders(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, "merchant-a", orders[0].PickupID)
	assert.Equal(t, model.OrderRAW, orders[0].Status)
	assert.Equal(t, -17.82, orders[0].Pickup.Lat)
	assert.Equal(t, "", orders[1].PickupID)
}

func TestReadOrders_RejectsWrongHeader(t *testing.T) {
	csv := "id,ts\no1,now\n"
	_, err := readOrders(strings.NewReader(csv))
	assert.Error(t, err)
}

func TestReadOrders_RejectsMalformedCoordinate(t *testing.T) {
	csv := "order_id,created_at,pickup_lat,pickup_lon,dropoff_lat,dropoff_lon,merchant_id\n" +
		"o1,2026-01-01T00:00:00Z,not-a-number,31.03,-17.83,31.05,merchant-a\n"
	_, err := readOrders(strings.NewReader(csv))
	assert.Error(t, err)
}

func TestReadDrivers_ParsesValidRows(t *testing.T) {
	csv := "driver_id,lat,lon,status,max_capacity\n" +
		"d1,-17.82,31.03,AVAILABLE,3\n"

	drivers, err := readDrivers(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	assert.Equal(t, "d1", drivers[0].ID)
	assert.Equal(t, model.DriverAvailable, drivers[0].Status)
	assert.Equal(t, 3, drivers[0].MaxCapacity)
}

func TestReadDrivers_RejectsMalformedCapacity(t *testing.T) {
	csv := "driver_id,lat,lon,status,max_capacity\n" +
		"d1,-17.82,31.03,AVAILABLE,not-a-number\n"
	_, err := readDrivers(strings.NewReader(csv))
	assert.Error(t, err)
}
